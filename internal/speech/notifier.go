package speech

import (
	"regexp"
	"strings"

	"github.com/hammamikhairi/voicepay/internal/domain"
)

// Compile-time interface check.
var _ domain.Synthesizer = (*Captioned)(nil)

// Captioned wraps a synthesizer and also shows every utterance as a
// caption, so spoken feedback is readable when audio is muted.
type Captioned struct {
	inner   domain.Synthesizer
	caption func(text string)
}

// NewCaptioned creates a synthesizer that both captions and speaks.
func NewCaptioned(inner domain.Synthesizer, caption func(text string)) *Captioned {
	return &Captioned{inner: inner, caption: caption}
}

// Speak shows the caption and forwards a cleaned utterance.
func (c *Captioned) Speak(u domain.Utterance, onEnd func()) {
	c.caption(u.Text)
	u.Text = cleanForSpeech(u.Text)
	c.inner.Speak(u, onEnd)
}

// Cancel clears the caption and stops speech.
func (c *Captioned) Cancel() {
	c.caption("")
	c.inner.Cancel()
}

// cleanForSpeech strips formatting artifacts that shouldn't be spoken.
var bracketPrefix = regexp.MustCompile(`^\[[A-Za-z]+\]\s*`)
var ansiCodes = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func cleanForSpeech(msg string) string {
	cleaned := ansiCodes.ReplaceAllString(msg, "")
	cleaned = bracketPrefix.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)
	return cleaned
}
