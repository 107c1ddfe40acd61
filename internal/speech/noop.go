// Package speech provides the speech recognizers, synthesizers and the
// microphone probe used by the voice engine.
package speech

import (
	"github.com/hammamikhairi/voicepay/internal/domain"
	"github.com/hammamikhairi/voicepay/internal/logger"
)

// Compile-time interface checks.
var (
	_ domain.Synthesizer = (*NoOp)(nil)
	_ domain.Recognizer  = (*NoOp)(nil)
)

// NoOp neither speaks nor listens. Used when no audio backend is available.
// Speech completes immediately so that callers waiting on onEnd progress.
type NoOp struct {
	post domain.Poster
	log  *logger.Logger
}

// NewNoOp creates a no-op speech provider.
func NewNoOp(post domain.Poster, log *logger.Logger) *NoOp {
	return &NoOp{post: post, log: log}
}

// Speak logs the utterance and reports completion.
func (n *NoOp) Speak(u domain.Utterance, onEnd func()) {
	n.log.Debug("speech no-op: would say %q (%s)", u.Text, u.Locale)
	if onEnd != nil {
		n.post.Post(onEnd)
	}
}

// Cancel does nothing.
func (n *NoOp) Cancel() {}

// Configure does nothing.
func (n *NoOp) Configure(string, bool, bool) {}

// Start reports that no recognizer is available.
func (n *NoOp) Start(domain.RecognitionHandler) error {
	return domain.ErrRecognizerUnavailable
}

// Stop does nothing.
func (n *NoOp) Stop() {}

// Abort does nothing.
func (n *NoOp) Abort() {}
