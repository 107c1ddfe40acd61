package speech

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	google_translate_tts "github.com/GrailFinder/google-translate-tts"
	"github.com/GrailFinder/google-translate-tts/handlers"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"

	"github.com/hammamikhairi/voicepay/internal/domain"
	"github.com/hammamikhairi/voicepay/internal/logger"
)

var _ domain.Synthesizer = (*GoogleVoice)(nil)

// GoogleVoice speaks through the Google Translate TTS endpoint and plays
// the MP3 stream with beep. It needs no credentials, which makes it the
// fallback when Azure is not configured. Like Mouth, a new Speak replaces
// the current utterance.
type GoogleVoice struct {
	folder string
	post   domain.Poster
	log    *logger.Logger

	initOnce   sync.Once
	initErr    error
	sampleRate beep.SampleRate

	mu       sync.Mutex
	gen      uint64
	speaking bool
	ctrl     *beep.Ctrl
	stop     chan struct{}
	speech   *google_translate_tts.Speech
}

// NewGoogleVoice creates the voice. MP3 files are cached under folder, or
// under the system temp dir when folder is empty.
func NewGoogleVoice(folder string, post domain.Poster, log *logger.Logger) *GoogleVoice {
	if folder == "" {
		folder = filepath.Join(os.TempDir(), "voicepay-tts")
	}
	return &GoogleVoice{folder: folder, post: post, log: log}
}

// Speak replaces any current utterance with u. Non-blocking.
func (g *GoogleVoice) Speak(u domain.Utterance, onEnd func()) {
	speech := &google_translate_tts.Speech{
		Folder:   g.folder,
		Language: translateLanguage(u.Locale),
		Proxy:    "",
		Speed:    float32(u.Rate),
		Handler:  &handlers.Beep{},
	}

	g.mu.Lock()
	g.stopLocked()
	g.gen++
	gen := g.gen
	stop := make(chan struct{})
	g.stop = stop
	g.speech = speech
	g.speaking = true
	g.mu.Unlock()

	go func() {
		err := g.play(gen, stop, speech, u)
		if !g.finish(gen) {
			return
		}
		if err != nil {
			g.log.Error("google voice: %v", err)
			return
		}
		if onEnd != nil {
			g.post.Post(onEnd)
		}
	}()
}

// Cancel stops the current utterance without running its callback.
func (g *GoogleVoice) Cancel() {
	g.mu.Lock()
	g.stopLocked()
	g.gen++
	g.speaking = false
	g.mu.Unlock()
}

// IsSpeaking reports whether an utterance is being generated or played.
func (g *GoogleVoice) IsSpeaking() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.speaking
}

// finish marks utterance gen as done. It returns false when a newer
// Speak or Cancel has taken over.
func (g *GoogleVoice) finish(gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gen != gen {
		return false
	}
	g.speaking = false
	g.ctrl = nil
	return true
}

// stopLocked silences the live stream. Must be called with g.mu held.
func (g *GoogleVoice) stopLocked() {
	if g.stop != nil {
		close(g.stop)
		g.stop = nil
	}
	if g.ctrl != nil {
		speaker.Lock()
		g.ctrl.Streamer = nil
		speaker.Unlock()
		g.ctrl = nil
	}
	if g.speech != nil {
		_ = g.speech.Stop()
		g.speech = nil
	}
}

// play generates, decodes and plays one utterance. It returns nil when the
// stream finished or was stopped; the caller checks which.
func (g *GoogleVoice) play(gen uint64, stop chan struct{}, speech *google_translate_tts.Speech, u domain.Utterance) error {
	reader, err := speech.GenerateSpeech(u.Text)
	if err != nil {
		return fmt.Errorf("generate speech: %w", err)
	}
	streamer, format, err := mp3.Decode(io.NopCloser(reader))
	if err != nil {
		return fmt.Errorf("mp3 decode: %w", err)
	}
	defer streamer.Close()

	if err := g.initSpeaker(format.SampleRate); err != nil {
		return fmt.Errorf("speaker init: %w", err)
	}

	var out beep.Streamer = streamer
	if format.SampleRate != g.sampleRate {
		out = beep.Resample(4, format.SampleRate, g.sampleRate, out)
	}
	if u.Rate > 0 && u.Rate != 1 {
		out = beep.ResampleRatio(3, u.Rate, out)
	}
	if u.Volume > 0 && u.Volume < 1 {
		out = &effects.Volume{Streamer: out, Base: 2, Volume: math.Log2(u.Volume)}
	}

	done := make(chan struct{})
	ctrl := &beep.Ctrl{Streamer: beep.Seq(out, beep.Callback(func() { close(done) }))}

	g.mu.Lock()
	if g.gen != gen {
		g.mu.Unlock()
		return nil
	}
	g.ctrl = ctrl
	g.mu.Unlock()

	speaker.Play(ctrl)
	g.log.Debug("google voice: playing %s (%s)", truncate(u.Text, 50), speech.Language)

	select {
	case <-done:
	case <-stop:
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("playback did not finish")
	}
	return nil
}

// initSpeaker opens the output device once, at the rate of the first
// stream. Later streams are resampled to it.
func (g *GoogleVoice) initSpeaker(rate beep.SampleRate) error {
	g.initOnce.Do(func() {
		g.sampleRate = rate
		g.initErr = speaker.Init(rate, rate.N(time.Second/10))
	})
	return g.initErr
}
