package autoread

import "github.com/hammamikhairi/voicepay/internal/domain"

// Yield wraps s for every speaker other than the walker. An utterance
// spoken through it cuts the page being narrated; once the last such
// utterance plays to the end, the page is read again from the start.
func (w *Walker) Yield(s domain.Synthesizer) domain.Synthesizer {
	return &yielding{walker: w, inner: s}
}

type yielding struct {
	walker *Walker
	inner  domain.Synthesizer
}

var _ domain.Synthesizer = (*yielding)(nil)

func (y *yielding) Speak(u domain.Utterance, onEnd func()) {
	token, resume := y.walker.preempt()
	y.inner.Speak(u, func() {
		if onEnd != nil {
			onEnd()
		}
		if resume {
			y.walker.resume(token)
		}
	})
}

// Cancel stops whatever is playing, narration included.
func (y *yielding) Cancel() {
	y.inner.Cancel()
}

// preempt records that another utterance is about to replace the
// narration. It returns the token to resume with, and false when nothing
// needs resuming.
func (w *Walker) preempt() (int, bool) {
	if !w.reading {
		return 0, false
	}
	if w.narrating {
		w.narrating = false
		w.utterance++
		w.resumePending = true
		w.log.Debug("auto-read: %s interrupted", w.pages[w.index].Name)
	}
	if !w.resumePending {
		return 0, false
	}
	w.yieldGen++
	return w.yieldGen, true
}

func (w *Walker) resume(token int) {
	if !w.reading || !w.resumePending || token != w.yieldGen {
		return
	}
	w.log.Debug("auto-read: resuming %s", w.pages[w.index].Name)
	w.read()
}
