// Package autoread reads the site aloud page by page, moving to the next
// page in the cyclic order a short pause after each page finishes.
package autoread

import (
	"time"

	"github.com/hammamikhairi/voicepay/internal/domain"
	"github.com/hammamikhairi/voicepay/internal/logger"
	"github.com/hammamikhairi/voicepay/internal/site"
)

// Option configures the walker.
type Option func(*Walker)

// WithAdvanceDelay sets the pause between the end of a page and the move
// to the next one.
func WithAdvanceDelay(d time.Duration) Option {
	return func(w *Walker) { w.advanceDelay = d }
}

// WithLocale sets the synthesis locale for page narration.
func WithLocale(locale string) Option {
	return func(w *Walker) { w.locale = locale }
}

// WithOnChange registers a callback for reading state changes.
func WithOnChange(fn func(reading bool)) Option {
	return func(w *Walker) { w.onChange = fn }
}

// Walker is the auto-reader. Reading is not gated on voice consent: it is
// an explicit user action. Like the engine it must be driven from the
// event loop.
type Walker struct {
	speech    domain.Synthesizer
	nav       domain.Navigator
	scheduler domain.Scheduler
	log       *logger.Logger
	pages     []domain.Page

	advanceDelay time.Duration
	locale       string
	onChange     func(bool)

	reading       bool
	index         int
	utterance     int  // bumps on every page read
	narrating     bool // a page utterance is in flight
	resumePending bool // the page was cut off by another utterance
	yieldGen      int  // bumps on every pre-empting utterance
	cancelAdvance func()
}

// New creates a walker over site.Pages.
func New(speech domain.Synthesizer, nav domain.Navigator, scheduler domain.Scheduler, log *logger.Logger, opts ...Option) *Walker {
	w := &Walker{
		speech:       speech,
		nav:          nav,
		scheduler:    scheduler,
		log:          log,
		pages:        site.Pages,
		advanceDelay: domain.AdvanceDelay,
		locale:       "en-US",
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Reading reports whether auto-read is on.
func (w *Walker) Reading() bool { return w.reading }

// Index returns the position of the page being read.
func (w *Walker) Index() int { return w.index }

// Toggle starts reading from the current page, or stops reading.
func (w *Walker) Toggle() {
	if w.reading {
		w.stop()
		return
	}

	w.reading = true
	w.log.Info("auto-read started at %s", w.nav.Current())
	w.changed()

	idx := site.IndexOf(w.nav.Current())
	if idx < 0 {
		// Off the page table: start the tour from the first page.
		w.index = 0
		w.nav.Navigate(w.pages[0].Path)
		return
	}
	w.index = idx
	w.read()
}

// OnRoute must be called after every navigation. While reading, the new
// page replaces whatever was being read.
func (w *Walker) OnRoute(route domain.Route) {
	if !w.reading {
		return
	}
	idx := site.IndexOf(route)
	if idx < 0 {
		w.log.Debug("auto-read: %s has no narration", route)
		w.cancelTimer()
		return
	}
	w.index = idx
	w.read()
}

// Close stops reading and releases the pending advance.
func (w *Walker) Close() {
	if w.reading {
		w.stop()
	}
}

func (w *Walker) stop() {
	w.reading = false
	w.narrating = false
	w.resumePending = false
	w.utterance++
	w.cancelTimer()
	w.speech.Cancel()
	w.log.Info("auto-read stopped")
	w.changed()
}

func (w *Walker) read() {
	w.cancelTimer()
	w.utterance++
	id := w.utterance
	w.narrating = true
	w.resumePending = false
	page := w.pages[w.index]

	w.log.Debug("auto-read: reading %s", page.Name)
	w.speech.Speak(domain.Utterance{
		Text:   page.Content,
		Locale: w.locale,
		Rate:   0.8,
		Pitch:  1,
		Volume: 0.8,
	}, func() { w.pageDone(id) })
}

// pageDone runs when a page was read to the end.
func (w *Walker) pageDone(id int) {
	if !w.reading || id != w.utterance {
		return
	}
	w.narrating = false
	w.cancelAdvance = w.scheduler.AfterFunc(w.advanceDelay, func() {
		w.cancelAdvance = nil
		if !w.reading {
			return
		}
		next := (w.index + 1) % len(w.pages)
		w.index = next
		w.nav.Navigate(w.pages[next].Path)
	})
}

func (w *Walker) cancelTimer() {
	if w.cancelAdvance != nil {
		w.cancelAdvance()
		w.cancelAdvance = nil
	}
}

func (w *Walker) changed() {
	if w.onChange != nil {
		w.onChange(w.reading)
	}
}
