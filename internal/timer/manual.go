package timer

import (
	"sort"
	"time"

	"github.com/hammamikhairi/voicepay/internal/domain"
)

var (
	_ domain.Scheduler = (*Manual)(nil)
	_ domain.Poster    = (*Manual)(nil)
)

// Manual is a deterministic Scheduler driven by Advance instead of the wall
// clock. Post runs callbacks immediately. Use it in tests and anywhere the
// caller owns the notion of time.
type Manual struct {
	now     time.Duration
	seq     int
	entries []*manualEntry
}

type manualEntry struct {
	at        time.Duration
	seq       int
	fn        func()
	cancelled bool
}

// NewManual creates a manual scheduler at virtual time zero.
func NewManual() *Manual {
	return &Manual{}
}

// Post runs fn synchronously.
func (m *Manual) Post(fn func()) {
	fn()
}

// AfterFunc schedules fn at now+d.
func (m *Manual) AfterFunc(d time.Duration, fn func()) func() {
	m.seq++
	e := &manualEntry{at: m.now + d, seq: m.seq, fn: fn}
	m.entries = append(m.entries, e)
	return func() { e.cancelled = true }
}

// Advance moves virtual time forward by d, running due callbacks in time
// order. Callbacks scheduled while advancing run too if they fall due.
func (m *Manual) Advance(d time.Duration) {
	target := m.now + d
	for {
		e := m.next(target)
		if e == nil {
			break
		}
		m.now = e.at
		e.cancelled = true
		e.fn()
	}
	m.now = target
	m.compact()
}

// Pending returns the number of live scheduled callbacks.
func (m *Manual) Pending() int {
	n := 0
	for _, e := range m.entries {
		if !e.cancelled {
			n++
		}
	}
	return n
}

// Now returns the virtual time elapsed since creation.
func (m *Manual) Now() time.Duration {
	return m.now
}

func (m *Manual) next(limit time.Duration) *manualEntry {
	var due []*manualEntry
	for _, e := range m.entries {
		if !e.cancelled && e.at <= limit {
			due = append(due, e)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at != due[j].at {
			return due[i].at < due[j].at
		}
		return due[i].seq < due[j].seq
	})
	return due[0]
}

func (m *Manual) compact() {
	live := m.entries[:0]
	for _, e := range m.entries {
		if !e.cancelled {
			live = append(live, e)
		}
	}
	m.entries = live
}
