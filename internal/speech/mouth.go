package speech

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"github.com/hammamikhairi/voicepay/internal/domain"
	"github.com/hammamikhairi/voicepay/internal/logger"
)

// Backend turns an utterance into WAV audio.
type Backend interface {
	Synthesize(ctx context.Context, u domain.Utterance) ([]byte, error)
}

// AudioOutput plays WAV audio. Play blocks until the clip ends or ctx is
// cancelled, and must not start a clip whose ctx is already done.
type AudioOutput interface {
	Play(ctx context.Context, wav []byte, volume float64) error
}

// MouthOption configures the Mouth.
type MouthOption func(*Mouth)

// WithChunkSize sets the approximate max character count per TTS chunk.
// Text longer than this is split at sentence boundaries and synthesized
// in parallel so playback doesn't stall between sentences.
func WithChunkSize(n int) MouthOption {
	return func(m *Mouth) {
		m.chunkSize = n
	}
}

// WithCacheDir sets the filesystem directory used for persistent audio
// caching. If empty, the disk layer is disabled (pure in-memory).
func WithCacheDir(dir string) MouthOption {
	return func(m *Mouth) {
		m.cacheDir = dir
	}
}

// WithDiskWrite controls whether new cache entries are written to disk.
// Even when false, existing on-disk entries are still read.
func WithDiskWrite(enabled bool) MouthOption {
	return func(m *Mouth) {
		m.diskWrite = enabled
	}
}

var _ domain.Synthesizer = (*Mouth)(nil)

// Mouth is the synthesizer used with a Backend that returns audio. At most
// one utterance is live: Speak cancels whatever is being synthesized or
// played and replaces it. The completion callback of an utterance is posted
// to the event loop only when it plays to the end.
//
// An internal AudioCache avoids re-synthesizing identical utterances. Use
// Prefetch to warm it for text that will be spoken soon.
type Mouth struct {
	tts  Backend
	out  AudioOutput
	post domain.Poster
	log  *logger.Logger

	cache     *AudioCache
	chunkSize int
	cacheDir  string
	diskWrite bool

	playMu sync.Mutex // one playback at a time

	mu             sync.Mutex
	gen            uint64
	cancel         context.CancelFunc
	speaking       bool
	lastSpokenText string
}

// NewMouth creates a synthesizer that renders with tts, plays through out
// and delivers completion callbacks through post.
func NewMouth(tts Backend, out AudioOutput, post domain.Poster, log *logger.Logger, opts ...MouthOption) *Mouth {
	m := &Mouth{
		tts:       tts,
		out:       out,
		post:      post,
		log:       log,
		chunkSize: 200,
		diskWrite: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.cache = NewAudioCache(m.cacheDir, m.diskWrite, log)
	return m
}

// Speak cancels any current utterance and starts u. Non-blocking.
func (m *Mouth) Speak(u domain.Utterance, onEnd func()) {
	gen, ctx := m.replace()
	m.log.Debug("mouth: speaking (gen=%d, locale=%s): %s", gen, u.Locale, truncate(u.Text, 60))
	go m.run(ctx, gen, u, onEnd)
}

// Cancel stops the current utterance without running its callback.
func (m *Mouth) Cancel() {
	gen, _ := m.replace()
	m.log.Debug("mouth: cancelled (gen=%d)", gen)
}

// replace invalidates the live utterance and returns a fresh generation.
func (m *Mouth) replace() (uint64, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.gen++
	gen := m.gen
	m.cancel = cancel
	m.mu.Unlock()
	return gen, ctx
}

func (m *Mouth) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen == gen
}

// IsSpeaking reports whether audio is being synthesized or played.
func (m *Mouth) IsSpeaking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speaking
}

func (m *Mouth) setSpeaking(v bool) {
	m.mu.Lock()
	m.speaking = v
	m.mu.Unlock()
}

// run synthesizes and plays u, then reports completion if u is still live.
func (m *Mouth) run(ctx context.Context, gen uint64, u domain.Utterance, onEnd func()) {
	m.playMu.Lock()
	defer m.playMu.Unlock()

	if !m.current(gen) {
		return
	}
	m.setSpeaking(true)
	defer m.setSpeaking(false)

	chunks := m.splitChunks(u.Text)
	audio := m.synthesizeChunks(ctx, u, chunks)

	for i, wav := range audio {
		if !m.current(gen) {
			m.log.Debug("mouth: aborting playback (replaced)")
			return
		}
		if wav == nil {
			m.log.Debug("mouth: skipping chunk %d (synthesis failed)", i)
			continue
		}
		if err := m.out.Play(ctx, wav, u.Volume); err != nil {
			if ctx.Err() != nil {
				m.log.Debug("mouth: chunk %d interrupted", i)
				return
			}
			m.log.Error("mouth: chunk %d playback failed: %v", i, err)
		}
	}

	if !m.current(gen) {
		return
	}
	m.mu.Lock()
	m.lastSpokenText = u.Text
	m.mu.Unlock()
	if onEnd != nil {
		m.post.Post(onEnd)
	}
}

// synthesizeChunks renders chunks in parallel and returns them in order.
// Failed chunks are nil.
func (m *Mouth) synthesizeChunks(ctx context.Context, u domain.Utterance, chunks []string) [][]byte {
	slots := make([][]byte, len(chunks))
	if len(chunks) == 1 {
		part := u
		part.Text = chunks[0]
		audio, err := m.synthesizeWithCache(ctx, part)
		if err != nil {
			m.log.Error("mouth: synthesis failed: %v", err)
			return slots
		}
		slots[0] = audio
		return slots
	}

	m.log.Debug("mouth: split into %d chunks for parallel synthesis", len(chunks))

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(idx int, text string) {
			defer wg.Done()
			part := u
			part.Text = text
			audio, err := m.synthesizeWithCache(ctx, part)
			if err != nil {
				m.log.Error("mouth: chunk %d synthesis failed: %v", idx, err)
				return
			}
			slots[idx] = audio
		}(i, chunk)
	}
	wg.Wait()
	return slots
}

// synthesizeWithCache checks the cache first, otherwise calls the backend
// and stores the result. Thread-safe.
func (m *Mouth) synthesizeWithCache(ctx context.Context, u domain.Utterance) ([]byte, error) {
	if audio, ok := m.cache.Get(u); ok {
		return audio, nil
	}
	audio, err := m.tts.Synthesize(ctx, u)
	if err != nil {
		return nil, err
	}
	m.cache.Put(u, audio)
	return audio, nil
}

// splitChunks breaks text into sentence-boundary chunks of approximately
// m.chunkSize characters.
func (m *Mouth) splitChunks(text string) []string {
	if m.chunkSize <= 0 || len(text) <= m.chunkSize {
		return []string{text}
	}

	sentences := splitSentences(text)

	var chunks []string
	var current strings.Builder

	for _, s := range sentences {
		if current.Len() > 0 && current.Len()+len(s) > m.chunkSize {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(s)
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}

	var out []string
	for _, c := range chunks {
		if c != "" {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return []string{text}
	}
	return out
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])
		if isSentenceEnd(runes[i]) {
			// Consume trailing whitespace and include it.
			for i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
				i++
				current.WriteRune(runes[i])
			}
			sentences = append(sentences, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}

// isSentenceEnd also accepts the danda and full-width stops used in
// Hindi and Chinese narration.
func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '।', '。', '！', '？':
		return true
	}
	return false
}

// truncate shortens a string for logging.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

// ── Prefetching / Cache ──────────────────────────────────────────

// Prefetch pre-synthesizes the given utterances in background goroutines
// so that a later Speak starts playing without a network round trip.
// Already cached chunks are skipped.
func (m *Mouth) Prefetch(ctx context.Context, utterances ...domain.Utterance) {
	for _, u := range utterances {
		if u.Text == "" {
			continue
		}
		for _, chunk := range m.splitChunks(u.Text) {
			part := u
			part.Text = chunk
			if m.cache.Has(part) {
				m.log.Debug("prefetch: already cached: %s", truncate(chunk, 50))
				continue
			}
			go func(p domain.Utterance) {
				audio, err := m.tts.Synthesize(ctx, p)
				if err != nil {
					m.log.Error("prefetch: synthesis failed: %v", err)
					return
				}
				m.cache.Put(p, audio)
				m.log.Debug("prefetch: cached %d bytes for: %s", len(audio), truncate(p.Text, 50))
			}(part)
		}
	}
}

// LastSpoken returns the text of the last utterance that played to the end.
func (m *Mouth) LastSpoken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSpokenText
}
