package speech

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hammamikhairi/voicepay/internal/domain"
	"github.com/hammamikhairi/voicepay/internal/logger"
)

func quietLog() *logger.Logger { return logger.New(logger.LevelOff, nil) }

// inlinePoster runs callbacks on the posting goroutine.
type inlinePoster struct{}

func (inlinePoster) Post(fn func()) { fn() }

const wait = 2 * time.Second

// ── SSML / voices ────────────────────────────────────────────────

func TestVoiceFor(t *testing.T) {
	tests := map[string]string{
		"en-US": "en-US-AvaNeural",
		"hi-IN": "hi-IN-SwaraNeural",
		"zh-CN": "zh-CN-XiaoxiaoNeural",
		"fr-FR": DefaultVoice,
		"":      DefaultVoice,
	}
	for locale, want := range tests {
		if got := VoiceFor(locale); got != want {
			t.Errorf("VoiceFor(%q) = %q, want %q", locale, got, want)
		}
	}
}

func TestBuildSSML(t *testing.T) {
	ssml := buildSSML(domain.Utterance{
		Text:   "Prices <b>&</b> plans",
		Locale: "hi-IN",
		Rate:   0.9,
		Pitch:  1,
		Volume: 0.8,
	})

	for _, want := range []string{
		"xml:lang='hi-IN'",
		"name='hi-IN-SwaraNeural'",
		"rate='-10%'",
		"pitch='+0%'",
		"Prices &lt;b&gt;&amp;&lt;/b&gt; plans",
	} {
		if !strings.Contains(ssml, want) {
			t.Errorf("ssml missing %q:\n%s", want, ssml)
		}
	}
}

func TestRelative(t *testing.T) {
	tests := []struct {
		v, scale float64
		want     string
	}{
		{0, 1, "+0%"},
		{1, 1, "+0%"},
		{0.8, 1, "-20%"},
		{1.5, 1, "+50%"},
		{2, 0.5, "+50%"},
	}
	for _, tt := range tests {
		if got := relative(tt.v, tt.scale); got != tt.want {
			t.Errorf("relative(%v, %v) = %q, want %q", tt.v, tt.scale, got, tt.want)
		}
	}
}

func TestTranslateLanguage(t *testing.T) {
	tests := map[string]string{"en-US": "en", "hi-IN": "hi", "zh-CN": "zh-CN", "": "en"}
	for in, want := range tests {
		if got := translateLanguage(in); got != want {
			t.Errorf("translateLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}

// ── cache ────────────────────────────────────────────────────────

func TestCacheKeySeparatesProsody(t *testing.T) {
	c := NewAudioCache("", false, quietLog())
	feedback := domain.Utterance{Text: "Home", Locale: "en-US", Rate: 0.9}
	reading := domain.Utterance{Text: "Home", Locale: "en-US", Rate: 0.8}
	hindi := domain.Utterance{Text: "Home", Locale: "hi-IN", Rate: 0.9}

	c.Put(feedback, []byte("a"))
	if _, ok := c.Get(reading); ok {
		t.Error("different rate shared a cache entry")
	}
	if _, ok := c.Get(hindi); ok {
		t.Error("different voice shared a cache entry")
	}
	louder := feedback
	louder.Volume = 1
	if got, ok := c.Get(louder); !ok || string(got) != "a" {
		t.Error("volume should not affect the cache key")
	}
	if hits, misses := c.Stats(); hits != 1 || misses != 2 {
		t.Errorf("stats = %d/%d", hits, misses)
	}
}

func TestCacheDiskLayer(t *testing.T) {
	dir := t.TempDir()
	u := domain.Utterance{Text: "pricing", Locale: "en-US"}

	NewAudioCache(dir, true, quietLog()).Put(u, []byte("wav"))

	fresh := NewAudioCache(dir, false, quietLog())
	if !fresh.Has(u) {
		t.Fatal("disk entry not visible to a new cache")
	}
	if got, ok := fresh.Get(u); !ok || string(got) != "wav" {
		t.Fatalf("Get = %q, %v", got, ok)
	}
	if fresh.Len() != 1 {
		t.Errorf("disk hit not promoted to memory")
	}
}

// ── mouth ────────────────────────────────────────────────────────

type countingBackend struct {
	mu    sync.Mutex
	calls int
	fail  string
}

func (b *countingBackend) Synthesize(_ context.Context, u domain.Utterance) ([]byte, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	if b.fail != "" && strings.Contains(u.Text, b.fail) {
		return nil, errors.New("synthesis failed")
	}
	return []byte(u.Text), nil
}

func (b *countingBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// blockingOutput holds each Play until released or its ctx is cancelled.
// enter, when set, runs as Play is entered, before the ctx check.
type blockingOutput struct {
	started chan string
	release chan struct{}
	enter   func(wav string)
}

func newBlockingOutput() *blockingOutput {
	return &blockingOutput{started: make(chan string, 8), release: make(chan struct{})}
}

func (o *blockingOutput) Play(ctx context.Context, wav []byte, _ float64) error {
	if o.enter != nil {
		o.enter(string(wav))
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	o.started <- string(wav)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-o.release:
	}
	return nil
}

func expectStarted(t *testing.T, out *blockingOutput, want string) {
	t.Helper()
	select {
	case got := <-out.started:
		if got != want {
			t.Fatalf("playing %q, want %q", got, want)
		}
	case <-time.After(wait):
		t.Fatalf("playback of %q never started", want)
	}
}

func TestMouthCallsOnEndAfterPlayback(t *testing.T) {
	out := newBlockingOutput()
	m := NewMouth(&countingBackend{}, out, inlinePoster{}, quietLog())

	done := make(chan struct{})
	m.Speak(domain.Utterance{Text: "Navigating to about"}, func() { close(done) })

	expectStarted(t, out, "Navigating to about")
	out.release <- struct{}{}

	select {
	case <-done:
	case <-time.After(wait):
		t.Fatal("onEnd not called")
	}
	if m.LastSpoken() != "Navigating to about" {
		t.Errorf("LastSpoken = %q", m.LastSpoken())
	}
}

func TestMouthCancelAndReplace(t *testing.T) {
	out := newBlockingOutput()
	m := NewMouth(&countingBackend{}, out, inlinePoster{}, quietLog())

	first := make(chan struct{}, 1)
	second := make(chan struct{}, 1)

	m.Speak(domain.Utterance{Text: "first"}, func() { first <- struct{}{} })
	expectStarted(t, out, "first")

	m.Speak(domain.Utterance{Text: "second"}, func() { second <- struct{}{} })
	expectStarted(t, out, "second")
	out.release <- struct{}{}

	select {
	case <-second:
	case <-time.After(wait):
		t.Fatal("replacement onEnd not called")
	}
	select {
	case <-first:
		t.Fatal("replaced utterance reported completion")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMouthCancelSuppressesOnEnd(t *testing.T) {
	out := newBlockingOutput()
	m := NewMouth(&countingBackend{}, out, inlinePoster{}, quietLog())

	ended := make(chan struct{}, 1)
	m.Speak(domain.Utterance{Text: "hello"}, func() { ended <- struct{}{} })
	expectStarted(t, out, "hello")
	m.Cancel()

	select {
	case <-ended:
		t.Fatal("cancelled utterance reported completion")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMouthReplacedBeforePlaybackStarts(t *testing.T) {
	out := newBlockingOutput()
	m := NewMouth(&countingBackend{}, out, inlinePoster{}, quietLog())

	// The replacement arrives after the stale clip passed its generation
	// check but before the output started it.
	var once sync.Once
	out.enter = func(wav string) {
		if wav == "stale" {
			once.Do(func() { m.Speak(domain.Utterance{Text: "fresh"}, nil) })
		}
	}

	m.Speak(domain.Utterance{Text: "stale"}, nil)
	expectStarted(t, out, "fresh")
	out.release <- struct{}{}
}

func TestPlaybackVolume(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0, 1},
		{0.8, 0.8},
		{1, 1},
		{1.5, 1},
		{-2, 1},
	}
	for _, tt := range tests {
		if got := playbackVolume(tt.in); got != tt.want {
			t.Errorf("playbackVolume(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestExtractPCM(t *testing.T) {
	wav := func(chunks ...[]byte) []byte {
		b := []byte("RIFF\x00\x00\x00\x00WAVE")
		for _, c := range chunks {
			b = append(b, c...)
		}
		return b
	}
	chunk := func(id string, body []byte) []byte {
		h := []byte(id)
		h = binary.LittleEndian.AppendUint32(h, uint32(len(body)))
		h = append(h, body...)
		if len(body)%2 != 0 {
			h = append(h, 0)
		}
		return h
	}
	fmtChunk := chunk("fmt ", make([]byte, 16))

	pcm, err := extractPCM(wav(fmtChunk, chunk("LIST", []byte("odd")), chunk("data", []byte{1, 2, 3, 4})))
	if err != nil {
		t.Fatal(err)
	}
	if string(pcm) != "\x01\x02\x03\x04" {
		t.Errorf("pcm = %v", pcm)
	}

	if _, err := extractPCM(wav(fmtChunk, chunk("LIST", make([]byte, 8)))); err == nil {
		t.Error("missing data chunk should fail")
	}
	if _, err := extractPCM([]byte("RIFF")); err == nil {
		t.Error("short input should fail")
	}
	bad := wav(fmtChunk, chunk("data", make([]byte, 8)))
	copy(bad[8:12], "AVI ")
	if _, err := extractPCM(bad); err == nil {
		t.Error("non-WAVE input should fail")
	}
}

func TestMouthUsesCache(t *testing.T) {
	backend := &countingBackend{}
	out := newBlockingOutput()
	m := NewMouth(backend, out, inlinePoster{}, quietLog())
	u := domain.Utterance{Text: "Dark mode enabled", Locale: "en-US", Rate: 0.9}

	for i := 0; i < 2; i++ {
		done := make(chan struct{})
		m.Speak(u, func() { close(done) })
		expectStarted(t, out, u.Text)
		out.release <- struct{}{}
		<-done
	}
	if backend.count() != 1 {
		t.Fatalf("backend called %d times, want 1", backend.count())
	}
}

func TestMouthSkipsFailedChunks(t *testing.T) {
	backend := &countingBackend{fail: "broken"}
	out := newBlockingOutput()
	m := NewMouth(backend, out, inlinePoster{}, quietLog(), WithChunkSize(10))

	done := make(chan struct{})
	m.Speak(domain.Utterance{Text: "First part. broken part. Last part."}, func() { close(done) })

	expectStarted(t, out, "First part.")
	out.release <- struct{}{}
	expectStarted(t, out, "Last part.")
	out.release <- struct{}{}

	select {
	case <-done:
	case <-time.After(wait):
		t.Fatal("onEnd not called")
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"One. Two! Three?", []string{"One. ", "Two! ", "Three?"}},
		{"no stop", []string{"no stop"}},
		{"पहला। दूसरा।", []string{"पहला। ", "दूसरा।"}},
		{"第一。第二。", []string{"第一。", "第二。"}},
	}
	for _, tt := range tests {
		got := splitSentences(tt.in)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("splitSentences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// ── ear ──────────────────────────────────────────────────────────

type recordingHandler struct {
	results chan string
	errs    chan error
	ends    chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		results: make(chan string, 8),
		errs:    make(chan error, 8),
		ends:    make(chan struct{}, 8),
	}
}

func (h *recordingHandler) OnResult(text string, final bool) {
	if final {
		h.results <- text
	}
}
func (h *recordingHandler) OnError(err error) { h.errs <- err }
func (h *recordingHandler) OnEnd()            { h.ends <- struct{}{} }

// scriptedEar returns an Ear whose clips come from the returned channel.
func scriptedEar(opts ...EarOption) (*Ear, chan string, chan error) {
	clips := make(chan string)
	fails := make(chan error)
	fake := func(ctx context.Context, _ time.Duration, _ string) (string, error) {
		select {
		case c := <-clips:
			return c, nil
		case err := <-fails:
			return "", err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	opts = append([]EarOption{withTranscriber(fake)}, opts...)
	return NewEar("whisper-cli", "model.bin", inlinePoster{}, quietLog(), opts...), clips, fails
}

func expectResult(t *testing.T, h *recordingHandler, want string) {
	t.Helper()
	select {
	case got := <-h.results:
		if got != want {
			t.Fatalf("result %q, want %q", got, want)
		}
	case <-time.After(wait):
		t.Fatalf("no result, want %q", want)
	}
}

func expectEnd(t *testing.T, h *recordingHandler) {
	t.Helper()
	select {
	case <-h.ends:
	case <-time.After(wait):
		t.Fatal("session did not end")
	}
}

func TestEarContinuousSession(t *testing.T) {
	ear, clips, _ := scriptedEar()
	h := newRecordingHandler()
	ear.Configure("en-US", true, false)

	if err := ear.Start(h); err != nil {
		t.Fatal(err)
	}
	if err := ear.Start(h); !errors.Is(err, ErrAlreadyListening) {
		t.Fatalf("second Start = %v", err)
	}

	clips <- "Go to pricing"
	expectResult(t, h, "Go to pricing")

	clips <- "[BLANK_AUDIO]"
	clips <- "about (keyboard clicking)"
	expectResult(t, h, "about")

	ear.Stop()
	clips <- "home"
	expectResult(t, h, "home")
	expectEnd(t, h)

	if err := ear.Start(h); err != nil {
		t.Fatalf("restart after end: %v", err)
	}
	ear.Abort()
}

func TestEarSingleShot(t *testing.T) {
	ear, clips, _ := scriptedEar()
	h := newRecordingHandler()
	ear.Configure("hi-IN", false, false)

	_ = ear.Start(h)
	clips <- "होम पर जाओ"
	expectResult(t, h, "होम पर जाओ")
	expectEnd(t, h)
}

func TestEarErrorEndsSession(t *testing.T) {
	ear, _, fails := scriptedEar()
	h := newRecordingHandler()

	_ = ear.Start(h)
	fails <- domain.ErrRecognizerUnavailable

	select {
	case err := <-h.errs:
		if !errors.Is(err, domain.ErrRecognizerUnavailable) {
			t.Fatalf("error = %v", err)
		}
	case <-time.After(wait):
		t.Fatal("no error delivered")
	}
	expectEnd(t, h)
}

func TestEarAbortIsSilent(t *testing.T) {
	ear, _, _ := scriptedEar()
	h := newRecordingHandler()

	_ = ear.Start(h)
	ear.Abort()

	select {
	case <-h.ends:
		t.Fatal("OnEnd delivered after abort")
	case <-h.results:
		t.Fatal("result delivered after abort")
	case <-time.After(100 * time.Millisecond):
	}
	if err := ear.Start(newRecordingHandler()); err != nil {
		t.Fatalf("Start after Abort: %v", err)
	}
	ear.Abort()
}

func TestEarSessionLength(t *testing.T) {
	ear, clips, _ := scriptedEar(WithSessionLength(0))
	h := newRecordingHandler()

	_ = ear.Start(h)
	expectEnd(t, h)
	select {
	case clips <- "late":
		t.Fatal("expired session still recording")
	default:
	}
}

func TestEarEchoGuardDropsClips(t *testing.T) {
	var mu sync.Mutex
	speaking := false
	setSpeaking := func(v bool) {
		mu.Lock()
		speaking = v
		mu.Unlock()
	}
	busy := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return speaking
	}

	clips := make(chan string)
	fake := func(ctx context.Context, _ time.Duration, _ string) (string, error) {
		select {
		case c := <-clips:
			// Playback started while this clip was being recorded.
			if strings.HasPrefix(c, "navigating") {
				setSpeaking(true)
			}
			return c, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	ear := NewEar("whisper-cli", "model.bin", inlinePoster{}, quietLog(), withTranscriber(fake), WithEchoGuard(busy))
	h := newRecordingHandler()
	_ = ear.Start(h)

	clips <- "about"
	expectResult(t, h, "about")

	clips <- "navigating to about"
	time.Sleep(50 * time.Millisecond)
	setSpeaking(false)

	clips <- "pricing"
	expectResult(t, h, "pricing")
	ear.Abort()
}

func TestEarTranscribesInConfiguredLanguage(t *testing.T) {
	langs := make(chan string, 4)
	fake := func(ctx context.Context, _ time.Duration, lang string) (string, error) {
		langs <- lang
		<-ctx.Done()
		return "", ctx.Err()
	}
	ear := NewEar("whisper-cli", "model.bin", inlinePoster{}, quietLog(), withTranscriber(fake))

	for _, tt := range []struct{ locale, want string }{
		{"hi-IN", "hi"},
		{"zh-CN", "zh"},
		{"en-US", "en"},
	} {
		ear.Configure(tt.locale, true, false)
		if err := ear.Start(newRecordingHandler()); err != nil {
			t.Fatal(err)
		}
		select {
		case got := <-langs:
			if got != tt.want {
				t.Errorf("%s: transcribed in %q, want %q", tt.locale, got, tt.want)
			}
		case <-time.After(wait):
			t.Fatalf("%s: nothing recorded", tt.locale)
		}
		ear.Abort()
	}
}

func TestWhisperLanguage(t *testing.T) {
	tests := map[string]string{
		"hi-IN":    "hi",
		"zh-CN":    "zh",
		"en-US":    "en",
		"en":       "en",
		"":         "en",
		"garbage!": "en",
	}
	for locale, want := range tests {
		if got := whisperLanguage(locale); got != want {
			t.Errorf("whisperLanguage(%q) = %q, want %q", locale, got, want)
		}
	}
}

func TestLauncherPinsLanguage(t *testing.T) {
	dir := t.TempDir()
	ear := NewEar("/opt/whisper's/whisper-cli", "model.bin", inlinePoster{}, quietLog(), WithTempDir(dir))

	path, err := ear.launcher("hi")
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "#!/bin/sh\nexec '/opt/whisper'\\''s/whisper-cli' -l 'hi' \"$@\"\n"
	if string(data) != want {
		t.Errorf("launcher =\n%s\nwant\n%s", data, want)
	}

	again, err := ear.launcher("hi")
	if err != nil || again != path {
		t.Errorf("second launcher = %q, %v; want cached %q", again, err, path)
	}
	if zh, _ := ear.launcher("zh"); zh == path {
		t.Error("languages share a launcher")
	}
}

func TestCleanTranscription(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  go to pricing \n", "go to pricing"},
		{"[BLANK_AUDIO]", ""},
		{"(silence)", ""},
		{"Thank you.", ""},
		{"about (dog barking) us", "about us"},
		{"[00:00:00.000 --> 00:00:02.000] home", "home"},
		{"होम पर जाओ", "होम पर जाओ"},
	}
	for _, tt := range tests {
		if got := cleanTranscription(tt.in); got != tt.want {
			t.Errorf("cleanTranscription(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// ── noop / captions ──────────────────────────────────────────────

type recordingSynth struct {
	spoken  []domain.Utterance
	cancels int
}

func (s *recordingSynth) Speak(u domain.Utterance, onEnd func()) { s.spoken = append(s.spoken, u) }
func (s *recordingSynth) Cancel()                                { s.cancels++ }

func TestCaptioned(t *testing.T) {
	inner := &recordingSynth{}
	var captions []string
	c := NewCaptioned(inner, func(text string) { captions = append(captions, text) })

	c.Speak(domain.Utterance{Text: "\x1b[1m[Info] Navigating to about\x1b[0m"}, nil)
	c.Cancel()

	if len(inner.spoken) != 1 || inner.spoken[0].Text != "Navigating to about" {
		t.Fatalf("spoken = %+v", inner.spoken)
	}
	if len(captions) != 2 || captions[1] != "" || inner.cancels != 1 {
		t.Fatalf("captions = %q cancels = %d", captions, inner.cancels)
	}
}

func TestNoOp(t *testing.T) {
	n := NewNoOp(inlinePoster{}, quietLog())
	ended := false
	n.Speak(domain.Utterance{Text: "hi"}, func() { ended = true })
	if !ended {
		t.Error("no-op speech did not complete")
	}
	if err := n.Start(newRecordingHandler()); !errors.Is(err, domain.ErrRecognizerUnavailable) {
		t.Errorf("Start = %v", err)
	}
}
