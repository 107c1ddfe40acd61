// VoicePay — voice controlled navigation for the VoicePay site.
//
// Usage:
//
//	voicepay [-verbose] [-quiet] [-tts azure|google|none] [-no-voice]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"time"

	"github.com/hammamikhairi/voicepay/internal/autoread"
	"github.com/hammamikhairi/voicepay/internal/config"
	"github.com/hammamikhairi/voicepay/internal/display"
	"github.com/hammamikhairi/voicepay/internal/domain"
	"github.com/hammamikhairi/voicepay/internal/engine"
	"github.com/hammamikhairi/voicepay/internal/logger"
	"github.com/hammamikhairi/voicepay/internal/phrases"
	"github.com/hammamikhairi/voicepay/internal/site"
	"github.com/hammamikhairi/voicepay/internal/speech"
	"github.com/hammamikhairi/voicepay/internal/storage"
	"github.com/hammamikhairi/voicepay/internal/timer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	verbose := flag.Bool("verbose", false, "enable verbose/debug logging")
	quiet := flag.Bool("quiet", false, "disable all logging")
	logFile := flag.String("log-file", ".voicepay-logs/voicepay.log", "file to write logs to (use \"stderr\" to log to console)")
	tts := flag.String("tts", "", "speech backend: azure, google or none (default: azure when keys are set, else google)")
	db := flag.String("db", "", "preference database path, or \"memory\" (default from "+config.EnvDB+")")
	diskCache := flag.Bool("disk-cache", true, "persist TTS audio cache to disk (reads from disk even when false)")
	cacheDir := flag.String("cache-dir", ".voicepay-cache", "directory for persistent TTS audio")
	noVoice := flag.Bool("no-voice", false, "disable voice input; typed commands still work")
	whisperBin := flag.String("whisper-bin", cfg.WhisperBin, "path to the whisper-cpp CLI binary")
	whisperModel := flag.String("whisper-model", cfg.WhisperModel, "path to the Whisper GGML model file")
	chunkSecs := flag.Int("chunk-secs", int(speech.DefaultChunkDuration/time.Second), "seconds per voice recording clip")
	flag.Parse()

	if err := cfg.Override(*tts, *db); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logLevel := logger.LevelNormal
	if *verbose {
		logLevel = logger.LevelVerbose
	}
	if *quiet {
		logLevel = logger.LevelOff
	}

	// Logs go to a file by default so the terminal UI stays clean.
	var logOut io.Writer = os.Stderr
	if *logFile != "" && *logFile != "stderr" {
		if dir := filepath.Dir(*logFile); dir != "" && dir != "." {
			os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", *logFile, err)
		} else {
			logOut = f
			defer f.Close()
		}
	}

	// Third-party libs (whisper, beep) log through the standard package.
	stdlog.SetOutput(logOut)
	stdlog.SetFlags(stdlog.Ltime)

	log := logger.New(logLevel, logOut)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catalog, err := phrases.Load(log.Named("phrases"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	store, closeStore := openStore(cfg.DBPath, log.Named("storage"))
	defer closeStore()

	loop := timer.New(log.Named("loop"))
	loop.Start(ctx)

	router := site.NewRouter(site.Pages[0].Path, log.Named("router"))
	ui := display.NewUI(languageOptions(catalog))

	synth, busy := buildSynthesizer(ctx, cfg, catalog, loop, *cacheDir, *diskCache, log.Named("tts"))
	spoken := speech.NewCaptioned(synth, ui.PrintSpoken)

	var recognizer domain.Recognizer
	var mic domain.Microphone
	if ear := buildEar(*noVoice, *whisperBin, *whisperModel, *chunkSecs, busy, loop, log.Named("ear")); ear != nil {
		recognizer = ear
		mic = speech.NewMicrophone(log.Named("mic"))
	} else {
		// Without a recognizer the session still runs on typed commands.
		recognizer = speech.NewNoOp(loop, log.Named("ear"))
		mic = speech.Granted{}
	}

	app := &cliApp{router: router, ui: ui, log: log}
	app.walker = autoread.New(spoken, router, loop, log.Named("autoread"),
		autoread.WithOnChange(func(bool) { app.render() }),
	)

	// Announcements interrupt page narration, which then resumes.
	app.engine = engine.New(engine.Ports{
		Languages:  catalog,
		Recognizer: recognizer,
		Speech:     app.walker.Yield(spoken),
		Microphone: mic,
		Store:      store,
		Navigator:  router,
		Presenter:  ui,
		Scheduler:  loop,
	}, log.Named("engine"))
	eng := app.engine

	router.Subscribe(func(route domain.Route) {
		app.walker.OnRoute(route)
		app.render()
	})
	eng.Subscribe(func(engine.Snapshot) { app.render() })

	fmt.Println(display.RenderBanner(domain.ThemeDark))
	fmt.Println()

	go func() {
		ui.WaitReady()
		loop.Post(func() {
			eng.Init(ctx)
			app.render()
		})
		for {
			select {
			case <-ctx.Done():
				return
			case <-ui.QuitChan():
				return
			case cmd := <-ui.Commands():
				loop.Post(func() { app.handle(ctx, cmd) })
			}
		}
	}()

	// Bubble Tea owns the terminal and blocks until quit.
	if err := ui.Run(); err != nil {
		log.Error("display: %v", err)
	}

	closed := make(chan struct{})
	loop.Post(func() {
		app.walker.Close()
		eng.Close()
		close(closed)
	})
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		log.Warn("shutdown: event loop did not drain")
	}
	loop.Stop()
	cancel()
}

type cliApp struct {
	engine *engine.Engine
	router *site.Router
	walker *autoread.Walker
	ui     *display.UI
	log    *logger.Logger
}

// render pushes the current session to the UI. Runs on the event loop.
func (a *cliApp) render() {
	if a.engine == nil || a.walker == nil {
		return
	}
	a.ui.Render(display.ViewState{
		Session: a.engine.Snapshot(),
		Route:   a.router.Current(),
		Page:    a.router.Page(),
		Reading: a.walker.Reading(),
	})
}

// handle runs one typed command. Runs on the event loop.
func (a *cliApp) handle(ctx context.Context, cmd display.Command) {
	a.log.Debug("command: kind=%d text=%q", cmd.Kind, cmd.Text)

	switch cmd.Kind {
	case display.CmdTranscript:
		a.engine.HandleTranscript(cmd.Text)
	case display.CmdConsent:
		a.engine.GrantConsent()
		if lang, ok := a.engine.PreferredLanguage(ctx); ok {
			a.ui.PrintHint(fmt.Sprintf("last used language: %s (/lang %s)", lang, lang))
		}
	case display.CmdDecline:
		a.engine.DeclineConsent()
		a.ui.PrintHint("voice navigation stays off. Type /consent to change your mind.")
	case display.CmdLanguage:
		if err := a.engine.SelectLanguage(ctx, cmd.Language); err != nil {
			a.ui.PrintUrgent(err.Error())
		}
	case display.CmdVoice:
		a.engine.ToggleVoice()
	case display.CmdTheme:
		a.engine.ToggleTheme(ctx, "")
	case display.CmdRead:
		a.walker.Toggle()
	case display.CmdClear:
		a.walker.Close()
		a.engine.ClearVoiceData(ctx)
		a.ui.PrintHint("voice data cleared")
	case display.CmdGo:
		a.router.Navigate(cmd.Route)
	case display.CmdHelp:
		a.ui.PrintHint(display.HelpText)
	}
}

// openStore opens the SQLite preference store, falling back to memory
// when path is "memory" or the database cannot be opened.
func openStore(path string, log *logger.Logger) (domain.PreferenceStore, func()) {
	if path == config.MemoryDB {
		return storage.NewMemoryStore(log), func() {}
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		os.MkdirAll(dir, 0o755)
	}
	db, err := storage.OpenSQLite(path, log)
	if err != nil {
		log.Error("preferences not persisted: %v", err)
		return storage.NewMemoryStore(log), func() {}
	}
	return db, func() {
		if err := db.Close(); err != nil {
			log.Error("close store: %v", err)
		}
	}
}

func languageOptions(catalog *phrases.Catalog) []display.LanguageOption {
	var opts []display.LanguageOption
	for _, lang := range domain.Languages {
		cfg, err := catalog.Config(lang)
		if err != nil {
			continue
		}
		opts = append(opts, display.LanguageOption{Code: lang, Name: cfg.Name})
	}
	return opts
}

// buildSynthesizer picks the speech backend. The second result reports
// whether audio is playing and feeds the recognizer's echo guard; it is
// nil when nothing is ever audible.
func buildSynthesizer(ctx context.Context, cfg *config.Config, catalog *phrases.Catalog, loop *timer.Dispatcher, cacheDir string, diskCache bool, log *logger.Logger) (domain.Synthesizer, func() bool) {
	switch cfg.SpeechBackend() {
	case config.TTSAzure:
		player, err := speech.NewPlayer(log)
		if err != nil {
			log.Error("audio player init failed, speech disabled: %v", err)
			return speech.NewNoOp(loop, log), nil
		}
		mouth := speech.NewMouth(speech.NewAzureClient(cfg.AzureKey, cfg.AzureRegion, log), player, loop, log,
			speech.WithCacheDir(filepath.Join(cacheDir, "azure")),
			speech.WithDiskWrite(diskCache),
		)
		mouth.Prefetch(ctx, welcomeLines(catalog)...)
		log.Info("TTS enabled (azure, region=%s)", cfg.AzureRegion)
		return mouth, mouth.IsSpeaking

	case config.TTSGoogle:
		voice := speech.NewGoogleVoice(filepath.Join(cacheDir, "google"), loop, log)
		log.Info("TTS enabled (google translate)")
		return voice, voice.IsSpeaking

	default:
		log.Info("TTS disabled")
		return speech.NewNoOp(loop, log), nil
	}
}

// welcomeLines are the first utterances of every language.
func welcomeLines(catalog *phrases.Catalog) []domain.Utterance {
	var lines []domain.Utterance
	for _, lang := range domain.Languages {
		cfg, err := catalog.Config(lang)
		if err != nil {
			continue
		}
		lines = append(lines, domain.Utterance{
			Text:   cfg.Messages.Welcome,
			Locale: cfg.SynthesisLocale,
			Rate:   0.9,
			Pitch:  1,
			Volume: 0.8,
		})
	}
	return lines
}

// buildEar returns nil when voice input is off or no model is installed.
func buildEar(disabled bool, bin, model string, chunkSecs int, busy func() bool, loop *timer.Dispatcher, log *logger.Logger) *speech.Ear {
	if disabled {
		log.Info("voice input disabled by flag")
		return nil
	}
	if _, err := os.Stat(model); err != nil {
		log.Warn("voice input disabled: whisper model not found at %s", model)
		return nil
	}
	os.MkdirAll(".voicepay-stt", 0o755)

	opts := []speech.EarOption{
		speech.WithChunkDuration(time.Duration(chunkSecs) * time.Second),
	}
	if busy != nil {
		opts = append(opts, speech.WithEchoGuard(busy))
	}
	log.Info("voice input enabled (bin=%s, model=%s, chunk=%ds)", bin, model, chunkSecs)
	return speech.NewEar(bin, model, loop, log, opts...)
}
