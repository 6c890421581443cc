package main

import (
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"vox/audio"
	"vox/clipboard"
	"vox/config"
	"vox/doctor"
	"vox/log"
	"vox/render"
	"vox/shutdown"
	"vox/transcriber"
)

var version = "dev"

func main() {
	cfg, err := config.Parse(os.Args[1:], nil, os.Stderr)
	if errors.Is(err, config.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if config.IsConfigurationError(err) {
			fmt.Fprintln(os.Stderr, "Usage: vox [flags] <voice-message>")
		}
		os.Exit(2)
	}

	if cfg.Version {
		fmt.Printf("vox %s\n", version)
		os.Exit(0)
	}

	// Resolve log directory early
	logPath, err := log.ResolveDir(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	initCrashLog()

	if cfg.Profile != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", cfg.Profile)
			if err := http.ListenAndServe(cfg.Profile, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if cfg.Doctor {
		os.Exit(doctor.Run(doctor.Options{
			File:      cfg.File,
			Provider:  cfg.Provider,
			Language:  cfg.Language,
			Keys:      cfg.Keys,
			StorePath: cfg.StorePath,
			Device:    cfg.Device,
		}))
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	if cfg.Test {
		runTestMode(cfg)
		return
	}
	os.Exit(run(cfg))
}

func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

// newTranscriber returns nil when transcription is disabled.
func newTranscriber(cfg config.Config) (transcriber.Transcriber, error) {
	if !cfg.TranscriptionEnabled() {
		return nil, nil
	}
	if cfg.Provider == config.ProviderFake {
		return transcriber.NewFake(defaultFakeTranscript, nil), nil
	}
	tr, err := transcriber.New(cfg.Provider, cfg.Keys)
	if err != nil {
		return nil, err
	}
	tr.SetLanguage(cfg.Language)
	return tr, nil
}

func run(cfg config.Config) int {
	defer log.Close()

	theme, err := render.ThemeByName(cfg.Theme)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	tr, err := newTranscriber(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	provider := "none"
	if tr != nil {
		provider = tr.Name()
	}
	log.SessionStart(provider, "flac", cfg.Language)

	ctx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Printf("Error initializing audio context: %v\n", err)
		return 1
	}
	defer ctx.Close()

	a := newApp(cfg, ctx, tr, tuiSink{})
	defer a.Close()

	output, err := selectDevice(ctx, audio.OutputKind, cfg.Output, cfg.Setup)
	if errors.Is(err, audio.ErrSelectionAborted) {
		return 130
	}
	a.output = output
	if cfg.Record {
		device, err := selectDevice(ctx, audio.CaptureKind, cfg.Device, cfg.Setup)
		if errors.Is(err, audio.ErrSelectionAborted) {
			return 130
		}
		a.device = device
	}

	clipboard.SetFallback(os.Stdout)

	tuiMu.Lock()
	tuiProgram = NewTUIProgram(a, theme)
	p := tuiProgram
	tuiMu.Unlock()

	sigCh := make(chan os.Signal, 1)
	shutdown.Notify(sigCh)
	defer shutdown.Stop(sigCh)
	go func() {
		if _, ok := <-sigCh; ok {
			p.Quit()
		}
	}()

	if cfg.File != "" {
		a.Open(cfg.File, render.CellVoiceMessage)
	}
	if cfg.Record {
		if err := a.StartRecording(); err != nil {
			log.Errorf("recording error: %v", err)
		}
	}

	if _, err := p.Run(); err != nil {
		log.Errorf("TUI error: %v", err)
		return 1
	}
	return 0
}

// selectDevice resolves the device of one kind, prompting when setup is
// set. Failures other than an aborted prompt fall back to the default.
func selectDevice(ctx audio.Context, kind audio.DeviceKind, name string, setup bool) (*audio.DeviceInfo, error) {
	var (
		device *audio.DeviceInfo
		err    error
	)
	if setup {
		device, err = audio.SelectDevice(ctx, kind)
	} else {
		device, err = audio.FindDevice(ctx, kind, name)
	}
	if err != nil {
		if errors.Is(err, audio.ErrSelectionAborted) {
			return nil, err
		}
		log.Warnf("%s device selection failed: %v", kind, err)
		fmt.Printf("Warning: %s device selection failed: %v\n", kind, err)
		fmt.Printf("Falling back to default %s device\n", kind)
		return nil, nil
	}
	if device != nil {
		log.Info(fmt.Sprintf("%s device: %s", kind, device.Name))
	}
	return device, nil
}
