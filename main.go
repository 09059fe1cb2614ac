package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"golang.org/x/term"

	"dictado/audio"
	"dictado/beep"
	"dictado/clipboard"
	"dictado/config"
	"dictado/dictation"
	"dictado/doctor"
	"dictado/hotkey"
	"dictado/log"
	"dictado/recognizer"
	"dictado/shutdown"
)

var version = "dev"

type cliFlags struct {
	engine string
	model  string
	wav    string
	device string
}

// applyFlags overrides configuration values with the ones set on the
// command line.
func applyFlags(cfg *config.Config, f cliFlags) {
	if f.engine != "" {
		cfg.Engine.Kind = f.engine
	}
	if f.model != "" {
		cfg.Engine.Model = f.model
	}
	if f.wav != "" {
		cfg.Audio.WAV = f.wav
	}
	if f.device != "" {
		cfg.Audio.Device = f.device
	}
}

func run() int {
	configFlag := flag.String("config", "", "config file path (default: $XDG_CONFIG_HOME/dictado/config.yaml)")
	engineFlag := flag.String("engine", "", "recognition engine: exec, stream or fake")
	modelFlag := flag.String("model", "", "model id to load")
	wavFlag := flag.String("wav", "", "read audio from a 16 kHz mono WAV file instead of the microphone")
	deviceFlag := flag.String("device", "", "use named microphone device")
	setupFlag := flag.Bool("setup", false, "select microphone device interactively")
	headlessFlag := flag.Bool("headless", false, "read commands from stdin instead of running the terminal UI")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	versionFlag := flag.Bool("version", false, "print version and exit")
	doctorFlag := flag.Bool("doctor", false, "run system diagnostics and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("dictado %s\n", version)
		return 0
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	if crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
		crashFile.Close()
	}

	cfg, err := config.Load(config.Resolve(*configFlag))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	applyFlags(&cfg, cliFlags{engine: *engineFlag, model: *modelFlag, wav: *wavFlag, device: *deviceFlag})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if err := log.SetLevel(cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	if *setupFlag && cfg.Audio.Device == "" && cfg.Audio.WAV == "" {
		name, err := pickDevice()
		if errors.Is(err, audio.ErrSelectionCancelled) {
			return 0
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		cfg.Audio.Device = name
	}

	src, err := openSource(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		return 1
	}
	if src != nil {
		defer src.Close()
	}

	eng, fake, err := newEngine(cfg, src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	if *doctorFlag {
		return doctor.Run(ctx, os.Stdout, doctor.Checks(cfg, eng, src))
	}

	ctl := dictation.New(dictation.Options{
		Engine:  eng,
		ModelID: cfg.Engine.Model,
		Session: recognizer.SessionConfig{
			SampleRate:     cfg.Engine.SampleRate,
			Language:       cfg.Engine.Language,
			SilenceTimeout: cfg.Engine.SilenceTimeout(),
		},
		Permission:  permissionGate(cfg, src),
		Clipboard:   clipboard.Default(),
		QueueSize:   cfg.Engine.QueueSize,
		LoadTimeout: cfg.Engine.LoadTimeout(),
	})
	defer ctl.Close()

	headless := *headlessFlag || !term.IsTerminal(int(os.Stdin.Fd()))

	if cfg.Audio.Cues && !headless {
		updates, unsubscribe := ctl.Subscribe()
		defer unsubscribe()
		go playCues(ctx, updates, ctl.Snapshot(), beep.Play)
	} else {
		beep.Disable()
	}

	if cfg.Hotkey.Enabled && !headless {
		hk := hotkey.New()
		if err := hk.Register(); err != nil {
			log.Warnf("hotkey %s unavailable: %v", hotkey.Describe(), err)
		} else {
			go hotkey.Listen(ctx, hk, ctl.ToggleListening)
		}
	}

	if headless {
		done := make(chan error, 1)
		go func() { done <- runHeadless(ctl, fake, os.Stdin, os.Stdout) }()
		select {
		case err := <-done:
			if err != nil {
				log.Errorf("headless: %v", err)
				return 1
			}
		case <-ctx.Done():
		}
		return 0
	}

	p, cancel := newTUIProgram(ctl)
	defer cancel()
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	if _, err := p.Run(); err != nil {
		log.Errorf("tui: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func pickDevice() (string, error) {
	ctx, err := audio.NewContext()
	if err != nil {
		return "", fmt.Errorf("initializing audio: %w", err)
	}
	defer ctx.Close()
	dev, err := audio.SelectDevice(ctx)
	if err != nil {
		return "", err
	}
	return dev.Name, nil
}

// openSource returns the audio context sessions capture from. The fake
// engine needs none unless a WAV file is configured.
func openSource(cfg config.Config) (audio.Context, error) {
	if cfg.Audio.WAV != "" {
		return audio.NewWAVContext(cfg.Audio.WAV, cfg.Audio.Realtime)
	}
	if cfg.Engine.Kind == "fake" {
		return nil, nil
	}
	return audio.NewContext()
}

func newEngine(cfg config.Config, src audio.Context) (recognizer.Engine, *recognizer.Fake, error) {
	switch cfg.Engine.Kind {
	case "exec":
		eng, err := recognizer.NewExec(recognizer.ExecConfig{
			Command:  cfg.Engine.Command,
			ModelDir: cfg.Engine.ModelDir,
			Device:   cfg.Audio.Device,
		}, src)
		return eng, nil, err
	case "stream":
		return recognizer.NewStream(recognizer.StreamConfig{
			URL:    cfg.Stream.URL,
			APIKey: cfg.Stream.APIKey,
			Device: cfg.Audio.Device,
		}, src), nil, nil
	case "fake":
		fake := recognizer.NewFake()
		return fake, fake, nil
	}
	return nil, nil, fmt.Errorf("unknown engine %q", cfg.Engine.Kind)
}

// permissionGate grants the microphone when the configuration allows it and
// there is something to capture from.
func permissionGate(cfg config.Config, src audio.Context) dictation.PermissionGate {
	return func() bool {
		if !cfg.Microphone.Granted {
			return false
		}
		if cfg.Audio.WAV != "" || src == nil {
			return true
		}
		devices, err := src.Devices()
		if err != nil {
			log.Warnf("enumerating devices: %v", err)
			return false
		}
		return len(devices) > 0
	}
}
