package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"dictado/audio"
	"dictado/clipboard"
	"dictado/config"
	"dictado/recognizer"
)

// errSkipped marks a check that does not apply to the current setup.
var errSkipped = errors.New("skipped")

type Check struct {
	Name     string
	Optional bool // a failure is reported as a warning
	Run      func(ctx context.Context) (string, error)
}

// Run executes checks in order and returns an exit code (0=all required
// checks pass, 1=any fail). A required failure stops the remaining checks.
func Run(ctx context.Context, w io.Writer, checks []Check) int {
	fmt.Fprintln(w, "dictado doctor - system diagnostics")
	fmt.Fprintln(w, "===================================")

	allPass := true
	for i, c := range checks {
		fmt.Fprintf(w, "\n[%d/%d] %s\n", i+1, len(checks), c.Name)
		if !allPass {
			fmt.Fprintln(w, "  SKIP: earlier check failed")
			continue
		}
		detail, err := c.Run(ctx)
		switch {
		case errors.Is(err, errSkipped):
			fmt.Fprintf(w, "  SKIP: %s\n", detail)
		case err != nil && c.Optional:
			fmt.Fprintf(w, "  WARN: %v\n", err)
		case err != nil:
			fmt.Fprintf(w, "  FAIL: %v\n", err)
			allPass = false
		default:
			fmt.Fprintf(w, "  PASS: %s\n", detail)
		}
	}

	fmt.Fprintln(w)
	if allPass {
		fmt.Fprintln(w, "All checks passed!")
		return 0
	}
	fmt.Fprintln(w, "Some checks failed. See details above.")
	return 1
}

// Checks returns the standard diagnostics for cfg. src may be nil when
// the engine captures nothing.
func Checks(cfg config.Config, eng recognizer.Engine, src audio.Context) []Check {
	return []Check{
		{Name: "Configuration", Run: func(context.Context) (string, error) {
			if err := cfg.Validate(); err != nil {
				return "", err
			}
			return fmt.Sprintf("engine=%s model=%s", cfg.Engine.Kind, cfg.Engine.Model), nil
		}},
		{Name: "Audio input", Run: func(context.Context) (string, error) {
			return checkInput(cfg, src)
		}},
		{Name: "Recording", Run: func(ctx context.Context) (string, error) {
			if src == nil {
				return "engine captures no audio", errSkipped
			}
			return checkRecording(ctx, src, cfg.Audio.Device, time.Second)
		}},
		{Name: "Model", Run: func(ctx context.Context) (string, error) {
			return checkModel(ctx, eng, cfg.Engine.Model, cfg.Engine.LoadTimeout())
		}},
		{Name: "Clipboard", Optional: true, Run: func(context.Context) (string, error) {
			if !clipboard.Available() {
				return "", errors.New("no system clipboard; copy keeps text in memory only")
			}
			return "system clipboard available", nil
		}},
	}
}

func checkInput(cfg config.Config, src audio.Context) (string, error) {
	if cfg.Audio.WAV != "" {
		if _, err := os.Stat(cfg.Audio.WAV); err != nil {
			return "", err
		}
		return "reading " + cfg.Audio.WAV, nil
	}
	if src == nil {
		return "engine captures no audio", errSkipped
	}
	devices, err := src.Devices()
	if err != nil {
		return "", fmt.Errorf("cannot list devices: %w", err)
	}
	if len(devices) == 0 {
		return "", errors.New("no capture devices found")
	}
	dev, err := audio.FindDevice(src, cfg.Audio.Device)
	if err != nil {
		return "", err
	}
	if dev == nil {
		return fmt.Sprintf("%d device(s), using system default", len(devices)), nil
	}
	return fmt.Sprintf("%d device(s), using %s", len(devices), dev.Name), nil
}

// checkRecording captures for d and reports how much audio arrived.
func checkRecording(ctx context.Context, src audio.Context, deviceName string, d time.Duration) (string, error) {
	dev, err := audio.FindDevice(src, deviceName)
	if err != nil {
		return "", err
	}
	capture, err := src.NewCapture(dev, audio.DefaultCaptureConfig())
	if err != nil {
		return "", err
	}
	defer capture.Close()

	var (
		mu    sync.Mutex
		total int
	)
	capture.SetCallback(func(data []byte, _ uint32) {
		mu.Lock()
		total += len(data)
		mu.Unlock()
	})
	if err := capture.Start(); err != nil {
		return "", err
	}

	timer := time.NewTimer(d)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
	}
	capture.Stop()
	capture.ClearCallback()

	mu.Lock()
	defer mu.Unlock()
	if total == 0 {
		return "", errors.New("no audio captured")
	}
	return fmt.Sprintf("captured %.1f KB from %s", float64(total)/1024, capture.DeviceName()), nil
}

func checkModel(ctx context.Context, eng recognizer.Engine, id string, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	m, err := eng.Load(ctx, id)
	if err != nil {
		return "", err
	}
	elapsed := time.Since(start)
	if err := m.Close(); err != nil {
		return "", fmt.Errorf("close: %w", err)
	}
	return fmt.Sprintf("%s engine loaded %s in %s", eng.Name(), id, elapsed.Round(time.Millisecond)), nil
}
