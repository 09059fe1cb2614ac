package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog        zerolog.Logger
	diagFile       *os.File
	transcriptFile *os.File
	logMu          sync.Mutex
	logReady       bool
	pid            int
	dir            string
	level          = zerolog.InfoLevel
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absPath(flagPath)
	}

	// Priority 2: DICTADO_LOG_PATH environment variable
	if envPath := os.Getenv("DICTADO_LOG_PATH"); envPath != "" {
		return absPath(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

// SetLevel sets the minimum diagnostics level ("debug", "info", "warn",
// "error"). It applies to loggers created by later Init calls as well.
func SetLevel(name string) error {
	l, err := zerolog.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("log level %q: %w", name, err)
	}
	if l == zerolog.NoLevel {
		l = zerolog.InfoLevel
	}
	logMu.Lock()
	defer logMu.Unlock()
	level = l
	if logReady {
		diagLog = diagLog.Level(l)
	}
	return nil
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	transcriptPath := filepath.Join(dir, "transcript_log.txt")
	transcriptFile, err = os.OpenFile(transcriptPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).Level(level).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcriptFile != nil {
		transcriptFile.Close()
		transcriptFile = nil
	}
	logReady = false
}

func Debugf(format string, args ...any) {
	if logReady {
		diagLog.Debug().Msg(fmt.Sprintf(format, args...))
	}
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// TranscriptText appends one merged final fragment to transcript_log.txt.
func TranscriptText(text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	if transcriptFile == nil {
		return
	}
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	transcriptFile.WriteString(line)
}

func SessionStart(engine, model string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("engine", engine).
		Str("model", model).
		Msg("session_start")
}

func ModelLoaded(model string, elapsed time.Duration) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("model", model).
		Float64("load_ms", float64(elapsed.Microseconds())/1000).
		Msg("model_loaded")
}

func ModelFailed(model string, err error) {
	if !logReady {
		return
	}
	diagLog.Error().
		Str("model", model).
		Err(err).
		Msg("model_failed")
}

func ListeningStart(sessionID string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", sessionID).
		Msg("listening_start")
}

// ListeningStop records why a listening run ended ("user", "final",
// "timeout", "error", "shutdown") and how many fragments it merged.
func ListeningStop(sessionID, reason string, fragments int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", sessionID).
		Str("reason", reason).
		Int("fragments", fragments).
		Msg("listening_stop")
}

func RecognitionError(sessionID string, err error) {
	if !logReady {
		return
	}
	diagLog.Error().
		Str("session", sessionID).
		Err(err).
		Msg("recognition_error")
}

func SessionEnd(fragments int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("fragments", fragments).
		Msg("session_end")
}
