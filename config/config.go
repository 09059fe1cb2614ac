package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type EngineConfig struct {
	Kind             string `yaml:"kind"` // exec, stream, fake
	Command          string `yaml:"command"`
	ModelDir         string `yaml:"model_dir"`
	Model            string `yaml:"model"`
	Language         string `yaml:"language"`
	SampleRate       int    `yaml:"sample_rate"`
	SilenceTimeoutMS int    `yaml:"silence_timeout_ms"`
	QueueSize        int    `yaml:"queue_size"`
	LoadTimeoutMS    int    `yaml:"load_timeout_ms"`
}

type StreamConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

type AudioConfig struct {
	Device   string `yaml:"device"`
	WAV      string `yaml:"wav"`
	Realtime bool   `yaml:"realtime"`
	Cues     bool   `yaml:"cues"` // beep when dictation starts, stops or fails
}

type MicrophoneConfig struct {
	Granted bool `yaml:"granted"`
}

type HotkeyConfig struct {
	Enabled bool `yaml:"enabled"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	Engine     EngineConfig     `yaml:"engine"`
	Stream     StreamConfig     `yaml:"stream"`
	Audio      AudioConfig      `yaml:"audio"`
	Microphone MicrophoneConfig `yaml:"microphone"`
	Hotkey     HotkeyConfig     `yaml:"hotkey"`
	Log        LogConfig        `yaml:"log"`
}

func Default() Config {
	return Config{
		Engine: EngineConfig{
			Kind:          "exec",
			Command:       "vosk-stream",
			ModelDir:      defaultModelDir(),
			Model:         "vosk-model-small-es-0.42",
			Language:      "es",
			SampleRate:    16000,
			QueueSize:     64,
			LoadTimeoutMS: 60000,
		},
		Stream: StreamConfig{
			URL: "wss://api.deepgram.com/v1/listen",
		},
		Audio: AudioConfig{
			Realtime: true,
			Cues:     true,
		},
		Microphone: MicrophoneConfig{
			Granted: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func (e EngineConfig) SilenceTimeout() time.Duration {
	return time.Duration(e.SilenceTimeoutMS) * time.Millisecond
}

func (e EngineConfig) LoadTimeout() time.Duration {
	return time.Duration(e.LoadTimeoutMS) * time.Millisecond
}

func xdgDir(env string, fallback ...string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(append([]string{home}, fallback...)...)
}

func defaultModelDir() string {
	base := xdgDir("XDG_DATA_HOME", ".local", "share")
	if base == "" {
		return "models"
	}
	return filepath.Join(base, "dictado", "models")
}

// DefaultPath is $XDG_CONFIG_HOME/dictado/config.yaml.
func DefaultPath() string {
	base := xdgDir("XDG_CONFIG_HOME", ".config")
	if base == "" {
		return ""
	}
	return filepath.Join(base, "dictado", "config.yaml")
}

// Resolve picks the config file to load: the flag value when set, else the
// default path if a file exists there, else none.
func Resolve(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	p := DefaultPath()
	if p == "" {
		return ""
	}
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	cfg.Engine.ModelDir = expandHome(cfg.Engine.ModelDir)
	cfg.Audio.WAV = expandHome(cfg.Audio.WAV)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Engine.Kind, "DICTADO_ENGINE")
	overrideString(&cfg.Engine.Command, "DICTADO_ENGINE_COMMAND")
	overrideString(&cfg.Engine.ModelDir, "DICTADO_MODEL_DIR")
	overrideString(&cfg.Engine.Model, "DICTADO_MODEL")
	overrideString(&cfg.Engine.Language, "DICTADO_LANGUAGE")
	overrideInt(&cfg.Engine.SampleRate, "DICTADO_SAMPLE_RATE")
	overrideInt(&cfg.Engine.SilenceTimeoutMS, "DICTADO_SILENCE_TIMEOUT_MS")
	overrideInt(&cfg.Engine.QueueSize, "DICTADO_QUEUE_SIZE")
	overrideInt(&cfg.Engine.LoadTimeoutMS, "DICTADO_LOAD_TIMEOUT_MS")
	overrideString(&cfg.Stream.URL, "DICTADO_STREAM_URL")
	overrideString(&cfg.Stream.APIKey, "DICTADO_STREAM_API_KEY")
	overrideString(&cfg.Audio.Device, "DICTADO_AUDIO_DEVICE")
	overrideString(&cfg.Audio.WAV, "DICTADO_AUDIO_WAV")
	overrideBool(&cfg.Audio.Realtime, "DICTADO_AUDIO_REALTIME")
	overrideBool(&cfg.Audio.Cues, "DICTADO_AUDIO_CUES")
	overrideBool(&cfg.Microphone.Granted, "DICTADO_MICROPHONE_GRANTED")
	overrideBool(&cfg.Hotkey.Enabled, "DICTADO_HOTKEY_ENABLED")
	overrideString(&cfg.Log.Level, "DICTADO_LOG_LEVEL")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// Validate is run by Load and again by callers after applying flags.
func (cfg Config) Validate() error {
	switch cfg.Engine.Kind {
	case "exec":
		if strings.TrimSpace(cfg.Engine.Command) == "" {
			return errors.New("engine.command must be set when engine.kind=exec")
		}
		if cfg.Engine.ModelDir == "" {
			return errors.New("engine.model_dir must not be empty when engine.kind=exec")
		}
	case "stream":
		if cfg.Stream.URL == "" {
			return errors.New("stream.url must be set when engine.kind=stream")
		}
	case "fake":
	default:
		return errors.New("engine.kind must be one of exec|stream|fake")
	}
	if cfg.Engine.SampleRate != 16000 {
		return errors.New("engine.sample_rate must be 16000")
	}
	if cfg.Engine.SilenceTimeoutMS < 0 {
		return errors.New("engine.silence_timeout_ms must be >= 0")
	}
	if cfg.Engine.QueueSize <= 0 {
		return errors.New("engine.queue_size must be >= 1")
	}
	if cfg.Engine.LoadTimeoutMS < 0 {
		return errors.New("engine.load_timeout_ms must be >= 0")
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("log.level must be one of debug|info|warn|error")
	}
	return nil
}
