// Package config resolves runtime settings from an optional YAML file,
// TVVOICE_* environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "TVVOICE"

// Config stores runtime configuration.
type Config struct {
	Listings   ListingsConfig   `mapstructure:"listings"`
	Deepgram   DeepgramConfig   `mapstructure:"deepgram"`
	Audio      AudioConfig      `mapstructure:"audio"`
	Speech     SpeechConfig     `mapstructure:"speech"`
	Dialogue   DialogueConfig   `mapstructure:"dialogue"`
	Vocabulary VocabularyConfig `mapstructure:"vocabulary"`
	Rules      RulesConfig      `mapstructure:"rules"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

type ListingsConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RefreshSchedule string        `mapstructure:"refresh_schedule"`
}

type DeepgramConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	APIBaseURL      string        `mapstructure:"api_base"`
	Model           string        `mapstructure:"model"`
	Language        string        `mapstructure:"language"`
	SmartFormat     bool          `mapstructure:"smart_format"`
	Endpointing     time.Duration `mapstructure:"endpointing"`
	UtteranceEnd    time.Duration `mapstructure:"utterance_end"`
	Keywords        []string      `mapstructure:"keywords"`
	MaxSession      time.Duration `mapstructure:"max_session"`
	FinalizeTimeout time.Duration `mapstructure:"finalize_timeout"`
}

type AudioConfig struct {
	RecorderCommand string `mapstructure:"recorder_command"`
	InputFormat     string `mapstructure:"input_format"`
	InputDevice     string `mapstructure:"input_device"`
	SampleRate      int    `mapstructure:"sample_rate"`
	Channels        int    `mapstructure:"channels"`
	ChunkSize       int    `mapstructure:"chunk_size"`
}

type SpeechConfig struct {
	Command        string  `mapstructure:"command"`
	Voice          string  `mapstructure:"voice"`
	Rate           float64 `mapstructure:"rate"`
	Pitch          float64 `mapstructure:"pitch"`
	Volume         float64 `mapstructure:"volume"`
	RequireGesture bool    `mapstructure:"require_gesture"`
}

type DialogueConfig struct {
	Language            string        `mapstructure:"language"`
	WakeRestartDelay    time.Duration `mapstructure:"wake_restart_delay"`
	WakeErrorDelay      time.Duration `mapstructure:"wake_error_delay"`
	CommandStartDelay   time.Duration `mapstructure:"command_start_delay"`
	CommandRestartDelay time.Duration `mapstructure:"command_restart_delay"`
	CommandErrorDelay   time.Duration `mapstructure:"command_error_delay"`
	ResumeDelay         time.Duration `mapstructure:"resume_delay"`
	SettleDelay         time.Duration `mapstructure:"settle_delay"`
	ReadBatch           int           `mapstructure:"read_batch"`
	AutoReadBatch       int           `mapstructure:"auto_read_batch"`
	FeedbackDuration    time.Duration `mapstructure:"feedback_duration"`
	AlertDuration       time.Duration `mapstructure:"alert_duration"`
}

type VocabularyConfig struct {
	Path string `mapstructure:"path"`
}

type RulesConfig struct {
	Path           string `mapstructure:"path"`
	IterationLimit int    `mapstructure:"iteration_limit"`
	Watch          bool   `mapstructure:"watch"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// legacyEnv are the provider variables honoured before the TVVOICE_ prefix
// existed. The prefixed variable wins when both are set.
var legacyEnv = map[string]string{
	"deepgram.api_key":      "DEEPGRAM_API_KEY",
	"deepgram.api_base":     "DEEPGRAM_API_BASE",
	"deepgram.model":        "DEEPGRAM_MODEL",
	"deepgram.language":     "DEEPGRAM_LANGUAGE",
	"deepgram.smart_format": "DEEPGRAM_SMART_FORMAT",
}

// Dir is the per-user configuration directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("could not determine home directory")
	}
	return filepath.Join(home, ".config", "tvvoice"), nil
}

// Load reads path when given, otherwise config.yaml from Dir if present.
// A missing default file is not an error; a missing explicit file is.
func Load(path string) (Config, error) {
	dir, err := Dir()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	setDefaults(v, dir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), legacy); err != nil {
			return Config{}, fmt.Errorf("failed to bind %s: %w", legacy, err)
		}
	}

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("listings.base_url", "http://localhost:5000")
	v.SetDefault("listings.timeout", 60*time.Second)
	v.SetDefault("listings.refresh_schedule", "5 0 * * *")

	v.SetDefault("deepgram.api_key", "")
	v.SetDefault("deepgram.api_base", "https://api.deepgram.com/v1")
	v.SetDefault("deepgram.model", "nova-2")
	v.SetDefault("deepgram.language", "")
	v.SetDefault("deepgram.smart_format", true)
	v.SetDefault("deepgram.endpointing", 300*time.Millisecond)
	v.SetDefault("deepgram.utterance_end", time.Second)
	v.SetDefault("deepgram.keywords", []string{})
	v.SetDefault("deepgram.max_session", 60*time.Second)
	v.SetDefault("deepgram.finalize_timeout", 2*time.Second)

	v.SetDefault("audio.recorder_command", "ffmpeg")
	v.SetDefault("audio.input_format", "")
	v.SetDefault("audio.input_device", "")
	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.channels", 1)
	v.SetDefault("audio.chunk_size", 4096)

	v.SetDefault("speech.command", "")
	v.SetDefault("speech.voice", "")
	v.SetDefault("speech.rate", 0.9)
	v.SetDefault("speech.pitch", 1.0)
	v.SetDefault("speech.volume", 1.0)
	v.SetDefault("speech.require_gesture", true)

	v.SetDefault("dialogue.language", "en-US")
	v.SetDefault("dialogue.wake_restart_delay", time.Second)
	v.SetDefault("dialogue.wake_error_delay", 2*time.Second)
	v.SetDefault("dialogue.command_start_delay", 100*time.Millisecond)
	v.SetDefault("dialogue.command_restart_delay", time.Second)
	v.SetDefault("dialogue.command_error_delay", time.Second)
	v.SetDefault("dialogue.resume_delay", 500*time.Millisecond)
	v.SetDefault("dialogue.settle_delay", time.Second)
	v.SetDefault("dialogue.read_batch", 10)
	v.SetDefault("dialogue.auto_read_batch", 20)
	v.SetDefault("dialogue.feedback_duration", 3*time.Second)
	v.SetDefault("dialogue.alert_duration", 5*time.Second)

	v.SetDefault("vocabulary.path", filepath.Join(dir, "vocabulary.yaml"))

	v.SetDefault("rules.path", filepath.Join(dir, "substitutions.rules"))
	v.SetDefault("rules.iteration_limit", 30)
	v.SetDefault("rules.watch", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("metrics.addr", "")
}

func (c *Config) normalize() {
	c.Listings.BaseURL = strings.TrimSpace(c.Listings.BaseURL)
	c.Deepgram.APIKey = strings.TrimSpace(c.Deepgram.APIKey)
	c.Deepgram.Language = strings.TrimSpace(c.Deepgram.Language)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))

	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.Channels <= 0 {
		c.Audio.Channels = 1
	}
	if c.Audio.ChunkSize < 256 {
		c.Audio.ChunkSize = 4096
	}
	if c.Rules.IterationLimit <= 0 {
		c.Rules.IterationLimit = 30
	}
	// The recognizer language follows the dialogue language unless pinned.
	if c.Deepgram.Language == "" {
		c.Deepgram.Language = c.Dialogue.Language
	}
}

// Validate rejects settings no component could run with.
func (c Config) Validate() error {
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log.format %q: want console or json", c.Log.Format)
	}
	if c.Listings.Timeout <= 0 {
		return fmt.Errorf("invalid listings.timeout %s: must be positive", c.Listings.Timeout)
	}
	if c.Speech.Rate < 0 || c.Speech.Pitch < 0 || c.Speech.Volume < 0 {
		return errors.New("speech rate, pitch and volume must not be negative")
	}
	if c.Dialogue.ReadBatch < 0 || c.Dialogue.AutoReadBatch < 0 {
		return errors.New("dialogue read batch sizes must not be negative")
	}
	return nil
}
