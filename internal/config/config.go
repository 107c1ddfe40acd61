// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Speech backends selectable through VOICEPAY_TTS.
const (
	TTSAuto   = ""
	TTSAzure  = "azure"
	TTSGoogle = "google"
	TTSNone   = "none"
)

// Environment variable names.
const (
	EnvAzureSpeechKey    = "AZURE_SPEECH_KEY"
	EnvAzureSpeechRegion = "AZURE_SPEECH_REGION"
	EnvTTS               = "VOICEPAY_TTS"
	EnvDB                = "VOICEPAY_DB"
	EnvWhisperBin        = "WHISPER_BIN"
	EnvWhisperModel      = "WHISPER_MODEL"
)

// Defaults applied when a variable is unset.
const (
	DefaultDBPath       = ".voicepay/preferences.db"
	DefaultWhisperBin   = "whisper-cli"
	DefaultWhisperModel = "bin/ggml-small.bin"
)

// MemoryDB selects the in-process preference store instead of SQLite.
const MemoryDB = "memory"

// Config holds the settings read from the environment. Empty fields are
// filled with defaults by validation.
type Config struct {
	AzureKey     string
	AzureRegion  string
	TTS          string
	DBPath       string
	WhisperBin   string
	WhisperModel string
}

// Load reads an optional .env file, then the environment, and validates
// the result.
func Load() (*Config, error) {
	// .env is optional; the variables may come from the shell.
	_ = godotenv.Load()
	return fromEnv(os.Getenv)
}

func fromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		AzureKey:     strings.TrimSpace(getenv(EnvAzureSpeechKey)),
		AzureRegion:  strings.TrimSpace(getenv(EnvAzureSpeechRegion)),
		TTS:          strings.ToLower(strings.TrimSpace(getenv(EnvTTS))),
		DBPath:       strings.TrimSpace(getenv(EnvDB)),
		WhisperBin:   strings.TrimSpace(getenv(EnvWhisperBin)),
		WhisperModel: strings.TrimSpace(getenv(EnvWhisperModel)),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Override applies command-line values on top of the environment and
// validates again. Empty arguments keep the loaded value.
func (c *Config) Override(tts, db string) error {
	if tts != "" {
		c.TTS = strings.ToLower(strings.TrimSpace(tts))
	}
	if db != "" {
		c.DBPath = db
	}
	return c.validate()
}

// HasAzure reports whether both Azure credentials are present.
func (c *Config) HasAzure() bool {
	return c.AzureKey != "" && c.AzureRegion != ""
}

// SpeechBackend resolves TTSAuto to a concrete backend: Azure when
// credentials exist, Google otherwise.
func (c *Config) SpeechBackend() string {
	if c.TTS != TTSAuto {
		return c.TTS
	}
	if c.HasAzure() {
		return TTSAzure
	}
	return TTSGoogle
}

// validate fills defaults and rejects inconsistent settings.
func (c *Config) validate() error {
	switch c.TTS {
	case TTSAuto, TTSAzure, TTSGoogle, TTSNone:
	default:
		return fmt.Errorf("config: %s must be one of azure, google, none (got %q)", EnvTTS, c.TTS)
	}

	if c.TTS == TTSAzure && !c.HasAzure() {
		return fmt.Errorf("config: %s=azure requires %s and %s", EnvTTS, EnvAzureSpeechKey, EnvAzureSpeechRegion)
	}

	if c.AzureRegion != "" && strings.ContainsAny(c.AzureRegion, " /:") {
		return fmt.Errorf("config: %s is not a region name (%q)", EnvAzureSpeechRegion, c.AzureRegion)
	}

	if c.DBPath == "" {
		c.DBPath = DefaultDBPath
	}
	if c.WhisperBin == "" {
		c.WhisperBin = DefaultWhisperBin
	}
	if c.WhisperModel == "" {
		c.WhisperModel = DefaultWhisperModel
	}
	return nil
}
