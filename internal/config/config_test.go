package config

import (
	"strings"
	"testing"
)

func envOf(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestDefaults(t *testing.T) {
	cfg, err := fromEnv(envOf(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBPath != DefaultDBPath {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, DefaultDBPath)
	}
	if cfg.WhisperBin != DefaultWhisperBin || cfg.WhisperModel != DefaultWhisperModel {
		t.Errorf("whisper = %q/%q, want defaults", cfg.WhisperBin, cfg.WhisperModel)
	}
	if cfg.HasAzure() {
		t.Error("HasAzure should be false without credentials")
	}
	if got := cfg.SpeechBackend(); got != TTSGoogle {
		t.Errorf("SpeechBackend = %q, want %q", got, TTSGoogle)
	}
}

func TestSpeechBackend(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
		want string
	}{
		{"auto with azure", map[string]string{EnvAzureSpeechKey: "k", EnvAzureSpeechRegion: "westeurope"}, TTSAzure},
		{"auto without region", map[string]string{EnvAzureSpeechKey: "k"}, TTSGoogle},
		{"forced google", map[string]string{EnvTTS: "google", EnvAzureSpeechKey: "k", EnvAzureSpeechRegion: "eastus"}, TTSGoogle},
		{"none", map[string]string{EnvTTS: " NONE "}, TTSNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := fromEnv(envOf(tt.vars))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := cfg.SpeechBackend(); got != tt.want {
				t.Errorf("SpeechBackend = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		vars    map[string]string
		wantSub string
	}{
		{"unknown backend", map[string]string{EnvTTS: "espeak"}, EnvTTS},
		{"azure without key", map[string]string{EnvTTS: "azure", EnvAzureSpeechRegion: "eastus"}, EnvAzureSpeechKey},
		{"region is a url", map[string]string{EnvAzureSpeechRegion: "https://eastus"}, EnvAzureSpeechRegion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fromEnv(envOf(tt.vars))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %s", err, tt.wantSub)
			}
		})
	}
}

func TestExplicitValuesKept(t *testing.T) {
	cfg, err := fromEnv(envOf(map[string]string{
		EnvDB:           MemoryDB,
		EnvWhisperBin:   "/opt/whisper/main",
		EnvWhisperModel: "models/base.bin",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBPath != MemoryDB || cfg.WhisperBin != "/opt/whisper/main" || cfg.WhisperModel != "models/base.bin" {
		t.Errorf("config = %+v", cfg)
	}
}

func TestOverride(t *testing.T) {
	cfg, err := fromEnv(envOf(map[string]string{EnvDB: "prefs.db"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := cfg.Override("", ""); err != nil {
		t.Fatalf("empty override: %v", err)
	}
	if cfg.DBPath != "prefs.db" || cfg.TTS != TTSAuto {
		t.Errorf("empty override changed config: %+v", cfg)
	}

	if err := cfg.Override("None", MemoryDB); err != nil {
		t.Fatalf("override: %v", err)
	}
	if cfg.TTS != TTSNone || cfg.DBPath != MemoryDB {
		t.Errorf("override not applied: %+v", cfg)
	}

	if err := cfg.Override("azure", ""); err == nil {
		t.Error("azure without credentials should fail validation")
	}
}
