package config

import (
	"os"
	"testing"
)

func TestLoad(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "test-openrouter-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.OpenRouterAPIKey != "test-openrouter-key" {
		t.Errorf("Expected OpenRouterAPIKey 'test-openrouter-key', got '%s'", cfg.OpenRouterAPIKey)
	}
}

func TestLoad_MissingBackendKey(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")

	_, err := LoadFromEnv()
	if err == nil {
		t.Error("Expected error when the backend key is missing")
	}
}

func TestLoad_GeminiBackend(t *testing.T) {
	t.Setenv("TRANSLATOR_BACKEND", "gemini")
	t.Setenv("GEMINI_API_KEY", "test-gemini-key")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}
	if cfg.GeminiModel != "gemini-2.0-flash" {
		t.Errorf("Expected default GeminiModel 'gemini-2.0-flash', got '%s'", cfg.GeminiModel)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "test-openrouter-key")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default Port '8080', got '%s'", cfg.Port)
	}
	if cfg.StabilityThreshold != 2 {
		t.Errorf("Expected default StabilityThreshold 2, got %d", cfg.StabilityThreshold)
	}
	if cfg.MinWordsForTTS != 2 {
		t.Errorf("Expected default MinWordsForTTS 2, got %d", cfg.MinWordsForTTS)
	}
	if cfg.BackendTimeout().Milliseconds() != 2000 {
		t.Errorf("Expected default BackendTimeout 2s, got %v", cfg.BackendTimeout())
	}
	if cfg.OpenRouterModel != "google/gemini-2.0-flash-001" {
		t.Errorf("Expected default OpenRouterModel, got '%s'", cfg.OpenRouterModel)
	}
	if cfg.DefaultDirection != "ru-en" {
		t.Errorf("Expected default direction 'ru-en', got '%s'", cfg.DefaultDirection)
	}
	if cfg.AudioEnabled() {
		t.Error("Expected audio to be disabled without a Deepgram key")
	}
	if cfg.TTSEnabled() {
		t.Error("Expected TTS to be disabled without a Cartesia key")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero threshold", "STABILITY_THRESHOLD", "0"},
		{"negative min words", "MIN_WORDS_FOR_TTS", "-1"},
		{"zero timeout", "BACKEND_TIMEOUT_MS", "0"},
		{"unknown direction", "DEFAULT_DIRECTION", "de-fr"},
		{"unknown backend", "TRANSLATOR_BACKEND", "carrier-pigeon"},
		{"unknown audio format", "OUTPUT_AUDIO_FORMAT", "ogg"},
		{"kafka without brokers", "KAFKA_ENABLED", "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPENROUTER_API_KEY", "test-openrouter-key")
			t.Setenv(tt.key, tt.value)

			if _, err := LoadFromEnv(); err == nil {
				t.Errorf("Expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_KafkaBrokersList(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "test-openrouter-key")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Errorf("Expected two brokers, got %v", cfg.KafkaBrokers)
	}
}

func TestResolveDirection(t *testing.T) {
	cfg := &Config{DefaultDirection: "ru-en"}

	if d := cfg.ResolveDirection("en-ru"); d.Source != "en" || d.TargetName != "Russian" {
		t.Errorf("Unexpected direction %+v", d)
	}
	if d := cfg.ResolveDirection("xx-yy"); d.Name != "ru-en" {
		t.Errorf("Expected fallback to ru-en, got %s", d.Name)
	}
}

func TestConfig_ObservabilityDefaults(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "test-openrouter-key")
	t.Setenv("LOG_LEVEL", "")
	os.Unsetenv("LOG_LEVEL")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LogLevel 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.LogPretty {
		t.Error("Expected default LogPretty false, got true")
	}
	if !cfg.MetricsEnabled {
		t.Error("Expected default MetricsEnabled true, got false")
	}
}
