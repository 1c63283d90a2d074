package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Supported translation backends
const (
	BackendOpenRouter = "openrouter"
	BackendGemini     = "gemini"
)

// Config holds all configuration for the live interpreter service
type Config struct {
	// Server configuration
	Port           string `envconfig:"PORT" default:"8080"`
	GRPCHealthPort string `envconfig:"GRPC_HEALTH_PORT" default:""` // empty disables the gRPC health service

	// Default language direction when a stream does not ask for one (see directions.go)
	DefaultDirection string `envconfig:"DEFAULT_DIRECTION" default:"ru-en"`

	// Stability window
	StabilityThreshold int `envconfig:"STABILITY_THRESHOLD" default:"2"` // Interims a word must survive unchanged
	MinWordsForTTS     int `envconfig:"MIN_WORDS_FOR_TTS" default:"2"`   // New words needed before speaking
	BackendTimeoutMs   int `envconfig:"BACKEND_TIMEOUT_MS" default:"2000"`
	SessionQueueSize   int `envconfig:"SESSION_QUEUE_SIZE" default:"64"`

	// Translation backend
	TranslatorBackend string `envconfig:"TRANSLATOR_BACKEND" default:"openrouter"` // openrouter, gemini
	OpenRouterAPIKey  string `envconfig:"OPENROUTER_API_KEY" default:""`
	OpenRouterBaseURL string `envconfig:"OPENROUTER_BASE_URL" default:"https://openrouter.ai/api/v1"`
	OpenRouterModel   string `envconfig:"OPENROUTER_MODEL" default:"google/gemini-2.0-flash-001"`
	GeminiAPIKey      string `envconfig:"GEMINI_API_KEY" default:""`
	GeminiModel       string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`

	// Deepgram STT, only needed for streams that send audio
	DeepgramAPIKey string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel  string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`

	// Cartesia TTS; without a key the gateway sends text speak events only
	CartesiaAPIKey    string `envconfig:"CARTESIA_API_KEY" default:""`
	CartesiaVoiceID   string `envconfig:"CARTESIA_VOICE_ID" default:"a0e99841-438c-4a64-b679-ae501e7d6091"`
	CartesiaModelID   string `envconfig:"CARTESIA_MODEL_ID" default:"sonic-turbo"`
	OutputAudioFormat string `envconfig:"OUTPUT_AUDIO_FORMAT" default:"pcm16"` // pcm16, mulaw
	OutputSampleRate  int    `envconfig:"OUTPUT_SAMPLE_RATE" default:"24000"`

	// Voice activity detection on inbound audio
	VADEnergyThreshold float64 `envconfig:"VAD_ENERGY_THRESHOLD" default:"500.0"`
	VADSilenceFrames   int     `envconfig:"VAD_SILENCE_FRAMES" default:"25"` // 20ms frames

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // seconds
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"` // milliseconds
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"` // milliseconds

	// Utterance metrics sinks
	KafkaEnabled bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS" default:""`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"interpreter.utterance-metrics"`
	DatabaseURL  string   `envconfig:"DATABASE_URL" default:""`

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
	SentryDSN      string `envconfig:"SENTRY_DSN" default:""`
	Environment    string `envconfig:"ENVIRONMENT" default:"development"`
}

// Load reads configuration from environment variables
// It first attempts to load from .env.local and .env if they exist, then from environment
func Load() (*Config, error) {
	// Missing files are fine
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env files (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field requirements envconfig cannot express
func (c *Config) Validate() error {
	switch c.TranslatorBackend {
	case BackendOpenRouter:
		if c.OpenRouterAPIKey == "" {
			return fmt.Errorf("OPENROUTER_API_KEY is required for the %s backend", BackendOpenRouter)
		}
	case BackendGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the %s backend", BackendGemini)
		}
	default:
		return fmt.Errorf("unknown TRANSLATOR_BACKEND %q", c.TranslatorBackend)
	}

	if c.StabilityThreshold < 1 {
		return fmt.Errorf("STABILITY_THRESHOLD must be at least 1, got %d", c.StabilityThreshold)
	}
	if c.MinWordsForTTS < 0 {
		return fmt.Errorf("MIN_WORDS_FOR_TTS must not be negative, got %d", c.MinWordsForTTS)
	}
	if c.BackendTimeoutMs <= 0 {
		return fmt.Errorf("BACKEND_TIMEOUT_MS must be positive, got %d", c.BackendTimeoutMs)
	}
	if _, ok := LookupDirection(c.DefaultDirection); !ok {
		return fmt.Errorf("unknown DEFAULT_DIRECTION %q", c.DefaultDirection)
	}
	if c.OutputAudioFormat != "pcm16" && c.OutputAudioFormat != "mulaw" {
		return fmt.Errorf("unknown OUTPUT_AUDIO_FORMAT %q", c.OutputAudioFormat)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}

	return nil
}

// BackendTimeout returns the per-request translation deadline
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.BackendTimeoutMs) * time.Millisecond
}

// AudioEnabled reports whether streams may send raw audio
func (c *Config) AudioEnabled() bool {
	return c.DeepgramAPIKey != ""
}

// TTSEnabled reports whether speak actions are synthesized server side
func (c *Config) TTSEnabled() bool {
	return c.CartesiaAPIKey != ""
}
