package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lexiqai/live-interpreter/internal/audio"
	"github.com/lexiqai/live-interpreter/internal/config"
	"github.com/lexiqai/live-interpreter/internal/observability"
	"github.com/lexiqai/live-interpreter/internal/resilience"
	"github.com/lexiqai/live-interpreter/internal/sink"
	"github.com/lexiqai/live-interpreter/internal/stt"
	"github.com/lexiqai/live-interpreter/internal/translator"
	"github.com/lexiqai/live-interpreter/internal/transport"
	"github.com/lexiqai/live-interpreter/internal/tts"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	if err := observability.InitSentry(cfg.SentryDSN, cfg.Environment); err != nil {
		logger.Warn().Err(err).Msg("Sentry disabled")
	}
	defer observability.FlushSentry()

	logger.Info().
		Str("port", cfg.Port).
		Str("translator", cfg.TranslatorBackend).
		Str("default_direction", cfg.DefaultDirection).
		Bool("audio_input", cfg.AudioEnabled()).
		Bool("audio_output", cfg.TTSEnabled()).
		Str("log_level", cfg.LogLevel).
		Msg("Live interpreter starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	breaker := resilience.NewCircuitBreaker("translator", cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second)
	breaker.OnStateChange(func(name string, from, to resilience.CircuitState) {
		logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		observability.UpdateCircuitBreakerState(name, int(to))
	})

	backend, err := newTranslator(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create translator")
	}
	guarded := translator.NewGuarded(backend, breaker)

	sinks := sink.Multi{sink.Log{Logger: observability.WithComponent("records")}}
	checks := []observability.HealthCheck{{
		Name: "translator",
		Check: func(context.Context) (bool, error) {
			if breaker.GetState() == resilience.StateOpen {
				return false, resilience.ErrCircuitOpen
			}
			return true, nil
		},
	}}

	if cfg.KafkaEnabled {
		kafkaSink := sink.NewKafkaSink(sink.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic}, logger)
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("Publishing utterance records to Kafka")
	}

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create database pool")
		}
		defer pool.Close()

		pgSink := sink.NewPostgresSink(pool)
		if err := pgSink.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Failed to prepare database schema")
		}
		sinks = append(sinks, pgSink)
		checks = append(checks, observability.HealthCheck{
			Name: "postgres",
			Check: func(ctx context.Context) (bool, error) {
				if err := pool.Ping(ctx); err != nil {
					return false, err
				}
				return true, nil
			},
		})
	}

	opts := transport.Options{
		Config:     cfg,
		Translator: guarded,
		Sink:       sinks,
		Retry: &resilience.RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
			MaxBackoff:        cfg.BackendTimeout(),
			BackoffMultiplier: 2.0,
			Jitter:            true,
		},
	}
	if cfg.AudioEnabled() {
		opts.NewRecognizer = deepgramFactory(cfg)
	}
	if cfg.TTSEnabled() {
		format, err := audio.ParseFormat(cfg.OutputAudioFormat)
		if err != nil {
			logger.Fatal().Err(err).Msg("Invalid output audio format")
		}
		opts.NewSynthesizer = func(dir config.Direction) tts.Synthesizer {
			return tts.NewCartesiaClient(tts.CartesiaConfig{
				APIKey:     cfg.CartesiaAPIKey,
				VoiceID:    cfg.CartesiaVoiceID,
				ModelID:    cfg.CartesiaModelID,
				Language:   dir.Target,
				Output:     format,
				OutputRate: cfg.OutputSampleRate,
			})
		}
	}
	streams := transport.NewHandler(opts)

	mux := http.NewServeMux()
	mux.Handle("/streams/translate", streams)
	mux.HandleFunc("/health", observability.HealthCheckHandler())
	mux.HandleFunc("/ready", observability.ReadinessHandler(checks...))

	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// WriteTimeout stays unset: stream connections are long lived.
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	server.RegisterOnShutdown(streams.Close)

	if cfg.GRPCHealthPort != "" {
		healthServer := observability.NewHealthServer(checks...)
		go func() {
			addr := fmt.Sprintf(":%s", cfg.GRPCHealthPort)
			logger.Info().Str("addr", addr).Msg("gRPC health service listening")
			if err := healthServer.Serve(ctx, addr, 10*time.Second); err != nil {
				logger.Error().Err(err).Msg("gRPC health service stopped")
			}
		}()
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/streams/translate", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}

func newTranslator(ctx context.Context, cfg *config.Config) (translator.Translator, error) {
	switch cfg.TranslatorBackend {
	case config.BackendGemini:
		return translator.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	default:
		return translator.NewOpenRouterClient(translator.OpenRouterConfig{
			APIKey:  cfg.OpenRouterAPIKey,
			BaseURL: cfg.OpenRouterBaseURL,
			Model:   cfg.OpenRouterModel,
			Timeout: cfg.BackendTimeout(),
		}), nil
	}
}

// deepgramFactory opens one Deepgram connection per stream, each with its
// own breaker so a failing stream does not trip the others.
func deepgramFactory(cfg *config.Config) transport.RecognizerFactory {
	return func(dir config.Direction, logger zerolog.Logger) stt.Recognizer {
		breaker := resilience.NewCircuitBreaker("deepgram", cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second)
		breaker.OnStateChange(func(name string, _, to resilience.CircuitState) {
			observability.UpdateCircuitBreakerState(name, int(to))
		})
		return stt.NewDeepgramClient(stt.DeepgramConfig{
			APIKey:     cfg.DeepgramAPIKey,
			Model:      cfg.DeepgramModel,
			Language:   dir.Source,
			SampleRate: 16000,
			Breaker:    breaker,
			Reconnect: resilience.ReconnectConfig(cfg.ReconnectMaxAttempts,
				time.Duration(cfg.ReconnectBackoff)*time.Millisecond),
			Logger: logger,
		})
	}
}
