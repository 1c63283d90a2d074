// Package transport serves translation streams over WebSocket. Each
// connection owns one session, an optional recognizer for raw audio and an
// optional speech player.
package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/live-interpreter/internal/config"
	"github.com/lexiqai/live-interpreter/internal/observability"
	"github.com/lexiqai/live-interpreter/internal/resilience"
	"github.com/lexiqai/live-interpreter/internal/session"
	"github.com/lexiqai/live-interpreter/internal/stt"
	"github.com/lexiqai/live-interpreter/internal/translator"
	"github.com/lexiqai/live-interpreter/internal/tts"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// RecognizerFactory opens a recognizer for the source language of a stream.
type RecognizerFactory func(dir config.Direction, logger zerolog.Logger) stt.Recognizer

// SynthesizerFactory creates a synthesizer for the target language of a stream.
type SynthesizerFactory func(dir config.Direction) tts.Synthesizer

// Options are shared by every stream the handler serves.
type Options struct {
	Config     *config.Config
	Translator translator.Translator

	// NewSynthesizer enables audio output; nil streams speak actions as text only.
	NewSynthesizer SynthesizerFactory

	// NewRecognizer enables raw audio input; nil accepts transcripts only.
	NewRecognizer RecognizerFactory

	// Sink receives one record per completed utterance, in addition to the
	// metrics message sent to the client.
	Sink session.RecordSink

	// Retry applies to final transcript translation in audio mode.
	Retry *resilience.RetryConfig
}

// Handler upgrades requests on /streams/translate and runs one stream per
// connection.
type Handler struct {
	opts   Options
	logger zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHandler creates a handler. Close ends all of its streams.
func NewHandler(opts Options) *Handler {
	if opts.Retry == nil {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		opts:   opts,
		logger: observability.WithComponent("transport"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Close cancels every running stream. Hijacked connections are not tracked
// by http.Server, so this is registered with RegisterOnShutdown.
func (h *Handler) Close() {
	h.cancel()
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		observability.RecordError("upgrade_failed", "transport")
		return
	}
	defer conn.Close()

	correlationID := observability.NewCorrelationID()
	dir := h.opts.Config.ResolveDirection(r.URL.Query().Get("direction"))
	logger := observability.WithCorrelationID(correlationID).With().
		Str("direction", dir.Name).
		Logger()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(h.ctx, cancel)
	defer stop()

	observability.StreamStarted()
	defer observability.StreamEnded()

	start := time.Now()
	logger.Info().Str("remote_addr", r.RemoteAddr).Msg("Stream connected")

	stream := newStream(correlationID, conn, dir, h.opts, logger)
	if err := stream.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("Stream ended with error")
		observability.CaptureError(err, map[string]string{
			"component":      "transport",
			"correlation_id": correlationID,
		})
	}

	logger.Info().
		Dur("duration", time.Since(start)).
		Str("summary", stream.session.Metrics().Summary()).
		Msg("Stream closed")
}
