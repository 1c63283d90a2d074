package stt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/lexiqai/live-interpreter/internal/observability"
	"github.com/lexiqai/live-interpreter/internal/resilience"
)

// ErrNotActive is returned when audio is sent without a live connection.
var ErrNotActive = errors.New("deepgram client is not active")

// DeepgramConfig configures one streaming recognition connection.
type DeepgramConfig struct {
	APIKey     string
	Model      string
	Language   string
	SampleRate int
	Breaker    *resilience.CircuitBreaker
	Reconnect  *resilience.RetryConfig
	Logger     zerolog.Logger
}

// callbackHandler embeds the SDK's default handler and overrides the events
// the client consumes.
type callbackHandler struct {
	*websocketv1api.DefaultCallbackHandler
	client *DeepgramClient
}

func (h *callbackHandler) Message(msg *msginterfaces.MessageResponse) error {
	if msg == nil || len(msg.Channel.Alternatives) == 0 {
		return nil
	}
	alt := msg.Channel.Alternatives[0]

	start, duration := msg.Start, msg.Duration
	if duration == 0 && len(alt.Words) > 0 {
		start = alt.Words[0].Start
		duration = alt.Words[len(alt.Words)-1].End - start
	}

	h.client.emit(Event{
		Type:        EventTranscript,
		Text:        alt.Transcript,
		IsFinal:     msg.IsFinal,
		SpeechFinal: msg.SpeechFinal,
		Confidence:  alt.Confidence,
		Start:       start,
		Duration:    duration,
	})
	return nil
}

func (h *callbackHandler) SpeechStarted(*msginterfaces.SpeechStartedResponse) error {
	h.client.emit(Event{Type: EventSpeechStarted})
	return nil
}

func (h *callbackHandler) UtteranceEnd(*msginterfaces.UtteranceEndResponse) error {
	h.client.emit(Event{Type: EventUtteranceEnd})
	return nil
}

func (h *callbackHandler) Error(errorResponse *msginterfaces.ErrorResponse) error {
	h.client.handleError(errorResponse)
	return nil
}

// DeepgramClient implements Recognizer over Deepgram's live transcription API.
type DeepgramClient struct {
	cfg    DeepgramConfig
	logger zerolog.Logger
	events chan Event

	mu       sync.RWMutex
	client   *listenClient.WSCallback
	isActive bool
	ctx      context.Context
	cancel   context.CancelFunc
	closed   bool
}

// NewDeepgramClient creates an unconnected client.
func NewDeepgramClient(cfg DeepgramConfig) *DeepgramClient {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Breaker == nil {
		cfg.Breaker = resilience.NewCircuitBreaker("deepgram", 5, 60*time.Second)
	}
	if cfg.Reconnect == nil {
		cfg.Reconnect = resilience.ReconnectConfig(3, time.Second)
	}
	return &DeepgramClient{
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "deepgram").Logger(),
		events: make(chan Event, 100),
	}
}

// Start opens the streaming connection. The connection lives until ctx is
// cancelled or Close is called.
func (d *DeepgramClient) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.ctx == nil {
		d.ctx, d.cancel = context.WithCancel(ctx)
	}
	d.mu.Unlock()
	return d.connect()
}

func (d *DeepgramClient) connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isActive {
		return nil
	}
	if d.closed {
		return ErrNotActive
	}

	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          d.cfg.Model,
		Language:       d.cfg.Language,
		Punctuate:      true,
		InterimResults: true,
		UtteranceEndMs: "1000",
		VadEvents:      true,
		Encoding:       "linear16",
		Channels:       1,
		SampleRate:     d.cfg.SampleRate,
	}

	callback := &callbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		client:                 d,
	}

	client, err := listenClient.NewWSUsingCallback(d.ctx, d.cfg.APIKey, &interfaces.ClientOptions{}, tOptions, callback)
	if err != nil {
		d.cfg.Breaker.RecordResult(false)
		return fmt.Errorf("failed to create Deepgram client: %w", err)
	}
	if !client.Connect() {
		d.cfg.Breaker.RecordResult(false)
		return errors.New("failed to connect to Deepgram")
	}

	d.client = client
	d.isActive = true
	d.cfg.Breaker.RecordResult(true)
	observability.UpdateCircuitBreakerState("deepgram", int(d.cfg.Breaker.GetState()))

	d.logger.Info().
		Str("model", d.cfg.Model).
		Str("language", d.cfg.Language).
		Int("sample_rate", d.cfg.SampleRate).
		Msg("Deepgram streaming client started")
	return nil
}

func (d *DeepgramClient) emit(ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	select {
	case d.events <- ev:
	default:
		d.logger.Warn().Int("type", int(ev.Type)).Msg("Recognizer event channel full, dropping event")
		observability.RecordError("channel_full", "deepgram")
	}
}

func (d *DeepgramClient) handleError(errorResponse *msginterfaces.ErrorResponse) {
	d.logger.Error().Interface("error", errorResponse).Msg("Deepgram error")

	d.cfg.Breaker.RecordResult(false)
	observability.UpdateCircuitBreakerState("deepgram", int(d.cfg.Breaker.GetState()))
	observability.RecordError("stream", "deepgram")

	d.mu.Lock()
	d.isActive = false
	ctx := d.ctx
	d.mu.Unlock()

	if ctx != nil && ctx.Err() == nil {
		go d.reconnect()
	}
}

// SendAudio forwards a PCM16 chunk.
func (d *DeepgramClient) SendAudio(pcm []byte) error {
	err := d.cfg.Breaker.Call(func() error {
		d.mu.RLock()
		active, client := d.isActive, d.client
		d.mu.RUnlock()

		if !active || client == nil {
			return ErrNotActive
		}
		if _, err := client.Write(pcm); err != nil {
			d.mu.Lock()
			d.isActive = false
			d.mu.Unlock()
			go d.reconnect()
			return fmt.Errorf("failed to send audio to Deepgram: %w", err)
		}
		return nil
	})

	observability.UpdateCircuitBreakerState("deepgram", int(d.cfg.Breaker.GetState()))
	if err == nil {
		observability.RecordAudioBytes("in", len(pcm))
	}
	return err
}

func (d *DeepgramClient) reconnect() {
	d.mu.RLock()
	ctx, active := d.ctx, d.isActive
	d.mu.RUnlock()
	if active || ctx == nil {
		return
	}

	err := resilience.Reconnect(ctx, func(context.Context) error {
		return d.connect()
	}, d.cfg.Reconnect)
	if err != nil {
		d.logger.Error().Err(err).Msg("Failed to reconnect Deepgram client")
		observability.CaptureError(err, map[string]string{"component": "deepgram"})
		return
	}
	d.logger.Info().Msg("Reconnected Deepgram client")
}

// Events returns recognizer results. The channel is closed by Close.
func (d *DeepgramClient) Events() <-chan Event {
	return d.events
}

// Close finishes the stream and releases resources.
func (d *DeepgramClient) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	if d.cancel != nil {
		d.cancel()
	}
	if d.isActive && d.client != nil {
		d.client.Finish()
	}
	d.isActive = false
	close(d.events)

	d.logger.Info().Msg("Deepgram streaming client stopped")
	return nil
}
