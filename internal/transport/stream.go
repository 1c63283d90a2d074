package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/live-interpreter/internal/audio"
	"github.com/lexiqai/live-interpreter/internal/config"
	"github.com/lexiqai/live-interpreter/internal/observability"
	"github.com/lexiqai/live-interpreter/internal/resilience"
	"github.com/lexiqai/live-interpreter/internal/session"
	"github.com/lexiqai/live-interpreter/internal/sink"
	"github.com/lexiqai/live-interpreter/internal/stt"
	"github.com/lexiqai/live-interpreter/internal/translator"
	"github.com/lexiqai/live-interpreter/internal/tts"
)

const writeTimeout = 10 * time.Second

// Stream is one client connection.
type Stream struct {
	id        string
	conn      *websocket.Conn
	writeMu   sync.Mutex
	direction config.Direction
	opts      Options
	logger    zerolog.Logger

	session *session.Session
	player  *tts.Player
	vad     *audio.SpeechDetector

	recMu      sync.Mutex
	recognizer stt.Recognizer

	wg sync.WaitGroup
}

func newStream(id string, conn *websocket.Conn, dir config.Direction, opts Options, logger zerolog.Logger) *Stream {
	cfg := opts.Config
	s := &Stream{
		id:        id,
		conn:      conn,
		direction: dir,
		opts:      opts,
		logger:    logger,
		vad: audio.NewSpeechDetector(audio.VADConfig{
			EnergyThreshold: cfg.VADEnergyThreshold,
			SilenceFrames:   cfg.VADSilenceFrames,
		}),
	}
	if opts.NewSynthesizer != nil {
		s.player = tts.NewPlayer(opts.NewSynthesizer(dir), s, logger)
	}

	sinks := sink.Multi{clientMetrics{stream: s}}
	if opts.Sink != nil {
		sinks = append(sinks, opts.Sink)
	}

	s.session = session.New(id, session.Config{
		StabilityThreshold: cfg.StabilityThreshold,
		MinWordsForTTS:     cfg.MinWordsForTTS,
		BackendTimeout:     cfg.BackendTimeout(),
		QueueSize:          cfg.SessionQueueSize,
		Direction:          dir.Name,
		SourceLang:         dir.SourceName,
		TargetLang:         dir.TargetName,
	}, opts.Translator, clientSpeaker{stream: s},
		session.WithLogger(logger),
		session.WithRecordSink(sinks),
	)
	return s
}

// Run serves the connection until the client stops, disconnects or ctx is
// cancelled.
func (s *Stream) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.session.Run(ctx)
	}()

	if s.player != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.player.Run(ctx)
		}()
	}

	// Unblock ReadMessage on cancellation.
	stop := context.AfterFunc(ctx, func() {
		s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	err := s.processIncomingMessages(ctx)

	cancel()
	s.recMu.Lock()
	if s.recognizer != nil {
		if cerr := s.recognizer.Close(); cerr != nil {
			s.logger.Warn().Err(cerr).Msg("Failed to close recognizer")
		}
	}
	s.recMu.Unlock()
	s.wg.Wait()
	return err
}

func (s *Stream) processIncomingMessages(ctx context.Context) error {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return fmt.Errorf("read message: %w", err)
			}
			return nil
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to parse client message")
			observability.RecordError("bad_message", "transport")
			continue
		}

		switch msg.Event {
		case EventStart:
			s.logger.Info().Msg("Stream started")
			s.ensureRecognizer(ctx)
		case EventSpeechStart:
			s.onSpeechStart(ctx)
		case EventTranscript:
			s.handleTranscript(ctx, msg)
		case EventMedia:
			s.handleMedia(ctx, msg)
		case EventStop:
			s.logger.Info().Msg("Stream stopped by client")
			return nil
		default:
			s.logger.Debug().Str("event", msg.Event).Msg("Ignoring unknown event")
		}
	}
}

func (s *Stream) handleTranscript(ctx context.Context, msg ClientMessage) {
	observability.RecordTranscript(msg.IsFinal)

	var err error
	if msg.IsFinal {
		err = s.session.Final(ctx, msg.Text)
	} else {
		err = s.session.Interim(ctx, msg.Text)
	}
	if err != nil {
		s.logger.Debug().Err(err).Msg("Transcript dropped")
	}
}

func (s *Stream) handleMedia(ctx context.Context, msg ClientMessage) {
	data, err := base64.StdEncoding.DecodeString(msg.Payload)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to decode media payload")
		observability.RecordError("bad_media", "transport")
		return
	}
	observability.RecordAudioBytes("inbound", len(data))

	samples, err := audio.DecodePCM16(data)
	if err != nil {
		s.logger.Warn().Err(err).Int("bytes", len(data)).Msg("Invalid PCM16 payload")
		return
	}
	for _, ev := range s.vad.Process(samples) {
		if ev == audio.VADSpeechStart {
			s.onSpeechStart(ctx)
		}
	}

	rec := s.ensureRecognizer(ctx)
	if rec == nil {
		return
	}
	if err := rec.SendAudio(data); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to send audio to recognizer")
	}
}

// ensureRecognizer starts the recognizer on first use. It returns nil when
// raw audio input is disabled or the recognizer could not start.
func (s *Stream) ensureRecognizer(ctx context.Context) stt.Recognizer {
	if s.opts.NewRecognizer == nil {
		return nil
	}

	s.recMu.Lock()
	defer s.recMu.Unlock()
	if s.recognizer != nil {
		return s.recognizer
	}

	rec := s.opts.NewRecognizer(s.direction, s.logger)
	if err := rec.Start(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Failed to start recognizer")
		observability.CaptureError(err, map[string]string{"component": "stt", "correlation_id": s.id})
		rec.Close()
		return nil
	}
	s.recognizer = rec

	s.wg.Add(1)
	go s.processRecognizerEvents(ctx, rec)
	return rec
}

// processRecognizerEvents feeds recognizer output into the session. Interims
// go straight through; finals are translated first because the session
// expects the final transcript in the target language.
func (s *Stream) processRecognizerEvents(ctx context.Context, rec stt.Recognizer) {
	defer s.wg.Done()

	var asm stt.Assembler
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-rec.Events():
			if !ok {
				return
			}
			if ev.Type == stt.EventSpeechStarted {
				s.onSpeechStart(ctx)
				continue
			}

			text, final, ok := asm.Add(ev)
			if !ok {
				continue
			}
			observability.RecordTranscript(final)

			if !final {
				if err := s.session.Interim(ctx, text); err != nil {
					return
				}
				continue
			}

			translated, err := s.translateFinal(ctx, text)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Warn().Err(err).Str("source", text).Msg("Final translation failed, dropping utterance")
				observability.CaptureError(err, map[string]string{"component": "transport", "correlation_id": s.id})
				s.session.Reset(ctx)
				continue
			}
			if err := s.session.Final(ctx, translated); err != nil {
				return
			}
		}
	}
}

func (s *Stream) translateFinal(ctx context.Context, text string) (string, error) {
	var out string
	err := resilience.Retry(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.opts.Config.BackendTimeout())
		defer cancel()

		resp, err := s.opts.Translator.Translate(callCtx, translator.Request{
			CurrentSource: text,
			SourceLang:    s.direction.SourceName,
			TargetLang:    s.direction.TargetName,
		})
		if err != nil {
			return err
		}
		out = resp.FullTranslation
		return nil
	}, s.opts.Retry, isRetryableBackendError)
	return out, err
}

// isRetryableBackendError retries rate limiting, server errors and transient
// network failures. An open breaker and well-formed but unusable answers fail
// immediately.
func isRetryableBackendError(err error) bool {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return false
	}
	var backendErr *translator.BackendError
	if !errors.As(err, &backendErr) {
		return resilience.IsRetryableNetworkError(err)
	}
	if code := backendErr.StatusCode; code != 0 {
		return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
	}
	return resilience.IsRetryableNetworkError(backendErr.Err)
}

// onSpeechStart marks the utterance and cuts off interim speech still playing.
func (s *Stream) onSpeechStart(ctx context.Context) {
	if err := s.session.SpeechStart(ctx); err != nil {
		return
	}
	if s.player == nil {
		return
	}
	if n := s.player.Interrupt(); n > 0 {
		s.logger.Debug().Int("interrupted", n).Msg("Barge-in interrupted speech")
		if err := s.send(InterruptMessage{Event: EventInterrupt}); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to send interrupt")
		}
	}
}

// SendAudio implements tts.AudioOutput.
func (s *Stream) SendAudio(_ context.Context, chunk tts.AudioChunk) error {
	observability.RecordAudioBytes("outbound", len(chunk.Data))
	return s.send(AudioMessage{
		Event:      EventAudio,
		Payload:    base64.StdEncoding.EncodeToString(chunk.Data),
		Format:     string(chunk.Format),
		SampleRate: chunk.SampleRate,
	})
}

// send serializes writes; gorilla connections allow one concurrent writer.
func (s *Stream) send(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}
