package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/live-interpreter/internal/observability"
	"github.com/lexiqai/live-interpreter/internal/translator"
)

// ErrSessionClosed is returned when an event is submitted after Run returned.
var ErrSessionClosed = errors.New("session closed")

type eventKind int

const (
	eventInterim eventKind = iota
	eventFinal
	eventSpeechStart
	eventBackendResult
	eventReset
	eventStats
)

type event struct {
	kind    eventKind
	text    string
	at      time.Time
	seq     uint64
	resp    *translator.Response
	err     error
	latency time.Duration
	reply   chan Summary
}

// Session serializes all events of one stream through a single goroutine.
// Transcripts, speech-start marks and backend results are queued in arrival
// order and applied by Run; nothing else touches the utterance state.
type Session struct {
	id         string
	cfg        Config
	translator translator.Translator
	speaker    Speaker
	sink       RecordSink
	metrics    *Accumulator
	logger     zerolog.Logger
	now        func() time.Time

	events chan event
	done   chan struct{}
	wg     sync.WaitGroup

	utt *Utterance
}

// Option customizes a Session.
type Option func(*Session)

// WithRecordSink publishes one Record per completed utterance.
func WithRecordSink(sink RecordSink) Option {
	return func(s *Session) { s.sink = sink }
}

// WithLogger sets the session logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithAccumulator shares a metrics accumulator with the caller.
func WithAccumulator(acc *Accumulator) Option {
	return func(s *Session) { s.metrics = acc }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New creates a session. Call Run to start processing.
func New(id string, cfg Config, t translator.Translator, speaker Speaker, opts ...Option) *Session {
	cfg = cfg.withDefaults()
	s := &Session{
		id:         id,
		cfg:        cfg,
		translator: t,
		speaker:    speaker,
		metrics:    NewAccumulator(),
		logger:     observability.GetLogger(),
		now:        time.Now,
		events:     make(chan event, cfg.QueueSize),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("session_id", id).Logger()
	s.utt = NewUtterance(cfg)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Metrics returns the session's running metrics.
func (s *Session) Metrics() *Accumulator { return s.metrics }

// Interim queues an interim source-language transcript.
func (s *Session) Interim(ctx context.Context, text string) error {
	return s.enqueue(ctx, event{kind: eventInterim, text: text})
}

// Final queues the final target-language transcript of the current utterance.
func (s *Session) Final(ctx context.Context, text string) error {
	return s.enqueue(ctx, event{kind: eventFinal, text: text})
}

// SpeechStart queues a speech-start mark for the current utterance.
func (s *Session) SpeechStart(ctx context.Context) error {
	return s.enqueue(ctx, event{kind: eventSpeechStart, at: s.now()})
}

// Reset abandons the current utterance without speaking its remainder.
func (s *Session) Reset(ctx context.Context) error {
	return s.enqueue(ctx, event{kind: eventReset})
}

// Stats returns the in-progress utterance's counters.
func (s *Session) Stats(ctx context.Context) (Summary, error) {
	reply := make(chan Summary, 1)
	if err := s.enqueue(ctx, event{kind: eventStats, reply: reply}); err != nil {
		return Summary{}, err
	}
	select {
	case summary := <-reply:
		return summary, nil
	case <-s.done:
		return Summary{}, ErrSessionClosed
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	}
}

func (s *Session) enqueue(ctx context.Context, ev event) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes events until ctx is cancelled. In-flight backend calls are
// cancelled and awaited before Run returns.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		close(s.done)
		cancel()
		s.wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			s.handle(ctx, ev)
		}
	}
}

func (s *Session) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case eventInterim:
		s.handleInterim(ctx, ev.text)
	case eventFinal:
		s.handleFinal(ctx, ev.text)
	case eventSpeechStart:
		s.utt.MarkSpeechStart(ev.at)
		s.logger.Debug().Str("utterance_id", s.utt.ID()).Msg("Speech started")
	case eventBackendResult:
		s.handleBackendResult(ctx, ev)
	case eventReset:
		s.logger.Debug().Str("utterance_id", s.utt.ID()).Msg("Utterance reset")
		s.utt.Reset()
	case eventStats:
		ev.reply <- s.utt.Stats()
	}
}

func (s *Session) handleInterim(ctx context.Context, text string) {
	req, ok := s.utt.Observe(text)
	if !ok {
		return
	}

	s.logger.Debug().
		Str("utterance_id", s.utt.ID()).
		Uint64("seq", req.Seq).
		Str("stable_source", req.CurrentSource).
		Msg("Requesting translation")

	s.wg.Add(1)
	go s.translate(ctx, req)
}

// translate runs on its own goroutine and reports back through the event
// queue; it never touches session state directly.
func (s *Session) translate(ctx context.Context, req translator.Request) {
	defer s.wg.Done()

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.BackendTimeout)
	defer cancel()

	start := s.now()
	resp, err := s.translator.Translate(callCtx, req)
	ev := event{kind: eventBackendResult, seq: req.Seq, text: req.CurrentSource, resp: resp, err: err, latency: s.now().Sub(start)}
	if err == nil && resp == nil {
		ev.err = &translator.BackendError{Backend: s.translator.Name(), Source: req.CurrentSource, Latency: ev.latency, Err: errors.New("nil response")}
	}

	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Session) handleBackendResult(ctx context.Context, ev event) {
	if ev.err != nil {
		latency := ev.latency
		var backendErr *translator.BackendError
		if errors.As(ev.err, &backendErr) && backendErr.Latency > 0 {
			latency = backendErr.Latency
		}
		if !s.utt.Fail(ev.seq, latency) {
			return
		}
		s.logger.Warn().
			Err(ev.err).
			Str("utterance_id", s.utt.ID()).
			Uint64("seq", ev.seq).
			Str("stable_source", ev.text).
			Int64("latency_ms", latency.Milliseconds()).
			Msg("Translation failed")
		observability.RecordError("backend", "session")
		return
	}

	resp := *ev.resp
	resp.Seq = ev.seq
	action, result, outcome := s.utt.Apply(&resp, s.now())
	switch outcome {
	case Stale:
		observability.RecordDiscarded("stale")
		s.logger.Debug().Uint64("seq", ev.seq).Msg("Discarded stale translation")
		return
	case BelowMinimum:
		observability.RecordDiscarded("below_minimum")
		s.logger.Debug().
			Uint64("seq", ev.seq).
			Int("delta_words", len(result.Delta)).
			Msg("Translation delta below minimum")
		return
	}

	s.logger.Info().
		Str("utterance_id", action.UtteranceID).
		Str("text", action.Text).
		Int64("latency_ms", result.Latency.Milliseconds()).
		Msg("Speaking interim translation")
	s.speak(ctx, action)
}

func (s *Session) handleFinal(ctx context.Context, text string) {
	action, summary, ok := s.utt.Finalize(text)
	if !ok {
		return
	}
	observability.RecordUtterance()

	if ttfa := summary.TimeToFirstAudio(); ttfa > 0 {
		observability.RecordTimeToFirstAudio(ttfa)
	}

	var done <-chan struct{}
	ttsStart := s.now()
	if action.Text != "" {
		s.logger.Info().
			Str("utterance_id", action.UtteranceID).
			Str("text", action.Text).
			Msg("Speaking final remainder")
		done = s.speak(ctx, action)
	}

	s.wg.Add(1)
	go s.complete(ctx, summary, ttsStart, done)
}

func (s *Session) speak(ctx context.Context, action SpeakAction) <-chan struct{} {
	observability.RecordSpeak(action.Interruptible, len(strings.Fields(action.Text)))
	done, err := s.speaker.Speak(ctx, action)
	if err != nil {
		// The words already count as spoken, so the final remainder skips them.
		s.logger.Warn().
			Err(err).
			Str("utterance_id", action.UtteranceID).
			Str("text", action.Text).
			Int("lost_words", len(strings.Fields(action.Text))).
			Msg("Speak failed")
		observability.RecordError("speak", "session")
		return nil
	}
	return done
}

// complete waits for the final speech, then records utterance metrics.
func (s *Session) complete(ctx context.Context, summary Summary, ttsStart time.Time, done <-chan struct{}) {
	defer s.wg.Done()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
	}

	end := s.now()
	var tts, total time.Duration
	if done != nil {
		tts = end.Sub(ttsStart)
		observability.RecordTTS(tts)
	}
	if !summary.SpeechStart.IsZero() {
		total = end.Sub(summary.SpeechStart)
	}
	firstAudio := summary.TimeToFirstAudio()
	if firstAudio == 0 {
		firstAudio = total
	}

	s.metrics.Add(Sample{
		FirstAudio: firstAudio,
		Backend:    summary.BackendLatency,
		TTS:        tts,
		Total:      total,
	})

	rec := Record{
		SessionID:          s.id,
		UtteranceID:        summary.UtteranceID,
		Direction:          s.cfg.Direction,
		BackendLatencyMs:   summary.BackendLatency.Milliseconds(),
		TimeToFirstAudioMs: firstAudio.Milliseconds(),
		TTSMs:              tts.Milliseconds(),
		TotalMs:            total.Milliseconds(),
		SpokenWordCount:    summary.SpokenWords,
		FinalWordCount:     summary.FinalWords,
		InterimCount:       summary.Interims,
		StaleDiscarded:     summary.StaleDiscarded,
		CompletedAt:        end.UTC(),
	}

	s.logger.Info().
		Str("utterance_id", rec.UtteranceID).
		Int64("first_audio_ms", rec.TimeToFirstAudioMs).
		Int64("backend_ms", rec.BackendLatencyMs).
		Int64("total_ms", rec.TotalMs).
		Str("summary", s.metrics.Summary()).
		Msg("Utterance complete")

	if s.sink == nil {
		return
	}
	if err := s.sink.Publish(ctx, rec); err != nil {
		s.logger.Warn().Err(err).Str("utterance_id", rec.UtteranceID).Msg("Failed to publish utterance record")
		observability.RecordError("publish", "session")
	}
}
