// Package sink publishes completed-utterance records to downstream stores.
package sink

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/lexiqai/live-interpreter/internal/session"
)

// Multi fans a record out to every sink. All sinks are attempted; their
// errors are joined.
type Multi []session.RecordSink

// Publish implements session.RecordSink.
func (m Multi) Publish(ctx context.Context, rec session.Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes records to the structured log. Used when no broker or
// database is configured.
type Log struct {
	Logger zerolog.Logger
}

// Publish implements session.RecordSink.
func (l Log) Publish(_ context.Context, rec session.Record) error {
	l.Logger.Info().
		Str("session_id", rec.SessionID).
		Str("utterance_id", rec.UtteranceID).
		Str("direction", rec.Direction).
		Int64("backend_latency_ms", rec.BackendLatencyMs).
		Int64("time_to_first_audio_ms", rec.TimeToFirstAudioMs).
		Int64("tts_ms", rec.TTSMs).
		Int64("total_ms", rec.TotalMs).
		Int("spoken_word_count", rec.SpokenWordCount).
		Int("final_word_count", rec.FinalWordCount).
		Msg("Utterance record")
	return nil
}
