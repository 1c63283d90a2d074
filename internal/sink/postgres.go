package sink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lexiqai/live-interpreter/internal/session"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const createUtteranceTable = `
	CREATE TABLE IF NOT EXISTS utterance_metrics (
		id BIGSERIAL PRIMARY KEY,
		session_id TEXT NOT NULL,
		utterance_id TEXT NOT NULL UNIQUE,
		direction TEXT NOT NULL,
		backend_latency_ms BIGINT NOT NULL,
		time_to_first_audio_ms BIGINT NOT NULL,
		tts_ms BIGINT NOT NULL,
		total_ms BIGINT NOT NULL,
		spoken_word_count INT NOT NULL,
		final_word_count INT NOT NULL,
		interim_count INT NOT NULL,
		stale_discarded INT NOT NULL,
		completed_at TIMESTAMPTZ NOT NULL
	)`

// PostgresSink stores one row per utterance.
type PostgresSink struct {
	db execer
}

// NewPostgresSink creates a sink over an existing pool.
func NewPostgresSink(db *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{db: db}
}

// EnsureSchema creates the metrics table if it does not exist.
func (p *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, createUtteranceTable); err != nil {
		return fmt.Errorf("failed to create utterance_metrics table: %w", err)
	}
	return nil
}

// Publish implements session.RecordSink.
func (p *PostgresSink) Publish(ctx context.Context, rec session.Record) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO utterance_metrics (
			session_id, utterance_id, direction, backend_latency_ms, time_to_first_audio_ms,
			tts_ms, total_ms, spoken_word_count, final_word_count, interim_count,
			stale_discarded, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (utterance_id) DO NOTHING
	`, rec.SessionID, rec.UtteranceID, rec.Direction, rec.BackendLatencyMs, rec.TimeToFirstAudioMs,
		rec.TTSMs, rec.TotalMs, rec.SpokenWordCount, rec.FinalWordCount, rec.InterimCount,
		rec.StaleDiscarded, rec.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to insert utterance record: %w", err)
	}
	return nil
}
