package sink

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/lexiqai/live-interpreter/internal/session"
)

func testRecord() session.Record {
	return session.Record{
		SessionID:          "sess-1",
		UtteranceID:        "utt-1",
		Direction:          "ru-en",
		BackendLatencyMs:   420,
		TimeToFirstAudioMs: 900,
		TotalMs:            2100,
		SpokenWordCount:    4,
		FinalWordCount:     6,
		CompletedAt:        time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaSink_Publish(t *testing.T) {
	w := &fakeWriter{}
	k := &KafkaSink{writer: w, topic: "metrics", logger: zerolog.Nop()}

	if err := k.Publish(context.Background(), testRecord()); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("wrote %d messages, want 1", len(w.msgs))
	}

	msg := w.msgs[0]
	if string(msg.Key) != "sess-1" {
		t.Errorf("key = %q, want session id", msg.Key)
	}
	var got session.Record
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("payload is not a record: %v", err)
	}
	if got.UtteranceID != "utt-1" || got.TimeToFirstAudioMs != 900 {
		t.Errorf("payload = %+v", got)
	}
	if !strings.Contains(string(msg.Value), `"backend_latency_ms":420`) {
		t.Errorf("payload missing snake_case fields: %s", msg.Value)
	}
}

func TestKafkaSink_PublishError(t *testing.T) {
	brokerDown := errors.New("broker down")
	k := &KafkaSink{writer: &fakeWriter{err: brokerDown}, topic: "metrics", logger: zerolog.Nop()}

	if err := k.Publish(context.Background(), testRecord()); !errors.Is(err, brokerDown) {
		t.Errorf("Publish() error = %v, want wrapped broker error", err)
	}
}

type fakeExecer struct {
	sql  []string
	args [][]any
	err  error
}

func (f *fakeExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = append(f.sql, sql)
	f.args = append(f.args, args)
	return pgconn.CommandTag{}, f.err
}

func TestPostgresSink(t *testing.T) {
	db := &fakeExecer{}
	p := &PostgresSink{db: db}

	if err := p.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := p.Publish(context.Background(), testRecord()); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if len(db.sql) != 2 || !strings.Contains(db.sql[0], "CREATE TABLE IF NOT EXISTS utterance_metrics") {
		t.Fatalf("unexpected statements %v", db.sql)
	}
	args := db.args[1]
	if len(args) != 12 || args[0] != "sess-1" || args[1] != "utt-1" || args[7] != 4 {
		t.Errorf("insert args = %v", args)
	}
}

func TestPostgresSink_Error(t *testing.T) {
	p := &PostgresSink{db: &fakeExecer{err: errors.New("connection refused")}}
	if err := p.Publish(context.Background(), testRecord()); err == nil {
		t.Error("expected insert error")
	}
}

type countingSink struct {
	n   int
	err error
}

func (c *countingSink) Publish(context.Context, session.Record) error {
	c.n++
	return c.err
}

func TestMulti_PublishesToAll(t *testing.T) {
	failing := &countingSink{err: errors.New("down")}
	ok := &countingSink{}
	m := Multi{failing, ok, Log{Logger: zerolog.Nop()}}

	err := m.Publish(context.Background(), testRecord())
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Errorf("Publish() error = %v", err)
	}
	if failing.n != 1 || ok.n != 1 {
		t.Errorf("a failing sink stopped the fan-out: %d/%d", failing.n, ok.n)
	}
}
