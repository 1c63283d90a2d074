package transport

import (
	"context"

	"github.com/lexiqai/live-interpreter/internal/session"
)

// clientSpeaker sends each speak action to the client as text and, when a
// player is configured, queues it for synthesis.
type clientSpeaker struct {
	stream *Stream
}

func (c clientSpeaker) Speak(ctx context.Context, action session.SpeakAction) (<-chan struct{}, error) {
	err := c.stream.send(SpeakMessage{
		Event:         EventSpeak,
		Text:          action.Text,
		Interruptible: action.Interruptible,
		UtteranceID:   action.UtteranceID,
	})
	if err != nil {
		return nil, err
	}

	if c.stream.player == nil {
		done := make(chan struct{})
		close(done)
		return done, nil
	}
	return c.stream.player.Speak(ctx, action)
}

// clientMetrics reports each completed utterance back to the client.
type clientMetrics struct {
	stream *Stream
}

func (c clientMetrics) Publish(_ context.Context, rec session.Record) error {
	return c.stream.send(MetricsMessage{
		Event:   EventMetrics,
		STTMs:   rec.TimeToFirstAudioMs,
		TTSMs:   rec.TTSMs,
		TotalMs: rec.TotalMs,
		LLMMs:   rec.BackendLatencyMs,
	})
}
