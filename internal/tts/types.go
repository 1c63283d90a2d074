// Package tts synthesizes speak actions and plays them to an audio output
// in order, with barge-in interruption of interim speech.
package tts

import (
	"context"

	"github.com/lexiqai/live-interpreter/internal/audio"
)

// AudioChunk is encoded audio ready for the client.
type AudioChunk struct {
	Data       []byte
	Format     audio.Format
	SampleRate int
}

// Synthesizer streams synthesized audio for text to emit. It returns when
// synthesis completes, fails, or ctx is cancelled.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, emit func(AudioChunk) error) error
}

// AudioOutput delivers audio chunks to the listener.
type AudioOutput interface {
	SendAudio(ctx context.Context, chunk AudioChunk) error
}
