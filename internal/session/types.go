// Package session reconciles a stream of interim source transcripts and one
// final target-language transcript per utterance into a sequence of speak
// actions. Interim text is translated incrementally once it is stable; the
// final transcript fills in whatever the incremental path did not say.
package session

import (
	"context"
	"time"
)

// Config is immutable for the lifetime of a session.
type Config struct {
	StabilityThreshold int
	MinWordsForTTS     int
	BackendTimeout     time.Duration
	QueueSize          int

	Direction  string
	SourceLang string // language names passed to the translator
	TargetLang string
}

func (c Config) withDefaults() Config {
	if c.StabilityThreshold < 1 {
		c.StabilityThreshold = 2
	}
	if c.MinWordsForTTS < 0 {
		c.MinWordsForTTS = 0
	}
	if c.BackendTimeout <= 0 {
		c.BackendTimeout = 2 * time.Second
	}
	if c.QueueSize < 1 {
		c.QueueSize = 64
	}
	return c
}

// State of the current utterance.
type State int

const (
	StateIdle State = iota
	StateAccumulating
	StateTranslating
	StateSpeaking
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	case StateTranslating:
		return "translating"
	case StateSpeaking:
		return "speaking"
	case StateFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// SpeakAction is text handed to speech output. Incremental actions are
// interruptible; the final remainder is not.
type SpeakAction struct {
	Text          string
	Interruptible bool
	UtteranceID   string
}

// TranslationResult is a committed backend response.
type TranslationResult struct {
	Delta           []string
	FullTranslation string
	Latency         time.Duration
}

// Speaker plays speak actions. Speak must not block on playback; the returned
// channel is closed once the action has been fully delivered.
type Speaker interface {
	Speak(ctx context.Context, action SpeakAction) (<-chan struct{}, error)
}

// RecordSink receives one Record per completed utterance.
type RecordSink interface {
	Publish(ctx context.Context, rec Record) error
}

// Record summarizes a completed utterance.
type Record struct {
	SessionID          string    `json:"session_id"`
	UtteranceID        string    `json:"utterance_id"`
	Direction          string    `json:"direction"`
	BackendLatencyMs   int64     `json:"backend_latency_ms"`
	TimeToFirstAudioMs int64     `json:"time_to_first_audio_ms"`
	TTSMs              int64     `json:"tts_ms"`
	TotalMs            int64     `json:"total_ms"`
	SpokenWordCount    int       `json:"spoken_word_count"`
	FinalWordCount     int       `json:"final_word_count"`
	InterimCount       int       `json:"interim_count"`
	StaleDiscarded     int       `json:"stale_discarded"`
	CompletedAt        time.Time `json:"completed_at"`
}
