// Package stt streams inbound audio to a speech recognizer and turns its
// segment-level results into utterance-level interim and final transcripts.
package stt

import (
	"context"
	"strings"
)

// EventType distinguishes recognizer events.
type EventType int

const (
	EventTranscript EventType = iota
	EventSpeechStarted
	EventUtteranceEnd
)

// Event is a recognizer result. Only transcript events carry text.
type Event struct {
	Type        EventType
	Text        string
	IsFinal     bool // segment will not be revised
	SpeechFinal bool // recognizer detected the end of the utterance
	Confidence  float64
	Start       float64
	Duration    float64
}

// Recognizer is a streaming speech-to-text client.
type Recognizer interface {
	Start(ctx context.Context) error
	SendAudio(pcm []byte) error
	Events() <-chan Event
	Close() error
}

// Assembler joins recognizer segments into utterance text. Interim results
// are reported as the finalized segments so far plus the current hypothesis,
// so downstream consumers always see the utterance growing from its start.
type Assembler struct {
	segments []string
}

// Add consumes an event and returns the utterance text to report, whether it
// is the final text of the utterance, and whether anything should be reported.
func (a *Assembler) Add(ev Event) (text string, final bool, ok bool) {
	switch ev.Type {
	case EventTranscript:
		segment := strings.TrimSpace(ev.Text)
		if !ev.IsFinal {
			if segment == "" {
				return "", false, false
			}
			return a.join(segment), false, true
		}
		if segment != "" {
			a.segments = append(a.segments, segment)
		}
		if ev.SpeechFinal {
			return a.flush()
		}
		if len(a.segments) == 0 {
			return "", false, false
		}
		return a.join(""), false, true
	case EventUtteranceEnd:
		return a.flush()
	}
	return "", false, false
}

// Reset drops any partial utterance.
func (a *Assembler) Reset() {
	a.segments = nil
}

func (a *Assembler) flush() (string, bool, bool) {
	if len(a.segments) == 0 {
		return "", false, false
	}
	text := a.join("")
	a.segments = nil
	return text, true, true
}

func (a *Assembler) join(current string) string {
	parts := a.segments
	if current != "" {
		parts = append(parts[:len(parts):len(parts)], current)
	}
	return strings.Join(parts, " ")
}
