package stt

import "testing"

func TestAssembler(t *testing.T) {
	type step struct {
		ev        Event
		wantText  string
		wantFinal bool
		wantOK    bool
	}
	transcript := func(text string, isFinal, speechFinal bool) Event {
		return Event{Type: EventTranscript, Text: text, IsFinal: isFinal, SpeechFinal: speechFinal}
	}

	tests := []struct {
		name  string
		steps []step
	}{
		{
			name: "single segment",
			steps: []step{
				{ev: transcript("привет", false, false), wantText: "привет", wantOK: true},
				{ev: transcript("привет мой", false, false), wantText: "привет мой", wantOK: true},
				{ev: transcript("привет мой друг", true, true), wantText: "привет мой друг", wantFinal: true, wantOK: true},
			},
		},
		{
			name: "segments accumulate",
			steps: []step{
				{ev: transcript("привет мой", true, false), wantText: "привет мой", wantOK: true},
				{ev: transcript("друг как", false, false), wantText: "привет мой друг как", wantOK: true},
				{ev: transcript("друг как дела", true, false), wantText: "привет мой друг как дела", wantOK: true},
				{ev: Event{Type: EventUtteranceEnd}, wantText: "привет мой друг как дела", wantFinal: true, wantOK: true},
				{ev: Event{Type: EventUtteranceEnd}},
			},
		},
		{
			name: "blank results are skipped",
			steps: []step{
				{ev: transcript("  ", false, false)},
				{ev: transcript("", true, false)},
				{ev: transcript("", true, true)},
				{ev: Event{Type: EventSpeechStarted}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Assembler
			for i, s := range tt.steps {
				text, final, ok := a.Add(s.ev)
				if text != s.wantText || final != s.wantFinal || ok != s.wantOK {
					t.Errorf("step %d: Add() = (%q, %v, %v), want (%q, %v, %v)",
						i, text, final, ok, s.wantText, s.wantFinal, s.wantOK)
				}
			}
		})
	}
}

func TestAssembler_Reset(t *testing.T) {
	var a Assembler
	a.Add(Event{Type: EventTranscript, Text: "hello", IsFinal: true})
	a.Reset()

	if _, _, ok := a.Add(Event{Type: EventUtteranceEnd}); ok {
		t.Error("reset assembler flushed stale segments")
	}
}
