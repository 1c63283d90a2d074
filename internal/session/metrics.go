package session

import (
	"fmt"
	"sync"
	"time"
)

// Sample is the timing of one completed utterance.
type Sample struct {
	FirstAudio time.Duration
	Backend    time.Duration
	TTS        time.Duration
	Total      time.Duration
}

// Snapshot holds running averages over all samples.
type Snapshot struct {
	Samples       int
	AvgFirstAudio time.Duration
	AvgBackend    time.Duration
	AvgTTS        time.Duration
	AvgTotal      time.Duration
}

// Accumulator keeps per-session latency samples. Safe for concurrent use.
type Accumulator struct {
	mu      sync.Mutex
	samples []Sample
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Add appends a sample.
func (a *Accumulator) Add(s Sample) {
	a.mu.Lock()
	a.samples = append(a.samples, s)
	a.mu.Unlock()
}

// Snapshot computes the current averages.
func (a *Accumulator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{Samples: len(a.samples)}
	if snap.Samples == 0 {
		return snap
	}

	var sum Sample
	for _, s := range a.samples {
		sum.FirstAudio += s.FirstAudio
		sum.Backend += s.Backend
		sum.TTS += s.TTS
		sum.Total += s.Total
	}
	n := time.Duration(snap.Samples)
	snap.AvgFirstAudio = sum.FirstAudio / n
	snap.AvgBackend = sum.Backend / n
	snap.AvgTTS = sum.TTS / n
	snap.AvgTotal = sum.Total / n
	return snap
}

// Summary renders the averages for logs.
func (a *Accumulator) Summary() string {
	snap := a.Snapshot()
	if snap.Samples == 0 {
		return "No data yet"
	}
	return fmt.Sprintf("[%d samples] FirstAudio: %dms | Backend: %dms | Total: %dms",
		snap.Samples,
		snap.AvgFirstAudio.Milliseconds(),
		snap.AvgBackend.Milliseconds(),
		snap.AvgTotal.Milliseconds())
}
