package session

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lexiqai/live-interpreter/internal/delta"
	"github.com/lexiqai/live-interpreter/internal/stability"
	"github.com/lexiqai/live-interpreter/internal/translator"
)

// Outcome of applying a backend response.
type Outcome int

const (
	// Committed responses advance the translated prefix and produce speech.
	Committed Outcome = iota
	// Stale responses belong to a reset utterance or were overtaken by a
	// newer commit.
	Stale
	// BelowMinimum responses carried fewer new words than MinWordsForTTS.
	BelowMinimum
)

func (o Outcome) String() string {
	switch o {
	case Committed:
		return "committed"
	case Stale:
		return "stale"
	case BelowMinimum:
		return "below_minimum"
	default:
		return "unknown"
	}
}

// Summary describes an utterance at the moment its final transcript arrived.
type Summary struct {
	UtteranceID    string
	SpeechStart    time.Time
	FirstAudio     time.Time
	BackendLatency time.Duration
	SpokenWords    int
	FinalWords     int
	Interims       int
	StaleDiscarded int
}

// TimeToFirstAudio is zero unless both timestamps were recorded.
func (s Summary) TimeToFirstAudio() time.Duration {
	if s.SpeechStart.IsZero() || s.FirstAudio.IsZero() {
		return 0
	}
	return s.FirstAudio.Sub(s.SpeechStart)
}

// Utterance holds reconciliation state for one spoken utterance. It is not
// safe for concurrent use; Session owns it from a single goroutine.
type Utterance struct {
	cfg Config

	id                  string
	state               State
	history             []string
	lastStableSource    string
	translatedPrefix    string
	spokenWords         int
	lastRequestedSource string

	// Sequence numbers keep increasing across resets so a response from a
	// previous utterance can never match a pending request of the next one.
	nextSeq      uint64
	resetSeq     uint64 // nextSeq at the last reset
	committedSeq uint64
	pending      map[uint64]string

	speechStart    time.Time
	firstAudio     time.Time
	latencyTotal   time.Duration
	latencyCount   int
	staleDiscarded int
}

// NewUtterance creates an idle utterance.
func NewUtterance(cfg Config) *Utterance {
	u := &Utterance{cfg: cfg.withDefaults()}
	u.Reset()
	return u
}

// ID identifies the current utterance; it changes on every reset.
func (u *Utterance) ID() string { return u.id }

// State returns the current state.
func (u *Utterance) State() State { return u.state }

// SpokenWords returns the number of words emitted by incremental speech.
func (u *Utterance) SpokenWords() int { return u.spokenWords }

// TranslatedPrefix returns the last committed full translation.
func (u *Utterance) TranslatedPrefix() string { return u.translatedPrefix }

// LastStableSource returns the source text of the last commit.
func (u *Utterance) LastStableSource() string { return u.lastStableSource }

// Interims returns the number of observations recorded.
func (u *Utterance) Interims() int { return len(u.history) }

// Pending returns the number of backend requests awaiting a response.
func (u *Utterance) Pending() int { return len(u.pending) }

// MarkSpeechStart records when the speaker began talking. The first mark of
// an utterance wins.
func (u *Utterance) MarkSpeechStart(now time.Time) {
	if u.speechStart.IsZero() {
		u.speechStart = now
	}
}

// Observe records an interim transcript. It returns a request when the stable
// prefix differs from the last committed source and is not already in flight.
func (u *Utterance) Observe(text string) (translator.Request, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return translator.Request{}, false
	}

	u.history = append(u.history, text)
	if u.state == StateIdle || u.state == StateSpeaking {
		u.state = StateAccumulating
	}

	stable := stability.Text(u.history, u.cfg.StabilityThreshold, u.translatedPrefix)
	if stable == "" || stable == u.lastStableSource || stable == u.lastRequestedSource {
		return translator.Request{}, false
	}

	u.nextSeq++
	u.pending[u.nextSeq] = stable
	u.lastRequestedSource = stable
	u.state = StateTranslating

	return translator.Request{
		Seq:                 u.nextSeq,
		CurrentSource:       stable,
		PreviousSource:      u.lastStableSource,
		PreviousTranslation: u.translatedPrefix,
		SourceLang:          u.cfg.SourceLang,
		TargetLang:          u.cfg.TargetLang,
	}, true
}

// Apply reconciles a backend response. The delta is computed against the
// translated prefix as it is now, not as it was when the request was issued.
func (u *Utterance) Apply(resp *translator.Response, now time.Time) (SpeakAction, TranslationResult, Outcome) {
	source, ok := u.pending[resp.Seq]
	if !ok {
		// Leftovers from before the last reset are not this utterance's.
		if resp.Seq > u.resetSeq {
			u.staleDiscarded++
		}
		return SpeakAction{}, TranslationResult{}, Stale
	}
	delete(u.pending, resp.Seq)
	u.latencyTotal += resp.Latency
	u.latencyCount++
	defer u.settle()

	if resp.Seq <= u.committedSeq {
		u.staleDiscarded++
		return SpeakAction{}, TranslationResult{}, Stale
	}

	full := delta.StripQuotes(resp.FullTranslation)
	words := delta.Compute(u.translatedPrefix, full)
	result := TranslationResult{Delta: words, FullTranslation: full, Latency: resp.Latency}
	if len(words) == 0 || len(words) < u.cfg.MinWordsForTTS {
		if source == u.lastRequestedSource {
			u.lastRequestedSource = ""
		}
		return SpeakAction{}, result, BelowMinimum
	}

	u.committedSeq = resp.Seq
	u.lastStableSource = source
	u.translatedPrefix = full
	u.spokenWords += len(words)
	if u.firstAudio.IsZero() && !u.speechStart.IsZero() {
		u.firstAudio = now
	}
	u.state = StateSpeaking

	return SpeakAction{
		Text:          strings.Join(words, " "),
		Interruptible: true,
		UtteranceID:   u.id,
	}, result, Committed
}

// Fail drops a pending request after a backend error. Committed state is left
// untouched; the source may be requested again by a later interim.
func (u *Utterance) Fail(seq uint64, latency time.Duration) bool {
	source, ok := u.pending[seq]
	if !ok {
		return false
	}
	delete(u.pending, seq)
	u.latencyTotal += latency
	u.latencyCount++
	if source == u.lastRequestedSource {
		u.lastRequestedSource = ""
	}
	u.settle()
	return true
}

func (u *Utterance) settle() {
	if u.state == StateTranslating && len(u.pending) == 0 {
		u.state = StateAccumulating
	}
}

// Finalize reconciles the final target-language transcript. It returns the
// words not yet spoken as a non-interruptible action (empty Text when nothing
// remains) and resets the utterance. A blank final is ignored.
func (u *Utterance) Finalize(text string) (SpeakAction, Summary, bool) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return SpeakAction{}, Summary{}, false
	}
	u.state = StateFinalizing

	action := SpeakAction{UtteranceID: u.id}
	if u.spokenWords < len(words) {
		action.Text = strings.Join(words[u.spokenWords:], " ")
	}

	summary := u.Stats()
	summary.FinalWords = len(words)

	u.Reset()
	return action, summary, true
}

// Stats reports the current utterance without changing it.
func (u *Utterance) Stats() Summary {
	summary := Summary{
		UtteranceID:    u.id,
		SpeechStart:    u.speechStart,
		FirstAudio:     u.firstAudio,
		SpokenWords:    u.spokenWords,
		Interims:       len(u.history),
		StaleDiscarded: u.staleDiscarded,
	}
	if u.latencyCount > 0 {
		summary.BackendLatency = u.latencyTotal / time.Duration(u.latencyCount)
	}
	return summary
}

// Reset clears all per-utterance state. Responses to requests issued before
// the reset are treated as stale.
func (u *Utterance) Reset() {
	u.id = uuid.New().String()
	u.state = StateIdle
	u.history = nil
	u.lastStableSource = ""
	u.translatedPrefix = ""
	u.spokenWords = 0
	u.lastRequestedSource = ""
	u.pending = make(map[uint64]string)
	u.resetSeq = u.nextSeq
	u.speechStart = time.Time{}
	u.firstAudio = time.Time{}
	u.latencyTotal = 0
	u.latencyCount = 0
	u.staleDiscarded = 0
}
