package tts

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/live-interpreter/internal/observability"
	"github.com/lexiqai/live-interpreter/internal/session"
)

// ErrPlayerClosed is returned by Speak after the player stopped.
var ErrPlayerClosed = errors.New("player closed")

const maxQueuedJobs = 32

type job struct {
	action session.SpeakAction
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (j *job) finish() {
	j.once.Do(func() {
		j.cancel()
		close(j.done)
	})
}

// Player synthesizes speak actions one at a time, in the order they were
// queued. Interim speech can be interrupted when the speaker starts talking
// again; the final remainder of an utterance always plays through.
type Player struct {
	synth  Synthesizer
	out    AudioOutput
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}

	mu      sync.Mutex
	queue   []*job
	current *job
	closed  bool
}

// NewPlayer creates a player. Call Run to start playback.
func NewPlayer(synth Synthesizer, out AudioOutput, logger zerolog.Logger) *Player {
	ctx, cancel := context.WithCancel(context.Background())
	return &Player{
		synth:  synth,
		out:    out,
		logger: logger.With().Str("component", "tts_player").Logger(),
		ctx:    ctx,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
	}
}

// Speak queues an action and returns a channel closed when it finished
// playing or was interrupted. It never waits for playback.
func (p *Player) Speak(_ context.Context, action session.SpeakAction) (<-chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPlayerClosed
	}
	if len(p.queue) >= maxQueuedJobs {
		return nil, errors.New("speech queue full")
	}

	ctx, cancel := context.WithCancel(p.ctx)
	j := &job{action: action, ctx: ctx, cancel: cancel, done: make(chan struct{})}
	p.queue = append(p.queue, j)

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return j.done, nil
}

// Interrupt stops the interruptible action being played and drops queued
// interruptible actions. It returns how many actions were cut.
func (p *Player) Interrupt() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	kept := p.queue[:0]
	for _, j := range p.queue {
		if j.action.Interruptible {
			j.finish()
			n++
			continue
		}
		kept = append(kept, j)
	}
	p.queue = kept

	if p.current != nil && p.current.action.Interruptible && p.current.ctx.Err() == nil {
		p.current.cancel()
		n++
	}

	if n > 0 {
		p.logger.Debug().Int("interrupted", n).Msg("Interrupted interim speech")
	}
	return n
}

// Run plays queued actions until ctx is cancelled. Pending actions are
// dropped on exit.
func (p *Player) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, p.cancel)
	defer stop()
	defer p.shutdown()

	for {
		if j := p.next(); j != nil {
			p.play(j)
			continue
		}

		select {
		case <-p.ctx.Done():
			return ctx.Err()
		case <-p.wake:
		}
	}
}

func (p *Player) next() *job {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) == 0 {
		return nil
	}
	j := p.queue[0]
	p.queue = p.queue[1:]
	p.current = j
	return j
}

func (p *Player) play(j *job) {
	defer func() {
		p.mu.Lock()
		p.current = nil
		p.mu.Unlock()
		j.finish()
	}()

	if j.ctx.Err() != nil {
		return
	}

	start := time.Now()
	err := p.synth.Synthesize(j.ctx, j.action.Text, func(chunk AudioChunk) error {
		return p.out.SendAudio(j.ctx, chunk)
	})

	switch {
	case err == nil:
		p.logger.Debug().
			Str("utterance_id", j.action.UtteranceID).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("Speech delivered")
	case j.ctx.Err() != nil:
		p.logger.Debug().Str("utterance_id", j.action.UtteranceID).Msg("Speech cut short")
	default:
		p.logger.Warn().Err(err).Str("utterance_id", j.action.UtteranceID).Msg("Speech synthesis failed")
		observability.RecordError("synthesis", "tts")
		observability.CaptureError(err, map[string]string{"component": "tts"})
	}
}

func (p *Player) shutdown() {
	p.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for _, j := range p.queue {
		j.finish()
	}
	p.queue = nil
}
