package translator

import (
	"context"
	"errors"
	"time"

	"github.com/lexiqai/live-interpreter/internal/observability"
	"github.com/lexiqai/live-interpreter/internal/resilience"
)

// Guarded wraps a Translator with a circuit breaker and backend metrics.
// While the breaker is open, calls fail fast with a *BackendError wrapping
// resilience.ErrCircuitOpen.
type Guarded struct {
	next    Translator
	breaker *resilience.CircuitBreaker
}

// NewGuarded creates a breaker-protected translator.
func NewGuarded(next Translator, breaker *resilience.CircuitBreaker) *Guarded {
	return &Guarded{next: next, breaker: breaker}
}

// Name implements Translator.
func (g *Guarded) Name() string {
	return g.next.Name()
}

// Translate implements Translator.
func (g *Guarded) Translate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	var resp *Response
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		resp, err = g.next.Translate(ctx, req)
		return err
	})

	if err != nil {
		var backendErr *BackendError
		if !errors.As(err, &backendErr) {
			err = &BackendError{
				Backend: g.Name(),
				Source:  req.CurrentSource,
				Latency: time.Since(start),
				Err:     err,
			}
		}
		observability.RecordBackendCall(g.Name(), time.Since(start), err)
		return nil, err
	}

	observability.RecordBackendCall(g.Name(), resp.Latency, nil)
	return resp, nil
}
