// Package translator calls machine-translation backends for growing source
// prefixes. Every failure surfaces as a *BackendError so callers can recover
// locally without inspecting transport details.
package translator

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Request asks a backend to translate the current stable source prefix.
// PreviousSource and PreviousTranslation carry the last committed pair as
// context; both are empty at the start of an utterance. SourceLang and
// TargetLang are language names as they appear in the prompt.
type Request struct {
	Seq                 uint64
	CurrentSource       string
	PreviousSource      string
	PreviousTranslation string
	SourceLang          string
	TargetLang          string
}

// HasContext reports whether the request carries a prior committed pair.
func (r Request) HasContext() bool {
	return strings.TrimSpace(r.PreviousSource) != "" && strings.TrimSpace(r.PreviousTranslation) != ""
}

// Response is a backend's translation of Request.CurrentSource.
type Response struct {
	Seq             uint64
	FullTranslation string
	Latency         time.Duration
}

// Translator is implemented by every translation backend.
type Translator interface {
	Translate(ctx context.Context, req Request) (*Response, error)
	Name() string
}

// BackendError is returned for network failures, non-2xx responses,
// timeouts and empty content.
type BackendError struct {
	Backend    string
	Source     string
	Latency    time.Duration
	StatusCode int
	Err        error
}

func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s backend error (status %d) after %dms: %v", e.Backend, e.StatusCode, e.Latency.Milliseconds(), e.Err)
	}
	return fmt.Sprintf("%s backend error after %dms: %v", e.Backend, e.Latency.Milliseconds(), e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
