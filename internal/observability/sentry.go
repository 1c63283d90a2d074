package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

var sentryEnabled bool

// InitSentry enables error reporting when a DSN is configured.
func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		EnableTracing:    true,
		TracesSampleRate: 0.2,
	})
	if err != nil {
		return err
	}
	sentryEnabled = true
	return nil
}

// CaptureError reports err with the given tags. A no-op without Sentry.
func CaptureError(err error, tags map[string]string) {
	if !sentryEnabled || err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// FlushSentry waits for buffered events before shutdown.
func FlushSentry() {
	if sentryEnabled {
		sentry.Flush(2 * time.Second)
	}
}
