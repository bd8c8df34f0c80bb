// Package logging configures the process-wide structured logger used by
// every other package: JSON output on stdout, level controlled by LOG_LEVEL,
// request/job-scoped fields attached via context.
package logging

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Log is the base logger. Packages should prefer FromContext when a
// request- or job-scoped logger has been attached, falling back to Log.
var Log zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	level := zerolog.InfoLevel
	if s := os.Getenv("LOG_LEVEL"); s != "" {
		if l, err := zerolog.ParseLevel(s); err == nil {
			level = l
		}
	}
	Log = zerolog.New(os.Stdout).Level(level).With().Timestamp().Caller().Logger()
}

type ctxKey struct{}

// WithLogger attaches l to ctx so downstream calls can recover it via
// FromContext.
func WithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger attached to ctx, or the package-wide Log if
// none was attached.
func FromContext(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return Log
}

// WithFields returns a derived context whose logger carries the given
// key/value pairs on every subsequent log line, the way a request id or job
// id is threaded through an ingestion run.
func WithFields(ctx context.Context, fields map[string]any) context.Context {
	l := FromContext(ctx).With().Fields(fields).Logger()
	return WithLogger(ctx, l)
}
