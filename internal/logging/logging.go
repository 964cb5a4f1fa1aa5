// Package logging configures logrus and carries request-scoped log entries.
package logging

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// FieldCorrelationID is the log field holding the short request correlation id.
const FieldCorrelationID = "correlation_id"

// noCorrelationID is logged for work not tied to an inbound request.
const noCorrelationID = "-"

type entryKey struct{}

// Configure sets the level and formatter of the standard logger.
func Configure(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	logrus.SetOutput(os.Stderr)
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return nil
}

// WithCorrelationID returns a context whose logger carries the given correlation id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	entry := logrus.WithField(FieldCorrelationID, id)
	return context.WithValue(ctx, entryKey{}, entry)
}

// FromContext returns the request-scoped entry, or a fresh one when none was attached.
func FromContext(ctx context.Context) *logrus.Entry {
	if ctx != nil {
		if entry, ok := ctx.Value(entryKey{}).(*logrus.Entry); ok {
			return entry
		}
	}
	return logrus.WithField(FieldCorrelationID, noCorrelationID)
}
