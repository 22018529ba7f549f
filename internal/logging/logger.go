// Package logging builds the process logger and tracks correlated operations.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kidney-chain-server/internal/domain"
)

// Log formats
const (
	FormatJSON = "json"
	FormatText = "text"
)

type contextKey string

const correlationKey contextKey = "correlation_id"

// New creates a logger from configuration. Output is "stdout", "stderr" or a file path opened
// for appending.
func New(cfg domain.LoggingConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(cfg.Format, FormatText) {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	out, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}
	logger.SetOutput(out)

	return logger, nil
}

func openOutput(output string) (io.Writer, error) {
	switch strings.ToLower(output) {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log output %s: %w", output, err)
		}
		return f, nil
	}
}

// WithCorrelationID returns a context carrying the correlation ID.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationKey, correlationID)
}

// CorrelationID returns the correlation ID carried by ctx, or "".
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey).(string); ok {
		return id
	}
	return ""
}

// FromContext returns an entry tagged with the correlation ID of ctx, if any.
func FromContext(ctx context.Context, logger *logrus.Logger) *logrus.Entry {
	entry := logrus.NewEntry(logger)
	if id := CorrelationID(ctx); id != "" {
		entry = entry.WithField("correlation_id", id)
	}
	return entry
}

// Operation is a logged unit of work such as an MCP tool call.
type Operation struct {
	entry *logrus.Entry
	start time.Time
}

// StartOperation logs the start of an operation and returns a context that carries a
// correlation ID, generating one if ctx has none.
func StartOperation(ctx context.Context, logger *logrus.Logger, kind, name string, fields logrus.Fields) (context.Context, *Operation) {
	correlationID := CorrelationID(ctx)
	if correlationID == "" {
		correlationID = uuid.New().String()
		ctx = WithCorrelationID(ctx, correlationID)
	}

	entry := logger.WithFields(logrus.Fields{
		"correlation_id": correlationID,
		"operation_id":   uuid.New().String(),
		"operation_type": kind,
		"operation_name": name,
	}).WithFields(fields)
	entry.Info("Operation started")

	return ctx, &Operation{entry: entry, start: time.Now()}
}

// End logs the outcome of the operation.
func (o *Operation) End(err error) {
	entry := o.entry.WithField("duration_ms", time.Since(o.start).Milliseconds())
	if err != nil {
		entry.WithError(err).Error("Operation failed")
		return
	}
	entry.Info("Operation completed")
}
