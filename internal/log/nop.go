package log

import (
	"context"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/ports"
)

type nopLogger struct{}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() ports.Logger {
	return nopLogger{}
}

func (nopLogger) Debugf(ctx context.Context, format string, args ...any)            {}
func (nopLogger) Infof(ctx context.Context, format string, args ...any)             {}
func (nopLogger) Warnf(ctx context.Context, format string, args ...any)             {}
func (nopLogger) Errorf(ctx context.Context, err error, format string, args ...any) {}
func (nopLogger) WithFields(fields map[string]any) ports.Logger                     { return nopLogger{} }
