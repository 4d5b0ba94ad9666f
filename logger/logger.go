// Package logger provides the structured, context-aware logging contract used
// across the runner.
package logger

import "context"

// Logger is a structured logger. Fields are attached as key/value pairs.
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, fields map[string]interface{})

	// WithField returns a logger that adds key to every entry.
	WithField(key string, value interface{}) Logger

	// WithFields returns a logger that adds fields to every entry.
	WithFields(fields map[string]interface{}) Logger
}
