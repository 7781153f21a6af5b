// Package logger re-exports the go-belt context-carried logger so the
// rest of this module does not need to import go-belt directly.
package logger

import (
	"context"

	"github.com/facebookincubator/go-belt/pkg/field"
	"github.com/facebookincubator/go-belt/tool/logger"
)

// Logger is a type-alias for logger.Logger for convenience.
type Logger = logger.Logger

// Level is a type-alias for logger.Level.
type Level = logger.Level

const (
	LevelUndefined = logger.LevelUndefined
	LevelFatal     = logger.LevelFatal
	LevelPanic     = logger.LevelPanic
	LevelError     = logger.LevelError
	LevelWarning   = logger.LevelWarning
	LevelInfo      = logger.LevelInfo
	LevelDebug     = logger.LevelDebug
	LevelTrace     = logger.LevelTrace
)

// FromCtx returns the logger stored in ctx, or a default no-op logger.
func FromCtx(ctx context.Context) logger.Logger {
	return logger.FromCtx(ctx)
}

// CtxWithLogger returns a copy of ctx carrying l.
func CtxWithLogger(ctx context.Context, l logger.Logger) context.Context {
	return logger.CtxWithLogger(ctx, l)
}

// Debugf is a shorthand for FromCtx(ctx).Debugf.
func Debugf(ctx context.Context, format string, args ...any) {
	FromCtx(ctx).Debugf(format, args...)
}

// Infof is a shorthand for FromCtx(ctx).Infof.
func Infof(ctx context.Context, format string, args ...any) {
	FromCtx(ctx).Infof(format, args...)
}

// Warnf is a shorthand for FromCtx(ctx).Warnf.
func Warnf(ctx context.Context, format string, args ...any) {
	FromCtx(ctx).Warnf(format, args...)
}

// Errorf is a shorthand for FromCtx(ctx).Errorf.
func Errorf(ctx context.Context, format string, args ...any) {
	FromCtx(ctx).Errorf(format, args...)
}

// DebugFields is a shorthand for LogFields(ctx, LevelDebug, ...).
func DebugFields(ctx context.Context, message string, fields field.AbstractFields) {
	logger.DebugFields(ctx, message, fields)
}

// WarnFields is a shorthand for LogFields(ctx, LevelWarning, ...).
func WarnFields(ctx context.Context, message string, fields field.AbstractFields) {
	logger.WarnFields(ctx, message, fields)
}

// ErrorFields is a shorthand for LogFields(ctx, LevelError, ...).
func ErrorFields(ctx context.Context, message string, fields field.AbstractFields) {
	logger.ErrorFields(ctx, message, fields)
}
