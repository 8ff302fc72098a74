// Copyright 2025 The A2A Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides context-scoped structured logging on top of log/slog.
// Components log through the package-level functions and pick up the logger
// (with its request-scoped attributes) attached to the context.
package log

import (
	"context"
	"log/slog"
	"runtime"
	"time"
)

type loggerKey struct{}

// WithLogger creates a new Context with the provided Logger attached.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom returns the Logger associated with the context or slog.Default().
func LoggerFrom(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// AttachAttrs returns a Context carrying the current logger extended with the provided attributes.
func AttachAttrs(ctx context.Context, keyValArgs ...any) context.Context {
	return WithLogger(ctx, LoggerFrom(ctx).With(keyValArgs...))
}

// Log logs at the provided level using the Logger associated with the context.
func Log(ctx context.Context, level slog.Level, msg string, keyValArgs ...any) {
	doLog(ctx, level, msg, keyValArgs...)
}

// Info logs at slog.LevelInfo using the Logger associated with the context.
func Info(ctx context.Context, msg string, keyValArgs ...any) {
	doLog(ctx, slog.LevelInfo, msg, keyValArgs...)
}

// Warn logs at slog.LevelWarn using the Logger associated with the context.
func Warn(ctx context.Context, msg string, keyValArgs ...any) {
	doLog(ctx, slog.LevelWarn, msg, keyValArgs...)
}

// Error logs at slog.LevelError using the Logger associated with the context.
// The error is attached under the "error" key.
func Error(ctx context.Context, msg string, err error, keyValArgs ...any) {
	doLog(ctx, slog.LevelError, msg, append([]any{"error", err}, keyValArgs...)...)
}

func doLog(ctx context.Context, level slog.Level, msg string, keyValArgs ...any) {
	logger := LoggerFrom(ctx)
	if !logger.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	// skip [runtime.Callers, doLog, exported wrapper]
	runtime.Callers(3, pcs[:])
	record := slog.NewRecord(time.Now(), level, msg, pcs[0])
	record.Add(keyValArgs...)
	_ = logger.Handler().Handle(ctx, record)
}
