// Copyright 2025 The kvview Authors
// This file is part of kvview.
//
// kvview is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// kvview is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with kvview. If not, see <http://www.gnu.org/licenses/>.

// Package log is the leveled, key-value structured logging facade used
// throughout kvview: Info/Warn/Error/Debug taking a message and
// alternating key-value pairs, on top of go.uber.org/zap.
package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the interface every kvview component logs through. Components
// never import zap directly; they take a Logger (or use the package-level
// default via the free functions below).
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
	// New returns a child logger with name appended to the component path.
	New(name string) Logger
}

type zapLogger struct {
	z *zap.SugaredLogger
}

// Option configures a Logger built by New.
type Option func(*zap.Config)

// WithDevelopment switches to a human-readable, more verbose encoder —
// useful under `go test`.
func WithDevelopment() Option {
	return func(c *zap.Config) {
		c.Development = true
		c.Encoding = "console"
		c.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		c.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
}

// New builds a named root Logger.
func New(name string, opts ...Option) Logger {
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	for _, opt := range opts {
		opt(&cfg)
	}
	z, err := cfg.Build()
	if err != nil {
		// Logging must never be the reason kvview fails to start; fall back
		// to a no-op core rather than panicking the caller.
		z = zap.NewNop()
	}
	return &zapLogger{z: z.Sugar().Named(name)}
}

func (l *zapLogger) Debug(msg string, kv ...any) { l.z.Debugw(msg, kv...) }
func (l *zapLogger) Info(msg string, kv ...any)  { l.z.Infow(msg, kv...) }
func (l *zapLogger) Warn(msg string, kv ...any)  { l.z.Warnw(msg, kv...) }
func (l *zapLogger) Error(msg string, kv ...any) { l.z.Errorw(msg, kv...) }
func (l *zapLogger) New(name string) Logger      { return &zapLogger{z: l.z.Named(name)} }

var (
	defaultOnce sync.Once
	defaultLog  Logger
)

// Default returns the process-wide default Logger, built lazily the first
// time it's needed so tests that never touch logging pay nothing for it.
func Default() Logger {
	defaultOnce.Do(func() {
		opts := []Option{}
		if os.Getenv("KVVIEW_LOG_DEV") != "" {
			opts = append(opts, WithDevelopment())
		}
		defaultLog = New("kvview", opts...)
	})
	return defaultLog
}

func Debug(msg string, kv ...any) { Default().Debug(msg, kv...) }
func Info(msg string, kv ...any)  { Default().Info(msg, kv...) }
func Warn(msg string, kv ...any)  { Default().Warn(msg, kv...) }
func Error(msg string, kv ...any) { Default().Error(msg, kv...) }
