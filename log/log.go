// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package log is the substrate's logging seam: every subsystem takes a
// Logger at construction, never a package-level global.
package log

import "go.uber.org/zap"

// Logger is the minimal structured-logging surface every subsystem depends
// on. It is satisfied by the zap-backed logger New and NewDevelopment
// return (a thin wrapper, since *zap.SugaredLogger's With does not return
// Logger) as well as NoOp, so tests can substitute a silent double.
type Logger interface {
	Debugw(msg string, kv ...interface{})
	Infow(msg string, kv ...interface{})
	Warnw(msg string, kv ...interface{})
	Errorw(msg string, kv ...interface{})
	With(kv ...interface{}) Logger
}

type zapLogger struct {
	s *zap.SugaredLogger
}

// New returns a production zap-backed logger.
func New() (Logger, error) {
	z, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &zapLogger{s: z.Sugar()}, nil
}

// NewDevelopment returns a console-friendly zap-backed logger for local runs.
func NewDevelopment() (Logger, error) {
	z, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return &zapLogger{s: z.Sugar()}, nil
}

func (l *zapLogger) Debugw(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l *zapLogger) Infow(msg string, kv ...interface{})  { l.s.Infow(msg, kv...) }
func (l *zapLogger) Warnw(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
func (l *zapLogger) Errorw(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }

func (l *zapLogger) With(kv ...interface{}) Logger {
	return &zapLogger{s: l.s.With(kv...)}
}

// NoOp is a logger that discards everything, for tests and benchmarks.
type NoOp struct{}

// NewNoOpLogger returns a logger that doesn't log anything.
func NewNoOpLogger() Logger { return NoOp{} }

func (NoOp) Debugw(string, ...interface{}) {}
func (NoOp) Infow(string, ...interface{})  {}
func (NoOp) Warnw(string, ...interface{})  {}
func (NoOp) Errorw(string, ...interface{}) {}
func (n NoOp) With(...interface{}) Logger  { return n }
