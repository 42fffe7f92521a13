// Package klog provides package-level structured logging for the
// kernel, backed by the github.com/joeycumines/logiface builder API
// with github.com/joeycumines/stumpy as the concrete JSON event
// implementation.
package klog

import (
	"io"
	"os"
	"sync"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

var (
	mu     sync.RWMutex
	l      = build(logiface.LevelInformational, os.Stderr)
	level  = logiface.LevelInformational
	output io.Writer = os.Stderr
)

func build(lvl logiface.Level, w io.Writer) *logiface.Logger[*stumpy.Event] {
	return stumpy.L.New(
		stumpy.L.WithLevel(lvl),
		stumpy.L.WithStumpy(),
		stumpy.L.WithWriter(stumpyWriter{w}),
	)
}

// SetLogger installs a fully-configured logger, replacing the default.
func SetLogger(logger *logiface.Logger[*stumpy.Event]) {
	mu.Lock()
	defer mu.Unlock()
	l = logger
}

// SetOutput redirects log output, keeping the current level.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	l = build(level, output)
}

// SetLevel adjusts the minimum logged level, keeping the current output.
func SetLevel(lvl logiface.Level) {
	mu.Lock()
	defer mu.Unlock()
	level = lvl
	l = build(level, output)
}

// Null silences all output, for tests that don't care about log content.
func Null() {
	SetOutput(io.Discard)
}

// get returns the current logger snapshot.
func get() *logiface.Logger[*stumpy.Event] {
	mu.RLock()
	defer mu.RUnlock()
	return l
}

type stumpyWriter struct{ w io.Writer }

func (s stumpyWriter) Write(e *stumpy.Event) error {
	_, err := s.w.Write(append(e.Bytes(), '\n'))
	return err
}

// Debug starts a debug-level structured log entry.
func Debug() *logiface.Builder[*stumpy.Event] { return get().Debug() }

// Info starts an informational structured log entry.
func Info() *logiface.Builder[*stumpy.Event] { return get().Info() }

// Warn starts a warning-level structured log entry.
func Warn() *logiface.Builder[*stumpy.Event] { return get().Warning() }

// Err starts an error-level structured log entry.
func Err() *logiface.Builder[*stumpy.Event] { return get().Err() }
