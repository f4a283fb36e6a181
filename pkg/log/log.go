// Package log provides the zerolog-backed structured logging used across
// the pipeline. Components obtain a named logger once and attach fold,
// trial and epoch fields as they go.
package log

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu   sync.RWMutex
	root = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger().Level(zerolog.InfoLevel)
)

// SetLevel sets the minimum level emitted by all loggers created afterwards.
func SetLevel(level zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	root = root.Level(level)
}

// SetOutput redirects all loggers created afterwards to w, keeping fields
// structured (JSON). Used by tests to capture output.
func SetOutput(w zerolog.LevelWriter) {
	mu.Lock()
	defer mu.Unlock()
	root = zerolog.New(w).With().Timestamp().Logger().Level(root.GetLevel())
}

// Logger returns a logger tagged with the given component name.
func Logger(component string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root.With().Str("component", component).Logger()
}

// Disabled returns a logger that drops everything. Handy as a default for
// optional logger fields.
func Disabled() zerolog.Logger {
	return zerolog.Nop()
}
