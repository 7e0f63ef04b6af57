// Package logging builds the logr.Logger used across cidash. The TUI owns the
// terminal, so output goes to a file or nowhere.
package logging

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Verbosity levels for logger.V(...).
const (
	DEFAULT = 2
	VERBOSE = 3
	DEBUG   = 4
	TRACE   = 5
)

// New returns a JSON logger writing to path at the given verbosity. An empty
// path returns a discarding logger. The returned func flushes the sink.
func New(path string, verbosity int) (logr.Logger, func(), error) {
	if path == "" {
		return logr.Discard(), func() {}, nil
	}

	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	// logr V(n) maps to zap level -n.
	cfg.Level = zap.NewAtomicLevelAt(zapcore.Level(-verbosity))
	cfg.Sampling = nil

	zl, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return logr.Logger{}, nil, fmt.Errorf("build logger: %w", err)
	}
	return zapr.NewLogger(zl), func() { _ = zl.Sync() }, nil
}
