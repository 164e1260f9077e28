// Package logger provides logging for docsync.
//
// The package-level printf helpers are backed by a single zap core.
// Debug and Info messages are written only in verbose mode; Warn and
// Error are always written. Components that want structured fields take
// a named *zap.SugaredLogger from Named.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	level = zap.NewAtomicLevelAt(zap.WarnLevel)
	out   = &swapWriter{w: os.Stderr}
	base  = newBase()
	sugar = base.Sugar()
)

// swapWriter lets SetOutput redirect an already-built zap core.
type swapWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *swapWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *swapWriter) Sync() error {
	return nil
}

func (s *swapWriter) set(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = w
}

func newBase() *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(out),
		level,
	)
	return zap.New(core)
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	if v {
		level.SetLevel(zap.DebugLevel)
		return
	}
	level.SetLevel(zap.WarnLevel)
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	return level.Enabled(zap.DebugLevel)
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	out.set(w)
}

// Named returns a structured logger for a component. It shares the
// output and level of the package-level helpers.
func Named(name string) *zap.SugaredLogger {
	return base.Named(name).Sugar()
}

// Sync flushes buffered log entries.
func Sync() error {
	return base.Sync()
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	sugar.Debugf(format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	if IsVerbose() {
		fmt.Fprintf(out, "\n=== %s ===\n", name)
	}
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	sugar.Infof(format, args...)
}

// Warn prints a warning message.
func Warn(format string, args ...any) {
	sugar.Warnf(format, args...)
}

// Error prints an error message.
func Error(format string, args ...any) {
	sugar.Errorf(format, args...)
}
