package framepipe

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/framepipe/internal/frame"
	"github.com/gogpu/framepipe/internal/shader"
	"github.com/gogpu/framepipe/internal/upload"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

// Devices opened through OpenDevice that accept a logger.
var (
	devicesMu sync.Mutex
	devices   = map[loggerSetter]struct{}{}
)

func init() {
	l := newNopLogger()
	loggerPtr.Store(l)
}

// SetLogger configures the logger for framepipe and all its sub-packages.
// By default, framepipe produces no log output.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by framepipe:
//   - [slog.LevelDebug]: per-frame diagnostics (slot, fence values, waits)
//   - [slog.LevelInfo]: lifecycle events (adapter selected, pipeline ready)
//   - [slog.LevelWarn]: non-fatal issues (software fallback, device loss)
//
// Example:
//
//	framepipe.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	frame.SetLogger(l)
	upload.SetLogger(l)
	shader.SetLogger(l)

	devicesMu.Lock()
	defer devicesMu.Unlock()
	for d := range devices {
		d.SetLogger(l)
	}
}

// Logger returns the current logger used by framepipe.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by backend devices that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// trackDevice passes the current logger to dev and keeps it up to date
// until untrackDevice.
func trackDevice(dev any) {
	ls, ok := dev.(loggerSetter)
	if !ok {
		return
	}
	ls.SetLogger(Logger())
	devicesMu.Lock()
	devices[ls] = struct{}{}
	devicesMu.Unlock()
}

func untrackDevice(dev any) {
	if ls, ok := dev.(loggerSetter); ok {
		devicesMu.Lock()
		delete(devices, ls)
		devicesMu.Unlock()
	}
}
