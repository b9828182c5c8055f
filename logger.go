package sdfatlas

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/sdfatlas/internal/halgpu"
	"github.com/gogpu/sdfatlas/render"
)

// nopHandler is a slog.Handler that silently discards all log records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for sdfatlas and its GPU packages.
// By default nothing is logged. Pass nil to restore the silent default.
//
// Engines read the logger when they are created; chunk cache warnings of an
// existing Engine keep going to the logger that was current at New.
//
// Log levels used:
//   - [slog.LevelDebug]: per-frame submissions, pipeline compiles and evictions
//   - [slog.LevelInfo]: adapter selection, renderer creation
//   - [slog.LevelWarn]: atlas or object buffer full, failed readbacks
//
// SetLogger is safe for concurrent use.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	render.SetLogger(l)
	halgpu.SetLogger(l)
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
