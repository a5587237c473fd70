package telemetry

import (
	"io"
	"log"
	"sync"
)

// Logger is a structured, leveled wrapper over a log.Logger writing to an
// arbitrary io.Writer (default io.Discard), generalized off a prior
// single-process debug logger that mutated the global log package and
// always wrote to a fixed file. Safe for concurrent use from the task loop
// and any background prefetch goroutine.
type Logger struct {
	mu  sync.Mutex
	out *log.Logger
}

// NewLogger returns a Logger writing to w with the given prefix. Pass
// io.Discard to silence it entirely.
func NewLogger(w io.Writer, prefix string) *Logger {
	if w == nil {
		w = io.Discard
	}
	return &Logger{out: log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)}
}

// Infof logs an informational line.
func (l *Logger) Infof(format string, args ...any) {
	l.printf("INFO", format, args...)
}

// Warnf logs a warning line.
func (l *Logger) Warnf(format string, args ...any) {
	l.printf("WARN", format, args...)
}

// Errorf logs an error line.
func (l *Logger) Errorf(format string, args ...any) {
	l.printf("ERROR", format, args...)
}

func (l *Logger) printf(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Printf("[%s] "+format, append([]any{level}, args...)...)
}
