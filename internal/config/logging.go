package config

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	slogmulti "github.com/samber/slog-multi"
)

// LogBuffer keeps the most recent log lines in memory for display.
// It is safe for concurrent use.
type LogBuffer struct {
	mu      sync.Mutex
	max     int
	lines   []string
	partial []byte
}

// NewLogBuffer creates a buffer holding at most max lines. A max of zero
// keeps nothing.
func NewLogBuffer(max int) *LogBuffer {
	return &LogBuffer{max: max}
}

// Write implements io.Writer, splitting input into lines.
func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data := append(b.partial, p...)
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		b.push(string(data[:i]))
		data = data[i+1:]
	}
	b.partial = append([]byte(nil), data...)
	return len(p), nil
}

// push appends a line, dropping the oldest past max. Caller must hold mu.
func (b *LogBuffer) push(line string) {
	if b.max <= 0 {
		return
	}
	b.lines = append(b.lines, line)
	if over := len(b.lines) - b.max; over > 0 {
		b.lines = append(b.lines[:0], b.lines[over:]...)
	}
}

// Lines returns a copy of the buffered lines, oldest first.
func (b *LogBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// Tail returns at most n of the newest lines.
func (b *LogBuffer) Tail(n int) []string {
	lines := b.Lines()
	if n >= 0 && len(lines) > n {
		return lines[len(lines)-n:]
	}
	return lines
}

// LogFileName returns the run log file name for a start time.
func LogFileName(t time.Time) string {
	return fmt.Sprintf("app_%s.log", t.Format("20060102_150405"))
}

// SetupLogger creates a fanout logger: JSON to a timestamped file in logsDir,
// compact text to buf for the UI, and text to console when it is non-nil.
// Returns the logger, the log file path and a cleanup function to close the file.
func SetupLogger(logsDir string, level slog.Level, console io.Writer, buf *LogBuffer) (*slog.Logger, string, func() error) {
	var handlers []slog.Handler

	if console != nil {
		handlers = append(handlers, slog.NewTextHandler(console, &slog.HandlerOptions{Level: level}))
	}
	if buf != nil {
		handlers = append(handlers, newBufferHandler(buf, level))
	}

	logFile := filepath.Join(logsDir, LogFileName(time.Now()))
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		// Keep running without a file
		logger := slog.New(slogmulti.Fanout(handlers...))
		logger.Error("failed to open log file", "error", err, "file", logFile)
		return logger, "", func() error { return nil }
	}

	handlers = append(handlers, slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level}))
	logger := slog.New(slogmulti.Fanout(handlers...))

	cleanup := func() error {
		return file.Close()
	}

	return logger, logFile, cleanup
}

// SetupLoggerWithWriters creates a logger with custom writers (for testing).
func SetupLoggerWithWriters(console, file io.Writer, buf *LogBuffer, level slog.Level) *slog.Logger {
	return slog.New(slogmulti.Fanout(
		slog.NewTextHandler(console, &slog.HandlerOptions{Level: level}),
		slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level}),
		newBufferHandler(buf, level),
	))
}

// newBufferHandler renders records as "LEVEL msg key=value" without timestamps.
func newBufferHandler(buf *LogBuffer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(buf, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	})
}
