// Package logger provides leveled logging for memex.
//
// By default only errors are printed. The --verbose flag lowers the
// threshold to debug so sweeps, approvals and queries can be followed step
// by step; the serve daemon runs at info with timestamps.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level is a logging threshold. Messages below the current level are dropped.
type Level int

// Levels in increasing severity.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the tag printed in front of messages.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses debug, info, warn or error, case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelError, fmt.Errorf("unknown log level %q", s)
	}
}

var (
	mu         sync.RWMutex
	level      Level = LevelError
	timestamps bool
	output     io.Writer = os.Stderr
)

var now = time.Now

// SetVerbose switches between debug output and errors only.
func SetVerbose(v bool) {
	if v {
		SetLevel(LevelDebug)
	} else {
		SetLevel(LevelError)
	}
}

// IsVerbose returns true if debug messages are printed.
func IsVerbose() bool {
	return GetLevel() == LevelDebug
}

// SetLevel sets the minimum level printed.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

// GetLevel returns the minimum level printed.
func GetLevel() Level {
	mu.RLock()
	defer mu.RUnlock()
	return level
}

// SetTimestamps prefixes every line with an RFC 3339 timestamp.
func SetTimestamps(on bool) {
	mu.Lock()
	defer mu.Unlock()
	timestamps = on
}

// SetOutput sets the output writer. Defaults to os.Stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func logf(l Level, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if l < level {
		return
	}
	prefix := "[" + l.String() + "] "
	if timestamps {
		prefix = now().Format(time.RFC3339) + " " + prefix
	}
	fmt.Fprintf(output, prefix+format+"\n", args...)
}

// Debug prints a step-by-step trace message.
func Debug(format string, args ...any) { logf(LevelDebug, format, args...) }

// Info prints a progress message.
func Info(format string, args ...any) { logf(LevelInfo, format, args...) }

// Warn prints a degraded-mode message such as a refinement fallback.
func Warn(format string, args ...any) { logf(LevelWarn, format, args...) }

// Error prints an error message. Errors are printed at every level.
func Error(format string, args ...any) { logf(LevelError, format, args...) }

// Section prints a section header in debug mode.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if level == LevelDebug {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}
