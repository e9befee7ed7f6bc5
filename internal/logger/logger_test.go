package logger

import (
	"bytes"
	"os"
	"testing"
	"time"
)

// capture redirects output to a buffer at the given level and restores the
// defaults when the test ends.
func capture(t *testing.T, l Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(l)
	t.Cleanup(func() {
		SetLevel(LevelError)
		SetTimestamps(false)
		SetOutput(os.Stderr)
		now = time.Now
	})
	return &buf
}

func TestSetVerbose(t *testing.T) {
	capture(t, LevelError)

	if IsVerbose() {
		t.Error("expected verbose to be false by default")
	}

	SetVerbose(true)
	if !IsVerbose() || GetLevel() != LevelDebug {
		t.Error("expected debug level after SetVerbose(true)")
	}

	SetVerbose(false)
	if IsVerbose() || GetLevel() != LevelError {
		t.Error("expected error level after SetVerbose(false)")
	}
}

func TestLevels(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "[DEBUG] d 1\n[INFO] i 2\n[WARN] w 3\n[ERROR] e 4\n"},
		{LevelInfo, "[INFO] i 2\n[WARN] w 3\n[ERROR] e 4\n"},
		{LevelWarn, "[WARN] w 3\n[ERROR] e 4\n"},
		{LevelError, "[ERROR] e 4\n"},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			buf := capture(t, tt.level)

			Debug("d %d", 1)
			Info("i %d", 2)
			Warn("w %d", 3)
			Error("e %d", 4)

			if got := buf.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{" warn ", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"trace", LevelError, true},
		{"", LevelError, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTimestamps(t *testing.T) {
	buf := capture(t, LevelInfo)
	now = func() time.Time { return time.Date(2024, 3, 4, 2, 0, 0, 0, time.UTC) }
	SetTimestamps(true)

	Info("sweep started")

	if got := buf.String(); got != "2024-03-04T02:00:00Z [INFO] sweep started\n" {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestSection(t *testing.T) {
	buf := capture(t, LevelDebug)

	Section("Retrieval")
	if got := buf.String(); got != "\n=== Retrieval ===\n" {
		t.Errorf("unexpected section output: %q", got)
	}

	buf.Reset()
	SetLevel(LevelInfo)
	Section("Retrieval")
	if buf.Len() > 0 {
		t.Error("sections are only printed in debug mode")
	}
}

func TestError_AlwaysPrinted(t *testing.T) {
	buf := capture(t, LevelError)

	Error("sweep %s failed", "nightly")

	if got := buf.String(); got != "[ERROR] sweep nightly failed\n" {
		t.Errorf("unexpected error output: %q", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	capture(t, LevelError)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			SetVerbose(true)
			Debug("concurrent %d", i)
			IsVerbose()
			SetVerbose(false)
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}
