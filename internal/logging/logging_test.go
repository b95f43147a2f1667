package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"TRACE", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"Warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ParseLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNew_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("warn", &buf)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Info("hidden")
	logger.Warn("quality rejected", "lang", "fr")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record written at warn level: %q", out)
	}
	if !strings.Contains(out, "quality rejected") || !strings.Contains(out, "lang=fr") {
		t.Errorf("warn record missing or malformed: %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("colour codes written to a non-terminal: %q", out)
	}
}

func TestNew_UnknownLevel(t *testing.T) {
	if _, err := New("loud", &bytes.Buffer{}); err == nil {
		t.Fatal("New() error = nil, want error")
	}
}

func TestDiscard(t *testing.T) {
	Discard().Error("dropped")
}
