package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBufferedThenFlush(t *testing.T) {
	if err := Init(Options{Level: "DEBUG", Format: "text", Buffered: true}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	slog.Info("Held back")

	var pane bytes.Buffer
	if err := SetOutput(&pane); err != nil {
		t.Fatalf("SetOutput failed: %v", err)
	}

	if !strings.Contains(pane.String(), "Held back") {
		t.Errorf("Expected buffered log to be flushed, got: %s", pane.String())
	}

	slog.Info("Live now")
	if !strings.Contains(pane.String(), "Live now") {
		t.Errorf("Expected live log to be written, got: %s", pane.String())
	}

	BufferOutput()
	slog.Info("Buffered again")
	if strings.Contains(pane.String(), "Buffered again") {
		t.Errorf("Expected log to be buffered, got: %s", pane.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	if err := Init(Options{Level: "WARN", Format: "text", Buffered: true}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	slog.Debug("too quiet")
	slog.Warn("loud enough")

	var out bytes.Buffer
	if err := SetOutput(&out); err != nil {
		t.Fatalf("SetOutput failed: %v", err)
	}

	if strings.Contains(out.String(), "too quiet") {
		t.Error("Debug message should have been filtered at WARN level")
	}
	if !strings.Contains(out.String(), "loud enough") {
		t.Error("Warn message should have been logged")
	}
}

func TestFileTee(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "crowctl.log")
	if err := Init(Options{Level: "INFO", Format: "json", File: logFile, Buffered: false}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	slog.Info("to the file")
	if err := Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), "to the file") {
		t.Errorf("Expected log in file, got: %s", data)
	}
}
