package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func newBufferLogger(component string) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return New(component, Options{Handler: handler}), &buf
}

func TestLoggerCarriesComponent(t *testing.T) {
	logger, buf := newBufferLogger(ComponentDataset)

	logger.Info("Dataset loaded", FieldRows, 42)

	line := buf.String()
	if !strings.Contains(line, "component=dataset") {
		t.Errorf("missing component attribute: %s", line)
	}
	if !strings.Contains(line, "rows=42") {
		t.Errorf("missing rows attribute: %s", line)
	}
	if strings.Count(line, "component=") != 1 {
		t.Errorf("component attribute repeated: %s", line)
	}
}

func TestWithComponentReplacesTag(t *testing.T) {
	logger, buf := newBufferLogger(ComponentApp)

	worker := logger.WithComponent(ComponentWorker)
	if worker.Component() != ComponentWorker {
		t.Fatalf("Component() = %q, want %q", worker.Component(), ComponentWorker)
	}

	worker.Info("Refresh consumed")

	line := buf.String()
	if !strings.Contains(line, "component=worker") {
		t.Errorf("missing worker component: %s", line)
	}
	// The old tag must not ride along on the re-tagged logger.
	if strings.Contains(line, "component=app") {
		t.Errorf("stale component attribute: %s", line)
	}
}

func TestWithKeepsComponent(t *testing.T) {
	logger, buf := newBufferLogger(ComponentStorage)

	logger.With(FieldSource, "csv:data").Warn("Snapshot pruned")

	line := buf.String()
	if !strings.Contains(line, "component=storage") || !strings.Contains(line, "source=csv:data") {
		t.Errorf("attributes missing: %s", line)
	}
}
