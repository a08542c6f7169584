package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
}

func TestLoggerInitWithNilWriter(t *testing.T) {
	if err := InitWithWriter(nil); err == nil {
		t.Fatal("expected error for nil writer")
	}
}

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	ctx := context.Background()
	Get().Info(ctx, "packet classified",
		String("k", "v"),
		Int64("seq", 42),
		Duration("took", 3*time.Millisecond),
		Bool("feature", true),
		Error(errors.New("boom")),
	)

	out := buf.String()
	for _, want := range []string{"packet classified", "k=v", "seq=42", "took=3ms", "feature=true", "error=boom", "source="} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output %q", want, out)
		}
	}
}

func TestLoggerNamed(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	Named("service").Named("worker").Info(context.Background(), "started", Int("n", 1))
	out := buf.String()
	if !strings.Contains(out, "logger=service.worker") || !strings.Contains(out, "n=1") {
		t.Errorf("expected nested name and field, got %q", out)
	}
	if !strings.Contains(out, "logger_test.go:") {
		t.Errorf("expected the caller's file as source, got %q", out)
	}
}

func TestLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	l := Get().With(String("run_id", "r1"))
	l.Info(context.Background(), "first")
	l.Info(context.Background(), "second")
	if got := strings.Count(buf.String(), "run_id=r1"); got != 2 {
		t.Errorf("expected run_id on both records, got %d in %q", got, buf.String())
	}
}

func TestLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithFormat(&buf, FormatJSON); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	Named("live").Warn(context.Background(), "client dropped", Int("clients", 2))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v: %q", err, buf.String())
	}
	if rec["msg"] != "client dropped" || rec["logger"] != "live" || rec["level"] != "WARN" {
		t.Errorf("unexpected record %v", rec)
	}
	if rec["clients"] != float64(2) {
		t.Errorf("expected clients=2, got %v", rec["clients"])
	}
}

func TestLoggerUnknownFormat(t *testing.T) {
	if err := InitWithFormat(io.Discard, "xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
	if err := InitWithFormat(nil, FormatText); !errors.Is(err, ErrNilWriter) {
		t.Fatalf("expected ErrNilWriter, got %v", err)
	}
}

func TestSetLevelString(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	ctx := context.Background()

	if err := SetLevelString("warn"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	Get().Info(ctx, "hidden")
	Get().Warn(ctx, "shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("level filter not applied: %q", buf.String())
	}

	for _, lvl := range []string{"debug", "INFO", " warning ", "error", ""} {
		if err := SetLevelString(lvl); err != nil {
			t.Errorf("level %q: unexpected error %v", lvl, err)
		}
	}
	if err := SetLevelString("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}
