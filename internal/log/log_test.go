package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestInfoProducesLogfmtWithTimestamp(t *testing.T) {
	buf := new(bytes.Buffer)
	original := Logger()
	ReplaceLogger(slog.New(newHandler(buf)))
	t.Cleanup(func() {
		ReplaceLogger(original)
	})

	Info(context.Background(), "hello", "user", "test")

	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatalf("expected log output, got empty string")
	}
	if !strings.Contains(line, "ts=") {
		t.Fatalf("expected timestamp field in log line, got %q", line)
	}
	if !strings.Contains(line, "level=info") {
		t.Fatalf("expected level field in log line, got %q", line)
	}
	if !strings.Contains(line, "msg=hello") {
		t.Fatalf("expected message field in log line, got %q", line)
	}
	if !strings.Contains(line, "user=test") {
		t.Fatalf("expected structured field in log line, got %q", line)
	}
}

func TestRequestIDIsAttached(t *testing.T) {
	buf := new(bytes.Buffer)
	original := Logger()
	ReplaceLogger(slog.New(newHandler(buf)))
	t.Cleanup(func() {
		ReplaceLogger(original)
	})

	ctx := WithRequestID(context.Background(), "req-42")
	Info(ctx, "priced recipe")

	if line := buf.String(); !strings.Contains(line, "request_id=req-42") {
		t.Fatalf("expected request id in log line, got %q", line)
	}
	if got := RequestID(ctx); got != "req-42" {
		t.Fatalf("RequestID() = %q", got)
	}
	if got := RequestID(context.Background()); got != "" {
		t.Fatalf("RequestID(empty) = %q", got)
	}
}

func TestPrettyHandlerWritesMessage(t *testing.T) {
	buf := new(bytes.Buffer)
	original := Logger()
	ReplaceLogger(slog.New(newPrettyHandler(buf)))
	t.Cleanup(func() {
		ReplaceLogger(original)
	})

	Info(context.Background(), "bom generated", "lines", 3)

	line := buf.String()
	if !strings.Contains(line, "bom generated") || !strings.Contains(line, "lines") {
		t.Fatalf("unexpected pretty output %q", line)
	}
}

func TestSetLevelFiltersDebug(t *testing.T) {
	buf := new(bytes.Buffer)
	original := Logger()
	ReplaceLogger(slog.New(newHandler(buf)))
	t.Cleanup(func() {
		ReplaceLogger(original)
		_ = SetLevel("info")
	})

	if err := SetLevel("warn"); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	Info(context.Background(), "quiet")
	Warn(context.Background(), "loud")

	out := buf.String()
	if strings.Contains(out, "quiet") || !strings.Contains(out, "level=warn") {
		t.Fatalf("unexpected output %q", out)
	}
	if err := SetLevel("verbose"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestSetFormatRejectsUnknown(t *testing.T) {
	original := Logger()
	t.Cleanup(func() {
		ReplaceLogger(original)
	})

	if err := SetFormat("json5"); err == nil {
		t.Fatal("expected error for unknown format")
	}
	if err := SetFormat("pretty"); err != nil {
		t.Fatalf("SetFormat(pretty): %v", err)
	}
	if err := SetFormat(""); err != nil {
		t.Fatalf("SetFormat(default): %v", err)
	}
}
