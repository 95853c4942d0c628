package appctx

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerFromContext(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	got, ok := LoggerFromContext(WithLogger(context.Background(), logger))
	if !ok || got != logger {
		t.Fatal("expected the attached logger")
	}

	if _, ok := LoggerFromContext(context.Background()); ok {
		t.Error("expected false for context without logger")
	}

	nilCtx := context.WithValue(context.Background(), loggerKey{}, (*slog.Logger)(nil))
	if got, ok := LoggerFromContext(nilCtx); ok || got != nil {
		t.Error("expected a stored nil logger to be reported as missing")
	}
}

func TestGetLogger_FallsBackToDefault(t *testing.T) {
	if got := GetLogger(context.Background()); got != slog.Default() {
		t.Error("expected slog.Default() when no logger in context")
	}
}

func TestWith_AddsAttributes(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))

	ctx := WithLogger(context.Background(), logger)
	ctx = With(ctx, "caller_id", "u-1")
	GetLogger(ctx).Info("asking created", "asking_id", "a-1")

	out := buf.String()
	for _, want := range []string{"asking created", "caller_id=u-1", "asking_id=a-1"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in log output, got: %s", want, out)
		}
	}
}
