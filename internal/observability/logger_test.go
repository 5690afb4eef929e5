package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerLevelMapping(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		level        string
		debugEnabled bool
		infoEnabled  bool
	}{
		{name: "debug level", level: "debug", debugEnabled: true, infoEnabled: true},
		{name: "info level", level: "info", debugEnabled: false, infoEnabled: true},
		{name: "warn level", level: "warn", debugEnabled: false, infoEnabled: false},
		{name: "empty level defaults to info", level: "", debugEnabled: false, infoEnabled: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tc.level)
			if err != nil {
				t.Fatalf("NewLogger() error = %v", err)
			}

			if got := logger.Core().Enabled(zapcore.DebugLevel); got != tc.debugEnabled {
				t.Fatalf("debug enabled = %v, want %v", got, tc.debugEnabled)
			}
			if got := logger.Core().Enabled(zapcore.InfoLevel); got != tc.infoEnabled {
				t.Fatalf("info enabled = %v, want %v", got, tc.infoEnabled)
			}
		})
	}
}

func TestNewLoggerInvalidLevel(t *testing.T) {
	t.Parallel()

	if _, err := NewLogger("loud"); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

func TestCorrelationIDRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := WithCorrelationID(context.Background(), "rec-1-1719826200000")
	id, ok := CorrelationIDFromContext(ctx)
	if !ok || id != "rec-1-1719826200000" {
		t.Fatalf("correlation id = %q/%v, want the task id back", id, ok)
	}

	if _, ok := CorrelationIDFromContext(context.Background()); ok {
		t.Fatal("bare context must carry no correlation id")
	}
}

func TestWithContextLoggerAddsCorrelationField(t *testing.T) {
	t.Parallel()

	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := WithCorrelationID(context.Background(), "test-rec-9")
	WithContextLogger(base, ctx).Info("delivery picked up")

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["correlationId"]; got != "test-rec-9" {
		t.Fatalf("correlationId = %v, want test-rec-9", got)
	}
}

func TestWithContextLoggerWithoutCorrelation(t *testing.T) {
	t.Parallel()

	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	WithContextLogger(base, context.Background()).Info("no correlation")

	if _, ok := recorded.All()[0].ContextMap()["correlationId"]; ok {
		t.Fatal("correlationId field must be absent")
	}

	if got := WithContextLogger(nil, context.Background()); got != nil {
		t.Fatal("nil logger must stay nil")
	}
}
