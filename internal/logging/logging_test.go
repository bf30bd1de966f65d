package logging

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := NewLogger("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNewLoggerAppliesLevel(t *testing.T) {
	logger, err := NewLogger("warn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("expected info to be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Fatal("expected warn to be enabled")
	}
}

func TestWithOperationAddsFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	WithOperation(zap.New(core), "wiki.lookup", "req-1").Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["operation"] != "wiki.lookup" {
		t.Fatalf("unexpected operation field: %v", fields["operation"])
	}
	if fields["request_id"] != "req-1" {
		t.Fatalf("unexpected request_id field: %v", fields["request_id"])
	}
}

func TestWithOperationOmitsEmptyRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	WithOperation(zap.New(core), "wiki.lookup", "").Info("hello")

	if _, ok := logs.All()[0].ContextMap()["request_id"]; ok {
		t.Fatal("expected request_id to be omitted")
	}
}

func TestOperationErrorUnwraps(t *testing.T) {
	base := errors.New("boom")
	err := NewOperationError("repository.save_log", "req-9", base)

	if !errors.Is(err, base) {
		t.Fatal("expected errors.Is to reach the wrapped error")
	}
	if got := err.Error(); got != "repository.save_log (request_id=req-9): boom" {
		t.Fatalf("unexpected message: %s", got)
	}
	if NewOperationError("op", "", nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestOperationOf(t *testing.T) {
	inner := NewOperationError("cache.get", "req", errors.New("down"))
	outer := NewOperationError("usecase.describe", "req", inner)

	if got := OperationOf(outer); got != "usecase.describe" {
		t.Fatalf("expected outermost operation, got %q", got)
	}
	if got := OperationOf(errors.New("plain")); got != "" {
		t.Fatalf("expected empty operation, got %q", got)
	}
}
