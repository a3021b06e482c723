package logging

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewOperationErrorNil(t *testing.T) {
	if err := NewOperationError("op", "req", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestOperationErrorMessageAndUnwrap(t *testing.T) {
	base := errors.New("boom")

	err := NewOperationError("faceapi.identify", "req-1", base)
	if got, want := err.Error(), "faceapi.identify (request_id=req-1): boom"; got != want {
		t.Fatalf("unexpected message %q, want %q", got, want)
	}
	if !errors.Is(err, base) {
		t.Fatal("expected errors.Is to reach the wrapped error")
	}

	err = NewOperationError("faceapi.detect", "", base)
	if got, want := err.Error(), "faceapi.detect: boom"; got != want {
		t.Fatalf("unexpected message %q, want %q", got, want)
	}
}

func TestWithOperationAddsFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := WithOperation(zap.New(core), "pipeline.run", "req-9")
	logger.Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["operation"] != "pipeline.run" {
		t.Fatalf("unexpected operation field: %v", fields["operation"])
	}
	if fields["request_id"] != "req-9" {
		t.Fatalf("unexpected request_id field: %v", fields["request_id"])
	}
}

func TestWithOperationOmitsEmptyRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	WithOperation(zap.New(core), "startup", "").Info("hello")

	fields := logs.All()[0].ContextMap()
	if _, ok := fields["request_id"]; ok {
		t.Fatal("expected no request_id field")
	}
}

func TestOperationOf(t *testing.T) {
	err := NewOperationError("usecase.detect", "req", errors.New("x"))
	if got := OperationOf(err); got != "usecase.detect" {
		t.Fatalf("unexpected operation %q", got)
	}
	if got := OperationOf(errors.New("plain")); got != "" {
		t.Fatalf("expected empty operation, got %q", got)
	}
}
