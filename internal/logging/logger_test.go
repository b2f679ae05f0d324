package logging

import (
	"context"
	"testing"
)

func TestNewDefaultsInvalidLevelToInfo(t *testing.T) {
	l := New("test-service", "not-a-level", "json")
	if l.Logger.GetLevel().String() != "info" {
		t.Fatalf("expected info level fallback, got %s", l.Logger.GetLevel())
	}
}

func TestWithContextCarriesTraceAndPartner(t *testing.T) {
	l := New("test-service", "debug", "text")
	ctx := WithTraceID(context.Background(), "trace-123")
	ctx = WithPartner(ctx, "partner-x")

	entry := l.WithContext(ctx)
	if entry.Data["trace_id"] != "trace-123" {
		t.Fatalf("expected trace_id field, got %v", entry.Data)
	}
	if entry.Data["partner"] != "partner-x" {
		t.Fatalf("expected partner field, got %v", entry.Data)
	}
	if entry.Data["service"] != "test-service" {
		t.Fatalf("expected service field, got %v", entry.Data)
	}
}

func TestNewTraceIDIsUnique(t *testing.T) {
	a := NewTraceID()
	b := NewTraceID()
	if a == b {
		t.Fatal("expected distinct trace ids")
	}
}

func TestDefaultFallsBackWhenUninitialized(t *testing.T) {
	defaultLogger = nil
	l := Default()
	if l == nil {
		t.Fatal("expected a non-nil fallback logger")
	}
}
