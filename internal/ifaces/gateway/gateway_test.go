package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/noesis-run/noesis/internal/agent"
	"github.com/noesis-run/noesis/internal/catalog"
	"github.com/noesis-run/noesis/internal/config"
	"github.com/noesis-run/noesis/internal/ifaces"
	"github.com/noesis-run/noesis/internal/metrics"
	"github.com/noesis-run/noesis/internal/statemanager"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	sm, err := statemanager.Open(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := sm.Instantiate(map[string]any{"name": "test-org"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cat := catalog.New()
	catalog.RegisterBuiltins(cat)

	hashOrg := func() (string, error) { return "", nil }
	cfg := &config.Config{}
	ag := agent.New(sm, cat, hashOrg, cfg, agent.NewCycleLogger(), agent.NewMetrics(metrics.NewRegistry().Registerer()))

	rt := ifaces.New(sm, cat, ag, hashOrg, nil, t.TempDir())
	registry := metrics.NewRegistry()
	return New(rt, registry, zerolog.Nop())
}

func TestHandleStatusReturnsState(t *testing.T) {
	g := newTestGateway(t)
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleHostVitalsReturnsSnapshot(t *testing.T) {
	g := newTestGateway(t)
	req := httptest.NewRequest(http.MethodGet, "/vitals", nil)
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleVerifyReadonlyDoesNotAppendEvents(t *testing.T) {
	g := newTestGateway(t)
	before, err := g.rt.SM.Events()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/verify_readonly", nil)
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	after, err := g.rt.SM.Events()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("expected verify_readonly to append no events, had %d now %d", len(before), len(after))
	}
}

func TestHandleOpExecUnknownOperationReturnsPreconditionFailed(t *testing.T) {
	g := newTestGateway(t)
	req := httptest.NewRequest(http.MethodPost, "/op/does.not.exist", nil)
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestOpsHealthzEndpoint(t *testing.T) {
	g := newTestGateway(t)
	req := httptest.NewRequest(http.MethodGet, "/ops/healthz", nil)
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleStatusHonorsYAMLFormat(t *testing.T) {
	g := newTestGateway(t)
	req := httptest.NewRequest(http.MethodGet, "/status?format=yaml", nil)
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/yaml" {
		t.Fatalf("expected application/yaml content type, got %q", ct)
	}
}

func TestRateLimiterBlocksBurstAbove(t *testing.T) {
	limiter := NewPartnerLimiter(RateConfig{RequestsPerSecond: 1, Burst: 1})
	if !limiter.Allow("partner-a") {
		t.Fatal("expected first request to be allowed")
	}
	if limiter.Allow("partner-a") {
		t.Fatal("expected second immediate request to be throttled")
	}
	if !limiter.Allow("partner-b") {
		t.Fatal("expected a different partner to have its own bucket")
	}
}
