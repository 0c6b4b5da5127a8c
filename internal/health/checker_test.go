package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

// ── Stubs ────────────────────────────────────────────────────────────────

// flakyProbe fails its first n calls.
func flakyProbe(n int32) Probe {
	var calls atomic.Int32
	return func(context.Context) error {
		if calls.Add(1) <= n {
			return errors.New("connection refused")
		}
		return nil
	}
}

type webhookRecorder struct {
	events []string
}

func (w *webhookRecorder) dispatch(_ context.Context, eventType string, payload map[string]string) {
	w.events = append(w.events, eventType+":"+payload["check"])
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestHTTPProbe_success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := HTTPProbe(srv.Client(), srv.URL)(context.Background()); err != nil {
		t.Errorf("expected probe to succeed: %v", err)
	}
}

func TestHTTPProbe_fallsBackToGET(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := HTTPProbe(srv.Client(), srv.URL)(context.Background()); err != nil {
		t.Errorf("expected GET fallback to succeed: %v", err)
	}
}

func TestHTTPProbe_failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := HTTPProbe(srv.Client(), srv.URL)(context.Background()); err == nil {
		t.Error("expected probe to fail")
	}
}

func TestCheckAll_degradesAfterThreshold(t *testing.T) {
	hooks := &webhookRecorder{}
	checker := New(Config{ProbeTimeout: time.Second, FailThreshold: 3}, zap.NewNop())
	checker.SetWebhookDispatch(hooks.dispatch)
	checker.Register("store", flakyProbe(100))
	checker.Register("ledger", flakyProbe(0))

	for i := 0; i < 2; i++ {
		checker.CheckAll(context.Background())
	}
	if !checker.Ready() {
		t.Fatal("should stay ready below the threshold")
	}

	// Run twice more: the event fires once, exactly at the threshold.
	checker.CheckAll(context.Background())
	checker.CheckAll(context.Background())

	if checker.Ready() {
		t.Error("expected not ready")
	}
	snap := checker.Snapshot()
	if snap[0].Name != "ledger" || snap[0].Status != StatusHealthy {
		t.Errorf("unexpected ledger status %+v", snap[0])
	}
	if snap[1].Status != StatusDegraded || snap[1].FailCount != 4 || snap[1].LastError == "" {
		t.Errorf("unexpected store status %+v", snap[1])
	}
	if len(hooks.events) != 1 || hooks.events[0] != "system.degraded:store" {
		t.Errorf("expected one degraded event, got %v", hooks.events)
	}
}

func TestCheckAll_recoversOnSuccess(t *testing.T) {
	checker := New(Config{ProbeTimeout: time.Second, FailThreshold: 3}, zap.NewNop())
	checker.Register("ai_gateway", flakyProbe(3))

	var results []bool
	checker.SetMetricsRecord(func(_ string, ok bool) { results = append(results, ok) })

	// Fail 3 times, then succeed.
	for i := 0; i < 4; i++ {
		checker.CheckAll(context.Background())
	}

	if s := checker.Snapshot()[0]; s.Status != StatusHealthy || s.FailCount != 0 {
		t.Errorf("expected healthy after recovery, got %+v", s)
	}
	if len(results) != 4 || results[3] != true {
		t.Errorf("unexpected metrics %v", results)
	}
}

func TestSnapshot_unknownBeforeFirstRun(t *testing.T) {
	checker := New(Config{}, zap.NewNop())
	checker.Register("store", flakyProbe(0))

	if s := checker.Snapshot()[0]; s.Status != StatusUnknown {
		t.Errorf("expected unknown, got %q", s.Status)
	}
	if !checker.Ready() {
		t.Error("unknown checks should not block readiness")
	}
}

func TestStart_stopsOnCancel(t *testing.T) {
	checker := New(Config{CheckInterval: 10 * time.Millisecond}, zap.NewNop())
	var calls atomic.Int32
	checker.Register("store", func(context.Context) error { calls.Add(1); return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Start(ctx)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if calls.Load() < 2 {
		t.Errorf("expected repeated checks, got %d", calls.Load())
	}
}
