package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/artpar/adminkit/adapters/metrics"
	"github.com/artpar/adminkit/core/plugin"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newCollector() (*metrics.Collector, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return metrics.NewWithRegistry(reg, reg), reg
}

func TestObservePhase(t *testing.T) {
	m, _ := newCollector()

	m.ObservePhase("auth", plugin.PhaseRegister, time.Millisecond, nil)
	m.ObservePhase("auth", plugin.PhaseBoot, time.Millisecond, errors.New("boom"))

	if n := testutil.CollectAndCount(m.PluginPhaseDuration); n != 2 {
		t.Errorf("phase duration series = %d, want 2", n)
	}
	if v := testutil.ToFloat64(m.PluginPhaseFailures.WithLabelValues("auth", "boot")); v != 1 {
		t.Errorf("boot failures = %v, want 1", v)
	}
}

func TestObserveEmit(t *testing.T) {
	m, _ := newCollector()

	m.ObserveEmit("post::created", 2, 0, time.Microsecond)
	m.ObserveEmit("post::created", 2, 2, time.Microsecond)

	if v := testutil.ToFloat64(m.EventsEmitted.WithLabelValues("post::created")); v != 2 {
		t.Errorf("emitted = %v, want 2", v)
	}
	if v := testutil.ToFloat64(m.ListenerFailures.WithLabelValues("post::created")); v != 2 {
		t.Errorf("listener failures = %v, want 2", v)
	}
}

func TestObserveRecordAndReload(t *testing.T) {
	m, _ := newCollector()

	m.ObserveRecord("post", "create", nil)
	m.ObserveRecord("post", "create", errors.New("invalid"))
	m.ObserveReload(nil)
	m.ObserveReload(errors.New("bad yaml"))

	if v := testutil.ToFloat64(m.RecordOperations.WithLabelValues("post", "create", "error")); v != 1 {
		t.Errorf("record errors = %v", v)
	}
	if v := testutil.ToFloat64(m.ConfigReloads); v != 1 {
		t.Errorf("reloads = %v", v)
	}
	if v := testutil.ToFloat64(m.ConfigReloadErrors); v != 1 {
		t.Errorf("reload errors = %v", v)
	}
	if testutil.ToFloat64(m.ConfigLastReload) == 0 {
		t.Error("last reload timestamp not set")
	}
}

func TestMiddleware(t *testing.T) {
	m, _ := newCollector()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/{resource}/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"1", "2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/post/"+id, nil))
	}

	if v := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/api/{resource}/{id}", "4xx")); v != 2 {
		t.Errorf("requests = %v, want 2 under one route label", v)
	}
	if v := testutil.ToFloat64(m.RequestsInFlight); v != 0 {
		t.Errorf("in flight = %v, want 0", v)
	}
}

func TestHandler(t *testing.T) {
	m, _ := newCollector()
	m.Resources.Set(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "adminkit_resources 3") {
		t.Errorf("metrics output missing gauge:\n%s", body)
	}
}

func TestNew(t *testing.T) {
	// Each collector owns its registry, so repeated construction is safe.
	a, b := metrics.New(), metrics.New()
	if a == nil || b == nil {
		t.Fatal("New() returned nil")
	}
}
