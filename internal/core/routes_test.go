package core

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"aquaview/internal/config"
)

func TestMountRoutesOperationalEndpoints(t *testing.T) {
	srv := newTestServer(t)
	srv.Config.Build = config.BuildInfo{Version: "1.2.3", Commit: "abc1234", BuildTime: "2026-08-30T00:00:00Z"}
	srv.MountRoutes()

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/health status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Error("X-Request-Id header missing")
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}

	vresp, err := http.Get(ts.URL + "/version")
	if err != nil {
		t.Fatalf("GET /version: %v", err)
	}
	defer vresp.Body.Close()

	var build map[string]string
	if err := json.NewDecoder(vresp.Body).Decode(&build); err != nil {
		t.Fatalf("decode version: %v", err)
	}
	if build["version"] != "1.2.3" || build["commit"] != "abc1234" {
		t.Errorf("version payload = %v", build)
	}
}

func TestMountRoutesRegistrars(t *testing.T) {
	srv := newTestServer(t)
	srv.V1RouteRegistrars = []RouteRegistrar{
		func(r chi.Router) {
			r.Get("/dashboard/kpis", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
		},
	}
	srv.MountRoutes()

	req := httptest.NewRequest(http.MethodGet, "/v1/dashboard/kpis", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("registrar route status = %d", rec.Code)
	}
}

func TestServerShutdownStopsStoppers(t *testing.T) {
	srv := newTestServer(t)

	stopped := 0
	srv.Stoppers = []Stopper{stopFunc(func() { stopped++ }), stopFunc(func() { stopped++ })}

	if err := srv.Shutdown(t.Context()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if stopped != 2 {
		t.Errorf("stopped %d stoppers, want 2", stopped)
	}
}

type stopFunc func()

func (f stopFunc) Stop() { f() }
