package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/bullhornlabs/bullhorn/internal/asset"
	"github.com/bullhornlabs/bullhorn/internal/config"
	"github.com/bullhornlabs/bullhorn/internal/observe"
	"github.com/bullhornlabs/bullhorn/internal/session"
	"github.com/bullhornlabs/bullhorn/pkg/device/synth"
)

func TestHealthzAlwaysReturns200(t *testing.T) {
	h := New()

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestReadyzCheckerFails(t *testing.T) {
	h := New(
		Checker{Name: "session", Check: func(_ context.Context) error {
			return errors.New("device lost")
		}},
		Checker{Name: "assets", Check: func(_ context.Context) error { return nil }},
	)

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "fail" {
		t.Errorf("status = %q, want %q", body.Status, "fail")
	}
	if body.Checks["session"] != "fail: device lost" {
		t.Errorf("session check = %q", body.Checks["session"])
	}
	if body.Checks["assets"] != "ok" {
		t.Errorf("assets check = %q, want ok", body.Checks["assets"])
	}
}

func TestReadyzNoCheckers(t *testing.T) {
	h := New()

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRegisterRoutesWork(t *testing.T) {
	h := New(
		Checker{Name: "session", Check: func(_ context.Context) error { return nil }},
	)
	mux := http.NewServeMux()
	h.Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest("GET", path, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
			}
		})
	}
}

func TestSessionCheckerTracksFaults(t *testing.T) {
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	cfg := config.Default()
	host := synth.New()
	ctrl := session.NewController(session.ControllerConfig{
		Config:  cfg,
		Host:    host,
		Assets:  asset.NewManager(cfg.Engine.Format(), m),
		Metrics: m,
	})
	check := SessionChecker(ctrl)

	if err := check.Check(context.Background()); err != nil {
		t.Errorf("idle session check = %v, want nil", err)
	}

	host.SetInputUnavailable(true)
	if err := ctrl.StartBroadcast(context.Background()); err == nil {
		t.Fatal("StartBroadcast succeeded with unavailable device")
	}
	if err := check.Check(context.Background()); err == nil {
		t.Error("faulted session check = nil, want error")
	}

	if err := ctrl.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := check.Check(context.Background()); err != nil {
		t.Errorf("reset session check = %v, want nil", err)
	}
}
