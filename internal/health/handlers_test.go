package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/noah-isme/backend-bazaar/internal/health"
)

type fakeChecker struct {
	dbErr    error
	redisErr error
}

func (f fakeChecker) PingDB(context.Context, time.Duration) error    { return f.dbErr }
func (f fakeChecker) PingRedis(context.Context, time.Duration) error { return f.redisErr }

func probeReady(h health.Handler) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	return rr
}

func TestLiveAlwaysOK(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{}.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("live = %d, want 200", rr.Code)
	}
	if rr.Body.String() != "ok" {
		t.Fatalf("live body = %q", rr.Body.String())
	}
}

func TestReadyReportsDependencies(t *testing.T) {
	h := health.Handler{Checker: fakeChecker{}}
	rr := probeReady(h)
	if rr.Code != http.StatusOK {
		t.Fatalf("ready = %d, want 200", rr.Code)
	}
	var status map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status["db"] != "ok" || status["redis"] != "ok" {
		t.Fatalf("status = %#v", status)
	}

	h = health.Handler{Checker: fakeChecker{dbErr: errors.New("db down")}}
	if rr := probeReady(h); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready with db down = %d, want 503", rr.Code)
	}
	h = health.Handler{Checker: fakeChecker{redisErr: errors.New("redis down")}}
	if rr := probeReady(h); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready with redis down = %d, want 503", rr.Code)
	}
}

func TestReadyGateDuringShutdown(t *testing.T) {
	t.Cleanup(func() { health.SetReady(true) })
	h := health.Handler{Checker: fakeChecker{}}

	health.SetReady(true)
	if rr := probeReady(h); rr.Code != http.StatusOK {
		t.Fatalf("ready before shutdown = %d, want 200", rr.Code)
	}

	health.SetReady(false)
	rr := probeReady(h)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready during shutdown = %d, want 503", rr.Code)
	}
}
