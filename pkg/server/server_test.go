package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"frameworks/almanac/pkg/logging"
	"frameworks/almanac/pkg/monitoring"
)

func TestSetupServiceRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := logging.NewDiscardLogger()
	hc := monitoring.NewHealthChecker("svc", "v1")
	mc := monitoring.NewMetricsCollector(prometheus.NewRegistry(), "svc", "v1", "abc")
	r := SetupServiceRouter(logger, "svc", hc, mc)
	r.GET("/ping", func(c *gin.Context) { c.String(200, "pong") })

	for _, path := range []string{"/ping", "/health", "/metrics"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequestWithContext(context.Background(), "GET", path, nil)
		r.ServeHTTP(w, req)
		if w.Code != 200 {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
	}
}

func TestServeStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := DefaultConfig("svc", "0")
	cfg.Port = "0"

	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, cfg, http.NotFoundHandler(), logging.NewDiscardLogger())
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
