package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type fakeChecker struct{ err error }

func (f fakeChecker) HealthCheck(context.Context) error { return f.err }

func TestHealthHandler_Ready(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name   string
		checks map[string]HealthChecker
		want   int
	}{
		{"all ok", map[string]HealthChecker{"postgres": fakeChecker{}, "redis": fakeChecker{}}, http.StatusOK},
		{"redis down", map[string]HealthChecker{"postgres": fakeChecker{}, "redis": fakeChecker{err: errors.New("refused")}}, http.StatusServiceUnavailable},
		{"postgres missing", map[string]HealthChecker{"redis": fakeChecker{}}, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := &HealthHandler{checks: tc.checks}
			r := gin.New()
			r.GET("/ready", h.Ready)
			r.GET("/live", h.Live)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
			if w.Code != tc.want {
				t.Fatalf("ready status = %d, want %d", w.Code, tc.want)
			}

			w = httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/live", nil))
			if w.Code != http.StatusOK {
				t.Fatalf("live status = %d", w.Code)
			}
		})
	}
}
