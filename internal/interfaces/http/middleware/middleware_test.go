package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"content-gen-api/internal/infrastructure/persistence/redis"
	"content-gen-api/pkg/logger"
	"content-gen-api/pkg/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAuth(t *testing.T) {
	jwt := utils.NewJWTManager("secret", "content-gen-api")
	token, err := jwt.IssueToken("user-1", "free", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	expired, _ := jwt.IssueToken("user-1", "free", -time.Hour)

	r := gin.New()
	r.Use(Auth(AuthConfig{Secret: "secret", Issuer: "content-gen-api", SkipPaths: DefaultSkipPaths}))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/v1/usage", func(c *gin.Context) {
		if logger.UserIDFromContext(c.Request.Context()) != c.GetString("user_id") {
			c.Status(http.StatusTeapot)
			return
		}
		c.String(http.StatusOK, c.GetString("user_id"))
	})

	cases := []struct {
		name, path, header string
		want               int
	}{
		{"skip path", "/health", "", http.StatusOK},
		{"missing header", "/v1/usage", "", http.StatusUnauthorized},
		{"wrong scheme", "/v1/usage", "Basic abc", http.StatusUnauthorized},
		{"bad token", "/v1/usage", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"expired", "/v1/usage", "Bearer " + expired, http.StatusUnauthorized},
		{"valid", "/v1/usage", "Bearer " + token, http.StatusOK},
		{"lowercase scheme", "/v1/usage", "bearer " + token, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d", w.Code, tc.want)
			}
			if tc.want == http.StatusOK && tc.path == "/v1/usage" && w.Body.String() != "user-1" {
				t.Fatalf("user = %q", w.Body.String())
			}
		})
	}
}

type scriptedLimiter struct {
	results []redis.RateLimitResult
	err     error
	keys    []string
}

func (l *scriptedLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (redis.RateLimitResult, error) {
	l.keys = append(l.keys, key)
	if l.err != nil {
		return redis.RateLimitResult{}, l.err
	}
	res := l.results[0]
	l.results = l.results[1:]
	return res, nil
}

func rateLimitedEngine(limiter RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("user_id", "user-1"); c.Next() })
	r.POST("/v1/contents/generate", RateLimit(RateLimitConfig{Enabled: true, Requests: 1, Window: time.Minute}, limiter), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestRateLimit(t *testing.T) {
	limiter := &scriptedLimiter{results: []redis.RateLimitResult{{Allowed: true}, {Allowed: false}}}
	r := rateLimitedEngine(limiter)

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/contents/generate", nil))
		if w.Code != want {
			t.Fatalf("request %d status = %d, want %d", i, w.Code, want)
		}
	}
	if limiter.keys[0] != "ratelimit:user-1:/v1/contents/generate" {
		t.Fatalf("key = %q", limiter.keys[0])
	}
}

func TestRateLimit_FailsOpen(t *testing.T) {
	r := rateLimitedEngine(&scriptedLimiter{err: errors.New("redis down")})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/contents/generate", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, limiter failure must not block", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, logger.RequestIDFromContext(c.Request.Context()))
	})

	cases := []struct {
		name, header string
		keep         bool
	}{
		{"propagated", "req-123", true},
		{"generated", "", false},
		{"rejected control chars", "bad\nid", false},
		{"rejected too long", strings.Repeat("a", 65), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set(RequestIDHeader, tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(RequestIDHeader)
			if got == "" || got != w.Body.String() {
				t.Fatalf("header %q body %q", got, w.Body.String())
			}
			if (got == tc.header) != tc.keep {
				t.Fatalf("request id = %q, keep = %v", got, tc.keep)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError || strings.Contains(w.Body.String(), "boom") {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}
