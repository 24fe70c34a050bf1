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
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/sohamsontakkespotify-afk/erp--sub001/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (f *fakeLimiter) CheckRateLimit(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	f.keys = append(f.keys, key)
	return f.allowed, f.err
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.POST("/gate/entry", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func do(r *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/gate/entry", nil))
	return w
}

func TestRateLimit(t *testing.T) {
	tests := []struct {
		name    string
		limiter *fakeLimiter
		want    int
	}{
		{"允许", &fakeLimiter{allowed: true}, http.StatusOK},
		{"超限", &fakeLimiter{allowed: false}, http.StatusTooManyRequests},
		{"Redis 故障降级放行", &fakeLimiter{err: errors.New("redis down")}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(RateLimit(tt.limiter, 10, time.Minute, zap.NewNop()))
			w := do(r)
			if w.Code != tt.want {
				t.Errorf("期望 %d，实际 %d", tt.want, w.Code)
			}
			if len(tt.limiter.keys) != 1 || tt.limiter.keys[0] != "rate_limit:192.0.2.1:/gate/entry" {
				t.Errorf("限流 key 不符: %v", tt.limiter.keys)
			}
		})
	}
}

func TestMetrics_RecordsRouteTemplate(t *testing.T) {
	m := metrics.New()
	r := newRouter(Metrics(m))

	do(r)
	do(r)

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/gate/entry", "200")); got != 2 {
		t.Errorf("期望请求计数 2，实际 %v", got)
	}
}

func TestRequestID(t *testing.T) {
	r := newRouter(RequestID())

	w := do(r)
	if rid := w.Header().Get("X-Request-ID"); len(rid) != 36 {
		t.Errorf("期望生成 UUID，实际 %q", rid)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/gate/entry", nil)
	req.Header.Set("X-Request-ID", "gate-7-0001")
	r.ServeHTTP(w, req)
	if rid := w.Header().Get("X-Request-ID"); rid != "gate-7-0001" {
		t.Errorf("应透传请求头，实际 %q", rid)
	}
}

func TestRequestID_RejectsControlChars(t *testing.T) {
	r := newRouter(RequestID())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/gate/entry", nil)
	req.Header.Set("X-Request-ID", "bad id\n")
	r.ServeHTTP(w, req)
	if rid := w.Header().Get("X-Request-ID"); len(rid) != 36 {
		t.Errorf("含控制字符时应重新生成，实际 %q", rid)
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(zap.NewNop()))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("期望 500，实际 %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "50000") {
		t.Errorf("期望业务码 50000，实际 %s", w.Body.String())
	}
}

func TestBodyLimit(t *testing.T) {
	r := newRouter(BodyLimit(8))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/gate/entry", strings.NewReader(`{"phone":"9811111111"}`)))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("超限期望 413，实际 %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/gate/entry", strings.NewReader(`{}`)))
	if w.Code != http.StatusOK {
		t.Errorf("未超限期望 200，实际 %d", w.Code)
	}
}

func TestCORS(t *testing.T) {
	r := newRouter(CORS([]string{"http://erp.local/"}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/gate/entry", nil)
	req.Header.Set("Origin", "http://erp.local")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://erp.local" {
		t.Errorf("白名单来源应放行，实际 %q", got)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("OPTIONS", "/gate/entry", nil)
	req.Header.Set("Origin", "http://evil.local")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("预检期望 204，实际 %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("非白名单来源不应放行，实际 %q", got)
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/api/v1/vehicles", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/vehicles", nil))
	if w.Header().Get("X-Frame-Options") != "DENY" || w.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("API 响应头不符: %v", w.Header())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	if w.Header().Get("Cache-Control") != "" {
		t.Errorf("非 API 路径不应设置 no-store")
	}
}
