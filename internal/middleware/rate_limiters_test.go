package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func setupLimitedRouter(store *limiterStore) *gin.Engine {
	r := gin.New()
	r.GET("/limited", rateLimit(store), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func hit(r *gin.Engine, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/limited", nil)
	req.RemoteAddr = ip + ":1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit_BurstThenReject(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	store := newLimiterStore(2, time.Minute, 10*time.Minute)
	store.now = func() time.Time { return now }
	r := setupLimitedRouter(store)

	for i := 0; i < 2; i++ {
		if w := hit(r, "10.0.0.1"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}
	w := hit(r, "10.0.0.1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q, want 1", w.Header().Get("Retry-After"))
	}

	// Other clients have their own bucket.
	if w := hit(r, "10.0.0.2"); w.Code != http.StatusOK {
		t.Errorf("second client status = %d, want 200", w.Code)
	}

	// Tokens refill over time.
	now = now.Add(time.Second)
	if w := hit(r, "10.0.0.1"); w.Code != http.StatusOK {
		t.Errorf("after refill status = %d, want 200", w.Code)
	}
}

func TestLimiterStore_SweepsIdleVisitors(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	store := newLimiterStore(5, time.Minute, 10*time.Minute)
	store.now = func() time.Time { return now }

	store.reserve("a")
	now = now.Add(11 * time.Minute)
	store.reserve("b")

	if _, ok := store.visitors["a"]; ok {
		t.Error("idle visitor should be swept")
	}
	if _, ok := store.visitors["b"]; !ok {
		t.Error("active visitor should be kept")
	}
}

func TestNewLimiterStore_NonPositiveRate(t *testing.T) {
	store := newLimiterStore(0, time.Minute, time.Minute)
	if ok, _ := store.reserve("a"); !ok {
		t.Error("first request should pass with the minimum rate")
	}
}
