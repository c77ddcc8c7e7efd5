package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestDuplicateGuard(t *testing.T) {
	l := NewLimiter(time.Second, 5, 1, 50*time.Millisecond)
	now := time.Now()
	l.now = func() time.Time { return now }
	uid := "user-123"
	text := "Hello"

	if ok := l.DuplicateGuard(uid, text); !ok {
		t.Fatalf("expected first call to pass duplicate guard")
	}
	if ok := l.DuplicateGuard(uid, text); ok {
		t.Fatalf("expected immediate duplicate to be blocked")
	}
	if ok := l.DuplicateGuard(uid, text+"!"); !ok {
		t.Fatalf("expected different text to pass within TTL")
	}
	now = now.Add(70 * time.Millisecond)
	if ok := l.DuplicateGuard(uid, text+"!"); !ok {
		t.Fatalf("expected same text to pass after TTL")
	}
}

func TestDuplicateGuardDisabled(t *testing.T) {
	l := NewLimiter(time.Second, 5, 1, 0)
	if !l.DuplicateGuard("u", "x") || !l.DuplicateGuard("u", "x") {
		t.Fatalf("expected guard to be off with zero ttl")
	}
}

func TestAllowRefills(t *testing.T) {
	l := NewLimiter(10*time.Second, 2, 1, 0)
	now := time.Now()
	l.now = func() time.Time { return now }

	if !l.Allow("k") || !l.Allow("k") {
		t.Fatalf("expected capacity requests to pass")
	}
	if l.Allow("k") {
		t.Fatalf("expected bucket to be empty")
	}
	if !l.Allow("other") {
		t.Fatalf("expected separate bucket per key")
	}
	now = now.Add(5 * time.Second)
	if !l.Allow("k") {
		t.Fatalf("expected refill after half a window")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := NewLimiter(time.Minute, 1, 1, 0)
	r := gin.New()
	r.GET("/x", l.RateLimit(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After header, got %q", w.Header().Get("Retry-After"))
	}
}

func TestAcquireUserSlot(t *testing.T) {
	l := NewLimiter(time.Second, 1, 1, 0)
	release := l.AcquireUserSlot("u")
	done := make(chan struct{})
	go func() {
		r2 := l.AcquireUserSlot("u")
		r2()
		close(done)
	}()
	select {
	case <-done:
		t.Fatalf("expected second acquire to block")
	case <-time.After(20 * time.Millisecond):
	}
	release()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected second acquire after release")
	}
}

func TestForgetDuplicateAllowsRetry(t *testing.T) {
	l := NewLimiter(time.Second, 5, 1, time.Minute)
	if !l.DuplicateGuard("u", "hello") {
		t.Fatalf("expected first call to pass")
	}
	l.ForgetDuplicate("u", "other")
	if l.DuplicateGuard("u", "hello") {
		t.Fatalf("expected entry for a different text to be kept")
	}
	l.ForgetDuplicate("u", " hello ")
	if !l.DuplicateGuard("u", "hello") {
		t.Fatalf("expected retry to pass after forget")
	}
}
