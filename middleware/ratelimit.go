package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type bucket struct {
	tokens     int
	lastRefill time.Time
}

type lastMessage struct {
	text string
	ts   time.Time
}

// Limiter holds the per-client token buckets, the duplicate message guard and
// the per-user concurrency slots.
type Limiter struct {
	rlMu     sync.Mutex
	buckets  map[string]*bucket
	window   time.Duration
	capacity int

	dupMu   sync.Mutex
	lastMsg map[string]lastMessage
	dupTTL  time.Duration

	cgMu     sync.Mutex
	userSem  map[string]chan struct{}
	userConc int

	now func() time.Time
}

// NewLimiter allows capacity requests per window per client, at most conc
// concurrent slots per user, and rejects a repeated text inside dupTTL
// (0 disables the duplicate guard).
func NewLimiter(window time.Duration, capacity, conc int, dupTTL time.Duration) *Limiter {
	if window <= 0 {
		window = 10 * time.Second
	}
	if capacity <= 0 {
		capacity = 5
	}
	if conc <= 0 {
		conc = 1
	}
	return &Limiter{
		buckets:  map[string]*bucket{},
		window:   window,
		capacity: capacity,
		lastMsg:  map[string]lastMessage{},
		dupTTL:   dupTTL,
		userSem:  map[string]chan struct{}{},
		userConc: conc,
		now:      time.Now,
	}
}

func clientIP(c *gin.Context) string {
	ip := strings.TrimSpace(c.ClientIP())
	if ip == "" {
		host, _, _ := net.SplitHostPort(strings.TrimSpace(c.Request.RemoteAddr))
		ip = host
	}
	return ip
}

// ClientKey identifies the caller for rate limiting: user id when
// authenticated, "anon", plus the client ip.
func ClientKey(c *gin.Context) string {
	uid := "anon"
	if id := CurrentIdentity(c); id != nil {
		uid = strconv.FormatUint(uint64(id.UserID), 10)
	}
	return uid + "@" + clientIP(c)
}

// Allow takes one token from key's bucket.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	l.rlMu.Lock()
	defer l.rlMu.Unlock()
	b := l.buckets[key]
	if b == nil {
		b = &bucket{tokens: l.capacity, lastRefill: now}
		l.buckets[key] = b
	}
	if elapsed := now.Sub(b.lastRefill); elapsed > 0 {
		add := int(float64(l.capacity) * (float64(elapsed) / float64(l.window)))
		if add > 0 {
			b.tokens = min(b.tokens+add, l.capacity)
			b.lastRefill = now
		}
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

func (l *Limiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(ClientKey(c)) {
			c.Header("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "too many requests"})
			return
		}
		c.Next()
	}
}

// DuplicateGuard reports whether text may be processed for key. It returns
// false when the same text was seen for key within the duplicate window.
func (l *Limiter) DuplicateGuard(key, text string) bool {
	if l.dupTTL <= 0 {
		return true
	}
	now := l.now()
	text = strings.TrimSpace(text)
	l.dupMu.Lock()
	defer l.dupMu.Unlock()
	if entry, ok := l.lastMsg[key]; ok && entry.text == text && now.Sub(entry.ts) < l.dupTTL {
		return false
	}
	l.lastMsg[key] = lastMessage{text: text, ts: now}
	return true
}

// ForgetDuplicate clears the guard entry for key when it still holds text, so a
// retry after a failed attempt is not rejected as a duplicate.
func (l *Limiter) ForgetDuplicate(key, text string) {
	text = strings.TrimSpace(text)
	l.dupMu.Lock()
	defer l.dupMu.Unlock()
	if entry, ok := l.lastMsg[key]; ok && entry.text == text {
		delete(l.lastMsg, key)
	}
}

// AcquireUserSlot blocks until key has a free concurrency slot.
func (l *Limiter) AcquireUserSlot(key string) (release func()) {
	l.cgMu.Lock()
	sem := l.userSem[key]
	if sem == nil {
		sem = make(chan struct{}, l.userConc)
		l.userSem[key] = sem
	}
	l.cgMu.Unlock()
	sem <- struct{}{}
	return func() { <-sem }
}
