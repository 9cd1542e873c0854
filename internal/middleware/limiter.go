package middleware

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"marketingclass-be/internal/utils"

	"golang.org/x/time/rate"
)

// Rate Limit Tiers
const (
	// Payment writes and gateway callbacks
	limitStrict = rate.Limit(2)
	burstStrict = 5

	// General (Default)
	limitGeneral = rate.Limit(10)
	burstGeneral = 20

	// Internal / trusted services
	limitInternal = rate.Limit(100)
	burstInternal = 200
)

const visitorTTL = 3 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per identity and tier.
type Limiter struct {
	internalKey string

	mu       sync.Mutex
	visitors map[string]*visitor
}

func NewLimiter(internalKey string) *Limiter {
	return &Limiter{
		internalKey: internalKey,
		visitors:    make(map[string]*visitor),
	}
}

func (l *Limiter) get(key string, r rate.Limit, b int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, exists := l.visitors[key]
	if !exists {
		limiter := rate.NewLimiter(r, b)
		l.visitors[key] = &visitor{limiter, time.Now()}
		return limiter
	}

	v.lastSeen = time.Now()
	return v.limiter
}

// Cleanup evicts idle buckets every minute until ctx is done.
func (l *Limiter) Cleanup(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evict(time.Now())
		}
	}
}

func (l *Limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > visitorTTL {
			delete(l.visitors, key)
		}
	}
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, burst, tier := l.resolveTier(r)
		key := fmt.Sprintf("%s:%s", identityKey(r), tier)

		if !l.get(key, limit, burst).Allow() {
			utils.WriteJSONError(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}

		if tier == "internal" {
			r = r.WithContext(utils.WithInternalRequest(r.Context()))
		}
		next.ServeHTTP(w, r)
	})
}

func identityKey(r *http.Request) string {
	if userID, ok := utils.GetUserIDFromContext(r.Context()); ok {
		return "user:" + userID
	}
	if deviceID := r.Header.Get("X-Device-ID"); deviceID != "" {
		return "device:" + deviceID
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return "ip:" + ip
}

func (l *Limiter) resolveTier(r *http.Request) (rate.Limit, int, string) {
	if l.internalKey != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Service-Auth")), []byte(l.internalKey)) == 1 {
		return limitInternal, burstInternal, "internal"
	}

	if isPaymentWrite(r) {
		return limitStrict, burstStrict, "strict"
	}

	return limitGeneral, burstGeneral, "general"
}

func isPaymentWrite(r *http.Request) bool {
	if r.URL.Path == "/webhook/payment" {
		return true
	}
	if r.Method != http.MethodPost && r.Method != http.MethodPatch {
		return false
	}
	return strings.HasPrefix(r.URL.Path, "/payments/")
}
