package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/windoze95/manas-api/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore hands out one token bucket per client key. Idle buckets are
// swept lazily on access, at most once per sweepEvery.
type limiterStore struct {
	mu         sync.Mutex
	visitors   map[string]*visitor
	limit      rate.Limit
	burst      int
	sweepEvery time.Duration
	idleTTL    time.Duration
	lastSweep  time.Time
	now        func() time.Time
}

func newLimiterStore(rps int, sweepEvery, idleTTL time.Duration) *limiterStore {
	if rps <= 0 {
		rps = 1
	}
	return &limiterStore{
		visitors:   make(map[string]*visitor),
		limit:      rate.Limit(rps),
		burst:      rps,
		sweepEvery: sweepEvery,
		idleTTL:    idleTTL,
		now:        time.Now,
	}
}

// reserve takes a token for key. When none is available it returns the
// wait until the next one.
func (s *limiterStore) reserve(key string) (bool, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= s.sweepEvery {
		for k, v := range s.visitors {
			if now.Sub(v.lastSeen) > s.idleTTL {
				delete(s.visitors, k)
			}
		}
		s.lastSweep = now
	}

	v, ok := s.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.visitors[key] = v
	}
	v.lastSeen = now

	r := v.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// RateLimitByIP limits each client IP to rps requests per second with a
// burst of rps. Rejected requests get 429 and a Retry-After header.
func RateLimitByIP(rps int, cleanupInterval time.Duration, expiration time.Duration) gin.HandlerFunc {
	store := newLimiterStore(rps, cleanupInterval, expiration)
	return rateLimit(store)
}

func rateLimit(store *limiterStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		allowed, wait := store.reserve(ip)
		if !allowed {
			retryAfter := int(math.Ceil(wait.Seconds()))
			logger.FromGin(c).Warn("rate limit exceeded",
				zap.String("client_ip", ip),
				zap.String("path", c.FullPath()),
			)
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}
