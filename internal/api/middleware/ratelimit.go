package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/timmy/stickergen/internal/logger"
)

// Limiter decides whether another request for key fits in the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit rejects requests over the limiter's budget with 429.
// Requests are keyed by user id, falling back to the client IP.
// A limiter error lets the request through.
func RateLimit(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := UserID(c)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}

		ok, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.CtxWarn(c.Request.Context(), "Rate limiter unavailable, allowing request: %v", err)
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}

type fixedWindow struct {
	start time.Time
	count int
}

// MemoryLimiter is a per-process fixed-window limiter.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string]*fixedWindow
	now     func() time.Time
}

const pruneThreshold = 10000

func NewMemoryLimiter(limit int, per time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  per,
		buckets: make(map[string]*fixedWindow),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	start := l.now().Truncate(l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= pruneThreshold {
			l.prune(start)
		}
		w = &fixedWindow{start: start}
		l.buckets[key] = w
	}
	if !w.start.Equal(start) {
		w.start = start
		w.count = 0
	}
	w.count++
	return w.count <= l.limit, nil
}

func (l *MemoryLimiter) prune(current time.Time) {
	for k, w := range l.buckets {
		if w.start.Before(current) {
			delete(l.buckets, k)
		}
	}
}

// RedisLimiter is a fixed-window limiter shared by every instance using the same redis.
type RedisLimiter struct {
	client redis.Cmdable
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(client redis.Cmdable, limit int, per time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: per,
		prefix: "stickergen:ratelimit",
		now:    time.Now,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	slot := l.now().UnixNano() / int64(l.window)
	redisKey := fmt.Sprintf("%s:%s:%s", l.prefix, key, strconv.FormatInt(slot, 10))

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit counter: %w", err)
	}
	return incr.Val() <= int64(l.limit), nil
}
