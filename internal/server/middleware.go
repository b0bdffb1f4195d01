package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"chartlab/internal/metrics"
)

// clientLimiter hands out one token bucket per client IP. Buckets idle for
// longer than ttl are dropped on the next sweep.
type clientLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	clients map[string]*clientBucket
	swept   time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(perSecond float64, burst int) *clientLimiter {
	return &clientLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		ttl:     10 * time.Minute,
		clients: make(map[string]*clientBucket),
		swept:   time.Now(),
	}
}

func (l *clientLimiter) allow(client string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.swept) > l.ttl {
		for id, b := range l.clients {
			if now.Sub(b.lastSeen) > l.ttl {
				delete(l.clients, id)
			}
		}
		l.swept = now
	}

	b, ok := l.clients[client]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[client] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// rateLimit rejects clients that exceed their bucket with 429.
func rateLimit(l *clientLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/metrics" || c.Path() == "/api/health" {
				return next(c)
			}
			if !l.allow(c.RealIP(), time.Now()) {
				return dataResponse(c, http.StatusTooManyRequests, []ErrorDetail{{
					Code:    "ERR_RATE_LIMITED",
					Message: "too many requests",
				}})
			}
			return next(c)
		}
	}
}

// requestLogging logs each request through zerolog and feeds the recorder.
// Routes are labelled by template to keep metric cardinality low.
func requestLogging(logger zerolog.Logger, rec *metrics.Recorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := c.Response().Status
			elapsed := time.Since(start)
			if rec != nil {
				rec.ObserveHTTP(route, c.Request().Method, status, elapsed)
			}

			event := logger.Debug()
			if status >= http.StatusInternalServerError {
				event = logger.Error()
			}
			event.
				Str("method", c.Request().Method).
				Str("route", route).
				Str("uri", c.Request().RequestURI).
				Int("status", status).
				Dur("elapsed", elapsed).
				Str("client", c.RealIP()).
				Msg("HTTP request")
			return nil
		}
	}
}
