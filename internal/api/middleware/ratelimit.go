package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/taskflow/taskflow-api/internal/api/metrics"
	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
)

// remainingReporter is implemented by limiters that can report the quota left.
type remainingReporter interface {
	Remaining(key string) int
}

// RateLimit throttles requests per client IP using limiter. bucket names the
// limiter in metrics and logs. Limiter failures let the request through.
func RateLimit(bucket string, limiter ports.RateLimiter, log zerolog.Logger) echo.MiddlewareFunc {
	limit := strconv.Itoa(limiter.Limit())
	retryAfter := strconv.Itoa(int(limiter.Window().Seconds()))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.RealIP()
			allowed, err := limiter.Allow(c.Request().Context(), key)
			if err != nil {
				metrics.RateLimitErrorsTotal.WithLabelValues(bucket).Inc()
				log.Warn().Err(err).Str("bucket", bucket).Str("ip", key).Msg("rate limiter unavailable, allowing request")
				return next(c)
			}

			h := c.Response().Header()
			h.Set(HeaderRateLimitLimit, limit)
			if !allowed {
				metrics.RateLimitRejectionsTotal.WithLabelValues(bucket).Inc()
				h.Set(HeaderRateLimitRemaining, "0")
				h.Set(echo.HeaderRetryAfter, retryAfter)
				return domain.ErrTooManyRequests
			}
			if r, ok := limiter.(remainingReporter); ok {
				h.Set(HeaderRateLimitRemaining, strconv.Itoa(r.Remaining(key)))
			}
			return next(c)
		}
	}
}
