package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/linkbio/internal/metrics"
	"github.com/iliyamo/linkbio/internal/ratelimit"
)

// Allow records one attempt of policy for subject.  When the limit is
// exceeded it sets Retry-After and returns a 429 error.  Backend failures
// are logged and the request is let through.
func Allow(c echo.Context, l ratelimit.Limiter, p ratelimit.Policy, subject string) error {
	if l == nil {
		return nil
	}
	key := p.Key(subject)
	c.Set(rateLimitKey, key)
	d, err := l.Check(c.Request().Context(), key, p.Max, p.Window)
	if err != nil {
		slog.WarnContext(c.Request().Context(), "rate limiter backend unavailable, allowing request",
			"policy", p.Name, "err", err)
		return nil
	}
	if !d.Allowed {
		metrics.RateLimitDenied.WithLabelValues(p.Name).Inc()
		c.Response().Header().Set("Retry-After", strconv.Itoa(d.RetryAfterSeconds()))
		return echo.NewHTTPError(http.StatusTooManyRequests, "Too many attempts, please try again later")
	}
	return nil
}

// RateLimit applies policy per client IP in front of a handler.
func RateLimit(l ratelimit.Limiter, p ratelimit.Policy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			if err := Allow(c, l, p, ip); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// ResetRateLimit clears the counter charged for this request, e.g. after a
// successful sign-in.  Errors are logged only.
func ResetRateLimit(c echo.Context, l ratelimit.Limiter) {
	key, _ := c.Get(rateLimitKey).(string)
	if l == nil || key == "" {
		return
	}
	if err := l.Reset(c.Request().Context(), key); err != nil {
		slog.WarnContext(c.Request().Context(), "rate limit reset failed", "key", key, "err", err)
	}
}
