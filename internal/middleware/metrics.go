package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/linkbio/internal/metrics"
)

// Metrics records request counts and latencies.  The route pattern, not the
// raw URL, is used as the path label to keep cardinality bounded.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			// Render the error here so the committed status is known.  It is
			// still returned for the request logger; the error handler skips
			// responses that are already committed.
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			if !c.Response().Committed {
				status = http.StatusOK
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := c.Request().Method
			metrics.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
