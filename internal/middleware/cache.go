package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/linkbio/internal/config"
)

// cachedResponse is what a cache entry holds.
type cachedResponse struct {
	Status int         `json:"s"`
	Header http.Header `json:"h"`
	Body   []byte      `json:"b"`
}

// skipHeaders are recomputed on every reply.
var skipHeaders = map[string]bool{"Content-Length": true, "X-Cache": true}

// bodyRecorder tees the response body while it is written to the client.
type bodyRecorder struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	size   int64
	limit  int64
}

func (w *bodyRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.size += int64(len(b))
	if !w.tooLarge() {
		w.buf.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) tooLarge() bool { return w.limit > 0 && w.size > w.limit }

func (w *bodyRecorder) entry(h http.Header) cachedResponse {
	kept := make(http.Header, len(h))
	for k, v := range h {
		if !skipHeaders[http.CanonicalHeaderKey(k)] {
			kept[k] = v
		}
	}
	return cachedResponse{Status: w.status, Header: kept, Body: w.buf.Bytes()}
}

// ResponseCache stores successful GET responses in Redis under the key
// returned by keyFn, so a hit replays the same status, headers and body.  An
// empty key skips caching for that request.  Entries are removed explicitly
// (service.CachePurger) or expire after cfg.TTL.  Redis errors fall through
// to the handler.
func ResponseCache(cfg config.CacheConfig, rdb *redis.Client, keyFn func(echo.Context) string) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}
			key := keyFn(c)
			if key == "" {
				return next(c)
			}
			ctx := c.Request().Context()

			if raw, err := rdb.Get(ctx, key).Bytes(); err == nil {
				var hit cachedResponse
				if json.Unmarshal(raw, &hit) == nil && hit.Status != 0 {
					res := c.Response()
					for k, vals := range hit.Header {
						for _, v := range vals {
							res.Header().Add(k, v)
						}
					}
					res.Header().Set("X-Cache", "HIT")
					res.WriteHeader(hit.Status)
					_, err := res.Write(hit.Body)
					return err
				}
			}

			rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(cfg.MaxBodyBytes)}
			c.Response().Writer = rec
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if rec.status != http.StatusOK || rec.tooLarge() {
				return nil
			}
			if payload, err := json.Marshal(rec.entry(c.Response().Header())); err == nil {
				_ = rdb.Set(context.WithoutCancel(ctx), key, payload, ttl).Err()
			}
			return nil
		}
	}
}
