package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/linkbio/internal/metrics"
)

// Revalidator tells a downstream cache that the page of slug changed.
type Revalidator interface {
	Revalidate(ctx context.Context, slug string) error
}

// HTTPRevalidator asks the public renderer to rebuild a page by requesting it
// with the prerender bypass header.
type HTTPRevalidator struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewHTTPRevalidator(baseURL, token string) *HTTPRevalidator {
	return &HTTPRevalidator{BaseURL: baseURL, Token: token, Client: &http.Client{Timeout: 5 * time.Second}}
}

func (r *HTTPRevalidator) Revalidate(ctx context.Context, slug string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL+"/"+url.PathEscape(slug), nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-prerender-revalidate", r.Token)
	resp, err := r.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("revalidate %s: status %d", slug, resp.StatusCode)
	}
	return nil
}

// ProfileCacheKey is the Redis key of the cached public profile of slug.
func ProfileCacheKey(prefix, slug string) string {
	return prefix + ":profile:" + slug
}

// CachePurger drops the cached public profile so the next read is fresh.
type CachePurger struct {
	RDB    *redis.Client
	Prefix string
}

func (p *CachePurger) Revalidate(ctx context.Context, slug string) error {
	return p.RDB.Del(ctx, ProfileCacheKey(p.Prefix, slug)).Err()
}

// MultiRevalidator notifies every member and joins their errors.
type MultiRevalidator []Revalidator

func (m MultiRevalidator) Revalidate(ctx context.Context, slug string) error {
	var errs []error
	for _, r := range m {
		if err := r.Revalidate(ctx, slug); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BestEffort wraps a Revalidator so that failures are logged and counted
// but never reach the caller.  A nil Revalidator is a no-op.
type BestEffort struct {
	Next   Revalidator
	Logger *slog.Logger
}

func (b BestEffort) Notify(ctx context.Context, slug string) {
	if b.Next == nil {
		return
	}
	if err := b.Next.Revalidate(ctx, slug); err != nil {
		metrics.RevalidateFailures.Inc()
		logger := b.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.WarnContext(ctx, "revalidation failed", "slug", slug, "err", err)
	}
}
