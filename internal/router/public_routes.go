package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/linkbio/internal/config"
	"github.com/iliyamo/linkbio/internal/handler"
	"github.com/iliyamo/linkbio/internal/middleware"
	"github.com/iliyamo/linkbio/internal/repository"
	"github.com/iliyamo/linkbio/internal/service"
)

// RegisterPublic registers the unauthenticated read model of published
// pages.  Profiles are cached in Redis per slug; publishing purges the
// entry (service.CachePurger) under the same key.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cfg config.CacheConfig, rdb *redis.Client) {
	profileKey := func(c echo.Context) string {
		slug := repository.NormalizeSlug(c.Param("slug"))
		if slug == "" {
			return ""
		}
		return service.ProfileCacheKey(cfg.Prefix, slug)
	}

	g := e.Group("/public")
	g.GET("/clients", p.ListClients)
	g.GET("/clients/:slug", p.Profile, middleware.ResponseCache(cfg, rdb, profileKey))
}

// RegisterWebhooks registers endpoints called by external systems.
func RegisterWebhooks(e *echo.Echo, w *handler.WebhookHandler, secret string) {
	e.POST("/webhooks/email", w.Email, middleware.VerifyWebhook(secret))
}
