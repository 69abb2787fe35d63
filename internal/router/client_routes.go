package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/linkbio/internal/handler"
	"github.com/iliyamo/linkbio/internal/middleware"
)

// RegisterClients registers the client's own /clients/me routes and the
// super-admin /clients routes.  Echo matches static segments before
// parameters, so /clients/me never reaches the :id handlers.
func RegisterClients(e *echo.Echo, h *handler.ClientHandler) {
	me := e.Group("/clients/me", middleware.RequireClient())
	me.GET("", h.Me)
	me.PUT("", h.UpdateMe)
	me.PUT("/settings", h.UpdateSettings)
	me.PUT("/vcard", h.UpdateVCard)
	me.PUT("/branding", h.UpdateBranding)

	admin := e.Group("/clients", middleware.RequireSuperAdmin())
	admin.GET("", h.List)
	admin.POST("", h.Create)
	admin.GET("/:id", h.Get)
	admin.PUT("/:id", h.Update)
	admin.DELETE("/:id", h.Delete)
}

// RegisterLinks registers the caller's link routes.  /links/reorder is
// static and wins over /links/:id.
func RegisterLinks(e *echo.Echo, h *handler.LinkHandler) {
	g := e.Group("/links", middleware.RequireClient())
	g.GET("", h.List)
	g.POST("", h.Create)
	g.PUT("/reorder", h.Reorder)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/toggle", h.Toggle)
}

// RegisterPublish registers the publish routes.
func RegisterPublish(e *echo.Echo, h *handler.PublishHandler) {
	g := e.Group("/publish", middleware.RequireClient())
	g.POST("", h.Publish)
	g.GET("/status", h.Status)
}
