package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/linkbio/internal/middleware"
	"github.com/iliyamo/linkbio/internal/service"
)

// PublishHandler moves the caller's draft live.
type PublishHandler struct {
	Publisher *service.Publisher
}

// Publish makes the current settings and links the public page.  Only a
// failed store write is an error; cache revalidation is best effort.
func (h *PublishHandler) Publish(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Publisher.Publish(ctx, *middleware.IdentityFrom(c).Client)
	if err != nil {
		return fromRepo(err, "Client")
	}
	return c.JSON(http.StatusOK, res)
}

// Status reads the publication flags from the store.
func (h *PublishHandler) Status(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	st, err := h.Publisher.Status(ctx, clientID(c))
	if err != nil {
		return fromRepo(err, "Client")
	}
	return c.JSON(http.StatusOK, st)
}
