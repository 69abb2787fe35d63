package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/linkbio/internal/queue"
)

// WebhookHandler accepts email jobs pushed by an external queue.  The
// signature check runs in middleware.VerifyWebhook.
type WebhookHandler struct {
	Emails queue.Handler
	Logger *slog.Logger
}

// Email sends one job.  A send failure answers 500 so the sender retries.
func (h *WebhookHandler) Email(c echo.Context) error {
	var job queue.EmailJob
	if err := c.Bind(&job); err != nil {
		return badRequest("Invalid request body")
	}
	if err := job.Validate(); err != nil {
		return badRequest(err.Error())
	}
	if err := h.Emails.Handle(c.Request().Context(), job); err != nil {
		logger := h.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.ErrorContext(c.Request().Context(), "webhook email failed", "type", job.Type, "err", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Email delivery failed")
	}
	return c.JSON(http.StatusOK, okResp)
}
