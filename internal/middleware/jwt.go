package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"bytes"    // bytes rebuilds the request body after it was read
	"io"       // io reads the request body
	"net/http" // HTTP status codes for responses

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/linkbio/internal/utils" // webhook signature verification
)

// WebhookSignatureHeader carries an HS256 JWT binding the delivery to its body.
const WebhookSignatureHeader = "X-Webhook-Signature"

const maxWebhookBody = 64 << 10

// VerifyWebhook returns an Echo middleware that authenticates webhook
// deliveries.  The body is read once, checked against the body_sha256 claim
// of the signature token, and put back so the handler can bind it.  With an
// empty secret every delivery is accepted, which is how local development
// runs without a push queue in front.
func VerifyWebhook(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if secret == "" {
				return next(c)
			}
			req := c.Request()
			body, err := io.ReadAll(io.LimitReader(req.Body, maxWebhookBody+1))
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "Unreadable body")
			}
			if len(body) > maxWebhookBody {
				return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Body too large")
			}
			if err := utils.VerifyWebhook(secret, req.Header.Get(WebhookSignatureHeader), body); err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid signature")
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
			return next(c)
		}
	}
}
