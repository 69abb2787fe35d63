package middleware

// identity.go defines the context accessors shared across middleware and
// handlers.  LoadSession stores the resolved identity and the raw token under
// the keys below; everything downstream reads them through these helpers.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/linkbio/internal/service"
)

const (
	identityKey     = "identity"
	sessionTokenKey = "session_token"
	rateLimitKey    = "rate_limit_key"
)

// IdentityFrom returns the identity resolved for this request, or the
// anonymous identity when none was stored.
func IdentityFrom(c echo.Context) service.Identity {
	if id, ok := c.Get(identityKey).(service.Identity); ok {
		return id
	}
	return service.Identity{}
}

// SessionToken returns the raw session token presented by the caller.
func SessionToken(c echo.Context) string {
	s, _ := c.Get(sessionTokenKey).(string)
	return s
}

// UserID returns the resolved user id or "guest", for request logs.
func UserID(c echo.Context) string {
	if id := IdentityFrom(c); id.User != nil {
		return id.User.ID
	}
	return "guest"
}
