package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/linkbio/internal/service"
)

// SessionCookie is the name of the cookie carrying the session token.
const SessionCookie = "session"

// tokenFrom reads the session cookie, falling back to a bearer token.
func tokenFrom(c echo.Context) string {
	if ck, err := c.Cookie(SessionCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	auth := c.Request().Header.Get("Authorization")
	if len(auth) > len("bearer ") && strings.EqualFold(auth[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(auth[len("bearer "):])
	}
	return ""
}

// LoadSession resolves the caller's session for every request and stores
// the identity in the context.  It never rejects a request; the guards in
// role.go do that.
func LoadSession(sessions *service.SessionManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tok := tokenFrom(c)
			c.Set(sessionTokenKey, tok)
			c.Set(identityKey, sessions.Resolve(c.Request().Context(), tok))
			return next(c)
		}
	}
}
