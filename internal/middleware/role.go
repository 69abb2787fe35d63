package middleware // middleware provides shared request processing for handlers

import (
	"net/http" // http package defines standard HTTP status codes

	"github.com/labstack/echo/v4" // echo provides middleware chaining and context
)

// Guard errors.  They are echo.HTTPError values so the central error handler
// renders them like every other error.
var (
	ErrUnauthorized = echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	ErrNoClient     = echo.NewHTTPError(http.StatusForbidden, "No client associated with this account")
	ErrNotAdmin     = echo.NewHTTPError(http.StatusForbidden, "Forbidden")
)

// RequireAuthenticated rejects anonymous callers with 401 before the
// handler runs.
func RequireAuthenticated() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !IdentityFrom(c).Authenticated() {
				return ErrUnauthorized
			}
			return next(c)
		}
	}
}

// RequireClient admits users that own a client profile: 401 when anonymous,
// 403 when the account has no client.
func RequireClient() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := IdentityFrom(c)
			if !id.Authenticated() {
				return ErrUnauthorized
			}
			if id.Client == nil {
				return ErrNoClient
			}
			return next(c)
		}
	}
}

// RequireSuperAdmin admits only super admins: 401 when anonymous, 403 for
// any other role.
func RequireSuperAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := IdentityFrom(c)
			if !id.Authenticated() {
				return ErrUnauthorized
			}
			if !id.User.Role.IsSuperAdmin() {
				return ErrNotAdmin
			}
			return next(c)
		}
	}
}
