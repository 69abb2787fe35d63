package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/linkbio/internal/handler"
	"github.com/iliyamo/linkbio/internal/middleware"
	"github.com/iliyamo/linkbio/internal/ratelimit"
)

// RegisterAuth registers the /auth routes.  Credential-guessing endpoints
// are rate limited per client IP; resend-verification is limited per email
// inside the handler.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, l ratelimit.Limiter) {
	g := e.Group("/auth")

	g.POST("/sign-in", a.SignIn, middleware.RateLimit(l, ratelimit.SignIn))
	g.POST("/sign-out", a.SignOut)
	g.GET("/session", a.Session)

	g.POST("/register", a.Register, middleware.RateLimit(l, ratelimit.Register))
	g.GET("/verify-email", a.VerifyEmail)
	g.POST("/resend-verification", a.ResendVerification)

	g.POST("/forgot-password", a.ForgotPassword, middleware.RateLimit(l, ratelimit.ForgotPassword))
	g.POST("/reset-password", a.ResetPassword, middleware.RateLimit(l, ratelimit.ResetPassword))

	g.POST("/change-password", a.ChangePassword, middleware.RequireAuthenticated())
	g.DELETE("/account", a.DeleteAccount,
		middleware.RequireAuthenticated(),
		middleware.RateLimit(l, ratelimit.DeleteAccount))
}
