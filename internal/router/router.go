package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/meatshop-backoffice/internal/handler"
	"github.com/iliyamo/meatshop-backoffice/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication and
// sit outside /auth. Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth mounts the /auth endpoints. limiter guards every route in
// the group; authn attaches the caller's identity and is only needed on
// /auth/me, which also requires it.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, authn, limiter echo.MiddlewareFunc) {
	g := e.Group("/auth", limiter)

	// Credential operations: no session needed.
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/request-code", a.RequestCode)
	g.POST("/verify-code", a.VerifyCode)
	g.POST("/reset-password", a.ResetPassword)

	// Token lifecycle. The refresh token travels in a cookie or header, so
	// these work without a valid access token.
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	g.GET("/me", a.Me, authn, middleware.RequireAuth)
}

// RegisterUsers mounts the user-scoped routes. All of them require a valid
// access token; ownership is checked by the service.
func RegisterUsers(e *echo.Echo, u *handler.UsersHandler, authn echo.MiddlewareFunc) {
	g := e.Group("/users", authn, middleware.RequireAuth)
	g.POST("/:id/logo", u.UploadLogo)
}

// RegisterUploads serves locally stored avatars under /uploads. Only used
// with the disk backend.
func RegisterUploads(e *echo.Echo, dir string) {
	e.Static("/uploads", dir)
}
