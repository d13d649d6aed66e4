package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/benefits-cafeteria/internal/handler"
	"github.com/iliyamo/benefits-cafeteria/internal/middleware"
	"github.com/iliyamo/benefits-cafeteria/internal/model"
)

// Guard builds the middleware chains for protected routes.  Every
// protected route validates the bearer token and then loads the caller so
// deactivated users and role changes take effect immediately.
type Guard struct {
	Secret string
	Users  middleware.UserGetter
}

// User admits any active user.
func (g Guard) User() []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{middleware.JWTAuth(g.Secret), middleware.LoadUser(g.Users)}
}

// Admin admits active administrators only.
func (g Guard) Admin() []echo.MiddlewareFunc {
	return append(g.User(), middleware.RequireRole(model.RoleAdmin))
}

// RegisterRoutes registers the probes and the metrics endpoint.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/ping", handler.Ping)
	e.GET("/metrics", handler.Metrics())
}

// RegisterAuth registers the login link flow and the caller's profile.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, guard Guard) {
	g := e.Group("/users")
	g.POST("/login", a.Login)
	g.GET("/authorize/:token", a.Authorize)
	g.GET("/me", a.Me, guard.User()...)
}

// RegisterAdminUsers registers account management under /admin/users.
func RegisterAdminUsers(e *echo.Echo, h *handler.UserHandler, guard Guard) {
	g := e.Group("/admin/users", guard.Admin()...)
	g.GET("", h.List)
	g.POST("/add", h.Add)
	g.GET("/:uuid", h.Get)
	g.PUT("/:uuid", h.Update)
	g.DELETE("/:uuid", h.Deactivate)
}
