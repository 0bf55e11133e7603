// Package router wires handlers and middleware onto the Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/automlhq/auth-service/internal/handler"
	"github.com/automlhq/auth-service/internal/metrics"
	"github.com/automlhq/auth-service/internal/middleware"
)

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", metrics.Handler())
}

// RegisterAuth registers the credential endpoints and the protected
// group. Register, login, refresh and logout run without an identity —
// they are the entry points that establish one. Everything under the
// protected group runs behind JWTAuth, which binds the acting user for
// the storage layer.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, v middleware.TokenValidator) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(v))
	auth.GET("/me", a.Me)
	auth.PATCH("/me/deactivate", a.Deactivate)
	auth.DELETE("/me", a.Delete)
	auth.POST("/auth/logout-all", a.LogoutAll)
}

// RegisterTools registers the quota-gated tool dispatch route. The gate
// consumes one unit of the acting user's per-tool quota before the
// request reaches the dispatch handler.
func RegisterTools(e *echo.Echo, a *handler.AuthHandler, v middleware.TokenValidator,
	limiter middleware.QuotaChecker, events middleware.EventSink, log *zap.Logger) {
	tools := e.Group("/v1/tools")
	tools.Use(middleware.JWTAuth(v))
	tools.Use(middleware.QuotaGate(limiter, events, log))
	tools.POST("/:tool/invoke", a.InvokeTool)
}
