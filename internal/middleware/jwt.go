// Package middleware contains the Echo middleware that binds requests to
// the auth and quota layers: bearer-token validation (which establishes
// the acting identity for everything downstream) and the per-tool quota
// gate.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/automlhq/auth-service/internal/auth"
	"github.com/automlhq/auth-service/internal/metrics"
	"github.com/automlhq/auth-service/internal/model"
	"github.com/automlhq/auth-service/internal/repository"
	"github.com/automlhq/auth-service/internal/store"
	"github.com/automlhq/auth-service/internal/utils"
)

// Context keys set for handlers running behind JWTAuth.
const (
	CtxUser = "user" // model.User
	CtxJTI  = "jti"  // access token jti (string)
)

// TokenValidator resolves a presented bearer token to its user and
// claims. Implemented by *auth.Service.
type TokenValidator interface {
	ValidateAccessToken(ctx context.Context, rawToken string) (model.User, utils.AccessClaims, error)
}

// JWTAuth validates the Authorization bearer token, binds the resolved
// user as the acting identity on the request context, and stashes the
// user for handlers. Every storage operation behind this middleware is
// scoped to that identity by the store layer; the middleware is the only
// place the binding happens.
func JWTAuth(v TokenValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(authHeader, "Bearer ")

			u, claims, err := v.ValidateAccessToken(c.Request().Context(), raw)
			if err != nil {
				return rejectToken(c, err)
			}

			req := c.Request()
			c.SetRequest(req.WithContext(store.WithActor(req.Context(), u.ID)))
			c.Set(CtxUser, u)
			c.Set(CtxJTI, claims.JTI)
			return next(c)
		}
	}
}

// rejectToken maps a validation failure to its outward signal. Each
// taxonomy case keeps a distinct message so clients can tell
// "re-authenticate" from "session was revoked" from "account disabled".
func rejectToken(c echo.Context, err error) error {
	switch {
	case errors.Is(err, auth.ErrAccountInactive):
		metrics.AuthErrorCounter.WithLabelValues("account_inactive").Inc()
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account inactive"})
	case errors.Is(err, repository.ErrSessionRevoked):
		metrics.AuthErrorCounter.WithLabelValues("session_revoked").Inc()
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session revoked"})
	case errors.Is(err, repository.ErrSessionExpired):
		metrics.AuthErrorCounter.WithLabelValues("session_expired").Inc()
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session expired"})
	case errors.Is(err, repository.ErrSessionNotFound):
		metrics.AuthErrorCounter.WithLabelValues("session_not_found").Inc()
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
	default:
		metrics.AuthErrorCounter.WithLabelValues("invalid_token").Inc()
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
	}
}

// CurrentUser returns the user bound by JWTAuth. The second return is
// false on routes that forgot the middleware.
func CurrentUser(c echo.Context) (model.User, bool) {
	u, ok := c.Get(CtxUser).(model.User)
	return u, ok
}
