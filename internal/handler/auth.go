package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/automlhq/auth-service/internal/auth"
	"github.com/automlhq/auth-service/internal/metrics"
	"github.com/automlhq/auth-service/internal/middleware"
	"github.com/automlhq/auth-service/internal/model"
	"github.com/automlhq/auth-service/internal/queue"
	"github.com/automlhq/auth-service/internal/repository"
	"github.com/automlhq/auth-service/internal/utils"
)

// AuthService is the contract the handlers consume. Implemented by
// *auth.Service; faked in tests.
type AuthService interface {
	Register(ctx context.Context, email, password, name string, meta auth.ClientMeta) (model.User, auth.Tokens, error)
	Login(ctx context.Context, email, password string, meta auth.ClientMeta) (model.User, auth.Tokens, error)
	Refresh(ctx context.Context, rawSecret string, meta auth.ClientMeta) (model.User, auth.Tokens, error)
	Logout(ctx context.Context, rawSecret string) error
	LogoutAll(ctx context.Context) error
	Deactivate(ctx context.Context) error
	DeleteAccount(ctx context.Context) error
}

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
	Svc    AuthService
	Events middleware.EventSink // optional
	Log    *zap.Logger
}

func NewAuthHandler(svc AuthService, events middleware.EventSink, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{Svc: svc, Events: events, Log: log}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Verified bool   `json:"is_verified"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func toAuthResp(u model.User, t auth.Tokens) authResp {
	return authResp{
		User:    userPart{ID: u.ID.String(), Email: u.Email, Name: u.Name, Verified: u.IsVerified},
		Access:  tokenPart{Token: t.Access.Token, Expires: t.Access.Exp},
		Refresh: tokenPart{Token: t.Refresh.Raw, Expires: t.Refresh.Exp}, // raw goes back to the client once
	}
}

func clientMeta(c echo.Context) auth.ClientMeta {
	return auth.ClientMeta{
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}

// Register creates an account and returns the first credential pair.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, tokens, err := h.Svc.Register(ctx, req.Email, req.Password, strings.TrimSpace(req.Name), clientMeta(c))
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrPasswordPolicy):
			metrics.AuthErrorCounter.WithLabelValues("weak_password").Inc()
			// The wrapped message names the unmet requirement.
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		case errors.Is(err, repository.ErrDuplicateEmail):
			metrics.AuthErrorCounter.WithLabelValues("duplicate_email").Inc()
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		}
		h.Log.Error("register failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}
	metrics.RegisterCounter.Inc()
	h.publish(ctx, queue.EventUserRegistered, u.ID.String(), c)

	return c.JSON(http.StatusCreated, toAuthResp(u, tokens))
}

// Login verifies credentials and returns a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	metrics.LoginCounter.Inc()
	u, tokens, err := h.Svc.Login(ctx, req.Email, req.Password, clientMeta(c))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			metrics.AuthErrorCounter.WithLabelValues("invalid_credentials").Inc()
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		case errors.Is(err, auth.ErrAccountInactive):
			metrics.AuthErrorCounter.WithLabelValues("account_inactive").Inc()
			return c.JSON(http.StatusForbidden, echo.Map{"error": "account inactive"})
		}
		h.Log.Error("login failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}
	return c.JSON(http.StatusOK, toAuthResp(u, tokens))
}

// Refresh exchanges a refresh secret for a new pair, rotating the old
// token. Replay of a rotated secret is a distinct signal from an expired
// or unknown one.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, tokens, err := h.Svc.Refresh(ctx, strings.TrimSpace(req.RefreshToken), clientMeta(c))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTokenRevoked):
			metrics.AuthErrorCounter.WithLabelValues("token_revoked").Inc()
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "refresh token revoked"})
		case errors.Is(err, repository.ErrTokenExpired):
			metrics.AuthErrorCounter.WithLabelValues("token_expired").Inc()
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "refresh token expired"})
		case errors.Is(err, repository.ErrTokenNotFound):
			metrics.AuthErrorCounter.WithLabelValues("token_not_found").Inc()
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		case errors.Is(err, auth.ErrAccountInactive):
			metrics.AuthErrorCounter.WithLabelValues("account_inactive").Inc()
			return c.JSON(http.StatusForbidden, echo.Map{"error": "account inactive"})
		}
		h.Log.Error("refresh failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
	}
	return c.JSON(http.StatusOK, toAuthResp(u, tokens))
}

// Logout revokes the refresh token named in the body. No access token is
// required; possession of the secret identifies the session being ended.
// Revoking an already-dead token still returns 204.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Svc.Logout(ctx, strings.TrimSpace(req.RefreshToken)); err != nil {
		h.Log.Error("logout failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// LogoutAll revokes every live credential of the authenticated user.
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Svc.LogoutAll(ctx); err != nil {
		h.Log.Error("logout-all failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	if u, ok := middleware.CurrentUser(c); ok {
		h.publish(ctx, queue.EventSessionRevoked, u.ID.String(), c)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated user's public fields.
func (h *AuthHandler) Me(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, userPart{ID: u.ID.String(), Email: u.Email, Name: u.Name, Verified: u.IsVerified})
}

// Deactivate disables the authenticated user's account and revokes its
// credentials. The account stays on record; only delete removes it.
func (h *AuthHandler) Deactivate(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Svc.Deactivate(ctx); err != nil {
		h.Log.Error("deactivate failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "deactivate failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete removes the authenticated user's account and, by cascade, every
// token, session and rate-limit row it owns. Irreversible.
func (h *AuthHandler) Delete(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Svc.DeleteAccount(ctx); err != nil {
		h.Log.Error("delete account failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	h.publish(ctx, queue.EventUserDeleted, u.ID.String(), c)
	return c.NoContent(http.StatusNoContent)
}

// InvokeTool is the downstream dispatch point guarded by the quota gate.
// The gate has already admitted and counted the request by the time this
// runs; actual tool execution belongs to the orchestration layer, which
// consumes this service's contracts and is out of scope here.
func (h *AuthHandler) InvokeTool(c echo.Context) error {
	return c.JSON(http.StatusAccepted, echo.Map{
		"tool":   c.Param("tool"),
		"status": "accepted",
	})
}

func (h *AuthHandler) publish(ctx context.Context, kind, userID string, c echo.Context) {
	if h.Events == nil {
		return
	}
	_ = h.Events.Publish(ctx, queue.SecurityEvent{
		Kind:       kind,
		UserID:     userID,
		IPAddress:  c.RealIP(),
		UserAgent:  c.Request().UserAgent(),
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})
}
