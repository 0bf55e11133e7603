package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automlhq/auth-service/internal/auth"
	"github.com/automlhq/auth-service/internal/model"
	"github.com/automlhq/auth-service/internal/repository"
	"github.com/automlhq/auth-service/internal/store"
	"github.com/automlhq/auth-service/internal/utils"
)

// fakeValidator accepts exactly one token string and returns a canned
// user, or a canned error.
type fakeValidator struct {
	token  string
	user   model.User
	claims utils.AccessClaims
	err    error
}

func (f *fakeValidator) ValidateAccessToken(_ context.Context, raw string) (model.User, utils.AccessClaims, error) {
	if f.err != nil {
		return model.User{}, utils.AccessClaims{}, f.err
	}
	if raw != f.token {
		return model.User{}, utils.AccessClaims{}, auth.ErrInvalidCredentials
	}
	return f.user, f.claims, nil
}

func authedRequest(token string) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func TestJWTAuthBindsActingIdentity(t *testing.T) {
	userID := uuid.New()
	v := &fakeValidator{
		token:  "good-token",
		user:   model.User{ID: userID, Email: "ada@example.com", IsActive: true},
		claims: utils.AccessClaims{UserID: userID, JTI: "jti-1"},
	}

	e := echo.New()
	var seenActor uuid.UUID
	var seenOK bool
	handler := JWTAuth(v)(func(c echo.Context) error {
		seenActor, seenOK = store.ActorFrom(c.Request().Context())
		u, ok := CurrentUser(c)
		require.True(t, ok)
		assert.Equal(t, "ada@example.com", u.Email)
		assert.Equal(t, "jti-1", c.Get(CtxJTI))
		return c.NoContent(http.StatusOK)
	})

	req, rec := authedRequest("good-token")
	require.NoError(t, handler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, seenOK)
	assert.Equal(t, userID, seenActor)
}

func TestJWTAuthMissingHeader(t *testing.T) {
	e := echo.New()
	handler := JWTAuth(&fakeValidator{token: "good-token"})(func(c echo.Context) error {
		t.Fatal("handler must not run")
		return nil
	})

	req, rec := authedRequest("")
	require.NoError(t, handler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthRejectionMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"invalid token", auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid token"},
		{"session revoked", repository.ErrSessionRevoked, http.StatusUnauthorized, "session revoked"},
		{"session expired", repository.ErrSessionExpired, http.StatusUnauthorized, "session expired"},
		{"session not found", repository.ErrSessionNotFound, http.StatusUnauthorized, "invalid token"},
		{"account inactive", auth.ErrAccountInactive, http.StatusForbidden, "account inactive"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			handler := JWTAuth(&fakeValidator{err: tc.err})(func(c echo.Context) error {
				t.Fatal("handler must not run")
				return nil
			})

			req, rec := authedRequest("whatever")
			require.NoError(t, handler(e.NewContext(req, rec)))
			assert.Equal(t, tc.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.wantMsg)
		})
	}
}
