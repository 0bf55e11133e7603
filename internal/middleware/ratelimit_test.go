package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automlhq/auth-service/internal/model"
	"github.com/automlhq/auth-service/internal/queue"
	"github.com/automlhq/auth-service/internal/ratelimit"
)

type fakeChecker struct {
	dec      ratelimit.Decision
	err      error
	lastTool string
}

func (f *fakeChecker) CheckAndIncrement(_ context.Context, tool string, _ time.Time) (ratelimit.Decision, error) {
	f.lastTool = tool
	return f.dec, f.err
}

type recordingSink struct {
	events []queue.SecurityEvent
}

func (r *recordingSink) Publish(_ context.Context, ev queue.SecurityEvent) error {
	r.events = append(r.events, ev)
	return nil
}

func toolContext(e *echo.Echo, tool string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/v1/tools/"+tool+"/invoke", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("tool")
	c.SetParamValues(tool)
	return c, rec
}

func TestQuotaGateAllows(t *testing.T) {
	checker := &fakeChecker{dec: ratelimit.Decision{Allowed: true, Limit: 3, Remaining: 2}}
	e := echo.New()
	ran := false
	handler := QuotaGate(checker, nil, nil)(func(c echo.Context) error {
		ran = true
		return c.NoContent(http.StatusAccepted)
	})

	c, rec := toolContext(e, "train")
	require.NoError(t, handler(c))
	assert.True(t, ran)
	assert.Equal(t, "train", checker.lastTool)
	assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestQuotaGateDenies(t *testing.T) {
	checker := &fakeChecker{dec: ratelimit.Decision{
		Allowed:    false,
		Limit:      3,
		Remaining:  0,
		RetryAfter: 42*time.Second + 300*time.Millisecond,
	}}
	e := echo.New()
	handler := QuotaGate(checker, nil, nil)(func(c echo.Context) error {
		t.Fatal("handler must not run on denial")
		return nil
	})

	c, rec := toolContext(e, "train")
	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	// Fractional waits round up so clients never retry early.
	assert.Equal(t, "43", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Contains(t, rec.Body.String(), "too_many_requests")
}

func TestQuotaGateDenialPublishesEvent(t *testing.T) {
	checker := &fakeChecker{dec: ratelimit.Decision{Allowed: false, Limit: 1, RetryAfter: time.Second}}
	sink := &recordingSink{}
	e := echo.New()
	handler := QuotaGate(checker, sink, nil)(func(c echo.Context) error { return nil })

	userID := uuid.New()
	c, _ := toolContext(e, "train")
	c.Set(CtxUser, model.User{ID: userID})
	require.NoError(t, handler(c))

	require.Len(t, sink.events, 1)
	assert.Equal(t, queue.EventRateLimitDenied, sink.events[0].Kind)
	assert.Equal(t, userID.String(), sink.events[0].UserID)
	assert.Equal(t, "train", sink.events[0].Tool)
}

func TestQuotaGateStoreError(t *testing.T) {
	checker := &fakeChecker{err: errors.New("connection refused")}
	e := echo.New()
	handler := QuotaGate(checker, nil, nil)(func(c echo.Context) error {
		t.Fatal("handler must not run on error")
		return nil
	})

	c, rec := toolContext(e, "train")
	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestQuotaGateMissingTool(t *testing.T) {
	checker := &fakeChecker{dec: ratelimit.Decision{Allowed: true}}
	e := echo.New()
	handler := QuotaGate(checker, nil, nil)(func(c echo.Context) error { return nil })

	req := httptest.NewRequest(http.MethodPost, "/v1/tools//invoke", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
