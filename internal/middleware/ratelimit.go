package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/automlhq/auth-service/internal/metrics"
	"github.com/automlhq/auth-service/internal/queue"
	"github.com/automlhq/auth-service/internal/ratelimit"
)

// QuotaChecker is the admission contract the gate consumes. Implemented
// by *ratelimit.Limiter.
type QuotaChecker interface {
	CheckAndIncrement(ctx context.Context, tool string, now time.Time) (ratelimit.Decision, error)
}

// EventSink publishes security events. May be nil.
type EventSink interface {
	Publish(ctx context.Context, ev queue.SecurityEvent) error
}

// QuotaGate admits or rejects requests against the acting user's quota
// for the tool named by the :tool route parameter. It must run behind
// JWTAuth — the limiter's storage operations are owner-scoped and fail
// with Unauthorized otherwise. Denials respond 429 with Retry-After and
// consume nothing.
func QuotaGate(limiter QuotaChecker, events EventSink, log *zap.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tool := c.Param("tool")
			if tool == "" {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "tool name required"})
			}
			ctx := c.Request().Context()

			dec, err := limiter.CheckAndIncrement(ctx, tool, time.Now().UTC())
			if err != nil {
				log.Error("quota check failed", zap.String("tool", tool), zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "quota check failed"})
			}

			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(dec.Limit))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.Itoa(dec.Remaining))

			if !dec.Allowed {
				secs := int(math.Ceil(dec.RetryAfter.Seconds()))
				if secs < 0 {
					secs = 0
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				metrics.RateLimitDeniedCounter.WithLabelValues(tool).Inc()
				if events != nil {
					if u, ok := CurrentUser(c); ok {
						_ = events.Publish(ctx, queue.SecurityEvent{
							Kind:       queue.EventRateLimitDenied,
							UserID:     u.ID.String(),
							Tool:       tool,
							IPAddress:  c.RealIP(),
							OccurredAt: time.Now().UTC().Format(time.RFC3339),
						})
					}
				}
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too_many_requests",
					"message":     "rate limit exceeded",
					"retry_after": secs,
				})
			}
			return next(c)
		}
	}
}
