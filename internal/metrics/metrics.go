// Package metrics declares the service's Prometheus collectors and the
// Echo plumbing that records and exposes them.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LoginCounter counts login attempts that reached the service,
	// successful or not.
	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_login_total",
			Help: "Total number of login attempts",
		},
	)

	// RegisterCounter counts user registrations.
	RegisterCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_register_total",
			Help: "Total number of user registrations",
		},
	)

	// AuthErrorCounter counts failures by taxonomy name
	// ("invalid_credentials", "token_revoked", "session_expired", ...).
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_errors_total",
			Help: "Total number of authentication errors by type",
		},
		[]string{"type"},
	)

	// RateLimitDeniedCounter counts quota denials per tool.
	RateLimitDeniedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_ratelimit_denied_total",
			Help: "Total number of rate-limited requests by tool",
		},
		[]string{"tool"},
	)

	// RequestDuration observes HTTP request latency.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auth_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)
)

// Register registers all collectors with the default registry. Call once
// at startup.
func Register() {
	prometheus.MustRegister(
		LoginCounter,
		RegisterCounter,
		AuthErrorCounter,
		RateLimitDeniedCounter,
		RequestDuration,
	)
}

// Handler exposes the default registry for the GET /metrics route.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

// Middleware records request duration labeled by route, method and
// status.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			RequestDuration.WithLabelValues(
				c.Path(),
				c.Request().Method,
				strconv.Itoa(c.Response().Status),
			).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
