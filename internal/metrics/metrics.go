package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Skotchmaster/elearning/internal/apperr"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	authEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elearning_auth_events_total",
			Help: "Auth events by kind: registration, activation, login, login_failed, refresh, logout, password_reset",
		},
		[]string{"event"},
	)

	ordersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "elearning_orders_total",
			Help: "Total number of created orders",
		},
	)

	notificationsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "elearning_notifications_purged_total",
			Help: "Read notifications removed by housekeeping",
		},
	)

	dependencyHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dependency_health",
			Help: "Health status of dependencies (1 = healthy, 0 = unhealthy)",
		},
		[]string{"dependency"},
	)
)

const (
	EventRegistration  = "registration"
	EventActivation    = "activation"
	EventLogin         = "login"
	EventLoginFailed   = "login_failed"
	EventRefresh       = "refresh"
	EventLogout        = "logout"
	EventPasswordReset = "password_reset"
	EventResetLocked   = "reset_locked"
)

func RecordHTTPRequest(method, endpoint string, status int, d time.Duration) {
	s := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, endpoint, s).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, s).Observe(d.Seconds())
}

func RecordAuthEvent(event string) {
	authEventsTotal.WithLabelValues(event).Inc()
}

func RecordOrder() {
	ordersTotal.Inc()
}

func RecordNotificationsPurged(n int64) {
	if n > 0 {
		notificationsPurged.Add(float64(n))
	}
}

func SetDependencyHealth(dependency string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	dependencyHealth.WithLabelValues(dependency).Set(v)
}

// Middleware records every request under its route pattern, so path
// parameters do not explode label cardinality.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else if !c.Response().Committed {
					status = apperr.StatusOf(err)
				}
			}
			endpoint := c.Path()
			if endpoint == "" {
				endpoint = "unmatched"
			}
			RecordHTTPRequest(c.Request().Method, endpoint, status, time.Since(start))
			return err
		}
	}
}

func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
