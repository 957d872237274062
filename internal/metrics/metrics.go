// Package metrics holds the console's Prometheus collectors.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"usermgmt/console/internal/apiclient"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_http_requests_total",
		Help: "HTTP requests served, by route, method and status.",
	}, []string{"route", "method", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "console_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	gatewayCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_gateway_calls_total",
		Help: "Calls to the user-management API, by operation and outcome.",
	}, []string{"op", "outcome"})

	gatewayDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "console_gateway_call_duration_seconds",
		Help:    "Latency of calls to the user-management API.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	workspaces = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "console_workspaces",
		Help: "Browser workspaces currently held in memory.",
	})

	sweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_swept_total",
		Help: "Idle items removed by the background sweeper, by kind.",
	}, []string{"kind"})
)

// Middleware records every request under its route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpRequests.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

// ObserveGateway is an apiclient.Observer.
func ObserveGateway(op string, err error, elapsed time.Duration) {
	gatewayCalls.WithLabelValues(op, Outcome(err)).Inc()
	gatewayDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// Outcome classifies a gateway result for the outcome label.
func Outcome(err error) string {
	var failure *apiclient.RemoteCallFailure
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &failure) && failure.Status != 0:
		return "status_" + strconv.Itoa(failure.Status)
	default:
		return "error"
	}
}

func SetWorkspaces(n int) {
	workspaces.Set(float64(n))
}

func AddSwept(kind string, n int) {
	sweeps.WithLabelValues(kind).Add(float64(n))
}
