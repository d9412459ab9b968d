package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_http_requests_total",
		Help: "Total number of HTTP requests handled",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// OrdersCreated counts successfully persisted orders.
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_created_total",
		Help: "Total number of orders created",
	})

	// OrdersCancelled counts customer-initiated cancellations.
	OrdersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_cancelled_total",
		Help: "Total number of orders cancelled",
	})

	// StockRejections counts order items rejected for insufficient stock.
	StockRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_stock_rejections_total",
		Help: "Total number of order items rejected for insufficient stock",
	})
)

// Metrics records request count and latency per route.
func Metrics(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		path := c.Path()
		if path == "" {
			path = c.Request().URL.Path
		}
		status := c.Response().Status
		if err != nil {
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
		}

		requestsTotal.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
		requestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
		return err
	}
}
