package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/benefits-cafeteria/internal/metrics"
)

const ctxLogger = "logger"

// RequestLogger logs HTTP request/response metadata and records the
// request counter and latency histogram.  Routes are labelled by their
// registered pattern, not the raw path.  Handlers reach log through
// Logger.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if log != nil {
				c.Set(ctxLogger, log)
			}
			err := next(c)
			if err != nil {
				// let echo write the error response so the status is final
				c.Error(err)
			}

			latency := time.Since(start)
			req := c.Request()
			status := c.Response().Status
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}

			metrics.HTTPRequestsTotal.WithLabelValues(req.Method, route, strconv.Itoa(status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(req.Method, route).Observe(latency.Seconds())

			if log != nil {
				log.Info("http request",
					zap.String("method", req.Method),
					zap.String("path", req.URL.Path),
					zap.Int("status", status),
					zap.String("client_ip", c.RealIP()),
					zap.Duration("latency", latency),
				)
			}
			return nil
		}
	}
}

// Logger returns the logger stored by RequestLogger, or a no-op logger
// outside of it.
func Logger(c echo.Context) *zap.Logger {
	if l, ok := c.Get(ctxLogger).(*zap.Logger); ok && l != nil {
		return l
	}
	return zap.NewNop()
}
