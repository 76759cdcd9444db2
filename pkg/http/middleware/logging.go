package middleware

import (
	"time"

	"FinScan/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs HTTP requests.
func RequestLogging(l *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			fields := []logger.Field{
				logger.String("method", req.Method),
				logger.String("uri", req.RequestURI),
				logger.String("remote", c.RealIP()),
				logger.Int("status", c.Response().Status),
				logger.Duration("latency_ms", time.Since(start)),
			}
			if err != nil {
				l.Warn("http request", append(fields, logger.Error(err))...)
				return nil
			}
			l.Debug("http request", fields...)
			return nil
		}
	}
}
