package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	applogger "TokenPulse/pkg/logger"
)

// RequestLogging logs every request at debug, slow ones at warn and 5xx at error.
func RequestLogging(log *applogger.Logger, slowThreshold time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			latency := time.Since(start)
			req := c.Request()
			fields := []applogger.Field{
				applogger.String("method", req.Method),
				applogger.String("route", routeLabel(c)),
				applogger.Int("status", c.Response().Status),
				applogger.Duration("duration_ms", latency),
				applogger.String("remote", c.RealIP()),
			}
			switch {
			case c.Response().Status >= 500:
				log.Error("http request failed", fields...)
			case slowThreshold > 0 && latency >= slowThreshold:
				log.Warn("http request slow", fields...)
			default:
				log.Debug("http request", fields...)
			}
			return nil
		}
	}
}
