// Package middleware provides HTTP middleware shared by the hub's Hue and
// Alexa endpoints: request logging and a fixed-window rate-limit store.
// CORS, security headers, compression and the body limit come from echo's
// own middleware package, wired in internal/hub.
package middleware

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// NewRequestLogger creates a request logging middleware using Echo's
// RequestLoggerWithConfig, writing structured lines to log.
func NewRequestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return NewRequestLoggerWithSkipper(log, nil)
}

// NewRequestLoggerWithSkipper is NewRequestLogger with a custom skipper, used
// to keep SSDP/health-check noise out of the request log.
func NewRequestLoggerWithSkipper(log *slog.Logger, skipper middleware.Skipper) echo.MiddlewareFunc {
	if log == nil {
		log = slog.Default()
	}
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper:     skipper,
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				log.Warn("request",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"ip", v.RemoteIP,
					"latency_ms", v.Latency.Milliseconds(),
					"error", v.Error)
			} else {
				log.Info("request",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"ip", v.RemoteIP,
					"latency_ms", v.Latency.Milliseconds())
			}
			return nil
		},
	})
}
