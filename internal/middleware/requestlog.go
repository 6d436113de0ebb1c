package middleware

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/meatshop-backoffice/internal/logging"
)

// RequestLogger emits one structured line per request. 5xx responses and
// handler errors log at error level.
func RequestLogger(log logging.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			args := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"remote_ip", v.RemoteIP,
			}
			if v.RequestID != "" {
				args = append(args, "request_id", v.RequestID)
			}
			if uid := userID(c); uid != "anon" {
				args = append(args, "user_id", uid)
			}
			ctx := c.Request().Context()
			if v.Error != nil || v.Status >= 500 {
				if v.Error != nil {
					args = append(args, "error", v.Error.Error())
				}
				log.Error(ctx, "request", args...)
				return nil
			}
			log.Info(ctx, "request", args...)
			return nil
		},
	})
}
