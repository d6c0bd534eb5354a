package httpx

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Aliases keep handler packages on httpx imports only.
type (
	Context        = echo.Context
	HandlerFunc    = echo.HandlerFunc
	MiddlewareFunc = echo.MiddlewareFunc
)

// Echo wraps the underlying instance so fakes and servers share one type.
type Echo struct{ *echo.Echo }

func NewEcho() *Echo { return &Echo{echo.New()} }

func (e *Echo) GET(path string, h HandlerFunc, mw ...MiddlewareFunc) {
	e.Echo.GET(path, h, mw...)
}

func (e *Echo) POST(path string, h HandlerFunc, mw ...MiddlewareFunc) {
	e.Echo.POST(path, h, mw...)
}

func (e *Echo) PUT(path string, h HandlerFunc, mw ...MiddlewareFunc) {
	e.Echo.PUT(path, h, mw...)
}

func (e *Echo) DELETE(path string, h HandlerFunc, mw ...MiddlewareFunc) {
	e.Echo.DELETE(path, h, mw...)
}

func RecoverMiddleware() MiddlewareFunc { return middleware.Recover() }

// RequestIDMiddleware propagates or generates X-Request-ID.
func RequestIDMiddleware() MiddlewareFunc { return middleware.RequestID() }

// SlogMiddleware logs one line per request. Failed requests log at warn.
func SlogMiddleware(logger *slog.Logger) MiddlewareFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				logger.Warn("http request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			logger.Info("http request", attrs...)
			return nil
		},
	})
}

// HTTPError builds an error the JSON error handler renders with code.
func HTTPError(code int, message any) error { return echo.NewHTTPError(code, message) }

// WrapHandler mounts a net/http handler, e.g. the metrics endpoint.
func WrapHandler(h http.Handler) HandlerFunc { return echo.WrapHandler(h) }
