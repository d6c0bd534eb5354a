package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Validator runs before route handlers; return an error to stop the pipeline.
type Validator func(Context) error

type RouteRegistrar func(*Echo)

// Server owns an Echo instance and its http.Server lifecycle.
type Server struct {
	echo     *Echo
	address  string
	shutdown time.Duration
}

func NewServer(opts ...ServerOption) *Server {
	cfg := defaultServerOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	e := NewEcho()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = jsonErrorHandler
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout
	e.Use(cfg.Middlewares...)
	if cfg.Logger != nil {
		e.Use(SlogMiddleware(cfg.Logger))
	}
	if len(cfg.Validators) > 0 {
		e.Use(validate(cfg.Validators))
	}

	return &Server{echo: e, address: cfg.Address, shutdown: cfg.ShutdownTimeout}
}

func (s *Server) RegisterRoutes(reg RouteRegistrar) {
	if reg != nil {
		reg(s.echo)
	}
}

// Address reports the configured listen address.
func (s *Server) Address() string { return s.address }

func (s *Server) Handler() http.Handler { return s.echo.Echo }

// Start serves until ctx ends or the listener fails. A cancelled context
// drains in-flight requests for up to the shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.address,
		Handler:      s.echo.Echo,
		ReadTimeout:  s.echo.Server.ReadTimeout,
		WriteTimeout: s.echo.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("httpx: shutdown: %w", err)
	}
	return ctx.Err()
}

// jsonErrorHandler renders every error as {"error": "..."}.
func jsonErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, msg := StatusInternalError, http.StatusText(StatusInternalError)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		switch m := he.Message.(type) {
		case string:
			msg = m
		case error:
			msg = m.Error()
		case nil:
			msg = http.StatusText(code)
		default:
			msg = fmt.Sprint(m)
		}
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, map[string]string{"error": msg})
}

func validate(validators []Validator) MiddlewareFunc {
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			for _, v := range validators {
				if v == nil {
					continue
				}
				if err := v(c); err != nil {
					return err
				}
			}
			return next(c)
		}
	}
}
