package httpx

import "github.com/labstack/echo/v4"

// Router is a chainable route group.
type Router struct {
	group *echo.Group
}

func NewRouter(e *Echo, prefix string, mw ...MiddlewareFunc) *Router {
	if e == nil || e.Echo == nil {
		return &Router{}
	}
	return &Router{group: e.Echo.Group(prefix, mw...)}
}

func (r *Router) GET(path string, h HandlerFunc, mw ...MiddlewareFunc) *Router {
	r.add(echo.GET, path, h, mw...)
	return r
}

func (r *Router) POST(path string, h HandlerFunc, mw ...MiddlewareFunc) *Router {
	r.add(echo.POST, path, h, mw...)
	return r
}

func (r *Router) PUT(path string, h HandlerFunc, mw ...MiddlewareFunc) *Router {
	r.add(echo.PUT, path, h, mw...)
	return r
}

func (r *Router) DELETE(path string, h HandlerFunc, mw ...MiddlewareFunc) *Router {
	r.add(echo.DELETE, path, h, mw...)
	return r
}

func (r *Router) add(method, path string, h HandlerFunc, mw ...MiddlewareFunc) {
	if r.group == nil || h == nil || path == "" {
		return
	}
	r.group.Add(method, path, h, mw...)
}
