package server

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adeilh/go-trakt/auth"
	"github.com/adeilh/go-trakt/catalog"
	"github.com/adeilh/go-trakt/httpx"
	"github.com/adeilh/go-trakt/media"
	"github.com/adeilh/go-trakt/reorder"
)

type healthResponse struct {
	Status       string `json:"status"`
	TraktEnabled bool   `json:"trakt_enabled"`
	Auth         string `json:"auth"`
}

type authResponse struct {
	State         string     `json:"state"`
	Authenticated bool       `json:"authenticated"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

type orderRequest struct {
	IDs   []string `json:"ids"`
	Moves []struct {
		From int `json:"from"`
		To   int `json:"to"`
	} `json:"moves"`
}

type orderResponse struct {
	Group string   `json:"group"`
	IDs   []string `json:"ids"`
}

func (s *Server) health(c httpx.Context) error {
	return c.JSON(httpx.StatusOK, healthResponse{
		Status:       "ok",
		TraktEnabled: s.opts.Gateway.Enabled(),
		Auth:         s.opts.Tokens.State().String(),
	})
}

func (s *Server) curatedLists(c httpx.Context) error {
	ctx := c.Request().Context()
	lists, err := s.opts.Aggregator.CuratedMovieLists(ctx)
	if err != nil {
		return s.fail(c, err)
	}
	if s.opts.Orders != nil {
		for i := range lists {
			order, err := s.opts.Orders.Load(ctx, lists[i].Slug)
			if err != nil {
				s.logger.Warn("loading saved order failed", "slug", lists[i].Slug, "error", err)
				continue
			}
			lists[i].IDs = reorder.Apply(lists[i].IDs, order)
		}
	}
	return c.JSON(httpx.StatusOK, lists)
}

func (s *Server) details(c httpx.Context) error {
	ids := splitIDs(c.QueryParam("ids"))
	if len(ids) == 0 {
		return httpx.HTTPError(httpx.StatusBadRequest, "ids is required")
	}
	typ := media.Movie
	if t := c.QueryParam("type"); t != "" {
		typ = media.Type(t)
		if typ != media.Movie && typ != media.TV {
			return httpx.HTTPError(httpx.StatusBadRequest, fmt.Sprintf("type %q must be movie or tv", t))
		}
	}
	limit := 0
	if l := c.QueryParam("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			return httpx.HTTPError(httpx.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}

	recs, err := s.opts.Aggregator.DetailsForIDs(c.Request().Context(), ids, typ, limit)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(httpx.StatusOK, recs)
}

func (s *Server) passthrough(c httpx.Context) error {
	path := "/" + c.Param("*")
	body, err := s.opts.Gateway.Fetch(c.Request().Context(), path, c.QueryParams())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSONBlob(httpx.StatusOK, body)
}

func (s *Server) clearCache(c httpx.Context) error {
	s.opts.Gateway.ClearCache()
	return c.NoContent(httpx.StatusNoContent)
}

func (s *Server) authStatus(c httpx.Context) error {
	ok := s.opts.Tokens.IsAuthenticated(c.Request().Context())
	return c.JSON(httpx.StatusOK, s.authView(ok))
}

func (s *Server) login(c httpx.Context) error {
	if _, err := s.opts.Tokens.Authenticate(c.Request().Context()); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(httpx.StatusOK, s.authView(true))
}

func (s *Server) logout(c httpx.Context) error {
	s.opts.Tokens.Logout(c.Request().Context())
	return c.NoContent(httpx.StatusNoContent)
}

func (s *Server) authView(authenticated bool) authResponse {
	resp := authResponse{State: s.opts.Tokens.State().String(), Authenticated: authenticated}
	if tok, ok := s.opts.Tokens.Current(); ok {
		exp := tok.ExpiresAt
		resp.ExpiresAt = &exp
	}
	return resp
}

func (s *Server) getOrder(c httpx.Context) error {
	group := c.Param("group")
	ids, err := s.opts.Orders.Load(c.Request().Context(), group)
	if err != nil {
		return s.fail(c, err)
	}
	if ids == nil {
		ids = []string{}
	}
	return c.JSON(httpx.StatusOK, orderResponse{Group: group, IDs: ids})
}

// putOrder replays moves against ids (arranged by any saved order) in one
// edit session and commits the result.
func (s *Server) putOrder(c httpx.Context) error {
	ctx := c.Request().Context()
	group := c.Param("group")
	var req orderRequest
	if err := c.Bind(&req); err != nil {
		return httpx.HTTPError(httpx.StatusBadRequest, "invalid body")
	}
	saved, err := s.opts.Orders.Load(ctx, group)
	if err != nil {
		return s.fail(c, err)
	}

	session := reorder.NewSession(s.opts.Orders,
		reorder.WithResetDelay(s.opts.ResetDelay),
		reorder.WithLogger(s.logger),
		reorder.WithResetFunc(func() { s.logger.Debug("order session reset", "group", group) }),
	)
	if err := session.Begin(map[string][]string{group: reorder.Apply(req.IDs, saved)}); err != nil {
		return s.fail(c, err)
	}
	for _, m := range req.Moves {
		if err := session.Move(reorder.Position{Group: group, Index: m.From}, reorder.Position{Group: group, Index: m.To}); err != nil {
			session.Cancel()
			return s.fail(c, err)
		}
	}
	order, err := session.Order(group)
	if err != nil {
		return s.fail(c, err)
	}
	if err := session.End(ctx); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(httpx.StatusOK, orderResponse{Group: group, IDs: order})
}

func (s *Server) fail(c httpx.Context, err error) error {
	code := statusFor(err)
	if code >= httpx.StatusInternalError {
		s.logger.Error("request failed", "path", c.Path(), "status", code, "error", err)
	}
	return httpx.HTTPError(code, err.Error())
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	var (
		ae *auth.AuthenticationError
		ue *catalog.UpstreamRequestError
	)
	switch {
	case errors.Is(err, catalog.ErrFeatureDisabled):
		return httpx.StatusServiceUnavailable
	case errors.As(err, &ae), errors.As(err, &ue):
		return httpx.StatusBadGateway
	case errors.Is(err, catalog.ErrUnknownProvider),
		errors.Is(err, catalog.ErrMissingID),
		errors.Is(err, media.ErrUnsupportedType),
		errors.Is(err, reorder.ErrOutOfRange),
		errors.Is(err, reorder.ErrUnknownGroup):
		return httpx.StatusBadRequest
	case errors.Is(err, reorder.ErrSessionActive):
		return httpx.StatusConflict
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return httpx.StatusGatewayTimeout
	}
	if _, ok := httpx.AsStatusError(err); ok {
		return httpx.StatusBadGateway
	}
	return httpx.StatusInternalError
}

func splitIDs(raw string) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
