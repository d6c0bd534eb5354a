package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adeilh/go-trakt/auth"
	"github.com/adeilh/go-trakt/cache"
	"github.com/adeilh/go-trakt/catalog"
	"github.com/adeilh/go-trakt/httpx"
	"github.com/adeilh/go-trakt/media"
	"github.com/adeilh/go-trakt/reorder"
)

type fakeGateway struct {
	enabled bool
	err     error
	paths   []string
	query   url.Values
	cleared int
}

func (g *fakeGateway) Fetch(_ context.Context, path string, query url.Values) (json.RawMessage, error) {
	g.paths = append(g.paths, path)
	g.query = query
	if g.err != nil {
		return nil, g.err
	}
	return json.RawMessage(`[{"title":"Heat"}]`), nil
}

func (g *fakeGateway) Enabled() bool { return g.enabled }
func (g *fakeGateway) ClearCache()   { g.cleared++ }

type fakeTokens struct {
	tok     auth.Token
	err     error
	logouts int
}

func (f *fakeTokens) State() auth.State {
	if f.tok.Value != "" {
		return auth.StateAuthenticated
	}
	return auth.StateUnauthenticated
}

func (f *fakeTokens) Current() (auth.Token, bool) { return f.tok, f.tok.Value != "" }

func (f *fakeTokens) IsAuthenticated(context.Context) bool { return f.tok.Value != "" }

func (f *fakeTokens) Authenticate(context.Context) (auth.Token, error) {
	if f.err != nil {
		return auth.Token{}, f.err
	}
	f.tok = auth.Token{Value: "t", ExpiresAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}
	return f.tok, nil
}

func (f *fakeTokens) Logout(context.Context) {
	f.logouts++
	f.tok = auth.Token{}
}

type fakeAggregator struct {
	lists    []media.CuratedMovieList
	listsErr error
	gotIDs   []string
	gotType  media.Type
	gotLimit int
}

func (a *fakeAggregator) CuratedMovieLists(context.Context) ([]media.CuratedMovieList, error) {
	return a.lists, a.listsErr
}

func (a *fakeAggregator) DetailsForIDs(_ context.Context, ids []string, typ media.Type, limit int) ([]media.DetailRecord, error) {
	a.gotIDs, a.gotType, a.gotLimit = ids, typ, limit
	out := make([]media.DetailRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, media.DetailRecord{ID: id, Type: typ})
	}
	return out, nil
}

type fixture struct {
	gateway *fakeGateway
	tokens  *fakeTokens
	agg     *fakeAggregator
	orders  *reorder.StoreCommitter
	client  *httpx.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		gateway: &fakeGateway{enabled: true},
		tokens:  &fakeTokens{},
		agg:     &fakeAggregator{},
		orders:  reorder.NewStoreCommitter(cache.NewMemoryStore(), ""),
	}
	srv := New(Options{
		Gateway:    f.gateway,
		Tokens:     f.tokens,
		Aggregator: f.agg,
		Orders:     f.orders,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "trakt_up 1\n")
		}),
		ResetDelay: time.Millisecond,
	})
	ts := httpx.NewTestServer(t, srv.Handler())
	f.client = ts.APIClient()
	return f
}

type errorBody struct {
	Error string `json:"error"`
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	var body healthResponse
	_, err := f.client.Get(context.Background(), "/healthz", &body)
	require.NoError(t, err)
	assert.Equal(t, healthResponse{Status: "ok", TraktEnabled: true, Auth: "unauthenticated"}, body)
}

func TestMetricsMounted(t *testing.T) {
	f := newFixture(t)
	resp, err := f.client.Get(context.Background(), "/metrics", nil)
	require.NoError(t, err)
	assert.Contains(t, resp.String(), "trakt_up 1")
}

func TestPassthrough(t *testing.T) {
	f := newFixture(t)
	resp, err := f.client.Get(context.Background(), "/api/endpoints/release/42", nil,
		httpx.WithQuery(url.Values{"season": {"1"}}))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"title":"Heat"}]`, resp.String())
	assert.Equal(t, []string{"/release/42"}, f.gateway.paths)
	assert.Equal(t, "1", f.gateway.query.Get("season"))
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"disabled", &catalog.FeatureDisabledError{Endpoint: "/latest"}, http.StatusServiceUnavailable},
		{"auth", &auth.AuthenticationError{Op: "exchange", Message: "rejected"}, http.StatusBadGateway},
		{"upstream", &catalog.UpstreamRequestError{Endpoint: "/latest", StatusCode: 500, Status: "Internal Server Error"}, http.StatusBadGateway},
		{"bad input", catalog.ErrUnknownProvider, http.StatusBadRequest},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.gateway.err = tc.err
			var eb errorBody
			_, err := f.client.Get(context.Background(), "/api/endpoints/latest", nil, httpx.WithErrorResult(&eb))
			se, ok := httpx.AsStatusError(err)
			require.True(t, ok)
			assert.Equal(t, tc.want, se.StatusCode)
			assert.Equal(t, tc.err.Error(), eb.Error)
		})
	}
}

func TestCuratedListsApplySavedOrder(t *testing.T) {
	f := newFixture(t)
	f.agg.lists = []media.CuratedMovieList{
		{Descriptor: media.CuratedLists[0], IDs: []string{"1", "2", "3"}, Count: 3},
	}
	require.NoError(t, f.orders.Commit(context.Background(), "latest", []string{"3", "1"}))

	var lists []media.CuratedMovieList
	_, err := f.client.Get(context.Background(), "/api/lists", &lists)
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.Equal(t, []string{"3", "1", "2"}, lists[0].IDs)
	assert.Equal(t, "Latest Releases", lists[0].DisplayName)
}

func TestCuratedListsDisabled(t *testing.T) {
	f := newFixture(t)
	f.agg.listsErr = &catalog.FeatureDisabledError{Endpoint: "/latest"}

	_, err := f.client.Get(context.Background(), "/api/lists", nil)
	se, ok := httpx.AsStatusError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
}

func TestDetails(t *testing.T) {
	f := newFixture(t)
	var recs []media.DetailRecord
	_, err := f.client.Get(context.Background(), "/api/details", &recs,
		httpx.WithQuery(url.Values{"ids": {"603, 604,,605"}, "type": {"tv"}, "limit": {"2"}}))
	require.NoError(t, err)
	assert.Equal(t, []string{"603", "604", "605"}, f.agg.gotIDs)
	assert.Equal(t, media.TV, f.agg.gotType)
	assert.Equal(t, 2, f.agg.gotLimit)
	assert.Len(t, recs, 3)
}

func TestDetailsValidation(t *testing.T) {
	f := newFixture(t)
	for _, q := range []url.Values{
		{},
		{"ids": {"1"}, "type": {"book"}},
		{"ids": {"1"}, "limit": {"-1"}},
	} {
		_, err := f.client.Get(context.Background(), "/api/details", nil, httpx.WithQuery(q))
		se, ok := httpx.AsStatusError(err)
		require.True(t, ok, q)
		assert.Equal(t, http.StatusBadRequest, se.StatusCode, q)
	}
}

func TestAuthLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var status authResponse
	_, err := f.client.Get(ctx, "/api/auth", &status)
	require.NoError(t, err)
	assert.False(t, status.Authenticated)
	assert.Nil(t, status.ExpiresAt)

	_, err = f.client.Post(ctx, "/api/auth", nil, &status)
	require.NoError(t, err)
	assert.True(t, status.Authenticated)
	assert.Equal(t, "authenticated", status.State)
	require.NotNil(t, status.ExpiresAt)

	resp, err := f.client.Delete(ctx, "/api/auth", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode())
	assert.Equal(t, 1, f.tokens.logouts)
}

func TestLoginFailure(t *testing.T) {
	f := newFixture(t)
	f.tokens.err = &auth.AuthenticationError{Op: "challenge", Err: auth.ErrChallengeUnavailable}

	_, err := f.client.Post(context.Background(), "/api/auth", nil, nil)
	se, ok := httpx.AsStatusError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
}

func TestClearCache(t *testing.T) {
	f := newFixture(t)
	resp, err := f.client.Delete(context.Background(), "/api/cache", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode())
	assert.Equal(t, 1, f.gateway.cleared)
}

func TestOrderRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var got orderResponse
	_, err := f.client.Get(ctx, "/api/order/watchlist", &got)
	require.NoError(t, err)
	assert.Empty(t, got.IDs)

	body := map[string]any{"ids": []string{"a", "b", "c"}, "moves": []map[string]int{{"from": 0, "to": 2}}}
	_, err = f.client.Put(ctx, "/api/order/watchlist", body, &got)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, got.IDs)

	_, err = f.client.Get(ctx, "/api/order/watchlist", &got)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, got.IDs)

	body["moves"] = []map[string]int{{"from": 5, "to": 0}}
	_, err = f.client.Put(ctx, "/api/order/watchlist", body, nil)
	se, ok := httpx.AsStatusError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
}
