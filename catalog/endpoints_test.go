package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest(t *testing.T) {
	assert.Equal(t, Request{Path: "/latest"}, NewRequest("latest", nil))
	assert.Equal(t, Request{Path: "/latest"}, NewRequest(" /latest", url.Values{}))
	assert.Equal(t,
		Request{Path: "/release/7?episode=2&season=1"},
		NewRequest("/release/7", url.Values{"season": {"1"}, "episode": {"2"}}),
	)
}

func TestRequestEndpointLabel(t *testing.T) {
	assert.Equal(t, "latest", Request{Path: "/latest"}.Endpoint())
	assert.Equal(t, "network", Request{Path: "/network/213"}.Endpoint())
	assert.Equal(t, "release", Request{Path: "/release/7?season=1"}.Endpoint())
	assert.Equal(t, "root", Request{Path: "/"}.Endpoint())
}

func TestParseProvider(t *testing.T) {
	p, err := ParseProvider(" Netflix ")
	require.NoError(t, err)
	assert.Equal(t, Netflix, p)

	_, err = ParseProvider("blockbuster")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestParseListShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
		want []Item
	}{
		{
			name: "bare items",
			body: `[{"title":"Alien","year":1979,"ids":{"tmdb":348,"imdb":"tt0078748","trakt":1,"slug":"alien-1979"}}]`,
			want: []Item{{Type: "movie", Title: "Alien", Year: 1979, IDs: IDs{Trakt: 1, TMDB: 348, IMDB: "tt0078748", Slug: "alien-1979"}}},
		},
		{
			name: "wrapped items",
			body: `[{"watchers":3,"movie":{"title":"Heat","ids":{"tmdb":949}}},{"show":{"title":"Dark","ids":{"tmdb":70523}}}]`,
			want: []Item{
				{Type: "movie", Title: "Heat", IDs: IDs{TMDB: 949}},
				{Type: "show", Title: "Dark", IDs: IDs{TMDB: 70523}},
			},
		},
		{
			name: "results envelope with fallback id",
			body: `{"results":[{"name":"Severance","type":"show","tmdb_id":95396}]}`,
			want: []Item{{Type: "show", Title: "Severance", IDs: IDs{TMDB: 95396}}},
		},
		{
			name: "empty",
			body: `[]`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := ParseList("/x", json.RawMessage(tc.body))
			assert.Equal(t, tc.want, l.Items)
			assert.Equal(t, "/x", l.Path)
		})
	}
}

func TestTMDBIDsSkipsItemsWithoutOne(t *testing.T) {
	l := List{Items: []Item{{IDs: IDs{TMDB: 1}}, {IDs: IDs{Slug: "x"}}, {IDs: IDs{TMDB: 3}}}}
	assert.Equal(t, []string{"1", "3"}, l.TMDBIDs())
}

func TestEndpointsHitFixedPaths(t *testing.T) {
	f, client := newFakeUpstream(t)
	g, _ := newGateway(t, client)
	ctx := context.Background()

	_, err := g.Latest(ctx)
	require.NoError(t, err)
	_, err = g.Discover(ctx)
	require.NoError(t, err)
	_, err = g.Trending(ctx)
	require.NoError(t, err)
	_, err = g.Popular(ctx)
	require.NoError(t, err)
	_, err = g.Network(ctx, "49")
	require.NoError(t, err)
	_, err = g.Provider(ctx, "Hulu")
	require.NoError(t, err)
	_, err = g.List(ctx, "custom/list")
	require.NoError(t, err)

	_, calls, _ := f.snapshot()
	assert.Equal(t, map[string]int{
		"/latest": 1, "/discover": 1, "/trending": 1, "/popular": 1,
		"/network/49": 1, "/provider/hulu": 1, "/custom/list": 1,
	}, calls)
}

func TestEndpointsValidateInputWithoutNetwork(t *testing.T) {
	f, client := newFakeUpstream(t)
	g, _ := newGateway(t, client)
	ctx := context.Background()

	_, err := g.Provider(ctx, "blockbuster")
	assert.ErrorIs(t, err, ErrUnknownProvider)
	_, err = g.Network(ctx, " ")
	assert.ErrorIs(t, err, ErrMissingID)
	_, err = g.ReleaseDetails(ctx, "", 1, 1)
	assert.ErrorIs(t, err, ErrMissingID)

	authCalls, calls, _ := f.snapshot()
	assert.Zero(t, authCalls)
	assert.Empty(t, calls)
}

func TestReleaseDetailsCachesPerQuery(t *testing.T) {
	f, client := newFakeUpstream(t)
	f.respond = func(uri string, _ int) (int, any) {
		if uri == "/release/42" {
			return http.StatusOK, map[string]any{"title": "Lost", "type": "show", "ids": map[string]any{"tmdb": 4607}, "overview": "plane"}
		}
		return http.StatusOK, map[string]any{"title": "Pilot", "type": "episode", "season": 1, "episode": 1, "released": "2004-09-22"}
	}
	g, _ := newGateway(t, client)
	ctx := context.Background()

	show, err := g.ReleaseDetails(ctx, "42", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "Lost", show.Title)
	assert.Equal(t, int64(4607), show.IDs.TMDB)
	assert.Equal(t, "plane", show.Overview)

	ep, err := g.ReleaseDetails(ctx, "42", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "Pilot", ep.Title)
	assert.Equal(t, 1, ep.Season)
	assert.Equal(t, "2004-09-22", ep.Released)

	_, err = g.ReleaseDetails(ctx, "42", 1, 1)
	require.NoError(t, err)
	_, err = g.ReleaseDetails(ctx, "42", 1, 2)
	require.NoError(t, err)

	_, calls, _ := f.snapshot()
	assert.Equal(t, map[string]int{
		"/release/42":                    1,
		"/release/42?episode=1&season=1": 1,
		"/release/42?episode=2&season=1": 1,
	}, calls)
}
