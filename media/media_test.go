package media

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adeilh/go-trakt/catalog"
	"github.com/adeilh/go-trakt/httpx"
)

type fakeLister struct {
	lists map[string]catalog.List
	errs  map[string]error
	calls []string
}

func (f *fakeLister) List(_ context.Context, path string) (catalog.List, error) {
	f.calls = append(f.calls, path)
	if err := f.errs[path]; err != nil {
		return catalog.List{}, err
	}
	return f.lists[path], nil
}

func listOf(n int) catalog.List {
	l := catalog.List{}
	for i := 1; i <= n; i++ {
		l.Items = append(l.Items, catalog.Item{IDs: catalog.IDs{TMDB: int64(i)}})
	}
	return l
}

type fakeDetails struct {
	fail     map[string]bool
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
	mu       sync.Mutex
	seen     []string
}

func (f *fakeDetails) Details(ctx context.Context, id string, typ Type) (DetailRecord, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	f.mu.Lock()
	f.seen = append(f.seen, id)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return DetailRecord{}, ctx.Err()
		}
	}
	if f.fail[id] {
		return DetailRecord{}, errors.New("not found")
	}
	return DetailRecord{ID: id, Type: typ, Title: "title " + id}, nil
}

type recorder struct {
	mu      sync.Mutex
	counts  map[string]int
	listErr int
	lookups int
	failed  int
}

func (r *recorder) CuratedList(slug string, count int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	if err != nil {
		r.listErr++
		return
	}
	r.counts[slug] = count
}

func (r *recorder) DetailLookup(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	if err != nil {
		r.failed++
	}
}

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.Itoa(i + 1)
	}
	return out
}

func TestCuratedMovieListsTruncatesToThirty(t *testing.T) {
	lister := &fakeLister{lists: map[string]catalog.List{catalog.PathLatest: listOf(45)}}
	rec := &recorder{}
	a := NewAggregator(lister, nil,
		WithDescriptors([]Descriptor{{DisplayName: "Latest", Slug: "latest", EndpointPath: catalog.PathLatest}}),
		WithRecorder(rec),
	)

	lists, err := a.CuratedMovieLists(context.Background())
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.Equal(t, 30, lists[0].Count)
	assert.Equal(t, ids(30), lists[0].IDs)
	assert.Equal(t, "Latest", lists[0].DisplayName)
	assert.Equal(t, 30, rec.counts["latest"])
}

func TestCuratedMovieListsContinuesPastFailures(t *testing.T) {
	lister := &fakeLister{
		lists: map[string]catalog.List{
			catalog.PathLatest:   listOf(3),
			catalog.PathPopular:  listOf(2),
			catalog.PathTrending: listOf(1),
		},
		errs: map[string]error{
			catalog.PathTrending: &catalog.UpstreamRequestError{Endpoint: catalog.PathTrending, StatusCode: 500, Status: "Internal Server Error"},
		},
	}
	rec := &recorder{}
	a := NewAggregator(lister, nil, WithDescriptors(CuratedLists[:3]), WithRecorder(rec))

	lists, err := a.CuratedMovieLists(context.Background())
	require.NoError(t, err)
	require.Len(t, lists, 2)
	assert.Equal(t, "latest", lists[0].Slug)
	assert.Equal(t, "popular", lists[1].Slug)
	assert.Equal(t, []string{catalog.PathLatest, catalog.PathTrending, catalog.PathPopular}, lister.calls)
	assert.Equal(t, 1, rec.listErr)
}

func TestCuratedMovieListsStopsWhenDisabled(t *testing.T) {
	lister := &fakeLister{errs: map[string]error{
		catalog.PathLatest: &catalog.FeatureDisabledError{Endpoint: catalog.PathLatest},
	}}
	a := NewAggregator(lister, nil)

	_, err := a.CuratedMovieLists(context.Background())
	assert.ErrorIs(t, err, catalog.ErrFeatureDisabled)
	assert.Len(t, lister.calls, 1)
}

func TestDefaultCuratedListsAreProviderAware(t *testing.T) {
	require.Len(t, CuratedLists, 10)
	seen := map[string]bool{}
	for _, d := range CuratedLists {
		assert.NotEmpty(t, d.DisplayName)
		assert.False(t, seen[d.Slug], "duplicate slug %s", d.Slug)
		seen[d.Slug] = true
	}
	assert.Equal(t, "/provider/netflix", CuratedLists[4].EndpointPath)
}

func TestMovieDetailsForIDsSkipsFailures(t *testing.T) {
	input := ids(12)
	details := &fakeDetails{fail: map[string]bool{input[2]: true, input[8]: true}}
	rec := &recorder{}
	a := NewAggregator(nil, details, WithRecorder(rec))

	got, err := a.MovieDetailsForIDs(context.Background(), input, 0)
	require.NoError(t, err)
	require.Len(t, got, 10)

	var gotIDs []string
	for _, r := range got {
		gotIDs = append(gotIDs, r.ID)
		assert.Equal(t, Movie, r.Type)
	}
	assert.Equal(t, []string{"1", "2", "4", "5", "6", "7", "8", "10", "11", "12"}, gotIDs)
	assert.Equal(t, 12, rec.lookups)
	assert.Equal(t, 2, rec.failed)
}

func TestMovieDetailsForIDsHonoursLimit(t *testing.T) {
	details := &fakeDetails{}
	a := NewAggregator(nil, details)

	got, err := a.MovieDetailsForIDs(context.Background(), ids(80), 0)
	require.NoError(t, err)
	assert.Len(t, got, DefaultDetailLimit)
	assert.Equal(t, "50", got[49].ID)

	got, err = a.MovieDetailsForIDs(context.Background(), ids(80), 15)
	require.NoError(t, err)
	assert.Len(t, got, 15)
}

func TestDetailsForIDsRunsBatchesConcurrently(t *testing.T) {
	details := &fakeDetails{delay: 20 * time.Millisecond}
	a := NewAggregator(nil, details)

	got, err := a.DetailsForIDs(context.Background(), ids(30), TV, 0)
	require.NoError(t, err)
	assert.Len(t, got, 30)
	assert.Greater(t, details.peak.Load(), int32(DefaultBatchSize), "batches overlap")
}

func TestDetailsForIDsMaxInFlight(t *testing.T) {
	details := &fakeDetails{delay: 5 * time.Millisecond}
	a := NewAggregator(nil, details, WithMaxInFlight(3))

	got, err := a.DetailsForIDs(context.Background(), ids(20), Movie, 0)
	require.NoError(t, err)
	assert.Len(t, got, 20)
	assert.LessOrEqual(t, details.peak.Load(), int32(3))
}

func TestDetailsForIDsCancelled(t *testing.T) {
	details := &fakeDetails{delay: time.Second}
	a := NewAggregator(nil, details)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := a.DetailsForIDs(ctx, ids(5), Movie, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPartition(t *testing.T) {
	assert.Nil(t, partition(nil, 10))
	parts := partition(ids(25), 10)
	require.Len(t, parts, 3)
	assert.Len(t, parts[0], 10)
	assert.Len(t, parts[2], 5)
}

func TestHTTPDetailService(t *testing.T) {
	ts := httpx.NewEchoTestServer(t, func(e *httpx.Echo) {
		e.GET("/movie/:id", func(c httpx.Context) error {
			if c.QueryParam("api_key") != "k" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"status_message": "bad key"})
			}
			if c.Param("id") == "404" {
				return c.NoContent(http.StatusNotFound)
			}
			return c.JSON(http.StatusOK, map[string]any{
				"id": 603, "title": "The Matrix", "release_date": "1999-03-30", "runtime": 136,
				"genres": []map[string]any{{"id": 28, "name": "Action"}},
			})
		})
		e.GET("/tv/:id", func(c httpx.Context) error {
			return c.JSON(http.StatusOK, map[string]any{
				"id": 1396, "name": "Breaking Bad", "first_air_date": "2008-01-20", "episode_run_time": []int{45},
			})
		})
	})
	svc := NewHTTPDetailService(ts.APIClient(), "k")
	ctx := context.Background()

	movie, err := svc.Details(ctx, "603", Movie)
	require.NoError(t, err)
	assert.Equal(t, DetailRecord{
		ID: "603", Type: Movie, Title: "The Matrix", ReleaseDate: "1999-03-30", Runtime: 136, Genres: []string{"Action"},
	}, movie)

	show, err := svc.Details(ctx, "1396", TV)
	require.NoError(t, err)
	assert.Equal(t, "Breaking Bad", show.Title)
	assert.Equal(t, "2008-01-20", show.ReleaseDate)
	assert.Equal(t, 45, show.Runtime)

	_, err = svc.Details(ctx, "404", Movie)
	se, ok := httpx.AsStatusError(err)
	require.True(t, ok, fmt.Sprint(err))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)

	_, err = svc.Details(ctx, "1", Type("book"))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}
