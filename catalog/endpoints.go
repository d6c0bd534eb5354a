package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Fixed upstream paths.
const (
	PathLatest   = "/latest"
	PathDiscover = "/discover"
	PathTrending = "/trending"
	PathPopular  = "/popular"
	PathNetwork  = "/network/"
	PathProvider = "/provider/"
	PathRelease  = "/release/"
)

// Provider names a streaming catalog.
type Provider string

const (
	Netflix   Provider = "netflix"
	Hulu      Provider = "hulu"
	Disney    Provider = "disney"
	Prime     Provider = "prime"
	Apple     Provider = "apple"
	Max       Provider = "max"
	Paramount Provider = "paramount"
)

// Providers lists every provider the service publishes a catalog for.
var Providers = []Provider{Netflix, Hulu, Disney, Prime, Apple, Max, Paramount}

var (
	ErrUnknownProvider = errors.New("catalog: unknown provider")
	ErrMissingID       = errors.New("catalog: id is required")
)

// ParseProvider validates a provider name.
func ParseProvider(name string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Providers {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, name)
}

// IDs are the cross-database identifiers of a title.
type IDs struct {
	Trakt int64  `json:"trakt,omitempty"`
	TMDB  int64  `json:"tmdb,omitempty"`
	IMDB  string `json:"imdb,omitempty"`
	Slug  string `json:"slug,omitempty"`
}

// Item is one entry of a list payload.
type Item struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Year  int    `json:"year,omitempty"`
	IDs   IDs    `json:"ids"`
}

// List is a decoded list response.
type List struct {
	Path  string          `json:"path"`
	Items []Item          `json:"items"`
	Raw   json.RawMessage `json:"-"`
}

// TMDBIDs returns the TMDB id of every item that has one, in list order.
func (l List) TMDBIDs() []string {
	ids := make([]string, 0, len(l.Items))
	for _, it := range l.Items {
		if it.IDs.TMDB != 0 {
			ids = append(ids, strconv.FormatInt(it.IDs.TMDB, 10))
		}
	}
	return ids
}

// Release is the decoded body of a release lookup.
type Release struct {
	Item
	Season   int             `json:"season,omitempty"`
	Episode  int             `json:"episode,omitempty"`
	Overview string          `json:"overview,omitempty"`
	Released string          `json:"released,omitempty"`
	Raw      json.RawMessage `json:"-"`
}

func (g *Gateway) Latest(ctx context.Context) (List, error) {
	return g.list(ctx, NewRequest(PathLatest, nil))
}

func (g *Gateway) Discover(ctx context.Context) (List, error) {
	return g.list(ctx, NewRequest(PathDiscover, nil))
}

func (g *Gateway) Trending(ctx context.Context) (List, error) {
	return g.list(ctx, NewRequest(PathTrending, nil))
}

func (g *Gateway) Popular(ctx context.Context) (List, error) {
	return g.list(ctx, NewRequest(PathPopular, nil))
}

// Network lists content for an external network id.
func (g *Gateway) Network(ctx context.Context, id string) (List, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return List{}, ErrMissingID
	}
	return g.list(ctx, NewRequest(PathNetwork+url.PathEscape(id), nil))
}

// Provider lists a streaming provider's catalog.
func (g *Gateway) Provider(ctx context.Context, p Provider) (List, error) {
	p, err := ParseProvider(string(p))
	if err != nil {
		return List{}, err
	}
	return g.list(ctx, NewRequest(PathProvider+string(p), nil))
}

// List fetches any list-shaped path.
func (g *Gateway) List(ctx context.Context, path string) (List, error) {
	return g.list(ctx, NewRequest(path, nil))
}

// ReleaseDetails looks up a title, or one episode of it when season and
// episode are positive. It shares the cache and retry behaviour of every
// other endpoint; the query is part of the cache key.
func (g *Gateway) ReleaseDetails(ctx context.Context, id string, season, episode int) (Release, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Release{}, ErrMissingID
	}
	q := url.Values{}
	if season > 0 {
		q.Set("season", strconv.Itoa(season))
	}
	if episode > 0 {
		q.Set("episode", strconv.Itoa(episode))
	}
	req := NewRequest(PathRelease+url.PathEscape(id), q)
	body, err := g.fetch(ctx, req)
	if err != nil {
		return Release{}, err
	}

	res := gjson.ParseBytes(body)
	rel := Release{
		Item:     parseItem(res),
		Season:   int(res.Get("season").Int()),
		Episode:  int(res.Get("episode").Int()),
		Overview: res.Get("overview").String(),
		Released: res.Get("released").String(),
		Raw:      body,
	}
	if rel.Season == 0 {
		rel.Season = season
	}
	if rel.Episode == 0 {
		rel.Episode = episode
	}
	return rel, nil
}

func (g *Gateway) list(ctx context.Context, req Request) (List, error) {
	body, err := g.fetch(ctx, req)
	if err != nil {
		return List{}, err
	}
	return ParseList(req.Path, body), nil
}

// ParseList decodes a list payload. The service returns either a bare array
// or an object with a "results" array; each element is an item or wraps one
// under "movie" or "show".
func ParseList(path string, body json.RawMessage) List {
	res := gjson.ParseBytes(body)
	if res.IsObject() {
		res = res.Get("results")
	}
	l := List{Path: path, Raw: body}
	res.ForEach(func(_, elem gjson.Result) bool {
		l.Items = append(l.Items, parseItem(elem))
		return true
	})
	return l
}

func parseItem(elem gjson.Result) Item {
	typ := elem.Get("type").String()
	obj := elem
	for _, kind := range []string{"movie", "show"} {
		if inner := elem.Get(kind); inner.IsObject() {
			obj, typ = inner, kind
			break
		}
	}
	if typ == "" {
		typ = "movie"
	}

	it := Item{
		Type:  typ,
		Title: firstString(obj, "title", "name"),
		Year:  int(obj.Get("year").Int()),
		IDs: IDs{
			Trakt: obj.Get("ids.trakt").Int(),
			TMDB:  obj.Get("ids.tmdb").Int(),
			IMDB:  obj.Get("ids.imdb").String(),
			Slug:  obj.Get("ids.slug").String(),
		},
	}
	if it.IDs.TMDB == 0 {
		it.IDs.TMDB = obj.Get("tmdb_id").Int()
	}
	return it
}

func firstString(obj gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := obj.Get(k); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
