package media

import (
	"context"
	"errors"

	"github.com/adeilh/go-trakt/catalog"
)

// MaxCuratedIDs bounds the ids kept per curated list.
const MaxCuratedIDs = 30

// Descriptor is static configuration for one curated list.
type Descriptor struct {
	DisplayName  string `json:"display_name" yaml:"display_name"`
	Slug         string `json:"slug" yaml:"slug"`
	EndpointPath string `json:"endpoint_path" yaml:"endpoint_path"`
}

// CuratedLists is the default ordered set of lists.
var CuratedLists = []Descriptor{
	{DisplayName: "Latest Releases", Slug: "latest", EndpointPath: catalog.PathLatest},
	{DisplayName: "Trending", Slug: "trending", EndpointPath: catalog.PathTrending},
	{DisplayName: "Popular", Slug: "popular", EndpointPath: catalog.PathPopular},
	{DisplayName: "Discover", Slug: "discover", EndpointPath: catalog.PathDiscover},
	{DisplayName: "Netflix", Slug: "netflix", EndpointPath: catalog.PathProvider + string(catalog.Netflix)},
	{DisplayName: "Disney+", Slug: "disney", EndpointPath: catalog.PathProvider + string(catalog.Disney)},
	{DisplayName: "Prime Video", Slug: "prime", EndpointPath: catalog.PathProvider + string(catalog.Prime)},
	{DisplayName: "Apple TV+", Slug: "apple", EndpointPath: catalog.PathProvider + string(catalog.Apple)},
	{DisplayName: "Max", Slug: "max", EndpointPath: catalog.PathProvider + string(catalog.Max)},
	{DisplayName: "Hulu", Slug: "hulu", EndpointPath: catalog.PathProvider + string(catalog.Hulu)},
}

// CuratedMovieList is one assembled list.
type CuratedMovieList struct {
	Descriptor
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}

// CuratedMovieLists fetches every descriptor in order. A list that fails is
// logged and left out. Only a disabled integration or an ended ctx stops the
// whole run, since no later list could succeed either.
func (a *Aggregator) CuratedMovieLists(ctx context.Context) ([]CuratedMovieList, error) {
	if a.lists == nil {
		return nil, errors.New("media: no list source configured")
	}
	out := make([]CuratedMovieList, 0, len(a.descriptors))
	for _, d := range a.descriptors {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		l, err := a.lists.List(ctx, d.EndpointPath)
		if err != nil {
			a.recorder.CuratedList(d.Slug, 0, err)
			if errors.Is(err, catalog.ErrFeatureDisabled) {
				return nil, err
			}
			a.logger.Warn("curated list failed", "slug", d.Slug, "path", d.EndpointPath, "error", err)
			continue
		}

		ids := l.TMDBIDs()
		if len(ids) > MaxCuratedIDs {
			ids = ids[:MaxCuratedIDs]
		}
		a.recorder.CuratedList(d.Slug, len(ids), nil)
		out = append(out, CuratedMovieList{Descriptor: d, IDs: ids, Count: len(ids)})
	}
	return out, nil
}
