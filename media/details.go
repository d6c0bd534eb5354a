package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/adeilh/go-trakt/httpx"
)

var ErrUnsupportedType = errors.New("media: unsupported type")

// HTTPDetailService reads titles from a TMDB-compatible API:
// GET /movie/{id} and GET /tv/{id}, authorised with an api_key query.
type HTTPDetailService struct {
	client *httpx.Client
	apiKey string
}

func NewHTTPDetailService(client *httpx.Client, apiKey string) *HTTPDetailService {
	return &HTTPDetailService{client: client, apiKey: apiKey}
}

type tmdbDetail struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	VoteAverage  float64 `json:"vote_average"`
	Runtime      int     `json:"runtime"`
	EpisodeRun   []int   `json:"episode_run_time"`
	Genres       []struct {
		Name string `json:"name"`
	} `json:"genres"`
}

func (s *HTTPDetailService) Details(ctx context.Context, id string, typ Type) (DetailRecord, error) {
	if typ != Movie && typ != TV {
		return DetailRecord{}, fmt.Errorf("%w: %q", ErrUnsupportedType, typ)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return DetailRecord{}, errors.New("media: id is required")
	}

	var opts []httpx.RequestOption
	if s.apiKey != "" {
		opts = append(opts, httpx.WithQuery(url.Values{"api_key": {s.apiKey}}))
	}
	var body tmdbDetail
	if _, err := s.client.Get(ctx, "/"+string(typ)+"/"+url.PathEscape(id), &body, opts...); err != nil {
		return DetailRecord{}, fmt.Errorf("media: details %s %s: %w", typ, id, err)
	}

	rec := DetailRecord{
		ID:          id,
		Type:        typ,
		Title:       body.Title,
		Overview:    body.Overview,
		ReleaseDate: body.ReleaseDate,
		PosterPath:  body.PosterPath,
		Backdrop:    body.BackdropPath,
		Rating:      body.VoteAverage,
		Runtime:     body.Runtime,
	}
	if body.ID != 0 {
		rec.ID = strconv.FormatInt(body.ID, 10)
	}
	if rec.Title == "" {
		rec.Title = body.Name
	}
	if rec.ReleaseDate == "" {
		rec.ReleaseDate = body.FirstAirDate
	}
	if rec.Runtime == 0 && len(body.EpisodeRun) > 0 {
		rec.Runtime = body.EpisodeRun[0]
	}
	for _, g := range body.Genres {
		rec.Genres = append(rec.Genres, g.Name)
	}
	return rec, nil
}
