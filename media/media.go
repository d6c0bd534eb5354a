// Package media assembles curated lists and detail batches on top of the
// catalog gateway and a separate detail service.
package media

import (
	"context"
	"log/slog"

	"github.com/adeilh/go-trakt/catalog"
)

// Type selects the detail endpoint.
type Type string

const (
	Movie Type = "movie"
	TV    Type = "tv"
)

// DetailRecord is what the detail service returns for one title. Fields are
// passed through as received; nothing is validated.
type DetailRecord struct {
	ID          string   `json:"id"`
	Type        Type     `json:"type"`
	Title       string   `json:"title"`
	Overview    string   `json:"overview,omitempty"`
	ReleaseDate string   `json:"release_date,omitempty"`
	PosterPath  string   `json:"poster_path,omitempty"`
	Backdrop    string   `json:"backdrop_path,omitempty"`
	Rating      float64  `json:"vote_average,omitempty"`
	Runtime     int      `json:"runtime,omitempty"`
	Genres      []string `json:"genres,omitempty"`
}

// DetailService looks up one title.
type DetailService interface {
	Details(ctx context.Context, id string, typ Type) (DetailRecord, error)
}

// Lister is the part of *catalog.Gateway the aggregator uses.
type Lister interface {
	List(ctx context.Context, path string) (catalog.List, error)
}

// Recorder receives aggregation results; see the metrics package.
type Recorder interface {
	CuratedList(slug string, count int, err error)
	DetailLookup(err error)
}

type nopRecorder struct{}

func (nopRecorder) CuratedList(string, int, error) {}
func (nopRecorder) DetailLookup(error)             {}

// Aggregator composes gateway and detail calls.
type Aggregator struct {
	lists       Lister
	details     DetailService
	descriptors []Descriptor
	batchSize   int
	maxInFlight int64
	logger      *slog.Logger
	recorder    Recorder
}

type Option func(*Aggregator)

// WithDescriptors replaces CuratedLists.
func WithDescriptors(d []Descriptor) Option {
	return func(a *Aggregator) {
		if d != nil {
			a.descriptors = d
		}
	}
}

// WithBatchSize overrides DefaultBatchSize.
func WithBatchSize(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

// WithMaxInFlight caps concurrent detail lookups across all batches.
// Zero leaves them unbounded.
func WithMaxInFlight(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxInFlight = int64(n)
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(a *Aggregator) {
		if r != nil {
			a.recorder = r
		}
	}
}

// NewAggregator builds an aggregator. Either collaborator may be nil when the
// caller only uses the other half.
func NewAggregator(lists Lister, details DetailService, opts ...Option) *Aggregator {
	a := &Aggregator{
		lists:       lists,
		details:     details,
		descriptors: CuratedLists,
		batchSize:   DefaultBatchSize,
		logger:      slog.Default(),
		recorder:    nopRecorder{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}
