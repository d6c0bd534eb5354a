package media

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultDetailLimit = 50
	DefaultBatchSize   = 10
)

// MovieDetailsForIDs looks up at most limit leading ids (DefaultDetailLimit
// when limit <= 0) as movies. See DetailsForIDs.
func (a *Aggregator) MovieDetailsForIDs(ctx context.Context, ids []string, limit int) ([]DetailRecord, error) {
	return a.DetailsForIDs(ctx, ids, Movie, limit)
}

// DetailsForIDs splits the leading ids into batches that run concurrently,
// each issuing its lookups concurrently. A failed lookup is logged and
// contributes no record. The result keeps the input order. The only error
// returned is ctx's.
func (a *Aggregator) DetailsForIDs(ctx context.Context, ids []string, typ Type, limit int) ([]DetailRecord, error) {
	if a.details == nil {
		return nil, errors.New("media: no detail service configured")
	}
	if limit <= 0 {
		limit = DefaultDetailLimit
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	var sem *semaphore.Weighted
	if a.maxInFlight > 0 {
		sem = semaphore.NewWeighted(a.maxInFlight)
	}

	batches := partition(ids, a.batchSize)
	results := make([][]DetailRecord, len(batches))
	var g errgroup.Group
	for i, batch := range batches {
		g.Go(func() error {
			recs, err := a.lookupBatch(ctx, batch, typ, sem)
			results[i] = recs
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]DetailRecord, 0, len(ids))
	for _, recs := range results {
		out = append(out, recs...)
	}
	return out, nil
}

func (a *Aggregator) lookupBatch(ctx context.Context, ids []string, typ Type, sem *semaphore.Weighted) ([]DetailRecord, error) {
	slots := make([]*DetailRecord, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		if sem != nil {
			if err := sem.Acquire(ctx, 1); err != nil {
				wg.Wait()
				return nil, err
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sem != nil {
				defer sem.Release(1)
			}
			rec, err := a.details.Details(ctx, id, typ)
			a.recorder.DetailLookup(err)
			if err != nil {
				a.logger.Warn("detail lookup failed", "id", id, "type", typ, "error", err)
				return
			}
			slots[i] = &rec
		}()
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	recs := make([]DetailRecord, 0, len(ids))
	for _, r := range slots {
		if r != nil {
			recs = append(recs, *r)
		}
	}
	return recs, nil
}

func partition(ids []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}
