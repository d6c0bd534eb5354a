package reorder

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/adeilh/go-trakt/cache"
)

// StoreCommitter keeps group orders as JSON arrays in a cache.Store under
// "<prefix>order:<group>".
type StoreCommitter struct {
	store  cache.Store
	prefix string
}

func NewStoreCommitter(store cache.Store, prefix string) *StoreCommitter {
	if prefix != "" {
		prefix += ":"
	}
	return &StoreCommitter{store: store, prefix: prefix}
}

func (c *StoreCommitter) key(group string) string { return c.prefix + "order:" + group }

func (c *StoreCommitter) Commit(ctx context.Context, group string, order []string) error {
	raw, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, c.key(group), raw, 0)
}

// Load returns the stored order of group, or nil when none was committed.
func (c *StoreCommitter) Load(ctx context.Context, group string) ([]string, error) {
	raw, err := c.store.Get(ctx, c.key(group))
	if errors.Is(err, cache.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var order []string
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("reorder: decode %s: %w", group, err)
	}
	return order, nil
}

// Apply sorts ids by a committed order. Ids missing from order keep their
// relative position after the ordered ones.
func Apply(ids, order []string) []string {
	if len(order) == 0 {
		return ids
	}
	rank := make(map[string]int, len(order))
	for i, id := range order {
		rank[id] = i
	}
	out := make([]string, 0, len(ids))
	var rest []string
	for _, id := range ids {
		if _, ok := rank[id]; ok {
			out = append(out, id)
		} else {
			rest = append(rest, id)
		}
	}
	slices.SortStableFunc(out, func(a, b string) int { return cmp.Compare(rank[a], rank[b]) })
	return append(out, rest...)
}
