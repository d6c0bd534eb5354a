// Package reorder keeps a working copy of item order while an edit session is
// open and writes each changed group back once when the session ends.
package reorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// DefaultResetDelay separates the post-commit reset from the commit itself so
// readers see the stored order before the working copy disappears.
const DefaultResetDelay = 50 * time.Millisecond

var (
	ErrNoSession     = errors.New("reorder: no session in progress")
	ErrSessionActive = errors.New("reorder: session already in progress")
	ErrUnknownGroup  = errors.New("reorder: unknown group")
	ErrOutOfRange    = errors.New("reorder: index out of range")
)

// Committer persists the final order of one group.
type Committer interface {
	Commit(ctx context.Context, group string, order []string) error
}

// CommitFunc adapts a function to Committer.
type CommitFunc func(ctx context.Context, group string, order []string) error

func (f CommitFunc) Commit(ctx context.Context, group string, order []string) error {
	return f(ctx, group, order)
}

// Position addresses one slot.
type Position struct {
	Group string `json:"group"`
	Index int    `json:"index"`
}

// Session is a single-writer edit session. It is safe for concurrent use but
// only one session can be open at a time.
type Session struct {
	mu       sync.Mutex
	active   bool
	original map[string][]string
	working  map[string][]string

	committer Committer
	delay     time.Duration
	onReset   func()
	logger    *slog.Logger
}

type Option func(*Session)

// WithResetDelay overrides DefaultResetDelay.
func WithResetDelay(d time.Duration) Option {
	return func(s *Session) {
		if d >= 0 {
			s.delay = d
		}
	}
}

// WithResetFunc runs fn after each End once the reset delay has elapsed,
// typically to drop caches that still hold the old order.
func WithResetFunc(fn func()) Option {
	return func(s *Session) { s.onReset = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewSession(committer Committer, opts ...Option) *Session {
	s := &Session{
		committer: committer,
		delay:     DefaultResetDelay,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Begin opens a session over a copy of groups.
func (s *Session) Begin(groups map[string][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return ErrSessionActive
	}
	s.original = make(map[string][]string, len(groups))
	s.working = make(map[string][]string, len(groups))
	for g, ids := range groups {
		s.original[g] = slices.Clone(ids)
		s.working[g] = slices.Clone(ids)
	}
	s.active = true
	return nil
}

// Active reports whether a session is open.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Order returns the working order of group.
func (s *Session) Order(group string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return nil, ErrNoSession
	}
	ids, ok := s.working[group]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, group)
	}
	return slices.Clone(ids), nil
}

// Move takes the item at from and inserts it at to. Moving within a group
// shifts the items in between; moving across groups removes it from one and
// inserts it into the other.
func (s *Session) Move(from, to Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return ErrNoSession
	}
	src, ok := s.working[from.Group]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownGroup, from.Group)
	}
	dst, ok := s.working[to.Group]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownGroup, to.Group)
	}
	if from.Index < 0 || from.Index >= len(src) {
		return fmt.Errorf("%w: %s[%d]", ErrOutOfRange, from.Group, from.Index)
	}

	limit := len(dst)
	if from.Group == to.Group {
		limit--
	}
	if to.Index < 0 || to.Index > limit {
		return fmt.Errorf("%w: %s[%d]", ErrOutOfRange, to.Group, to.Index)
	}

	id := src[from.Index]
	src = slices.Delete(src, from.Index, from.Index+1)
	s.working[from.Group] = src
	if from.Group == to.Group {
		dst = src
	}
	s.working[to.Group] = slices.Insert(dst, to.Index, id)
	return nil
}

// End commits every group whose order changed, each exactly once, then
// closes the session. Commit failures do not stop the remaining groups; they
// are joined into the returned error. The reset callback fires after the
// reset delay either way.
func (s *Session) End(ctx context.Context) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return ErrNoSession
	}
	changed := make(map[string][]string)
	for g, ids := range s.working {
		if !slices.Equal(ids, s.original[g]) {
			changed[g] = ids
		}
	}
	s.active, s.original, s.working = false, nil, nil
	s.mu.Unlock()

	groups := make([]string, 0, len(changed))
	for g := range changed {
		groups = append(groups, g)
	}
	slices.Sort(groups)

	var errs []error
	for _, g := range groups {
		if s.committer == nil {
			break
		}
		if err := s.committer.Commit(ctx, g, changed[g]); err != nil {
			s.logger.Error("committing order failed", "group", g, "error", err)
			errs = append(errs, fmt.Errorf("reorder: commit %s: %w", g, err))
			continue
		}
		s.logger.Debug("order committed", "group", g, "items", len(changed[g]))
	}

	if s.onReset != nil {
		time.AfterFunc(s.delay, s.onReset)
	}
	return errors.Join(errs...)
}

// Cancel discards the working copy without committing.
func (s *Session) Cancel() {
	s.mu.Lock()
	s.active, s.original, s.working = false, nil, nil
	s.mu.Unlock()
}
