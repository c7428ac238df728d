package engine

import (
	"context"
	"fmt"
	"sync"
)

// SetupFunc mounts an application's instances into a fresh root.
type SetupFunc func(r *Root) error

// Factory opens one composition root per connection. Roots opened by the
// same factory share nothing but the setup function and the journal.
type Factory struct {
	setup  SetupFunc
	tokens TokenGenerator
	opts   []Option

	mu       sync.Mutex
	live     map[string]*Root
	reserved map[string]bool // tokens whose roots are still being set up
	total    int
}

// NewFactory creates a factory. Options are applied to every root.
func NewFactory(setup SetupFunc, tokens TokenGenerator, opts ...Option) *Factory {
	if tokens == nil {
		tokens = UUIDv7Generator{}
	}
	return &Factory{
		setup:    setup,
		tokens:   tokens,
		opts:     opts,
		live:     make(map[string]*Root),
		reserved: make(map[string]bool),
	}
}

// Open creates a root with a new session token, mounts the application,
// and runs the first recompute pass. extra options are applied after the
// factory's own (e.g. a per-connection renderer).
func (f *Factory) Open(ctx context.Context, extra ...Option) (*Root, error) {
	id := f.tokens.Generate()
	if !f.reserve(id) {
		return nil, fmt.Errorf("session %s is already open", id)
	}
	opts := append(append([]Option{}, f.opts...), extra...)
	r := New(id, opts...)

	if f.setup != nil {
		if err := f.setup(r); err != nil {
			f.unreserve(id)
			r.Close(ctx)
			return nil, fmt.Errorf("setup session %s: %w", id, err)
		}
	}
	if _, err := r.Open(ctx); err != nil {
		f.unreserve(id)
		r.Close(ctx)
		return nil, err
	}

	f.mu.Lock()
	delete(f.reserved, id)
	f.live[id] = r
	f.total++
	f.mu.Unlock()
	return r, nil
}

// reserve claims id for a root being opened. It fails when id is live or
// already claimed.
func (f *Factory) reserve(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.live[id]; ok || f.reserved[id] {
		return false
	}
	f.reserved[id] = true
	return true
}

func (f *Factory) unreserve(id string) {
	f.mu.Lock()
	delete(f.reserved, id)
	f.mu.Unlock()
}

// Get returns a live root by session token.
func (f *Factory) Get(id string) (*Root, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.live[id]
	return r, ok
}

// Release closes the root and forgets it.
func (f *Factory) Release(ctx context.Context, id string) {
	f.mu.Lock()
	r, ok := f.live[id]
	delete(f.live, id)
	f.mu.Unlock()
	if ok {
		r.Stop()
		r.Close(ctx)
	}
}

// Live returns the number of open sessions.
func (f *Factory) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

// Opened returns the number of sessions opened so far.
func (f *Factory) Opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

// CloseAll closes every live root.
func (f *Factory) CloseAll(ctx context.Context) {
	f.mu.Lock()
	roots := make([]*Root, 0, len(f.live))
	for id, r := range f.live {
		roots = append(roots, r)
		delete(f.live, id)
	}
	f.mu.Unlock()
	for _, r := range roots {
		r.Stop()
		r.Close(ctx)
	}
}
