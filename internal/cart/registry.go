package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/repositories"
)

const (
	defaultIdleTTL     = 2 * time.Hour
	defaultLoadTimeout = 10 * time.Second
)

var (
	// ErrInvalidKey indicates an empty session key.
	ErrInvalidKey = errors.New("cart: session key is required")
	// ErrUnavailable indicates the stored cart could not be restored.
	ErrUnavailable = errors.New("cart: unavailable")
)

// RegistryDeps wires the dependencies of a Registry.
type RegistryDeps struct {
	Carts   repositories.CartRepository
	IdleTTL time.Duration
	// LoadTimeout bounds a shared first load, which outlives any single caller.
	LoadTimeout time.Duration
	Clock       func() time.Time
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type registryEntry struct {
	store    *Store
	lastUsed time.Time
}

// Registry keeps one Store per session key, restoring it from the repository on
// first access and evicting it once idle for longer than the TTL.
type Registry struct {
	carts       repositories.CartRepository
	ttl         time.Duration
	loadTimeout time.Duration
	now         func() time.Time
	logger      func(ctx context.Context, event string, fields map[string]any)

	mu      sync.Mutex
	entries map[string]*registryEntry
	loads   singleflight.Group
}

// NewRegistry constructs a Registry validating required dependencies.
func NewRegistry(deps RegistryDeps) (*Registry, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart registry: cart repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	ttl := deps.IdleTTL
	if ttl <= 0 {
		ttl = defaultIdleTTL
	}
	loadTimeout := deps.LoadTimeout
	if loadTimeout <= 0 {
		loadTimeout = defaultLoadTimeout
	}
	return &Registry{
		carts:       deps.Carts,
		ttl:         ttl,
		loadTimeout: loadTimeout,
		now:         func() time.Time { return clock().UTC() },
		logger:      logger,
		entries:     make(map[string]*registryEntry),
	}, nil
}

// Get returns the store for key, loading it from the repository when it is not resident.
// Concurrent first accesses for the same key share one load.
func (r *Registry) Get(ctx context.Context, key string) (*Store, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrInvalidKey
	}

	if store, ok := r.resident(key); ok {
		return store, nil
	}

	// Waiters share the load, so one caller's cancellation must not fail the rest.
	ch := r.loads.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.loadTimeout)
		defer cancel()
		return r.load(loadCtx, key)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Store), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Registry) resident(key string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[key]
	if !ok {
		return nil, false
	}
	entry.lastUsed = r.now()
	return entry.store, true
}

// load restores key from the repository. A store made resident by a load that
// finished after the caller's residency check is returned as is.
func (r *Registry) load(ctx context.Context, key string) (*Store, error) {
	if store, ok := r.resident(key); ok {
		return store, nil
	}
	lines, err := r.carts.LoadCart(ctx, key)
	if err != nil {
		r.logger(ctx, "cart.load_failed", map[string]any{"cartKey": key, "error": err})
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	store := NewStore(StoreDeps{
		Key:       key,
		Persister: r.carts,
		Logger:    r.logger,
		Lines:     lines,
	})

	r.mu.Lock()
	r.entries[key] = &registryEntry{store: store, lastUsed: r.now()}
	r.mu.Unlock()
	return store, nil
}

// Len returns the number of resident stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep evicts stores idle for longer than the TTL and returns how many were evicted.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var evicted []*Store
	for key, entry := range r.entries {
		if entry.lastUsed.Before(cutoff) {
			evicted = append(evicted, entry.store)
			delete(r.entries, key)
		}
	}
	r.mu.Unlock()

	for _, store := range evicted {
		store.close()
	}
	return len(evicted)
}

// Run sweeps on every tick until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.ttl / 4
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger(ctx, "cart.registry_swept", map[string]any{"evicted": n})
			}
		}
	}
}

// Close evicts every resident store.
func (r *Registry) Close() {
	r.mu.Lock()
	stores := make([]*Store, 0, len(r.entries))
	for key, entry := range r.entries {
		stores = append(stores, entry.store)
		delete(r.entries, key)
	}
	r.mu.Unlock()

	for _, store := range stores {
		store.close()
	}
}
