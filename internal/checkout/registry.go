package checkout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/cart"
)

const defaultSessionTTL = 2 * time.Hour

// ErrInvalidSession indicates an empty session key.
var ErrInvalidSession = errors.New("checkout: session key is required")

// CartSource resolves the cart store for a session.
type CartSource interface {
	Get(ctx context.Context, key string) (*cart.Store, error)
}

// RegistryDeps wires the dependencies of a Registry.
type RegistryDeps struct {
	Carts      CartSource
	Orders     OrderCreator
	Composer   MessageComposer
	Dispatcher MessageDispatcher
	AllowGuest bool
	SessionTTL time.Duration
	Codes      func() string
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type controllerEntry struct {
	controller *Controller
	store      *cart.Store
	lastUsed   time.Time
}

// Registry holds one Controller per session and evicts idle ones.
type Registry struct {
	deps RegistryDeps
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]*controllerEntry
}

// NewRegistry constructs a Registry validating required dependencies.
func NewRegistry(deps RegistryDeps) (*Registry, error) {
	if deps.Carts == nil {
		return nil, errors.New("checkout registry: cart source is required")
	}
	if deps.Orders == nil || deps.Composer == nil || deps.Dispatcher == nil {
		return nil, errors.New("checkout registry: orders, composer and dispatcher are required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	ttl := deps.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Registry{
		deps:    deps,
		ttl:     ttl,
		now:     func() time.Time { return clock().UTC() },
		entries: make(map[string]*controllerEntry),
	}, nil
}

// Get returns the controller for key. A controller whose cart store has been
// replaced since it was built is discarded so it never observes a stale cart.
func (r *Registry) Get(ctx context.Context, key string) (*Controller, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrInvalidSession
	}
	store, err := r.deps.Carts.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if entry, ok := r.entries[key]; ok {
		if entry.store == store {
			entry.lastUsed = r.now()
			r.mu.Unlock()
			return entry.controller, nil
		}
		entry.controller.Close()
		delete(r.entries, key)
	}

	controller, err := NewController(Deps{
		Cart:       store,
		Orders:     r.deps.Orders,
		Composer:   r.deps.Composer,
		Dispatcher: r.deps.Dispatcher,
		AllowGuest: r.deps.AllowGuest,
		Codes:      r.deps.Codes,
		Clock:      r.deps.Clock,
		Logger:     r.deps.Logger,
	})
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.entries[key] = &controllerEntry{controller: controller, store: store, lastUsed: r.now()}
	r.mu.Unlock()

	// OnClose may run the hook inline, so it stays outside mu.
	store.OnClose(func() { r.drop(key, store) })
	return controller, nil
}

// Sweep closes controllers idle for longer than the TTL.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var evicted []*Controller
	for key, entry := range r.entries {
		if entry.lastUsed.Before(cutoff) {
			evicted = append(evicted, entry.controller)
			delete(r.entries, key)
		}
	}
	r.mu.Unlock()

	for _, controller := range evicted {
		controller.Close()
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
			r.Sweep()
		}
	}
}

// ResetForm clears the checkout form of the controller resident for key, if any.
func (r *Registry) ResetForm(key string) {
	r.mu.Lock()
	entry, ok := r.entries[strings.TrimSpace(key)]
	r.mu.Unlock()
	if ok {
		entry.controller.ResetForm()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) drop(key string, store *cart.Store) {
	r.mu.Lock()
	entry, ok := r.entries[key]
	if !ok || entry.store != store {
		r.mu.Unlock()
		return
	}
	delete(r.entries, key)
	r.mu.Unlock()
	entry.controller.Close()
}
