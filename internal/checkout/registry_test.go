package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/cart"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/notify"
)

type mapCarts struct {
	mu     sync.Mutex
	stores map[string]*cart.Store
}

func (m *mapCarts) Get(_ context.Context, key string) (*cart.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stores == nil {
		m.stores = make(map[string]*cart.Store)
	}
	store, ok := m.stores[key]
	if !ok {
		store = cart.NewStore(cart.StoreDeps{Key: key})
		m.stores[key] = store
	}
	return store, nil
}

func (m *mapCarts) replace(key string) *cart.Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	store := cart.NewStore(cart.StoreDeps{Key: key})
	m.stores[key] = store
	return store
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRegistry(t *testing.T, carts CartSource, clock *stepClock) *Registry {
	t.Helper()
	composer, err := notify.NewComposer("", "")
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}
	registry, err := NewRegistry(RegistryDeps{
		Carts:      carts,
		Orders:     &fakeOrders{},
		Composer:   composer,
		Dispatcher: &recordingDispatcher{},
		SessionTTL: time.Hour,
		Clock:      clock.Now,
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return registry
}

func TestRegistryReusesControllerPerSession(t *testing.T) {
	ctx := context.Background()
	clock := &stepClock{now: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)}
	registry := newTestRegistry(t, &mapCarts{}, clock)

	first, err := registry.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	again, err := registry.Get(ctx, " s1 ")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if first != again {
		t.Fatalf("expected the same controller for one session")
	}
	other, _ := registry.Get(ctx, "s2")
	if other == first {
		t.Fatalf("sessions must not share a controller")
	}
	if registry.Len() != 2 {
		t.Fatalf("expected 2 controllers, got %d", registry.Len())
	}

	if _, err := registry.Get(ctx, "  "); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
}

func TestRegistryRebuildsWhenCartReplaced(t *testing.T) {
	ctx := context.Background()
	carts := &mapCarts{}
	clock := &stepClock{now: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)}
	registry := newTestRegistry(t, carts, clock)

	first, _ := registry.Get(ctx, "s1")
	replacement := carts.replace("s1")
	_ = replacement.Add(ctx, cart.Item{ID: "p1", Name: "Scarf", Price: 500})

	second, err := registry.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if second == first {
		t.Fatalf("expected a new controller for the replacement cart")
	}
	if view := second.View(); view.Summary.TotalItems != 1 {
		t.Fatalf("new controller should see the replacement cart, got %+v", view.Summary)
	}
	if registry.Len() != 1 {
		t.Fatalf("expected 1 controller, got %d", registry.Len())
	}
}

func TestRegistrySweepEvictsIdle(t *testing.T) {
	ctx := context.Background()
	carts := &mapCarts{}
	clock := &stepClock{now: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)}
	registry := newTestRegistry(t, carts, clock)

	idle, _ := registry.Get(ctx, "idle")
	clock.Advance(45 * time.Minute)
	_, _ = registry.Get(ctx, "busy")
	clock.Advance(30 * time.Minute)

	if evicted := registry.Sweep(); evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}
	if registry.Len() != 1 {
		t.Fatalf("expected busy session to remain")
	}

	// An evicted controller no longer follows its cart.
	store, _ := carts.Get(ctx, "idle")
	_ = store.Add(ctx, cart.Item{ID: "p1", Price: 500})
	if view := idle.View(); view.Summary.TotalItems != 0 {
		t.Fatalf("evicted controller still subscribed")
	}
}

func TestRegistryRunStopsOnCancel(t *testing.T) {
	clock := &stepClock{now: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)}
	registry := newTestRegistry(t, &mapCarts{}, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		registry.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestRegistryResetFormClearsResidentController(t *testing.T) {
	ctx := context.Background()
	clock := &stepClock{now: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)}
	carts := &mapCarts{}
	registry := newTestRegistry(t, carts, clock)

	store, _ := carts.Get(ctx, "s1")
	_ = store.Add(ctx, cart.Item{ID: "p1", Name: "Scarf", Price: 500})
	controller, err := registry.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	controller.Open(ctx, asha)
	fillForm(t, controller)

	registry.ResetForm("unknown")
	registry.ResetForm(" s1 ")
	if form := controller.View().Form; form.Phone != "" || form.Email != "" {
		t.Fatalf("expected cleared form, got %+v", form)
	}
	if registry.Len() != 1 {
		t.Fatalf("ResetForm must not create or evict controllers")
	}
}
