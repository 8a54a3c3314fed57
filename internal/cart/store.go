package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	domain "github.com/pulkitk069-maker/Shop.with.mukuu1/internal/domain"
)

var (
	// ErrInvalidItem indicates an item without an id or with a negative price.
	ErrInvalidItem = errors.New("cart: invalid item")
	// ErrPersistFailed indicates the mutation was applied in memory but could not be written through.
	ErrPersistFailed = errors.New("cart: persist failed")
)

// Item is a product as offered to addToCart.
type Item struct {
	ID    string
	Name  string
	Price int64
	Image string
}

// Snapshot is an immutable view of the cart after a mutation. Lines must be treated as read-only.
type Snapshot struct {
	Lines      []domain.CartLine
	TotalItems int
	TotalPrice int64
	Shipping   string
}

func (s Snapshot) Empty() bool {
	return len(s.Lines) == 0
}

// Listener observes cart mutations. It may read from the store but must not mutate it.
type Listener func(Snapshot)

// Persister writes the full line list for a cart key.
type Persister interface {
	SaveCart(ctx context.Context, key string, lines []domain.CartLine) error
}

type subscription struct {
	id int
	fn Listener
}

// Store is the cart for one browser session. Every mutation writes through to the
// persister and then notifies listeners, both in mutation order.
type Store struct {
	key       string
	persister Persister
	logger    func(ctx context.Context, event string, fields map[string]any)

	mu        sync.Mutex
	lines     []domain.CartLine
	listeners []subscription
	nextID    int
	closers   []func()
	closed    bool

	// notifyMu is taken before mu is released so persist+notify of mutation N
	// finishes before that of mutation N+1 starts.
	notifyMu sync.Mutex
}

// StoreDeps wires the collaborators of a Store.
type StoreDeps struct {
	Key       string
	Persister Persister
	Logger    func(ctx context.Context, event string, fields map[string]any)
	// Lines seeds the store, usually from a previous session.
	Lines []domain.CartLine
}

// NewStore constructs a Store. A nil persister keeps the cart in memory only.
func NewStore(deps StoreDeps) *Store {
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	s := &Store{
		key:       deps.Key,
		persister: deps.Persister,
		logger:    logger,
	}
	for _, line := range deps.Lines {
		if strings.TrimSpace(line.ID) == "" || line.Quantity <= 0 {
			continue
		}
		if idx := s.indexLocked(line.ID); idx >= 0 {
			s.lines[idx].Quantity += line.Quantity
			continue
		}
		s.lines = append(s.lines, line)
	}
	return s
}

func (s *Store) Key() string {
	return s.key
}

// Add increments the quantity of an existing line or appends a new line with quantity 1.
func (s *Store) Add(ctx context.Context, item Item) error {
	item.ID = strings.TrimSpace(item.ID)
	if item.ID == "" || item.Price < 0 {
		return ErrInvalidItem
	}
	return s.mutate(ctx, "cart.add", func() bool {
		if idx := s.indexLocked(item.ID); idx >= 0 {
			s.lines[idx].Quantity++
			return true
		}
		s.lines = append(s.lines, domain.CartLine{
			ID:       item.ID,
			Name:     item.Name,
			Price:    item.Price,
			Image:    item.Image,
			Quantity: 1,
		})
		return true
	})
}

// Remove drops the line with id. Removing an absent id changes nothing.
func (s *Store) Remove(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	return s.mutate(ctx, "cart.remove", func() bool {
		return s.removeLocked(id)
	})
}

// UpdateQuantity sets the quantity of the line with id. Zero or below removes it.
func (s *Store) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	id = strings.TrimSpace(id)
	return s.mutate(ctx, "cart.update_quantity", func() bool {
		if quantity <= 0 {
			return s.removeLocked(id)
		}
		idx := s.indexLocked(id)
		if idx < 0 || s.lines[idx].Quantity == quantity {
			return false
		}
		s.lines[idx].Quantity = quantity
		return true
	})
}

func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, "cart.clear", func() bool {
		if len(s.lines) == 0 {
			return false
		}
		s.lines = nil
		return true
	})
}

// Subtract takes the quantities in ordered off the matching lines and drops lines
// that reach zero. Lines added or increased after ordered was taken stay in the cart.
func (s *Store) Subtract(ctx context.Context, ordered []domain.CartLine) error {
	return s.mutate(ctx, "cart.subtract", func() bool {
		changed := false
		for _, line := range ordered {
			idx := s.indexLocked(line.ID)
			if idx < 0 || line.Quantity <= 0 {
				continue
			}
			changed = true
			if s.lines[idx].Quantity <= line.Quantity {
				s.lines = append(s.lines[:idx:idx], s.lines[idx+1:]...)
				continue
			}
			s.lines[idx].Quantity -= line.Quantity
		}
		return changed
	})
}

// Lines returns a copy of the current lines in insertion order.
func (s *Store) Lines() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyLines(s.lines)
}

func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totalItems(s.lines)
}

// TotalPrice returns the sum of price × quantity over all lines.
func (s *Store) TotalPrice() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totalPrice(s.lines)
}

// Snapshot returns a copy of the lines together with the totals.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers a listener and returns a function that removes it.
func (s *Store) Subscribe(listener Listener) func() {
	if listener == nil {
		return func() {}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, subscription{id: id, fn: listener})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.listeners {
				if sub.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// OnClose registers fn to run when the store is evicted from its registry.
func (s *Store) OnClose(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		fn()
		return
	}
	s.closers = append(s.closers, fn)
	s.mu.Unlock()
}

// close drops every listener and runs the close hooks once.
func (s *Store) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.listeners = nil
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	for _, fn := range closers {
		fn()
	}
}

func (s *Store) mutate(ctx context.Context, op string, apply func() bool) error {
	s.mu.Lock()
	if !apply() {
		s.mu.Unlock()
		return nil
	}
	snap := s.snapshotLocked()
	listeners := make([]subscription, len(s.listeners))
	copy(listeners, s.listeners)

	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	var err error
	if s.persister != nil {
		if perr := s.persister.SaveCart(ctx, s.key, snap.Lines); perr != nil {
			s.logger(ctx, "cart.persist_failed", map[string]any{
				"op":         op,
				"cartKey":    s.key,
				"totalItems": snap.TotalItems,
				"error":      perr,
			})
			err = fmt.Errorf("%w: %w", ErrPersistFailed, perr)
		}
	}

	for _, sub := range listeners {
		sub.fn(snap)
	}
	return err
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Lines:      copyLines(s.lines),
		TotalItems: totalItems(s.lines),
		TotalPrice: totalPrice(s.lines),
		Shipping:   domain.ShippingLabel,
	}
}

func (s *Store) indexLocked(id string) int {
	for i := range s.lines {
		if s.lines[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) removeLocked(id string) bool {
	idx := s.indexLocked(id)
	if idx < 0 {
		return false
	}
	s.lines = append(s.lines[:idx:idx], s.lines[idx+1:]...)
	return true
}

func copyLines(lines []domain.CartLine) []domain.CartLine {
	if len(lines) == 0 {
		return []domain.CartLine{}
	}
	out := make([]domain.CartLine, len(lines))
	copy(out, lines)
	return out
}

func totalItems(lines []domain.CartLine) int {
	total := 0
	for _, line := range lines {
		total += line.Quantity
	}
	return total
}

func totalPrice(lines []domain.CartLine) int64 {
	var total int64
	for _, line := range lines {
		total += line.Subtotal()
	}
	return total
}
