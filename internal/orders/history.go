package orders

import (
	"context"
	"errors"
	"sort"
	"strings"

	domain "github.com/pulkitk069-maker/Shop.with.mukuu1/internal/domain"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/repositories"
)

var (
	// ErrUnauthenticated indicates a history request without a signed-in user.
	ErrUnauthenticated = errors.New("orders: authentication required")
	// ErrHistoryUnavailable indicates the order history could not be read.
	ErrHistoryUnavailable = errors.New("orders: history unavailable")
)

// HistoryDeps wires the dependencies of a History.
type HistoryDeps struct {
	Orders repositories.OrderRepository
	Limit  int
	Logger func(ctx context.Context, event string, fields map[string]any)
}

// History lists a shopper's past orders, newest first.
type History struct {
	orders repositories.OrderRepository
	limit  int
	logger func(ctx context.Context, event string, fields map[string]any)
}

// NewHistory constructs a History validating required dependencies.
func NewHistory(deps HistoryDeps) (*History, error) {
	if deps.Orders == nil {
		return nil, errors.New("order history: order repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &History{orders: deps.Orders, limit: deps.Limit, logger: logger}, nil
}

// ListForUser returns the orders placed by uid. When the backend lacks the index
// for server-side ordering the query is retried unordered and sorted here.
func (h *History) ListForUser(ctx context.Context, uid string) ([]domain.Order, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" || uid == domain.GuestUserID {
		return nil, ErrUnauthenticated
	}

	orders, err := h.orders.ListByUser(ctx, repositories.OrderQuery{UserID: uid, NewestFirst: true, Limit: h.limit})
	if err != nil && repositories.IsIndexMissing(err) {
		h.logger(ctx, "orders.history_index_missing", map[string]any{"uid": uid, "error": err})
		// Without the index a limit would cut an arbitrary subset, so fetch all and trim after sorting.
		orders, err = h.orders.ListByUser(ctx, repositories.OrderQuery{UserID: uid})
		if err == nil {
			sortNewestFirst(orders)
			if h.limit > 0 && len(orders) > h.limit {
				orders = orders[:h.limit]
			}
		}
	}
	if err != nil {
		h.logger(ctx, "orders.history_failed", map[string]any{"uid": uid, "error": err})
		return nil, errors.Join(ErrHistoryUnavailable, err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

func sortNewestFirst(orders []domain.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
