package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	domain "github.com/pulkitk069-maker/Shop.with.mukuu1/internal/domain"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/orders"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/platform/httpx"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/platform/requestctx"
)

// OrderHistory lists a shopper's orders, newest first.
type OrderHistory interface {
	ListForUser(ctx context.Context, uid string) ([]domain.Order, error)
}

// OrderHandlers exposes the signed-in shopper's order history.
type OrderHandlers struct {
	history OrderHistory
}

// NewOrderHandlers constructs order history handlers.
func NewOrderHandlers(history OrderHistory) *OrderHandlers {
	return &OrderHandlers{history: history}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listOrders)
}

type orderItemPayload struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
	Price       int64  `json:"price"`
}

type orderPayload struct {
	ID          string             `json:"id"`
	OrderCode   string             `json:"orderCode"`
	Status      string             `json:"status"`
	TotalAmount int64              `json:"totalAmount"`
	ItemCount   int                `json:"itemCount"`
	Items       []orderItemPayload `json:"items"`
	Name        string             `json:"customerName"`
	Phone       string             `json:"customerPhone"`
	Address     string             `json:"customerAddress"`
	Notes       string             `json:"notes,omitempty"`
	CreatedAt   string             `json:"createdAt,omitempty"`
}

type orderListResponse struct {
	Orders []orderPayload `json:"orders"`
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.history == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order history unavailable", http.StatusServiceUnavailable))
		return
	}
	state := identityState(ctx)
	if !state.IsAuthenticated() {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	list, err := h.history.ListForUser(ctx, state.UserID())
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrUnauthenticated):
			httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		default:
			requestctx.Logger(ctx).Error("order history failed", zap.Error(err))
			httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order history unavailable", http.StatusServiceUnavailable))
		}
		return
	}

	resp := orderListResponse{Orders: make([]orderPayload, 0, len(list))}
	for _, order := range list {
		resp.Orders = append(resp.Orders, buildOrderPayload(order))
	}
	setNoStore(w)
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func buildOrderPayload(order domain.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemPayload{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}
	payload := orderPayload{
		ID:          order.ID,
		OrderCode:   order.OrderCode,
		Status:      string(domain.ParseOrderStatus(string(order.Status))),
		TotalAmount: order.TotalAmount,
		ItemCount:   order.ItemCount(),
		Items:       items,
		Name:        order.Customer.Name,
		Phone:       order.Customer.Phone,
		Address:     order.Customer.Address,
		Notes:       order.Customer.Notes,
	}
	if !order.CreatedAt.IsZero() {
		payload.CreatedAt = order.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return payload
}
