package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/cart"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/platform/httpx"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/platform/requestctx"
)

const maxCartBodySize = 4 * 1024

// CartSource resolves the cart store for a browser session.
type CartSource interface {
	Get(ctx context.Context, key string) (*cart.Store, error)
}

// CartHandlers exposes the session cart.
type CartHandlers struct {
	carts CartSource
}

// NewCartHandlers constructs cart handlers backed by the session cart registry.
func NewCartHandlers(carts CartSource) *CartHandlers {
	return &CartHandlers{carts: carts}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Put("/items/{productId}", h.updateQuantity)
	r.Delete("/items/{productId}", h.removeItem)
}

type cartResponse struct {
	Lines      []linePayload `json:"lines"`
	TotalItems int           `json:"totalItems"`
	TotalPrice int64         `json:"totalPrice"`
	Shipping   string        `json:"shipping"`
	Empty      bool          `json:"empty"`
	Persisted  bool          `json:"persisted"`
}

type addItemRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
	Image string `json:"image"`
}

type updateQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	h.writeCart(w, store.Snapshot(), true)
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if !decodeJSONBody(w, r, maxCartBodySize, &req) {
		return
	}
	err := store.Add(r.Context(), cart.Item{
		ID:    req.ID,
		Name:  strings.TrimSpace(req.Name),
		Price: req.Price,
		Image: strings.TrimSpace(req.Image),
	})
	h.finishMutation(w, r, store, err)
}

func (h *CartHandlers) updateQuantity(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	var req updateQuantityRequest
	if !decodeJSONBody(w, r, maxCartBodySize, &req) {
		return
	}
	if req.Quantity == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "quantity is required", http.StatusBadRequest))
		return
	}
	err := store.UpdateQuantity(r.Context(), chi.URLParam(r, "productId"), *req.Quantity)
	h.finishMutation(w, r, store, err)
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	err := store.Remove(r.Context(), chi.URLParam(r, "productId"))
	h.finishMutation(w, r, store, err)
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	err := store.Clear(r.Context())
	h.finishMutation(w, r, store, err)
}

func (h *CartHandlers) store(w http.ResponseWriter, r *http.Request) (*cart.Store, bool) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	key, ok := sessionKey(ctx, w)
	if !ok {
		return nil, false
	}
	store, err := h.carts.Get(ctx, key)
	if err != nil {
		writeCartError(ctx, w, err)
		return nil, false
	}
	return store, true
}

// finishMutation reports the cart after a mutation. A failed write-through keeps
// the in-memory change, so the cart is still returned with persisted=false.
func (h *CartHandlers) finishMutation(w http.ResponseWriter, r *http.Request, store *cart.Store, err error) {
	ctx := r.Context()
	switch {
	case err == nil:
		h.writeCart(w, store.Snapshot(), true)
	case errors.Is(err, cart.ErrPersistFailed):
		requestctx.Logger(ctx).Warn("cart write-through failed", zap.Error(err))
		h.writeCart(w, store.Snapshot(), false)
	default:
		writeCartError(ctx, w, err)
	}
}

func (h *CartHandlers) writeCart(w http.ResponseWriter, snap cart.Snapshot, persisted bool) {
	setNoStore(w)
	httpx.WriteJSON(w, http.StatusOK, cartResponse{
		Lines:      buildLinePayloads(snap.Lines),
		TotalItems: snap.TotalItems,
		TotalPrice: snap.TotalPrice,
		Shipping:   shippingLabel(snap.Shipping),
		Empty:      snap.Empty(),
		Persisted:  persisted,
	})
}

func writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrInvalidItem):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_item", "item requires an id and a non-negative price", http.StatusBadRequest))
	case errors.Is(err, cart.ErrInvalidKey):
		httpx.WriteError(ctx, w, httpx.NewError("session_required", "a browser session is required", http.StatusBadRequest))
	case errors.Is(err, cart.ErrUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("cart_unavailable", "cart could not be restored", http.StatusServiceUnavailable))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("request_cancelled", "request was cancelled", http.StatusServiceUnavailable))
	default:
		requestctx.Logger(ctx).Error("cart request failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "cart request failed", http.StatusInternalServerError))
	}
}
