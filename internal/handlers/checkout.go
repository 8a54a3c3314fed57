package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/checkout"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/notify"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/platform/httpx"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/platform/requestctx"
)

const (
	maxCheckoutRequestBody = 8 * 1024
	defaultSubmitTimeout   = 15 * time.Second
)

// CheckoutSource resolves the checkout controller for a browser session.
type CheckoutSource interface {
	Get(ctx context.Context, key string) (*checkout.Controller, error)
}

// CheckoutHandlers exposes the checkout flow for the current session.
type CheckoutHandlers struct {
	controllers   CheckoutSource
	submitTimeout time.Duration
}

// CheckoutOption customises CheckoutHandlers.
type CheckoutOption func(*CheckoutHandlers)

// WithSubmitTimeout bounds the order write started by a submit.
func WithSubmitTimeout(timeout time.Duration) CheckoutOption {
	return func(h *CheckoutHandlers) {
		if timeout > 0 {
			h.submitTimeout = timeout
		}
	}
}

// NewCheckoutHandlers constructs checkout handlers.
func NewCheckoutHandlers(controllers CheckoutSource, opts ...CheckoutOption) *CheckoutHandlers {
	h := &CheckoutHandlers{
		controllers:   controllers,
		submitTimeout: defaultSubmitTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers checkout endpoints under the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.view)
	r.Post("/open", h.open)
	r.Patch("/form", h.edit)
	r.Post("/submit", h.submit)
}

type formPayload struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
}

type summaryPayload struct {
	Lines      []linePayload `json:"lines"`
	TotalItems int           `json:"totalItems"`
	TotalPrice int64         `json:"totalPrice"`
	Shipping   string        `json:"shipping"`
}

type checkoutViewResponse struct {
	Phase        string         `json:"phase"`
	Form         formPayload    `json:"form"`
	Summary      summaryPayload `json:"summary"`
	Confirmation string         `json:"confirmation,omitempty"`
}

type checkoutOutcomeResponse struct {
	OrderID      string                 `json:"orderId"`
	OrderCode    string                 `json:"orderCode"`
	Total        int64                  `json:"total"`
	Confirmation string                 `json:"confirmation"`
	Message      notify.OutboundMessage `json:"message"`
	Next         string                 `json:"next"`
}

func (h *CheckoutHandlers) view(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.controller(w, r)
	if !ok {
		return
	}
	writeCheckoutView(w, http.StatusOK, controller.View())
}

func (h *CheckoutHandlers) open(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.controller(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	writeCheckoutView(w, http.StatusOK, controller.Open(ctx, identityState(ctx)))
}

func (h *CheckoutHandlers) edit(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.controller(w, r)
	if !ok {
		return
	}
	var patch checkout.FormPatch
	if !decodeJSONBody(w, r, maxCheckoutRequestBody, &patch) {
		return
	}
	view, err := controller.Edit(patch)
	if err != nil {
		writeCheckoutError(r.Context(), w, err)
		return
	}
	writeCheckoutView(w, http.StatusOK, view)
}

func (h *CheckoutHandlers) submit(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.controller(w, r)
	if !ok {
		return
	}

	// The order write must finish even if the shopper closes the tab mid-request.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.submitTimeout)
	defer cancel()

	outcome, err := controller.Submit(ctx, identityState(r.Context()))
	if err != nil {
		writeCheckoutError(r.Context(), w, err)
		return
	}

	setNoStore(w)
	httpx.WriteJSON(w, http.StatusCreated, checkoutOutcomeResponse{
		OrderID:      outcome.OrderID,
		OrderCode:    outcome.OrderCode,
		Total:        outcome.Total,
		Confirmation: outcome.Confirmation,
		Message:      outcome.Message,
		Next:         string(outcome.Next),
	})
}

func (h *CheckoutHandlers) controller(w http.ResponseWriter, r *http.Request) (*checkout.Controller, bool) {
	ctx := r.Context()
	if h.controllers == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	key, ok := sessionKey(ctx, w)
	if !ok {
		return nil, false
	}
	controller, err := h.controllers.Get(ctx, key)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return nil, false
	}
	return controller, true
}

func writeCheckoutView(w http.ResponseWriter, status int, view checkout.View) {
	setNoStore(w)
	httpx.WriteJSON(w, status, checkoutViewResponse{
		Phase: string(view.Phase),
		Form: formPayload{
			Name:    view.Form.Name,
			Email:   view.Form.Email,
			Phone:   view.Form.Phone,
			Address: view.Form.Address,
			Notes:   view.Form.Notes,
		},
		Summary: summaryPayload{
			Lines:      buildLinePayloads(view.Summary.Lines),
			TotalItems: view.Summary.TotalItems,
			TotalPrice: view.Summary.TotalPrice,
			Shipping:   shippingLabel(view.Summary.Shipping),
		},
		Confirmation: view.Confirmation,
	})
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	var validation *checkout.ValidationError
	var submitErr *checkout.SubmitError
	switch {
	case errors.As(err, &validation):
		httpx.WriteError(ctx, w, httpx.NewError("missing_fields", "Please fill in all required fields.", http.StatusUnprocessableEntity).
			WithDetails(map[string]any{"missing": validation.Missing}))
	case errors.Is(err, checkout.ErrSubmitInProgress):
		httpx.WriteError(ctx, w, httpx.NewError("submit_in_progress", "an order is already being placed", http.StatusConflict))
	case errors.Is(err, checkout.ErrCartEmpty):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "your cart is empty", http.StatusConflict))
	case errors.Is(err, checkout.ErrNotEditable):
		httpx.WriteError(ctx, w, httpx.NewError("not_editable", "checkout form is not editable right now", http.StatusConflict))
	case errors.Is(err, checkout.ErrLoginRequired):
		httpx.WriteError(ctx, w, httpx.NewError("login_required", "please sign in to place your order", http.StatusUnauthorized))
	case errors.As(err, &submitErr):
		requestctx.Logger(ctx).Warn("order submit failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("order_failed", submitErr.Message, http.StatusServiceUnavailable).
			WithDetails(map[string]any{"retryable": submitErr.Retryable}))
	case errors.Is(err, checkout.ErrInvalidSession):
		httpx.WriteError(ctx, w, httpx.NewError("session_required", "a browser session is required", http.StatusBadRequest))
	default:
		// Controller lookup goes through the cart registry.
		writeCartError(ctx, w, err)
	}
}
