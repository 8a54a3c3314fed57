package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/cart"
	domain "github.com/pulkitk069-maker/Shop.with.mukuu1/internal/domain"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/identity"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/notify"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/platform/textutil"
)

// Phase is the checkout screen state.
type Phase string

const (
	PhaseEmptyCart     Phase = "empty_cart"
	PhaseLoginRequired Phase = "login_required"
	PhaseForm          Phase = "form"
	PhaseSubmitting    Phase = "submitting"
)

// Next tells the client where to go after a successful submit.
type Next string

const (
	NextOrderHistory Next = "order_history"
	NextStay         Next = "stay"
)

const (
	retryMessage = "Failed to place order. Please try again."

	maxLineLength      = 200
	maxMultilineLength = 1000
)

// Cart is the slice of cart.Store the controller depends on.
type Cart interface {
	Snapshot() cart.Snapshot
	Subtract(ctx context.Context, ordered []domain.CartLine) error
	Subscribe(listener cart.Listener) func()
}

// OrderCreator stores a placed order as a single document.
type OrderCreator interface {
	Create(ctx context.Context, order domain.Order) (string, error)
}

// MessageComposer builds the post-checkout outbound message.
type MessageComposer interface {
	OrderPlaced(code string, total int64) notify.OutboundMessage
}

// MessageDispatcher opens outbound messages without blocking the caller.
type MessageDispatcher interface {
	Dispatch(ctx context.Context, msg notify.OutboundMessage) string
}

// FormPatch carries the fields a client changed. Nil fields are left alone.
type FormPatch struct {
	Name    *string `json:"name,omitempty"`
	Email   *string `json:"email,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Address *string `json:"address,omitempty"`
	Notes   *string `json:"notes,omitempty"`
}

// Summary is the order summary shown next to the form.
type Summary struct {
	Lines      []domain.CartLine
	TotalItems int
	TotalPrice int64
	Shipping   string
}

// View is everything a client needs to render checkout.
type View struct {
	Phase        Phase
	Form         domain.CustomerInfo
	Summary      Summary
	Confirmation string
}

// Outcome describes a placed order.
type Outcome struct {
	OrderID      string
	OrderCode    string
	Total        int64
	Confirmation string
	Message      notify.OutboundMessage
	Next         Next
}

// Deps wires the dependencies of a Controller.
type Deps struct {
	Cart       Cart
	Orders     OrderCreator
	Composer   MessageComposer
	Dispatcher MessageDispatcher
	AllowGuest bool
	Codes      func() string
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type editedFields struct {
	name, email, phone, address, notes bool
}

// Controller drives checkout for one session.
type Controller struct {
	cart       Cart
	orders     OrderCreator
	composer   MessageComposer
	dispatcher MessageDispatcher
	allowGuest bool
	codes      func() string
	now        func() time.Time
	logger     func(ctx context.Context, event string, fields map[string]any)

	// submitting guards Submit re-entry independently of mu so that a rejected
	// second submit never waits on the first.
	submitting atomic.Bool

	mu           sync.Mutex
	phase        Phase
	form         domain.CustomerInfo
	edited       editedFields
	prefilled    bool
	owner        string
	summary      Summary
	confirmation string
	unsubscribe  func()
}

// NewController constructs a Controller subscribed to its cart.
func NewController(deps Deps) (*Controller, error) {
	if deps.Cart == nil {
		return nil, errors.New("checkout controller: cart is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("checkout controller: order creator is required")
	}
	if deps.Composer == nil {
		return nil, errors.New("checkout controller: message composer is required")
	}
	if deps.Dispatcher == nil {
		return nil, errors.New("checkout controller: message dispatcher is required")
	}
	codes := deps.Codes
	if codes == nil {
		codes = NewOrderCode
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	c := &Controller{
		cart:       deps.Cart,
		orders:     deps.Orders,
		composer:   deps.Composer,
		dispatcher: deps.Dispatcher,
		allowGuest: deps.AllowGuest,
		codes:      codes,
		now:        func() time.Time { return clock().UTC() },
		logger:     logger,
		phase:      PhaseEmptyCart,
	}
	snap := deps.Cart.Snapshot()
	c.summary = summaryFrom(snap)
	c.unsubscribe = deps.Cart.Subscribe(c.onCartChanged)
	return c, nil
}

// Close detaches the controller from its cart.
func (c *Controller) Close() {
	c.mu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Open evaluates the cart and identity once and moves to the matching phase.
// An authenticated profile pre-fills name and email a single time per signed-in
// user, and never over a field that user has edited. A form filled for another
// user is discarded first.
func (c *Controller) Open(ctx context.Context, state identity.State) View {
	snap := c.cart.Snapshot()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.summary = summaryFrom(snap)
	if c.phase == PhaseSubmitting {
		return c.viewLocked()
	}
	c.switchOwnerLocked(state)

	switch {
	case snap.Empty():
		c.phase = PhaseEmptyCart
	case !state.IsAuthenticated() && !c.allowGuest:
		c.phase = PhaseLoginRequired
	default:
		c.phase = PhaseForm
		c.confirmation = ""
		if profile, ok := state.Profile(); ok && !c.prefilled {
			if !c.edited.name && profile.DisplayName != "" {
				c.form.Name = textutil.CleanLine(profile.DisplayName, maxLineLength)
			}
			if !c.edited.email && profile.Email != "" {
				c.form.Email = textutil.CleanLine(profile.Email, maxLineLength)
			}
			c.prefilled = true
		}
	}

	c.logger(ctx, "checkout.opened", map[string]any{
		"phase":         string(c.phase),
		"authenticated": state.IsAuthenticated(),
		"totalItems":    snap.TotalItems,
	})
	return c.viewLocked()
}

// Edit applies patch to the form and marks the touched fields as edited.
func (c *Controller) Edit(patch FormPatch) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseForm {
		return c.viewLocked(), ErrNotEditable
	}
	if patch.Name != nil {
		c.form.Name = textutil.CleanLine(*patch.Name, maxLineLength)
		c.edited.name = true
	}
	if patch.Email != nil {
		c.form.Email = textutil.CleanLine(*patch.Email, maxLineLength)
		c.edited.email = true
	}
	if patch.Phone != nil {
		c.form.Phone = textutil.CleanLine(*patch.Phone, maxLineLength)
		c.edited.phone = true
	}
	if patch.Address != nil {
		c.form.Address = textutil.CleanMultiline(*patch.Address, maxMultilineLength)
		c.edited.address = true
	}
	if patch.Notes != nil {
		c.form.Notes = textutil.CleanMultiline(*patch.Notes, maxMultilineLength)
		c.edited.notes = true
	}
	return c.viewLocked(), nil
}

// View returns the current checkout state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Submit places the cart as an order. See the package errors for rejection reasons;
// a failed order write returns a retryable *SubmitError and leaves the cart as it was.
func (c *Controller) Submit(ctx context.Context, state identity.State) (Outcome, error) {
	if !c.submitting.CompareAndSwap(false, true) {
		return Outcome{}, ErrSubmitInProgress
	}
	defer c.submitting.Store(false)

	if !state.IsAuthenticated() && !c.allowGuest {
		return Outcome{}, ErrLoginRequired
	}

	// Snapshot before taking mu: cart listeners take mu while the cart holds its own locks.
	snap := c.cart.Snapshot()

	c.mu.Lock()
	c.switchOwnerLocked(state)
	form := c.form
	if missing := missingFields(form); len(missing) > 0 {
		c.mu.Unlock()
		return Outcome{}, &ValidationError{Missing: missing}
	}
	if snap.Empty() {
		c.phase = PhaseEmptyCart
		c.summary = summaryFrom(snap)
		c.mu.Unlock()
		return Outcome{}, ErrCartEmpty
	}
	c.phase = PhaseSubmitting
	c.mu.Unlock()

	code := c.nextCode(ctx)
	order := domain.Order{
		OrderCode:   code,
		UserID:      state.UserID(),
		Customer:    form,
		Items:       itemsFrom(snap.Lines),
		TotalAmount: snap.TotalPrice,
		Status:      domain.OrderStatusPending,
		CreatedAt:   c.now(),
	}

	id, err := c.orders.Create(ctx, order)
	if err != nil {
		c.logger(ctx, "checkout.order_failed", map[string]any{
			"orderCode": code,
			"userId":    order.UserID,
			"error":     err,
		})
		c.mu.Lock()
		if len(c.summary.Lines) == 0 {
			c.phase = PhaseEmptyCart
		} else {
			c.phase = PhaseForm
		}
		c.mu.Unlock()
		return Outcome{}, &SubmitError{Retryable: true, Message: retryMessage, cause: err}
	}

	// The order is durable from here on; nothing below can undo it. Only the
	// ordered quantities leave the cart so lines added mid-submit survive.
	if err := c.cart.Subtract(ctx, snap.Lines); err != nil {
		c.logger(ctx, "checkout.cart_clear_failed", map[string]any{"orderCode": code, "error": err})
	}

	confirmation := confirmationText(code, order.TotalAmount)
	after := c.cart.Snapshot()

	c.mu.Lock()
	c.resetFormLocked()
	c.confirmation = confirmation
	c.summary = summaryFrom(after)
	if after.Empty() {
		c.phase = PhaseEmptyCart
	} else {
		c.phase = PhaseForm
	}
	c.mu.Unlock()

	msg := c.composer.OrderPlaced(code, order.TotalAmount)
	msg.DispatchID = c.dispatcher.Dispatch(ctx, msg)

	next := NextStay
	if state.IsAuthenticated() {
		next = NextOrderHistory
	}

	c.logger(ctx, "checkout.order_placed", map[string]any{
		"orderId":    id,
		"orderCode":  code,
		"userId":     order.UserID,
		"total":      order.TotalAmount,
		"itemCount":  order.ItemCount(),
		"dispatchId": msg.DispatchID,
	})

	return Outcome{
		OrderID:      id,
		OrderCode:    code,
		Total:        order.TotalAmount,
		Confirmation: confirmation,
		Message:      msg,
		Next:         next,
	}, nil
}

// nextCode draws from the configured generator and falls back to NewOrderCode
// when it yields something that is not an MK-#### code.
func (c *Controller) nextCode(ctx context.Context) string {
	code := c.codes()
	if IsOrderCode(code) {
		return code
	}
	c.logger(ctx, "checkout.order_code_invalid", map[string]any{"orderCode": code})
	return NewOrderCode()
}

// ResetForm discards the customer details and the last confirmation. Sign-in
// and sign-out call it so one shopper's details never reach the next.
func (c *Controller) ResetForm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetFormLocked()
	c.owner = ""
	c.confirmation = ""
}

func (c *Controller) resetFormLocked() {
	c.form = domain.CustomerInfo{}
	c.edited = editedFields{}
	c.prefilled = false
}

// switchOwnerLocked drops a form that was filled while a different user was
// signed in. Signing in from a guest form keeps what the guest typed.
func (c *Controller) switchOwnerLocked(state identity.State) {
	uid := ""
	if state.IsAuthenticated() {
		uid = state.UserID()
	}
	if c.owner != "" && c.owner != uid {
		c.resetFormLocked()
	}
	c.owner = uid
}

func (c *Controller) onCartChanged(snap cart.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary = summaryFrom(snap)
	if snap.Empty() && c.phase != PhaseSubmitting {
		c.phase = PhaseEmptyCart
	}
}

func (c *Controller) viewLocked() View {
	summary := c.summary
	summary.Lines = append([]domain.CartLine(nil), c.summary.Lines...)
	return View{
		Phase:        c.phase,
		Form:         c.form,
		Summary:      summary,
		Confirmation: c.confirmation,
	}
}

func summaryFrom(snap cart.Snapshot) Summary {
	shipping := snap.Shipping
	if shipping == "" {
		shipping = domain.ShippingLabel
	}
	return Summary{
		Lines:      snap.Lines,
		TotalItems: snap.TotalItems,
		TotalPrice: snap.TotalPrice,
		Shipping:   shipping,
	}
}

func itemsFrom(lines []domain.CartLine) []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, domain.OrderItem{
			ProductID:   line.ID,
			ProductName: line.Name,
			Quantity:    line.Quantity,
			Price:       line.Price,
		})
	}
	return items
}

func missingFields(form domain.CustomerInfo) []string {
	var missing []string
	for _, field := range []struct {
		name  string
		value string
	}{
		{"name", form.Name},
		{"email", form.Email},
		{"phone", form.Phone},
		{"address", form.Address},
	} {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	return missing
}

func confirmationText(code string, total int64) string {
	return fmt.Sprintf("Order Placed Successfully! 🎉\nYour Order ID is: #%s\nTotal Amount: ₹%d\nSave this for tracking.", code, total)
}
