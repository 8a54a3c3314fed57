package checkout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/cart"
	domain "github.com/pulkitk069-maker/Shop.with.mukuu1/internal/domain"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/identity"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/notify"
)

type fakeOrders struct {
	mu      sync.Mutex
	orders  []domain.Order
	calls   int
	failN   int
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeOrders) Create(ctx context.Context, order domain.Order) (string, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	block, entered := f.block, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if call <= f.failN {
		return "", errors.New("firestore unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, order)
	return "order-" + order.OrderCode, nil
}

func (f *fakeOrders) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingDispatcher struct {
	mu       sync.Mutex
	messages []notify.OutboundMessage
}

func (d *recordingDispatcher) Dispatch(_ context.Context, msg notify.OutboundMessage) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, msg)
	return "dispatch-1"
}

type fixture struct {
	store      *cart.Store
	orders     *fakeOrders
	dispatcher *recordingDispatcher
	controller *Controller
}

func newFixture(t *testing.T, allowGuest bool) *fixture {
	t.Helper()
	composer, err := notify.NewComposer("", "")
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}
	f := &fixture{
		store:      cart.NewStore(cart.StoreDeps{Key: "session-1"}),
		orders:     &fakeOrders{},
		dispatcher: &recordingDispatcher{},
	}
	codes := []string{"MK-4821", "MK-1307", "MK-9999"}
	next := 0
	f.controller, err = NewController(Deps{
		Cart:       f.store,
		Orders:     f.orders,
		Composer:   composer,
		Dispatcher: f.dispatcher,
		AllowGuest: allowGuest,
		Codes: func() string {
			code := codes[next%len(codes)]
			next++
			return code
		},
		Clock: func() time.Time { return time.Date(2026, 7, 1, 8, 30, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return f
}

func ptr(s string) *string { return &s }

var asha = identity.Authenticated(domain.Profile{UID: "uid-asha", Email: "asha@example.com", DisplayName: "Asha Rao"})

func fillForm(t *testing.T, c *Controller) {
	t.Helper()
	if _, err := c.Edit(FormPatch{Phone: ptr("9876543210"), Address: ptr("12 MG Road, Bengaluru")}); err != nil {
		t.Fatalf("Edit: %v", err)
	}
}

func TestOpenPhases(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	if view := f.controller.Open(ctx, asha); view.Phase != PhaseEmptyCart {
		t.Fatalf("expected empty_cart, got %s", view.Phase)
	}

	_ = f.store.Add(ctx, cart.Item{ID: "p1", Name: "Scarf", Price: 500})
	if view := f.controller.Open(ctx, identity.Anonymous()); view.Phase != PhaseLoginRequired {
		t.Fatalf("expected login_required, got %s", view.Phase)
	}
	if _, err := f.controller.Edit(FormPatch{Name: ptr("x")}); !errors.Is(err, ErrNotEditable) {
		t.Fatalf("expected ErrNotEditable, got %v", err)
	}

	view := f.controller.Open(ctx, asha)
	if view.Phase != PhaseForm {
		t.Fatalf("expected form, got %s", view.Phase)
	}
	if view.Form.Name != "Asha Rao" || view.Form.Email != "asha@example.com" {
		t.Fatalf("expected pre-filled form, got %+v", view.Form)
	}
	if view.Summary.TotalPrice != 500 || view.Summary.Shipping != "Free" {
		t.Fatalf("unexpected summary %+v", view.Summary)
	}
}

func TestOpenWithGuestCheckoutAllowed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	_ = f.store.Add(ctx, cart.Item{ID: "p1", Name: "Scarf", Price: 500})

	view := f.controller.Open(ctx, identity.Anonymous())
	if view.Phase != PhaseForm || view.Form.Name != "" {
		t.Fatalf("expected empty guest form, got %+v", view)
	}
}

func TestPrefillHappensOnceAndRespectsEdits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	_ = f.store.Add(ctx, cart.Item{ID: "p1", Name: "Scarf", Price: 500})

	f.controller.Open(ctx, asha)
	if _, err := f.controller.Edit(FormPatch{Name: ptr("  A. Rao  ")}); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if _, err := f.controller.Edit(FormPatch{Email: ptr("")}); err != nil {
		t.Fatalf("Edit: %v", err)
	}

	other := identity.Authenticated(domain.Profile{UID: "uid-asha", Email: "new@example.com", DisplayName: "Someone Else"})
	view := f.controller.Open(ctx, other)
	if view.Form.Name != "A. Rao" {
		t.Fatalf("edited name was overwritten: %q", view.Form.Name)
	}
	if view.Form.Email != "" {
		t.Fatalf("pre-fill ran twice: %q", view.Form.Email)
	}
}

func TestPrefillSkipsEditedFieldOnFirstOpen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	_ = f.store.Add(ctx, cart.Item{ID: "p1", Name: "Scarf", Price: 500})

	f.controller.Open(ctx, identity.Anonymous())
	_, _ = f.controller.Edit(FormPatch{Name: ptr("Guest Name")})

	view := f.controller.Open(ctx, asha)
	if view.Form.Name != "Guest Name" {
		t.Fatalf("edited name replaced by pre-fill: %q", view.Form.Name)
	}
	if view.Form.Email != "asha@example.com" {
		t.Fatalf("untouched email should be pre-filled, got %q", view.Form.Email)
	}
}

func TestSubmitSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	_ = f.store.Add(ctx, cart.Item{ID: "p1", Name: "Scarf", Price: 500})
	_ = f.store.Add(ctx, cart.Item{ID: "p1", Name: "Scarf", Price: 500})

	f.controller.Open(ctx, asha)
	fillForm(t, f.controller)

	outcome, err := f.controller.Submit(ctx, asha)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !IsOrderCode(outcome.OrderCode) || outcome.OrderCode != "MK-4821" {
		t.Fatalf("unexpected order code %q", outcome.OrderCode)
	}
	if outcome.Total != 1000 || outcome.Next != NextOrderHistory || outcome.OrderID != "order-MK-4821" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	wantConfirmation := "Order Placed Successfully! 🎉\nYour Order ID is: #MK-4821\nTotal Amount: ₹1000\nSave this for tracking."
	if outcome.Confirmation != wantConfirmation {
		t.Fatalf("unexpected confirmation %q", outcome.Confirmation)
	}
	if !strings.HasPrefix(outcome.Message.URL, "https://wa.me/919876543210?text=") || outcome.Message.DispatchID != "dispatch-1" {
		t.Fatalf("unexpected message %+v", outcome.Message)
	}

	order := f.orders.orders[0]
	if order.UserID != "uid-asha" || order.Status != domain.OrderStatusPending || order.TotalAmount != 1000 {
		t.Fatalf("unexpected order %+v", order)
	}
	if len(order.Items) != 1 || order.Items[0] != (domain.OrderItem{ProductID: "p1", ProductName: "Scarf", Quantity: 2, Price: 500}) {
		t.Fatalf("unexpected items %+v", order.Items)
	}
	if order.Customer.Phone != "9876543210" || order.Customer.Name != "Asha Rao" {
		t.Fatalf("unexpected customer %+v", order.Customer)
	}

	if f.store.TotalItems() != 0 {
		t.Fatalf("expected cart cleared after success")
	}
	view := f.controller.View()
	if view.Phase != PhaseEmptyCart || view.Form != (domain.CustomerInfo{}) || view.Confirmation != wantConfirmation {
		t.Fatalf("unexpected view after success %+v", view)
	}
	if len(f.dispatcher.messages) != 1 {
		t.Fatalf("expected one dispatched message")
	}
}

func TestSubmitGuestStays(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	_ = f.store.Add(ctx, cart.Item{ID: "p1", Name: "Scarf", Price: 500})
	f.controller.Open(ctx, identity.Anonymous())
	_, _ = f.controller.Edit(FormPatch{Name: ptr("Guest"), Email: ptr("g@example.com"), Phone: ptr("1"), Address: ptr("Somewhere")})

	outcome, err := f.controller.Submit(ctx, identity.Anonymous())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if outcome.Next != NextStay || f.orders.orders[0].UserID != "guest" {
		t.Fatalf("unexpected guest outcome %+v / %+v", outcome, f.orders.orders[0])
	}
}

func TestSubmitRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("login required", func(t *testing.T) {
		f := newFixture(t, false)
		_ = f.store.Add(ctx, cart.Item{ID: "p1", Price: 500})
		if _, err := f.controller.Submit(ctx, identity.Anonymous()); !errors.Is(err, ErrLoginRequired) {
			t.Fatalf("expected ErrLoginRequired, got %v", err)
		}
		if f.orders.callCount() != 0 {
			t.Fatalf("repository must not be called")
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		f := newFixture(t, false)
		_ = f.store.Add(ctx, cart.Item{ID: "p1", Price: 500})
		f.controller.Open(ctx, asha)
		_, _ = f.controller.Edit(FormPatch{Phone: ptr("   ")})

		_, err := f.controller.Submit(ctx, asha)
		var validation *ValidationError
		if !errors.As(err, &validation) || !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if strings.Join(validation.Missing, ",") != "phone,address" {
			t.Fatalf("unexpected missing fields %v", validation.Missing)
		}
		if f.orders.callCount() != 0 {
			t.Fatalf("repository must not be called")
		}
	})

	t.Run("empty cart", func(t *testing.T) {
		f := newFixture(t, false)
		_ = f.store.Add(ctx, cart.Item{ID: "p1", Price: 500})
		f.controller.Open(ctx, asha)
		fillForm(t, f.controller)
		_ = f.store.Clear(ctx)

		if _, err := f.controller.Submit(ctx, asha); !errors.Is(err, ErrCartEmpty) {
			t.Fatalf("expected ErrCartEmpty, got %v", err)
		}
		if f.orders.callCount() != 0 {
			t.Fatalf("repository must not be called")
		}
	})
}

func TestSubmitFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.orders.failN = 1
	_ = f.store.Add(ctx, cart.Item{ID: "p1", Name: "Scarf", Price: 500})
	f.controller.Open(ctx, asha)
	fillForm(t, f.controller)

	_, err := f.controller.Submit(ctx, asha)
	var submitErr *SubmitError
	if !errors.As(err, &submitErr) || !submitErr.Retryable || submitErr.Message != "Failed to place order. Please try again." {
		t.Fatalf("expected retryable SubmitError, got %v", err)
	}
	if !errors.Is(err, ErrOrderFailed) {
		t.Fatalf("expected ErrOrderFailed in chain")
	}
	if f.store.TotalItems() != 1 {
		t.Fatalf("cart must be untouched after failure")
	}
	view := f.controller.View()
	if view.Phase != PhaseForm || view.Form.Phone != "9876543210" {
		t.Fatalf("expected form preserved after failure, got %+v", view)
	}
	if len(f.dispatcher.messages) != 0 {
		t.Fatalf("no message may be dispatched for a failed order")
	}

	outcome, err := f.controller.Submit(ctx, asha)
	if err != nil {
		t.Fatalf("retry Submit: %v", err)
	}
	if outcome.OrderCode != "MK-1307" {
		t.Fatalf("expected a fresh code on retry, got %s", outcome.OrderCode)
	}
	if f.store.TotalItems() != 0 {
		t.Fatalf("expected cart cleared after retry")
	}
}

func TestSubmitReentrancyGuard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.orders.block = make(chan struct{})
	f.orders.entered = make(chan struct{}, 1)
	_ = f.store.Add(ctx, cart.Item{ID: "p1", Name: "Scarf", Price: 500})
	f.controller.Open(ctx, asha)
	fillForm(t, f.controller)

	done := make(chan error, 1)
	go func() {
		_, err := f.controller.Submit(ctx, asha)
		done <- err
	}()
	<-f.orders.entered

	if view := f.controller.View(); view.Phase != PhaseSubmitting {
		t.Fatalf("expected submitting, got %s", view.Phase)
	}
	if _, err := f.controller.Submit(ctx, asha); !errors.Is(err, ErrSubmitInProgress) {
		t.Fatalf("expected ErrSubmitInProgress, got %v", err)
	}
	if _, err := f.controller.Edit(FormPatch{Notes: ptr("late")}); !errors.Is(err, ErrNotEditable) {
		t.Fatalf("expected edits to be rejected while submitting, got %v", err)
	}

	// Cart changes during submit update the summary but not the phase.
	_ = f.store.Add(ctx, cart.Item{ID: "p2", Name: "Bag", Price: 900})
	if view := f.controller.View(); view.Phase != PhaseSubmitting || view.Summary.TotalItems != 2 {
		t.Fatalf("unexpected view during submit %+v", view)
	}

	close(f.orders.block)
	if err := <-done; err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if f.orders.callCount() != 1 {
		t.Fatalf("expected exactly one repository write, got %d", f.orders.callCount())
	}
	if items := f.orders.orders[0].Items; len(items) != 1 || items[0].ProductID != "p1" {
		t.Fatalf("order must reflect the snapshot taken at submit, got %+v", items)
	}
}

func TestSubmitKeepsLinesAddedWhileWriting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.orders.block = make(chan struct{})
	f.orders.entered = make(chan struct{}, 1)
	_ = f.store.Add(ctx, cart.Item{ID: "p1", Name: "Scarf", Price: 500})
	f.controller.Open(ctx, asha)
	fillForm(t, f.controller)

	done := make(chan error, 1)
	go func() {
		_, err := f.controller.Submit(ctx, asha)
		done <- err
	}()
	<-f.orders.entered

	_ = f.store.Add(ctx, cart.Item{ID: "p2", Name: "Bag", Price: 900})
	_ = f.store.Add(ctx, cart.Item{ID: "p1", Name: "Scarf", Price: 500})
	close(f.orders.block)
	if err := <-done; err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if items := f.orders.orders[0].Items; len(items) != 1 || items[0].Quantity != 1 {
		t.Fatalf("order must hold only the snapshot, got %+v", items)
	}
	lines := f.store.Lines()
	if len(lines) != 2 || lines[0].ID != "p1" || lines[0].Quantity != 1 || lines[1].ID != "p2" {
		t.Fatalf("lines added during the write must stay in the cart, got %+v", lines)
	}
	if view := f.controller.View(); view.Phase != PhaseForm || view.Summary.TotalItems != 2 {
		t.Fatalf("expected form with the remaining lines, got %+v", view)
	}
}

func TestSwitchingUserDiscardsPreviousForm(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	_ = f.store.Add(ctx, cart.Item{ID: "p1", Name: "Scarf", Price: 500})
	f.controller.Open(ctx, asha)
	fillForm(t, f.controller)

	ravi := identity.Authenticated(domain.Profile{UID: "uid-ravi", Email: "ravi@example.com", DisplayName: "Ravi Kumar"})
	view := f.controller.Open(ctx, ravi)
	if view.Form.Name != "Ravi Kumar" || view.Form.Email != "ravi@example.com" {
		t.Fatalf("expected ravi's details, got %+v", view.Form)
	}
	if view.Form.Phone != "" || view.Form.Address != "" {
		t.Fatalf("previous user's details leaked: %+v", view.Form)
	}

	// A submit by a different user without reopening starts from an empty form.
	f.controller.Open(ctx, asha)
	fillForm(t, f.controller)
	var verr *ValidationError
	if _, err := f.controller.Submit(ctx, ravi); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if f.orders.callCount() != 0 {
		t.Fatalf("no order may be written with another user's details")
	}

	// Signing out clears the form too.
	f.controller.Open(ctx, asha)
	fillForm(t, f.controller)
	f.controller.ResetForm()
	if view := f.controller.View(); view.Form != (domain.CustomerInfo{}) {
		t.Fatalf("expected empty form after reset, got %+v", view.Form)
	}
	if view := f.controller.Open(ctx, asha); view.Form.Email != "asha@example.com" {
		t.Fatalf("expected pre-fill after reset, got %+v", view.Form)
	}
}

func TestCartListenerMovesToEmptyCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	_ = f.store.Add(ctx, cart.Item{ID: "p1", Name: "Scarf", Price: 500})
	f.controller.Open(ctx, asha)

	_ = f.store.Remove(ctx, "p1")
	if view := f.controller.View(); view.Phase != PhaseEmptyCart || view.Summary.TotalItems != 0 {
		t.Fatalf("expected empty_cart after removing last line, got %+v", view)
	}

	f.controller.Close()
	_ = f.store.Add(ctx, cart.Item{ID: "p1", Name: "Scarf", Price: 500})
	if view := f.controller.View(); view.Summary.TotalItems != 0 {
		t.Fatalf("closed controller must not observe the cart")
	}
}

func TestSubmitReplacesMalformedOrderCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.controller.codes = func() string { return "ORDER-1" }
	_ = f.store.Add(ctx, cart.Item{ID: "p1", Name: "Scarf", Price: 500})
	f.controller.Open(ctx, asha)
	fillForm(t, f.controller)

	outcome, err := f.controller.Submit(ctx, asha)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !IsOrderCode(outcome.OrderCode) || f.orders.orders[0].OrderCode != outcome.OrderCode {
		t.Fatalf("expected a generated MK code, got %q", outcome.OrderCode)
	}
}

func TestNewOrderCodeRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		code := NewOrderCode()
		if !IsOrderCode(code) {
			t.Fatalf("unexpected code %q", code)
		}
	}
	if IsOrderCode("MK-0999") || IsOrderCode("MK-10000") || IsOrderCode("mk-1234") {
		t.Fatalf("IsOrderCode accepted an invalid code")
	}
}
