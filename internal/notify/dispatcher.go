package notify

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const defaultDispatchTimeout = 10 * time.Second

// DispatcherDeps wires the dependencies of a Dispatcher.
type DispatcherDeps struct {
	Opener  Opener
	Timeout time.Duration
	Clock   func() time.Time
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

// Dispatcher opens messages in the background. The caller never waits for or
// sees the outcome; failures and panics are logged.
type Dispatcher struct {
	opener  Opener
	timeout time.Duration
	now     func() time.Time
	logger  func(ctx context.Context, event string, fields map[string]any)

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy

	wg sync.WaitGroup
}

// NewDispatcher constructs a Dispatcher validating required dependencies.
func NewDispatcher(deps DispatcherDeps) (*Dispatcher, error) {
	if deps.Opener == nil {
		return nil, errors.New("notify dispatcher: opener is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	return &Dispatcher{
		opener:  deps.Opener,
		timeout: timeout,
		now:     clock,
		logger:  logger,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}, nil
}

// Dispatch assigns a dispatch id and opens msg on a separate goroutine. The
// goroutine keeps ctx values but not its cancellation.
func (d *Dispatcher) Dispatch(ctx context.Context, msg OutboundMessage) string {
	msg.DispatchID = d.newID()
	bg := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				d.logger(bg, "notify.dispatch_panicked", map[string]any{
					"dispatchId": msg.DispatchID,
					"orderCode":  msg.OrderCode,
					"panic":      fmt.Sprint(rec),
				})
			}
		}()

		runCtx, cancel := context.WithTimeout(bg, d.timeout)
		defer cancel()

		if err := d.opener.Open(runCtx, msg); err != nil {
			d.logger(bg, "notify.dispatch_failed", map[string]any{
				"dispatchId": msg.DispatchID,
				"orderCode":  msg.OrderCode,
				"channel":    msg.Channel,
				"error":      err,
			})
			return
		}
		d.logger(bg, "notify.dispatched", map[string]any{
			"dispatchId": msg.DispatchID,
			"orderCode":  msg.OrderCode,
			"channel":    msg.Channel,
		})
	}()
	return msg.DispatchID
}

// Wait blocks until in-flight dispatches finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) newID() string {
	d.entropyMu.Lock()
	defer d.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(d.now()), d.entropy).String()
}
