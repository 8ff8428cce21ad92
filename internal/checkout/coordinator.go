package checkout

import (
	"context"
	"sync"
	"time"

	"pos-terminal/internal/domain"
	"pos-terminal/internal/session"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Cart is the cart surface the coordinator needs
type Cart interface {
	Snapshot() ([]domain.CartLine, decimal.Decimal)
	Clear()
}

// Submitter sends a sale to the POS API
type Submitter interface {
	CreateSale(ctx context.Context, sess *session.Session, req domain.SaleRequest) (*domain.Sale, error)
}

// CatalogRefresher schedules a catalog refresh
type CatalogRefresher interface {
	Trigger()
}

// Outcome is delivered to observers when a submission ends
type Outcome struct {
	State   State
	Receipt *domain.Receipt
	Reason  string
}

// Observer receives checkout outcomes
type Observer func(Outcome)

// Coordinator submits the cart and owns the "last sale" receipt
type Coordinator struct {
	cart      Cart
	submitter Submitter
	refresher CatalogRefresher
	session   *session.Session
	logger    *zap.Logger
	now       func() time.Time

	mu        sync.Mutex
	state     State
	receipt   *domain.Receipt
	lastErr   *Error
	detached  bool
	observers []Observer
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithClock overrides time.Now for receipts without a server timestamp
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// NewCoordinator creates an idle coordinator for one terminal session
func NewCoordinator(cart Cart, submitter Submitter, refresher CatalogRefresher, sess *session.Session, logger *zap.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		cart:      cart,
		submitter: submitter,
		refresher: refresher,
		session:   sess,
		logger:    logger.Named("checkout"),
		now:       time.Now,
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers an outcome observer
func (c *Coordinator) Subscribe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// Checkout submits the current cart. Only one submission runs at a time; a
// call made while one is pending fails with ErrCheckoutInProgress. On success
// the cart is cleared and a refresh of the catalog is requested; on failure
// the cart is left as it was so the sale can be retried. Cancelling ctx after
// the submission has started does not abort it.
func (c *Coordinator) Checkout(ctx context.Context) (*domain.Receipt, error) {
	c.mu.Lock()
	if c.detached {
		c.mu.Unlock()
		return nil, ErrDetached
	}
	if !c.state.CanSubmit() {
		c.mu.Unlock()
		return nil, ErrCheckoutInProgress
	}

	lines, total := c.cart.Snapshot()
	if len(lines) == 0 {
		c.mu.Unlock()
		return nil, ErrEmptyCart
	}

	c.state = StateSubmitting
	c.receipt = nil
	c.lastErr = nil
	c.mu.Unlock()

	req := domain.SaleRequest{Products: lines, TotalAmount: total}

	c.logger.Info("Submitting sale",
		zap.Int("lines", len(lines)),
		zap.String("total", total.StringFixed(2)),
		zap.String("cashier", c.session.DisplayName()),
	)

	// Once sent a sale cannot be recalled, so the caller going away must not
	// abort it. The API client timeout still bounds the call.
	sale, err := c.submitter.CreateSale(context.WithoutCancel(ctx), c.session, req)

	c.mu.Lock()
	if c.detached {
		c.mu.Unlock()
		c.logger.Info("Discarding checkout result for closed terminal", zap.Bool("succeeded", err == nil))
		return nil, ErrDetached
	}

	if err != nil {
		checkoutErr := newError(err)
		c.state = StateFailed
		c.lastErr = checkoutErr
		observers := c.snapshotObservers()
		c.mu.Unlock()

		c.logger.Warn("Checkout failed, cart kept for retry", zap.String("reason", checkoutErr.Reason), zap.Error(err))
		notify(observers, Outcome{State: StateFailed, Reason: checkoutErr.Reason})
		return nil, checkoutErr
	}

	receipt := domain.NewReceipt(*sale, req, c.session.DisplayName(), c.now())
	c.cart.Clear()
	c.state = StateCompleted
	c.receipt = receipt
	observers := c.snapshotObservers()
	c.mu.Unlock()

	c.logger.Info("Sale completed",
		zap.String("sale_id", receipt.SaleID),
		zap.String("total", receipt.TotalAmount.StringFixed(2)),
	)

	if c.refresher != nil {
		c.refresher.Trigger()
	}
	notify(observers, Outcome{State: StateCompleted, Receipt: receipt})
	return receipt, nil
}

// State returns the current state
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Receipt returns the receipt of the last completed sale, or nil
func (c *Coordinator) Receipt() *domain.Receipt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receipt
}

// LastError returns the failure of the last submission, or nil
func (c *Coordinator) LastError() *Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// DismissReceipt closes the invoice and returns to Idle. Dismissing a failure
// acknowledges it; the cart is not touched either way.
func (c *Coordinator) DismissReceipt() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.IsTerminal() {
		c.state = StateIdle
		c.receipt = nil
		c.lastErr = nil
	}
}

// Detach marks the owning view as gone. Submissions already sent cannot be
// recalled; their results are dropped when they arrive.
func (c *Coordinator) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detached = true
	c.observers = nil
}

func (c *Coordinator) snapshotObservers() []Observer {
	out := make([]Observer, len(c.observers))
	copy(out, c.observers)
	return out
}

func notify(observers []Observer, outcome Outcome) {
	for _, o := range observers {
		o(outcome)
	}
}
