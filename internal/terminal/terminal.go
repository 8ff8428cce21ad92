package terminal

import (
	"context"
	"errors"
	"sync"
	"time"

	"pos-terminal/internal/cart"
	"pos-terminal/internal/catalog"
	"pos-terminal/internal/checkout"
	"pos-terminal/internal/domain"
	"pos-terminal/internal/session"

	"go.uber.org/zap"
)

var (
	ErrProductNotFound = errors.New("product not found in catalog")
)

// API is the remote surface a terminal needs
type API interface {
	catalog.Fetcher
	checkout.Submitter
}

// Deps are the collaborators and settings shared by every terminal
type Deps struct {
	API               API
	Logger            *zap.Logger
	RefreshInterval   time.Duration
	LowStockThreshold int
	Ticker            catalog.TickerFunc // nil uses a real ticker
	Now               func() time.Time   // nil uses time.Now
}

// ProductView is a catalog entry decorated with cart state for display
type ProductView struct {
	domain.Product
	InCart    int  `json:"in_cart"`
	Remaining int  `json:"remaining"`
	LowStock  bool `json:"low_stock"`
}

// Terminal is one open POS view: catalog, cart and checkout bound to a
// session. Open mounts it, Close tears it down.
type Terminal struct {
	session     *session.Session
	cache       *catalog.Cache
	refresher   *catalog.Refresher
	cart        *cart.Cart
	coordinator *checkout.Coordinator
	logger      *zap.Logger
	lowStock    int

	closeOnce sync.Once
}

// Open mounts a terminal for sess. The first catalog load happens before Open
// returns; if it fails the terminal still opens with an empty catalog and the
// background refresher keeps trying.
func Open(ctx context.Context, deps Deps, sess *session.Session) *Terminal {
	logger := deps.Logger.With(zap.String("cashier", sess.DisplayName()))

	var cacheOpts []catalog.CacheOption
	var checkoutOpts []checkout.Option
	if deps.Now != nil {
		cacheOpts = append(cacheOpts, catalog.WithClock(deps.Now))
		checkoutOpts = append(checkoutOpts, checkout.WithClock(deps.Now))
	}
	var refresherOpts []catalog.RefresherOption
	if deps.Ticker != nil {
		refresherOpts = append(refresherOpts, catalog.WithTicker(deps.Ticker))
	}

	cache := catalog.NewCache(deps.API, sess, logger, cacheOpts...)
	refresher := catalog.NewRefresher(cache, deps.RefreshInterval, logger, refresherOpts...)
	c := cart.New(cache)

	t := &Terminal{
		session:     sess,
		cache:       cache,
		refresher:   refresher,
		cart:        c,
		coordinator: checkout.NewCoordinator(c, deps.API, refresher, sess, logger, checkoutOpts...),
		logger:      logger.Named("terminal"),
		lowStock:    deps.LowStockThreshold,
	}

	if err := cache.Refresh(ctx); err != nil {
		t.logger.Warn("Initial catalog load failed", zap.Error(err))
	}

	// The refresher lives as long as the terminal, not the opening request.
	if err := refresher.Start(context.WithoutCancel(ctx)); err != nil {
		t.logger.Error("Failed to start catalog refresher", zap.Error(err))
	}

	t.logger.Info("Terminal opened", zap.Int("products", cache.Len()))
	return t
}

// Close stops background work and detaches the checkout. The cart is
// discarded; a submission still in flight has its result dropped.
func (t *Terminal) Close() {
	t.closeOnce.Do(func() {
		t.refresher.Stop()
		t.coordinator.Detach()
		t.cart.Clear()
		t.logger.Info("Terminal closed")
	})
}

func (t *Terminal) Session() *session.Session { return t.session }

func (t *Terminal) Catalog() *catalog.Cache { return t.cache }

func (t *Terminal) Cart() *cart.Cart { return t.cart }

func (t *Terminal) Checkout() *checkout.Coordinator { return t.coordinator }

func (t *Terminal) Refresher() *catalog.Refresher { return t.refresher }

// Products returns the catalog filtered by query with cart-aware stock
func (t *Terminal) Products(query string) []ProductView {
	products := t.cache.Search(query)
	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		inCart := t.cart.QuantityOf(p.ID)
		remaining := p.QuantityAvailable - inCart
		if remaining < 0 {
			remaining = 0
		}
		views = append(views, ProductView{
			Product:   p,
			InCart:    inCart,
			Remaining: remaining,
			LowStock:  remaining < t.lowStock,
		})
	}
	return views
}

// AddItem adds one unit of a catalog product to the cart
func (t *Terminal) AddItem(productID string) error {
	p, ok := t.cache.Lookup(productID)
	if !ok {
		return ErrProductNotFound
	}
	if err := t.cart.AddItem(p); err != nil {
		t.logger.Debug("Add to cart rejected", zap.String("product_id", productID), zap.Error(err))
		return err
	}
	return nil
}

// AdjustQuantity forwards to the cart. A line that is not in the cart is
// ignored.
func (t *Terminal) AdjustQuantity(productID string, delta int) error {
	err := t.cart.AdjustQuantity(productID, delta)
	if errors.Is(err, cart.ErrNotInCart) {
		t.logger.Debug("Adjust ignored, product not in cart", zap.String("product_id", productID))
		return nil
	}
	return err
}

// RemoveItem forwards to the cart
func (t *Terminal) RemoveItem(productID string) {
	t.cart.RemoveItem(productID)
}
