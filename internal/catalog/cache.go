package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pos-terminal/internal/domain"
	"pos-terminal/internal/session"

	"go.uber.org/zap"
)

var (
	ErrCatalogFetchFailed = errors.New("catalog fetch failed")
)

// Fetcher loads the full product list from the POS API
type Fetcher interface {
	ListProducts(ctx context.Context, sess *session.Session) ([]domain.Product, error)
}

// Status describes the freshness of the cached catalog
type Status struct {
	Loaded        bool      `json:"loaded"`
	LastRefreshed time.Time `json:"last_refreshed"`
	LastError     string    `json:"last_error,omitempty"`
	LastErrorAt   time.Time `json:"last_error_at"`
	Stale         bool      `json:"stale"`
}

type snapshot struct {
	products  []domain.Product
	index     map[string]int
	fetchedAt time.Time
}

// Cache holds the last fetched catalog. Each refresh swaps in a whole new
// snapshot, so readers never observe a mix of old and new products.
type Cache struct {
	fetcher Fetcher
	session *session.Session
	logger  *zap.Logger
	now     func() time.Time

	current atomic.Pointer[snapshot]

	refreshMu sync.Mutex

	statusMu  sync.RWMutex
	lastErr   error
	lastErrAt time.Time
}

// CacheOption configures a Cache
type CacheOption func(*Cache)

// WithClock overrides time.Now
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache creates an empty catalog cache bound to sess
func NewCache(fetcher Fetcher, sess *session.Session, logger *zap.Logger, opts ...CacheOption) *Cache {
	c := &Cache{
		fetcher: fetcher,
		session: sess,
		logger:  logger.Named("catalog"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.current.Store(&snapshot{index: map[string]int{}})
	return c
}

// Refresh fetches the catalog and replaces the snapshot. On failure the
// previous snapshot stays in place.
func (c *Cache) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	products, err := c.fetcher.ListProducts(ctx, c.session)
	if errors.Is(err, context.Canceled) {
		// Abandoned, not failed: the catalog is no more stale than before.
		c.logger.Debug("Catalog refresh cancelled", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrCatalogFetchFailed, err)
	}
	if err != nil {
		c.statusMu.Lock()
		c.lastErr = err
		c.lastErrAt = c.now()
		c.statusMu.Unlock()

		c.logger.Warn("Catalog refresh failed, keeping previous snapshot",
			zap.Int("cached_products", c.Len()),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", ErrCatalogFetchFailed, err)
	}

	next := &snapshot{
		products:  make([]domain.Product, 0, len(products)),
		index:     make(map[string]int, len(products)),
		fetchedAt: c.now(),
	}
	for _, p := range products {
		if _, dup := next.index[p.ID]; dup {
			c.logger.Warn("Duplicate product in catalog response", zap.String("product_id", p.ID))
			continue
		}
		next.index[p.ID] = len(next.products)
		next.products = append(next.products, p)
	}
	c.current.Store(next)

	c.statusMu.Lock()
	c.lastErr = nil
	c.statusMu.Unlock()

	c.logger.Debug("Catalog refreshed", zap.Int("products", len(next.products)))
	return nil
}

// Lookup returns the current product for id
func (c *Cache) Lookup(id string) (domain.Product, bool) {
	snap := c.current.Load()
	i, ok := snap.index[id]
	if !ok {
		return domain.Product{}, false
	}
	return snap.products[i], true
}

// Snapshot returns a copy of the current product list in server order
func (c *Cache) Snapshot() []domain.Product {
	snap := c.current.Load()
	out := make([]domain.Product, len(snap.products))
	copy(out, snap.products)
	return out
}

// Search returns products whose name or category contains term, ignoring case.
// An empty term returns the whole snapshot.
func (c *Cache) Search(term string) []domain.Product {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return c.Snapshot()
	}

	var out []domain.Product
	for _, p := range c.current.Load().products {
		if strings.Contains(strings.ToLower(p.Name), term) ||
			strings.Contains(strings.ToLower(p.Category), term) {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of cached products
func (c *Cache) Len() int {
	return len(c.current.Load().products)
}

// Status reports when the catalog was last loaded and whether the latest
// refresh failed
func (c *Cache) Status() Status {
	snap := c.current.Load()

	c.statusMu.RLock()
	defer c.statusMu.RUnlock()

	st := Status{
		Loaded:        !snap.fetchedAt.IsZero(),
		LastRefreshed: snap.fetchedAt,
		LastErrorAt:   c.lastErrAt,
		Stale:         c.lastErr != nil,
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}
