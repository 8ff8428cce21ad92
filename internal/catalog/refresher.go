package catalog

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrRefresherRunning = errors.New("catalog refresher already running")
)

// Ticker is the part of time.Ticker the refresher needs
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d
type TickerFunc func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker is the production TickerFunc
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Refresher keeps a Cache fresh in the background: on every tick and whenever
// Trigger is called. It owns exactly one goroutine between Start and Stop.
type Refresher struct {
	cache     *Cache
	interval  time.Duration
	newTicker TickerFunc
	logger    *zap.Logger

	trigger chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// RefresherOption configures a Refresher
type RefresherOption func(*Refresher)

// WithTicker replaces the ticker source
func WithTicker(fn TickerFunc) RefresherOption {
	return func(r *Refresher) {
		r.newTicker = fn
	}
}

// NewRefresher creates a stopped refresher for cache
func NewRefresher(cache *Cache, interval time.Duration, logger *zap.Logger, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		cache:     cache,
		interval:  interval,
		newTicker: NewTimeTicker,
		logger:    logger.Named("refresher"),
		trigger:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the background loop. The loop ends when ctx is cancelled or
// Stop is called.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return ErrRefresherRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	ticker := r.newTicker(r.interval)
	done := make(chan struct{})

	r.cancel = cancel
	r.done = done

	go r.run(ctx, ticker, done)

	r.logger.Info("Catalog refresher started", zap.Duration("interval", r.interval))
	return nil
}

// Stop cancels the loop and waits for it to exit. Safe to call repeatedly.
func (r *Refresher) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	r.logger.Info("Catalog refresher stopped")
}

// Running reports whether the loop is active
func (r *Refresher) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// Trigger requests an out-of-band refresh. Requests made while one is already
// pending are merged. Without a running loop the request waits for Start.
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

func (r *Refresher) run(ctx context.Context, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
		case <-r.trigger:
		}

		// Stop may race with a tick; do not start a fetch after cancellation.
		if ctx.Err() != nil {
			return
		}
		// Failures are recorded in the cache status and logged there.
		_ = r.cache.Refresh(ctx)
	}
}
