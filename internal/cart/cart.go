package cart

import (
	"errors"
	"fmt"
	"sync"

	"pos-terminal/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	ErrOutOfStock = errors.New("out of stock")
	ErrNotInCart  = errors.New("product not in cart")
)

// StockLookup returns the live catalog entry for a product
type StockLookup interface {
	Lookup(productID string) (domain.Product, bool)
}

// StockLimitError is returned when a quantity change would exceed the live
// available stock. It matches ErrOutOfStock with errors.Is.
type StockLimitError struct {
	ProductID string
	Requested int
	Available int
}

func (e *StockLimitError) Error() string {
	return fmt.Sprintf("cannot exceed available stock for %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *StockLimitError) Is(target error) bool {
	return target == ErrOutOfStock
}

// Cart is the in-progress sale of one terminal. Lines keep insertion order and
// there is at most one line per product. Every mutation runs under one lock.
type Cart struct {
	stock StockLookup

	mu    sync.RWMutex
	lines []domain.CartLine
}

// New creates an empty cart validating quantities against stock
func New(stock StockLookup) *Cart {
	return &Cart{stock: stock}
}

// AddItem adds one unit of product. A product already in the cart is bumped
// by one against live stock; a new product must be in stock as given.
func (c *Cart) AddItem(product domain.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(product.ID); i >= 0 {
		return c.adjustLocked(i, 1)
	}

	if !product.InStock() {
		return &StockLimitError{ProductID: product.ID, Requested: 1, Available: product.QuantityAvailable}
	}

	c.lines = append(c.lines, domain.CartLine{
		ProductID: product.ID,
		Name:      product.Name,
		Price:     product.Price,
		Image:     product.Image,
		Quantity:  1,
	})
	return nil
}

// AdjustQuantity changes the quantity of productID by delta. Reaching zero or
// below removes the line. Any other result is checked against the live
// catalog, not the snapshot taken at add time; a product missing from the
// catalog counts as zero available.
func (c *Cart) AdjustQuantity(productID string, delta int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(productID)
	if i < 0 {
		return ErrNotInCart
	}
	return c.adjustLocked(i, delta)
}

func (c *Cart) adjustLocked(i, delta int) error {
	line := c.lines[i]
	newQuantity := line.Quantity + delta

	if newQuantity <= 0 {
		c.removeAt(i)
		return nil
	}

	available := 0
	if p, ok := c.stock.Lookup(line.ProductID); ok {
		available = p.QuantityAvailable
	}
	if newQuantity > available {
		return &StockLimitError{ProductID: line.ProductID, Requested: newQuantity, Available: available}
	}

	c.lines[i].Quantity = newQuantity
	return nil
}

// RemoveItem deletes the line for productID if present
func (c *Cart) RemoveItem(productID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(productID); i >= 0 {
		c.removeAt(i)
	}
}

// Clear empties the cart
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
}

// Lines returns a copy of the lines in insertion order
func (c *Cart) Lines() []domain.CartLine {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Total recomputes Σ(price × quantity) over the current lines
func (c *Cart) Total() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.SumLines(c.lines)
}

// Snapshot returns lines and total read under one lock
func (c *Cart) Snapshot() ([]domain.CartLine, decimal.Decimal) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.CartLine, len(c.lines))
	copy(out, c.lines)
	return out, domain.SumLines(out)
}

// Len returns the number of lines
func (c *Cart) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.lines)
}

// QuantityOf returns the quantity of productID in the cart, 0 when absent
func (c *Cart) QuantityOf(productID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if i := c.indexOf(productID); i >= 0 {
		return c.lines[i].Quantity
	}
	return 0
}

func (c *Cart) indexOf(productID string) int {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(i int) {
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
}
