package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one product in an in-progress sale. Name, price and image are
// copied when the line is created and never follow later catalog changes.
type CartLine struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image,omitempty"`
	Quantity  int             `json:"quantity"`
}

func (l CartLine) MarshalJSON() ([]byte, error) {
	type plain CartLine
	return json.Marshal(struct {
		plain
		Price json.Number `json:"price"`
	}{
		plain: plain(l),
		Price: json.Number(l.Price.String()),
	})
}

// Subtotal returns price × quantity for the line
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// SumLines recomputes the total of the given lines
func SumLines(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// SaleRequest is the body submitted to POST /sales
type SaleRequest struct {
	Products    []CartLine
	TotalAmount decimal.Decimal
}

func (r SaleRequest) MarshalJSON() ([]byte, error) {
	// The API expects totalAmount as a plain JSON number.
	return json.Marshal(struct {
		Products    []CartLine  `json:"products"`
		TotalAmount json.Number `json:"totalAmount"`
	}{
		Products:    r.Products,
		TotalAmount: json.Number(r.TotalAmount.StringFixed(2)),
	})
}

// Sale is the server-assigned record returned by POST /sales
type Sale struct {
	ID          string
	Timestamp   time.Time
	CashierID   string
	TotalAmount decimal.NullDecimal
}

type saleWire struct {
	ID          string              `json:"id"`
	DocID       string              `json:"_id"`
	Timestamp   *time.Time          `json:"timestamp"`
	CreatedAt   *time.Time          `json:"createdAt"`
	CashierID   string              `json:"cashierId"`
	Cashier     string              `json:"cashier"`
	TotalAmount decimal.NullDecimal `json:"totalAmount"`
}

func (s *Sale) UnmarshalJSON(data []byte) error {
	var w saleWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*s = Sale{
		ID:          firstNonEmpty(w.ID, w.DocID),
		CashierID:   firstNonEmpty(w.CashierID, w.Cashier),
		TotalAmount: w.TotalAmount,
	}
	switch {
	case w.Timestamp != nil:
		s.Timestamp = *w.Timestamp
	case w.CreatedAt != nil:
		s.Timestamp = *w.CreatedAt
	}
	return nil
}

// Receipt is the immutable record of a completed sale
type Receipt struct {
	SaleID      string          `json:"sale_id"`
	Timestamp   time.Time       `json:"timestamp"`
	CashierID   string          `json:"cashier_id,omitempty"`
	CashierName string          `json:"cashier_name,omitempty"`
	Items       []CartLine      `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// NewReceipt merges the server sale with the submitted line snapshots. Missing
// server fields fall back to the client view: now for the timestamp and the
// submitted total for the amount.
func NewReceipt(sale Sale, submitted SaleRequest, cashierName string, now time.Time) *Receipt {
	items := make([]CartLine, len(submitted.Products))
	copy(items, submitted.Products)

	receipt := &Receipt{
		SaleID:      sale.ID,
		Timestamp:   sale.Timestamp,
		CashierID:   sale.CashierID,
		CashierName: cashierName,
		Items:       items,
		TotalAmount: submitted.TotalAmount,
	}
	if receipt.Timestamp.IsZero() {
		receipt.Timestamp = now
	}
	if sale.TotalAmount.Valid {
		receipt.TotalAmount = sale.TotalAmount.Decimal
	}
	return receipt
}
