package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Product represents a sellable catalog entry as last observed from the POS API
type Product struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Category          string          `json:"category"`
	Price             decimal.Decimal `json:"price"`
	QuantityAvailable int             `json:"quantity"`
	Image             string          `json:"image,omitempty"`
}

// productWire accepts both "id" and the document-store style "_id".
type productWire struct {
	ID       string          `json:"id"`
	DocID    string          `json:"_id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Image    string          `json:"image"`
}

func (p *Product) UnmarshalJSON(data []byte) error {
	var w productWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*p = Product{
		ID:                firstNonEmpty(w.ID, w.DocID),
		Name:              w.Name,
		Category:          w.Category,
		Price:             w.Price,
		QuantityAvailable: w.Quantity,
		Image:             w.Image,
	}
	return nil
}

// InStock reports whether at least one unit is available
func (p Product) InStock() bool {
	return p.QuantityAvailable >= 1
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
