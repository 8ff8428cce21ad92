package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProduct_UnmarshalAcceptsDocumentID(t *testing.T) {
	var products []Product
	raw := `[
		{"_id":"65a1","name":"Latte","category":"Coffee","price":3.5,"quantity":12,"image":"latte.png"},
		{"id":"p2","name":"Bagel","category":"Bakery","price":"2.25","quantity":0}
	]`
	require.NoError(t, json.Unmarshal([]byte(raw), &products))
	require.Len(t, products, 2)

	assert.Equal(t, "65a1", products[0].ID)
	assert.True(t, products[0].Price.Equal(decimal.RequireFromString("3.5")))
	assert.Equal(t, 12, products[0].QuantityAvailable)
	assert.True(t, products[0].InStock())

	assert.Equal(t, "p2", products[1].ID)
	assert.False(t, products[1].InStock())
}

func TestSaleRequest_MarshalUsesNumbers(t *testing.T) {
	req := SaleRequest{
		Products: []CartLine{
			{ProductID: "p1", Name: "Latte", Price: decimal.NewFromInt(10), Quantity: 2},
			{ProductID: "p2", Name: "Bagel", Price: decimal.NewFromInt(5), Quantity: 1},
		},
	}
	req.TotalAmount = SumLines(req.Products)

	data, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 25.0, decoded["totalAmount"])

	items := decoded["products"].([]interface{})
	require.Len(t, items, 2)
	first := items[0].(map[string]interface{})
	assert.Equal(t, "p1", first["productId"])
	assert.Equal(t, 10.0, first["price"])
	assert.Equal(t, 2.0, first["quantity"])
}

func TestSumLines_IsExact(t *testing.T) {
	lines := []CartLine{
		{ProductID: "a", Price: decimal.RequireFromString("0.10"), Quantity: 3},
		{ProductID: "b", Price: decimal.RequireFromString("0.20"), Quantity: 1},
	}
	assert.Equal(t, "0.50", SumLines(lines).StringFixed(2))
	assert.True(t, SumLines(nil).IsZero())
}

func TestSale_UnmarshalFallbacks(t *testing.T) {
	var sale Sale
	raw := `{"_id":"s1","createdAt":"2026-10-15T10:00:00Z","cashier":"u7"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &sale))

	assert.Equal(t, "s1", sale.ID)
	assert.Equal(t, "u7", sale.CashierID)
	assert.Equal(t, time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC), sale.Timestamp.UTC())
	assert.False(t, sale.TotalAmount.Valid)
}

func TestNewReceipt(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	submitted := SaleRequest{
		Products:    []CartLine{{ProductID: "p1", Name: "Latte", Price: decimal.NewFromInt(10), Quantity: 2}},
		TotalAmount: decimal.NewFromInt(20),
	}

	t.Run("server fields win", func(t *testing.T) {
		stamp := now.Add(-time.Minute)
		sale := Sale{
			ID:          "s1",
			Timestamp:   stamp,
			CashierID:   "u1",
			TotalAmount: decimal.NewNullDecimal(decimal.NewFromInt(20)),
		}
		receipt := NewReceipt(sale, submitted, "alice", now)

		assert.Equal(t, "s1", receipt.SaleID)
		assert.Equal(t, stamp, receipt.Timestamp)
		assert.Equal(t, "u1", receipt.CashierID)
		assert.Equal(t, "alice", receipt.CashierName)
		assert.Equal(t, submitted.Products, receipt.Items)
	})

	t.Run("client fallbacks", func(t *testing.T) {
		receipt := NewReceipt(Sale{ID: "s2"}, submitted, "alice", now)

		assert.Equal(t, now, receipt.Timestamp)
		assert.True(t, receipt.TotalAmount.Equal(decimal.NewFromInt(20)))
	})

	t.Run("items are copied", func(t *testing.T) {
		receipt := NewReceipt(Sale{ID: "s3"}, submitted, "", now)
		receipt.Items[0].Quantity = 99

		assert.Equal(t, 2, submitted.Products[0].Quantity)
	})
}
