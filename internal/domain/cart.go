package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartStatus is the lifecycle state of a cart line
type CartStatus string

const (
	// StatusInCart marks a line the user can still change
	StatusInCart CartStatus = "CART"
	// StatusPaid marks a frozen line created by checkout
	StatusPaid CartStatus = "PAID"
)

// String returns the human-readable form used in operation results
func (s CartStatus) String() string {
	switch s {
	case StatusInCart:
		return "in cart"
	case StatusPaid:
		return "paid"
	}
	return string(s)
}

// CartLine is one (user, product, status) row of the cart store
type CartLine struct {
	UserID           int64      `json:"userId"`
	ProductID        int64      `json:"productId"`
	Quantity         int        `json:"quantity"`
	Status           CartStatus `json:"status"`
	StatusDate       *time.Time `json:"statusDate,omitempty"`
	EstimatedArrival *time.Time `json:"estimatedArrival,omitempty"`
}

// CartItem is an in-cart line joined with its product
type CartItem struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Total returns price × quantity
func (i CartItem) Total() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderLine is a cart line of any status joined with its product name
type OrderLine struct {
	ProductID        int64      `json:"productId"`
	Name             string     `json:"name"`
	Quantity         int        `json:"quantity"`
	Status           CartStatus `json:"status"`
	EstimatedArrival *time.Time `json:"estimatedArrival,omitempty"`
}

// AddOutcome tells whether an add created a line or incremented an existing one
type AddOutcome int

const (
	LineInserted AddOutcome = iota
	LineIncremented
)

// CartSummaryRow is one row of the cart table shown next to the chat
type CartSummaryRow struct {
	Product     string          `json:"product"`
	PricePerQty decimal.Decimal `json:"pricePerQty"`
	Qty         int             `json:"qty"`
	Price       decimal.Decimal `json:"price"`
}

// CartSummary is the cart table plus its total
type CartSummary struct {
	Rows  []CartSummaryRow `json:"rows"`
	Total decimal.Decimal  `json:"total"`
}
