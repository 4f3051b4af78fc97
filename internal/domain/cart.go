package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Totals are the denormalized cart aggregates. TotalItems counts
// distinct lines, not summed quantities. TotalAmount is the sum of
// unit price times quantity over all lines.
type Totals struct {
	TotalItems  int
	TotalAmount decimal.Decimal
}

type Cart struct {
	ID      int64
	OwnerID string
	Totals  Totals
	Lines   []CartLine

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartLine is one line item of a cart. A nil VariantID means the base
// product with no variant selected; (CartID, ProductID, VariantID) is
// the line's identity key. Snapshot fields are captured at creation
// time when the schema stores them; HasSnapshot reports whether
// UnitPrice is the locked-in price or was re-resolved live.
type CartLine struct {
	ID        int64
	CartID    int64
	ProductID int64
	VariantID *int64
	Quantity  int

	UnitPrice   Money
	HasSnapshot bool

	ProductName  string
	ImageURL     string
	VariantSKU   string
	VariantAttrs map[string]string

	CreatedAt time.Time
}

// Subtotal is the line's contribution to the cart's TotalAmount.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(l.Quantity).Amount
}

// ResolvedLine holds the authoritative unit price and identity
// attributes for a (product, variant) pair at resolution time.
type ResolvedLine struct {
	UnitPrice    Money
	ProductName  string
	ImageURL     string
	VariantSKU   string
	VariantAttrs map[string]string
}

type AddLineResult struct {
	Totals     Totals
	Line       CartLine
	WasNewLine bool
}

type RemoveLineResult struct {
	Totals        Totals
	RemovedLineID int64
}
