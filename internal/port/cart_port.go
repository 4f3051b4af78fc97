package port

import (
	"context"

	"github.com/northwind-commerce/cart-service/internal/domain"
)

// AddLineInput carries the identity key, quantity and the price/
// attribute snapshot resolved immediately before the mutation.
type AddLineInput struct {
	ProductID int64
	VariantID *int64
	Quantity  int
	Resolved  domain.ResolvedLine
}

type CartRepository interface {
	GetCart(ctx context.Context, ownerID string) (domain.Cart, error)

	// AddLine creates the owner's cart if absent, then either
	// increments the matching line's quantity or inserts a new line,
	// adjusting the cart aggregates in the same transaction.
	AddLine(ctx context.Context, ownerID string, input AddLineInput) (domain.AddLineResult, error)

	// RemoveLine deletes a single line owned by ownerID and reverses
	// its contribution to the cart aggregates in the same transaction.
	RemoveLine(ctx context.Context, ownerID string, lineID int64) (domain.RemoveLineResult, error)
}

type CatalogReader interface {
	Product(ctx context.Context, id int64) (domain.Product, error)
	Variant(ctx context.Context, id int64) (domain.ProductVariant, error)
}

// SessionResolver turns a bearer token into the caller's session.
type SessionResolver interface {
	Session(ctx context.Context, token string) (domain.Session, error)
}
