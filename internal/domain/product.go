package domain

// Product is read-only from the cart mechanism's perspective.
type Product struct {
	ID       int64
	Name     string
	Price    Money
	ImageURL string
}

// ProductVariant belongs to a product and may override its price.
// A nil Price means the product's base price applies.
type ProductVariant struct {
	ID        int64
	ProductID int64
	SKU       string
	Price     *Money
	Attrs     map[string]string
}

// Session identifies the authenticated caller, as resolved from the
// external identity provider's token.
type Session struct {
	ID    string
	Role  string
	Email string
}
