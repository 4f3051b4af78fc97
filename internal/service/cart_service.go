package service

import (
	"context"

	"github.com/northwind-commerce/cart-service/internal/domain"
	"github.com/northwind-commerce/cart-service/internal/port"
)

// CartService orchestrates cart mutations: input validation, price
// resolution, and delegation to the repository through the connection
// fallback runner. Concurrency correctness lives in the repository's
// transactions, not here.
type CartService struct {
	direct        port.CartRepository
	pooled        port.CartRepository
	catalog       port.CatalogReader
	pooledCatalog port.CatalogReader
}

// NewCartService wires the direct (preferred) and pooled (fallback)
// endpoints. Catalog resolution follows the same direct-first policy
// as the mutations. pooled and pooledCatalog may be nil, in which
// case there is no retry target and connectivity errors surface
// directly.
func NewCartService(direct, pooled port.CartRepository, catalog, pooledCatalog port.CatalogReader) *CartService {
	return &CartService{
		direct:        direct,
		pooled:        pooled,
		catalog:       catalog,
		pooledCatalog: pooledCatalog,
	}
}

type AddRequest struct {
	ProductID int64
	VariantID *int64
	Qty       int
}

func (s *CartService) AddToCart(ctx context.Context, ownerID string, req AddRequest) (domain.AddLineResult, error) {
	if ownerID == "" {
		return domain.AddLineResult{}, domain.E(domain.KindValidation, domain.CodeValidation, "ownerID is empty")
	}
	if req.ProductID <= 0 {
		return domain.AddLineResult{}, domain.E(domain.KindValidation, domain.CodeValidation, "productId must be positive")
	}
	if req.VariantID != nil && *req.VariantID <= 0 {
		return domain.AddLineResult{}, domain.E(domain.KindValidation, domain.CodeValidation, "variantId must be positive")
	}
	if req.Qty <= 0 {
		return domain.AddLineResult{}, domain.E(domain.KindValidation, domain.CodeValidation, "qty must be positive")
	}

	resolved, err := s.resolveLine(ctx, req.ProductID, req.VariantID)
	if err != nil {
		return domain.AddLineResult{}, err
	}

	input := port.AddLineInput{
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Quantity:  req.Qty,
		Resolved:  resolved,
	}

	return withFallback(ctx, s.direct, s.pooled, func(ctx context.Context, repo port.CartRepository) (domain.AddLineResult, error) {
		return repo.AddLine(ctx, ownerID, input)
	})
}

func (s *CartService) RemoveFromCart(ctx context.Context, ownerID string, lineID int64) (domain.RemoveLineResult, error) {
	if ownerID == "" {
		return domain.RemoveLineResult{}, domain.E(domain.KindValidation, domain.CodeValidation, "ownerID is empty")
	}
	if lineID <= 0 {
		return domain.RemoveLineResult{}, domain.E(domain.KindValidation, domain.CodeValidation, "lineId must be positive")
	}

	return withFallback(ctx, s.direct, s.pooled, func(ctx context.Context, repo port.CartRepository) (domain.RemoveLineResult, error) {
		return repo.RemoveLine(ctx, ownerID, lineID)
	})
}

func (s *CartService) GetCart(ctx context.Context, ownerID string) (domain.Cart, error) {
	if ownerID == "" {
		return domain.Cart{}, domain.E(domain.KindValidation, domain.CodeValidation, "ownerID is empty")
	}

	// Reads prefer the pooled endpoint.
	repo := s.pooled
	if repo == nil {
		repo = s.direct
	}

	return repo.GetCart(ctx, ownerID)
}

// resolveLine determines the authoritative unit price and identity
// attributes for a (product, variant) pair. Pure read, no side
// effects. A variant price override wins over the product base price.
func (s *CartService) resolveLine(ctx context.Context, productID int64, variantID *int64) (domain.ResolvedLine, error) {
	return withFallback(ctx, s.catalog, s.pooledCatalog, func(ctx context.Context, catalog port.CatalogReader) (domain.ResolvedLine, error) {
		product, err := catalog.Product(ctx, productID)
		if err != nil {
			return domain.ResolvedLine{}, err
		}

		resolved := domain.ResolvedLine{
			UnitPrice:   product.Price,
			ProductName: product.Name,
			ImageURL:    product.ImageURL,
		}

		if variantID == nil {
			return resolved, nil
		}

		variant, err := catalog.Variant(ctx, *variantID)
		if err != nil {
			if domain.KindOf(err) == domain.KindNotFound {
				return domain.ResolvedLine{}, domain.E(domain.KindValidation, domain.CodeInvalidVariant,
					"variant %d not found for product %d", *variantID, productID)
			}
			return domain.ResolvedLine{}, err
		}

		// A variant from a different product is an input error, never
		// silently ignored.
		if variant.ProductID != productID {
			return domain.ResolvedLine{}, domain.E(domain.KindValidation, domain.CodeInvalidVariant,
				"variant %d does not belong to product %d", *variantID, productID)
		}

		if variant.Price != nil {
			resolved.UnitPrice = *variant.Price
		}
		resolved.VariantSKU = variant.SKU
		resolved.VariantAttrs = variant.Attrs

		return resolved, nil
	})
}
