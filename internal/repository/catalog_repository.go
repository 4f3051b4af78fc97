package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/northwind-commerce/cart-service/internal/domain"
	"github.com/northwind-commerce/cart-service/internal/port"
)

// catalogRepository reads products and variants. The cart mechanism
// never writes to the catalog.
type catalogRepository struct {
	pool *pgxpool.Pool
}

func NewCatalog(pool *pgxpool.Pool) port.CatalogReader {
	return &catalogRepository{pool: pool}
}

func (r *catalogRepository) Product(ctx context.Context, id int64) (domain.Product, error) {
	var (
		product      domain.Product
		amount       decimal.Decimal
		currencyCode string
	)

	err := r.pool.QueryRow(ctx,
		`SELECT id, name, price, currency, image_url FROM products WHERE id = $1`,
		id,
	).Scan(&product.ID, &product.Name, &amount, &currencyCode, &product.ImageURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, domain.E(domain.KindNotFound, domain.CodeProductNotFound, "product %d not found", id)
	}
	if err != nil {
		return domain.Product{}, classify(err, "select product")
	}

	product.Price, err = newMoney(amount, currencyCode)
	if err != nil {
		return domain.Product{}, err
	}

	return product, nil
}

func (r *catalogRepository) Variant(ctx context.Context, id int64) (domain.ProductVariant, error) {
	var (
		variant      domain.ProductVariant
		override     decimal.NullDecimal
		currencyCode string
		attrsJSON    []byte
	)

	err := r.pool.QueryRow(ctx,
		`SELECT v.id, v.product_id, v.sku, v.price, v.attrs, p.currency
		 FROM product_variants v
		 JOIN products p ON p.id = v.product_id
		 WHERE v.id = $1`,
		id,
	).Scan(&variant.ID, &variant.ProductID, &variant.SKU, &override, &attrsJSON, &currencyCode)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ProductVariant{}, domain.E(domain.KindNotFound, domain.CodeVariantNotFound, "variant %d not found", id)
	}
	if err != nil {
		return domain.ProductVariant{}, classify(err, "select variant")
	}

	if override.Valid {
		price, err := newMoney(override.Decimal, currencyCode)
		if err != nil {
			return domain.ProductVariant{}, err
		}
		variant.Price = &price
	}

	if len(attrsJSON) > 0 {
		if err := json.Unmarshal(attrsJSON, &variant.Attrs); err != nil {
			return domain.ProductVariant{}, fmt.Errorf("unmarshal variant attrs: %w", err)
		}
	}

	return variant, nil
}
