package repository_test

import (
	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northwind-commerce/cart-service/internal/domain"
)

func (suite *cartRepositorySuite) TestCatalogProduct() {
	defer suite.deleteAll()
	t := suite.T()
	ctx := t.Context()

	productID := suite.insertProduct("10.00")

	product, err := suite.catalog.Product(ctx, productID)
	require.NoError(t, err)

	assert.Equal(t, productID, product.ID)
	assert.NotEmpty(t, product.Name)
	assertAmount(t, "10.00", product.Price.Amount)
	assert.Equal(t, "USD", product.Price.Currency.String())

	_, err = suite.catalog.Product(ctx, productID+1000)
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	assert.Equal(t, domain.CodeProductNotFound, domain.CodeOf(err))
}

func (suite *cartRepositorySuite) TestCatalogVariant() {
	defer suite.deleteAll()
	t := suite.T()
	ctx := t.Context()

	productID := suite.insertProduct("10.00")
	variantID := suite.insertVariant(productID, "12.00")

	variant, err := suite.catalog.Variant(ctx, variantID)
	require.NoError(t, err)

	assert.Equal(t, variantID, variant.ID)
	assert.Equal(t, productID, variant.ProductID)
	require.NotNil(t, variant.Price)
	assertAmount(t, "12.00", variant.Price.Amount)
	assert.Equal(t, map[string]string{"color": "black"}, variant.Attrs)

	_, err = suite.catalog.Variant(ctx, variantID+1000)
	require.Error(t, err)
	assert.Equal(t, domain.CodeVariantNotFound, domain.CodeOf(err))
}

func (suite *cartRepositorySuite) TestCatalogVariant_NoPriceOverride() {
	defer suite.deleteAll()
	t := suite.T()
	ctx := t.Context()

	productID := suite.insertProduct("10.00")

	var variantID int64
	err := suite.pool.QueryRow(ctx,
		`INSERT INTO product_variants (product_id, sku) VALUES ($1, $2) RETURNING id`,
		productID, gofakeit.UUID(),
	).Scan(&variantID)
	require.NoError(t, err)

	variant, err := suite.catalog.Variant(ctx, variantID)
	require.NoError(t, err)
	assert.Nil(t, variant.Price)
	assert.Equal(t, map[string]string{}, variant.Attrs)
}
