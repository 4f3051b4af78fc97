package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northwind-commerce/cart-service/internal/domain"
	"github.com/northwind-commerce/cart-service/internal/port"
)

func connectivityErr() error {
	return domain.E(domain.KindConnectivity, domain.CodeConnectivity, "database unreachable")
}

func TestWithFallback_RetriesOnConnectivity(t *testing.T) {
	direct := &fakeCartRepo{
		removeFn: func(context.Context, string, int64) (domain.RemoveLineResult, error) {
			return domain.RemoveLineResult{}, connectivityErr()
		},
	}
	pooled := &fakeCartRepo{
		removeFn: func(_ context.Context, _ string, lineID int64) (domain.RemoveLineResult, error) {
			return domain.RemoveLineResult{RemovedLineID: lineID}, nil
		},
	}

	svc := NewCartService(direct, pooled, testCatalog(), nil)

	result, err := svc.RemoveFromCart(t.Context(), "owner-1", 42)
	require.NoError(t, err)

	assert.Equal(t, int64(42), result.RemovedLineID)
	assert.Equal(t, 1, direct.removeCalls)
	assert.Equal(t, 1, pooled.removeCalls)
}

func TestWithFallback_LogicalErrorsDoNotRetry(t *testing.T) {
	direct := &fakeCartRepo{
		removeFn: func(context.Context, string, int64) (domain.RemoveLineResult, error) {
			return domain.RemoveLineResult{}, domain.E(domain.KindNotFound, domain.CodeLineNotFound, "cart line not found")
		},
	}
	pooled := &fakeCartRepo{
		removeFn: func(context.Context, string, int64) (domain.RemoveLineResult, error) {
			t.Fatal("pooled endpoint must not be tried for a logical failure")
			return domain.RemoveLineResult{}, nil
		},
	}

	svc := NewCartService(direct, pooled, testCatalog(), nil)

	_, err := svc.RemoveFromCart(t.Context(), "owner-1", 42)
	require.Error(t, err)

	assert.Equal(t, domain.CodeLineNotFound, domain.CodeOf(err))
	assert.Equal(t, 1, direct.removeCalls)
	assert.Zero(t, pooled.removeCalls)
}

func TestWithFallback_BothEndpointsDown(t *testing.T) {
	failing := func(context.Context, string, port.AddLineInput) (domain.AddLineResult, error) {
		return domain.AddLineResult{}, connectivityErr()
	}
	direct := &fakeCartRepo{addFn: failing}
	pooled := &fakeCartRepo{addFn: failing}

	svc := NewCartService(direct, pooled, testCatalog(), nil)

	_, err := svc.AddToCart(t.Context(), "owner-1", AddRequest{ProductID: 1, Qty: 1})
	require.Error(t, err)

	assert.True(t, domain.IsConnectivity(err))
	assert.Equal(t, 1, direct.addCalls)
	assert.Equal(t, 1, pooled.addCalls)
}

func TestWithFallback_NoPooledEndpoint(t *testing.T) {
	direct := &fakeCartRepo{
		addFn: func(context.Context, string, port.AddLineInput) (domain.AddLineResult, error) {
			return domain.AddLineResult{}, connectivityErr()
		},
	}

	svc := NewCartService(direct, nil, testCatalog(), nil)

	_, err := svc.AddToCart(t.Context(), "owner-1", AddRequest{ProductID: 1, Qty: 1})
	require.Error(t, err)
	assert.True(t, domain.IsConnectivity(err))
	assert.Equal(t, 1, direct.addCalls)
}

type downCatalog struct{ calls int }

func (c *downCatalog) Product(context.Context, int64) (domain.Product, error) {
	c.calls++
	return domain.Product{}, connectivityErr()
}

func (c *downCatalog) Variant(context.Context, int64) (domain.ProductVariant, error) {
	c.calls++
	return domain.ProductVariant{}, connectivityErr()
}

func TestAddToCart_CatalogFallsBackOnConnectivity(t *testing.T) {
	repo, captured := passthroughAdd()
	direct := &downCatalog{}

	svc := NewCartService(repo, nil, direct, testCatalog())

	_, err := svc.AddToCart(t.Context(), "owner-1", AddRequest{ProductID: 1, Qty: 1})
	require.NoError(t, err)

	assert.Equal(t, 1, direct.calls)
	assert.Equal(t, "Field Jacket", captured.Resolved.ProductName)
}

func TestAddToCart_CatalogLogicalErrorDoesNotRetry(t *testing.T) {
	repo, _ := passthroughAdd()
	pooled := &downCatalog{}

	svc := NewCartService(repo, nil, testCatalog(), pooled)

	_, err := svc.AddToCart(t.Context(), "owner-1", AddRequest{ProductID: 99, Qty: 1})
	require.Error(t, err)

	assert.Equal(t, domain.CodeProductNotFound, domain.CodeOf(err))
	assert.Zero(t, pooled.calls)
}

func TestGetCart_PrefersPooledEndpoint(t *testing.T) {
	direct := &fakeCartRepo{
		getFn: func(context.Context, string) (domain.Cart, error) {
			return domain.Cart{}, nil
		},
	}
	pooled := &fakeCartRepo{
		getFn: func(_ context.Context, ownerID string) (domain.Cart, error) {
			return domain.Cart{OwnerID: ownerID}, nil
		},
	}

	svc := NewCartService(direct, pooled, testCatalog(), nil)

	cart, err := svc.GetCart(t.Context(), "owner-1")
	require.NoError(t, err)

	assert.Equal(t, "owner-1", cart.OwnerID)
	assert.Zero(t, direct.getCalls)
	assert.Equal(t, 1, pooled.getCalls)
}
