package service

import (
	"context"
	"log"

	"github.com/northwind-commerce/cart-service/internal/domain"
)

// withFallback runs op against the direct endpoint and retries
// exactly once against the pooled endpoint when the failure is a
// connectivity error. Logical failures (validation, not-found,
// conflict) propagate immediately: retrying them against a different
// endpoint cannot change the outcome. The caller's context deadline
// bounds both attempts.
func withFallback[R comparable, T any](ctx context.Context, direct, pooled R, op func(context.Context, R) (T, error)) (T, error) {
	out, err := op(ctx, direct)

	var none R
	if err == nil || pooled == none || !domain.IsConnectivity(err) {
		return out, err
	}

	log.Printf("direct database endpoint unreachable, retrying on pooled endpoint: %v", err)
	return op(ctx, pooled)
}
