package repository

import (
	"context"
	"errors"
	"net"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/northwind-commerce/cart-service/internal/domain"
)

const uniqueViolation = "23505"

// classify maps a pgx failure onto the error taxonomy. Unreachable
// endpoints become connectivity errors, which are the only class the
// fallback runner is allowed to retry on the pooled connection.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}

	if isConnectivity(err) {
		return domain.WrapE(err, domain.KindConnectivity, domain.CodeConnectivity, op+": database unreachable")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.WrapE(err, domain.KindConflict, domain.CodeConflict, op+": duplicate key")
	}

	return domain.WrapE(err, domain.KindInternal, domain.CodeInternal, op+": query failed")
}

func isConnectivity(err error) bool {
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	// A deadline covering the whole fallback sequence expires here.
	return errors.Is(err, context.DeadlineExceeded)
}
