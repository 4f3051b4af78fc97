package repository

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"
)

// lineSchema describes which generation of the cart_lines table the
// connected database carries. Old deployments predate the snapshot
// columns, in which case line prices are re-resolved on every read.
type lineSchema struct {
	SnapshotColumns bool
}

// SchemaProbe checks the system catalog once per process and caches
// the answer. The singleflight group collapses redundant concurrent
// probes at cold start; failures are not cached so a later call can
// probe again.
type SchemaProbe struct {
	sfg    singleflight.Group
	cached atomic.Pointer[lineSchema]
}

func NewSchemaProbe() *SchemaProbe {
	return &SchemaProbe{}
}

const probeQuery = `SELECT EXISTS (
	SELECT 1 FROM information_schema.columns
	WHERE table_name = 'cart_lines' AND column_name = 'unit_price'
)`

func (p *SchemaProbe) resolve(ctx context.Context, pool *pgxpool.Pool) (lineSchema, error) {
	if s := p.cached.Load(); s != nil {
		return *s, nil
	}

	v, err, _ := p.sfg.Do("cart_lines", func() (interface{}, error) {
		var hasSnapshot bool
		if err := pool.QueryRow(ctx, probeQuery).Scan(&hasSnapshot); err != nil {
			return nil, fmt.Errorf("snapshot column probe: %w", classify(err, "probe"))
		}

		s := lineSchema{SnapshotColumns: hasSnapshot}
		p.cached.Store(&s)
		return s, nil
	})
	if err != nil {
		return lineSchema{}, err
	}

	return v.(lineSchema), nil
}
