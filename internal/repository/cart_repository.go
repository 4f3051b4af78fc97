package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/northwind-commerce/cart-service/internal/domain"
	"github.com/northwind-commerce/cart-service/internal/port"
)

type cartRepository struct {
	pool  *pgxpool.Pool
	probe *SchemaProbe
}

// NewCart builds a cart repository over one database endpoint. The
// probe is shared between the direct and the pooled instance so the
// snapshot-column check runs at most once per process.
func NewCart(pool *pgxpool.Pool, probe *SchemaProbe) port.CartRepository {
	return &cartRepository{
		pool:  pool,
		probe: probe,
	}
}

func (r *cartRepository) GetCart(ctx context.Context, ownerID string) (domain.Cart, error) {
	if ownerID == "" {
		return domain.Cart{}, domain.E(domain.KindValidation, domain.CodeValidation, "ownerID is empty")
	}

	schema, err := r.probe.resolve(ctx, r.pool)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("probe.resolve: %w", err)
	}

	cart := domain.Cart{OwnerID: ownerID, Totals: domain.Totals{TotalAmount: decimal.Zero}}

	err = r.pool.QueryRow(ctx,
		`SELECT id, total_items, total_amount, created_at, updated_at FROM carts WHERE owner_id = $1`,
		ownerID,
	).Scan(&cart.ID, &cart.Totals.TotalItems, &cart.Totals.TotalAmount, &cart.CreatedAt, &cart.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return cart, nil // no cart yet, present it as empty
	}
	if err != nil {
		return domain.Cart{}, classify(err, "select cart")
	}

	lines, err := r.cartLines(ctx, cart.ID, schema)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("cartLines: %w", err)
	}
	cart.Lines = lines

	return cart, nil
}

func (r *cartRepository) cartLines(ctx context.Context, cartID int64, schema lineSchema) ([]domain.CartLine, error) {
	if !schema.SnapshotColumns {
		return r.cartLinesLegacy(ctx, cartID)
	}

	// Stored snapshot price wins; legacy rows without one fall back
	// to the live variant override, then the product base price.
	rows, err := r.pool.Query(ctx, `
		SELECT l.id, l.cart_id, l.product_id, l.variant_id, l.quantity,
		       COALESCE(l.unit_price, v.price, p.price),
		       COALESCE(l.price_currency, p.currency),
		       l.unit_price IS NOT NULL,
		       COALESCE(l.product_name, p.name),
		       COALESCE(l.image_url, p.image_url),
		       COALESCE(l.variant_sku, ''),
		       l.variant_attrs,
		       l.created_at
		FROM cart_lines l
		JOIN products p ON p.id = l.product_id
		LEFT JOIN product_variants v ON v.id = l.variant_id
		WHERE l.cart_id = $1
		ORDER BY l.created_at, l.id`,
		cartID)
	if err != nil {
		return nil, classify(err, "select cart lines")
	}
	defer rows.Close()

	var lines []domain.CartLine
	for rows.Next() {
		var (
			line         domain.CartLine
			amount       decimal.Decimal
			currencyCode string
			attrsJSON    []byte
		)
		if err := rows.Scan(
			&line.ID, &line.CartID, &line.ProductID, &line.VariantID, &line.Quantity,
			&amount, &currencyCode, &line.HasSnapshot,
			&line.ProductName, &line.ImageURL, &line.VariantSKU,
			&attrsJSON, &line.CreatedAt,
		); err != nil {
			return nil, classify(err, "scan cart line")
		}

		line.UnitPrice, err = newMoney(amount, currencyCode)
		if err != nil {
			return nil, err
		}

		if len(attrsJSON) > 0 {
			if err := json.Unmarshal(attrsJSON, &line.VariantAttrs); err != nil {
				return nil, fmt.Errorf("unmarshal variant attrs: %w", err)
			}
		}

		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate cart lines")
	}

	return lines, nil
}

// cartLinesLegacy serves schemas that predate the snapshot columns:
// every price is re-resolved live on read.
func (r *cartRepository) cartLinesLegacy(ctx context.Context, cartID int64) ([]domain.CartLine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT l.id, l.cart_id, l.product_id, l.variant_id, l.quantity,
		       COALESCE(v.price, p.price), p.currency, p.name, p.image_url,
		       COALESCE(v.sku, ''),
		       l.created_at
		FROM cart_lines l
		JOIN products p ON p.id = l.product_id
		LEFT JOIN product_variants v ON v.id = l.variant_id
		WHERE l.cart_id = $1
		ORDER BY l.created_at, l.id`,
		cartID)
	if err != nil {
		return nil, classify(err, "select cart lines")
	}
	defer rows.Close()

	var lines []domain.CartLine
	for rows.Next() {
		var (
			line         domain.CartLine
			amount       decimal.Decimal
			currencyCode string
		)
		if err := rows.Scan(
			&line.ID, &line.CartID, &line.ProductID, &line.VariantID, &line.Quantity,
			&amount, &currencyCode, &line.ProductName, &line.ImageURL, &line.VariantSKU,
			&line.CreatedAt,
		); err != nil {
			return nil, classify(err, "scan cart line")
		}

		line.UnitPrice, err = newMoney(amount, currencyCode)
		if err != nil {
			return nil, err
		}

		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate cart lines")
	}

	return lines, nil
}

func (r *cartRepository) AddLine(ctx context.Context, ownerID string, input port.AddLineInput) (domain.AddLineResult, error) {
	if ownerID == "" {
		return domain.AddLineResult{}, domain.E(domain.KindValidation, domain.CodeValidation, "ownerID is empty")
	}
	if input.Quantity <= 0 {
		return domain.AddLineResult{}, domain.E(domain.KindValidation, domain.CodeValidation, "quantity must be positive")
	}

	schema, err := r.probe.resolve(ctx, r.pool)
	if err != nil {
		return domain.AddLineResult{}, fmt.Errorf("probe.resolve: %w", err)
	}

	return withTx(ctx, r.pool, func(tx pgx.Tx) (domain.AddLineResult, error) {
		// The cart row lock is the per-cart critical section; every
		// mutation of this cart serializes on it.
		cartID, err := lockOrCreateCart(ctx, tx, ownerID)
		if err != nil {
			return domain.AddLineResult{}, err
		}

		line := domain.CartLine{
			CartID:       cartID,
			ProductID:    input.ProductID,
			VariantID:    input.VariantID,
			UnitPrice:    input.Resolved.UnitPrice,
			HasSnapshot:  schema.SnapshotColumns,
			ProductName:  input.Resolved.ProductName,
			ImageURL:     input.Resolved.ImageURL,
			VariantSKU:   input.Resolved.VariantSKU,
			VariantAttrs: input.Resolved.VariantAttrs,
		}

		wasNew := false
		var (
			snapshotAmount decimal.NullDecimal
			snapshotCur    *string
		)

		lookup := `SELECT id, quantity, unit_price, price_currency FROM cart_lines
		           WHERE cart_id = $1 AND product_id = $2 AND variant_id IS NOT DISTINCT FROM $3
		           FOR UPDATE`
		if !schema.SnapshotColumns {
			lookup = `SELECT id, quantity, NULL::numeric, NULL::text FROM cart_lines
			          WHERE cart_id = $1 AND product_id = $2 AND variant_id IS NOT DISTINCT FROM $3
			          FOR UPDATE`
		}
		err = tx.QueryRow(ctx, lookup, cartID, input.ProductID, input.VariantID).
			Scan(&line.ID, &line.Quantity, &snapshotAmount, &snapshotCur)

		switch {
		case err == nil:
			// The line's locked-in price stays authoritative for the
			// line and for the aggregate delta. The freshly resolved
			// price applies only to new lines.
			if snapshotAmount.Valid && snapshotCur != nil {
				line.UnitPrice, err = newMoney(snapshotAmount.Decimal, *snapshotCur)
				if err != nil {
					return domain.AddLineResult{}, err
				}
			} else {
				line.HasSnapshot = false
			}

			err = tx.QueryRow(ctx,
				`UPDATE cart_lines SET quantity = quantity + $2 WHERE id = $1 RETURNING quantity, created_at`,
				line.ID, input.Quantity,
			).Scan(&line.Quantity, &line.CreatedAt)
			if err != nil {
				return domain.AddLineResult{}, classify(err, "increment line quantity")
			}

		case errors.Is(err, pgx.ErrNoRows):
			wasNew = true
			if err := insertLine(ctx, tx, &line, input.Quantity, schema); err != nil {
				return domain.AddLineResult{}, err
			}

		default:
			return domain.AddLineResult{}, classify(err, "lookup cart line")
		}

		itemsDelta := 0
		if wasNew {
			itemsDelta = 1
		}
		totals, err := adjustTotals(ctx, tx, cartID, itemsDelta, line.UnitPrice.Mul(input.Quantity).Amount)
		if err != nil {
			return domain.AddLineResult{}, err
		}

		return domain.AddLineResult{
			Totals:     totals,
			Line:       line,
			WasNewLine: wasNew,
		}, nil
	})
}

func (r *cartRepository) RemoveLine(ctx context.Context, ownerID string, lineID int64) (domain.RemoveLineResult, error) {
	if ownerID == "" {
		return domain.RemoveLineResult{}, domain.E(domain.KindValidation, domain.CodeValidation, "ownerID is empty")
	}

	schema, err := r.probe.resolve(ctx, r.pool)
	if err != nil {
		return domain.RemoveLineResult{}, fmt.Errorf("probe.resolve: %w", err)
	}

	return withTx(ctx, r.pool, func(tx pgx.Tx) (domain.RemoveLineResult, error) {
		var (
			cartID         int64
			productID      int64
			variantID      *int64
			quantity       int
			snapshotAmount decimal.NullDecimal
			snapshotCur    *string
		)

		// Absent and not-owned are indistinguishable on purpose, to
		// not leak the existence of other users' lines.
		query := `SELECT l.cart_id, l.product_id, l.variant_id, l.quantity, l.unit_price, l.price_currency
		          FROM cart_lines l
		          JOIN carts c ON c.id = l.cart_id
		          WHERE l.id = $1 AND c.owner_id = $2
		          FOR UPDATE OF l, c`
		if !schema.SnapshotColumns {
			query = `SELECT l.cart_id, l.product_id, l.variant_id, l.quantity, NULL::numeric, NULL::text
			         FROM cart_lines l
			         JOIN carts c ON c.id = l.cart_id
			         WHERE l.id = $1 AND c.owner_id = $2
			         FOR UPDATE OF l, c`
		}

		err := tx.QueryRow(ctx, query, lineID, ownerID).
			Scan(&cartID, &productID, &variantID, &quantity, &snapshotAmount, &snapshotCur)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RemoveLineResult{}, domain.E(domain.KindNotFound, domain.CodeLineNotFound, "cart line %d not found", lineID)
		}
		if err != nil {
			return domain.RemoveLineResult{}, classify(err, "lookup cart line")
		}

		unitPrice, err := reversalPrice(ctx, tx, productID, variantID, snapshotAmount, snapshotCur)
		if err != nil {
			return domain.RemoveLineResult{}, err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE id = $1`, lineID); err != nil {
			return domain.RemoveLineResult{}, classify(err, "delete cart line")
		}

		totals, err := adjustTotals(ctx, tx, cartID, -1, unitPrice.Mul(quantity).Amount.Neg())
		if err != nil {
			return domain.RemoveLineResult{}, err
		}

		return domain.RemoveLineResult{
			Totals:        totals,
			RemovedLineID: lineID,
		}, nil
	})
}

func lockOrCreateCart(ctx context.Context, tx pgx.Tx, ownerID string) (int64, error) {
	var id int64

	err := tx.QueryRow(ctx, `SELECT id FROM carts WHERE owner_id = $1 FOR UPDATE`, ownerID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, classify(err, "select cart for update")
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO carts (owner_id) VALUES ($1) ON CONFLICT (owner_id) DO NOTHING RETURNING id`,
		ownerID,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, classify(err, "insert cart")
	}

	// Lost the create race: a concurrent insert committed first. One
	// compensating read is enough, the unique ownership constraint
	// guarantees the row exists now.
	err = tx.QueryRow(ctx, `SELECT id FROM carts WHERE owner_id = $1 FOR UPDATE`, ownerID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.E(domain.KindInternal, domain.CodeCartCreate, "cart create failed for owner")
	}
	if err != nil {
		return 0, classify(err, "re-read cart after create race")
	}

	return id, nil
}

func insertLine(ctx context.Context, tx pgx.Tx, line *domain.CartLine, qty int, schema lineSchema) error {
	line.Quantity = qty

	if !schema.SnapshotColumns {
		err := tx.QueryRow(ctx,
			`INSERT INTO cart_lines (cart_id, product_id, variant_id, quantity)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id, created_at`,
			line.CartID, line.ProductID, line.VariantID, qty,
		).Scan(&line.ID, &line.CreatedAt)
		if err != nil {
			return classify(err, "insert cart line")
		}
		return nil
	}

	var attrsJSON []byte
	if len(line.VariantAttrs) > 0 {
		var err error
		attrsJSON, err = json.Marshal(line.VariantAttrs)
		if err != nil {
			return fmt.Errorf("marshal variant attrs: %w", err)
		}
	}

	err := tx.QueryRow(ctx,
		`INSERT INTO cart_lines
		     (cart_id, product_id, variant_id, quantity,
		      unit_price, price_currency, product_name, image_url, variant_sku, variant_attrs)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at`,
		line.CartID, line.ProductID, line.VariantID, qty,
		line.UnitPrice.Amount, line.UnitPrice.Currency.String(),
		line.ProductName, line.ImageURL, line.VariantSKU, attrsJSON,
	).Scan(&line.ID, &line.CreatedAt)
	if err != nil {
		return classify(err, "insert cart line")
	}

	return nil
}

// reversalPrice determines the amount to subtract from the aggregates
// for a removed line: the locked-in snapshot price when stored,
// otherwise a live re-resolve. An unverifiable price is an error, the
// aggregates are never adjusted by a guess.
func reversalPrice(ctx context.Context, tx pgx.Tx, productID int64, variantID *int64, snapshotAmount decimal.NullDecimal, snapshotCur *string) (domain.Money, error) {
	if snapshotAmount.Valid && snapshotCur != nil {
		return newMoney(snapshotAmount.Decimal, *snapshotCur)
	}

	var (
		amount       decimal.Decimal
		currencyCode string
	)

	if variantID != nil {
		err := tx.QueryRow(ctx,
			`SELECT COALESCE(v.price, p.price), p.currency
			 FROM product_variants v
			 JOIN products p ON p.id = v.product_id
			 WHERE v.id = $1`,
			*variantID,
		).Scan(&amount, &currencyCode)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Money{}, domain.E(domain.KindValidation, domain.CodeVariantNotFound, "variant %d no longer resolvable", *variantID)
		}
		if err != nil {
			return domain.Money{}, classify(err, "resolve variant price")
		}
		return newMoney(amount, currencyCode)
	}

	err := tx.QueryRow(ctx, `SELECT price, currency FROM products WHERE id = $1`, productID).
		Scan(&amount, &currencyCode)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Money{}, domain.E(domain.KindValidation, domain.CodeProductNotFound, "product %d no longer resolvable", productID)
	}
	if err != nil {
		return domain.Money{}, classify(err, "resolve product price")
	}

	return newMoney(amount, currencyCode)
}

func adjustTotals(ctx context.Context, tx pgx.Tx, cartID int64, itemsDelta int, amountDelta decimal.Decimal) (domain.Totals, error) {
	var totals domain.Totals

	err := tx.QueryRow(ctx,
		`UPDATE carts
		 SET total_items = total_items + $2,
		     total_amount = total_amount + $3,
		     updated_at = now()
		 WHERE id = $1
		 RETURNING total_items, total_amount`,
		cartID, itemsDelta, amountDelta,
	).Scan(&totals.TotalItems, &totals.TotalAmount)
	if err != nil {
		return domain.Totals{}, classify(err, "adjust cart totals")
	}

	return totals, nil
}

func newMoney(amount decimal.Decimal, code string) (domain.Money, error) {
	parsedCurrency, err := currency.ParseISO(code)
	if err != nil {
		return domain.Money{}, fmt.Errorf("currency[%s] is not valid: %w", code, err)
	}

	return domain.Money{Amount: amount, Currency: parsedCurrency}, nil
}
