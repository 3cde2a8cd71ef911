package production

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"station-pipeline/internal/observability/metrics"
)

// ConstraintState tracks the NOT NULL constraints on the optional order
// foreign keys. The relaxed state is durable: it survives the process and is
// visible to anything else reading the schema.
type ConstraintState int

const (
	ConstraintsEnforced ConstraintState = iota
	ConstraintsRelaxed
	ConstraintsRestored
)

func (s ConstraintState) String() string {
	switch s {
	case ConstraintsRelaxed:
		return "relaxed"
	case ConstraintsRestored:
		return "restored"
	default:
		return "enforced"
	}
}

// TransferSummary reports rows moved from staging to production.
type TransferSummary struct {
	Customers int64 `json:"customers"`
	Fuel      int64 `json:"fuel"`
	Trailers  int64 `json:"trailers"`
	Products  int64 `json:"products"`
	Orders    int64 `json:"orders"`
}

// Promoter replaces the production tables with cleaned staging content. The
// three phases commit independently; a failure after Relax leaves the
// constraints relaxed on purpose rather than guessing at a repair.
type Promoter struct {
	db    *sql.DB
	log   *logrus.Logger
	state ConstraintState
}

// NewPromoter constructs a promoter.
func NewPromoter(db *sql.DB, log *logrus.Logger) *Promoter {
	return &Promoter{db: db, log: log}
}

// State reports the last constraint transition this promoter performed.
func (p *Promoter) State() ConstraintState {
	if p == nil {
		return ConstraintsEnforced
	}
	return p.state
}

// Promote runs the full relax → replace → optionally restore sequence.
// Restore failures are logged and swallowed; the relaxed state is acceptable.
func (p *Promoter) Promote(ctx context.Context, restoreConstraints bool) (TransferSummary, error) {
	if err := p.Relax(ctx); err != nil {
		return TransferSummary{}, err
	}
	summary, err := p.Replace(ctx)
	if err != nil {
		return summary, err
	}
	if restoreConstraints {
		if err := p.Restore(ctx); err != nil {
			p.log.Warnf("could not restore order constraints: %v", err)
		}
	}
	return summary, nil
}

// Relax drops the NOT NULL constraints on orders.trailer_id and
// orders.product_id so orders without a trailer or product can be promoted.
func (p *Promoter) Relax(ctx context.Context) error {
	if p == nil || p.db == nil {
		return errors.New("production: nil db")
	}
	_, err := p.db.ExecContext(ctx, `
ALTER TABLE public.orders
	ALTER COLUMN trailer_id DROP NOT NULL,
	ALTER COLUMN product_id DROP NOT NULL`)
	if err != nil {
		return fmt.Errorf("production: relax constraints: %w", err)
	}
	p.state = ConstraintsRelaxed
	p.log.Info("order FK constraints relaxed")
	return nil
}

// Replace truncates all five production tables and inserts the filtered
// staging content in dependency order, inside one transaction.
func (p *Promoter) Replace(ctx context.Context) (TransferSummary, error) {
	var summary TransferSummary
	if p == nil || p.db == nil {
		return summary, errors.New("production: nil db")
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return summary, fmt.Errorf("production: begin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "SET CONSTRAINTS ALL DEFERRED"); err != nil {
		_ = tx.Rollback()
		return summary, fmt.Errorf("production: defer constraints: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"TRUNCATE TABLE public.orders, public.products, public.trailers, public.fuel, public.customers CASCADE"); err != nil {
		_ = tx.Rollback()
		return summary, fmt.Errorf("production: truncate: %w", err)
	}

	// Insertion order matters: the order transfer resolves its references
	// against the rows inserted just before it.
	transfers := []struct {
		entity string
		query  string
		count  *int64
	}{
		{
			entity: "customers",
			query: `
INSERT INTO public.customers (customer_id, first_name, last_name, customer_status)
SELECT customer_id, first_name, last_name, customer_status
FROM staging.customers`,
			count: &summary.Customers,
		},
		{
			entity: "fuel",
			query: `
INSERT INTO public.fuel (fuel_id, fuel_type, amount, fuel_price, transaction_date)
SELECT fuel_id, fuel_type, amount, fuel_price, transaction_date
FROM staging.fuel`,
			count: &summary.Fuel,
		},
		{
			entity: "trailers",
			query: `
INSERT INTO public.trailers (trailer_id, registry_number, trailer_status, start_date, end_date)
SELECT
	trailer_id,
	CASE
		WHEN registry_number ~ '^[0-9]+$' THEN CAST(registry_number AS INTEGER)
		ELSE NULL
	END,
	trailer_status,
	start_date,
	end_date
FROM staging.trailers
WHERE registry_number ~ '^[0-9]+$' OR registry_number IS NULL`,
			count: &summary.Trailers,
		},
		{
			entity: "products",
			query: `
INSERT INTO public.products (product_id, product_type, quantity, price)
SELECT product_id, product_type, quantity, price
FROM staging.products`,
			count: &summary.Products,
		},
		{
			entity: "orders",
			query: `
INSERT INTO public.orders (order_id, order_status, order_date, customer_id, trailer_id, product_id, fuel_id)
SELECT order_id, order_status, order_date, customer_id, trailer_id, product_id, fuel_id
FROM staging.orders
WHERE customer_id IN (SELECT customer_id FROM public.customers)
  AND fuel_id IN (SELECT fuel_id FROM public.fuel)
  AND (trailer_id IS NULL OR trailer_id IN (SELECT trailer_id FROM public.trailers))
  AND (product_id IS NULL OR product_id IN (SELECT product_id FROM public.products))`,
			count: &summary.Orders,
		},
	}

	for _, transfer := range transfers {
		res, err := tx.ExecContext(ctx, transfer.query)
		if err != nil {
			_ = tx.Rollback()
			return TransferSummary{}, fmt.Errorf("production: transfer %s: %w", transfer.entity, err)
		}
		moved, err := res.RowsAffected()
		if err != nil {
			_ = tx.Rollback()
			return TransferSummary{}, fmt.Errorf("production: transfer %s: %w", transfer.entity, err)
		}
		*transfer.count = moved
		p.log.WithFields(logrus.Fields{"entity": transfer.entity, "rows": moved}).Info("transferred to production")
	}

	if err := tx.Commit(); err != nil {
		return TransferSummary{}, fmt.Errorf("production: commit: %w", err)
	}

	metrics.AddRowsPromoted("customers", summary.Customers)
	metrics.AddRowsPromoted("fuel", summary.Fuel)
	metrics.AddRowsPromoted("trailers", summary.Trailers)
	metrics.AddRowsPromoted("products", summary.Products)
	metrics.AddRowsPromoted("orders", summary.Orders)
	return summary, nil
}

// Restore reinstates the NOT NULL constraints dropped by Relax. Callers may
// skip it; promoted orders legitimately carry NULL trailer or product
// references, so restoring only succeeds on an all-complete load.
func (p *Promoter) Restore(ctx context.Context) error {
	if p == nil || p.db == nil {
		return errors.New("production: nil db")
	}
	_, err := p.db.ExecContext(ctx, `
ALTER TABLE public.orders
	ALTER COLUMN trailer_id SET NOT NULL,
	ALTER COLUMN product_id SET NOT NULL`)
	if err != nil {
		return fmt.Errorf("production: restore constraints: %w", err)
	}
	p.state = ConstraintsRestored
	p.log.Info("order FK constraints restored")
	return nil
}
