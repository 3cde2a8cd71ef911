package staging

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"station-pipeline/internal/observability/metrics"
)

// CleanSummary reports how many staging rows each rule removed.
type CleanSummary struct {
	Customers             int64 `json:"customers"`
	Fuel                  int64 `json:"fuel"`
	Trailers              int64 `json:"trailers"`
	InvalidRentals        int64 `json:"invalid_rentals"`
	Products              int64 `json:"products"`
	OrphanOrders          int64 `json:"orphan_orders"`
	DanglingTrailerOrders int64 `json:"dangling_trailer_orders"`
	DanglingProductOrders int64 `json:"dangling_product_orders"`
}

// Total returns the number of rows deleted across all rules.
func (s CleanSummary) Total() int64 {
	return s.Customers + s.Fuel + s.Trailers + s.InvalidRentals + s.Products +
		s.OrphanOrders + s.DanglingTrailerOrders + s.DanglingProductOrders
}

// Cleaner deletes staging rows that violate domain rules. Independent
// entities are cleaned before orders because the order rules depend on which
// rows survived the earlier deletes.
type Cleaner struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewCleaner constructs a cleaner.
func NewCleaner(db *sql.DB, log *logrus.Logger) *Cleaner {
	return &Cleaner{db: db, log: log}
}

// Run executes every cleaning rule inside one transaction. Any failure rolls
// back the whole pass.
func (c *Cleaner) Run(ctx context.Context) (CleanSummary, error) {
	var summary CleanSummary
	if c == nil || c.db == nil {
		return summary, errors.New("staging: nil db")
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return summary, fmt.Errorf("cleaning: begin: %w", err)
	}

	rules := []struct {
		name  string
		query string
		count *int64
	}{
		{
			name: "customers missing names",
			query: `
DELETE FROM staging.customers
WHERE first_name IS NULL OR last_name IS NULL`,
			count: &summary.Customers,
		},
		{
			name: "fuel missing fields",
			query: `
DELETE FROM staging.fuel
WHERE fuel_type IS NULL OR amount IS NULL OR fuel_price IS NULL`,
			count: &summary.Fuel,
		},
		{
			name: "trailers missing status",
			query: `
DELETE FROM staging.trailers
WHERE trailer_status IS NULL`,
			count: &summary.Trailers,
		},
		{
			name: "trailers with invalid rental period",
			query: `
DELETE FROM staging.trailers
WHERE trailer_status IN ('rented', 'reserved')
  AND (start_date IS NULL OR end_date IS NULL OR end_date < start_date)`,
			count: &summary.InvalidRentals,
		},
		{
			name: "products with invalid quantity or price",
			query: `
DELETE FROM staging.products
WHERE quantity < 0 OR price <= 0`,
			count: &summary.Products,
		},
		{
			name: "orders without customer or fuel",
			query: `
DELETE FROM staging.orders
WHERE customer_id NOT IN (SELECT customer_id FROM staging.customers WHERE customer_id IS NOT NULL)
   OR fuel_id NOT IN (SELECT fuel_id FROM staging.fuel WHERE fuel_id IS NOT NULL)`,
			count: &summary.OrphanOrders,
		},
		{
			name: "orders with dangling trailer",
			query: `
DELETE FROM staging.orders
WHERE trailer_id IS NOT NULL
  AND trailer_id NOT IN (SELECT trailer_id FROM staging.trailers WHERE trailer_id IS NOT NULL)`,
			count: &summary.DanglingTrailerOrders,
		},
		{
			name: "orders with dangling product",
			query: `
DELETE FROM staging.orders
WHERE product_id IS NOT NULL
  AND product_id NOT IN (SELECT product_id FROM staging.products WHERE product_id IS NOT NULL)`,
			count: &summary.DanglingProductOrders,
		},
	}

	for _, rule := range rules {
		res, err := tx.ExecContext(ctx, rule.query)
		if err != nil {
			_ = tx.Rollback()
			return CleanSummary{}, fmt.Errorf("cleaning: %s: %w", rule.name, err)
		}
		deleted, err := res.RowsAffected()
		if err != nil {
			_ = tx.Rollback()
			return CleanSummary{}, fmt.Errorf("cleaning: %s: %w", rule.name, err)
		}
		*rule.count += deleted
		if deleted > 0 {
			c.log.WithFields(logrus.Fields{"rule": rule.name, "deleted": deleted}).Info("staging rows removed")
		}
	}

	if err := tx.Commit(); err != nil {
		return CleanSummary{}, fmt.Errorf("cleaning: commit: %w", err)
	}

	metrics.AddRowsDeleted("customers", summary.Customers)
	metrics.AddRowsDeleted("fuel", summary.Fuel)
	metrics.AddRowsDeleted("trailers", summary.Trailers+summary.InvalidRentals)
	metrics.AddRowsDeleted("products", summary.Products)
	metrics.AddRowsDeleted("orders", summary.OrphanOrders+summary.DanglingTrailerOrders+summary.DanglingProductOrders)
	return summary, nil
}
