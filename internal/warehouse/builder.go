package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"station-pipeline/internal/observability/metrics"
)

var analyticsTables = []string{
	"fct_orders",
	"dim_customer",
	"dim_date",
	"dim_product",
	"dim_trailer",
	"dim_fuel",
}

// dateChunkSize bounds one dim_date insert statement.
const dateChunkSize = 500

// BuildSummary reports rows written by one dimensional rebuild.
type BuildSummary struct {
	Customers     int64 `json:"customers"`
	Dates         int64 `json:"dates"`
	Products      int64 `json:"products"`
	Trailers      int64 `json:"trailers"`
	Fuel          int64 `json:"fuel"`
	Orders        int64 `json:"orders"`
	SkippedOrders int64 `json:"skipped_orders"`
}

// Builder rebuilds the analytics schema from production. Every run is a full
// truncate-and-reload; surrogate keys are not stable across runs.
type Builder struct {
	db  *sql.DB
	log *logrus.Logger
	now func() time.Time
}

// BuilderOption customizes a Builder.
type BuilderOption func(*Builder)

// WithClock overrides the time source used for the date window.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBuilder constructs a builder.
func NewBuilder(db *sql.DB, log *logrus.Logger, opts ...BuilderOption) *Builder {
	b := &Builder{db: db, log: log, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Rebuild truncates and repopulates the whole dimensional model in a single
// transaction, so a failure anywhere leaves the previous analytics content
// untouched until the next successful run.
func (b *Builder) Rebuild(ctx context.Context) (BuildSummary, error) {
	var summary BuildSummary
	if b == nil || b.db == nil {
		return summary, errors.New("warehouse: nil db")
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return summary, fmt.Errorf("warehouse: begin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "SET CONSTRAINTS ALL DEFERRED"); err != nil {
		_ = tx.Rollback()
		return summary, fmt.Errorf("warehouse: defer constraints: %w", err)
	}
	for _, table := range analyticsTables {
		if _, err := tx.ExecContext(ctx, "TRUNCATE TABLE analytics."+table+" CASCADE"); err != nil {
			_ = tx.Rollback()
			return summary, fmt.Errorf("warehouse: truncate %s: %w", table, err)
		}
	}
	b.log.Info("analytics tables cleared")

	if summary.Customers, err = b.populateDimCustomer(ctx, tx); err != nil {
		_ = tx.Rollback()
		return BuildSummary{}, err
	}
	if summary.Dates, err = b.populateDimDate(ctx, tx); err != nil {
		_ = tx.Rollback()
		return BuildSummary{}, err
	}
	if summary.Products, err = b.populateDimProduct(ctx, tx); err != nil {
		_ = tx.Rollback()
		return BuildSummary{}, err
	}
	if summary.Trailers, err = b.populateDimTrailer(ctx, tx); err != nil {
		_ = tx.Rollback()
		return BuildSummary{}, err
	}
	if summary.Fuel, err = b.populateDimFuel(ctx, tx); err != nil {
		_ = tx.Rollback()
		return BuildSummary{}, err
	}

	dateKeys, err := loadDateKeys(ctx, tx)
	if err != nil {
		_ = tx.Rollback()
		return BuildSummary{}, err
	}
	if summary.Orders, summary.SkippedOrders, err = b.loadFacts(ctx, tx, dateKeys); err != nil {
		_ = tx.Rollback()
		return BuildSummary{}, err
	}

	if err := tx.Commit(); err != nil {
		return BuildSummary{}, fmt.Errorf("warehouse: commit: %w", err)
	}

	metrics.AddRowsBuilt("dim_customer", summary.Customers)
	metrics.AddRowsBuilt("dim_date", summary.Dates)
	metrics.AddRowsBuilt("dim_product", summary.Products)
	metrics.AddRowsBuilt("dim_trailer", summary.Trailers)
	metrics.AddRowsBuilt("dim_fuel", summary.Fuel)
	metrics.AddRowsBuilt("fct_orders", summary.Orders)

	b.log.WithFields(logrus.Fields{
		"customers":      summary.Customers,
		"dates":          summary.Dates,
		"products":       summary.Products,
		"trailers":       summary.Trailers,
		"fuel":           summary.Fuel,
		"orders":         summary.Orders,
		"skipped_orders": summary.SkippedOrders,
	}).Info("dimensional model rebuilt")
	return summary, nil
}

func (b *Builder) populateDimCustomer(ctx context.Context, tx *sql.Tx) (int64, error) {
	res, err := tx.ExecContext(ctx, `
INSERT INTO analytics.dim_customer (
	customer_id, first_name, last_name, customer_status, full_name, is_active
)
SELECT
	customer_id,
	first_name,
	last_name,
	customer_status,
	first_name || ' ' || last_name,
	(customer_status = 'active')
FROM public.customers`)
	if err != nil {
		return 0, fmt.Errorf("warehouse: dim_customer: %w", err)
	}
	return res.RowsAffected()
}

func (b *Builder) populateDimProduct(ctx context.Context, tx *sql.Tx) (int64, error) {
	res, err := tx.ExecContext(ctx, `
INSERT INTO analytics.dim_product (product_id, product_type, price, category)
SELECT
	product_id,
	product_type,
	CAST(price AS NUMERIC) / 100.0,
	CASE
		WHEN product_type IN ('engine oil', 'windshield fluid', 'car bulb')
			THEN 'Car Maintenance'
		ELSE 'Convenience Items'
	END
FROM public.products`)
	if err != nil {
		return 0, fmt.Errorf("warehouse: dim_product: %w", err)
	}
	return res.RowsAffected()
}

// populateDimTrailer excludes trailers without a registry number; they never
// become reportable inventory even though production keeps them.
func (b *Builder) populateDimTrailer(ctx context.Context, tx *sql.Tx) (int64, error) {
	res, err := tx.ExecContext(ctx, `
INSERT INTO analytics.dim_trailer (trailer_id, registry_number, trailer_status, is_available)
SELECT
	trailer_id,
	registry_number::TEXT,
	trailer_status,
	(trailer_status = 'available')
FROM public.trailers
WHERE registry_number IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("warehouse: dim_trailer: %w", err)
	}
	return res.RowsAffected()
}

func (b *Builder) populateDimFuel(ctx context.Context, tx *sql.Tx) (int64, error) {
	res, err := tx.ExecContext(ctx, `
INSERT INTO analytics.dim_fuel (fuel_id, fuel_type, price_per_liter)
SELECT
	fuel_id,
	fuel_type,
	CAST(fuel_price AS NUMERIC) / 100.0
FROM public.fuel`)
	if err != nil {
		return 0, fmt.Errorf("warehouse: dim_fuel: %w", err)
	}
	return res.RowsAffected()
}

// populateDimDate inserts the rolling window, ignoring days already present
// so repeated runs stay idempotent on full_date.
func (b *Builder) populateDimDate(ctx context.Context, tx *sql.Tx) (int64, error) {
	start, end := DateWindow(b.now())
	dates := GenerateDates(start, end)

	var inserted int64
	for offset := 0; offset < len(dates); offset += dateChunkSize {
		chunk := dates[offset:min(offset+dateChunkSize, len(dates))]
		var tuples []string
		var args []any
		for _, row := range chunk {
			base := len(args)
			tuples = append(tuples, fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
				base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9))
			args = append(args,
				row.Date, row.Day, row.Month, row.Year, row.Quarter,
				row.DayOfWeek, row.DayName, row.MonthName, row.IsWeekend)
		}
		query := `
INSERT INTO analytics.dim_date (
	full_date, day, month, year, quarter, day_of_week, day_name, month_name, is_weekend
) VALUES ` + strings.Join(tuples, ",") + `
ON CONFLICT (full_date) DO NOTHING`
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return inserted, fmt.Errorf("warehouse: dim_date: %w", err)
		}
		count, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("warehouse: dim_date: %w", err)
		}
		inserted += count
	}
	return inserted, nil
}

func loadDateKeys(ctx context.Context, tx *sql.Tx) (map[string]int64, error) {
	rows, err := tx.QueryContext(ctx, "SELECT full_date, date_key FROM analytics.dim_date")
	if err != nil {
		return nil, fmt.Errorf("warehouse: load date keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]int64)
	for rows.Next() {
		var fullDate time.Time
		var dateKey int64
		if err := rows.Scan(&fullDate, &dateKey); err != nil {
			return nil, fmt.Errorf("warehouse: scan date key: %w", err)
		}
		keys[fullDate.Format("2006-01-02")] = dateKey
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("warehouse: read date keys: %w", err)
	}
	return keys, nil
}
