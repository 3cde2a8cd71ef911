package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// factChunkSize bounds the payload of one fact insert statement. Chunking has
// no transactional meaning; the whole fact load shares the rebuild
// transaction.
const factChunkSize = 1000

// trailerFlatFee is the fixed rental surcharge, in major units, applied when
// an order has a trailer attached.
var trailerFlatFee = decimal.New(5000, -2)

// minorToMajor converts minor currency units (grosze) to an exact decimal
// amount in major units.
func minorToMajor(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Shift(-2)
}

// OrderCosts holds the derived monetary measures of one fact row.
type OrderCosts struct {
	FuelAmount  decimal.Decimal
	FuelCost    decimal.Decimal
	ProductCost decimal.Decimal
	TrailerCost decimal.Decimal
	TotalCost   decimal.Decimal
}

// computeOrderCosts derives all cost measures in decimal arithmetic. Prices
// arrive in minor units; a missing product price contributes zero.
func computeOrderCosts(fuelAmount, fuelPriceMinor int64, productPriceMinor sql.NullInt64, hasTrailer bool) OrderCosts {
	costs := OrderCosts{
		FuelAmount:  decimal.NewFromInt(fuelAmount),
		ProductCost: decimal.Zero,
		TrailerCost: decimal.Zero,
	}
	costs.FuelCost = costs.FuelAmount.Mul(minorToMajor(fuelPriceMinor))
	if productPriceMinor.Valid {
		costs.ProductCost = minorToMajor(productPriceMinor.Int64)
	}
	if hasTrailer {
		costs.TrailerCost = trailerFlatFee
	}
	costs.TotalCost = costs.FuelCost.Add(costs.ProductCost).Add(costs.TrailerCost)
	return costs
}

// orderSource is one production order joined to its fuel transaction and
// optional product.
type orderSource struct {
	OrderID           int64
	Status            string
	Date              time.Time
	CustomerID        int64
	TrailerID         sql.NullInt64
	ProductID         sql.NullInt64
	FuelID            int64
	FuelAmount        int64
	FuelPriceMinor    int64
	ProductPriceMinor sql.NullInt64
}

const orderSourceQuery = `
SELECT
	o.order_id,
	o.order_status,
	o.order_date,
	o.customer_id,
	o.trailer_id,
	o.product_id,
	o.fuel_id,
	f.amount,
	f.fuel_price,
	p.price
FROM public.orders o
JOIN public.fuel f ON o.fuel_id = f.fuel_id
LEFT JOIN public.products p ON o.product_id = p.product_id
ORDER BY o.order_id`

// factInsertColumns matches the tuple built by appendFactArgs.
const factInsertColumns = `
INSERT INTO analytics.fct_orders (
	order_id, date_key, customer_key, product_key,
	trailer_key, fuel_key, order_status, order_date,
	fuel_amount, fuel_cost, product_cost, trailer_cost, total_cost
) VALUES `

const factArgsPerRow = 13

// factTuple renders one VALUES tuple resolving natural keys to surrogate
// keys against the freshly built dimensions. A NULL natural key resolves to a
// NULL surrogate key through the empty subselect result.
func factTuple(offset int) string {
	n := func(i int) string { return fmt.Sprintf("$%d", offset+i) }
	return "(" + n(1) + ", " + n(2) + ",\n" +
		"	(SELECT customer_key FROM analytics.dim_customer WHERE customer_id = " + n(3) + "),\n" +
		"	(SELECT product_key FROM analytics.dim_product WHERE product_id = " + n(4) + "),\n" +
		"	(SELECT trailer_key FROM analytics.dim_trailer WHERE trailer_id = " + n(5) + "),\n" +
		"	(SELECT fuel_key FROM analytics.dim_fuel WHERE fuel_id = " + n(6) + "),\n" +
		"	" + n(7) + ", " + n(8) + ", " + n(9) + ", " + n(10) + ", " + n(11) + ", " + n(12) + ", " + n(13) + ")"
}

// loadFacts populates fct_orders inside the rebuild transaction. Orders whose
// date falls outside the generated dim_date window are skipped, not errors.
func (b *Builder) loadFacts(ctx context.Context, tx *sql.Tx, dateKeys map[string]int64) (inserted, skipped int64, err error) {
	rows, err := tx.QueryContext(ctx, orderSourceQuery)
	if err != nil {
		return 0, 0, fmt.Errorf("warehouse: query orders: %w", err)
	}
	defer rows.Close()

	var sources []orderSource
	for rows.Next() {
		var src orderSource
		if err := rows.Scan(
			&src.OrderID,
			&src.Status,
			&src.Date,
			&src.CustomerID,
			&src.TrailerID,
			&src.ProductID,
			&src.FuelID,
			&src.FuelAmount,
			&src.FuelPriceMinor,
			&src.ProductPriceMinor,
		); err != nil {
			return 0, 0, fmt.Errorf("warehouse: scan order: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("warehouse: read orders: %w", err)
	}

	var args []any
	var tuples []string
	flush := func() error {
		if len(tuples) == 0 {
			return nil
		}
		query := factInsertColumns + strings.Join(tuples, ",\n")
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("warehouse: insert facts: %w", err)
		}
		inserted += int64(len(tuples))
		args = args[:0]
		tuples = tuples[:0]
		return nil
	}

	for _, src := range sources {
		dateKey, ok := dateKeys[src.Date.Format("2006-01-02")]
		if !ok {
			skipped++
			continue
		}
		costs := computeOrderCosts(src.FuelAmount, src.FuelPriceMinor, src.ProductPriceMinor, src.TrailerID.Valid)
		tuples = append(tuples, factTuple(len(args)))
		args = append(args,
			src.OrderID,
			dateKey,
			src.CustomerID,
			src.ProductID,
			src.TrailerID,
			src.FuelID,
			src.Status,
			src.Date,
			costs.FuelAmount,
			costs.FuelCost,
			costs.ProductCost,
			costs.TrailerCost,
			costs.TotalCost,
		)
		if len(tuples) >= factChunkSize {
			if err := flush(); err != nil {
				return inserted, skipped, err
			}
		}
	}
	if err := flush(); err != nil {
		return inserted, skipped, err
	}
	return inserted, skipped, nil
}
