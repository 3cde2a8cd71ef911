package warehouse

import (
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestPopulateDimDateConflictsAreIgnored(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	content, err := os.ReadFile(filepath.Join(projectRoot(), "migrations", "001_schema.sql"))
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if _, err := db.Exec(string(content)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	clock := func() time.Time {
		return time.Date(2026, time.September, 1, 8, 0, 0, 0, time.UTC)
	}
	builder := NewBuilder(db, logger, WithClock(clock))

	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "TRUNCATE TABLE analytics.dim_date CASCADE"); err != nil {
		t.Fatalf("truncate dim_date: %v", err)
	}

	first, err := builder.populateDimDate(ctx, tx)
	if err != nil {
		t.Fatalf("first populate: %v", err)
	}
	if first != 1462 {
		t.Fatalf("first populate inserted %d rows", first)
	}

	// Every day already exists, so the second pass inserts nothing.
	second, err := builder.populateDimDate(ctx, tx)
	if err != nil {
		t.Fatalf("second populate: %v", err)
	}
	if second != 0 {
		t.Fatalf("second populate inserted %d rows", second)
	}

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM analytics.dim_date").Scan(&count); err != nil {
		t.Fatalf("count dim_date: %v", err)
	}
	if count != 1462 {
		t.Fatalf("dim_date rows after duplicate populate: %d", count)
	}
}

func projectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return filepath.Clean(filepath.Join(dir, "..", ".."))
}
