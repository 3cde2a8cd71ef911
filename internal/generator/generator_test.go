package generator

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2026, time.September, 15, 12, 0, 0, 0, time.UTC)
	}
}

func readRecords(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	return records
}

func TestGeneratorWritesAllExtracts(t *testing.T) {
	dir := t.TempDir()
	gen := New(testLogger(), WithSeed(1), WithClock(fixedClock()))

	summary, err := gen.Run(dir)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	for _, name := range []string{"customers.csv", "fuel.csv", "trailers.csv", "products.csv", "orders.csv"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}

	if summary.Customers < 120 || summary.Customers > 180 {
		t.Fatalf("customers out of range: %d", summary.Customers)
	}
	if summary.Fuel < 600 || summary.Fuel > 900 {
		t.Fatalf("fuel out of range: %d", summary.Fuel)
	}
	if summary.Trailers < 12 || summary.Trailers > 20 {
		t.Fatalf("trailers out of range: %d", summary.Trailers)
	}
	if summary.Products != len(productTypes) {
		t.Fatalf("products: %d", summary.Products)
	}
	if summary.Orders < 1000 || summary.Orders > 1500 {
		t.Fatalf("orders out of range: %d", summary.Orders)
	}
}

func TestGeneratorOrdersStayInPreviousMonth(t *testing.T) {
	dir := t.TempDir()
	gen := New(testLogger(), WithSeed(7), WithClock(fixedClock()))
	if _, err := gen.Run(dir); err != nil {
		t.Fatalf("run: %v", err)
	}

	records := readRecords(t, filepath.Join(dir, "orders.csv"))
	if got := records[0][2]; got != "order_date" {
		t.Fatalf("header mismatch: %v", records[0])
	}
	for _, record := range records[1:] {
		if !strings.HasPrefix(record[2], "2026-08-") {
			t.Fatalf("order date outside previous month: %s", record[2])
		}
	}
}

func TestGeneratorOptionalOrderReferences(t *testing.T) {
	dir := t.TempDir()
	gen := New(testLogger(), WithSeed(42), WithClock(fixedClock()))
	if _, err := gen.Run(dir); err != nil {
		t.Fatalf("run: %v", err)
	}

	records := readRecords(t, filepath.Join(dir, "orders.csv"))
	withTrailer, withoutTrailer := 0, 0
	for _, record := range records[1:] {
		if record[4] == "" {
			withoutTrailer++
		} else {
			withTrailer++
		}
	}
	if withTrailer == 0 || withoutTrailer == 0 {
		t.Fatalf("trailer attach rate degenerate: with=%d without=%d", withTrailer, withoutTrailer)
	}
}

func TestGeneratorSeedIsReproducible(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	if _, err := New(testLogger(), WithSeed(5), WithClock(fixedClock())).Run(dirA); err != nil {
		t.Fatalf("run a: %v", err)
	}
	if _, err := New(testLogger(), WithSeed(5), WithClock(fixedClock())).Run(dirB); err != nil {
		t.Fatalf("run b: %v", err)
	}

	a, err := os.ReadFile(filepath.Join(dirA, "orders.csv"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(filepath.Join(dirB, "orders.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Fatal("seeded runs diverged")
	}
}
