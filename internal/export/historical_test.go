package export

import (
	"testing"
	"time"
)

func TestFormatValue(t *testing.T) {
	if got := formatValue(nil); got != "" {
		t.Fatalf("nil: %q", got)
	}
	day := time.Date(2026, time.August, 31, 10, 30, 0, 0, time.UTC)
	if got := formatValue(day); got != "2026-08-31" {
		t.Fatalf("time: %q", got)
	}
	if got := formatValue([]byte("PB95")); got != "PB95" {
		t.Fatalf("bytes: %q", got)
	}
	if got := formatValue(int64(650)); got != "650" {
		t.Fatalf("int: %q", got)
	}
	if got := formatValue(true); got != "true" {
		t.Fatalf("bool: %q", got)
	}
}

func TestTableBaseName(t *testing.T) {
	if got := tableBaseName("public.orders"); got != "orders" {
		t.Fatalf("qualified: %q", got)
	}
	if got := tableBaseName("orders"); got != "orders" {
		t.Fatalf("bare: %q", got)
	}
}
