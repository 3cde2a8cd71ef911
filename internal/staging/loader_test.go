package staging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFieldValue(t *testing.T) {
	header := map[string]int{"customer_id": 0, "first_name": 1, "last_name": 2}
	record := []string{"7", "  Jan  ", ""}

	if got := fieldValue(record, header, "customer_id"); got != "7" {
		t.Fatalf("customer_id: %v", got)
	}
	if got := fieldValue(record, header, "first_name"); got != "Jan" {
		t.Fatalf("first_name not trimmed: %v", got)
	}
	if got := fieldValue(record, header, "last_name"); got != nil {
		t.Fatalf("empty field should be nil, got %v", got)
	}
	if got := fieldValue(record, header, "absent"); got != nil {
		t.Fatalf("missing column should be nil, got %v", got)
	}
	if got := fieldValue(record[:1], header, "last_name"); got != nil {
		t.Fatalf("short record should be nil, got %v", got)
	}
}

func TestFindExtract(t *testing.T) {
	dir := t.TempDir()

	if path, reason := findExtract(dir, "customers"); path != "" || reason != "file does not exist" {
		t.Fatalf("absent file: path=%q reason=%q", path, reason)
	}

	empty := filepath.Join(dir, "customers.csv")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if path, reason := findExtract(dir, "customers"); path != "" || reason != "file is empty" {
		t.Fatalf("empty file: path=%q reason=%q", path, reason)
	}

	if err := os.WriteFile(empty, []byte("customer_id\n1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if path, _ := findExtract(dir, "customers"); path != empty {
		t.Fatalf("found: %q", path)
	}
}

func TestFindExtractPrefersCSV(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "orders.csv")
	if err := os.WriteFile(csvPath, []byte("order_id\n1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "orders.xlsx"), []byte("xx"), 0o644); err != nil {
		t.Fatal(err)
	}
	if path, _ := findExtract(dir, "orders"); path != csvPath {
		t.Fatalf("expected csv preferred, got %q", path)
	}
}

func TestReadTableRaggedCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "customers.csv")
	content := "customer_id,first_name,last_name\n1,Jan,Kowalski\n2,Anna\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	records, err := readTable(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(records))
	}
	if len(records[2]) != 2 {
		t.Fatalf("ragged row not preserved: %v", records[2])
	}
}
