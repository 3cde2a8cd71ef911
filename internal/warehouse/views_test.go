package warehouse

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadViewDefinitions(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("daily_revenue.sql", "SELECT 1;")
	write("category_sales.sql", "SELECT 2")
	write("empty.sql", "   \n")
	write("notes.txt", "not a view")

	defs, err := LoadViewDefinitions(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
	if defs[0].Name != "category_sales" || defs[1].Name != "daily_revenue" {
		t.Fatalf("unexpected order: %s, %s", defs[0].Name, defs[1].Name)
	}
	if defs[1].Query != "SELECT 1;" {
		t.Fatalf("query not preserved: %q", defs[1].Query)
	}
}

func TestLoadViewDefinitionsMissingDir(t *testing.T) {
	_, err := LoadViewDefinitions(filepath.Join(t.TempDir(), "absent"))
	if !errors.Is(err, ErrViewsDirMissing) {
		t.Fatalf("expected ErrViewsDirMissing, got %v", err)
	}
}
