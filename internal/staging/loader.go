package staging

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"station-pipeline/internal/observability/metrics"
)

// entitySpec maps an extract entity to its staging table and column list.
// The extract file is <entity>.csv or <entity>.xlsx.
type entitySpec struct {
	table   string
	columns []string
}

var entitySpecs = map[string]entitySpec{
	"customers": {
		table:   "staging.customers",
		columns: []string{"customer_id", "first_name", "last_name", "customer_status"},
	},
	"fuel": {
		table:   "staging.fuel",
		columns: []string{"fuel_id", "fuel_type", "amount", "fuel_price", "transaction_date"},
	},
	"trailers": {
		table:   "staging.trailers",
		columns: []string{"trailer_id", "registry_number", "trailer_status", "start_date", "end_date"},
	},
	"products": {
		table:   "staging.products",
		columns: []string{"product_id", "product_type", "quantity", "price"},
	},
	"orders": {
		table:   "staging.orders",
		columns: []string{"order_id", "order_status", "order_date", "customer_id", "trailer_id", "product_id", "fuel_id"},
	},
}

var loadOrder = []string{"customers", "fuel", "trailers", "products", "orders"}

var stagingTables = []string{
	"staging.customers",
	"staging.fuel",
	"staging.trailers",
	"staging.products",
	"staging.orders",
}

// ErrDataDirMissing is returned before any staging table is touched.
var ErrDataDirMissing = errors.New("staging: extract directory does not exist")

// RowFailure records one rejected extract row.
type RowFailure struct {
	Line int    `json:"line"`
	Err  string `json:"error"`
}

// FileResult summarizes one extract file.
type FileResult struct {
	Entity   string       `json:"entity"`
	File     string       `json:"file"`
	Table    string       `json:"table"`
	Rows     int          `json:"rows"`
	Loaded   int          `json:"loaded"`
	Failed   int          `json:"failed"`
	Skipped  bool         `json:"skipped"`
	Reason   string       `json:"reason,omitempty"`
	Failures []RowFailure `json:"failures,omitempty"`
}

// LoadSummary aggregates per-file results for one loader run.
type LoadSummary struct {
	Dir   string       `json:"dir"`
	Files []FileResult `json:"files"`
}

// Loaded returns the total number of rows inserted across all files.
func (s LoadSummary) Loaded() int {
	total := 0
	for _, f := range s.Files {
		total += f.Loaded
	}
	return total
}

// Failed returns the total number of rejected rows across all files.
func (s LoadSummary) Failed() int {
	total := 0
	for _, f := range s.Files {
		total += f.Failed
	}
	return total
}

// Loader moves extract files into the staging schema.
type Loader struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewLoader constructs a loader.
func NewLoader(db *sql.DB, log *logrus.Logger) *Loader {
	return &Loader{db: db, log: log}
}

// Run truncates all staging tables and loads every known extract file found
// in dir. A missing or empty file skips that entity; a malformed row skips
// only itself.
func (l *Loader) Run(ctx context.Context, dir string) (LoadSummary, error) {
	summary := LoadSummary{Dir: dir}
	if l == nil || l.db == nil {
		return summary, errors.New("staging: nil db")
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return summary, fmt.Errorf("%w: %s", ErrDataDirMissing, dir)
	}

	if err := l.clearStaging(ctx); err != nil {
		return summary, err
	}
	l.log.Info("staging tables cleared")

	l.warnUnknownFiles(dir)

	for _, entity := range loadOrder {
		result := l.loadEntity(ctx, dir, entity)
		summary.Files = append(summary.Files, result)
		metrics.AddRowsLoaded(entity, int64(result.Loaded))
		metrics.AddRowsRejected(entity, int64(result.Failed))
		if result.Skipped {
			l.log.WithFields(logrus.Fields{"entity": entity, "reason": result.Reason}).Warn("extract skipped")
			continue
		}
		l.log.WithFields(logrus.Fields{
			"entity": entity,
			"file":   result.File,
			"loaded": result.Loaded,
			"failed": result.Failed,
		}).Info("extract loaded")
	}
	return summary, nil
}

func (l *Loader) clearStaging(ctx context.Context) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("staging: begin truncate: %w", err)
	}
	for _, table := range stagingTables {
		if _, err := tx.ExecContext(ctx, "TRUNCATE "+table); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("staging: truncate %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// warnUnknownFiles flags tabular files that map to no staging table. Unknown
// files are ignored, not fatal, so a schema change upstream cannot break the
// load.
func (l *Loader) warnUnknownFiles(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".csv" && ext != ".xlsx" {
			continue
		}
		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if _, ok := entitySpecs[stem]; !ok {
			l.log.WithField("file", entry.Name()).Warn("unknown extract file, skipping")
		}
	}
}

func (l *Loader) loadEntity(ctx context.Context, dir, entity string) FileResult {
	spec := entitySpecs[entity]
	result := FileResult{Entity: entity, Table: spec.table}

	path, reason := findExtract(dir, entity)
	if path == "" {
		result.Skipped = true
		result.Reason = reason
		return result
	}
	result.File = filepath.Base(path)

	records, err := readTable(path)
	if err != nil {
		result.Skipped = true
		result.Reason = fmt.Sprintf("read error: %v", err)
		return result
	}
	if len(records) < 2 {
		result.Skipped = true
		result.Reason = "no data rows"
		return result
	}

	header := records[0]
	headerIndex := make(map[string]int, len(header))
	for i, name := range header {
		headerIndex[strings.TrimSpace(name)] = i
	}

	placeholders := make([]string, 0, len(spec.columns)+1)
	for i := 0; i < len(spec.columns)+1; i++ {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (%s, source_file) VALUES (%s)",
		spec.table,
		strings.Join(spec.columns, ", "),
		strings.Join(placeholders, ", "),
	)

	sourceFile := filepath.Base(path)
	for i, record := range records[1:] {
		result.Rows++
		args := make([]any, 0, len(spec.columns)+1)
		for _, col := range spec.columns {
			args = append(args, fieldValue(record, headerIndex, col))
		}
		args = append(args, sourceFile)
		if _, err := l.db.ExecContext(ctx, query, args...); err != nil {
			result.Failed++
			result.Failures = append(result.Failures, RowFailure{Line: i + 2, Err: err.Error()})
			l.log.WithFields(logrus.Fields{"file": sourceFile, "line": i + 2}).
				Warnf("row rejected: %v", err)
			continue
		}
		result.Loaded++
	}
	return result
}

// fieldValue resolves one column from a record, mapping empty strings and
// missing columns to NULL.
func fieldValue(record []string, headerIndex map[string]int, column string) any {
	idx, ok := headerIndex[column]
	if !ok || idx >= len(record) {
		return nil
	}
	value := strings.TrimSpace(record[idx])
	if value == "" {
		return nil
	}
	return value
}

// findExtract locates <entity>.csv or <entity>.xlsx under dir.
func findExtract(dir, entity string) (string, string) {
	for _, ext := range []string{".csv", ".xlsx"} {
		path := filepath.Join(dir, entity+ext)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.Size() == 0 {
			return "", "file is empty"
		}
		return path, ""
	}
	return "", "file does not exist"
}

// readTable parses a header-delimited extract. CSV files must be UTF-8.
func readTable(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return readXLSX(path)
	default:
		return readCSV(path)
	}
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}
