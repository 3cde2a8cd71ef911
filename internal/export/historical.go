package export

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

var productionTables = []string{
	"public.customers",
	"public.orders",
	"public.fuel",
	"public.trailers",
	"public.products",
}

const workbookName = "station_snapshot.xlsx"

// TableExport reports one archived table.
type TableExport struct {
	Table string `json:"table"`
	Rows  int    `json:"rows"`
}

// ExportSummary reports one archive run.
type ExportSummary struct {
	Dir    string        `json:"dir"`
	Tables []TableExport `json:"tables"`
}

// Exporter snapshots the production tables into a monthly archive directory,
// one CSV per table plus a combined XLSX workbook. Each row is stamped with
// the export date.
type Exporter struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewExporter constructs an exporter.
func NewExporter(db *sql.DB, log *logrus.Logger) *Exporter {
	return &Exporter{db: db, log: log}
}

// Run writes the archive into dir, creating it if needed.
func (e *Exporter) Run(ctx context.Context, dir string) (ExportSummary, error) {
	summary := ExportSummary{Dir: dir}
	if e == nil || e.db == nil {
		return summary, errors.New("export: nil db")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return summary, fmt.Errorf("export: create %s: %w", dir, err)
	}

	workbook := excelize.NewFile()
	defer workbook.Close()

	for i, table := range productionTables {
		name := tableBaseName(table)
		header, records, err := e.dumpTable(ctx, table)
		if err != nil {
			return summary, err
		}
		if err := writeCSV(filepath.Join(dir, name+".csv"), header, records); err != nil {
			return summary, fmt.Errorf("export: write %s.csv: %w", name, err)
		}
		if err := addSheet(workbook, name, i == 0, header, records); err != nil {
			return summary, fmt.Errorf("export: sheet %s: %w", name, err)
		}
		summary.Tables = append(summary.Tables, TableExport{Table: table, Rows: len(records)})
		e.log.WithFields(logrus.Fields{"table": table, "rows": len(records)}).Info("table archived")
	}

	if err := workbook.SaveAs(filepath.Join(dir, workbookName)); err != nil {
		return summary, fmt.Errorf("export: write workbook: %w", err)
	}
	e.log.WithField("dir", dir).Info("historical snapshot written")
	return summary, nil
}

func (e *Exporter) dumpTable(ctx context.Context, table string) ([]string, [][]string, error) {
	rows, err := e.db.QueryContext(ctx, "SELECT *, CURRENT_DATE AS load_date FROM "+table)
	if err != nil {
		return nil, nil, fmt.Errorf("export: query %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("export: columns %s: %w", table, err)
	}

	var records [][]string
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, nil, fmt.Errorf("export: scan %s: %w", table, err)
		}
		record := make([]string, len(columns))
		for i, value := range values {
			record[i] = formatValue(value)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("export: read %s: %w", table, err)
	}
	return columns, records, nil
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case time.Time:
		return v.Format("2006-01-02")
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func tableBaseName(table string) string {
	if idx := strings.LastIndex(table, "."); idx >= 0 {
		return table[idx+1:]
	}
	return table
}

func writeCSV(path string, header []string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writer.WriteAll(records); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

func addSheet(workbook *excelize.File, name string, first bool, header []string, records [][]string) error {
	if first {
		workbook.SetSheetName("Sheet1", name)
	} else {
		if _, err := workbook.NewSheet(name); err != nil {
			return err
		}
	}
	for col, value := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := workbook.SetCellValue(name, cell, value); err != nil {
			return err
		}
	}
	for rowIdx, record := range records {
		for col, value := range record {
			cell, err := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			if err != nil {
				return err
			}
			if err := workbook.SetCellValue(name, cell, value); err != nil {
				return err
			}
		}
	}
	return nil
}
