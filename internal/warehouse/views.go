package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"station-pipeline/internal/observability/metrics"
)

// ViewDefinition is one externally supplied query body, published verbatim
// under its name.
type ViewDefinition struct {
	Name  string
	Query string
}

// PublishSummary reports one publisher batch.
type PublishSummary struct {
	Attempted int      `json:"attempted"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// ErrViewsDirMissing is returned when the definitions directory is absent.
var ErrViewsDirMissing = errors.New("warehouse: view definitions directory does not exist")

// ViewPublisher materializes analytics views from named query definitions.
type ViewPublisher struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewViewPublisher constructs a publisher.
func NewViewPublisher(db *sql.DB, log *logrus.Logger) *ViewPublisher {
	return &ViewPublisher{db: db, log: log}
}

// LoadViewDefinitions reads every .sql file under dir; the file stem names
// the view. Empty files are ignored.
func LoadViewDefinitions(dir string) ([]ViewDefinition, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrViewsDirMissing, dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("warehouse: read views dir: %w", err)
	}

	var defs []ViewDefinition
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("warehouse: read %s: %w", entry.Name(), err)
		}
		query := strings.TrimSpace(string(content))
		if query == "" {
			continue
		}
		defs = append(defs, ViewDefinition{
			Name:  strings.TrimSuffix(entry.Name(), ".sql"),
			Query: query,
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}

// PublishDir loads definitions from dir and publishes them.
func (p *ViewPublisher) PublishDir(ctx context.Context, dir string) (PublishSummary, error) {
	defs, err := LoadViewDefinitions(dir)
	if err != nil {
		return PublishSummary{}, err
	}
	return p.Publish(ctx, defs)
}

// Publish recreates each view in its own transaction. A failing definition is
// counted and logged; the batch continues.
func (p *ViewPublisher) Publish(ctx context.Context, defs []ViewDefinition) (PublishSummary, error) {
	var summary PublishSummary
	if p == nil || p.db == nil {
		return summary, errors.New("warehouse: nil db")
	}

	if _, err := p.db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS analytics"); err != nil {
		return summary, fmt.Errorf("warehouse: ensure analytics schema: %w", err)
	}

	for _, def := range defs {
		summary.Attempted++
		if err := p.publishOne(ctx, def); err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", def.Name, err))
			metrics.IncViewPublished(metrics.ResultError)
			p.log.WithField("view", def.Name).Warnf("view publication failed: %v", err)
			continue
		}
		summary.Succeeded++
		metrics.IncViewPublished(metrics.ResultSuccess)
		p.log.WithField("view", def.Name).Info("view published")
	}

	p.log.WithFields(logrus.Fields{
		"attempted": summary.Attempted,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
	}).Info("view publication finished")
	return summary, nil
}

func (p *ViewPublisher) publishOne(ctx context.Context, def ViewDefinition) error {
	body := strings.TrimSuffix(strings.TrimSpace(def.Query), ";")

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DROP VIEW IF EXISTS analytics."+def.Name); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("drop: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "CREATE VIEW analytics."+def.Name+" AS\n"+body); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("create: %w", err)
	}
	return tx.Commit()
}
