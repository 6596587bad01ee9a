package postgres

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"cmportal/domain/core"
	"cmportal/domain/reference"
	"cmportal/internal"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Names of the mirrored reference tables
const (
	TableBinaryFeatures          = "binary_features"
	TableCleanedDatabase         = "cleaned_database"
	TableFeatureCategories       = "feature_categories"
	TableCausalFeatureCategories = "causal_feature_categories"
	TableTargetParameters        = "target_parameters"
	TableTopics                  = "topics"
	TableEnrichments             = "enrichments"
	TableSelectedVariables       = "selected_variables"
)

const selectedVariablesHeader = "Selected Variables"

// pgUndefinedTable is the SQLSTATE for a missing relation
const pgUndefinedTable = "42P01"

// Open connects to Postgres
func Open(ctx context.Context, url string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// tableRow is one stored reference table
type tableRow struct {
	Name    string `db:"name"`
	Headers []byte `db:"headers"`
	Rows    []byte `db:"rows"`
}

// grid is the decoded form of a stored table
type grid struct {
	Headers []string
	Rows    [][]string
}

// ReferenceRepository mirrors the reference tables into Postgres and loads
// them back. It serves both as a reference source and a reference store.
type ReferenceRepository struct {
	db     *sqlx.DB
	logger *internal.Logger
}

// NewReferenceRepository creates a new reference repository
func NewReferenceRepository(db *sqlx.DB, logger *internal.Logger) *ReferenceRepository {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &ReferenceRepository{db: db, logger: logger.With("postgres")}
}

// Name identifies the source in cache stats
func (r *ReferenceRepository) Name() string {
	return "postgres"
}

// Load reads every mirrored table and rebuilds the reference tables
func (r *ReferenceRepository) Load(ctx context.Context) (*reference.Tables, error) {
	var stored []tableRow
	err := r.db.SelectContext(ctx, &stored, `SELECT name, headers, rows FROM reference_tables`)
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == pgUndefinedTable {
			return nil, fmt.Errorf("%w: reference schema not migrated", core.ErrTableNotFound)
		}
		return nil, fmt.Errorf("failed to load reference tables: %w", err)
	}
	if len(stored) == 0 {
		return nil, fmt.Errorf("%w: no reference snapshot imported", core.ErrTableNotFound)
	}

	grids := make(map[string]grid, len(stored))
	for _, row := range stored {
		var g grid
		if err := json.Unmarshal(row.Headers, &g.Headers); err != nil {
			return nil, fmt.Errorf("%w: %s headers: %v", core.ErrMalformedReference, row.Name, err)
		}
		if err := json.Unmarshal(row.Rows, &g.Rows); err != nil {
			return nil, fmt.Errorf("%w: %s rows: %v", core.ErrMalformedReference, row.Name, err)
		}
		grids[row.Name] = g
	}

	tables, err := decodeTables(grids)
	if err != nil {
		return nil, err
	}
	r.logger.Info("loaded %d reference tables (%d protocols)", len(stored), tables.Matrix.Len())
	return tables, nil
}

// Replace swaps the mirrored tables for tables in one transaction and records
// a snapshot of the import.
func (r *ReferenceRepository) Replace(ctx context.Context, tables *reference.Tables) error {
	grids := encodeTables(tables)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	snapshot := uuid.New()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO reference_snapshots (id, source, protocol_count, feature_count, topic_count)
		VALUES ($1, $2, $3, $4, $5)`,
		snapshot, "import", tables.Matrix.Len(), tables.Matrix.NumFeatures(), tables.Topics.Len())
	if err != nil {
		return fmt.Errorf("failed to record snapshot: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM reference_tables`); err != nil {
		return fmt.Errorf("failed to clear reference tables: %w", err)
	}

	for _, name := range tableOrder {
		g, ok := grids[name]
		if !ok {
			continue
		}
		headers, err := json.Marshal(g.Headers)
		if err != nil {
			return fmt.Errorf("failed to encode %s headers: %w", name, err)
		}
		rows, err := json.Marshal(g.Rows)
		if err != nil {
			return fmt.Errorf("failed to encode %s rows: %w", name, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO reference_tables (name, snapshot_id, headers, rows, row_count, updated_at)
			VALUES ($1, $2, $3, $4, $5, NOW())`,
			name, snapshot, headers, rows, len(g.Rows))
		if err != nil {
			return fmt.Errorf("failed to store %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reference import: %w", err)
	}
	r.logger.Info("imported reference snapshot %s (%d protocols)", snapshot, tables.Matrix.Len())
	return nil
}

var tableOrder = []string{
	TableBinaryFeatures,
	TableCleanedDatabase,
	TableFeatureCategories,
	TableCausalFeatureCategories,
	TableTargetParameters,
	TableTopics,
	TableEnrichments,
	TableSelectedVariables,
}

func encodeTables(t *reference.Tables) map[string]grid {
	out := make(map[string]grid, len(tableOrder))
	put := func(name string, headers []string, rows [][]string) {
		if headers == nil {
			return
		}
		if rows == nil {
			rows = [][]string{}
		}
		out[name] = grid{Headers: headers, Rows: rows}
	}

	if t.Matrix != nil {
		headers, rows := t.Matrix.Grid()
		put(TableBinaryFeatures, headers, rows)
	}
	if t.Metadata != nil {
		headers, rows := t.Metadata.Table.Grid()
		put(TableCleanedDatabase, headers, rows)
	}
	maps := map[string]*reference.ColumnMap{
		TableFeatureCategories:       t.Categories,
		TableCausalFeatureCategories: t.CausalCategories,
		TableTargetParameters:        t.TargetParameters,
		TableTopics:                  t.Topics,
	}
	for name, m := range maps {
		headers, rows := m.Grid()
		put(name, headers, rows)
	}
	headers, rows := t.Enrichments.Grid()
	put(TableEnrichments, headers, rows)

	selected := make([][]string, len(t.SelectedVariables))
	for i, v := range t.SelectedVariables {
		selected[i] = []string{v}
	}
	put(TableSelectedVariables, []string{selectedVariablesHeader}, selected)
	return out
}

func decodeTables(grids map[string]grid) (*reference.Tables, error) {
	tables := &reference.Tables{}

	g, ok := grids[TableBinaryFeatures]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrTableNotFound, TableBinaryFeatures)
	}
	matrix, err := reference.NewFeatureMatrix(g.Headers, g.Rows)
	if err != nil {
		return nil, err
	}
	tables.Matrix = matrix

	g, ok = grids[TableCleanedDatabase]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrTableNotFound, TableCleanedDatabase)
	}
	if tables.Metadata, err = reference.NewMetadataTable(g.Headers, g.Rows); err != nil {
		return nil, err
	}

	maps := []struct {
		name string
		dst  **reference.ColumnMap
	}{
		{TableFeatureCategories, &tables.Categories},
		{TableCausalFeatureCategories, &tables.CausalCategories},
		{TableTargetParameters, &tables.TargetParameters},
		{TableTopics, &tables.Topics},
	}
	for _, m := range maps {
		g, ok := grids[m.name]
		if !ok {
			continue
		}
		cm, err := reference.NewColumnMap(g.Headers, g.Rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.name, err)
		}
		*m.dst = cm
	}

	if g, ok := grids[TableEnrichments]; ok {
		tables.Enrichments = reference.NewTable(g.Headers, g.Rows)
	}
	if g, ok := grids[TableSelectedVariables]; ok {
		for _, row := range g.Rows {
			if len(row) > 0 && row[0] != "" {
				tables.SelectedVariables = append(tables.SelectedVariables, row[0])
			}
		}
	}

	if err := tables.Validate(); err != nil {
		return nil, err
	}
	return tables, nil
}
