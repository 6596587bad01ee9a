package app

import (
	"context"
	"strings"

	"cmportal/domain/core"
	"cmportal/domain/reference"
	"cmportal/internal"
	"cmportal/internal/errors"
	"cmportal/internal/profiling"
	"cmportal/internal/scoring"
	"cmportal/ports"
)

// Enrichment table columns used for filtering
const (
	ColumnTargetLabel         = "Target Label"
	ColumnPrioritisedFeatures = "Prioritised Features"
)

// Enrichment search modes
const (
	EnrichmentByTarget   = "target"
	EnrichmentByFeatures = "features"
)

// LookupTable names a category lookup served to the dashboard dropdowns
type LookupTable string

const (
	LookupProtocolFeatures LookupTable = "ProtocolFeatures"
	LookupTargetParameters LookupTable = "TargetParameters"
	LookupCausalFeatures   LookupTable = "CausalFeatures"
)

// RecordTable is a column-ordered set of string records
type RecordTable struct {
	Columns       []string            `json:"columns"`
	Data          []map[string]string `json:"data"`
	FilteredCount *int                `json:"filtered_count,omitempty"`
}

// EnrichmentQuery filters the enrichment records
type EnrichmentQuery struct {
	Mode       string
	Parameters []string
	Features   []string
}

// DashboardOptions lists the dropdown keys rendered on the index page
type DashboardOptions struct {
	FeatureCategories       []string `json:"feature_categories"`
	CausalFeatureCategories []string `json:"causal_feature_categories"`
	TargetParameters        []string `json:"target_parameters"`
}

// CatalogService serves the read-only catalog views: metadata viewer,
// enrichment records, and category lookups.
type CatalogService struct {
	tables ports.TablesProvider
	logger *internal.Logger
}

// NewCatalogService creates a catalog service
func NewCatalogService(tables ports.TablesProvider, logger *internal.Logger) *CatalogService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &CatalogService{tables: tables, logger: logger.With("CatalogService")}
}

func (s *CatalogService) load(ctx context.Context) (*reference.Tables, error) {
	tables, err := s.tables.Tables(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reference tables unavailable")
	}
	return tables, nil
}

// Options returns the lookup keys for the dashboard page
func (s *CatalogService) Options(ctx context.Context) (*DashboardOptions, error) {
	tables, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return &DashboardOptions{
		FeatureCategories:       tables.Categories.Keys(),
		CausalFeatureCategories: tables.CausalCategories.Keys(),
		TargetParameters:        tables.TargetParameters.Keys(),
	}, nil
}

// Viewer returns the whole cleaned database
func (s *CatalogService) Viewer(ctx context.Context) (*RecordTable, error) {
	tables, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if len(tables.Metadata.Rows) == 0 {
		return nil, errors.New(errors.CodeNotFound, "Viewer data not available")
	}
	return &RecordTable{Columns: tables.Metadata.Columns, Data: tables.Metadata.Rows}, nil
}

// Enrichment filters the enrichment records by target labels or by features
// named in the prioritised-features column (case-insensitive substring).
// Any other mode returns every record.
func (s *CatalogService) Enrichment(ctx context.Context, q EnrichmentQuery) (*RecordTable, error) {
	tables, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if len(tables.Enrichments.Rows) == 0 {
		return nil, errors.New(errors.CodeNotFound, "Enrichment data not available")
	}

	var rows []map[string]string
	switch q.Mode {
	case EnrichmentByTarget:
		params := nonEmpty(q.Parameters)
		if len(params) == 0 {
			return nil, errors.InvalidInputWith("No target parameters selected", core.ErrMissingCriteria)
		}
		rows = filterRows(tables.Enrichments.Rows, func(r map[string]string) bool {
			return contains(params, r[ColumnTargetLabel])
		})
	case EnrichmentByFeatures:
		features := nonEmpty(q.Features)
		if len(features) == 0 {
			return nil, errors.InvalidInputWith("No protocol features selected", core.ErrMissingCriteria)
		}
		for i := range features {
			features[i] = strings.ToLower(features[i])
		}
		rows = filterRows(tables.Enrichments.Rows, func(r map[string]string) bool {
			cell := strings.ToLower(r[ColumnPrioritisedFeatures])
			for _, f := range features {
				if strings.Contains(cell, f) {
					return true
				}
			}
			return false
		})
	default:
		rows = tables.Enrichments.Rows
	}

	return &RecordTable{Columns: tables.Enrichments.Columns, Data: rows}, nil
}

// EnrichmentFiltered filters by target labels and keeps only records whose
// prioritised feature is in the selected-variables list, when that list is loaded.
func (s *CatalogService) EnrichmentFiltered(ctx context.Context, q EnrichmentQuery) (*RecordTable, error) {
	if q.Mode != "" && q.Mode != EnrichmentByTarget {
		return nil, errors.InvalidInputWith("Filtered search only available in target mode", core.ErrInvalidMode)
	}
	q.Mode = EnrichmentByTarget
	table, err := s.Enrichment(ctx, q)
	if err != nil {
		return nil, err
	}

	tables, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	selected := tables.SelectedVariables
	if len(selected) > 0 {
		table.Data = filterRows(table.Data, func(r map[string]string) bool {
			return contains(selected, r[ColumnPrioritisedFeatures])
		})
	}
	count := len(selected)
	table.FilteredCount = &count
	return table, nil
}

// TargetParameters returns the topic labels of a target category
func (s *CatalogService) TargetParameters(ctx context.Context, category string) ([]string, error) {
	tables, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	params, ok := tables.TargetParameters.Get(category)
	if category == "" || !ok {
		return nil, errors.InvalidInputWith("Invalid category", core.ErrTopicNotFound)
	}
	return params, nil
}

// ProtocolFeatures returns every matrix feature, sorted
func (s *CatalogService) ProtocolFeatures(ctx context.Context) ([]string, error) {
	tables, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return tables.SortedFeatures(), nil
}

// Lookup returns the values under key in the named lookup table; unknown keys yield none
func (s *CatalogService) Lookup(ctx context.Context, table LookupTable, key string) ([]string, error) {
	tables, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	var m *reference.ColumnMap
	switch table {
	case LookupProtocolFeatures:
		m = tables.Categories
	case LookupTargetParameters:
		m = tables.TargetParameters
	case LookupCausalFeatures:
		m = tables.CausalCategories
	default:
		return nil, errors.InvalidInput("unknown lookup table " + string(table))
	}
	values := m.Values(key)
	if values == nil {
		values = []string{}
	}
	return values, nil
}

// IndicatorSummary describes how the catalog's measurements of every ranged
// indicator are distributed across its quantile ranges
func (s *CatalogService) IndicatorSummary(ctx context.Context) ([]profiling.IndicatorSummary, error) {
	tables, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	summaries, err := profiling.SummarizeCatalog(tables.Metadata, scoring.RangedIndicators())
	if err != nil {
		return nil, errors.Wrap(err, "failed to summarize indicators")
	}
	return summaries, nil
}

func filterRows(rows []map[string]string, keep func(map[string]string) bool) []map[string]string {
	out := make([]map[string]string, 0, len(rows))
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
