// Package reference holds the immutable lookup tables the scoring engine reads:
// the binary feature matrix, the cleaned metadata table, and the column-wise
// label maps (categories, topics, target parameters).
//
// Tables are built once from tabular sources and never mutated afterwards, so
// they are safe to share across request goroutines.
package reference

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"cmportal/domain/core"
	"cmportal/domain/protocol"
)

// Identity columns carried by the catalog files that are not features
const (
	ColumnProtocolID = "Protocol ID"
	ColumnTitle      = "Title"
	ColumnDOI        = "DOI"
)

var identityColumns = map[string]bool{
	ColumnProtocolID: true,
	ColumnTitle:      true,
	ColumnDOI:        true,
}

// isIndexColumn matches the anonymous index column pandas writes ("" or "Unnamed: 0")
func isIndexColumn(name string) bool {
	return name == "" || strings.HasPrefix(name, "Unnamed:")
}

// ColumnMap maps each column header to the ordered non-empty values below it
type ColumnMap struct {
	keys   []string
	values map[string][]string
}

// NewColumnMap builds a ColumnMap from a header row and data rows, column-wise.
// Index columns are dropped; duplicate headers are rejected.
func NewColumnMap(headers []string, rows [][]string) (*ColumnMap, error) {
	m := &ColumnMap{
		keys:   make([]string, 0, len(headers)),
		values: make(map[string][]string, len(headers)),
	}
	colKey := make([]string, len(headers))
	for j, h := range headers {
		key := strings.TrimSpace(h)
		if isIndexColumn(key) {
			continue
		}
		if _, dup := m.values[key]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", core.ErrMalformedReference, key)
		}
		colKey[j] = key
		m.keys = append(m.keys, key)
		m.values[key] = nil
	}
	if len(m.keys) == 0 && len(headers) > 0 {
		return nil, fmt.Errorf("%w: no named columns", core.ErrMalformedReference)
	}
	for _, row := range rows {
		for j, cell := range row {
			if j >= len(colKey) || colKey[j] == "" {
				continue
			}
			v := strings.TrimSpace(cell)
			if v == "" {
				continue
			}
			m.values[colKey[j]] = append(m.values[colKey[j]], v)
		}
	}
	return m, nil
}

// NewColumnMapFromEntries builds a ColumnMap from already grouped values
func NewColumnMapFromEntries(keys []string, values map[string][]string) *ColumnMap {
	m := &ColumnMap{
		keys:   append([]string(nil), keys...),
		values: make(map[string][]string, len(keys)),
	}
	for _, k := range keys {
		m.values[k] = append([]string(nil), values[k]...)
	}
	return m
}

// Keys returns the column headers in file order
func (m *ColumnMap) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Get returns the values listed under key
func (m *ColumnMap) Get(key string) ([]string, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Values returns the values listed under key, or nil
func (m *ColumnMap) Values(key string) []string {
	v, _ := m.Get(key)
	return v
}

// Len returns the number of columns
func (m *ColumnMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// FeatureMatrix is the protocol x feature boolean table
type FeatureMatrix struct {
	features []protocol.Feature
	index    map[protocol.Feature]int
	ids      []protocol.ID
	rowOf    map[protocol.ID]int
	cells    [][]bool
}

// NewFeatureMatrix parses a binary feature table. When a "Protocol ID" column is
// present it supplies the row ids; otherwise rows are numbered from 1. Identity
// and index columns are excluded from the feature set.
func NewFeatureMatrix(headers []string, rows [][]string) (*FeatureMatrix, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: binary feature matrix", core.ErrEmptyTable)
	}

	m := &FeatureMatrix{
		index: make(map[protocol.Feature]int),
		rowOf: make(map[protocol.ID]int, len(rows)),
	}
	idCol := -1
	var featureCols []int
	for j, h := range headers {
		name := strings.TrimSpace(h)
		switch {
		case name == ColumnProtocolID:
			idCol = j
		case identityColumns[name], isIndexColumn(name):
			continue
		default:
			if _, dup := m.index[name]; dup {
				return nil, fmt.Errorf("%w: duplicate feature column %q", core.ErrMalformedReference, name)
			}
			m.index[name] = len(m.features)
			m.features = append(m.features, name)
			featureCols = append(featureCols, j)
		}
	}

	for i, row := range rows {
		id := protocol.ID(i + 1)
		if idCol >= 0 {
			parsed, err := protocol.ParseID(cell(row, idCol))
			if err != nil {
				return nil, fmt.Errorf("%w: row %d: %v", core.ErrMalformedReference, i+1, err)
			}
			id = parsed
		}
		if _, dup := m.rowOf[id]; dup {
			return nil, fmt.Errorf("%w: %d", core.ErrDuplicateProtocol, id)
		}

		cells := make([]bool, len(featureCols))
		for k, j := range featureCols {
			b, err := ParseBool(cell(row, j))
			if err != nil {
				return nil, fmt.Errorf("%w: protocol %d column %q: %v", core.ErrMalformedReference, id, m.features[k], err)
			}
			cells[k] = b
		}
		m.rowOf[id] = len(m.ids)
		m.ids = append(m.ids, id)
		m.cells = append(m.cells, cells)
	}
	return m, nil
}

// Features returns the feature columns in file order
func (m *FeatureMatrix) Features() []protocol.Feature {
	return append([]protocol.Feature(nil), m.features...)
}

// FeatureIndex returns the column of a feature
func (m *FeatureMatrix) FeatureIndex(f protocol.Feature) (int, bool) {
	i, ok := m.index[f]
	return i, ok
}

// HasFeature reports whether the matrix has a column for f
func (m *FeatureMatrix) HasFeature(f protocol.Feature) bool {
	_, ok := m.index[f]
	return ok
}

// Len returns the number of protocols
func (m *FeatureMatrix) Len() int {
	return len(m.ids)
}

// NumFeatures returns the number of feature columns
func (m *FeatureMatrix) NumFeatures() int {
	return len(m.features)
}

// IDAt returns the protocol id of row i
func (m *FeatureMatrix) IDAt(i int) protocol.ID {
	return m.ids[i]
}

// Cell returns the value of row i, column j
func (m *FeatureMatrix) Cell(i, j int) bool {
	return m.cells[i][j]
}

// Row returns the row index of a protocol
func (m *FeatureMatrix) Row(id protocol.ID) (int, bool) {
	i, ok := m.rowOf[id]
	return i, ok
}

// FeaturesOf returns the features set for a protocol, in column order
func (m *FeatureMatrix) FeaturesOf(id protocol.ID) ([]protocol.Feature, bool) {
	i, ok := m.rowOf[id]
	if !ok {
		return nil, false
	}
	var out []protocol.Feature
	for j, set := range m.cells[i] {
		if set {
			out = append(out, m.features[j])
		}
	}
	return out, true
}

// Table is a generic header + records table (cleaned database, enrichment records)
type Table struct {
	Columns []string
	Rows    []map[string]string
}

// NewTable builds a Table from a header row and data rows
func NewTable(headers []string, rows [][]string) *Table {
	t := &Table{Columns: make([]string, len(headers))}
	for i, h := range headers {
		t.Columns[i] = strings.TrimSpace(h)
	}
	t.Rows = make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		rec := make(map[string]string, len(t.Columns))
		for j, col := range t.Columns {
			rec[col] = strings.TrimSpace(cell(row, j))
		}
		t.Rows = append(t.Rows, rec)
	}
	return t
}

// HasColumn reports whether the table has the named column
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// MetadataTable is the cleaned database keyed by protocol id
type MetadataTable struct {
	*Table
	byID map[protocol.ID]int
	ids  []protocol.ID
}

// NewMetadataTable builds the cleaned database table. Rows whose "Protocol ID"
// is not a positive integer (such as a units row) stay in the viewer records but
// are not addressable by id.
func NewMetadataTable(headers []string, rows [][]string) (*MetadataTable, error) {
	t := NewTable(headers, rows)
	if !t.HasColumn(ColumnProtocolID) {
		return nil, fmt.Errorf("%w: cleaned database lacks %q column", core.ErrMalformedReference, ColumnProtocolID)
	}
	m := &MetadataTable{Table: t, byID: make(map[protocol.ID]int, len(t.Rows))}
	for i, rec := range t.Rows {
		id, err := protocol.ParseID(rec[ColumnProtocolID])
		if err != nil {
			continue
		}
		if _, dup := m.byID[id]; dup {
			return nil, fmt.Errorf("%w: %d", core.ErrDuplicateProtocol, id)
		}
		m.byID[id] = i
		m.ids = append(m.ids, id)
	}
	if len(m.ids) == 0 {
		return nil, fmt.Errorf("%w: cleaned database", core.ErrEmptyTable)
	}
	return m, nil
}

// Record returns the metadata row for a protocol
func (m *MetadataTable) Record(id protocol.ID) (map[string]string, bool) {
	i, ok := m.byID[id]
	if !ok {
		return nil, false
	}
	return m.Rows[i], true
}

// Value returns one cell, treating missing markers ("", "nan", "NaN") as absent
func (m *MetadataTable) Value(id protocol.ID, column string) (string, bool) {
	rec, ok := m.Record(id)
	if !ok {
		return "", false
	}
	v, ok := rec[column]
	if !ok || IsMissing(v) {
		return "", false
	}
	return v, true
}

// IDs returns the addressable protocol ids in file order
func (m *MetadataTable) IDs() []protocol.ID {
	return append([]protocol.ID(nil), m.ids...)
}

// Tables bundles every reference table the portal serves from
type Tables struct {
	Matrix            *FeatureMatrix
	Metadata          *MetadataTable
	Categories        *ColumnMap // category -> member features
	CausalCategories  *ColumnMap // causal category -> features (UI dropdowns)
	TargetParameters  *ColumnMap // topic group -> topic labels
	Topics            *ColumnMap // topic label -> enriched features
	Enrichments       *Table     // per-topic enrichment records
	SelectedVariables []string
}

// Validate checks the required tables are present and replaces absent optional
// tables with empty ones, so lookups on them miss instead of panicking.
func (t *Tables) Validate() error {
	if t.Matrix == nil || t.Matrix.Len() == 0 {
		return fmt.Errorf("%w: binary feature matrix", core.ErrEmptyTable)
	}
	if t.Metadata == nil {
		return fmt.Errorf("%w: cleaned database", core.ErrEmptyTable)
	}
	if t.Categories == nil {
		t.Categories = NewColumnMapFromEntries(nil, nil)
	}
	if t.CausalCategories == nil {
		t.CausalCategories = NewColumnMapFromEntries(nil, nil)
	}
	if t.TargetParameters == nil {
		t.TargetParameters = NewColumnMapFromEntries(nil, nil)
	}
	if t.Topics == nil {
		t.Topics = NewColumnMapFromEntries(nil, nil)
	}
	if t.Enrichments == nil {
		t.Enrichments = &Table{}
	}
	return nil
}

// SortedFeatures returns the matrix features sorted alphabetically
func (t *Tables) SortedFeatures() []protocol.Feature {
	features := t.Matrix.Features()
	sort.Strings(features)
	return features
}

// ParseBool accepts the boolean spellings found in exported feature tables
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "1.0", "yes", "y", "t":
		return true, nil
	case "false", "0", "0.0", "no", "n", "f", "", "nan":
		return false, nil
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return f != 0, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}

// IsMissing reports whether a cell holds a missing-value marker
func IsMissing(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "nan", "none", "null":
		return true
	}
	return false
}

func cell(row []string, j int) string {
	if j < len(row) {
		return row[j]
	}
	return ""
}
