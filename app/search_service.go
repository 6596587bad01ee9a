package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"cmportal/domain/core"
	"cmportal/domain/protocol"
	"cmportal/domain/reference"
	"cmportal/internal"
	"cmportal/internal/errors"
	"cmportal/internal/scoring"
	"cmportal/ports"
)

// SearchMode selects how the catalog is queried
type SearchMode string

const (
	// ModeNormal ranks by the chosen features and keeps protocols having all of them
	ModeNormal SearchMode = "normal"
	// ModeEnrichment ranks by a topic's enriched features, filtered by category toggles
	ModeEnrichment SearchMode = "enrichment"
	// ModeCombined ranks by a topic and additionally requires the chosen features
	ModeCombined SearchMode = "combined"
)

// ColumnRank carries the dense similarity rank in search results
const ColumnRank = "Protocol Similarity Rank"

// SearchRequest is a catalog query
type SearchRequest struct {
	Features []protocol.Feature `json:"selected_features"`
	Topic    string             `json:"parameter"`
	Mode     SearchMode         `json:"mode,omitempty"`
	// Toggles enable category filters, in protocol.Categories order
	Toggles []bool `json:"toggle_states,omitempty"`
}

// SearchResult is a ranked, filtered catalog table
type SearchResult struct {
	Mode    SearchMode               `json:"mode"`
	Topic   string                   `json:"parameter,omitempty"`
	Columns []string                 `json:"columns"`
	Rows    []map[string]interface{} `json:"data"`
	Ranked  []scoring.RankedProtocol `json:"-"`
	Message string                   `json:"message,omitempty"`
}

// Empty reports whether no protocol survived the query
func (r *SearchResult) Empty() bool {
	return len(r.Rows) == 0
}

// Table returns the result as ordered rows of cell values, for export
func (r *SearchResult) Table() ([]string, [][]interface{}) {
	rows := make([][]interface{}, len(r.Rows))
	for i, rec := range r.Rows {
		row := make([]interface{}, len(r.Columns))
		for j, c := range r.Columns {
			row[j] = rec[c]
		}
		rows[i] = row
	}
	return r.Columns, rows
}

// ResolveMode validates the request and returns the mode to run, inferring it
// from which of features and topic are present when none is given.
func ResolveMode(req SearchRequest) (SearchMode, error) {
	hasTopic := strings.TrimSpace(req.Topic) != ""
	hasFeatures := len(req.Features) > 0

	mode := req.Mode
	if mode == "" {
		switch {
		case hasFeatures && !hasTopic:
			mode = ModeNormal
		case hasTopic && !hasFeatures:
			mode = ModeEnrichment
		case hasTopic && hasFeatures:
			mode = ModeCombined
		default:
			return "", errors.InvalidInputWith("Invalid search criteria", core.ErrMissingCriteria)
		}
	}

	switch mode {
	case ModeNormal:
		if !hasFeatures {
			return "", errors.InvalidInputWith("Normal mode requires at least one feature", core.ErrMissingCriteria)
		}
	case ModeEnrichment:
		if !hasTopic {
			return "", errors.InvalidInputWith("Enrichment mode requires a target topic", core.ErrMissingCriteria)
		}
	case ModeCombined:
		if !hasTopic || !hasFeatures {
			return "", errors.InvalidInputWith("Combined mode requires both topic and features", core.ErrMissingCriteria)
		}
	default:
		return "", errors.InvalidInputWith(fmt.Sprintf("Unknown search mode %q", mode), core.ErrInvalidMode)
	}
	return mode, nil
}

// NoResultsMessage is the user-facing hint for an empty result in mode
func NoResultsMessage(mode SearchMode) string {
	msg := "No results found. "
	switch mode {
	case ModeNormal:
		return msg + "Try fewer features"
	case ModeEnrichment:
		return msg + "Try a different topic"
	default:
		return msg + "Try fewer constraints"
	}
}

// TopicColumn is the metadata column shown for a topic label ("X - Y" -> "X")
func TopicColumn(topic string) string {
	if i := strings.Index(topic, " -"); i >= 0 {
		return topic[:i]
	}
	return topic
}

// SearchService ranks the catalog against feature and topic queries
type SearchService struct {
	tables  ports.TablesProvider
	results *ResultCache
	logger  *internal.Logger
}

// NewSearchService creates a search service; results may be nil to disable caching
func NewSearchService(tables ports.TablesProvider, results *ResultCache, logger *internal.Logger) *SearchService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &SearchService{tables: tables, results: results, logger: logger.With("SearchService")}
}

// Search runs the query. Invalid criteria return an InvalidInput error; an
// unknown topic or an empty ranking returns an empty result with a message.
func (s *SearchService) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	mode, err := ResolveMode(req)
	if err != nil {
		return nil, err
	}

	key := cacheKey(mode, req)
	if cached, ok := s.results.Get(key); ok {
		return cached, nil
	}

	gen := s.results.Generation()
	tables, err := s.tables.Tables(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reference tables unavailable")
	}

	query, ok := buildQuery(tables, mode, req)
	result := &SearchResult{Mode: mode, Topic: req.Topic, Columns: resultColumns(tables, mode, req.Topic)}
	if ok {
		result.Ranked = scoring.RankAndFilter(tables.Matrix, tables.Categories, query)
		result.Rows = s.rows(tables, mode, req.Topic, result.Ranked)
	} else {
		s.logger.Debug("topic %q not in topic index", req.Topic)
	}
	if result.Empty() {
		result.Rows = []map[string]interface{}{}
		result.Message = NoResultsMessage(mode)
	}

	s.logger.Debug("%s search: %d of %d protocols", mode, len(result.Rows), tables.Matrix.Len())
	if !s.results.PutIfCurrent(gen, key, result) && s.results.Generation() != gen {
		s.logger.Debug("reference cleared during %s search, result not cached", mode)
	}
	return result, nil
}

// buildQuery maps a mode onto the ranker's inputs; false means unknown topic
func buildQuery(tables *reference.Tables, mode SearchMode, req SearchRequest) (scoring.RankQuery, bool) {
	if mode == ModeNormal {
		return scoring.RankQuery{Selected: req.Features, RequiredFeatures: req.Features}, true
	}

	topicFeatures, ok := tables.Topics.Get(req.Topic)
	if !ok {
		return scoring.RankQuery{}, false
	}
	q := scoring.RankQuery{Selected: topicFeatures, RequiredCategories: toggledCategories(req.Toggles)}
	if mode == ModeCombined {
		q.RequiredFeatures = req.Features
	}
	return q, true
}

func toggledCategories(toggles []bool) []protocol.Category {
	var out []protocol.Category
	for i, on := range toggles {
		if on && i < len(protocol.Categories) {
			out = append(out, protocol.Categories[i])
		}
	}
	return out
}

func resultColumns(tables *reference.Tables, mode SearchMode, topic string) []string {
	if mode == ModeNormal {
		return []string{reference.ColumnProtocolID, reference.ColumnTitle, reference.ColumnDOI, ColumnRank}
	}
	cols := []string{reference.ColumnProtocolID, reference.ColumnTitle, reference.ColumnDOI, TopicColumn(topic), ColumnRank}
	for _, key := range tables.Categories.Keys() {
		cols = append(cols, protocol.Category(key).FoundColumn())
	}
	return cols
}

func (s *SearchService) rows(tables *reference.Tables, mode SearchMode, topic string, ranked []scoring.RankedProtocol) []map[string]interface{} {
	topicCol := TopicColumn(topic)
	out := make([]map[string]interface{}, 0, len(ranked))
	for _, rp := range ranked {
		row := map[string]interface{}{
			reference.ColumnProtocolID: int(rp.ID),
			reference.ColumnTitle:      metaValue(tables, rp.ID, reference.ColumnTitle),
			reference.ColumnDOI:        metaValue(tables, rp.ID, reference.ColumnDOI),
			ColumnRank:                 rp.Rank,
		}
		if mode != ModeNormal {
			row[topicCol] = metaValue(tables, rp.ID, topicCol)
			for _, key := range tables.Categories.Keys() {
				cat := protocol.Category(key)
				row[cat.FoundColumn()] = rp.CategoryFound[cat]
			}
		}
		out = append(out, row)
	}
	return out
}

// metaValue returns a metadata cell or nil when absent
func metaValue(tables *reference.Tables, id protocol.ID, column string) interface{} {
	if v, ok := tables.Metadata.Value(id, column); ok {
		return v
	}
	return nil
}

func cacheKey(mode SearchMode, req SearchRequest) string {
	features := append([]string(nil), req.Features...)
	sort.Strings(features)
	toggles := make([]string, len(req.Toggles))
	for i, t := range req.Toggles {
		toggles[i] = fmt.Sprintf("%t", t)
	}
	return strings.Join([]string{
		string(mode),
		req.Topic,
		strings.Join(features, "\x1f"),
		strings.Join(toggles, ","),
	}, "\x1e")
}
