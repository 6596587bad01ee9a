package scoring

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"cmportal/domain/protocol"
	"cmportal/domain/reference"
	"cmportal/internal"
)

// DefaultProtocolName names records that carry no NameKey value
const DefaultProtocolName = "Unnamed Protocol"

// Processor turns a protocol's raw indicator record into per-indicator
// quantile results, classifying measured values and predicting the rest.
type Processor struct {
	topics *reference.ColumnMap
	logger *internal.Logger
}

// NewProcessor creates a processor that predicts from the given topic table
func NewProcessor(topics *reference.ColumnMap, logger *internal.Logger) *Processor {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Processor{topics: topics, logger: logger.With("scoring")}
}

// Process classifies every non-empty value in record and predicts each
// expected indicator left without a value or holding a missing-value
// marker such as "nan". Values that fail to parse are
// logged and the indicator is left out of the result. The only error is
// malformed topic labels.
func (p *Processor) Process(record protocol.Record, features []protocol.Feature) (protocol.BenchmarkResult, error) {
	result := protocol.BenchmarkResult{
		Name:    DefaultProtocolName,
		Results: make(map[protocol.Indicator]protocol.IndicatorResult),
	}
	if name := strings.TrimSpace(record[protocol.NameKey]); name != "" {
		result.Name = name
	}

	skipped := make(map[protocol.Indicator]bool)
	for _, indicator := range recordKeys(record) {
		raw := strings.TrimSpace(record[indicator])
		if reference.IsMissing(raw) {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			p.logger.Warn("%s: skipping %q, value %q is not numeric", result.Name, indicator, raw)
			skipped[indicator] = true
			continue
		}
		result.Results[indicator] = ClassifyMeasurement(indicator, v)
	}

	for _, indicator := range ExpectedIndicators {
		if _, done := result.Results[indicator]; done || skipped[indicator] {
			continue
		}
		byQuantile, err := QuantileFeatures(indicator, p.topics)
		if err != nil {
			return protocol.BenchmarkResult{}, err
		}
		pred := Predict(features, byQuantile)
		result.Results[indicator] = protocol.IndicatorResult{Quantile: pred.Quantile, Flag: protocol.FlagPredicted}
	}

	p.logger.Debug("%s: %d indicators processed", result.Name, len(result.Results))
	return result, nil
}

// ProcessAll runs Process over an ordered batch, stopping at the first error
func (p *Processor) ProcessAll(records []protocol.Record, features [][]protocol.Feature) ([]protocol.BenchmarkResult, error) {
	out := make([]protocol.BenchmarkResult, 0, len(records))
	for i, rec := range records {
		var feats []protocol.Feature
		if i < len(features) {
			feats = features[i]
		}
		res, err := p.Process(rec, feats)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// recordKeys returns the record's indicator keys in a stable order
func recordKeys(record protocol.Record) []string {
	keys := make([]string, 0, len(record))
	for k := range record {
		if k == protocol.NameKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
