package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// ID identifies a catalog protocol. IDs are positive and never reused.
type ID int

// String returns the decimal form of the ID
func (id ID) String() string {
	return strconv.Itoa(int(id))
}

// Valid reports whether the ID is a usable catalog identifier
func (id ID) Valid() bool {
	return id > 0
}

// ParseID parses a protocol identifier from user input
func ParseID(s string) (ID, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid protocol id %q: %w", s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid protocol id %q: must be positive", s)
	}
	return ID(n), nil
}

// Feature is a named binary attribute of a protocol, e.g. a reagent or technique
type Feature = string

// Category is one of the five top-level feature groupings
type Category string

const (
	CategoryProtocolVariable    Category = "Protocol Variable"
	CategoryAnalysisMethod      Category = "Analysis Method"
	CategoryCellProfile         Category = "Cell Profile"
	CategoryStudyCharacteristic Category = "Study Characteristic"
	CategoryMeasuredEndpoint    Category = "Measured Endpoint"
)

// Categories lists the feature categories in display (toggle) order
var Categories = []Category{
	CategoryProtocolVariable,
	CategoryAnalysisMethod,
	CategoryCellProfile,
	CategoryStudyCharacteristic,
	CategoryMeasuredEndpoint,
}

// FoundColumn is the result column name carrying the category's match flag
func (c Category) FoundColumn() string {
	return string(c) + " Feature Found"
}

// Protocol is one published experimental method in the catalog
type Protocol struct {
	ID           ID                `json:"id"`
	Title        string            `json:"title"`
	DOI          string            `json:"doi"`
	Features     []Feature         `json:"features"`
	Measurements map[string]string `json:"measurements,omitempty"`
}

// Indicator names a maturity measurement such as "Beat Rate (bpm)"
type Indicator = string

// NameKey is the reserved record key carrying the display name of a protocol
const NameKey = "ProtocolName"

// QuantileRange is a half-open (Low, High] interval of an indicator's quantile
type QuantileRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Contains reports whether v falls in (Low, High]
func (r QuantileRange) Contains(v float64) bool {
	return r.Low < v && v <= r.High
}

// Flag tags how an indicator's quantile was obtained
type Flag int

const (
	FlagPredicted  Flag = 0 // no measurement, predicted from features
	FlagMeasured   Flag = 1 // measurement inside the reference ranges
	FlagAboveBest  Flag = 3 // measurement better than the best quantile's bound
	FlagBelowWorst Flag = 4 // measurement worse than the worst quantile's bound
)

func (f Flag) String() string {
	switch f {
	case FlagPredicted:
		return "predicted"
	case FlagMeasured:
		return "measured"
	case FlagAboveBest:
		return "above_best"
	case FlagBelowWorst:
		return "below_worst"
	default:
		return fmt.Sprintf("flag(%d)", int(f))
	}
}

// IndicatorResult pairs a quantile label with its confidence flag.
// Quantile may be a fractional display label such as "Q2.5".
type IndicatorResult struct {
	Quantile string `json:"quantile"`
	Flag     Flag   `json:"flag"`
}

// BenchmarkResult is the per-protocol outcome of maturity processing
type BenchmarkResult struct {
	Name    string                        `json:"name"`
	Results map[Indicator]IndicatorResult `json:"results"`
}

// Record is a protocol's raw indicator values keyed by indicator name,
// plus the reserved NameKey. Empty strings mean "not measured".
type Record map[string]string
