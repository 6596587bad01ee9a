// Package profiling summarizes how the catalog's measured maturity indicators
// are distributed, and how those measurements fall across the fixed quantile
// ranges.
package profiling

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"cmportal/domain/protocol"
	"cmportal/domain/reference"
	"cmportal/internal/scoring"
)

// minNormalitySample is the smallest sample the normality check runs on
const minNormalitySample = 8

// IndicatorSummary describes the catalog's measurements of one indicator
type IndicatorSummary struct {
	Indicator protocol.Indicator `json:"indicator"`
	Count     int                `json:"count"`
	Missing   int                `json:"missing"`
	Mean      float64            `json:"mean"`
	StdDev    float64            `json:"std_dev"`
	Min       float64            `json:"min"`
	Median    float64            `json:"median"`
	Max       float64            `json:"max"`
	Skewness  float64            `json:"skewness"`
	Outliers  int                `json:"outliers"`
	IsNormal  bool               `json:"is_normal"`
	NormalP   float64            `json:"normal_p"`
	// Quintiles are the 20/40/60/80th empirical percentiles
	Quintiles []float64 `json:"quintiles"`
	// Buckets counts measurements per fixed quantile label ("Q1".."Qn")
	Buckets map[string]int `json:"buckets"`
}

// Summarize computes the summary of a set of measurements. An empty sample
// yields a summary with only Missing and an empty bucket table.
func Summarize(indicator protocol.Indicator, values []float64, missing int) (IndicatorSummary, error) {
	s := IndicatorSummary{
		Indicator: indicator,
		Count:     len(values),
		Missing:   missing,
		Buckets:   make(map[string]int),
	}
	if ranges, ok := scoring.QuantileRanges(indicator); ok {
		for i := range ranges {
			s.Buckets[scoring.QuantileLabel(i+1)] = 0
		}
	}
	if len(values) == 0 {
		return s, nil
	}

	var err error
	if s.Mean, err = stats.Mean(values); err != nil {
		return s, fmt.Errorf("%s mean: %w", indicator, err)
	}
	if len(values) > 1 {
		if s.StdDev, err = stats.StandardDeviationSample(values); err != nil {
			return s, fmt.Errorf("%s std dev: %w", indicator, err)
		}
	}
	if s.Min, err = stats.Min(values); err != nil {
		return s, err
	}
	if s.Max, err = stats.Max(values); err != nil {
		return s, err
	}
	if s.Median, err = stats.Median(values); err != nil {
		return s, err
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	for _, p := range []float64{0.2, 0.4, 0.6, 0.8} {
		s.Quintiles = append(s.Quintiles, stat.Quantile(p, stat.Empirical, sorted, nil))
	}

	if len(values) > 1 {
		q25, err := stats.Percentile(values, 25)
		if err != nil {
			return s, fmt.Errorf("%s first quartile: %w", indicator, err)
		}
		q75, err := stats.Percentile(values, 75)
		if err != nil {
			return s, fmt.Errorf("%s third quartile: %w", indicator, err)
		}
		s.Outliers = countOutliers(values, q25, q75)
	}
	if s.StdDev > 0 {
		s.Skewness = skewness(values, s.Mean, s.StdDev)
	}
	s.IsNormal, s.NormalP = normality(values, s.Mean, s.StdDev)

	for _, v := range values {
		s.Buckets[scoring.ClassifyMeasurement(indicator, v).Quantile]++
	}
	return s, nil
}

// SummarizeCatalog summarizes each indicator's column of the metadata table.
// Non-numeric cells count as missing; indicators without a column are skipped.
func SummarizeCatalog(meta *reference.MetadataTable, indicators []protocol.Indicator) ([]IndicatorSummary, error) {
	out := make([]IndicatorSummary, 0, len(indicators))
	for _, ind := range indicators {
		if !meta.HasColumn(ind) {
			continue
		}
		var values []float64
		missing := 0
		for _, id := range meta.IDs() {
			raw, ok := meta.Value(id, ind)
			if !ok {
				missing++
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				missing++
				continue
			}
			values = append(values, v)
		}
		s, err := Summarize(ind, values, missing)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// skewness is the bias-corrected Fisher-Pearson coefficient
func skewness(data []float64, mean, stdDev float64) float64 {
	if len(data) < 3 {
		return 0
	}
	n := float64(len(data))
	sum := 0.0
	for _, x := range data {
		d := (x - mean) / stdDev
		sum += d * d * d
	}
	return sum / n * math.Sqrt(n*(n-1)) / (n - 2)
}

func kurtosis(data []float64, mean, stdDev float64) float64 {
	n := float64(len(data))
	sum := 0.0
	for _, x := range data {
		d := (x - mean) / stdDev
		sum += d * d * d * d
	}
	return sum / n
}

// normality is a skewness/kurtosis screen against a chi-squared(2) reference.
// Small or constant samples are never reported normal.
func normality(data []float64, mean, stdDev float64) (bool, float64) {
	if len(data) < minNormalitySample || stdDev == 0 {
		return false, 1.0
	}
	score := math.Abs(skewness(data, mean, stdDev)) + math.Abs(kurtosis(data, mean, stdDev)-3)/2
	p := 1 - distuv.ChiSquared{K: 2}.CDF(score*score)
	return p > 0.05, p
}

// countOutliers counts values beyond 1.5 IQR of the quartiles
func countOutliers(data []float64, q25, q75 float64) int {
	iqr := q75 - q25
	lo, hi := q25-1.5*iqr, q75+1.5*iqr
	n := 0
	for _, x := range data {
		if x < lo || x > hi {
			n++
		}
	}
	return n
}
