package scoring

import (
	"cmportal/domain/protocol"
)

// Classify maps a measurement to the first quantile whose (low, high] interval
// contains it, scanning Q1 to QN. Values matching no range, and indicators
// without a range table, classify as Q1.
func Classify(indicator protocol.Indicator, value float64) string {
	for i, r := range maturityQuantiles[indicator] {
		if r.Contains(value) {
			return QuantileLabel(i + 1)
		}
	}
	return QuantileLabel(1)
}

// ClassifyMeasurement classifies a measured value and tags it with a confidence
// flag. Values beyond the best quantile's outer bound are FlagAboveBest in Q1;
// values at or beyond the worst quantile's outer bound are FlagBelowWorst in QN.
// The outer bounds depend on the indicator's direction.
func ClassifyMeasurement(indicator protocol.Indicator, value float64) protocol.IndicatorResult {
	ranges, ok := maturityQuantiles[indicator]
	if !ok || len(ranges) == 0 {
		return protocol.IndicatorResult{Quantile: QuantileLabel(1), Flag: protocol.FlagMeasured}
	}

	best, worst := ranges[0], ranges[len(ranges)-1]
	worstLabel := QuantileLabel(len(ranges))

	if IsReversed(indicator) {
		if value < best.Low {
			return protocol.IndicatorResult{Quantile: QuantileLabel(1), Flag: protocol.FlagAboveBest}
		}
		if value >= worst.High {
			return protocol.IndicatorResult{Quantile: worstLabel, Flag: protocol.FlagBelowWorst}
		}
	} else {
		if value > best.High {
			return protocol.IndicatorResult{Quantile: QuantileLabel(1), Flag: protocol.FlagAboveBest}
		}
		if value <= worst.Low {
			return protocol.IndicatorResult{Quantile: worstLabel, Flag: protocol.FlagBelowWorst}
		}
	}

	return protocol.IndicatorResult{Quantile: Classify(indicator, value), Flag: protocol.FlagMeasured}
}
