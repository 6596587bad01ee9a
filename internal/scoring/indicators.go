// Package scoring implements the protocol scoring engine: fixed-range quantile
// classification of maturity measurements, feature-similarity quantile
// prediction, per-indicator benchmark processing, and feature-overlap ranking
// of the catalog.
//
// Every function here is a pure function of its arguments; reference tables
// are passed in, never looked up globally.
package scoring

import (
	"fmt"
	"strings"

	"cmportal/domain/protocol"
)

// Maturity indicator names
const (
	SarcomereLength          = "Sarcomere Length (um)"
	CellArea                 = "Cell Area (um2)"
	TTubuleStructure         = "T-tubule Structure (Found)"
	ContractileForce         = "Contractile Force (mN)"
	ContractileStress        = "Contractile Stress (mN/mm2)"
	ContractionUpstroke      = "Contraction Upstroke Velocity (um/s)"
	CalciumFluxAmplitude     = "Calcium Flux Amplitude (F/F0)"
	TimeToCalciumPeak        = "Time to Calcium Flux Peak (ms)"
	TimeCalciumToRelaxation  = "Time from Calcium Peak to Relaxation (ms)"
	CalciumConduction        = "Conduction Velocity from Calcium Imaging (cm/s)"
	APConductionVelocity     = "Action Potential Conduction Velocity (cm/s)"
	APAmplitude              = "Action Potential Amplitude (mV)"
	RestingMembranePotential = "Resting Membrane Potential (mV)"
	BeatRate                 = "Beat Rate (bpm)"
	MaxCaptureRate           = "Max Capture Rate of Paced CMs (Hz)"
	MYH7Percentage           = "MYH7 Percentage (MYH6)"
	MYL2Percentage           = "MYL2 Percentage (MYL7)"
	TNNI3Percentage          = "TNNI3 Percentage (TNNI1)"
	CellDensity3D            = "3D Estimated Cell Density (mil cells/mL)"
)

// ExpectedIndicators are the 18 indicators every benchmark reports, in display order.
// CellDensity3D has reference ranges but is only classified when measured.
var ExpectedIndicators = []protocol.Indicator{
	SarcomereLength,
	CellArea,
	TTubuleStructure,
	ContractileForce,
	ContractileStress,
	ContractionUpstroke,
	CalciumFluxAmplitude,
	TimeToCalciumPeak,
	TimeCalciumToRelaxation,
	CalciumConduction,
	APConductionVelocity,
	APAmplitude,
	RestingMembranePotential,
	BeatRate,
	MaxCaptureRate,
	MYH7Percentage,
	MYL2Percentage,
	TNNI3Percentage,
}

type q = protocol.QuantileRange

// maturityQuantiles holds each indicator's ranges, index 0 = Q1 (best).
// Reversed indicators list their worst range with Low > High; only the upper
// bound of that range is used as the worst bound.
var maturityQuantiles = map[protocol.Indicator][]protocol.QuantileRange{
	SarcomereLength:          {q{Low: 1.95, High: 2.5}, q{Low: 1.88, High: 1.95}, q{Low: 1.75, High: 1.88}, q{Low: 1.64, High: 1.75}, q{Low: 1.01, High: 1.64}},
	CellArea:                 {q{Low: 2850, High: 9000}, q{Low: 1800, High: 2850}, q{Low: 350, High: 1800}},
	TTubuleStructure:         {q{Low: 0.9, High: 1}, q{Low: 0, High: 0.9}},
	ContractileForce:         {q{Low: 1.04, High: 20}, q{Low: 0.43, High: 1.04}, q{Low: 0.16, High: 0.43}, q{Low: 0.04, High: 0.16}, q{Low: 0.0, High: 0.04}},
	ContractileStress:        {q{Low: 3.95, High: 50}, q{Low: 1.9, High: 3.95}, q{Low: 0.51, High: 1.9}, q{Low: 0.07, High: 0.51}},
	ContractionUpstroke:      {q{Low: 50, High: 1300}, q{Low: 31.5, High: 50}, q{Low: 10, High: 31.5}, q{Low: 1.2, High: 10}},
	CalciumFluxAmplitude:     {q{Low: 2.3, High: 8}, q{Low: 1.6, High: 2.3}, q{Low: 0.9, High: 1.6}, q{Low: 0.25, High: 0.9}, q{Low: 0.03, High: 0.25}},
	BeatRate:                 {q{Low: 7, High: 27.6}, q{Low: 27.6, High: 38.8}, q{Low: 38.8, High: 45}, q{Low: 45, High: 60}, q{Low: 108, High: 60}},
	TimeToCalciumPeak:        {q{Low: 0.06, High: 154}, q{Low: 154, High: 200}, q{Low: 200, High: 254}, q{Low: 254, High: 365}, q{Low: 2000, High: 365}},
	TimeCalciumToRelaxation:  {q{Low: 0.2, High: 310}, q{Low: 1000, High: 310}},
	CalciumConduction:        {q{Low: 17, High: 44}, q{Low: 8.53, High: 17}, q{Low: 1.5, High: 8.53}},
	APConductionVelocity:     {q{Low: 28.5, High: 41}, q{Low: 16, High: 28.5}, q{Low: 10.75, High: 16}, q{Low: 2.5, High: 10.75}},
	APAmplitude:              {q{Low: 110, High: 170}, q{Low: 100, High: 110}, q{Low: 97, High: 100}, q{Low: 50, High: 97}},
	RestingMembranePotential: {q{Low: -85, High: -78}, q{Low: -78, High: -74}, q{Low: -74, High: -66}, q{Low: -66, High: -60}, q{Low: -35, High: -60}},
	MaxCaptureRate:           {q{Low: 2.9, High: 6.9}, q{Low: 1, High: 2.9}},
	MYH7Percentage:           {q{Low: 82.35, High: 94.6}, q{Low: 30.1, High: 82.35}},
	MYL2Percentage:           {q{Low: 30.1, High: 45.7}, q{Low: 1.2, High: 30.1}},
	TNNI3Percentage:          {q{Low: 16.15, High: 26}, q{Low: 6.5, High: 16.15}},
	CellDensity3D:            {q{Low: 5, High: 40}, q{Low: 1.25, High: 5}, q{Low: 0.25, High: 1.25}},
}

// reversedTerms mark indicators where a lower value is the better quantile
var reversedTerms = []string{"Beat Rate", "Time", "Resting"}

// QuantileRanges returns a copy of the indicator's ordered ranges
func QuantileRanges(indicator protocol.Indicator) ([]protocol.QuantileRange, bool) {
	ranges, ok := maturityQuantiles[indicator]
	if !ok {
		return nil, false
	}
	return append([]protocol.QuantileRange(nil), ranges...), true
}

// HasRanges reports whether the indicator has a fixed range table
func HasRanges(indicator protocol.Indicator) bool {
	_, ok := maturityQuantiles[indicator]
	return ok
}

// RangedIndicators lists every indicator with a range table: the expected
// indicators in display order followed by the classify-only ones.
func RangedIndicators() []protocol.Indicator {
	out := append([]protocol.Indicator(nil), ExpectedIndicators...)
	return append(out, CellDensity3D)
}

// IsReversed reports whether lower values of the indicator are better
func IsReversed(indicator protocol.Indicator) bool {
	for _, term := range reversedTerms {
		if strings.Contains(indicator, term) {
			return true
		}
	}
	return false
}

// IsExpected reports whether the indicator is one of the 18 benchmark indicators
func IsExpected(indicator protocol.Indicator) bool {
	for _, ind := range ExpectedIndicators {
		if ind == indicator {
			return true
		}
	}
	return false
}

// QuantileLabel formats a 1-based quantile number
func QuantileLabel(n int) string {
	return fmt.Sprintf("Q%d", n)
}
