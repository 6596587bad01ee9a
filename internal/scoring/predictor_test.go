package scoring

import (
	"testing"

	"cmportal/domain/core"
	"cmportal/domain/protocol"
	"cmportal/domain/reference"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeQuantiles() map[string][]protocol.Feature {
	return map[string][]protocol.Feature{
		"Q1": {"Electrical Stimulation", "T3 Hormone"},
		"Q2": {"Fatty Acids"},
		"Q3": {"Monolayer Culture", "Serum"},
	}
}

func TestPredictNoOverlapTiesAcrossAll(t *testing.T) {
	pred := Predict([]protocol.Feature{"Unrelated"}, threeQuantiles())

	assert.Equal(t, "Q2.0", pred.Quantile)
	assert.Equal(t, map[string]int{"Q1_Score": 0, "Q2_Score": 0, "Q3_Score": 0}, pred.Scores)
}

func TestPredictSingleWinner(t *testing.T) {
	pred := Predict([]protocol.Feature{"Electrical Stimulation", "T3 Hormone"}, threeQuantiles())

	assert.Equal(t, "Q1", pred.Quantile)
	// Q1 overlap is 2: weight 1 at Q1, 0 at Q2, -1 at Q3
	assert.Equal(t, 2, pred.Scores["Q1_Score"])
	assert.Equal(t, 0, pred.Scores["Q2_Score"])
	assert.Equal(t, -2, pred.Scores["Q3_Score"])
}

func TestPredictPartialTie(t *testing.T) {
	pred := Predict([]protocol.Feature{"Electrical Stimulation", "Fatty Acids"}, threeQuantiles())

	// Q1: 1*1 + 1*0 = 1, Q2: 1*0 + 1*1 = 1, Q3: 1*-1 + 1*0 = -1
	assert.Equal(t, "Q1.5", pred.Quantile)
}

func TestPredictEmptyMapDefaultsToMiddle(t *testing.T) {
	assert.Equal(t, "Q3", Predict([]protocol.Feature{"A"}, nil).Quantile)
}

func TestPredictGappedLabelsUseRankOrder(t *testing.T) {
	byQuantile := map[string][]protocol.Feature{
		"Q1": {"A"},
		"Q3": {"B"},
	}
	pred := Predict([]protocol.Feature{"B"}, byQuantile)

	assert.Equal(t, "Q3", pred.Quantile)
	assert.Equal(t, 0, pred.Scores["Q1_Score"])
	assert.Equal(t, 1, pred.Scores["Q3_Score"])
}

func TestWeightsDecreaseLinearly(t *testing.T) {
	w := Weights([]string{"Q1", "Q2", "Q3", "Q4"})

	for _, s := range []string{"Q1", "Q2", "Q3", "Q4"} {
		assert.Equal(t, 1, w[s][s])
	}
	assert.Equal(t, 0, w["Q1"]["Q2"])
	assert.Equal(t, -1, w["Q1"]["Q3"])
	assert.Equal(t, -2, w["Q4"]["Q1"])
	assert.Equal(t, w["Q2"]["Q4"], w["Q4"]["Q2"])
}

func TestQuantileFeatures(t *testing.T) {
	topics := reference.NewColumnMapFromEntries(
		[]string{
			"Beat Rate (bpm) Quantiles - Q1 (7-27.6)",
			"Beat Rate (bpm) Quantiles - Q2 (27.6-38.8)",
			"Cell Area (um2) Quantiles - Q1",
			"Beat Rate (bpm) Enrichment",
		},
		map[string][]string{
			"Beat Rate (bpm) Quantiles - Q1 (7-27.6)":    {"A", "B"},
			"Beat Rate (bpm) Quantiles - Q2 (27.6-38.8)": {"C"},
			"Cell Area (um2) Quantiles - Q1":             {"D"},
			"Beat Rate (bpm) Enrichment":                 {"E"},
		},
	)

	got, err := QuantileFeatures(BeatRate, topics)
	require.NoError(t, err)
	assert.Equal(t, map[string][]protocol.Feature{"Q1": {"A", "B"}, "Q2": {"C"}}, got)

	got, err = QuantileFeatures(SarcomereLength, topics)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQuantileFeaturesMalformedLabel(t *testing.T) {
	topics := reference.NewColumnMapFromEntries(
		[]string{"Beat Rate (bpm) Quantiles - top"},
		map[string][]string{"Beat Rate (bpm) Quantiles - top": {"A"}},
	)

	_, err := QuantileFeatures(BeatRate, topics)
	assert.ErrorIs(t, err, core.ErrMalformedReference)
}
