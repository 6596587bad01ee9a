package scoring

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"cmportal/domain/core"
	"cmportal/domain/protocol"
	"cmportal/domain/reference"
)

var quantileToken = regexp.MustCompile(`Q[1-6]`)

// Prediction is the outcome of feature-similarity prediction
type Prediction struct {
	Quantile string         `json:"quantile"`
	Scores   map[string]int `json:"scores"` // "Q1_Score" -> score
}

// QuantileFeatures collects, for one indicator, the enriched feature list of
// every topic label naming that indicator's quantiles ("... Quantiles - Q2 ...").
// A matching label without a Q1..Q6 token is malformed reference data.
func QuantileFeatures(indicator protocol.Indicator, topics *reference.ColumnMap) (map[string][]protocol.Feature, error) {
	out := make(map[string][]protocol.Feature)
	for _, label := range topics.Keys() {
		if !strings.Contains(label, "Quantiles") || !strings.Contains(label, indicator) {
			continue
		}
		token := quantileToken.FindString(label)
		if token == "" {
			return nil, core.NewMalformedLabelError(label)
		}
		out[token] = topics.Values(label)
	}
	return out, nil
}

// quantileNumber returns the numeric part of a "Qn" label
func quantileNumber(label string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(label, "Q"))
	if err != nil {
		return 0
	}
	return n
}

// sortedQuantiles orders quantile labels by their number
func sortedQuantiles(byQuantile map[string][]protocol.Feature) []string {
	labels := make([]string, 0, len(byQuantile))
	for label := range byQuantile {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		return quantileNumber(labels[i]) < quantileNumber(labels[j])
	})
	return labels
}

// Weights returns w[Q][S] = 1 - |pos(Q) - pos(S)| over the present quantile
// labels, where pos is the label's rank in numeric order. Adjacent quantiles
// contribute nothing and distant ones count against each other.
func Weights(labels []string) map[string]map[string]int {
	w := make(map[string]map[string]int, len(labels))
	for i, qi := range labels {
		w[qi] = make(map[string]int, len(labels))
		for j, sj := range labels {
			d := i - j
			if d < 0 {
				d = -d
			}
			w[qi][sj] = 1 - d
		}
	}
	return w
}

// Predict scores every quantile S as the sum over quantiles Q of
// weight(Q, S) times the number of the protocol's features present in Q's list,
// and returns the best-scoring quantile. Ties across several quantiles resolve
// to the mean of their numbers formatted with one decimal ("Q2.5").
// An empty map predicts the middle quantile "Q3".
func Predict(features []protocol.Feature, byQuantile map[string][]protocol.Feature) Prediction {
	if len(byQuantile) == 0 {
		return Prediction{Quantile: "Q3", Scores: map[string]int{}}
	}

	have := make(map[protocol.Feature]struct{}, len(features))
	for _, f := range features {
		have[f] = struct{}{}
	}

	labels := sortedQuantiles(byQuantile)
	overlap := make(map[string]int, len(labels))
	for _, label := range labels {
		for _, f := range byQuantile[label] {
			if _, ok := have[f]; ok {
				overlap[label]++
			}
		}
	}

	weights := Weights(labels)
	scores := make(map[string]int, len(labels))
	best := 0
	for i, s := range labels {
		score := 0
		for _, qi := range labels {
			score += weights[qi][s] * overlap[qi]
		}
		scores[s+"_Score"] = score
		if i == 0 || score > best {
			best = score
		}
	}

	var tied []int
	for _, s := range labels {
		if scores[s+"_Score"] == best {
			tied = append(tied, quantileNumber(s))
		}
	}

	if len(tied) == 1 {
		return Prediction{Quantile: QuantileLabel(tied[0]), Scores: scores}
	}
	sum := 0
	for _, n := range tied {
		sum += n
	}
	return Prediction{
		Quantile: fmt.Sprintf("Q%.1f", float64(sum)/float64(len(tied))),
		Scores:   scores,
	}
}
