package scoring

import (
	"sort"

	"cmportal/domain/protocol"
	"cmportal/domain/reference"
)

// RankQuery selects, filters, and flags catalog protocols
type RankQuery struct {
	// Selected features drive the match score and the category flags
	Selected []protocol.Feature
	// RequiredFeatures must all be present; names unknown to the matrix are ignored
	RequiredFeatures []protocol.Feature
	// RequiredCategories must all have their "Feature Found" flag set. A
	// category absent from the category table has its flag false.
	RequiredCategories []protocol.Category
}

// RankedProtocol is one protocol's position in a ranking
type RankedProtocol struct {
	ID            protocol.ID                `json:"id"`
	Score         int                        `json:"score"`
	Rank          int                        `json:"rank"`
	CategoryFound map[protocol.Category]bool `json:"category_found"`
}

// RankAndFilter scores every protocol by agreement with the selection (selected
// features present plus unselected features absent), assigns dense ranks with
// the highest score ranked 1, and keeps the protocols passing the required
// feature and category filters. Results are ordered by rank, then protocol id.
// Ranks are computed over the whole catalog before filtering.
func RankAndFilter(matrix *reference.FeatureMatrix, categories *reference.ColumnMap, q RankQuery) []RankedProtocol {
	if matrix == nil || matrix.Len() == 0 {
		return nil
	}

	selected := make([]bool, matrix.NumFeatures())
	for _, f := range q.Selected {
		if j, ok := matrix.FeatureIndex(f); ok {
			selected[j] = true
		}
	}

	flagCols := categoryColumns(matrix, categories, selected)
	for _, c := range q.RequiredCategories {
		if _, ok := flagCols[c]; !ok {
			flagCols[c] = nil
		}
	}

	ranked := make([]RankedProtocol, matrix.Len())
	for i := range ranked {
		score := 0
		for j := range selected {
			if matrix.Cell(i, j) == selected[j] {
				score++
			}
		}
		found := make(map[protocol.Category]bool, len(flagCols))
		for cat, cols := range flagCols {
			hit := false
			for _, j := range cols {
				if matrix.Cell(i, j) {
					hit = true
					break
				}
			}
			found[cat] = hit
		}
		ranked[i] = RankedProtocol{ID: matrix.IDAt(i), Score: score, CategoryFound: found}
	}

	assignDenseRanks(ranked)

	required := make([]int, 0, len(q.RequiredFeatures))
	for _, f := range q.RequiredFeatures {
		if j, ok := matrix.FeatureIndex(f); ok {
			required = append(required, j)
		}
	}

	out := ranked[:0]
	for i, rp := range ranked {
		if !hasAll(matrix, i, required) || !flagsSet(rp, q.RequiredCategories) {
			continue
		}
		out = append(out, rp)
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Rank != out[b].Rank {
			return out[a].Rank < out[b].Rank
		}
		return out[a].ID < out[b].ID
	})
	return out
}

// categoryColumns maps each category to the matrix columns of its members that
// are also selected. Categories without such members map to no columns, so
// their flag is always false.
func categoryColumns(matrix *reference.FeatureMatrix, categories *reference.ColumnMap, selected []bool) map[protocol.Category][]int {
	out := make(map[protocol.Category][]int, categories.Len())
	for _, key := range categories.Keys() {
		var cols []int
		for _, f := range categories.Values(key) {
			if j, ok := matrix.FeatureIndex(f); ok && selected[j] {
				cols = append(cols, j)
			}
		}
		out[protocol.Category(key)] = cols
	}
	return out
}

// assignDenseRanks ranks by score descending; equal scores share a rank and
// the next distinct score takes the next integer.
func assignDenseRanks(ranked []RankedProtocol) {
	scores := make([]int, 0, len(ranked))
	seen := make(map[int]bool)
	for _, rp := range ranked {
		if !seen[rp.Score] {
			seen[rp.Score] = true
			scores = append(scores, rp.Score)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(scores)))
	rankOf := make(map[int]int, len(scores))
	for i, s := range scores {
		rankOf[s] = i + 1
	}
	for i := range ranked {
		ranked[i].Rank = rankOf[ranked[i].Score]
	}
}

func hasAll(matrix *reference.FeatureMatrix, row int, cols []int) bool {
	for _, j := range cols {
		if !matrix.Cell(row, j) {
			return false
		}
	}
	return true
}

func flagsSet(rp RankedProtocol, cats []protocol.Category) bool {
	for _, c := range cats {
		if !rp.CategoryFound[c] {
			return false
		}
	}
	return true
}
