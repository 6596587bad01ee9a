package scoring

import (
	"testing"

	"cmportal/domain/protocol"
	"cmportal/domain/reference"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMatrix(t *testing.T) *reference.FeatureMatrix {
	t.Helper()
	m, err := reference.NewFeatureMatrix(
		[]string{"Protocol ID", "A", "B", "C"},
		[][]string{
			{"1", "True", "True", "False"},
			{"2", "True", "False", "False"},
			{"3", "False", "False", "True"},
			{"4", "True", "True", "False"},
		},
	)
	require.NoError(t, err)
	return m
}

func testCategories() *reference.ColumnMap {
	return reference.NewColumnMapFromEntries(
		[]string{"Protocol Variable", "Cell Profile"},
		map[string][]string{
			"Protocol Variable": {"A", "C"},
			"Cell Profile":      {"B"},
		},
	)
}

func ids(ranked []RankedProtocol) []protocol.ID {
	out := make([]protocol.ID, len(ranked))
	for i, rp := range ranked {
		out[i] = rp.ID
	}
	return out
}

func TestRankAndFilterOrdersByMatches(t *testing.T) {
	ranked := RankAndFilter(testMatrix(t), testCategories(), RankQuery{Selected: []protocol.Feature{"A", "B"}})
	require.Len(t, ranked, 4)

	assert.Equal(t, []protocol.ID{1, 4, 2, 3}, ids(ranked))
	assert.Equal(t, 3, ranked[0].Score)
	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, 1, ranked[1].Rank)
	assert.Equal(t, 2, ranked[2].Rank, "dense ranks leave no gaps")
	assert.Equal(t, 3, ranked[3].Rank)
	assert.Equal(t, 0, ranked[3].Score)
}

func TestRankAndFilterRankInvariant(t *testing.T) {
	ranked := RankAndFilter(testMatrix(t), testCategories(), RankQuery{Selected: []protocol.Feature{"C"}})
	for _, a := range ranked {
		for _, b := range ranked {
			if a.Score > b.Score {
				assert.Less(t, a.Rank, b.Rank)
			}
			if a.Score == b.Score {
				assert.Equal(t, a.Rank, b.Rank)
			}
		}
	}
}

func TestRankAndFilterRequiredFeatures(t *testing.T) {
	ranked := RankAndFilter(testMatrix(t), testCategories(), RankQuery{
		Selected:         []protocol.Feature{"A", "B"},
		RequiredFeatures: []protocol.Feature{"B", "Not In Matrix"},
	})

	assert.Equal(t, []protocol.ID{1, 4}, ids(ranked))
}

func TestRankAndFilterCategoryFlags(t *testing.T) {
	ranked := RankAndFilter(testMatrix(t), testCategories(), RankQuery{Selected: []protocol.Feature{"C"}})

	byID := make(map[protocol.ID]RankedProtocol)
	for _, rp := range ranked {
		byID[rp.ID] = rp
	}
	// only C is both selected and a Protocol Variable member
	assert.True(t, byID[3].CategoryFound[protocol.CategoryProtocolVariable])
	assert.False(t, byID[1].CategoryFound[protocol.CategoryProtocolVariable])
	// no selected Cell Profile member, so the flag is never set
	assert.False(t, byID[1].CategoryFound[protocol.CategoryCellProfile])
}

func TestRankAndFilterRequiredCategories(t *testing.T) {
	ranked := RankAndFilter(testMatrix(t), testCategories(), RankQuery{
		Selected:           []protocol.Feature{"A", "B"},
		RequiredCategories: []protocol.Category{protocol.CategoryCellProfile},
	})

	assert.Equal(t, []protocol.ID{1, 4}, ids(ranked))
	for _, rp := range ranked {
		assert.True(t, rp.CategoryFound[protocol.CategoryCellProfile])
	}
}

func TestRankAndFilterRequiredCategoryMissingFromTable(t *testing.T) {
	categories := reference.NewColumnMapFromEntries(
		[]string{"Protocol Variable"},
		map[string][]string{"Protocol Variable": {"A"}},
	)

	ranked := RankAndFilter(testMatrix(t), categories, RankQuery{
		Selected:           []protocol.Feature{"A", "B"},
		RequiredCategories: []protocol.Category{protocol.CategoryCellProfile},
	})
	assert.Empty(t, ranked, "a category with no members never has its flag set")

	ranked = RankAndFilter(testMatrix(t), categories, RankQuery{
		Selected:           []protocol.Feature{"B"},
		RequiredCategories: []protocol.Category{protocol.CategoryProtocolVariable},
	})
	assert.Empty(t, ranked, "no selected member in the category")

	ranked = RankAndFilter(testMatrix(t), nil, RankQuery{
		Selected:           []protocol.Feature{"A"},
		RequiredCategories: []protocol.Category{protocol.CategoryProtocolVariable},
	})
	assert.Empty(t, ranked, "no category table at all")
}

func TestRankAndFilterEmptyMatrix(t *testing.T) {
	assert.Empty(t, RankAndFilter(nil, testCategories(), RankQuery{}))
}
