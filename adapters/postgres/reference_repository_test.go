package postgres

import (
	"testing"

	"cmportal/domain/core"
	"cmportal/domain/reference"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTables(t *testing.T) *reference.Tables {
	t.Helper()
	matrix, err := reference.NewFeatureMatrix(
		[]string{"Protocol ID", "Serum", "Matrigel"},
		[][]string{{"3", "True", "False"}, {"5", "False", "True"}},
	)
	require.NoError(t, err)
	metadata, err := reference.NewMetadataTable(
		[]string{"Protocol ID", "Title", "Beat Rate (bpm)"},
		[][]string{{"units", "", "bpm"}, {"3", "A", "40"}, {"5", "B", ""}},
	)
	require.NoError(t, err)

	tables := &reference.Tables{
		Matrix:   matrix,
		Metadata: metadata,
		Categories: reference.NewColumnMapFromEntries(
			[]string{"Cell Profile", "Protocol Variable"},
			map[string][]string{"Cell Profile": {"Serum"}, "Protocol Variable": {"Matrigel", "Serum"}},
		),
		Topics: reference.NewColumnMapFromEntries(
			[]string{"Increase Force - High"},
			map[string][]string{"Increase Force - High": {"Serum"}},
		),
		Enrichments:       reference.NewTable([]string{"Target Label", "Prioritised Features"}, [][]string{{"Increase Force - High", "Serum"}}),
		SelectedVariables: []string{"Serum"},
	}
	require.NoError(t, tables.Validate())
	return tables
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := sampleTables(t)

	grids := encodeTables(original)
	assert.NotContains(t, grids, TableCausalFeatureCategories, "empty optional tables are not stored")

	decoded, err := decodeTables(grids)
	require.NoError(t, err)

	assert.Equal(t, original.Matrix.Features(), decoded.Matrix.Features())
	features, ok := decoded.Matrix.FeaturesOf(5)
	require.True(t, ok)
	assert.Equal(t, []string{"Matrigel"}, features)

	v, ok := decoded.Metadata.Value(3, "Beat Rate (bpm)")
	assert.True(t, ok)
	assert.Equal(t, "40", v)
	assert.Len(t, decoded.Metadata.Rows, 3, "units row survives")

	assert.Equal(t, original.Categories.Keys(), decoded.Categories.Keys())
	assert.Equal(t, []string{"Matrigel", "Serum"}, decoded.Categories.Values("Protocol Variable"))
	assert.Equal(t, []string{"Serum"}, decoded.Topics.Values("Increase Force - High"))
	assert.Equal(t, original.Enrichments.Rows, decoded.Enrichments.Rows)
	assert.Equal(t, []string{"Serum"}, decoded.SelectedVariables)
	assert.Equal(t, 0, decoded.CausalCategories.Len())
}

func TestDecodeRequiresMatrixAndMetadata(t *testing.T) {
	grids := encodeTables(sampleTables(t))

	delete(grids, TableCleanedDatabase)
	_, err := decodeTables(grids)
	assert.ErrorIs(t, err, core.ErrTableNotFound)

	_, err = decodeTables(map[string]grid{})
	assert.ErrorIs(t, err, core.ErrTableNotFound)
}

func TestRepositoryName(t *testing.T) {
	assert.Equal(t, "postgres", NewReferenceRepository(nil, nil).Name())
}
