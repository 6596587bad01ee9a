package reference

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"cmportal/domain/core"
	"cmportal/domain/protocol"
	"cmportal/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testDatasets(t *testing.T) config.DatasetConfig {
	t.Helper()
	dir := t.TempDir()
	return config.DatasetConfig{
		Dir: dir,
		BinaryFeatures: writeFile(t, dir, "binary.csv",
			",Electrical Stimulation,Fatty Acids,Serum\n0,True,False,True\n1,False,True,False\n"),
		CleanedDatabase: writeFile(t, dir, "cleaned.csv",
			"Protocol ID,Title,DOI,Beat Rate (bpm)\nunits,,,bpm\n1,Paced,10.1/a,42\n2,Fatty,10.1/b,nan\n"),
		FeatureCategories: writeFile(t, dir, "categories.csv",
			"Protocol Variable,Cell Profile\nElectrical Stimulation,Serum\nFatty Acids,\n"),
		TargetParameters: writeFile(t, dir, "targets.csv",
			"Maturity Indicators\nBeat Rate (bpm) Quantiles - Q1\n"),
		OddsEnrichments: writeFile(t, dir, "odds.csv",
			"Beat Rate (bpm) Quantiles - Q1,Increase Force\nElectrical Stimulation,Fatty Acids\nSerum,\n"),
		Enrichments: writeFile(t, dir, "enrich.csv",
			"Target Label,Prioritised Features,Importance\nIncrease Force,Fatty Acids,0.4\n"),
		SelectedVariables: writeFile(t, dir, "selected.csv", "Fatty Acids\nSerum\n"),
		CausalFeatureCategories: filepath.Join(dir, "missing.csv"),
	}
}

func TestCSVSourceLoadsAllTables(t *testing.T) {
	src := NewCSVSource(testDatasets(t), quietLogger())

	tables, err := src.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []protocol.Feature{"Electrical Stimulation", "Fatty Acids", "Serum"}, tables.Matrix.Features())
	features, ok := tables.Matrix.FeaturesOf(1)
	require.True(t, ok)
	assert.Equal(t, []protocol.Feature{"Electrical Stimulation", "Serum"}, features)

	v, ok := tables.Metadata.Value(1, "Beat Rate (bpm)")
	assert.True(t, ok)
	assert.Equal(t, "42", v)

	assert.Equal(t, []string{"Electrical Stimulation", "Fatty Acids"}, tables.Categories.Values("Protocol Variable"))
	assert.Equal(t, []string{"Fatty Acids"}, tables.Topics.Values("Increase Force"))
	assert.Equal(t, []string{"Fatty Acids", "Serum"}, tables.SelectedVariables)
	assert.Len(t, tables.Enrichments.Rows, 1)
	assert.Equal(t, 0, tables.CausalCategories.Len(), "missing optional table loads empty")
}

func TestCSVSourceRequiresMatrix(t *testing.T) {
	paths := testDatasets(t)
	paths.BinaryFeatures = filepath.Join(paths.Dir, "absent.csv")

	_, err := NewCSVSource(paths, quietLogger()).Load(context.Background())
	assert.Error(t, err)
}

func TestCSVSourceRejectsMalformedMatrix(t *testing.T) {
	paths := testDatasets(t)
	paths.BinaryFeatures = writeFile(t, paths.Dir, "bad.csv", "A,A\n1,0\n")

	_, err := NewCSVSource(paths, quietLogger()).Load(context.Background())
	assert.ErrorIs(t, err, core.ErrMalformedReference)
}
