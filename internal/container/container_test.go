package container

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"cmportal/app"
	"cmportal/domain/protocol"
	"cmportal/internal"
	"cmportal/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}
	return &config.Config{
		Datasets: config.DatasetConfig{
			Dir:             dir,
			BinaryFeatures:  write("binary.csv", "Protocol ID,Serum,Matrigel\n1,1,0\n2,0,1\n"),
			CleanedDatabase: write("cleaned.csv", "Protocol ID,Title,DOI\n1,A,x\n2,B,y\n"),
		},
		Uploads: config.UploadConfig{Dir: filepath.Join(dir, "uploads"), MaxSizeMB: 1},
		Cache:   config.CacheConfig{ResultCacheSize: 4},
	}
}

func TestNewWiresServicesOverCSV(t *testing.T) {
	c, err := New(testConfig(t), internal.NewLogger(internal.LogLevelError))
	require.NoError(t, err)

	res, err := c.Search.Search(context.Background(), app.SearchRequest{Features: []protocol.Feature{"Serum"}})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, 1, res.Rows[0]["Protocol ID"])

	stats := c.Reference.Stats()
	assert.True(t, stats.Loaded)
	assert.Equal(t, 2, stats.Protocols)
	assert.Equal(t, 1, c.Results.Stats().Entries)
}

func TestClearDropsCachedResults(t *testing.T) {
	c, err := New(testConfig(t), internal.NewLogger(internal.LogLevelError))
	require.NoError(t, err)

	_, err = c.Search.Search(context.Background(), app.SearchRequest{Features: []protocol.Feature{"Serum"}})
	require.NoError(t, err)

	c.Reference.Clear()
	assert.Equal(t, 0, c.Results.Stats().Entries)
	assert.False(t, c.Reference.Stats().Loaded)
}

func TestImportRequiresDatabase(t *testing.T) {
	c, err := New(testConfig(t), nil)
	require.NoError(t, err)

	assert.Nil(t, c.Store())
	_, err = c.ImportReference(context.Background())
	assert.Error(t, err)
}

func TestNewRejectsNilConfig(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)
}
