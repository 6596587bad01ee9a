package reference

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cmportal/domain/reference"
	"cmportal/internal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	calls   atomic.Int32
	delay   time.Duration
	fail    atomic.Bool
	release chan struct{}
}

func (s *countingSource) Name() string { return "counting" }

func (s *countingSource) Load(ctx context.Context) (*reference.Tables, error) {
	s.calls.Add(1)
	if s.release != nil {
		<-s.release
	}
	time.Sleep(s.delay)
	if s.fail.Load() {
		return nil, errors.New("disk on fire")
	}
	matrix, err := reference.NewFeatureMatrix([]string{"A", "B"}, [][]string{{"1", "0"}, {"0", "1"}})
	if err != nil {
		return nil, err
	}
	meta, err := reference.NewMetadataTable([]string{"Protocol ID"}, [][]string{{"1"}, {"2"}})
	if err != nil {
		return nil, err
	}
	tables := &reference.Tables{Matrix: matrix, Metadata: meta}
	return tables, tables.Validate()
}

func quietLogger() *internal.Logger {
	return internal.NewLogger(internal.LogLevelError)
}

func TestCacheLoadsOnceUnderConcurrency(t *testing.T) {
	src := &countingSource{delay: 20 * time.Millisecond}
	cache := NewCache(src, quietLogger())

	var wg sync.WaitGroup
	results := make([]*reference.Tables, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tables, err := cache.GetOrLoad(context.Background())
			assert.NoError(t, err)
			results[i] = tables
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	for _, tables := range results {
		assert.Same(t, results[0], tables)
	}

	stats := cache.Stats()
	assert.True(t, stats.Loaded)
	assert.Equal(t, 2, stats.Protocols)
	assert.Equal(t, 1, stats.Loads)
}

func TestCacheReloadsAfterClear(t *testing.T) {
	src := &countingSource{}
	cache := NewCache(src, quietLogger())

	cleared := 0
	cache.OnClear(func() { cleared++ })

	first, err := cache.GetOrLoad(context.Background())
	require.NoError(t, err)

	cache.Clear()
	assert.Equal(t, 1, cleared)
	assert.False(t, cache.Stats().Loaded)

	second, err := cache.GetOrLoad(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), src.calls.Load())
	assert.NotSame(t, first, second)
}

func TestCacheClearDuringLoadDiscardsResult(t *testing.T) {
	src := &countingSource{release: make(chan struct{})}
	cache := NewCache(src, quietLogger())

	done := make(chan error, 1)
	go func() {
		_, err := cache.GetOrLoad(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	cache.Clear()
	close(src.release)

	require.NoError(t, <-done)
	assert.False(t, cache.Stats().Loaded, "stale load must not be cached")
}

func TestCacheLoadFailureIsNotCached(t *testing.T) {
	src := &countingSource{}
	src.fail.Store(true)
	cache := NewCache(src, quietLogger())

	_, err := cache.GetOrLoad(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, cache.Stats().Failures)
	assert.Contains(t, cache.Stats().LastError, "disk on fire")

	src.fail.Store(false)
	require.NoError(t, cache.Warm(context.Background()))
	assert.True(t, cache.Stats().Loaded)
	assert.Empty(t, cache.Stats().LastError)
}
