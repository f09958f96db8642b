package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLRUCache(t *testing.T) {
	tests := []struct {
		name          string
		key           string
		expectedValue int
		expectedCount int
	}{
		{
			name:          "fresh cache, fetch",
			key:           "test1",
			expectedValue: 42,
			expectedCount: 1,
		},
		{
			name:          "use cache, no fetch",
			key:           "test1",
			expectedValue: 42,
			expectedCount: 1, // Same count as previous
		},
		{
			name:          "different key, fetch",
			key:           "test2",
			expectedValue: 42,
			expectedCount: 2,
		},
	}

	cache, err := NewLRUCache[string, int](10)
	require.NoError(t, err)
	fetchCount := 0
	fetchFunc := func(key string) (int, error) {
		fetchCount++
		return 42, nil
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			val, err := cache.Get(tt.key, fetchFunc)
			require.NoError(err)
			require.Equal(tt.expectedValue, val)
			require.Equal(tt.expectedCount, fetchCount)
		})
	}
}

func TestLRUCacheDoesNotCacheErrors(t *testing.T) {
	require := require.New(t)

	cache, err := NewLRUCache[string, int](2)
	require.NoError(err)

	calls := 0
	failing := func(string) (int, error) {
		calls++
		return 0, errors.New("boom")
	}
	_, err = cache.Get("k", failing)
	require.Error(err)
	_, err = cache.Get("k", failing)
	require.Error(err)
	require.Equal(2, calls)
	require.Zero(cache.Len())
}

func TestLRUCacheEvicts(t *testing.T) {
	require := require.New(t)

	cache, err := NewLRUCache[int, int](2)
	require.NoError(err)

	identity := func(k int) (int, error) { return k, nil }
	for i := 0; i < 5; i++ {
		_, err := cache.Get(i, identity)
		require.NoError(err)
	}
	require.Equal(2, cache.Len())
}

func TestNewLRUCacheRejectsZeroSize(t *testing.T) {
	_, err := NewLRUCache[int, int](0)
	require.Error(t, err)
}
