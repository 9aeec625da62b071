package settings

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetGet_RoundTrip(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Set("datasource.primary", "finnhub"))

	v, ok, err := s.Get("datasource.primary")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "finnhub", v)
}

func TestSet_OverwritesExistingValue(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Set("datasource.mode", "live"))
	require.NoError(t, s.Set("datasource.mode", "demo"))

	v, ok, err := s.Get("datasource.mode")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "demo", v)
}

func TestGet_MissingKeyIsNotAnError(t *testing.T) {
	s := openTestStore(t)

	_, ok, err := s.Get("never.set")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDelete_RemovesKey(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Set("datasource.fallback", "alphavantage"))
	require.NoError(t, s.Delete("datasource.fallback"))

	_, ok, err := s.Get("datasource.fallback")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOpen_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Set("datasource.primary", "alphavantage"))
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()

	v, ok, err := second.Get("datasource.primary")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "alphavantage", v)
}
