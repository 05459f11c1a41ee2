package store

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"

	"fleetroute/internal/opt"
)

func TestEmbeddedMigrations(t *testing.T) {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)
	body, err := fs.ReadFile(migrations, names[0])
	require.NoError(t, err)
	require.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS runs")
}

func TestToJSON(t *testing.T) {
	v, err := toJSON[opt.SolveReport](nil)
	require.NoError(t, err)
	require.Nil(t, v)

	v, err = toJSON(&opt.SolveReport{Searches: 3})
	require.NoError(t, err)
	require.Contains(t, v, `"Searches":3`)
}

func TestClampLimit(t *testing.T) {
	require.Equal(t, 100, clampLimit(0))
	require.Equal(t, 100, clampLimit(501))
	require.Equal(t, 7, clampLimit(7))
}
