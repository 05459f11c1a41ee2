package matrix

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromRows(t *testing.T) {
	rows := [][]uint32{{0, 2104, 197}, {2103, 0, 2255}, {197, 2256, 0}}
	m, err := FromRows(rows)
	require.NoError(t, err)
	require.Equal(t, 3, m.Size())
	require.Equal(t, uint32(2255), m.At(1, 2))
	require.Equal(t, rows, m.Rows())

	m.Set(1, 2, 7)
	require.Equal(t, uint32(7), m.At(1, 2))
	require.Equal(t, uint32(2255), rows[1][2])
}

func TestFromRowsNotSquare(t *testing.T) {
	_, err := FromRows([][]uint32{{0, 1}, {1}})
	require.True(t, errors.Is(err, ErrNotSquare))
}

func TestSetValidate(t *testing.T) {
	require.Error(t, Set{}.Validate())

	s := Set{Durations: New(3), Distances: New(2)}
	require.True(t, errors.Is(s.Validate(), ErrSizeMismatch))

	s.Distances = New(3)
	s.Costs = New(3)
	require.NoError(t, s.Validate())
	require.Equal(t, 3, s.Size())
}

func TestProvider(t *testing.T) {
	p := Provider{}
	_, ok := p.Lookup("car")
	require.False(t, ok)
	p.Profile("car").Durations = New(2)
	s, ok := p.Lookup("car")
	require.True(t, ok)
	require.Equal(t, 2, s.Size())
}
