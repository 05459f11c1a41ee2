package model

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomAmount(r *rand.Rand, n int) Amount {
	a := NewAmount(n)
	for i := range a {
		a[i] = r.Int63n(1000)
	}
	return a
}

func TestAmountAddSubRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		n := 1 + r.Intn(4)
		a, b := randomAmount(r, n), randomAmount(r, n)
		require.True(t, a.Add(b).Sub(b).Equal(a), "a=%v b=%v", a, b)
	}
}

func TestAmountOrderConsistency(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		a, b := randomAmount(r, 3), randomAmount(r, 3)
		le := true
		for k := range a {
			if a[k] > b[k] {
				le = false
			}
		}
		require.Equal(t, le, a.LessOrEqual(b))
		if a.LessOrEqual(b) {
			require.False(t, a.Greater(b))
		}
	}
}

func TestAmountLexLess(t *testing.T) {
	require.True(t, Amount{1, 9}.LexLess(Amount{2, 0}))
	require.False(t, Amount{2, 0}.LexLess(Amount{1, 9}))
	require.False(t, Amount{1, 1}.LexLess(Amount{1, 1}))
	// lexicographic order is not the for-all order
	require.False(t, Amount{1, 9}.LessOrEqual(Amount{2, 0}))
}

func TestAmountCheckedLengthMismatch(t *testing.T) {
	_, err := Amount{1, 2}.AddChecked(Amount{1})
	require.True(t, errors.Is(err, ErrAmountSize))
	_, err = Amount{1}.SubChecked(Amount{1, 2})
	require.True(t, errors.Is(err, ErrAmountSize))

	got, err := Amount{3, 4}.SubChecked(Amount{1, 1})
	require.NoError(t, err)
	require.Equal(t, Amount{2, 3}, got)
}

func TestAmountInPlaceAndString(t *testing.T) {
	a := Amount{1, 2}
	a.AddInPlace(Amount{2, 2})
	require.Equal(t, "[3, 4]", a.String())
	a.SubInPlace(Amount{3, 4})
	require.True(t, a.IsZero())
	require.True(t, Amount(nil).IsZero())
	require.Nil(t, Amount(nil).Clone())
}
