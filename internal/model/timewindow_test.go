package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTimeWindowContains(t *testing.T) {
	tw, err := NewTimeWindow(10, 20)
	require.NoError(t, err)
	for p := int64(0); p <= 30; p++ {
		require.Equal(t, p >= 10 && p <= 20, tw.Contains(p), "point %d", p)
	}

	def := DefaultTimeWindow()
	require.True(t, def.IsDefault())
	require.Equal(t, MaxTimeWindowEnd, def.End)
	require.True(t, def.Contains(0))
	require.True(t, def.Contains(MaxTimeWindowEnd))
	require.True(t, def.ContainsWindow(tw))
}

func TestTimeWindowRejectsEmpty(t *testing.T) {
	_, err := NewTimeWindow(5, 5)
	require.True(t, errors.Is(err, ErrTimeWindow))
	_, err = NewTimeWindow(6, 5)
	require.True(t, errors.Is(err, ErrTimeWindow))
}

func TestTimeWindowsNormalize(t *testing.T) {
	tws, err := TimeWindows{{Start: 50, End: 60}, {Start: 0, End: 10}}.Normalize()
	require.NoError(t, err)
	require.Equal(t, TimeWindows{{Start: 0, End: 10}, {Start: 50, End: 60}}, tws)

	_, err = TimeWindows{{Start: 0, End: 10}, {Start: 10, End: 20}}.Normalize()
	require.Error(t, err)

	tws, err = TimeWindows(nil).Normalize()
	require.NoError(t, err)
	require.Len(t, tws, 1)
	require.True(t, tws[0].IsDefault())
}

func TestTimeWindowsEarliest(t *testing.T) {
	tws := TimeWindows{{Start: 0, End: 10}, {Start: 50, End: 60}}
	cases := []struct {
		at   int64
		want int64
		ok   bool
	}{
		{at: 5, want: 5, ok: true},
		{at: 10, want: 10, ok: true},
		{at: 11, want: 50, ok: true},
		{at: 55, want: 55, ok: true},
		{at: 61, ok: false},
	}
	for _, c := range cases {
		got, ok := tws.Earliest(c.at)
		require.Equal(t, c.ok, ok, "at %d", c.at)
		if ok {
			require.Equal(t, c.want, got, "at %d", c.at)
		}
	}
	require.Equal(t, int64(60), tws.LatestEnd())
	require.True(t, tws.IsValidStart(50))
	require.False(t, tws.IsValidStart(30))
}

func TestBreakDefaultsToAnyTime(t *testing.T) {
	b := Break{ID: 1, Service: 300}
	require.True(t, b.IsValidStart(0))
	require.True(t, b.IsValidStart(123456))
}

func TestShipmentJobs(t *testing.T) {
	s := Shipment{
		Pickup:   ShipmentStep{ID: 1, Location: LocationIndex(0)},
		Delivery: ShipmentStep{ID: 2, Location: LocationIndex(3)},
		Amount:   Amount{4},
		Skills:   NewSkills(1),
		Priority: 10,
	}
	p, d := s.Jobs()
	require.Equal(t, JobPickup, p.Kind)
	require.Equal(t, JobDelivery, d.Kind)
	require.Equal(t, Amount{4}, d.Amount)
	require.Equal(t, 3, d.Location.Index())
	require.True(t, NewSkills(1).SubsetOf(p.Skills))
	require.Equal(t, []uint32{1, 2, 5}, NewSkills(5, 2, 1).Sorted())
}
