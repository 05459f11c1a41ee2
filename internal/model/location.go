package model

import "fmt"

// Coordinates are longitude/latitude in degrees.
type Coordinates struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Location is a matrix index, a coordinate pair, or both. The index is what
// the solver uses; coordinates are carried through to the output.
type Location struct {
	index    int
	hasIndex bool
	coords   *Coordinates
}

func LocationIndex(i int) Location {
	return Location{index: i, hasIndex: true}
}

func LocationCoords(lon, lat float64) Location {
	return Location{coords: &Coordinates{Lon: lon, Lat: lat}}
}

func LocationBoth(i int, lon, lat float64) Location {
	return Location{index: i, hasIndex: true, coords: &Coordinates{Lon: lon, Lat: lat}}
}

func (l Location) Index() int      { return l.index }
func (l Location) HasIndex() bool  { return l.hasIndex }
func (l Location) HasCoords() bool { return l.coords != nil }

// Coords returns a copy of the coordinates, or false when absent.
func (l Location) Coords() (Coordinates, bool) {
	if l.coords == nil {
		return Coordinates{}, false
	}
	return *l.coords, true
}

func (l Location) String() string {
	switch {
	case l.hasIndex && l.coords != nil:
		return fmt.Sprintf("%d (%.6f, %.6f)", l.index, l.coords.Lon, l.coords.Lat)
	case l.hasIndex:
		return fmt.Sprintf("%d", l.index)
	case l.coords != nil:
		return fmt.Sprintf("(%.6f, %.6f)", l.coords.Lon, l.coords.Lat)
	}
	return "<none>"
}
