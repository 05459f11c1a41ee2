package model

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// MaxTimeWindowEnd is the end of the default (unconstrained) time window.
const MaxTimeWindowEnd int64 = math.MaxUint32

// ErrTimeWindow is returned for a window with start >= end.
var ErrTimeWindow = errors.New("time window: start must be lower than end")

// TimeWindow is an inclusive interval [Start, End] in seconds from the
// planning origin, bounding when service may begin.
type TimeWindow struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// DefaultTimeWindow returns the unconstrained window [0, MaxTimeWindowEnd].
func DefaultTimeWindow() TimeWindow {
	return TimeWindow{Start: 0, End: MaxTimeWindowEnd}
}

// NewTimeWindow validates start < end.
func NewTimeWindow(start, end int64) (TimeWindow, error) {
	if start >= end {
		return TimeWindow{}, fmt.Errorf("[%d, %d]: %w", start, end, ErrTimeWindow)
	}
	return TimeWindow{Start: start, End: end}, nil
}

// Contains reports start <= t <= end.
func (tw TimeWindow) Contains(t int64) bool {
	return tw.Start <= t && t <= tw.End
}

// ContainsWindow reports whether o lies fully inside tw.
func (tw TimeWindow) ContainsWindow(o TimeWindow) bool {
	return tw.Start <= o.Start && o.End <= tw.End
}

// Before reports whether tw ends strictly before o starts.
func (tw TimeWindow) Before(o TimeWindow) bool {
	return tw.End < o.Start
}

// Less orders windows by start, then end.
func (tw TimeWindow) Less(o TimeWindow) bool {
	if tw.Start != o.Start {
		return tw.Start < o.Start
	}
	return tw.End < o.End
}

func (tw TimeWindow) Length() int64 { return tw.End - tw.Start }

func (tw TimeWindow) IsDefault() bool {
	return tw.Start == 0 && tw.End == MaxTimeWindowEnd
}

// TimeWindows is an ordered set of disjoint windows.
type TimeWindows []TimeWindow

// Normalize sorts windows and rejects invalid or overlapping ones. An empty
// set becomes the single default window.
func (tws TimeWindows) Normalize() (TimeWindows, error) {
	if len(tws) == 0 {
		return TimeWindows{DefaultTimeWindow()}, nil
	}
	out := make(TimeWindows, len(tws))
	copy(out, tws)
	for _, tw := range out {
		if tw.Start >= tw.End {
			return nil, fmt.Errorf("[%d, %d]: %w", tw.Start, tw.End, ErrTimeWindow)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	for i := 1; i < len(out); i++ {
		if !out[i-1].Before(out[i]) {
			return nil, fmt.Errorf("time windows [%d, %d] and [%d, %d] overlap", out[i-1].Start, out[i-1].End, out[i].Start, out[i].End)
		}
	}
	return out, nil
}

// Earliest returns the earliest feasible begin time >= t, or false when t is
// past every window. Windows must be normalized.
func (tws TimeWindows) Earliest(t int64) (int64, bool) {
	for _, tw := range tws {
		if tw.End >= t {
			if t < tw.Start {
				return tw.Start, true
			}
			return t, true
		}
	}
	return 0, false
}

// LatestEnd is the end of the last window.
func (tws TimeWindows) LatestEnd() int64 {
	if len(tws) == 0 {
		return MaxTimeWindowEnd
	}
	return tws[len(tws)-1].End
}

// IsValidStart reports whether t is inside one of the windows.
func (tws TimeWindows) IsValidStart(t int64) bool {
	for _, tw := range tws {
		if tw.Contains(t) {
			return true
		}
	}
	return false
}
