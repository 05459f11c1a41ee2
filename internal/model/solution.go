package model

import "time"

// Step types as rendered in solutions.
const (
	StepTypeStart    = "start"
	StepTypeJob      = "job"
	StepTypePickup   = "pickup"
	StepTypeDelivery = "delivery"
	StepTypeBreak    = "break"
	StepTypeEnd      = "end"
)

// ViolationEntry is reported in check mode. Duration is set for lead_time and
// delay (how early or late the step is) and for max_travel_time/max_distance
// (the overshoot).
type ViolationEntry struct {
	Cause    Violation `json:"cause"`
	Duration int64     `json:"duration,omitempty"`
}

// Step is one activity of a route.
type Step struct {
	Type          string           `json:"type"`
	ID            *uint64          `json:"id,omitempty"`
	Location      *Coordinates     `json:"location,omitempty"`
	LocationIndex *int             `json:"location_index,omitempty"`
	Arrival       int64            `json:"arrival"`
	Duration      int64            `json:"duration"`
	Setup         int64            `json:"setup"`
	Service       int64            `json:"service"`
	WaitingTime   int64            `json:"waiting_time"`
	Distance      int64            `json:"distance"`
	Load          Amount           `json:"load"`
	Description   string           `json:"description,omitempty"`
	Violations    []ViolationEntry `json:"violations"`
}

// Route is the schedule of one used vehicle.
type Route struct {
	VehicleID   uint64           `json:"vehicle"`
	Steps       []Step           `json:"steps"`
	Cost        int64            `json:"cost"`
	Setup       int64            `json:"setup"`
	Service     int64            `json:"service"`
	Duration    int64            `json:"duration"`
	WaitingTime int64            `json:"waiting_time"`
	Priority    int64            `json:"priority"`
	Distance    int64            `json:"distance"`
	Delivery    Amount           `json:"delivery"`
	Pickup      Amount           `json:"pickup"`
	Profile     string           `json:"profile,omitempty"`
	Description string           `json:"description,omitempty"`
	Violations  []ViolationEntry `json:"violations"`
}

// ComputingTimes are reported in milliseconds.
type ComputingTimes struct {
	Loading int64 `json:"loading"`
	Solving int64 `json:"solving"`
}

// Summary aggregates all routes.
type Summary struct {
	Cost           int64            `json:"cost"`
	Routes         int              `json:"routes"`
	Unassigned     int              `json:"unassigned"`
	Setup          int64            `json:"setup"`
	Service        int64            `json:"service"`
	Duration       int64            `json:"duration"`
	WaitingTime    int64            `json:"waiting_time"`
	Priority       int64            `json:"priority"`
	Distance       int64            `json:"distance"`
	Delivery       Amount           `json:"delivery"`
	Pickup         Amount           `json:"pickup"`
	Violations     []ViolationEntry `json:"violations"`
	ComputingTimes ComputingTimes   `json:"computing_times"`
}

// UnassignedJob lists a task left out of every route.
type UnassignedJob struct {
	ID            uint64       `json:"id"`
	Type          string       `json:"type"`
	Location      *Coordinates `json:"location,omitempty"`
	LocationIndex *int         `json:"location_index,omitempty"`
	Description   string       `json:"description,omitempty"`
}

// Solution is the solver output.
type Solution struct {
	Summary    Summary         `json:"summary"`
	Unassigned []UnassignedJob `json:"unassigned"`
	Routes     []Route         `json:"routes"`
}

// SetComputingTimes records loading and solving durations.
func (s *Solution) SetComputingTimes(loading, solving time.Duration) {
	s.Summary.ComputingTimes = ComputingTimes{
		Loading: loading.Milliseconds(),
		Solving: solving.Milliseconds(),
	}
}

// RenderLocation fills the output location fields of l.
func RenderLocation(l Location) (*Coordinates, *int) {
	var idx *int
	if l.HasIndex() {
		i := l.Index()
		idx = &i
	}
	var coords *Coordinates
	if c, ok := l.Coords(); ok {
		coords = &c
	}
	return coords, idx
}
