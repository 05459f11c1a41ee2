package model

import "math"

// Defaults applied to vehicles built as struct literals.
const (
	DefaultPerHour       int64 = 3600
	UnboundedMaxTasks          = math.MaxInt32
	UnboundedTravelTime  int64 = math.MaxInt64
	UnboundedMaxDistance int64 = math.MaxInt64
)

// Break is a pause in a vehicle route. MaxLoad, when set, bounds the load
// carried while the break is taken.
type Break struct {
	ID          uint64
	TimeWindows TimeWindows
	Service     int64
	Description string
	MaxLoad     Amount
}

// IsValidStart reports whether the break may begin at t.
func (b Break) IsValidStart(t int64) bool {
	tws := b.TimeWindows
	if len(tws) == 0 {
		tws = TimeWindows{DefaultTimeWindow()}
	}
	return tws.IsValidStart(t)
}

// Costs are expressed in user cost units: Fixed once per used vehicle,
// PerHour per hour of travel, PerKm per kilometre travelled.
type Costs struct {
	Fixed   int64
	PerHour int64
	PerKm   int64
}

// DefaultCosts makes route cost equal to travel seconds.
func DefaultCosts() Costs {
	return Costs{PerHour: DefaultPerHour}
}

// ForcedService pins the begin time of a forced step. Nil fields are unset.
type ForcedService struct {
	At     *int64
	After  *int64
	Before *int64
}

func (f ForcedService) IsZero() bool {
	return f.At == nil && f.After == nil && f.Before == nil
}

// VehicleStep is one step of a route the vehicle must follow. ID refers to a
// job (Type StepJob, with JobKind) or to one of the vehicle's breaks.
type VehicleStep struct {
	Type    StepType
	JobKind JobKind
	ID      uint64
	Forced  ForcedService
}

// Vehicle is a resource serving jobs. A nil Start means the route begins at
// its first task; a nil End means it ends at its last task.
type Vehicle struct {
	ID            uint64
	Start         *Location
	End           *Location
	Profile       string
	Capacity      Amount
	Skills        Skills
	TimeWindow    *TimeWindow
	Breaks        []Break
	Description   string
	Costs         *Costs
	SpeedFactor   float64
	MaxTasks      *int
	MaxTravelTime *int64
	MaxDistance   *int64
	Steps         []VehicleStep
}

// Window returns the availability window, defaulting to unconstrained.
func (v Vehicle) Window() TimeWindow {
	if v.TimeWindow == nil {
		return DefaultTimeWindow()
	}
	return *v.TimeWindow
}

func (v Vehicle) CostsOrDefault() Costs {
	if v.Costs == nil {
		return DefaultCosts()
	}
	return *v.Costs
}

func (v Vehicle) ProfileOrDefault() string {
	if v.Profile == "" {
		return DefaultProfile
	}
	return v.Profile
}

func (v Vehicle) Speed() float64 {
	if v.SpeedFactor == 0 {
		return 1
	}
	return v.SpeedFactor
}

func (v Vehicle) TaskLimit() int {
	if v.MaxTasks == nil {
		return UnboundedMaxTasks
	}
	return *v.MaxTasks
}

func (v Vehicle) TravelTimeLimit() int64 {
	if v.MaxTravelTime == nil {
		return UnboundedTravelTime
	}
	return *v.MaxTravelTime
}

func (v Vehicle) DistanceLimit() int64 {
	if v.MaxDistance == nil {
		return UnboundedMaxDistance
	}
	return *v.MaxDistance
}

// Int and Int64 are helpers for optional fields.
func Int(v int) *int       { return &v }
func Int64(v int64) *int64 { return &v }
