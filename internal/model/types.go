package model

// Core enums shared by input and output types.

// JobKind tags the job variant.
type JobKind int

const (
	JobSingle JobKind = iota
	JobPickup
	JobDelivery
)

func (k JobKind) String() string {
	switch k {
	case JobPickup:
		return "pickup"
	case JobDelivery:
		return "delivery"
	default:
		return "job"
	}
}

// StepType tags a step of a vehicle route, both for forced steps and solution output.
type StepType int

const (
	StepStart StepType = iota
	StepJob
	StepBreak
	StepEnd
)

func (t StepType) String() string {
	switch t {
	case StepStart:
		return "start"
	case StepBreak:
		return "break"
	case StepEnd:
		return "end"
	default:
		return "job"
	}
}

// Violation names a hard constraint broken by a route. The search uses the
// kind to decide what to repair; check mode reports it on the output.
type Violation string

const (
	ViolationTimeWindow    Violation = "time_window"
	ViolationLeadTime      Violation = "lead_time"
	ViolationDelay         Violation = "delay"
	ViolationLoad          Violation = "load"
	ViolationSkills        Violation = "skills"
	ViolationMaxTasks      Violation = "max_tasks"
	ViolationMaxTravelTime Violation = "max_travel_time"
	ViolationMaxDistance   Violation = "max_distance"
	ViolationPrecedence    Violation = "precedence"
	ViolationMissingBreak  Violation = "missing_break"
)

// DefaultProfile is used by vehicles created without a profile.
const DefaultProfile = "car"

// Priority bounds. Higher values are more important.
const (
	MinPriority = 0
	MaxPriority = 100
)
