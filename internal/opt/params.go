package opt

import "fmt"

// Heuristic selects how the initial solution is built.
type Heuristic int

const (
	// Basic fills vehicles one after the other.
	Basic Heuristic = iota
	// Dynamic inserts the most regretted job across all vehicles at each step.
	Dynamic
)

func (h Heuristic) String() string {
	if h == Dynamic {
		return "dynamic"
	}
	return "basic"
}

// Init selects the first job of each route when building.
type Init int

const (
	InitNone Init = iota
	InitHigherAmount
	InitNearest
	InitFurthest
	InitEarliestDeadline
)

func (i Init) String() string {
	switch i {
	case InitHigherAmount:
		return "higher_amount"
	case InitNearest:
		return "nearest"
	case InitFurthest:
		return "furthest"
	case InitEarliestDeadline:
		return "earliest_deadline"
	}
	return "none"
}

// Params configures one independent search.
type Params struct {
	Heuristic Heuristic
	Init      Init
	Regret    float64
	// Rounds is the number of ruin and recreate rounds without improvement
	// after which the search stops.
	Rounds int
}

func (p Params) String() string {
	return fmt.Sprintf("%s/%s/%.1f", p.Heuristic, p.Init, p.Regret)
}

const (
	// MaxExplorationLevel is the highest supported exploration level.
	MaxExplorationLevel = 5
	// DefaultExplorationLevel balances quality against solving time.
	DefaultExplorationLevel = 3
)

const maxSearches = 32

// searchTable lists construction settings, most useful first. Level l uses
// a prefix of it.
var searchTable = []Params{
	{Heuristic: Dynamic, Init: InitNone, Regret: 0},
	{Heuristic: Basic, Init: InitHigherAmount, Regret: 0.3},
	{Heuristic: Dynamic, Init: InitNone, Regret: 0.9},
	{Heuristic: Basic, Init: InitNearest, Regret: 0.3},
	{Heuristic: Dynamic, Init: InitEarliestDeadline, Regret: 0.3},
	{Heuristic: Basic, Init: InitFurthest, Regret: 0.6},
	{Heuristic: Dynamic, Init: InitHigherAmount, Regret: 0.6},
	{Heuristic: Basic, Init: InitNone, Regret: 0},
	{Heuristic: Dynamic, Init: InitNearest, Regret: 1.2},
	{Heuristic: Basic, Init: InitEarliestDeadline, Regret: 0.9},
	{Heuristic: Dynamic, Init: InitFurthest, Regret: 0.3},
	{Heuristic: Basic, Init: InitHigherAmount, Regret: 1.5},
	{Heuristic: Dynamic, Init: InitNone, Regret: 1.8},
	{Heuristic: Basic, Init: InitNearest, Regret: 1.2},
	{Heuristic: Dynamic, Init: InitEarliestDeadline, Regret: 1.5},
	{Heuristic: Basic, Init: InitFurthest, Regret: 0},
	{Heuristic: Dynamic, Init: InitHigherAmount, Regret: 2.1},
	{Heuristic: Basic, Init: InitNone, Regret: 1.2},
	{Heuristic: Dynamic, Init: InitNearest, Regret: 0},
	{Heuristic: Basic, Init: InitEarliestDeadline, Regret: 0.3},
	{Heuristic: Dynamic, Init: InitFurthest, Regret: 1.5},
	{Heuristic: Basic, Init: InitHigherAmount, Regret: 0.9},
	{Heuristic: Dynamic, Init: InitNone, Regret: 0.3},
	{Heuristic: Basic, Init: InitNearest, Regret: 2.1},
	{Heuristic: Dynamic, Init: InitEarliestDeadline, Regret: 0.9},
	{Heuristic: Basic, Init: InitFurthest, Regret: 1.8},
	{Heuristic: Dynamic, Init: InitHigherAmount, Regret: 0},
	{Heuristic: Basic, Init: InitNone, Regret: 2.4},
	{Heuristic: Dynamic, Init: InitNearest, Regret: 0.6},
	{Heuristic: Basic, Init: InitEarliestDeadline, Regret: 1.8},
	{Heuristic: Dynamic, Init: InitFurthest, Regret: 2.4},
	{Heuristic: Basic, Init: InitHigherAmount, Regret: 2.4},
}

// searchCount is 4 searches per level step, plus 4 from level 4 on.
func searchCount(level int) int {
	n := 4 * (level + 1)
	if level >= 4 {
		n += 4
	}
	return min(n, maxSearches)
}

// searchesFor returns the parameter sets run at an exploration level.
func searchesFor(level int) []Params {
	n := searchCount(level)
	out := make([]Params, n)
	copy(out, searchTable[:n])
	for i := range out {
		out[i].Rounds = 2 * level
	}
	return out
}
