package problem

import (
	"fmt"
	"math"

	"fleetroute/internal/matrix"
	"fleetroute/internal/model"
)

// Break anchors. A forced break is taken right after its anchor job, or
// before the first job for AnchorStart.
const (
	AnchorFree  = -2
	AnchorStart = -1
)

// Job is a compiled task. Shipment halves are adjacent: the pickup rank is
// always one less than its delivery rank.
type Job struct {
	model.Job
	Rank    int
	Loc     int
	Partner int
	Pinned  int
	Forced  model.ForcedService
}

func (j *Job) IsShipment() bool { return j.Partner >= 0 }
func (j *Job) IsPinned() bool   { return j.Pinned >= 0 }

// BreakSlot is a vehicle break with its forced placement, if any.
type BreakSlot struct {
	model.Break
	Anchor int
	Forced model.ForcedService
}

func (b BreakSlot) IsForced() bool { return b.Anchor != AnchorFree }

// Vehicle is a compiled vehicle with its resolved matrices.
type Vehicle struct {
	model.Vehicle
	Rank        int
	StartLoc    int
	EndLoc      int
	TW          model.TimeWindow
	Costs       model.Costs
	Slots       []BreakSlot
	ForcedStart model.ForcedService
	ForcedEnd   model.ForcedService
	Forced      []int
	MaxTasks    int
	MaxTravel   int64
	MaxDist     int64

	set     *matrix.Set
	speed   float64
	scale   Scale
	maxEdge int64
}

func (v *Vehicle) HasStart() bool { return v.StartLoc >= 0 }
func (v *Vehicle) HasEnd() bool   { return v.EndLoc >= 0 }

// Duration is the speed-scaled travel time between two matrix indices. A
// negative index stands for "no location" and costs nothing.
func (v *Vehicle) Duration(from, to int) int64 {
	if from < 0 || to < 0 {
		return 0
	}
	d := v.set.Durations.At(from, to)
	if v.speed == 1 {
		return int64(d)
	}
	return int64(math.Round(float64(d) / v.speed))
}

func (v *Vehicle) Distance(from, to int) int64 {
	if from < 0 || to < 0 || v.set.Distances == nil {
		return 0
	}
	return int64(v.set.Distances.At(from, to))
}

// HasDistances reports whether a distances matrix backs this vehicle.
func (v *Vehicle) HasDistances() bool { return v.set.Distances != nil }

// EdgeCost is the internal cost of travelling from one index to another.
func (v *Vehicle) EdgeCost(from, to int) int64 {
	if from < 0 || to < 0 {
		return 0
	}
	if v.set.Costs != nil {
		return int64(v.set.Costs.At(from, to)) * v.scale.Factor()
	}
	return v.Costs.PerHour*v.Duration(from, to)*v.scale.MetersPerKm +
		v.Costs.PerKm*v.Distance(from, to)*v.scale.SecondsPerHour
}

// FixedCost is the internal cost of using the vehicle at all.
func (v *Vehicle) FixedCost() int64 {
	return v.Costs.Fixed * v.scale.Factor()
}

// Problem is the immutable compiled instance shared by all search workers.
type Problem struct {
	Scale      Scale
	AmountSize int
	Jobs       []Job
	Vehicles   []Vehicle

	compat      [][]bool
	jobRanks    map[jobKey]int
	vehRanks    map[uint64]int
	hasSkills   bool
	homogeneous bool
	profiles    bool
	upperBound  int64
}

func (p *Problem) ZeroAmount() model.Amount { return model.NewAmount(p.AmountSize) }

// Compatible reports whether vehicle v may serve job j: skills are covered
// and the job amounts fit in the empty vehicle.
func (p *Problem) Compatible(v, j int) bool { return p.compat[v][j] }

// JobRank finds a job by kind and id.
func (p *Problem) JobRank(kind model.JobKind, id uint64) (int, bool) {
	r, ok := p.jobRanks[jobKey{kind, id}]
	return r, ok
}

func (p *Problem) VehicleRank(id uint64) (int, bool) {
	r, ok := p.vehRanks[id]
	return r, ok
}

func (p *Problem) HasSkills() bool { return p.hasSkills }

func (p *Problem) HasJobs() bool {
	for i := range p.Jobs {
		if !p.Jobs[i].IsShipment() {
			return true
		}
	}
	return false
}

func (p *Problem) HasShipments() bool {
	for i := range p.Jobs {
		if p.Jobs[i].IsShipment() {
			return true
		}
	}
	return false
}

func (p *Problem) HasHomogeneousLocations() bool { return p.homogeneous }
func (p *Problem) HasHomogeneousProfiles() bool  { return p.profiles }

// CostUpperBound bounds the internal cost of any solution.
func (p *Problem) CostUpperBound() int64 { return p.upperBound }

// Compile validates the whole instance and freezes the input. Matrix
// presence, location bounds and forced steps can only be checked here.
func (in *Input) Compile(scale Scale) (*Problem, error) {
	const op = "compile"
	if in.compiled {
		return nil, inputErr(op, "input already compiled")
	}
	if !scale.valid() {
		return nil, inputErr(op, "invalid scale %+v", scale)
	}
	p := &Problem{
		Scale:       scale,
		AmountSize:  in.amountSize,
		jobRanks:    make(map[jobKey]int, len(in.tasks)),
		vehRanks:    make(map[uint64]int, len(in.vehicles)),
		hasSkills:   in.HasSkills(),
		homogeneous: in.HasHomogeneousLocations(),
		profiles:    in.HasHomogeneousProfiles(),
	}
	zero := model.NewAmount(in.amountSize)
	sized := func(a model.Amount) model.Amount {
		if len(a) == 0 {
			return zero.Clone()
		}
		return a.Clone()
	}

	minSize := math.MaxInt
	sets := map[string]*matrix.Set{}
	for _, v := range in.vehicles {
		name := v.ProfileOrDefault()
		if _, ok := sets[name]; ok {
			continue
		}
		s, ok := in.matrices.Lookup(name)
		if !ok || s.Durations == nil {
			return nil, inputErr(op, "no durations matrix for profile %q", name)
		}
		if err := s.Validate(); err != nil {
			return nil, wrapInput(op, fmt.Errorf("profile %q: %w", name, err))
		}
		sets[name] = s
		minSize = min(minSize, s.Size())
	}
	resolve := func(what string, l model.Location) (int, error) {
		if !l.HasIndex() {
			return 0, inputErr(op, "%s: location %s has no matrix index", what, l)
		}
		if l.Index() < 0 || (len(sets) > 0 && l.Index() >= minSize) {
			return 0, inputErr(op, "%s: location index %d outside matrix", what, l.Index())
		}
		return l.Index(), nil
	}

	p.Jobs = make([]Job, len(in.tasks))
	for r, t := range in.tasks {
		loc, err := resolve(fmt.Sprintf("%s %d", t.Kind, t.ID), t.Location)
		if err != nil {
			return nil, err
		}
		j := Job{Job: t, Rank: r, Loc: loc, Partner: in.partner[r], Pinned: -1}
		if j.IsShipment() {
			j.Amount = sized(t.Amount)
			j.Delivery, j.Pickup = zero.Clone(), zero.Clone()
		} else {
			j.Delivery, j.Pickup = sized(t.Delivery), sized(t.Pickup)
		}
		p.Jobs[r] = j
		p.jobRanks[jobKey{t.Kind, t.ID}] = r
	}

	type edgeKey struct {
		set   *matrix.Set
		costs model.Costs
		speed float64
	}
	edges := map[edgeKey]int64{}
	p.Vehicles = make([]Vehicle, len(in.vehicles))
	for r, src := range in.vehicles {
		v := Vehicle{
			Vehicle:   src,
			Rank:      r,
			StartLoc:  -1,
			EndLoc:    -1,
			TW:        src.Window(),
			Costs:     src.CostsOrDefault(),
			MaxTasks:  src.TaskLimit(),
			MaxTravel: src.TravelTimeLimit(),
			MaxDist:   src.DistanceLimit(),
			set:       sets[src.ProfileOrDefault()],
			speed:     src.Speed(),
			scale:     scale,
		}
		v.Capacity = sized(src.Capacity)
		what := fmt.Sprintf("vehicle %d", src.ID)
		if src.Start != nil {
			loc, err := resolve(what+" start", *src.Start)
			if err != nil {
				return nil, err
			}
			v.StartLoc = loc
		}
		if src.End != nil {
			loc, err := resolve(what+" end", *src.End)
			if err != nil {
				return nil, err
			}
			v.EndLoc = loc
		}
		v.Slots = make([]BreakSlot, len(src.Breaks))
		for i, b := range src.Breaks {
			if len(b.MaxLoad) == 0 {
				b.MaxLoad = nil
			}
			v.Slots[i] = BreakSlot{Break: b, Anchor: AnchorFree}
		}
		key := edgeKey{v.set, v.Costs, v.speed}
		if _, ok := edges[key]; !ok {
			edges[key] = maxEdgeCost(&v)
		}
		v.maxEdge = edges[key]
		p.Vehicles[r] = v
		p.vehRanks[src.ID] = r
	}

	p.compat = make([][]bool, len(p.Vehicles))
	for vr := range p.Vehicles {
		v := &p.Vehicles[vr]
		row := make([]bool, len(p.Jobs))
		for jr := range p.Jobs {
			j := &p.Jobs[jr]
			row[jr] = j.Skills.SubsetOf(v.Skills) &&
				j.Delivery.LessOrEqual(v.Capacity) &&
				j.Pickup.LessOrEqual(v.Capacity) &&
				j.Amount.LessOrEqual(v.Capacity)
		}
		p.compat[vr] = row
	}

	for vr := range p.Vehicles {
		if err := p.compileSteps(vr); err != nil {
			return nil, err
		}
	}

	var fixed, edge int64
	for vr := range p.Vehicles {
		fixed += p.Vehicles[vr].FixedCost()
		edge = max(edge, p.Vehicles[vr].maxEdge)
	}
	p.upperBound = fixed + int64(len(p.Jobs)+2*len(p.Vehicles))*edge

	in.compiled = true
	return p, nil
}

func maxEdgeCost(v *Vehicle) int64 {
	n := v.set.Size()
	var out int64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out = max(out, v.EdgeCost(i, j))
		}
	}
	return out
}

func checkForced(op string, f model.ForcedService) error {
	if f.After != nil && f.Before != nil && *f.After > *f.Before {
		return inputErr(op, "forced after %d is later than before %d", *f.After, *f.Before)
	}
	if f.At != nil {
		if (f.After != nil && *f.At < *f.After) || (f.Before != nil && *f.At > *f.Before) {
			return inputErr(op, "forced at %d outside after/before bounds", *f.At)
		}
	}
	return nil
}

// compileSteps resolves the forced steps of one vehicle: pinned jobs in
// order, break anchors, and start/end service constraints.
func (p *Problem) compileSteps(vr int) error {
	v := &p.Vehicles[vr]
	op := fmt.Sprintf("vehicle %d steps", v.ID)
	last := AnchorStart
	lastBreak := -1
	pos := map[int]int{}
	for si, st := range v.Steps {
		if err := checkForced(op, st.Forced); err != nil {
			return err
		}
		switch st.Type {
		case model.StepStart:
			if si != 0 {
				return inputErr(op, "start step must come first")
			}
			v.ForcedStart = st.Forced
		case model.StepEnd:
			if si != len(v.Steps)-1 {
				return inputErr(op, "end step must come last")
			}
			v.ForcedEnd = st.Forced
		case model.StepBreak:
			bi := -1
			for i := range v.Slots {
				if v.Slots[i].ID == st.ID {
					bi = i
				}
			}
			if bi < 0 {
				return inputErr(op, "unknown break %d", st.ID)
			}
			if v.Slots[bi].IsForced() {
				return inputErr(op, "break %d listed twice", st.ID)
			}
			if bi < lastBreak {
				return inputErr(op, "break %d listed out of vehicle order", st.ID)
			}
			lastBreak = bi
			v.Slots[bi].Anchor = last
			v.Slots[bi].Forced = st.Forced
		case model.StepJob:
			jr, ok := p.JobRank(st.JobKind, st.ID)
			if !ok {
				return inputErr(op, "unknown %s %d", st.JobKind, st.ID)
			}
			j := &p.Jobs[jr]
			if j.IsPinned() {
				return inputErr(op, "%s %d forced twice", st.JobKind, st.ID)
			}
			j.Pinned = vr
			j.Forced = st.Forced
			pos[jr] = len(v.Forced)
			v.Forced = append(v.Forced, jr)
			last = jr
		default:
			return inputErr(op, "unknown step type %d", st.Type)
		}
	}
	for jr, at := range pos {
		j := &p.Jobs[jr]
		if !j.IsShipment() {
			continue
		}
		other, ok := pos[j.Partner]
		if !ok {
			return inputErr(op, "shipment %s %d forced without its partner", j.Kind, j.ID)
		}
		if j.Kind == model.JobPickup && other < at {
			return inputErr(op, "shipment pickup %d forced after its delivery", j.ID)
		}
	}
	return nil
}
