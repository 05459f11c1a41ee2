// Package problem builds and validates routing instances and compiles them into
// the immutable, index-based form shared by the search workers.
package problem

import (
	"fmt"

	"fleetroute/internal/matrix"
	"fleetroute/internal/model"
)

const maxSpeedFactor = 5.0

type jobKey struct {
	kind model.JobKind
	id   uint64
}

// Input collects jobs, shipments, vehicles and matrices. It is owned by one
// goroutine and frozen by Compile.
type Input struct {
	amountSize int
	sizeFixed  bool

	tasks     []model.Job
	partner   []int
	jobIDs    map[jobKey]struct{}
	vehicles  []model.Vehicle
	vehIDs    map[uint64]struct{}
	matrices  matrix.Provider
	compiled  bool
	shipments int
}

func NewInput() *Input {
	return &Input{
		jobIDs:   map[jobKey]struct{}{},
		vehIDs:   map[uint64]struct{}{},
		matrices: matrix.Provider{},
	}
}

// SetAmountSize fixes the amount dimension explicitly.
func (in *Input) SetAmountSize(n int) error {
	if err := in.mutable("set amount size"); err != nil {
		return err
	}
	if n < 0 {
		return inputErr("set amount size", "negative size %d", n)
	}
	if in.sizeFixed && in.amountSize != n {
		return wrapInput("set amount size", fmt.Errorf("size already %d, got %d: %w", in.amountSize, n, model.ErrAmountSize))
	}
	in.amountSize, in.sizeFixed = n, true
	return nil
}

// AmountSize returns the fixed dimension, or 0 when no amount was seen yet.
func (in *Input) AmountSize() int { return in.amountSize }

func (in *Input) mutable(op string) error {
	if in.compiled {
		return inputErr(op, "input is frozen after compile")
	}
	return nil
}

// checkAmounts validates amounts against the instance dimension and fixes it
// on the first non-empty one. Nothing is committed on error.
func (in *Input) checkAmounts(op string, amounts ...model.Amount) error {
	size, fixed := in.amountSize, in.sizeFixed
	for _, a := range amounts {
		if len(a) == 0 {
			continue
		}
		for _, x := range a {
			if x < 0 {
				return inputErr(op, "negative amount %v", a)
			}
		}
		if !fixed {
			size, fixed = len(a), true
			continue
		}
		if len(a) != size {
			return wrapInput(op, fmt.Errorf("amount %v has size %d, instance uses %d: %w", a, len(a), size, model.ErrAmountSize))
		}
	}
	in.amountSize, in.sizeFixed = size, fixed
	return nil
}

func checkTask(op string, loc model.Location, setup, service int64, priority int) error {
	if !loc.HasIndex() && !loc.HasCoords() {
		return inputErr(op, "missing location")
	}
	if setup < 0 || service < 0 {
		return inputErr(op, "negative setup or service")
	}
	if priority < model.MinPriority || priority > model.MaxPriority {
		return inputErr(op, "priority %d outside [%d, %d]", priority, model.MinPriority, model.MaxPriority)
	}
	return nil
}

// AddJob adds a single job.
func (in *Input) AddJob(j model.Job) error {
	op := fmt.Sprintf("add job %d", j.ID)
	if err := in.mutable(op); err != nil {
		return err
	}
	if j.Kind != model.JobSingle {
		return inputErr(op, "shipment halves must be added with AddShipment")
	}
	if _, dup := in.jobIDs[jobKey{model.JobSingle, j.ID}]; dup {
		return inputErr(op, "duplicate id")
	}
	if err := checkTask(op, j.Location, j.Setup, j.Service, j.Priority); err != nil {
		return err
	}
	tws, err := j.TimeWindows.Normalize()
	if err != nil {
		return wrapInput(op, err)
	}
	if err := in.checkAmounts(op, j.Delivery, j.Pickup); err != nil {
		return err
	}
	j.TimeWindows = tws
	j.Delivery = j.Delivery.Clone()
	j.Pickup = j.Pickup.Clone()
	j.Amount = nil
	in.jobIDs[jobKey{model.JobSingle, j.ID}] = struct{}{}
	in.tasks = append(in.tasks, j)
	in.partner = append(in.partner, -1)
	return nil
}

// AddShipment adds a pickup and delivery pair.
func (in *Input) AddShipment(s model.Shipment) error {
	op := fmt.Sprintf("add shipment %d/%d", s.Pickup.ID, s.Delivery.ID)
	if err := in.mutable(op); err != nil {
		return err
	}
	if _, dup := in.jobIDs[jobKey{model.JobPickup, s.Pickup.ID}]; dup {
		return inputErr(op, "duplicate pickup id")
	}
	if _, dup := in.jobIDs[jobKey{model.JobDelivery, s.Delivery.ID}]; dup {
		return inputErr(op, "duplicate delivery id")
	}
	pickup, delivery := s.Jobs()
	for _, j := range []*model.Job{&pickup, &delivery} {
		if err := checkTask(op, j.Location, j.Setup, j.Service, j.Priority); err != nil {
			return err
		}
		tws, err := j.TimeWindows.Normalize()
		if err != nil {
			return wrapInput(op, err)
		}
		j.TimeWindows = tws
	}
	if err := in.checkAmounts(op, s.Amount); err != nil {
		return err
	}
	in.jobIDs[jobKey{model.JobPickup, s.Pickup.ID}] = struct{}{}
	in.jobIDs[jobKey{model.JobDelivery, s.Delivery.ID}] = struct{}{}
	rank := len(in.tasks)
	in.tasks = append(in.tasks, pickup, delivery)
	in.partner = append(in.partner, rank+1, rank)
	in.shipments++
	return nil
}

// AddVehicle adds a vehicle. Forced steps are validated at compile time.
func (in *Input) AddVehicle(v model.Vehicle) error {
	op := fmt.Sprintf("add vehicle %d", v.ID)
	if err := in.mutable(op); err != nil {
		return err
	}
	if _, dup := in.vehIDs[v.ID]; dup {
		return inputErr(op, "duplicate id")
	}
	if v.Start == nil && v.End == nil {
		return inputErr(op, "vehicle needs a start or an end")
	}
	for _, l := range []*model.Location{v.Start, v.End} {
		if l != nil && !l.HasIndex() && !l.HasCoords() {
			return inputErr(op, "empty location")
		}
	}
	if v.TimeWindow != nil {
		if _, err := model.NewTimeWindow(v.TimeWindow.Start, v.TimeWindow.End); err != nil {
			return wrapInput(op, err)
		}
	}
	if v.SpeedFactor < 0 || v.SpeedFactor > maxSpeedFactor {
		return inputErr(op, "speed factor %v outside (0, %v]", v.SpeedFactor, maxSpeedFactor)
	}
	if c := v.Costs; c != nil && (c.Fixed < 0 || c.PerHour < 0 || c.PerKm < 0) {
		return inputErr(op, "negative cost")
	}
	if v.MaxTasks != nil && *v.MaxTasks < 0 {
		return inputErr(op, "negative max tasks")
	}
	if v.MaxTravelTime != nil && *v.MaxTravelTime < 0 {
		return inputErr(op, "negative max travel time")
	}
	if v.MaxDistance != nil && *v.MaxDistance < 0 {
		return inputErr(op, "negative max distance")
	}
	amounts := []model.Amount{v.Capacity}
	breaks := make([]model.Break, len(v.Breaks))
	seen := map[uint64]struct{}{}
	for i, b := range v.Breaks {
		if _, dup := seen[b.ID]; dup {
			return inputErr(op, "duplicate break id %d", b.ID)
		}
		seen[b.ID] = struct{}{}
		if b.Service < 0 {
			return inputErr(op, "break %d: negative service", b.ID)
		}
		tws, err := b.TimeWindows.Normalize()
		if err != nil {
			return wrapInput(op, fmt.Errorf("break %d: %w", b.ID, err))
		}
		b.TimeWindows = tws
		b.MaxLoad = b.MaxLoad.Clone()
		breaks[i] = b
		amounts = append(amounts, b.MaxLoad)
	}
	if err := in.checkAmounts(op, amounts...); err != nil {
		return err
	}
	v.Capacity = v.Capacity.Clone()
	v.Breaks = breaks
	v.Steps = append([]model.VehicleStep(nil), v.Steps...)
	in.vehIDs[v.ID] = struct{}{}
	in.vehicles = append(in.vehicles, v)
	return nil
}

// SetDurationsMatrix sets the travel times of a profile.
func (in *Input) SetDurationsMatrix(profile string, m *matrix.Matrix) error {
	return in.setMatrix("set durations matrix", profile, m, func(s *matrix.Set) { s.Durations = m })
}

// SetDistancesMatrix sets the travel distances of a profile.
func (in *Input) SetDistancesMatrix(profile string, m *matrix.Matrix) error {
	return in.setMatrix("set distances matrix", profile, m, func(s *matrix.Set) { s.Distances = m })
}

// SetCostsMatrix sets user travel costs of a profile. When present they
// replace per-hour and per-km costs for vehicles of that profile.
func (in *Input) SetCostsMatrix(profile string, m *matrix.Matrix) error {
	return in.setMatrix("set costs matrix", profile, m, func(s *matrix.Set) { s.Costs = m })
}

func (in *Input) setMatrix(op, profile string, m *matrix.Matrix, set func(*matrix.Set)) error {
	if err := in.mutable(op); err != nil {
		return err
	}
	if m == nil {
		return inputErr(op, "nil matrix for profile %q", profile)
	}
	if profile == "" {
		profile = model.DefaultProfile
	}
	set(in.matrices.Profile(profile))
	return nil
}

// HasJobs reports whether any single job was added.
func (in *Input) HasJobs() bool { return len(in.tasks) > 2*in.shipments }

func (in *Input) HasShipments() bool { return in.shipments > 0 }

// HasSkills reports whether any task or vehicle uses skills.
func (in *Input) HasSkills() bool {
	for _, j := range in.tasks {
		if len(j.Skills) > 0 {
			return true
		}
	}
	for _, v := range in.vehicles {
		if len(v.Skills) > 0 {
			return true
		}
	}
	return false
}

// ZeroAmount returns a zero amount of the instance size.
func (in *Input) ZeroAmount() model.Amount { return model.NewAmount(in.amountSize) }

// HasHomogeneousLocations reports whether all vehicles share start and end.
func (in *Input) HasHomogeneousLocations() bool {
	same := func(a, b *model.Location) bool {
		if a == nil || b == nil {
			return a == nil && b == nil
		}
		return a.HasIndex() == b.HasIndex() && a.Index() == b.Index()
	}
	for _, v := range in.vehicles[min(1, len(in.vehicles)):] {
		if !same(v.Start, in.vehicles[0].Start) || !same(v.End, in.vehicles[0].End) {
			return false
		}
	}
	return true
}

// HasHomogeneousProfiles reports whether all vehicles use one profile.
func (in *Input) HasHomogeneousProfiles() bool {
	for _, v := range in.vehicles {
		if v.ProfileOrDefault() != in.vehicles[0].ProfileOrDefault() {
			return false
		}
	}
	return true
}

// Vehicles returns the added vehicles.
func (in *Input) Vehicles() []model.Vehicle { return in.vehicles }

// TaskCount is the number of jobs plus two per shipment.
func (in *Input) TaskCount() int { return len(in.tasks) }
