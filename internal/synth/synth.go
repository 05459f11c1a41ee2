// Package synth generates seeded random routing instances for benchmarks and
// tests. The same Options always produce the same instance.
package synth

import (
	"fmt"
	"math"
	"math/rand"

	"fleetroute/internal/matrix"
	"fleetroute/internal/model"
	"fleetroute/internal/problem"
)

// Options shape a generated instance.
type Options struct {
	Jobs      int   `yaml:"jobs" json:"jobs"`
	Shipments int   `yaml:"shipments" json:"shipments"`
	Vehicles  int   `yaml:"vehicles" json:"vehicles"`
	Dims      int   `yaml:"dims" json:"dims"`
	Seed      int64 `yaml:"seed" json:"seed"`
	// Breaks gives every vehicle one break around mid-shift.
	Breaks bool `yaml:"breaks" json:"breaks"`
	// TimeWindows gives every task a single window inside the horizon.
	TimeWindows bool `yaml:"time_windows" json:"time_windows"`
	// Skills is the number of distinct skills. Zero disables skills.
	Skills int `yaml:"skills" json:"skills"`
	// GridKm is the side of the square the locations are drawn from.
	GridKm float64 `yaml:"grid_km" json:"grid_km"`
	// Horizon is the vehicle shift length in seconds.
	Horizon int64 `yaml:"horizon" json:"horizon"`
}

func DefaultOptions() Options {
	return Options{
		Jobs:        40,
		Shipments:   5,
		Vehicles:    4,
		Dims:        1,
		Seed:        1,
		TimeWindows: true,
		GridKm:      20,
		Horizon:     10 * 3600,
	}
}

const (
	// metres per second, about 36 km/h
	speed        = 10.0
	service      = 300
	breakService = 1800
	// capacity slack over an even split of the total demand
	slack = 1.3
)

type point struct{ x, y float64 }

// Generate builds the instance. Location 0 is the depot every vehicle starts
// and ends at.
func Generate(o Options) (*problem.Input, error) {
	if o.Jobs < 0 || o.Shipments < 0 || o.Vehicles < 1 || o.Dims < 0 {
		return nil, fmt.Errorf("synth: invalid options %+v", o)
	}
	if o.GridKm <= 0 {
		o.GridKm = DefaultOptions().GridKm
	}
	if o.Horizon <= 0 {
		o.Horizon = DefaultOptions().Horizon
	}
	rng := rand.New(rand.NewSource(o.Seed))
	n := 1 + o.Jobs + 2*o.Shipments
	pts := make([]point, n)
	pts[0] = point{o.GridKm / 2, o.GridKm / 2}
	for i := 1; i < n; i++ {
		pts[i] = point{rng.Float64() * o.GridKm, rng.Float64() * o.GridKm}
	}
	durations, distances := matrix.New(n), matrix.New(n)
	for i := range pts {
		for j := range pts {
			meters := math.Round(math.Hypot(pts[i].x-pts[j].x, pts[i].y-pts[j].y) * 1000)
			distances.Set(i, j, uint32(meters))
			durations.Set(i, j, uint32(math.Round(meters/speed)))
		}
	}

	in := problem.NewInput()
	if err := in.SetAmountSize(o.Dims); err != nil {
		return nil, err
	}
	if err := in.SetDurationsMatrix(model.DefaultProfile, durations); err != nil {
		return nil, err
	}
	if err := in.SetDistancesMatrix(model.DefaultProfile, distances); err != nil {
		return nil, err
	}

	location := func(i int) model.Location {
		// spread the grid around a fixed reference point, 1 km ~ 0.01 degree
		return model.LocationBoth(i, 2.35+pts[i].x/100, 48.85+pts[i].y/100)
	}
	demand := func() model.Amount {
		a := model.NewAmount(o.Dims)
		for d := range a {
			a[d] = int64(1 + rng.Intn(5))
		}
		return a
	}
	windows := func() model.TimeWindows {
		if !o.TimeWindows {
			return nil
		}
		length := int64(3600 + rng.Intn(2*3600))
		start := rng.Int63n(max(1, o.Horizon-length))
		return model.TimeWindows{{Start: start, End: start + length}}
	}
	skills := func() model.Skills {
		if o.Skills == 0 || rng.Float64() > 0.3 {
			return nil
		}
		return model.NewSkills(uint32(rng.Intn(o.Skills)))
	}

	total := model.NewAmount(o.Dims)
	next := 1
	for i := 0; i < o.Jobs; i++ {
		j := model.Job{
			ID:          uint64(i + 1),
			Location:    location(next),
			Service:     service,
			Delivery:    demand(),
			Skills:      skills(),
			Priority:    rng.Intn(11),
			TimeWindows: windows(),
			Description: fmt.Sprintf("job %d", i+1),
		}
		total.AddInPlace(j.Delivery)
		if err := in.AddJob(j); err != nil {
			return nil, err
		}
		next++
	}
	for i := 0; i < o.Shipments; i++ {
		id := uint64(i + 1)
		s := model.Shipment{
			Pickup:   model.ShipmentStep{ID: id, Location: location(next), Service: service, TimeWindows: windows()},
			Delivery: model.ShipmentStep{ID: id, Location: location(next + 1), Service: service},
			Amount:   demand(),
			Skills:   skills(),
			Priority: rng.Intn(11),
		}
		if s.Pickup.TimeWindows != nil {
			// leave room to reach the delivery after the pickup window
			w := s.Pickup.TimeWindows[0]
			s.Delivery.TimeWindows = model.TimeWindows{{Start: w.Start, End: min(o.Horizon, w.End+2*3600)}}
		}
		total.AddInPlace(s.Amount)
		if err := in.AddShipment(s); err != nil {
			return nil, err
		}
		next += 2
	}

	capacity := model.NewAmount(o.Dims)
	for d := range capacity {
		capacity[d] = max(5, int64(math.Ceil(float64(total[d])/float64(o.Vehicles)*slack)))
	}
	for v := 0; v < o.Vehicles; v++ {
		depot := location(0)
		veh := model.Vehicle{
			ID:          uint64(v + 1),
			Start:       &depot,
			End:         &depot,
			Capacity:    capacity.Clone(),
			TimeWindow:  &model.TimeWindow{Start: 0, End: o.Horizon},
			Description: fmt.Sprintf("vehicle %d", v+1),
		}
		if o.Skills > 0 {
			veh.Skills = model.NewSkills(uint32(v%o.Skills), uint32((v+1)%o.Skills))
		}
		if o.Breaks {
			veh.Breaks = []model.Break{{
				ID:          1,
				TimeWindows: model.TimeWindows{{Start: o.Horizon / 3, End: o.Horizon / 2}},
				Service:     breakService,
			}}
		}
		if err := in.AddVehicle(veh); err != nil {
			return nil, err
		}
	}
	return in, nil
}
