package opt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"fleetroute/internal/model"
)

func forcedRoute(ids ...uint64) []model.VehicleStep {
	steps := []model.VehicleStep{{Type: model.StepStart}}
	for _, id := range ids {
		steps = append(steps, model.VehicleStep{Type: model.StepJob, ID: id})
	}
	return append(steps, model.VehicleStep{Type: model.StepEnd})
}

func TestCheckReportsDelays(t *testing.T) {
	in := newExampleInput(t)
	require.NoError(t, in.AddVehicle(model.Vehicle{
		ID: 1, Start: loc(0), End: loc(3), Capacity: model.Amount{4},
		TimeWindow: &model.TimeWindow{Start: 0, End: 5000},
		Steps:      forcedRoute(1, 2),
	}))
	require.NoError(t, in.AddJob(unitJob(1, 1)))
	late := unitJob(2, 2)
	late.TimeWindows = model.TimeWindows{{Start: 0, End: 3000}}
	require.NoError(t, in.AddJob(late))
	require.NoError(t, in.AddJob(unitJob(3, 3)))

	sol, err := Check(in, 2)
	require.NoError(t, err)
	require.Len(t, sol.Routes, 1)
	r := sol.Routes[0]
	require.Equal(t, int64(5461), r.Cost)
	require.Equal(t, []model.ViolationEntry{{Cause: model.ViolationDelay, Duration: 1359}}, r.Steps[2].Violations)
	require.Equal(t, []model.ViolationEntry{{Cause: model.ViolationDelay, Duration: 461}}, r.Steps[3].Violations)
	require.Empty(t, r.Steps[1].Violations)
	require.Equal(t, []model.ViolationEntry{{Cause: model.ViolationDelay, Duration: 1820}}, r.Violations)
	require.Equal(t, r.Violations, sol.Summary.Violations)

	require.Equal(t, 1, sol.Summary.Unassigned)
	require.Equal(t, uint64(3), sol.Unassigned[0].ID)
}

func TestCheckReportsEveryKind(t *testing.T) {
	in := newExampleInput(t)
	require.NoError(t, in.AddVehicle(model.Vehicle{
		ID: 1, Start: loc(0), End: loc(3), Capacity: model.Amount{1},
		TimeWindow: &model.TimeWindow{Start: 100, End: 100000},
		MaxTasks:   model.Int(1),
		Steps: []model.VehicleStep{
			{Type: model.StepStart, Forced: model.ForcedService{At: model.Int64(0)}},
			{Type: model.StepJob, ID: 1},
			{Type: model.StepJob, ID: 2},
			{Type: model.StepEnd},
		},
	}))
	require.NoError(t, in.AddJob(unitJob(1, 1)))
	skilled := unitJob(2, 2)
	skilled.Skills = model.NewSkills(4)
	require.NoError(t, in.AddJob(skilled))

	sol, err := Check(in, 1)
	require.NoError(t, err)
	r := sol.Routes[0]
	var causes []model.Violation
	for _, v := range r.Violations {
		causes = append(causes, v.Cause)
	}
	require.ElementsMatch(t, []model.Violation{
		model.ViolationMaxTasks, model.ViolationLeadTime, model.ViolationLoad, model.ViolationSkills,
	}, causes)
	require.Contains(t, r.Steps[0].Violations, model.ViolationEntry{Cause: model.ViolationLeadTime, Duration: 100})
	require.Contains(t, r.Steps[2].Violations, model.ViolationEntry{Cause: model.ViolationSkills})
}

func TestCheckKeepsForcedBreakPosition(t *testing.T) {
	in := newExampleInput(t)
	require.NoError(t, in.AddVehicle(model.Vehicle{
		ID: 1, Start: loc(0), End: loc(3), Capacity: model.Amount{4},
		Breaks: []model.Break{{ID: 9, TimeWindows: model.TimeWindows{{Start: 3000, End: 3500}}, Service: 100}},
		Steps: []model.VehicleStep{
			{Type: model.StepStart},
			{Type: model.StepJob, ID: 1},
			{Type: model.StepBreak, ID: 9},
			{Type: model.StepJob, ID: 2},
			{Type: model.StepEnd},
		},
	}))
	require.NoError(t, in.AddJob(unitJob(1, 1)))
	require.NoError(t, in.AddJob(unitJob(2, 2)))

	sol, err := Check(in, 1)
	require.NoError(t, err)
	r := sol.Routes[0]
	var types []string
	for _, s := range r.Steps {
		types = append(types, s.Type)
	}
	require.Equal(t, []string{"start", "job", "break", "job", "end"}, types)
	require.Equal(t, uint64(9), *r.Steps[2].ID)
	require.Equal(t, int64(896), r.Steps[2].WaitingTime)
	require.Equal(t, int64(3100+2255), r.Steps[3].Arrival)
	require.Empty(t, r.Violations)
	require.Equal(t, int64(5461), r.Cost)
}
