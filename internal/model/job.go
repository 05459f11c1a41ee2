package model

import "sort"

// Skills is a set of integer skill identifiers.
type Skills map[uint32]struct{}

func NewSkills(ids ...uint32) Skills {
	s := make(Skills, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// SubsetOf reports whether every skill of s is also in o.
func (s Skills) SubsetOf(o Skills) bool {
	for id := range s {
		if _, ok := o[id]; !ok {
			return false
		}
	}
	return true
}

// Sorted returns the skill ids in ascending order.
func (s Skills) Sorted() []uint32 {
	out := make([]uint32, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Job is one task. Single jobs use Delivery and Pickup; the two halves of a
// shipment (Kind pickup/delivery) use Amount.
type Job struct {
	ID          uint64
	Kind        JobKind
	Location    Location
	Setup       int64
	Service     int64
	Delivery    Amount
	Pickup      Amount
	Amount      Amount
	Skills      Skills
	Priority    int
	TimeWindows TimeWindows
	Description string
}

// ShipmentStep describes one half of a shipment.
type ShipmentStep struct {
	ID          uint64
	Location    Location
	Setup       int64
	Service     int64
	TimeWindows TimeWindows
	Description string
}

// Shipment is goods picked up at one place and delivered at another by the
// same vehicle, pickup first.
type Shipment struct {
	Pickup   ShipmentStep
	Delivery ShipmentStep
	Amount   Amount
	Skills   Skills
	Priority int
}

// Jobs expands the shipment into its pickup and delivery jobs.
func (s Shipment) Jobs() (Job, Job) {
	half := func(st ShipmentStep, kind JobKind) Job {
		return Job{
			ID:          st.ID,
			Kind:        kind,
			Location:    st.Location,
			Setup:       st.Setup,
			Service:     st.Service,
			Amount:      s.Amount.Clone(),
			Skills:      s.Skills,
			Priority:    s.Priority,
			TimeWindows: st.TimeWindows,
			Description: st.Description,
		}
	}
	return half(s.Pickup, JobPickup), half(s.Delivery, JobDelivery)
}
