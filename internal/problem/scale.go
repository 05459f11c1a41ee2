package problem

// Scale converts user cost units to the integer units used internally.
// Edge costs are kept in "cost per hour per meter-km" units so that per-hour
// and per-km rates combine without rounding.
type Scale struct {
	SecondsPerHour int64 `yaml:"seconds_per_hour"`
	MetersPerKm    int64 `yaml:"meters_per_km"`
}

func DefaultScale() Scale {
	return Scale{SecondsPerHour: 3600, MetersPerKm: 1000}
}

// Factor is the ratio between internal and user cost units.
func (s Scale) Factor() int64 {
	return s.SecondsPerHour * s.MetersPerKm
}

// UserCost rounds an internal cost to user units, half up.
func (s Scale) UserCost(internal int64) int64 {
	f := s.Factor()
	if internal < 0 {
		return -((-internal + f/2) / f)
	}
	return (internal + f/2) / f
}

func (s Scale) valid() bool {
	return s.SecondsPerHour > 0 && s.MetersPerKm > 0
}
