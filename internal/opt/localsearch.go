package opt

// SearchStats counts what one search did.
type SearchStats struct {
	Moves         [numOperators]int
	Rounds        int
	Improvements  int
	AcceptedWorse int
	RuinSelects   [2]int
}

// MoveCount returns the number of committed moves of op.
func (st *SearchStats) MoveCount(op Operator) int {
	if op < 0 || op >= numOperators {
		return 0
	}
	return st.Moves[op]
}

// maxDescentMoves caps one descent to a local optimum.
const maxDescentMoves = 100000

// localSearch applies improving moves until no operator finds one. Each
// pass restarts from the first operator, so unassigned jobs are retried as
// soon as a route changes.
func (s *search) localSearch() error {
	for moves := 0; moves < maxDescentMoves; moves++ {
		if s.expired() {
			return nil
		}
		var m *move
		for _, op := range Operators {
			if m = s.scan(op); m != nil {
				break
			}
		}
		if m == nil {
			return nil
		}
		if err := s.commit(m); err != nil {
			return err
		}
	}
	s.log.WithField("search", s.index).Warnf("[opt] descent stopped after %d moves", maxDescentMoves)
	return nil
}
