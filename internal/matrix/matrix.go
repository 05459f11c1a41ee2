// Package matrix holds square travel matrices keyed by routing profile.
package matrix

import (
	"errors"
	"fmt"
)

var (
	// ErrNotSquare is returned when rows have a different length than the row count.
	ErrNotSquare = errors.New("matrix: not square")
	// ErrSizeMismatch is returned when matrices of one profile disagree on size.
	ErrSizeMismatch = errors.New("matrix: size mismatch")
)

// Matrix is a square row-major matrix of travel values (seconds, meters or
// user cost units).
type Matrix struct {
	n    int
	data []uint32
}

func New(n int) *Matrix {
	return &Matrix{n: n, data: make([]uint32, n*n)}
}

// FromRows copies rows into a new matrix.
func FromRows(rows [][]uint32) (*Matrix, error) {
	n := len(rows)
	m := New(n)
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("row %d has %d values, want %d: %w", i, len(row), n, ErrNotSquare)
		}
		copy(m.data[i*n:(i+1)*n], row)
	}
	return m, nil
}

// MustFromRows panics on invalid input; for tests and fixtures.
func MustFromRows(rows [][]uint32) *Matrix {
	m, err := FromRows(rows)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Matrix) Size() int { return m.n }

func (m *Matrix) At(i, j int) uint32 { return m.data[i*m.n+j] }

func (m *Matrix) Set(i, j int, v uint32) { m.data[i*m.n+j] = v }

// Rows returns a copy as nested slices.
func (m *Matrix) Rows() [][]uint32 {
	out := make([][]uint32, m.n)
	for i := range out {
		out[i] = append([]uint32(nil), m.data[i*m.n:(i+1)*m.n]...)
	}
	return out
}

// Set groups the matrices of one profile. Distances and Costs are optional.
type Set struct {
	Durations *Matrix
	Distances *Matrix
	Costs     *Matrix
}

// Size is the durations size, or 0 when no durations are set.
func (s Set) Size() int {
	if s.Durations == nil {
		return 0
	}
	return s.Durations.Size()
}

// Validate checks that every present matrix has the durations size.
func (s Set) Validate() error {
	if s.Durations == nil {
		return errors.New("matrix: missing durations")
	}
	n := s.Durations.Size()
	if s.Distances != nil && s.Distances.Size() != n {
		return fmt.Errorf("distances %d vs durations %d: %w", s.Distances.Size(), n, ErrSizeMismatch)
	}
	if s.Costs != nil && s.Costs.Size() != n {
		return fmt.Errorf("costs %d vs durations %d: %w", s.Costs.Size(), n, ErrSizeMismatch)
	}
	return nil
}

// Provider maps profile names to matrix sets.
type Provider map[string]*Set

// Profile returns the set for name, creating it when absent.
func (p Provider) Profile(name string) *Set {
	s, ok := p[name]
	if !ok {
		s = &Set{}
		p[name] = s
	}
	return s
}

// Lookup returns the set for name without creating it.
func (p Provider) Lookup(name string) (*Set, bool) {
	s, ok := p[name]
	return s, ok
}
