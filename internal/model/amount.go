package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAmountSize is returned when two amounts of different length are combined.
var ErrAmountSize = errors.New("amount: length mismatch")

// Amount is a fixed-length vector of quantities (weight, volume, items, ...).
// All amounts of one problem instance share the same length.
//
// Delivery amounts of single jobs are loaded at vehicle start; pickup amounts
// are carried to vehicle end.
type Amount []int64

// NewAmount returns a zero amount of the given size.
func NewAmount(size int) Amount {
	return make(Amount, size)
}

func (a Amount) Clone() Amount {
	if a == nil {
		return nil
	}
	out := make(Amount, len(a))
	copy(out, a)
	return out
}

// IsZero reports whether every component is zero. Empty amounts are zero.
func (a Amount) IsZero() bool {
	for _, x := range a {
		if x != 0 {
			return false
		}
	}
	return true
}

func (a Amount) Equal(b Amount) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Add returns a + b. Both amounts must have the same length.
func (a Amount) Add(b Amount) Amount {
	out := a.Clone()
	for i := range out {
		out[i] += b[i]
	}
	return out
}

// Sub returns a - b. Both amounts must have the same length.
func (a Amount) Sub(b Amount) Amount {
	out := a.Clone()
	for i := range out {
		out[i] -= b[i]
	}
	return out
}

// AddChecked is Add with a length check.
func (a Amount) AddChecked(b Amount) (Amount, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("add %d/%d: %w", len(a), len(b), ErrAmountSize)
	}
	return a.Add(b), nil
}

// SubChecked is Sub with a length check.
func (a Amount) SubChecked(b Amount) (Amount, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("sub %d/%d: %w", len(a), len(b), ErrAmountSize)
	}
	return a.Sub(b), nil
}

// AddInPlace and SubInPlace mutate a; used by the route evaluator.
func (a Amount) AddInPlace(b Amount) {
	for i := range a {
		a[i] += b[i]
	}
}

func (a Amount) SubInPlace(b Amount) {
	for i := range a {
		a[i] -= b[i]
	}
}

// LessOrEqual is the "for all" order: every component of a is <= the matching
// component of b.
func (a Amount) LessOrEqual(b Amount) bool {
	for i := range a {
		if a[i] > b[i] {
			return false
		}
	}
	return true
}

// Greater is the negation of LessOrEqual: at least one component of a exceeds b.
func (a Amount) Greater(b Amount) bool {
	return !a.LessOrEqual(b)
}

// LexLess is the strict lexicographic order. The first components carry the
// most weight, so callers put the most limiting metric first.
func (a Amount) LexLess(b Amount) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func (a Amount) String() string {
	parts := make([]string, len(a))
	for i, x := range a {
		parts[i] = fmt.Sprintf("%d", x)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
