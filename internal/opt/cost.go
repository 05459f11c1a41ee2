package opt

import "fleetroute/internal/problem"

// Route costs are kept in internal units (see problem.Scale). Deltas below
// are O(1) and must agree with routeCost, which recomputes from scratch.

// view is a route with up to two positions hidden, used to price moves on
// a route before a job has actually been taken out of it.
type view struct {
	base  []int
	skipA int
	skipB int
}

func fullView(route []int) view { return view{base: route, skipA: -1, skipB: -1} }

func (w view) len() int {
	n := len(w.base)
	if w.skipA >= 0 {
		n--
	}
	if w.skipB >= 0 {
		n--
	}
	return n
}

func (w view) at(k int) int {
	for _, s := range [2]int{min(w.skipA, w.skipB), max(w.skipA, w.skipB)} {
		if s >= 0 && k >= s {
			k++
		}
	}
	return w.base[k]
}

// appendTo copies the visible jobs to dst.
func (w view) appendTo(dst []int) []int {
	for i, jr := range w.base {
		if i != w.skipA && i != w.skipB {
			dst = append(dst, jr)
		}
	}
	return dst
}

type costModel struct {
	p *problem.Problem
}

func (c costModel) loc(jr int) int { return c.p.Jobs[jr].Loc }

// prevLoc is the location before gap g of w: the vehicle start or the job
// at g-1. nextLoc is the location after it.
func (c costModel) prevLoc(v *problem.Vehicle, w view, g int) int {
	if g == 0 {
		return v.StartLoc
	}
	return c.loc(w.at(g - 1))
}

func (c costModel) nextLoc(v *problem.Vehicle, w view, g int) int {
	if g >= w.len() {
		return v.EndLoc
	}
	return c.loc(w.at(g))
}

// routeCost is the from-scratch internal cost of a route.
func (c costModel) routeCost(v *problem.Vehicle, route []int) int64 {
	if len(route) == 0 {
		return 0
	}
	total := v.FixedCost()
	prev := v.StartLoc
	for _, jr := range route {
		l := c.loc(jr)
		total += v.EdgeCost(prev, l)
		prev = l
	}
	return total + v.EdgeCost(prev, v.EndLoc)
}

// segmentCost is the cost of the edges inside seq.
func (c costModel) segmentCost(v *problem.Vehicle, seq []int) int64 {
	var total int64
	for i := 1; i < len(seq); i++ {
		total += v.EdgeCost(c.loc(seq[i-1]), c.loc(seq[i]))
	}
	return total
}

// insertCost is the change when seq is inserted in gap g of w.
func (c costModel) insertCost(v *problem.Vehicle, w view, g int, seq ...int) int64 {
	prev, next := c.prevLoc(v, w, g), c.nextLoc(v, w, g)
	first, last := c.loc(seq[0]), c.loc(seq[len(seq)-1])
	d := v.EdgeCost(prev, first) + c.segmentCost(v, seq) + v.EdgeCost(last, next) - v.EdgeCost(prev, next)
	// an empty route costs nothing, so the start to end edge is new too
	if w.len() == 0 {
		d += v.FixedCost() + v.EdgeCost(prev, next)
	}
	return d
}

// removeCost is the (usually negative) change when the n jobs starting at
// position i of route are removed.
func (c costModel) removeCost(v *problem.Vehicle, route []int, i, n int) int64 {
	w := fullView(route)
	prev := c.prevLoc(v, w, i)
	next := c.nextLoc(v, w, i+n)
	seq := route[i : i+n]
	d := v.EdgeCost(prev, next) - v.EdgeCost(prev, c.loc(seq[0])) - c.segmentCost(v, seq) - v.EdgeCost(c.loc(seq[n-1]), next)
	if n == len(route) {
		d -= v.FixedCost() + v.EdgeCost(prev, next)
	}
	return d
}

// replaceCost is the change when the n jobs at position i are replaced by seq.
func (c costModel) replaceCost(v *problem.Vehicle, route []int, i, n int, seq ...int) int64 {
	w := fullView(route)
	prev := c.prevLoc(v, w, i)
	next := c.nextLoc(v, w, i+n)
	old := route[i : i+n]
	before := v.EdgeCost(prev, c.loc(old[0])) + c.segmentCost(v, old) + v.EdgeCost(c.loc(old[n-1]), next)
	after := v.EdgeCost(prev, c.loc(seq[0])) + c.segmentCost(v, seq) + v.EdgeCost(c.loc(seq[len(seq)-1]), next)
	return after - before
}

// shipmentInsertCost prices a pickup in gap gp and its delivery in gap gd of
// w, with gp <= gd. Equal gaps put both halves next to each other.
func (c costModel) shipmentInsertCost(v *problem.Vehicle, w view, gp, gd, pickup, delivery int) int64 {
	if gp == gd {
		return c.insertCost(v, w, gp, pickup, delivery)
	}
	return c.insertCost(v, w, gp, pickup) + c.insertCost(v, w, gd, delivery)
}

// removePairCost prices removing positions i < k from route.
func (c costModel) removePairCost(v *problem.Vehicle, route []int, i, k int) int64 {
	if k == i+1 {
		return c.removeCost(v, route, i, 2)
	}
	return c.removeCost(v, route, i, 1) + c.removeCost(v, route, k, 1)
}
