package polygraph

import "sort"

// pairAccumulator groups BundleEdges by unordered writer pair
// (spec.md §4.2 step 5, "de-duplication: collapse symmetric pairs so
// that each unordered writer pair produces exactly one constraint").
//
// For pair (lo, hi) with lo < hi, bundle "forward" is A ("lo-before-
// hi"): add() routes an edge there when it was registered as
// belonging to the lo-before-hi order; "backward" is B.
type pairAccumulator struct {
	order []pairKey
	acc   map[pairKey]*pairBundles
}

type pairKey struct{ lo, hi int64 }

type pairBundles struct {
	forward, backward []BundleEdge
}

func newPairAccumulator() *pairAccumulator {
	return &pairAccumulator{acc: make(map[pairKey]*pairBundles)}
}

// add registers edge as belonging to the "writerFirst-before-writerSecond"
// bundle of the unordered pair {writerFirst, writerSecond}. Which
// physical bundle (forward/backward) that maps to depends only on
// which of the two writers is numerically smaller, so that pair
// (p, q) and pair (q, p) always land in the same Constraint.
func (a *pairAccumulator) add(writerFirst, writerSecond int64, edge BundleEdge) {
	lo, hi := writerFirst, writerSecond
	forward := true
	if lo > hi {
		lo, hi = hi, lo
		forward = false
	}
	key := pairKey{lo, hi}
	b, ok := a.acc[key]
	if !ok {
		b = &pairBundles{}
		a.acc[key] = b
		a.order = append(a.order, key)
	}
	if forward {
		b.forward = mergeBundleEdge(b.forward, edge)
	} else {
		b.backward = mergeBundleEdge(b.backward, edge)
	}
}

// mergeBundleEdge appends edge, merging its Keys into an existing
// entry with the same (From, To, Kind) rather than duplicating it —
// the bundle-level analogue of core.Graph's MergeKeys.
func mergeBundleEdge(edges []BundleEdge, edge BundleEdge) []BundleEdge {
	for i := range edges {
		if edges[i].From == edge.From && edges[i].To == edge.To && edges[i].Kind == edge.Kind {
			edges[i].Keys = edges[i].Keys.Union(edge.Keys)
			return edges
		}
	}
	return append(edges, edge)
}

// constraints materializes one Constraint per accumulated pair, in a
// deterministic order (ascending by (P, Q)), with stable IDs assigned
// by that order (property R1: "identical known graphs and constraint
// sets modulo iteration order").
func (a *pairAccumulator) constraints() []*Constraint {
	keys := append([]pairKey(nil), a.order...)
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].lo != keys[j].lo {
			return keys[i].lo < keys[j].lo
		}
		return keys[i].hi < keys[j].hi
	})

	out := make([]*Constraint, 0, len(keys))
	for i, k := range keys {
		b := a.acc[k]
		out = append(out, &Constraint{
			ID: i,
			P:  k.lo,
			Q:  k.hi,
			A:  b.forward,
			B:  b.backward,
		})
	}
	return out
}
