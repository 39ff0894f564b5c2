package sat

import "github.com/polysi-go/polysi/core"

// wrNeighbors returns every vertex r such that a WR edge p→r carrying
// key is currently present, together with the reason of that edge (the
// first matching instance's — see icd.go's pathReasons for why "first"
// is sound). The key filter matters: spec.md §4.4.2 only induces RW(k)
// from a WR(k)/WW(k) pair that concern the SAME key, not merely the
// same writer.
func (d *ICD) wrNeighbors(p int, key int64) []struct {
	r      int
	reason []Var
} {
	var out []struct {
		r      int
		reason []Var
	}
	for to := range d.out[p] {
		arc, ok := d.arcs[[2]int{p, to}]
		if !ok {
			continue
		}
		for _, inst := range arc.instances {
			if inst.kind == core.WR && inst.keys.Has(key) {
				out = append(out, struct {
					r      int
					reason []Var
				}{r: to, reason: inst.reason})
				break
			}
		}
	}
	return out
}

// InduceFromWW adds RW(k): r→q for every reader r currently linked to
// p by a WR(k) edge ON THE SAME KEY, when a WW(k): p→q edge is
// asserted under variable v (spec.md §4.4.2 "Induced RW edges"). Each
// induced edge's reason is {v} plus the WR edge's own reason (empty
// for the unconditional edges PB seeds).
//
// Returns handles for every edge actually inserted (for the trail to
// retract on backtrack) and, on the first conflict, the offending
// reason clause — callers stop inducing further edges on conflict,
// mirroring the original assignment's own early-exit on cycle.
func (d *ICD) InduceFromWW(p, q int64, key int64, v Var) (handles []Handle, ok bool, conflict Clause) {
	pi := d.idx[p]
	for _, n := range d.wrNeighbors(pi, key) {
		r := d.tids[n.r]
		if r == q {
			continue
		}
		reason := append([]Var{v}, n.reason...)
		h, added, c := d.AddEdge(EdgeAssertion{From: r, To: q, Kind: core.RW, Keys: core.Keys{key}}, reason)
		if !added {
			return handles, false, c
		}
		handles = append(handles, h)
	}
	return handles, true, nil
}
