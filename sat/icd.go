package sat

import (
	"github.com/polysi-go/polysi/config"
	"github.com/polysi-go/polysi/core"
)

// icdInstance is one reason-tagged occurrence of an arc. An arc
// persists as long as at least one instance remains — this is the
// "reason-tagged multi-edges" design from spec.md §9: a multiset of
// reasons per neighbour rather than one edge per reason.
type icdInstance struct {
	id     int
	reason []Var
	kind   core.Kind
	keys   core.Keys
}

type icdArc struct {
	instances []icdInstance
}

// Handle identifies one inserted instance for later retraction.
type Handle struct {
	from, to int
	id       int
}

// ICD is the Incremental Cycle Detector: a directed graph over dense
// vertex indices, with reason-tagged multi-edges and cycle rejection
// on insert (spec.md §4.4.2).
//
// Reachability is recomputed by BFS on every AddEdge rather than
// maintained via Pearce-Kelly levels — spec.md is explicit that
// "correctness relies only on reachability testing at add time", so
// this is the conforming simple case of that same contract.
type ICD struct {
	idx       map[int64]int
	tids      []int64
	arcs      map[[2]int]*icdArc
	out       []map[int]struct{}
	nextID    int
	isolation config.Isolation
}

// NewICD builds a detector over exactly the vertex set vs (typically
// every transaction id known to the polygraph).
func NewICD(vs []int64, isolation config.Isolation) *ICD {
	d := &ICD{
		idx:       make(map[int64]int, len(vs)),
		tids:      append([]int64(nil), vs...),
		arcs:      make(map[[2]int]*icdArc),
		out:       make([]map[int]struct{}, len(vs)),
		isolation: isolation,
	}
	for i, v := range vs {
		d.idx[v] = i
		d.out[i] = make(map[int]struct{})
	}
	return d
}

// SeedEdge inserts an unconditional (reason-free) known-graph edge.
// Seeds are assumed acyclic (the Deterministic Pruner already
// rejected a cyclic known graph before SC ever runs) so SeedEdge
// ignores the conflict return of addEdge; a cycle here is an
// ErrInternalInvariant situation for the caller to catch instead.
func (d *ICD) SeedEdge(e EdgeAssertion) (ok bool) {
	_, ok, _ = d.addEdge(e.From, e.To, e.Kind, e.Keys, nil)
	return ok
}

// AddEdge inserts e with the given reason (the SAT variables whose
// current truth implies it). On success returns a Handle for later
// retraction. On cycle, ok is false and conflict names the reason
// clause to learn (spec.md §4.4.2 add_edge).
func (d *ICD) AddEdge(e EdgeAssertion, reason []Var) (h Handle, ok bool, conflict Clause) {
	return d.addEdge(e.From, e.To, e.Kind, e.Keys, reason)
}

func (d *ICD) addEdge(from, to int64, kind core.Kind, keys core.Keys, reason []Var) (Handle, bool, Clause) {
	fi, ti := d.idx[from], d.idx[to]
	key := [2]int{fi, ti}

	d.nextID++
	inst := icdInstance{id: d.nextID, reason: append([]Var(nil), reason...), kind: kind, keys: keys}

	if arc, exists := d.arcs[key]; exists {
		arc.instances = append(arc.instances, inst)
		return Handle{from: fi, to: ti, id: inst.id}, true, nil
	}

	if fi == ti {
		// A self-loop is trivially a cycle; build a length-1 conflict.
		return Handle{}, false, d.conflictClause([]Var{}, reason)
	}

	st := d.bfs2(ti)
	reachablePure, reachableImpure := st.pure[fi], st.impure[fi]

	if reachablePure || reachableImpure {
		tolerate := d.isolation == config.SnapshotIsolation && kind == core.RW && !reachableImpure
		if tolerate {
			// spec.md §4.4.4: under SI, a cycle made entirely of
			// anti-dependency edges is not a conflict. Every walk back
			// to fi is RW-only (reachableImpure is false), and the
			// closing edge is RW too, so tolerate and let it through.
			d.arcs[key] = &icdArc{instances: []icdInstance{inst}}
			d.out[fi][ti] = struct{}{}
			return Handle{from: fi, to: ti, id: inst.id}, true, nil
		}
		pred := st.predPure
		if reachableImpure {
			pred = st.predImpure
		}
		pathReasons := d.pathReasons(pred, ti, fi)
		allReasons := append(append([]Var(nil), pathReasons...), reason...)
		return Handle{}, false, d.conflictClause(allReasons, nil)
	}

	d.arcs[key] = &icdArc{instances: []icdInstance{inst}}
	d.out[fi][ti] = struct{}{}
	return Handle{from: fi, to: ti, id: inst.id}, true, nil
}

// reachState is the result of bfs2: for every vertex, whether it is
// reachable from the search root via a walk using only RW-kind arcs
// (pure) and/or via a walk that used at least one non-RW arc (impure),
// with a predecessor per state for path reconstruction.
type reachState struct {
	pure, impure         []bool
	predPure, predImpure []int
}

// bfs2 answers the question addEdge needs under snapshot isolation:
// not just "is fi reachable from ti" but "is fi reachable from ti via
// a walk that is forced to include a real dependency edge". A single
// shortest-path search isn't enough — two different walks can connect
// the same pair, one pure-RW and one not, and spec.md §4.4.4 rejects
// the cycle if *any* walk back makes it non-RW-only, regardless of
// whether a pure-RW alternative also exists. Tracking both reachability
// classes in one pass (impure is absorbing: once a walk uses a non-RW
// arc, every extension of it stays impure) answers both at once.
func (d *ICD) bfs2(src int) *reachState {
	n := len(d.tids)
	st := &reachState{
		pure: make([]bool, n), impure: make([]bool, n),
		predPure: make([]int, n), predImpure: make([]int, n),
	}
	for i := 0; i < n; i++ {
		st.predPure[i] = -1
		st.predImpure[i] = -1
	}
	st.pure[src] = true

	type item struct {
		v      int
		impure bool
	}
	queue := []item{{v: src, impure: false}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		v := it.v
		for w := range d.out[v] {
			arc, ok := d.arcs[[2]int{v, w}]
			if !ok {
				continue
			}
			allRW := true
			for _, inst := range arc.instances {
				if inst.kind != core.RW {
					allRW = false
					break
				}
			}

			if !it.impure && allRW && !st.pure[w] {
				st.pure[w] = true
				st.predPure[w] = v
				queue = append(queue, item{v: w, impure: false})
			}

			becomesImpure := it.impure || !allRW
			if becomesImpure && !st.impure[w] {
				st.impure[w] = true
				st.predImpure[w] = v
				queue = append(queue, item{v: w, impure: true})
			}
		}
	}
	return st
}

// RemoveInstance retracts exactly the instance h identifies. If it was
// the arc's last instance, the arc disappears from the topology.
func (d *ICD) RemoveInstance(h Handle) {
	key := [2]int{h.from, h.to}
	arc, ok := d.arcs[key]
	if !ok {
		return
	}
	for i, inst := range arc.instances {
		if inst.id == h.id {
			arc.instances = append(arc.instances[:i], arc.instances[i+1:]...)
			break
		}
	}
	if len(arc.instances) == 0 {
		delete(d.arcs, key)
		delete(d.out[h.from], h.to)
	}
}

// reach runs a BFS from src looking for dst, returning the sequence of
// dense vertex indices on a shortest path (inclusive of both ends) and
// the union of reasons of the arcs walked, or found=false if dst is
// unreachable from src.
func (d *ICD) reach(src, dst int) (path []int, reasons []Var, found bool) {
	if src == dst {
		return []int{src}, nil, true
	}

	n := len(d.tids)
	visited := make([]bool, n)
	pred := make([]int, n)
	for i := range pred {
		pred[i] = -1
	}
	visited[src] = true
	queue := []int{src}

	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for w := range d.out[v] {
			if visited[w] {
				continue
			}
			visited[w] = true
			pred[w] = v
			if w == dst {
				return reconstructPath(pred, src, dst), d.pathReasons(pred, src, dst), true
			}
			queue = append(queue, w)
		}
	}
	return nil, nil, false
}

func reconstructPath(pred []int, src, dst int) []int {
	var rev []int
	for v := dst; v != src; v = pred[v] {
		rev = append(rev, v)
	}
	rev = append(rev, src)
	out := make([]int, len(rev))
	for i, v := range rev {
		out[len(rev)-1-i] = v
	}
	return out
}

// pathReasons collects the union of every instance's reason along the
// walked path's arcs. An arc may carry several instances (several
// independent reasons each sufficient on their own); any one of them
// is a valid witness, so the first instance is used — using more would
// only weaken (not invalidate) the learned clause.
func (d *ICD) pathReasons(pred []int, src, dst int) []Var {
	seen := make(map[Var]struct{})
	var out []Var
	add := func(vs []Var) {
		for _, v := range vs {
			if _, ok := seen[v]; !ok {
				seen[v] = struct{}{}
				out = append(out, v)
			}
		}
	}
	for v := dst; v != src; v = pred[v] {
		u := pred[v]
		if arc, ok := d.arcs[[2]int{u, v}]; ok && len(arc.instances) > 0 {
			add(arc.instances[0].reason)
		}
	}
	return out
}

// conflictClause builds ¬(⋀ vars) as a Clause: one negated literal per
// distinct variable across the cycle's path reasons plus the reason of
// the edge whose insertion closed the loop.
func (d *ICD) conflictClause(pathReasons []Var, closingReason []Var) Clause {
	seen := make(map[Var]struct{})
	var clause Clause
	add := func(vs []Var) {
		for _, v := range vs {
			if _, ok := seen[v]; !ok {
				seen[v] = struct{}{}
				clause = append(clause, Neg(v))
			}
		}
	}
	add(pathReasons)
	add(closingReason)
	return clause
}

// CycleFrom reconstructs the closed walk and edge labels for the last
// cycle found when inserting (from, to): used by Solve to build the
// user-facing Conflict once the search exhausts all assignments.
func (d *ICD) CycleFrom(from, to int64, kind core.Kind, keys core.Keys) ([]int64, []CycleEdge) {
	fi, ti := d.idx[from], d.idx[to]
	path, _, found := d.reach(ti, fi)
	if !found {
		return nil, nil
	}

	tids := make([]int64, 0, len(path)+1)
	for _, v := range path {
		tids = append(tids, d.tids[v])
	}
	tids = append(tids, d.tids[ti])

	edges := make([]CycleEdge, 0, len(path))
	for i := 0; i+1 < len(path); i++ {
		u, v := path[i], path[i+1]
		if arc, ok := d.arcs[[2]int{u, v}]; ok && len(arc.instances) > 0 {
			inst := arc.instances[0]
			edges = append(edges, CycleEdge{From: d.tids[u], To: d.tids[v], Kind: inst.kind, Keys: inst.keys})
		}
	}
	edges = append(edges, CycleEdge{From: from, To: to, Kind: kind, Keys: keys})

	return tids, edges
}
