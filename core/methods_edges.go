// File: methods_edges.go
// Role: Edge lifecycle — AddEdge/MergeKeys/HasEdge/GetEdge/EdgeCount.
// Determinism:
//   - Edges()/EdgesOfKinds() return edges sorted by (From, To, Kind).
// Concurrency:
//   - Mutations take muEdge write lock; endpoints are auto-added via
//     AddVertex (its own lock) before muEdge is acquired, so the two
//     locks are never held nested.
package core

// AddEdge inserts an edge (from, to, kind) carrying keys, auto-adding
// both endpoints as vertices first. If an edge with the same
// (from, to, kind) already exists, its Keys set is extended instead
// of a duplicate being created — this is the "merge_keys" behavior
// required by spec §4.1 ("when a same-kind edge already exists, its
// key set is extended rather than duplicated").
//
// Complexity: O(1) amortized, O(len(keys)) for the merge.
func (g *Graph) AddEdge(from, to int64, kind Kind, keys ...Keys) error {
	if int(kind) >= numKinds {
		return ErrUnknownKind
	}

	g.AddVertex(from)
	g.AddVertex(to)

	g.muEdge.Lock()
	defer g.muEdge.Unlock()

	var merged Keys
	for _, ks := range keys {
		merged = merged.Union(ks)
	}

	if nbrs, ok := g.out[kind][from]; ok {
		if e, ok := nbrs[to]; ok {
			e.Keys = e.Keys.Union(merged)
			return nil
		}
	}

	e := &Edge{From: from, To: to, Kind: kind, Keys: merged}
	g.ensureEdgeMaps(kind, from, to)
	g.out[kind][from][to] = e
	g.in[kind][to][from] = e
	return nil
}

// ensureEdgeMaps allocates the nested maps for (kind, from) / (kind, to)
// if this is the first edge touching that vertex on that plane.
// Caller must hold muEdge.
func (g *Graph) ensureEdgeMaps(kind Kind, from, to int64) {
	if g.out[kind][from] == nil {
		g.out[kind][from] = make(map[int64]*Edge)
	}
	if g.in[kind][to] == nil {
		g.in[kind][to] = make(map[int64]*Edge)
	}
}

// MergeKeys extends the Keys set of an existing edge, or creates the
// edge with exactly these keys if absent. This is AddEdge's merge
// behavior exposed as its own entry point for callers (the pruner)
// that promote an edge whose existence they already know.
//
// Complexity: O(len(keys))
func (g *Graph) MergeKeys(from, to int64, kind Kind, keys Keys) error {
	return g.AddEdge(from, to, kind, keys)
}

// HasEdge reports whether an edge (from, to, kind) exists.
//
// Complexity: O(1)
func (g *Graph) HasEdge(from, to int64, kind Kind) bool {
	if int(kind) >= numKinds {
		return false
	}
	g.muEdge.RLock()
	defer g.muEdge.RUnlock()

	nbrs, ok := g.out[kind][from]
	if !ok {
		return false
	}
	_, ok = nbrs[to]
	return ok
}

// GetEdge returns the edge (from, to, kind) and true, or the zero
// Edge and false if it does not exist.
//
// Complexity: O(1)
func (g *Graph) GetEdge(from, to int64, kind Kind) (Edge, bool) {
	if int(kind) >= numKinds {
		return Edge{}, false
	}
	g.muEdge.RLock()
	defer g.muEdge.RUnlock()

	nbrs, ok := g.out[kind][from]
	if !ok {
		return Edge{}, false
	}
	e, ok := nbrs[to]
	if !ok {
		return Edge{}, false
	}
	return *e, true
}

// EdgeCount returns the number of edges across all kinds.
//
// Complexity: O(V) (scans per-vertex adjacency heads, not edges)
func (g *Graph) EdgeCount() int {
	g.muEdge.RLock()
	defer g.muEdge.RUnlock()

	n := 0
	for k := Kind(0); int(k) < numKinds; k++ {
		for _, nbrs := range g.out[k] {
			n += len(nbrs)
		}
	}
	return n
}

// Edges streams every edge in the graph, sorted by (From, To, Kind).
//
// Complexity: O(E log E)
func (g *Graph) Edges() []Edge {
	return g.EdgesOfKinds(AllKinds)
}

// EdgesOfKinds restricts Edges to the kinds present in ks.
//
// Complexity: O(E log E)
func (g *Graph) EdgesOfKinds(ks KindSet) []Edge {
	g.muEdge.RLock()
	defer g.muEdge.RUnlock()

	var out []Edge
	for k := Kind(0); int(k) < numKinds; k++ {
		if !ks.Has(k) {
			continue
		}
		for _, nbrs := range g.out[k] {
			for _, e := range nbrs {
				out = append(out, *e)
			}
		}
	}
	sortEdges(out)
	return out
}
