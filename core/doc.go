// Package core provides the Graph Kernel: a typed directed multigraph
// keyed by transaction identifiers, with edges labelled by kind
// (SO, WR, WW, RW) and an optional set of keys.
//
// The kernel is intentionally dumb. It knows nothing about histories,
// constraints, or SAT variables — it is a storage and query structure
// that the Polygraph Builder, Deterministic Pruner, and SMT Core all
// build on top of. Keeping it dumb is what lets those three components
// stay independently testable.
//
// Graph G = (V, E) supports:
//
//   - Four edge kinds (SO, WR, WW, RW), tracked in separate adjacency
//     planes so that a kind-subset projection (EdgesOfKinds) never has
//     to filter a mixed list.
//   - Per-edge key sets: two transactions related by more than one key
//     collapse to a single edge whose Keys set grows (MergeKeys),
//     matching the "merging keys if multiple reads from the same
//     writer" rule of the history model.
//   - Deterministic iteration: Edges() and Successors() return results
//     sorted by vertex ID, so two runs over the same graph never
//     disagree modulo iteration order (property R1).
//   - Both forward and reverse adjacency, because the pruner needs
//     predecessor bitsets as well as reachability (spec §4.3 step 3).
//
// All failure in this package is programmer error (a missing vertex);
// the kernel performs no I/O and returns no wrapped sentinel chain —
// callers that need a missing vertex to be a soft condition should
// check HasVertex first.
package core
