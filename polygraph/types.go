package polygraph

import "github.com/polysi-go/polysi/core"

// BundleEdge is one edge a Constraint's bundle would add to the known
// graph if that bundle is committed. Distinct from core.Edge because
// several BundleEdges for the same (From, To, Kind) accumulate Keys
// before being merged into a single core.Edge at commit time.
type BundleEdge struct {
	From, To int64
	Kind     core.Kind
	Keys     core.Keys
}

// Constraint is an unordered pair of disjunctive edge bundles for two
// distinct writers P and Q of some common key(s); exactly one bundle
// must be committed. Bundle A is "P-before-Q": the WW(k) edge P→Q,
// plus for every reader r of k that read from P, the induced RW(k)
// edge r→Q (r ≠ Q). Bundle B is the symmetric "Q-before-P".
//
// A single Constraint may cover multiple common keys (spec.md §3).
type Constraint struct {
	// ID is the constraint's position in the builder's output slice;
	// stable across a given Build call, used by the SAT encoding to
	// name the two boolean variables it allocates per constraint.
	ID int

	P, Q int64

	// A is the "P-before-Q" bundle, B is "Q-before-P".
	A, B []BundleEdge

	// Pruned is set by the Deterministic Pruner once it has committed
	// one of the two bundles; Constraint.A/B are never mutated after
	// Build returns (spec.md §3 "Lifecycles": "Constraints may be
	// marked pruned... but never mutated in content").
	Pruned bool
}

// WRCP (write-read constraint propagation) records that reader's
// read of key from exactly one candidate writer in Writers must hold;
// selecting one writer negates the rest (spec.md §4.4.3 glossary
// "WRCP"). Under this package's uniqueness invariant (every (key,
// value) pair has at most one writer — enforced as MalformedHistory
// otherwise) Writers always has length 1 by the time Build returns: WR
// edges are fully forced by history, never chosen by the SAT search.
// sat.Encode allocates one always-true unit-clause variable per WRCP
// so this fact is checked and wired through the encoding rather than
// silently assumed, even though there is never a rival writer for it
// to actually rule out in this build — see SPEC_FULL.md's
// "Supplemented Features" and DESIGN.md.
type WRCP struct {
	Reader  int64
	Key     int64
	Writers []int64
}
