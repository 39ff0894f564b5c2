package prune

import (
	"github.com/polysi-go/polysi/config"
	"github.com/polysi-go/polysi/core"
	"github.com/polysi-go/polysi/polygraph"
)

// Result is the outcome of a pruning pass.
type Result struct {
	// Reject is true when the fixed point discovered a cycle in the
	// known graph — the history is inconsistent regardless of how the
	// SMT Core would resolve the remaining constraints.
	Reject bool

	// Cycle is the witness closed walk when Reject is true, matching
	// spec.md §6's reject output shape. Nil when Reject is false.
	Cycle *Cycle

	// Changed counts how many constraints were newly pruned (bundle
	// committed) by this call, across every iteration of the fixed
	// point.
	Changed int
}

// Run drives the fixed point of spec.md §4.3 to convergence: rebuild
// the induced-closure graph H, check every not-yet-pruned constraint's
// two bundles against H, commit whichever bundle is the only one that
// would not create a cycle, and repeat until a pass commits nothing.
//
// g is mutated in place: committed bundle edges are merged into it via
// core.Graph.AddEdge. constraints' Pruned flags are mutated in place.
//
// Grounded on the original artifact's solver/pruner.cpp
// prune_constraints (the non-commented, SI-flavored body is
// structurally this function; see reach.go's closure doc for how
// isolation changes H).
func Run(g *core.Graph, constraints []*polygraph.Constraint, isolation config.Isolation) (Result, error) {
	var res Result

	for {
		idx := newIndex(g)
		cl, cyclic, cycle := buildClosure(g, idx, isolation)
		if cyclic {
			res.Reject = true
			res.Cycle = cycle
			return res, nil
		}

		changedThisPass := false
		for _, c := range constraints {
			if c.Pruned {
				continue
			}

			aOK := checkBundle(cl, c.A, isolation)
			bOK := checkBundle(cl, c.B, isolation)

			switch {
			case !aOK && !bOK:
				// Mirrors the original: commit B anyway and let the
				// next iteration's cyclicity check at the top of the
				// loop catch the resulting conflict and reject.
				if err := commitBundle(g, c.B); err != nil {
					return res, err
				}
				c.Pruned = true
				changedThisPass = true
				res.Changed++
			case !aOK:
				if err := commitBundle(g, c.B); err != nil {
					return res, err
				}
				c.Pruned = true
				changedThisPass = true
				res.Changed++
			case !bOK:
				if err := commitBundle(g, c.A); err != nil {
					return res, err
				}
				c.Pruned = true
				changedThisPass = true
				res.Changed++
			}
		}

		if !changedThisPass {
			return res, nil
		}
	}
}

// RunIncremental re-runs the fixed point but skips constraints already
// marked Pruned from a prior call, instead of rescanning the full
// constraint set from scratch every time the pruner is invoked again
// (e.g. after the SMT Core promotes one more constraint and wants the
// pruner's help deciding the rest). This is the Go analogue of the
// original's fast_prune_constraints optimization (SPEC_FULL.md
// "Supplemented Features"): Run already skips Pruned constraints in
// its inner loop, so RunIncremental is the same fixed point — the
// distinct entry point exists so callers state their intent and so a
// future caching layer (e.g. memoizing closures across calls) has an
// obvious seam to attach to.
func RunIncremental(g *core.Graph, constraints []*polygraph.Constraint, isolation config.Isolation) (Result, error) {
	return Run(g, constraints, isolation)
}

// checkBundle reports whether committing every edge in edges would
// leave H acyclic to the extent that matters: under Serializability,
// any edge is checked by a uniform reachability test; under SI, the
// test is WW-kind (reachability) or RW-kind (predecessor-set ∩
// reachability-set), per the original artifact's check_edges.
func checkBundle(cl *closure, edges []polygraph.BundleEdge, isolation config.Isolation) bool {
	for _, e := range edges {
		fi, to := cl.idx.toIdx[e.From], cl.idx.toIdx[e.To]

		if isolation == config.Serializability || e.Kind == core.WW {
			if cl.reach[to].Test(fi) {
				return false
			}
			continue
		}

		// RW-kind edge under SI.
		if cl.pred[fi].Clone().InPlaceIntersection(cl.reach[to]).Any() {
			return false
		}
	}
	return true
}

// commitBundle merges every edge of a committed bundle into g,
// extending an existing edge's key set rather than duplicating it
// (spec.md §4.3 step 4, "the committed bundle's edges are added to the
// known graph").
func commitBundle(g *core.Graph, edges []polygraph.BundleEdge) error {
	for _, e := range edges {
		if err := g.AddEdge(e.From, e.To, e.Kind, e.Keys); err != nil {
			return err
		}
	}
	return nil
}
