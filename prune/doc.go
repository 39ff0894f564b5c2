// Package prune implements the Deterministic Pruner (DP): a
// fixed-point pass that promotes disjunctive constraints to unit
// edges whenever one disjunct is already cyclic under the currently
// implied graph, and reports global inconsistency when both disjuncts
// are cyclic (spec.md §4.3).
//
// Run performs the from-scratch fixed point described in spec.md;
// RunIncremental re-examines only constraints that might have become
// feasible/infeasible since the last pass, the way the original
// artifact's fast_prune_constraints avoids rescanning already-pruned
// constraints (see SPEC_FULL.md's "Supplemented Features").
//
// Reachability and predecessor sets are bits, not maps — the
// induced-closure computation of step 2 touches every vertex pair
// candidate in the worst case, and a bitset's word-at-a-time AND/OR
// is what makes that affordable (grounded on the original artifact's
// own use of boost::dynamic_bitset for the same computation).
//
// H's cyclicity check is isolation-aware: under snapshot isolation a
// strongly-connected component made entirely of RW edges is tolerated
// and contracted into one reachability-equivalence class rather than
// rejected outright (spec.md §4.4.4's rule, applied here too — see
// reach.go's buildClosure doc and DESIGN.md for why the naive
// "exclude RW edges from H under SI" construction the original
// artifact's two pruning variants suggest turns out not to change
// anything, since the induced-closure step always reconstructs a
// promoted RW edge from its own WR/WW justification regardless).
//
// When buildClosure finds a rejecting cycle, Result.Cycle carries a
// concrete witness (a closed walk plus each step's edge label) rather
// than just the reject bit, so a caller can report why, not only that.
package prune
