// Package sat implements the SMT Core (SC): a CDCL SAT solver over two
// boolean variables per surviving constraint, paired with a theory
// propagator — the Incremental Cycle Detector (ICD) — that rejects any
// assignment whose enabled edges close a cycle in the transaction
// graph (spec.md §4.4).
//
// Steps per decision:
//  1. Pick an unassigned variable (fewest new induced edges, VSIDS
//     tie-break) and assign it true.
//  2. Push a new trail scope; insert every edge the assignment enables
//     (bundle edges plus induced RW edges) into the ICD.
//  3. If an insertion closes a cycle, build the reason clause, hand it
//     to conflict analysis, and backjump — popping scopes restracts
//     exactly the edges each scope inserted (left-inverse, I4).
//  4. Otherwise continue deciding.
//
// WRCP unit propagation (spec.md §4.4.3 step 2) is encoded rather than
// run as a separate step: Encode allocates one always-true unit-clause
// variable per WRCP, so propagate's ordinary boolean unit propagation
// fixes it at decision level 0 before the first real decision is ever
// made. Every WRCP's Writers has exactly one candidate by construction
// (see polygraph.WRCP), so there is never a rival writer for it to
// force false — the degenerate case spec.md's general rule reduces to
// here (see DESIGN.md).
//
// The ICD here trades the spec's level-based Pearce–Kelly bounded BFS
// for a plain reachability search on every add_edge. Spec.md §4.4.2 is
// explicit that "correctness relies only on reachability testing at
// add time" — levels are a performance refinement, not a soundness
// requirement — so this is a conforming, simpler incremental cycle
// detector rather than a different algorithm (see DESIGN.md).
package sat
