package engine

import (
	"errors"

	"github.com/polysi-go/polysi/core"
	"github.com/polysi-go/polysi/history"
)

// Sentinel errors matching spec.md §7's four-member error taxonomy.
// MalformedHistory and InternalInvariant are fatal (no verdict is
// produced); KnownCycle is never one of these — a rejecting cycle is
// reported as a Verdict, not an error.
var (
	// ErrMalformedHistory is history.ErrMalformedHistory itself, so
	// callers can errors.Is against either. Fatal: Check returns no Verdict.
	ErrMalformedHistory = history.ErrMalformedHistory

	// ErrTimeout is returned when ctx is cancelled, or the configured
	// wall-clock or conflict budget runs out, before a verdict is
	// reached. Fatal: Check returns no Verdict.
	ErrTimeout = errors.New("engine: timed out before a verdict was reached")

	// ErrInternalInvariant indicates a bookkeeping contradiction in the
	// Polygraph Builder, Deterministic Pruner, or SMT Core — a bug in
	// this module, never a consequence of the input history. Fatal.
	ErrInternalInvariant = errors.New("engine: internal invariant violated")

	// ErrSolverBackendUnavailable is returned when Config.SolverBackend
	// names a backend this build does not wire up. The original
	// artifact's monosatSolver and z3Solver backends are named but
	// dead in its own build (see SPEC_FULL.md's "Supplemented
	// Features"); config.ExternalSMTUnused is kept as a selectable
	// value for the same reason, and selecting it fails closed here
	// rather than silently falling back to the SAT theory.
	ErrSolverBackendUnavailable = errors.New("engine: selected solver backend is not available in this build")
)

// CycleEdgeLabel is one step of a CycleWitness: the kind/keys label
// spec.md §6 asks a reject verdict to carry per edge.
type CycleEdgeLabel struct {
	Kind core.Kind
	Keys core.Keys
}

// CycleWitness is a concrete counterexample to acceptance: a closed
// walk TIDs[0..n] with TIDs[0] == TIDs[n], and one label per step
// (len(Edges) == len(TIDs)-1).
type CycleWitness struct {
	TIDs  []int64
	Edges []CycleEdgeLabel
}

// Verdict is Check's successful result. Exactly one source produced
// it: the Deterministic Pruner's own cyclicity check, or the SMT
// Core's search concluding UNSAT. Accepted is false in both cases that
// set Cycle.
type Verdict struct {
	Accepted bool

	// Cycle is non-nil iff !Accepted: the witness for why the history
	// was rejected.
	Cycle *CycleWitness

	// PrunedConstraints and TotalConstraints report how much of the
	// decision the Deterministic Pruner resolved on its own, before the
	// SMT Core (if any) ran — diagnostic, not load-bearing.
	PrunedConstraints int
	TotalConstraints  int
}
