package sat_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polysi-go/polysi/config"
	"github.com/polysi-go/polysi/core"
	"github.com/polysi-go/polysi/history"
	"github.com/polysi-go/polysi/polygraph"
	"github.com/polysi-go/polysi/prune"
	"github.com/polysi-go/polysi/sat"
)

func w(key, value int64) history.Event {
	return history.Event{Key: key, Value: value, Kind: history.Write}
}
func r(key, value int64) history.Event {
	return history.Event{Key: key, Value: value, Kind: history.Read}
}
func txn(tid, sid int64, evs ...history.Event) history.Transaction {
	return history.Transaction{TID: tid, SID: sid, Events: evs}
}

func TestEncode_SkipsPrunedConstraints_AllocatesVarsForSurviving(t *testing.T) {
	pruned := &polygraph.Constraint{ID: 0, P: 0, Q: 1, Pruned: true}
	live := &polygraph.Constraint{
		ID: 1, P: 1, Q: 2,
		A: []polygraph.BundleEdge{{From: 1, To: 2, Kind: core.WW, Keys: core.Keys{7}}},
		B: []polygraph.BundleEdge{{From: 2, To: 1, Kind: core.WW, Keys: core.Keys{7}}},
	}

	enc := sat.Encode([]*polygraph.Constraint{pruned, live}, nil)

	require.Equal(t, 2, enc.NumVars, "only the live constraint allocates variables")
	require.Len(t, enc.Constraints, 1)
	assert.Equal(t, 1, enc.Constraints[0].ConstraintID)
	assert.Len(t, enc.Constraints[0].EdgesA, 1)
	assert.Len(t, enc.Constraints[0].EdgesB, 1)

	// exactly-one clause pair over (a, b)
	require.Len(t, enc.Clauses, 2)
	a, b := enc.Constraints[0].A, enc.Constraints[0].B
	assert.ElementsMatch(t, []sat.Lit{sat.Pos(a), sat.Pos(b)}, enc.Clauses[0])
	assert.ElementsMatch(t, []sat.Lit{sat.Neg(a), sat.Neg(b)}, enc.Clauses[1])
}

// Under snapshot isolation a 2-cycle made entirely of anti-dependency
// edges is tolerated (spec.md §4.4.4): every walk back to the first
// edge's source stays RW-only, so bfs2 never marks the vertex impure.
func TestICD_SnapshotIsolation_TreatsPureRWCycleAsTolerated(t *testing.T) {
	d := sat.NewICD([]int64{0, 1}, config.SnapshotIsolation)
	require.True(t, d.SeedEdge(sat.EdgeAssertion{From: 0, To: 1, Kind: core.RW}))

	_, ok, _ := d.AddEdge(sat.EdgeAssertion{From: 1, To: 0, Kind: core.RW}, nil)
	assert.True(t, ok, "a pure-RW cycle must be tolerated under snapshot isolation")
}

// The same pure-RW cycle is a rejecting cycle under serializability:
// isolation gates tolerance, not the walk's purity alone.
func TestICD_Serializability_RejectsPureRWCycle(t *testing.T) {
	d := sat.NewICD([]int64{0, 1}, config.Serializability)
	require.True(t, d.SeedEdge(sat.EdgeAssertion{From: 0, To: 1, Kind: core.RW}))

	_, ok, conflict := d.AddEdge(sat.EdgeAssertion{From: 1, To: 0, Kind: core.RW}, nil)
	assert.False(t, ok)
	assert.NotNil(t, conflict)
}

// A cycle containing even one non-RW edge is never tolerated, even
// under snapshot isolation — bfs2's impure state is absorbing, so the
// mixed walk (WW then RW) poisons the whole cycle regardless of the
// closing edge's own kind.
func TestICD_SnapshotIsolation_TreatsImpureCycleAsConflict(t *testing.T) {
	d := sat.NewICD([]int64{0, 1}, config.SnapshotIsolation)
	require.True(t, d.SeedEdge(sat.EdgeAssertion{From: 0, To: 1, Kind: core.WW}))

	_, ok, conflict := d.AddEdge(sat.EdgeAssertion{From: 1, To: 0, Kind: core.RW}, nil)
	assert.False(t, ok, "a cycle with a non-RW edge must reject even under SI")
	assert.NotNil(t, conflict)
}

// Two writer-pair constraints that are each individually ambiguous to
// the pruner (both bundles locally feasible) but jointly constrained
// by a third, pre-existing edge: choosing bundle A for both closes a
// 3-cycle, so the solver must actually decide, detect the conflict via
// the theory, learn a clause, backtrack, and re-converge on one of the
// three remaining satisfying combinations. This is constructed by hand
// (bypassing history/polygraph) specifically so the search — not the
// Deterministic Pruner — resolves it.
func TestSolver_ConflictDrivenSearch_BacktracksToSatisfyingAssignment(t *testing.T) {
	g := core.NewGraph()
	g.AddVertex(0)
	g.AddVertex(1)
	g.AddVertex(2)
	require.NoError(t, g.AddEdge(2, 0, core.SO))

	constraints := []*polygraph.Constraint{
		{
			ID: 0, P: 0, Q: 1,
			A: []polygraph.BundleEdge{{From: 0, To: 1, Kind: core.WW, Keys: core.Keys{1}}},
			B: []polygraph.BundleEdge{{From: 1, To: 0, Kind: core.WW, Keys: core.Keys{1}}},
		},
		{
			ID: 1, P: 1, Q: 2,
			A: []polygraph.BundleEdge{{From: 1, To: 2, Kind: core.WW, Keys: core.Keys{2}}},
			B: []polygraph.BundleEdge{{From: 2, To: 1, Kind: core.WW, Keys: core.Keys{2}}},
		},
	}

	enc := sat.Encode(constraints, nil)
	require.Equal(t, 4, enc.NumVars)

	solver, err := sat.New(g, enc, config.Serializability, 0)
	require.NoError(t, err)

	outcome, err := solver.Solve(context.Background())
	require.NoError(t, err)
	require.True(t, outcome.SAT, "three of the four (bundle-0, bundle-1) combinations are acyclic")

	// Choosing bundle A for both constraints closes 2 -> 0 -> 1 -> 2
	// against the seeded SO(2,0) edge; the search must have rejected
	// that combination, not landed on it.
	chose := outcome.Model.ChosenA
	assert.False(t, chose[0] && chose[1], "bundle A on both constraints is the one infeasible combination")
}

// The write-skew scenario built for the Deterministic Pruner (both
// constraints pruned, leaving the SMT Core an empty encoding) still
// exercises the prune -> encode -> solve pipeline end to end: under
// snapshot isolation the accept goes through New's seeding (which must
// tolerate the pure-RW 2-cycle DP's promotion leaves in the known
// graph), while under serializability the Deterministic Pruner itself
// rejects before the SMT Core ever runs.
func writeSkewHistory() history.History {
	sessions := []history.Session{
		{SID: 0, Transactions: []history.Transaction{txn(0, 0, w(1, 0), w(2, 0))}},
		{SID: 1, Transactions: []history.Transaction{txn(1, 1, r(1, 0), r(2, 0), w(2, 1))}},
		{SID: 2, Transactions: []history.Transaction{txn(2, 2, r(1, 0), r(2, 0), w(1, 1))}},
	}
	return history.History{Sessions: sessions, InitialTID: 0}
}

func TestSolver_WriteSkew_AcceptsUnderSnapshotIsolation(t *testing.T) {
	h := writeSkewHistory()
	require.NoError(t, history.Validate(h))

	g, constraints, wrcps, err := polygraph.Build(h)
	require.NoError(t, err)
	require.Len(t, constraints, 2)
	require.NotEmpty(t, wrcps, "every read in this history has a unique writer, so each is its own WRCP")

	res, err := prune.Run(g, constraints, config.SnapshotIsolation)
	require.NoError(t, err)
	require.False(t, res.Reject)
	require.Equal(t, 2, res.Changed, "both writer-pair constraints are resolved by DP alone")
	for _, c := range constraints {
		assert.True(t, c.Pruned)
	}

	enc := sat.Encode(constraints, wrcps)
	assert.Equal(t, 0, len(enc.Constraints), "nothing is left for the SMT Core to decide between")
	assert.Equal(t, len(wrcps), enc.NumVars, "every WRCP still allocates its (always-true) unit variable")

	solver, err := sat.New(g, enc, config.SnapshotIsolation, 0)
	require.NoError(t, err, "seeding must tolerate the pure-RW 2-cycle DP's promotion left between the two writers")

	outcome, err := solver.Solve(context.Background())
	require.NoError(t, err)
	assert.True(t, outcome.SAT)
	assert.Empty(t, outcome.Model.ChosenA)
}

func TestRun_WriteSkew_RejectsUnderSerializability(t *testing.T) {
	h := writeSkewHistory()
	require.NoError(t, history.Validate(h))

	g, constraints, _, err := polygraph.Build(h)
	require.NoError(t, err)

	res, err := prune.Run(g, constraints, config.Serializability)
	require.NoError(t, err)
	assert.True(t, res.Reject, "the pure-RW 2-cycle DP's promotion leaves between the two writers is a rejecting cycle under serializability")
}
