package polygraph_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polysi-go/polysi/core"
	"github.com/polysi-go/polysi/history"
	"github.com/polysi-go/polysi/polygraph"
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

// Scenario 3 from spec.md §8: repeatable-read violation. Two writers
// of key 1; one reader transaction reads both values. This must
// produce a WW constraint for the pair, since txns 0 and 1 both write
// key 1.
func TestBuild_RepeatableReadScenario(t *testing.T) {
	sessions := []history.Session{
		{SID: 0, Transactions: []history.Transaction{
			txn(0, 0, w(1, 1)),
			txn(1, 0, w(1, 2)),
		}},
		{SID: 1, Transactions: []history.Transaction{
			txn(2, 1, r(1, 1), r(1, 2)),
		}},
	}
	h := history.History{Sessions: sessions, InitialTID: 0}
	require.NoError(t, history.Validate(h))

	g, constraints, _, err := polygraph.Build(h)
	require.NoError(t, err)

	assert.True(t, g.HasEdge(0, 1, core.SO))
	assert.True(t, g.HasEdge(0, 2, core.WR))
	assert.True(t, g.HasEdge(1, 2, core.WR))
	require.Len(t, constraints, 1)
	assert.Equal(t, int64(0), constraints[0].P)
	assert.Equal(t, int64(1), constraints[0].Q)
}

// Scenario 6 from spec.md §8: two writes of the same (key, value) by
// distinct transactions must be rejected by PB itself, even when
// Validate was never called.
func TestBuild_MalformedDuplicateValue(t *testing.T) {
	sessions := []history.Session{
		{SID: 0, Transactions: []history.Transaction{txn(1, 0, w(1, 7))}},
		{SID: 1, Transactions: []history.Transaction{txn(2, 1, w(1, 7))}},
	}
	h := history.History{Sessions: sessions}

	_, _, _, err := polygraph.Build(h)
	assert.ErrorIs(t, err, history.ErrMalformedHistory)
}

func TestBuild_ReadWithNoWriterIsMalformed(t *testing.T) {
	sessions := []history.Session{
		{SID: 0, Transactions: []history.Transaction{txn(1, 0, r(1, 99))}},
	}
	h := history.History{Sessions: sessions}

	_, _, _, err := polygraph.Build(h)
	assert.ErrorIs(t, err, history.ErrMalformedHistory)
}

// A single unread write key generates no constraints (spec.md §8 B3).
func TestBuild_SingleUnreadWrite_NoConstraints(t *testing.T) {
	sessions := []history.Session{
		{SID: 0, Transactions: []history.Transaction{txn(1, 0, w(1, 1))}},
	}
	h := history.History{Sessions: sessions}
	_, constraints, _, err := polygraph.Build(h)
	require.NoError(t, err)
	assert.Empty(t, constraints)
}

// Write-skew history (scenario 2): constraint between the two writers
// of key 1 should carry an induced RW edge in one of its bundles,
// since txn 2 reads key 1 from txn 0 while txn 1 also writes key 1.
func TestBuild_WriteSkew_InducesRW(t *testing.T) {
	sessions := []history.Session{
		{SID: 0, Transactions: []history.Transaction{txn(0, 0, w(1, 1))}},
		{SID: 1, Transactions: []history.Transaction{txn(1, 1, w(1, 2), w(2, 2))}},
		{SID: 2, Transactions: []history.Transaction{txn(2, 2, r(1, 1), w(2, 1))}},
	}
	h := history.History{Sessions: sessions}
	_, constraints, _, err := polygraph.Build(h)
	require.NoError(t, err)

	var found *polygraph.Constraint
	for _, c := range constraints {
		if (c.P == 0 && c.Q == 1) || (c.P == 1 && c.Q == 0) {
			found = c
		}
	}
	require.NotNil(t, found, "expected a constraint between writers of key 1")

	hasRW := func(edges []polygraph.BundleEdge) bool {
		for _, e := range edges {
			if e.Kind == core.RW {
				return true
			}
		}
		return false
	}
	assert.True(t, hasRW(found.A) || hasRW(found.B), "one bundle must carry the induced RW edge")
}

// Build's output does not depend on the order sessions are listed in,
// only on the events each transaction carries. Constraint.ID is
// assigned by output-slice position, so it is excluded from the
// comparison along with the two bundles' own edge ordering.
func TestBuild_ConstraintShape_IndependentOfSessionOrder(t *testing.T) {
	forward := history.History{Sessions: []history.Session{
		{SID: 0, Transactions: []history.Transaction{txn(0, 0, w(1, 1), w(2, 1))}},
		{SID: 1, Transactions: []history.Transaction{txn(1, 1, r(1, 1), w(1, 2))}},
		{SID: 2, Transactions: []history.Transaction{txn(2, 2, r(2, 1), w(2, 2))}},
	}}
	reversed := history.History{Sessions: []history.Session{
		{SID: 2, Transactions: []history.Transaction{txn(2, 2, r(2, 1), w(2, 2))}},
		{SID: 1, Transactions: []history.Transaction{txn(1, 1, r(1, 1), w(1, 2))}},
		{SID: 0, Transactions: []history.Transaction{txn(0, 0, w(1, 1), w(2, 1))}},
	}}

	_, a, _, err := polygraph.Build(forward)
	require.NoError(t, err)
	_, b, _, err := polygraph.Build(reversed)
	require.NoError(t, err)

	sortConstraints := cmpopts.SortSlices(func(x, y *polygraph.Constraint) bool {
		return x.P < y.P || (x.P == y.P && x.Q < y.Q)
	})
	sortBundleEdges := cmpopts.SortSlices(func(x, y polygraph.BundleEdge) bool {
		if x.From != y.From {
			return x.From < y.From
		}
		if x.To != y.To {
			return x.To < y.To
		}
		return x.Kind < y.Kind
	})
	ignoreID := cmpopts.IgnoreFields(polygraph.Constraint{}, "ID")

	if diff := cmp.Diff(a, b, sortConstraints, sortBundleEdges, ignoreID); diff != "" {
		t.Errorf("constraint set depends on session listing order (-forward +reversed):\n%s", diff)
	}
}
