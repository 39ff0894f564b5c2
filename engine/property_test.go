package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/polysi-go/polysi/config"
	"github.com/polysi-go/polysi/engine"
	"github.com/polysi-go/polysi/history"
)

// genHistory draws a random history by materializing a random total
// order directly as the generation order of transactions: each
// transaction's events read the most recently written value of a key
// (so every read-from link agrees with the emitted order) or write a
// freshly minted value. Because transactions are appended to their
// session in generation order, session order trivially agrees with
// the same total order, so the result is always a valid witness for
// (I1)'s accept direction.
func genHistory(t *rapid.T) history.History {
	numKeys := rapid.IntRange(1, 3).Draw(t, "numKeys")
	numTxns := rapid.IntRange(1, 6).Draw(t, "numTxns")
	numSessions := rapid.IntRange(1, numTxns).Draw(t, "numSessions")

	lastValue := make(map[int64]int64, numKeys)
	nextValue := make(map[int64]int64, numKeys)
	for k := int64(0); k < int64(numKeys); k++ {
		lastValue[k] = 0
		nextValue[k] = 1
	}

	sessions := make([]history.Session, numSessions)
	for s := range sessions {
		sessions[s] = history.Session{SID: int64(s)}
	}

	for tid := 0; tid < numTxns; tid++ {
		sid := rapid.IntRange(0, numSessions-1).Draw(t, "sid")
		numEvents := rapid.IntRange(1, 3).Draw(t, "numEvents")

		events := make([]history.Event, 0, numEvents)
		for e := 0; e < numEvents; e++ {
			key := int64(rapid.IntRange(0, numKeys-1).Draw(t, "key"))
			if rapid.Bool().Draw(t, "isWrite") {
				v := nextValue[key]
				nextValue[key]++
				lastValue[key] = v
				events = append(events, history.Event{Key: key, Value: v, Kind: history.Write})
			} else {
				events = append(events, history.Event{Key: key, Value: lastValue[key], Kind: history.Read})
			}
		}

		sessions[sid].Transactions = append(sessions[sid].Transactions, history.Transaction{
			TID:    int64(tid),
			SID:    int64(sid),
			Events: events,
		})
	}

	return history.WithInitialTxn(sessions)
}

// TestProperty_TotalOrderWitness_AlwaysAccepts checks (I1)'s accept
// direction: a history built by replaying a materialized total order
// is always consistent.
func TestProperty_TotalOrderWitness_AlwaysAccepts(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		h := genHistory(t)

		e := engine.New(config.Default(), nil)
		verdict, err := e.Check(context.Background(), h)
		require.NoError(t, err)
		require.True(t, verdict.Accepted, "history replaying a materialized total order must be accepted")
	})
}

// TestProperty_MutatedReadFrom_AlwaysRejects checks (I1)'s reject
// direction: taking a valid witness history and rewriting one read to
// claim a value written later, by a transaction strictly after the
// reader in session order, contradicts session order no matter how
// the remaining transactions are serialized.
func TestProperty_MutatedReadFrom_AlwaysRejects(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		h := genHistory(t)

		type mutation struct {
			sid, readerIdx, eventIdx int
			newValue                 int64
		}
		var candidates []mutation

		for si, s := range h.Sessions {
			for ri, txn := range s.Transactions {
				for ei, ev := range txn.Events {
					if ev.Kind != history.Read {
						continue
					}
					for rj := ri + 1; rj < len(s.Transactions); rj++ {
						for _, laterEv := range s.Transactions[rj].Events {
							if laterEv.Kind == history.Write && laterEv.Key == ev.Key && laterEv.Value != ev.Value {
								candidates = append(candidates, mutation{si, ri, ei, laterEv.Value})
							}
						}
					}
				}
			}
		}
		if len(candidates) == 0 {
			t.Skip("no same-session read-before-write pair to mutate")
		}

		m := candidates[rapid.IntRange(0, len(candidates)-1).Draw(t, "mutation")]
		h.Sessions[m.sid].Transactions[m.readerIdx].Events[m.eventIdx].Value = m.newValue

		e := engine.New(config.Default(), nil)
		verdict, err := e.Check(context.Background(), h)
		require.NoError(t, err)
		require.False(t, verdict.Accepted, "a read claiming a value written later in its own session must be rejected")
		require.NotNil(t, verdict.Cycle)
	})
}
