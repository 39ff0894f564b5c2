package history

import (
	"fmt"
	"sort"
)

// WithInitialTxn returns a copy of sessions plus a synthetic initial
// session/transaction writing value 0 to every key that appears in a
// Read anywhere in sessions (spec.md §6: "A synthetic initial
// transaction (smallest tid) writing every read-touched key with
// value 0 in its own session").
//
// The initial transaction's TID is one less than the smallest TID
// already present (or 0 if sessions is empty), guaranteeing it sorts
// first.
func WithInitialTxn(sessions []Session) History {
	minTID := int64(0)
	first := true
	keys := make(map[int64]struct{})

	for _, s := range sessions {
		for _, t := range s.Transactions {
			if first || t.TID < minTID {
				minTID, first = t.TID, false
			}
			for _, ev := range t.Events {
				if ev.Kind == Read {
					keys[ev.Key] = struct{}{}
				}
			}
		}
	}

	initTID := minTID - 1
	if first {
		initTID = 0
	}

	sortedKeys := make([]int64, 0, len(keys))
	for k := range keys {
		sortedKeys = append(sortedKeys, k)
	}
	sort.Slice(sortedKeys, func(i, j int) bool { return sortedKeys[i] < sortedKeys[j] })

	events := make([]Event, 0, len(sortedKeys))
	for _, k := range sortedKeys {
		events = append(events, Event{Key: k, Value: 0, Kind: Write})
	}

	initSession := Session{
		SID: initTID,
		Transactions: []Transaction{
			{TID: initTID, SID: initTID, Events: events},
		},
	}

	return History{
		Sessions:   append([]Session{initSession}, sessions...),
		InitialTID: initTID,
	}
}

// Validate checks the invariants the Polygraph Builder assumes:
//   - every event's transaction belongs to exactly one session (trivially
//     true by construction, checked for TID uniqueness here);
//   - no two distinct transactions write the same (key, value) pair —
//     uniqueness of (k, v) across writers is assumed by §4.2 step 2,
//     and its violation is explicitly called out as MalformedHistory.
//
// Validate does not check that every Read has a writer; that is a
// property the Polygraph Builder discovers while building WR edges
// (it needs the same writer index PB builds anyway), and is reported
// there as ErrMalformedHistory too.
func Validate(h History) error {
	seenTID := make(map[int64]bool)
	writerOf := make(map[[2]int64]int64) // (key, value) -> writer TID

	for _, s := range h.Sessions {
		for _, t := range s.Transactions {
			if seenTID[t.TID] {
				return fmt.Errorf("%w: duplicate transaction id %d", ErrMalformedHistory, t.TID)
			}
			seenTID[t.TID] = true

			for _, ev := range t.Events {
				if ev.Kind != Write {
					continue
				}
				kv := [2]int64{ev.Key, ev.Value}
				if other, ok := writerOf[kv]; ok && other != t.TID {
					return fmt.Errorf("%w: key %d value %d written by both txn %d and txn %d",
						ErrMalformedHistory, ev.Key, ev.Value, other, t.TID)
				}
				writerOf[kv] = t.TID
			}
		}
	}
	return nil
}
