package polygraph

import (
	"fmt"
	"sort"

	"github.com/polysi-go/polysi/core"
	"github.com/polysi-go/polysi/history"
)

// Build derives the known graph and constraint set from h.
//
// Steps (spec.md §4.2):
//  1. SO edges — consecutive transactions within a session.
//  2. WR edges — each Read(k, v) is linked to the unique writer of
//     (k, v); a read with no writer, or two writers of the same
//     (k, v), is ErrMalformedHistory. A read of the reader's own
//     write adds no edge.
//  3. WW candidate enumeration — every unordered pair of writers of a
//     common key gets a Constraint.
//  4. RW inference — for each WR(k): T→U and other writer c of k, the
//     induced RW(k): U→c is attached to the bundle where c is
//     ordered after T.
//  5. De-duplication — one Constraint per unordered writer pair,
//     covering every common key.
//
// Complexity: near-linear in events, plus Σ_k C(writers_k, 2) ×
// avg_readers_k (spec.md §4.2).
func Build(h history.History) (*core.Graph, []*Constraint, []WRCP, error) {
	g := core.NewGraph()

	for _, s := range h.Sessions {
		for i := 1; i < len(s.Transactions); i++ {
			prev, cur := s.Transactions[i-1], s.Transactions[i]
			if err := g.AddEdge(prev.TID, cur.TID, core.SO); err != nil {
				return nil, nil, nil, err
			}
		}
		for _, t := range s.Transactions {
			g.AddVertex(t.TID)
		}
	}

	writerOfValue, writersOfKey, err := indexWriters(h)
	if err != nil {
		return nil, nil, nil, err
	}

	// wrFrom[(reader, key)] = writer, the last writer each reader read
	// a key from. Step 4 below does not consult it: it re-scans every
	// read event, so two reads of one key by one reader both count.
	type readerKey struct{ reader, key int64 }
	wrFrom := make(map[readerKey]int64)

	for _, t := range h.Transactions() {
		for _, ev := range t.Events {
			if ev.Kind != history.Read {
				continue
			}
			writer, ok := writerOfValue[kv{ev.Key, ev.Value}]
			if !ok {
				return nil, nil, nil, fmt.Errorf(
					"%w: no writer for read of key %d value %d in txn %d",
					history.ErrMalformedHistory, ev.Key, ev.Value, t.TID)
			}
			// A read of the transaction's own write orders it against no
			// other transaction, so it adds no WR edge (a self-loop would
			// read as a cycle).
			if writer != t.TID {
				if err := g.AddEdge(writer, t.TID, core.WR, core.Keys{ev.Key}); err != nil {
					return nil, nil, nil, err
				}
			}
			wrFrom[readerKey{t.TID, ev.Key}] = writer
		}
	}

	acc := newPairAccumulator()

	// Step 3: WW candidate enumeration.
	for key, writers := range writersOfKey {
		sorted := sortedInt64s(writers)
		for i := 0; i < len(sorted); i++ {
			for j := i + 1; j < len(sorted); j++ {
				p, q := sorted[i], sorted[j] // p < q
				acc.add(p, q, BundleEdge{From: p, To: q, Kind: core.WW, Keys: core.Keys{key}})
			}
		}
	}

	// Step 4: RW inference. For each WR(k): T→U, and each other
	// writer c of k (c != T, c != U), attach RW(k): U→c to the bundle
	// where c is ordered after T.
	for _, t := range h.Transactions() {
		for _, ev := range t.Events {
			if ev.Kind != history.Read {
				continue
			}
			writerT := writerOfValue[kv{ev.Key, ev.Value}]
			reader := t.TID
			for c := range writersOfKey[ev.Key] {
				if c == writerT || c == reader {
					continue
				}
				acc.add(writerT, c, BundleEdge{From: reader, To: c, Kind: core.RW, Keys: core.Keys{ev.Key}})
			}
		}
	}

	constraints := acc.constraints()

	wrcps := buildWRCPs(writerOfValue, h)

	return g, constraints, wrcps, nil
}

type kv struct{ key, value int64 }

// indexWriters builds (key,value)->writer and key->{writers} indexes,
// failing with MalformedHistory if two distinct transactions write
// the same (key, value) pair.
func indexWriters(h history.History) (map[kv]int64, map[int64]map[int64]struct{}, error) {
	writerOfValue := make(map[kv]int64)
	writersOfKey := make(map[int64]map[int64]struct{})

	for _, t := range h.Transactions() {
		for _, ev := range t.Events {
			if ev.Kind != history.Write {
				continue
			}
			k := kv{ev.Key, ev.Value}
			if other, ok := writerOfValue[k]; ok && other != t.TID {
				return nil, nil, fmt.Errorf(
					"%w: key %d value %d written by both txn %d and txn %d",
					history.ErrMalformedHistory, ev.Key, ev.Value, other, t.TID)
			}
			writerOfValue[k] = t.TID

			if writersOfKey[ev.Key] == nil {
				writersOfKey[ev.Key] = make(map[int64]struct{})
			}
			writersOfKey[ev.Key][t.TID] = struct{}{}
		}
	}
	return writerOfValue, writersOfKey, nil
}

// buildWRCPs derives, per (reader, key), the set of candidate writers
// whose value the reader's Read(k, v) event could have come from. The
// history.ErrMalformedHistory invariant enforced by indexWriters
// guarantees this set has exactly one member by construction (see
// WRCP's doc comment), but the computation is kept general.
func buildWRCPs(writerOfValue map[kv]int64, h history.History) []WRCP {
	type readerKeyKey struct{ reader, key int64 }
	seen := make(map[readerKeyKey]bool)
	var out []WRCP

	for _, t := range h.Transactions() {
		for _, ev := range t.Events {
			if ev.Kind != history.Read {
				continue
			}
			rk := readerKeyKey{t.TID, ev.Key}
			if seen[rk] {
				continue
			}
			seen[rk] = true
			if w, ok := writerOfValue[kv{ev.Key, ev.Value}]; ok {
				out = append(out, WRCP{Reader: t.TID, Key: ev.Key, Writers: []int64{w}})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Reader != out[j].Reader {
			return out[i].Reader < out[j].Reader
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func sortedInt64s(s map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
