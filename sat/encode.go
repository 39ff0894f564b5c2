package sat

import (
	"github.com/polysi-go/polysi/core"
	"github.com/polysi-go/polysi/polygraph"
)

// ConstraintVars records the two variables and edge sets a single
// surviving constraint contributes to the encoding.
type ConstraintVars struct {
	ConstraintID int
	A, B         Var
	EdgesA       []EdgeAssertion
	EdgesB       []EdgeAssertion
}

// WRCPVar is the unit-clause variable Encode allocates for one WRCP
// (spec.md §4.4.3 step 2, "write-read constraint propagation"). It
// owns no bundle edges: the WR edge it concerns is already an
// unconditional member of the known graph (seedEdges), so asserting
// it true propagates no new edge into the theory. The variable and
// its unit clause exist so the encoding genuinely carries and checks
// this fact rather than silently assuming it — see polygraph.WRCP's
// doc comment for why Writers (and so this constraint) is degenerate
// in this build.
type WRCPVar struct {
	Reader, Key int64
	V           Var
}

// Encoding is the result of Encode: the clause set plus enough
// bookkeeping for the solver to map a variable back to the edges it
// would assert and the constraint it belongs to.
type Encoding struct {
	NumVars     int
	Clauses     []Clause
	Constraints []ConstraintVars
	WRCPs       []WRCPVar

	// VarOwner maps a Var back to the ConstraintVars slot that defined
	// it, for the decision heuristic and model extraction. -1 for a
	// WRCP variable, which owns no bundle.
	VarOwner []int // index into Constraints, or -1
	// VarIsA is true if the Var is that constraint's "a" (bundle A).
	// Meaningless (false) for a WRCP variable.
	VarIsA []bool
}

// Encode allocates two variables per surviving (unpruned) constraint
// and the exactly-one clause pair over them (spec.md §4.4.1), plus one
// unit-clause variable per WRCP (spec.md §4.4.3 step 2). Pruned
// constraints are skipped entirely — their bundle was already
// committed directly into the known graph by the Deterministic
// Pruner and needs no variable.
//
// Every wrcp's Writers has exactly one candidate by this package's
// input invariant (see polygraph.WRCP), so there is never a rival
// writer to force false; Encode still allocates a variable and a unit
// clause {Pos(v)} per WRCP so that invariant is actually wired through
// the encoding and checked by the solver, rather than the WRCP value
// being silently dropped on the floor.
func Encode(constraints []*polygraph.Constraint, wrcps []polygraph.WRCP) Encoding {
	var enc Encoding

	for _, c := range constraints {
		if c.Pruned {
			continue
		}

		a := Var(enc.NumVars)
		b := Var(enc.NumVars + 1)
		enc.NumVars += 2

		enc.VarOwner = append(enc.VarOwner, len(enc.Constraints), len(enc.Constraints))
		enc.VarIsA = append(enc.VarIsA, true, false)

		enc.Clauses = append(enc.Clauses,
			Clause{Pos(a), Pos(b)},
			Clause{Neg(a), Neg(b)},
		)

		enc.Constraints = append(enc.Constraints, ConstraintVars{
			ConstraintID: c.ID,
			A:            a,
			B:            b,
			EdgesA:       bundleEdges(c.A),
			EdgesB:       bundleEdges(c.B),
		})
	}

	for _, w := range wrcps {
		v := Var(enc.NumVars)
		enc.NumVars++

		enc.VarOwner = append(enc.VarOwner, -1)
		enc.VarIsA = append(enc.VarIsA, false)
		enc.Clauses = append(enc.Clauses, Clause{Pos(v)})
		enc.WRCPs = append(enc.WRCPs, WRCPVar{Reader: w.Reader, Key: w.Key, V: v})
	}

	return enc
}

func bundleEdges(bundle []polygraph.BundleEdge) []EdgeAssertion {
	out := make([]EdgeAssertion, 0, len(bundle))
	for _, e := range bundle {
		out = append(out, EdgeAssertion{From: e.From, To: e.To, Kind: e.Kind, Keys: e.Keys})
	}
	return out
}

// seedEdges lists every unconditional (reason-free) edge the ICD
// should start with: the known graph as it stood after PB/DP, i.e.
// every edge already present in g.
func seedEdges(g *core.Graph) []EdgeAssertion {
	edges := g.Edges()
	out := make([]EdgeAssertion, 0, len(edges))
	for _, e := range edges {
		out = append(out, EdgeAssertion{From: e.From, To: e.To, Kind: e.Kind, Keys: e.Keys})
	}
	return out
}
