package sat

import (
	"errors"

	"github.com/polysi-go/polysi/core"
)

// Sentinel errors raised by the SMT Core. Cycle rejection is not one
// of these: a found cycle is a verdict, surfaced as a Conflict result,
// not an error (spec.md §7 "DP and SC propagate rejects via the
// verdict channel, not as errors").
var (
	// ErrInternalInvariant indicates the cycle detector's own
	// bookkeeping contradicted itself — a bug, never a consequence of
	// input data.
	ErrInternalInvariant = errors.New("sat: internal invariant violated")

	// ErrBudgetExceeded is returned when the conflict budget given to
	// New runs out before the search concludes. A wall-clock limit
	// reaches Solve as context cancellation and is returned as ctx.Err().
	ErrBudgetExceeded = errors.New("sat: budget exceeded")
)

// Var is a boolean decision variable. Every surviving polygraph
// constraint contributes exactly two: Encode allocates them as a
// contiguous (aᵢ, bᵢ) pair per constraint (spec.md §4.4.1).
type Var int

// Lit is a literal: a Var together with its polarity.
type Lit struct {
	V    Var
	Sign bool // true = positive occurrence, false = negated
}

// Pos and Neg build the two literals over a variable.
func Pos(v Var) Lit { return Lit{V: v, Sign: true} }
func Neg(v Var) Lit { return Lit{V: v, Sign: false} }

// Satisfied reports whether lit holds under value (the variable's
// current truth assignment).
func (l Lit) Satisfied(value bool) bool { return l.Sign == value }

// Clause is a disjunction of literals; any one literal being true
// satisfies it.
type Clause []Lit

// lbool is a three-valued truth assignment: unassigned, false, true.
type lbool int8

const (
	lUndef lbool = iota
	lFalse
	lTrue
)

func litValue(assign []lbool, l Lit) lbool {
	v := assign[l.V]
	if v == lUndef {
		return lUndef
	}
	if l.Sign {
		return v
	}
	if v == lTrue {
		return lFalse
	}
	return lTrue
}

// EdgeAssertion is one edge a variable's bundle would insert into the
// ICD if that variable is assigned true (spec.md §4.4.1's "variable aᵢ
// enables bundle A's edges").
type EdgeAssertion struct {
	From, To int64
	Kind     core.Kind
	Keys     core.Keys
}

// Model is a satisfying assignment: which of each constraint's two
// variables (A or B) was chosen.
type Model struct {
	// ChosenA[constraintID] is true if that constraint's bundle A was
	// committed, false if bundle B was.
	ChosenA map[int]bool
}

// CycleEdge labels one step of a returned cycle (spec.md §4.4.5).
type CycleEdge struct {
	From, To int64
	Kind     core.Kind
	Keys     core.Keys
}

// Conflict is the outcome of a search that never reached a satisfying
// assignment: the last learned cycle, in traversal order, plus its
// edge labels.
type Conflict struct {
	// TIDs is the cycle as a closed walk: TIDs[0] == TIDs[len-1].
	TIDs  []int64
	Edges []CycleEdge
}

// Outcome is Solve's result: exactly one of Model or Conflict is set.
type Outcome struct {
	SAT      bool
	Model    Model
	Conflict Conflict
}
