package sat

import (
	"context"

	"github.com/polysi-go/polysi/config"
	"github.com/polysi-go/polysi/core"
)

// Solver is one run of the CDCL loop over an Encoding, backed by an
// ICD theory. A Solver is used once: construct with New, call Solve,
// discard (spec.md §9 "Global state: None; the engine is a single
// owned object with explicit lifecycle {construct, run, drop}").
type Solver struct {
	enc       Encoding
	icd       *ICD
	isolation config.Isolation

	assign []lbool
	level  []int
	reason []Clause

	trail    []Lit
	trailLim []int

	// scopeHandles[0] holds ICD edges inserted at decision level 0
	// (root propagations); scopeHandles[d] for d>=1 holds edges
	// inserted while at decision level d. Backtracking pops from the
	// end, retracting in reverse insertion order (spec.md §5 "strict
	// LIFO with the CDCL trail").
	scopeHandles [][]Handle

	clauses  []Clause
	activity []float64

	conflicts       int
	budgetConflicts int

	lastConflictCycleFrom, lastConflictCycleTo int64
	lastConflictCycleKind                      core.Kind
	lastConflictCycleKeys                      core.Keys
}

// New builds a Solver for enc over the known graph g (already seeded
// by PB and pruned by DP), targeting isolation, with an optional
// conflict budget (0 = unlimited). New fails with ErrInternalInvariant
// if g is already cyclic — the Deterministic Pruner is responsible for
// catching that before SC ever runs, so reaching here means a bug
// upstream, not a rejectable input (spec.md §7 "InternalInvariant").
func New(g *core.Graph, enc Encoding, isolation config.Isolation, budgetConflicts int) (*Solver, error) {
	s := &Solver{
		enc:             enc,
		isolation:       isolation,
		assign:          make([]lbool, enc.NumVars),
		level:           make([]int, enc.NumVars),
		reason:          make([]Clause, enc.NumVars),
		activity:        make([]float64, enc.NumVars),
		clauses:         append([]Clause(nil), enc.Clauses...),
		budgetConflicts: budgetConflicts,
		scopeHandles:    [][]Handle{nil},
	}
	for i := range s.level {
		s.level[i] = -1
	}

	s.icd = NewICD(g.Vertices(), isolation)
	for _, e := range seedEdges(g) {
		if !s.icd.SeedEdge(e) {
			return nil, ErrInternalInvariant
		}
	}

	return s, nil
}

func (s *Solver) currentLevel() int { return len(s.trailLim) }

// Solve runs the CDCL loop to completion, a budget exhaustion, or
// context cancellation (spec.md §5 "cancellation is cooperative...
// checks a budget at restart boundaries").
func (s *Solver) Solve(ctx context.Context) (Outcome, error) {
	restarts := newLuby()
	const restartUnit = 32
	conflictsSinceRestart := 0
	restartBound := restarts.next() * restartUnit

	for {
		if conflictClause := s.propagate(); conflictClause != nil {
			conflictsSinceRestart++
			out, done, err := s.handleConflict(conflictClause)
			if done {
				return out, err
			}
			continue
		}

		if v, ok := s.pickUnassigned(); ok {
			if conflictsSinceRestart >= restartBound {
				s.backtrackTo(0)
				conflictsSinceRestart = 0
				restartBound = restarts.next() * restartUnit
				continue
			}

			select {
			case <-ctx.Done():
				return Outcome{}, ctx.Err()
			default:
			}

			s.newDecisionLevel()
			// A decision can itself trigger a theory conflict (the ICD
			// discovers a cycle while asserting the bundle's edges) even
			// though propagate() found none beforehand — that conflict
			// must go through the same analyze/backtrack path as a
			// propagation conflict, not be treated as a solver error.
			if conflictClause := s.assignLit(Pos(v), nil); conflictClause != nil {
				conflictsSinceRestart++
				out, done, err := s.handleConflict(conflictClause)
				if done {
					return out, err
				}
			}
			continue
		}

		return Outcome{SAT: true, Model: s.extractModel()}, nil
	}
}

// handleConflict runs conflict analysis for conflictClause: bumps the
// conflict budget and activity bookkeeping, and either backtracks and
// learns (done=false, caller continues the loop) or reports the final
// UNSAT outcome (done=true).
func (s *Solver) handleConflict(conflictClause Clause) (out Outcome, done bool, err error) {
	s.conflicts++

	if s.budgetConflicts > 0 && s.conflicts > s.budgetConflicts {
		return Outcome{}, true, ErrBudgetExceeded
	}

	backtrackLevel, ok := s.analyze(conflictClause)
	if !ok {
		return Outcome{SAT: false, Conflict: s.buildConflict()}, true, nil
	}
	s.bumpActivity(conflictClause)
	s.backtrackTo(backtrackLevel)
	s.clauses = append(s.clauses, conflictClause)
	return Outcome{}, false, nil
}

// propagate runs unit propagation to a fixpoint: boolean clauses first
// (any clause with all-but-one literal false forces the last one),
// folding in the theory assertion that accompanies every variable
// becoming true. Returns the first conflict clause encountered, or nil
// once no more propagation is possible.
func (s *Solver) propagate() Clause {
	for {
		progressed := false

		for _, cl := range s.clauses {
			unassignedCount, lastUnassigned := 0, Lit{}
			satisfied := false
			for _, lit := range cl {
				switch litValue(s.assign, lit) {
				case lTrue:
					satisfied = true
				case lUndef:
					unassignedCount++
					lastUnassigned = lit
				}
			}
			if satisfied {
				continue
			}
			if unassignedCount == 0 {
				return cl
			}
			if unassignedCount == 1 {
				if conflict := s.assignLit(lastUnassigned, cl); conflict != nil {
					return conflict
				}
				progressed = true
			}
		}

		if !progressed {
			return nil
		}
	}
}

// assignLit commits lit at the current decision level, with antecedent
// (nil for a decision), and — if lit is a positive occurrence of a
// bundle variable — asserts that bundle's edges (plus induced RW
// edges) into the theory. Returns the theory's conflict clause, or nil
// on success.
func (s *Solver) assignLit(lit Lit, antecedent Clause) Clause {
	if lit.Sign {
		s.assign[lit.V] = lTrue
	} else {
		s.assign[lit.V] = lFalse
	}
	s.level[lit.V] = s.currentLevel()
	s.reason[lit.V] = antecedent
	s.trail = append(s.trail, lit)

	if !lit.Sign {
		return nil
	}

	owner := s.enc.VarOwner[lit.V]
	if owner < 0 {
		// A WRCP unit variable: true by construction, owns no bundle
		// edges to assert (its WR edge is already unconditional in the
		// known graph — see WRCPVar's doc comment).
		return nil
	}

	cv := s.enc.Constraints[owner]
	edges := cv.EdgesA
	if !s.enc.VarIsA[lit.V] {
		edges = cv.EdgesB
	}

	scope := s.currentLevel()
	for _, e := range edges {
		h, ok, conflict := s.icd.AddEdge(e, []Var{lit.V})
		if !ok {
			s.recordConflictCycle(e)
			return conflict
		}
		s.appendScope(scope, h)

		if e.Kind == core.WW {
			for _, key := range e.Keys {
				induced, ok, conflict := s.icd.InduceFromWW(e.From, e.To, key, lit.V)
				for _, ih := range induced {
					s.appendScope(scope, ih)
				}
				if !ok {
					return conflict
				}
			}
		}
	}
	return nil
}

func (s *Solver) recordConflictCycle(e EdgeAssertion) {
	s.lastConflictCycleFrom, s.lastConflictCycleTo = e.From, e.To
	s.lastConflictCycleKind, s.lastConflictCycleKeys = e.Kind, e.Keys
}

func (s *Solver) appendScope(level int, h Handle) {
	for len(s.scopeHandles) <= level {
		s.scopeHandles = append(s.scopeHandles, nil)
	}
	s.scopeHandles[level] = append(s.scopeHandles[level], h)
}

func (s *Solver) newDecisionLevel() {
	s.trailLim = append(s.trailLim, len(s.trail))
	s.scopeHandles = append(s.scopeHandles, nil)
}

// backtrackTo undoes every decision level above level: ICD edges are
// retracted in reverse insertion order (I4, left-inverse), then
// variable assignments above the level are cleared.
func (s *Solver) backtrackTo(level int) {
	for l := len(s.scopeHandles) - 1; l > level; l-- {
		handles := s.scopeHandles[l]
		for i := len(handles) - 1; i >= 0; i-- {
			s.icd.RemoveInstance(handles[i])
		}
	}
	s.scopeHandles = s.scopeHandles[:level+1]

	if level >= len(s.trailLim) {
		return
	}
	cut := s.trailLim[level]
	for i := len(s.trail) - 1; i >= cut; i-- {
		v := s.trail[i].V
		s.assign[v] = lUndef
		s.level[v] = -1
		s.reason[v] = nil
	}
	s.trail = s.trail[:cut]
	s.trailLim = s.trailLim[:level]
}

// analyze picks the backtrack level for conflictClause: the second
// highest decision level among its literals' variables, or reports
// ok=false if the only level present is 0 (no level to backtrack to —
// the conflict is unconditional, hence UNSAT).
//
// This learns the theory/boolean conflict clause directly rather than
// resolving it to a single first-UIP literal; spec.md leaves the
// decision heuristic and clause form otherwise unconstrained, and a
// directly-learned clause is still a sound no-good (see DESIGN.md).
func (s *Solver) analyze(clause Clause) (backtrackLevel int, ok bool) {
	maxLevel, secondLevel := -1, -1
	for _, lit := range clause {
		lv := s.level[lit.V]
		if lv < 0 {
			continue
		}
		if lv > maxLevel {
			secondLevel = maxLevel
			maxLevel = lv
		} else if lv > secondLevel && lv < maxLevel {
			secondLevel = lv
		}
	}
	if maxLevel <= 0 {
		return 0, false
	}
	if secondLevel < 0 {
		secondLevel = 0
	}
	return secondLevel, true
}

func (s *Solver) bumpActivity(clause Clause) {
	for _, lit := range clause {
		s.activity[lit.V]++
	}
}

// pickUnassigned implements the decision heuristic of spec.md §4.4.3:
// fewest new induced edges (approximated here as the variable's own
// bundle size), VSIDS activity as tie-break.
func (s *Solver) pickUnassigned() (Var, bool) {
	best := Var(-1)
	bestCost := -1
	bestActivity := -1.0
	for v := 0; v < s.enc.NumVars; v++ {
		if s.assign[v] != lUndef {
			continue
		}
		cost := s.bundleCost(Var(v))
		if best < 0 || cost < bestCost || (cost == bestCost && s.activity[v] > bestActivity) {
			best, bestCost, bestActivity = Var(v), cost, s.activity[v]
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}

func (s *Solver) bundleCost(v Var) int {
	cv := s.enc.Constraints[s.enc.VarOwner[v]]
	if s.enc.VarIsA[v] {
		return len(cv.EdgesA)
	}
	return len(cv.EdgesB)
}

func (s *Solver) extractModel() Model {
	m := Model{ChosenA: make(map[int]bool, len(s.enc.Constraints))}
	for _, cv := range s.enc.Constraints {
		m.ChosenA[cv.ConstraintID] = s.assign[cv.A] == lTrue
	}
	return m
}

func (s *Solver) buildConflict() Conflict {
	tids, edges := s.icd.CycleFrom(s.lastConflictCycleFrom, s.lastConflictCycleTo, s.lastConflictCycleKind, s.lastConflictCycleKeys)
	return Conflict{TIDs: tids, Edges: edges}
}
