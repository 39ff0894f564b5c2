package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/polysi-go/polysi/config"
	"github.com/polysi-go/polysi/history"
	"github.com/polysi-go/polysi/internal/obslog"
	"github.com/polysi-go/polysi/polygraph"
	"github.com/polysi-go/polysi/prune"
	"github.com/polysi-go/polysi/sat"
)

// Engine is the checker: Polygraph Builder, Deterministic Pruner, and
// SMT Core wired together behind one Check call. Construct with New
// and reuse across histories; an Engine carries no state that Check
// mutates.
type Engine struct {
	cfg    config.Config
	logger *slog.Logger
}

// New builds an Engine for cfg. A nil logger is replaced with
// internal/obslog's discarding logger so callers never need a nil
// check.
func New(cfg config.Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = obslog.Noop()
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Check runs a History through the Polygraph Builder, (optionally) the
// Deterministic Pruner, and the SMT Core, and reports whether it is
// consistent under e's configured isolation level.
//
// Returns (Verdict, nil) for both acceptance and rejection — a known
// cycle is a verdict, not an error (spec.md §7). A non-nil error means
// no verdict was reached at all: ErrMalformedHistory (h violates an
// input invariant), ErrTimeout (ctx or a budget expired first), or
// ErrInternalInvariant / ErrSolverBackendUnavailable (a bug, or a
// backend this build does not implement).
func (e *Engine) Check(ctx context.Context, h history.History) (Verdict, error) {
	if e.cfg.BudgetWallMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(e.cfg.BudgetWallMS)*time.Millisecond)
		defer cancel()
	}

	if err := history.Validate(h); err != nil {
		e.logger.DebugContext(ctx, "history rejected validation", "error", err)
		return Verdict{}, err
	}

	g, constraints, wrcps, err := polygraph.Build(h)
	if err != nil {
		e.logger.DebugContext(ctx, "polygraph build rejected history", "error", err)
		return Verdict{}, err
	}
	e.logger.DebugContext(ctx, "polygraph built",
		"transactions", len(g.Vertices()), "constraints", len(constraints))

	if e.cfg.Pruning == config.PruningOn {
		res, err := prune.Run(g, constraints, e.cfg.Isolation)
		if err != nil {
			return Verdict{}, fmt.Errorf("%w: %v", ErrInternalInvariant, err)
		}
		e.logger.DebugContext(ctx, "deterministic pruner converged",
			"changed", res.Changed, "reject", res.Reject)
		if res.Reject {
			return Verdict{
				Accepted:         false,
				Cycle:            pruneCycleWitness(res.Cycle),
				TotalConstraints: len(constraints),
			}, nil
		}
	} else {
		// With pruning off, a cycle already in the known graph is still
		// a reject verdict: Run over no constraints only checks H.
		res, err := prune.Run(g, nil, e.cfg.Isolation)
		if err != nil {
			return Verdict{}, fmt.Errorf("%w: %v", ErrInternalInvariant, err)
		}
		if res.Reject {
			return Verdict{
				Accepted:         false,
				Cycle:            pruneCycleWitness(res.Cycle),
				TotalConstraints: len(constraints),
			}, nil
		}
	}

	prunedCount := 0
	for _, c := range constraints {
		if c.Pruned {
			prunedCount++
		}
	}

	select {
	case <-ctx.Done():
		return Verdict{}, ErrTimeout
	default:
	}

	if e.cfg.SolverBackend != config.SATTheory {
		return Verdict{}, ErrSolverBackendUnavailable
	}

	enc := sat.Encode(constraints, wrcps)
	e.logger.DebugContext(ctx, "smt core encoding built", "vars", enc.NumVars)

	solver, err := sat.New(g, enc, e.cfg.Isolation, e.cfg.BudgetConflicts)
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrInternalInvariant, err)
	}

	outcome, err := solver.Solve(ctx)
	if err != nil {
		switch err {
		case sat.ErrBudgetExceeded:
			return Verdict{}, ErrTimeout
		case sat.ErrInternalInvariant:
			return Verdict{}, fmt.Errorf("%w: %v", ErrInternalInvariant, err)
		default:
			return Verdict{}, ErrTimeout
		}
	}

	if !outcome.SAT {
		return Verdict{
			Accepted:          false,
			Cycle:             conflictWitness(outcome.Conflict),
			PrunedConstraints: prunedCount,
			TotalConstraints:  len(constraints),
		}, nil
	}

	e.logger.DebugContext(ctx, "history accepted", "isolation", e.cfg.Isolation.String())
	return Verdict{
		Accepted:          true,
		PrunedConstraints: prunedCount,
		TotalConstraints:  len(constraints),
	}, nil
}

func pruneCycleWitness(c *prune.Cycle) *CycleWitness {
	if c == nil {
		return nil
	}
	edges := make([]CycleEdgeLabel, len(c.Edges))
	for i, e := range c.Edges {
		edges[i] = CycleEdgeLabel{Kind: e.Kind, Keys: e.Keys}
	}
	return &CycleWitness{TIDs: c.TIDs, Edges: edges}
}

func conflictWitness(c sat.Conflict) *CycleWitness {
	edges := make([]CycleEdgeLabel, len(c.Edges))
	for i, e := range c.Edges {
		edges[i] = CycleEdgeLabel{Kind: e.Kind, Keys: e.Keys}
	}
	return &CycleWitness{TIDs: c.TIDs, Edges: edges}
}
