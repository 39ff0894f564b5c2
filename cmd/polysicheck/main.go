// Command polysicheck reads a recorded transaction history as JSON and
// reports whether it is consistent under the configured isolation
// level, using the Polygraph Builder, Deterministic Pruner, and SMT
// Core (package engine).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/polysi-go/polysi/config"
	"github.com/polysi-go/polysi/engine"
	"github.com/polysi-go/polysi/history"
	"github.com/polysi-go/polysi/internal/obslog"
)

// errRejected signals a well-formed REJECT verdict to main, which maps
// it to a non-zero exit status without printing cobra's "Error:"
// prefix — rejecting a history is a correct answer, not a CLI failure.
var errRejected = errors.New("history rejected")

var (
	flagIsolation       string
	flagPruning         bool
	flagSolverBackend   string
	flagBudgetConflicts int
	flagBudgetWallMS    int
	flagEmitCycleDOT    bool
	flagDebug           bool

	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "polysicheck [history.json]",
	Short: "Check a recorded transaction history for serializability or snapshot isolation",
	Long: `polysicheck decides whether a recorded database history could have
arisen under serializable, or snapshot, isolation by building its
dependency polygraph, pruning what the known graph already forces,
and deciding the rest with an incremental-cycle-detection SAT search.

Reads a JSON-encoded history from the given file, or from stdin when
no file is given or the file is "-".`,
	Args:              cobra.MaximumNArgs(1),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { setupLogger(); return nil },
	RunE:              runCheck,
}

func init() {
	rootCmd.Flags().StringVar(&flagIsolation, "isolation", "serializability",
		`isolation level to check against: "serializability" or "snapshot-isolation"`)
	rootCmd.Flags().BoolVar(&flagPruning, "pruning", true, "run the Deterministic Pruner before the SMT Core")
	rootCmd.Flags().StringVar(&flagSolverBackend, "solver-backend", "sat",
		`SMT Core backend: "sat" (the only one this build implements)`)
	rootCmd.Flags().IntVar(&flagBudgetConflicts, "budget-conflicts", 0, "abort the search after this many conflicts (0 = unlimited)")
	rootCmd.Flags().IntVar(&flagBudgetWallMS, "budget-wall-ms", 0, "abort after this many milliseconds (0 = unlimited)")
	rootCmd.Flags().BoolVar(&flagEmitCycleDOT, "emit-cycle-dot", false, "on reject, also print the cycle witness as a Graphviz dot graph")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
}

func setupLogger() {
	if flagDebug {
		logger = obslog.New(obslog.Options{Verbose: true})
	} else {
		logger = obslog.New(obslog.Options{})
	}
}

func parseConfig() (config.Config, error) {
	cfg := config.Default()

	switch strings.ToLower(flagIsolation) {
	case "serializability", "serializable":
		cfg.Isolation = config.Serializability
	case "snapshot-isolation", "snapshot", "si":
		cfg.Isolation = config.SnapshotIsolation
	default:
		return cfg, fmt.Errorf("unknown --isolation %q", flagIsolation)
	}

	if flagPruning {
		cfg.Pruning = config.PruningOn
	} else {
		cfg.Pruning = config.PruningOff
	}

	switch strings.ToLower(flagSolverBackend) {
	case "sat", "":
		cfg.SolverBackend = config.SATTheory
	case "external-unused", "monosat", "z3":
		cfg.SolverBackend = config.ExternalSMTUnused
	default:
		return cfg, fmt.Errorf("unknown --solver-backend %q", flagSolverBackend)
	}

	cfg.BudgetConflicts = flagBudgetConflicts
	cfg.BudgetWallMS = flagBudgetWallMS
	cfg.EmitCycleDOT = flagEmitCycleDOT
	return cfg, nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := parseConfig()
	if err != nil {
		return err
	}

	var r io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening history file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var h history.History
	if err := json.NewDecoder(r).Decode(&h); err != nil {
		return fmt.Errorf("decoding history JSON: %w", err)
	}

	e := engine.New(cfg, logger)
	verdict, err := e.Check(cmd.Context(), h)
	if err != nil {
		return err
	}

	if verdict.Accepted {
		fmt.Fprintf(cmd.OutOrStdout(), "ACCEPT under %s (%d/%d constraints pruned)\n",
			cfg.Isolation, verdict.PrunedConstraints, verdict.TotalConstraints)
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "REJECT under %s: cycle %s\n", cfg.Isolation, formatCycle(verdict.Cycle))
	if cfg.EmitCycleDOT {
		fmt.Fprintln(cmd.OutOrStdout(), cycleDOT(verdict.Cycle))
	}
	return errRejected
}

func formatCycle(c *engine.CycleWitness) string {
	if c == nil {
		return "<no witness>"
	}
	parts := make([]string, len(c.TIDs))
	for i, t := range c.TIDs {
		parts[i] = fmt.Sprintf("%d", t)
	}
	return strings.Join(parts, " -> ")
}

// cycleDOT renders a cycle witness as a minimal Graphviz digraph; the
// pack carries no graph-visualization library, so this is hand-rolled
// text/template-free formatting (see DESIGN.md).
func cycleDOT(c *engine.CycleWitness) string {
	if c == nil {
		return "digraph cycle {}"
	}
	var b strings.Builder
	b.WriteString("digraph cycle {\n")
	for i := 0; i+1 < len(c.TIDs); i++ {
		label := c.Edges[i].Kind.String()
		fmt.Fprintf(&b, "  %d -> %d [label=%q];\n", c.TIDs[i], c.TIDs[i+1], label)
	}
	b.WriteString("}")
	return b.String()
}

func main() {
	ctx := context.Background()
	rootCmd.SetContext(ctx)
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errRejected) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
