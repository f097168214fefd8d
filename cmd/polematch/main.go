package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/polematch/internal/audit"
	"github.com/polematch/internal/config"
	"github.com/polematch/internal/correlate"
	"github.com/polematch/internal/db"
	"github.com/polematch/internal/debug"
	"github.com/polematch/internal/engine"
	"github.com/polematch/internal/ingest"
	"github.com/polematch/internal/span"
	"github.com/polematch/internal/web"
)

var (
	rulesPath  string
	localDebug bool
)

func main() {
	// Load environment configuration
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	// Create root command
	rootCmd := &cobra.Command{
		Use:   "polematch",
		Short: "Pole cross-source correlation and span wire aggregation",
		Long:  `Correlates pole records from two field-data exports, merges their attributes and folds span wire annotations into per-owner height summaries`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			debug.Setup(os.Stderr, localDebug)
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&rulesPath, "rules", config.GetEnv(config.EnvPrefix+"RULES", ""), "YAML rules file merged over the built-in defaults")
	rootCmd.PersistentFlags().BoolVar(&localDebug, "debug", config.GetEnvBool(config.EnvPrefix+"DEBUG", false), "Enable debug logging")

	// Add subcommands
	rootCmd.AddCommand(createCorrelateCmd())
	rootCmd.AddCommand(createSpansCmd())
	rootCmd.AddCommand(createRulesCmd())
	rootCmd.AddCommand(createClassifyCmd())
	rootCmd.AddCommand(createServeCmd())
	rootCmd.AddCommand(createPingCmd())
	rootCmd.AddCommand(createDBCmd())
	rootCmd.AddCommand(createShowRunCmd())

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newEngine() (*engine.Engine, error) {
	rules, err := config.LoadRules(rulesPath)
	if err != nil {
		return nil, err
	}
	return engine.New(rules, localDebug)
}

// createCorrelateCmd creates the full-run command
func createCorrelateCmd() *cobra.Command {
	var aPath, bPath, connPath, outPath, runLabel string
	var store bool

	cmd := &cobra.Command{
		Use:   "correlate",
		Short: "Correlate two pole exports and reconcile matched poles",
		Long:  `Runs the match cascade (exact, normalized, partial, geographic), builds one canonical record per match and, with --connections, aggregates span wires between correlated poles`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runLabel == "" {
				runLabel = fmt.Sprintf("correlate-%d", time.Now().Unix())
			}

			eng, err := newEngine()
			if err != nil {
				return err
			}

			in := engine.Input{Label: runLabel}
			if in.A, err = ingest.Load(aPath); err != nil {
				return err
			}
			if in.B, err = ingest.Load(bPath); err != nil {
				return err
			}
			if connPath != "" {
				if in.Connections, err = ingest.Load(connPath); err != nil {
					return err
				}
			}

			rep, err := eng.Run(in)
			if err != nil {
				return err
			}

			if store {
				if err := recordRun(cmd.Context(), rep); err != nil {
					return err
				}
			}

			printSummary(cmd.ErrOrStderr(), rep)
			return writeJSON(outPath, cmd.OutOrStdout(), rep)
		},
	}

	cmd.Flags().StringVar(&aPath, "a", "", "Source A export, JSON or CSV (- for JSON on stdin)")
	cmd.Flags().StringVar(&bPath, "b", "", "Source B export, JSON or CSV")
	cmd.Flags().StringVar(&connPath, "connections", "", "Span connection JSON file")
	cmd.Flags().StringVar(&outPath, "out", "", "Write the report here instead of stdout")
	cmd.Flags().StringVar(&runLabel, "label", "", "Run label")
	cmd.Flags().BoolVar(&store, "store", false, "Record the run in the audit database")
	cmd.MarkFlagRequired("a")
	cmd.MarkFlagRequired("b")

	return cmd
}

// createSpansCmd creates the standalone span aggregation command
func createSpansCmd() *cobra.Command {
	var connPath, outPath string
	var poles []string
	var table bool

	cmd := &cobra.Command{
		Use:   "spans",
		Short: "Aggregate span wire annotations",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			conns, err := ingest.Load(connPath)
			if err != nil {
				return err
			}

			// No --poles flag means no endpoint filter
			var correlated []string
			if cmd.Flags().Changed("poles") {
				correlated = append([]string{}, poles...)
			}

			res, err := eng.AggregateSpans(conns, correlated)
			if err != nil {
				return err
			}

			if table {
				return printAggregates(cmd.OutOrStdout(), res.Aggregates)
			}
			return writeJSON(outPath, cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&connPath, "connections", "", "Span connection JSON file (- for stdin)")
	cmd.Flags().StringSliceVar(&poles, "poles", nil, "Only aggregate connections whose endpoints are in this list")
	cmd.Flags().StringVar(&outPath, "out", "", "Write the result here instead of stdout")
	cmd.Flags().BoolVar(&table, "table", false, "Print a display table instead of JSON")
	cmd.MarkFlagRequired("connections")

	return cmd
}

// createRulesCmd prints the effective rules
func createRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the effective rules (defaults, file and environment merged)",
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := config.LoadRules(rulesPath)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(rules)
		},
	}
}

// createClassifyCmd shows how a wire owner and type would be categorized
func createClassifyCmd() *cobra.Command {
	var owner, wireType string
	var stats bool

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a wire by owner and type using the configured keyword tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := config.LoadRules(rulesPath)
			if err != nil {
				return err
			}
			classifier := span.NewClassifier(rules.Classification, &rules.Symspell)
			if !stats {
				return writeJSON("", cmd.OutOrStdout(), classifier.Classify(owner, wireType))
			}
			return writeJSON("", cmd.OutOrStdout(), struct {
				span.Classification
				Dictionary span.ClassifierStats `json:"dictionary"`
			}{classifier.Classify(owner, wireType), classifier.Stats()})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Wire owner")
	cmd.Flags().StringVar(&wireType, "type", "", "Wire type")
	cmd.Flags().BoolVar(&stats, "stats", false, "Include fuzzy dictionary sizes")

	return cmd
}

// createServeCmd starts the HTTP API
func createServeCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the correlation API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}

			cfg := web.ConfigFromEnv()
			cfg.Debug = cfg.Debug || localDebug
			if watch && rulesPath != "" {
				cfg.RulesPath = rulesPath
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return web.Run(ctx, cfg, eng)
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Reload the --rules file when it changes")

	return cmd
}

// createPingCmd creates a command to test database connectivity
func createPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Test database connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.NewConnection(cmd.Context(), "")
			if err != nil {
				return err
			}
			defer conn.Close()

			fmt.Println("Database connection successful!")

			var count int
			if err := conn.DB.QueryRowContext(cmd.Context(), "SELECT COUNT(*) FROM pole_match_run").Scan(&count); err != nil {
				slog.Warn("could not count runs", slog.Any("error", err))
			} else {
				fmt.Printf("Recorded runs: %d\n", count)
			}
			return nil
		},
	}
}

// createDBCmd creates database management commands
func createDBCmd() *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	dbCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the audit tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.NewConnection(cmd.Context(), "")
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := audit.NewTracker(conn.DB).EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Audit schema ready")
			return nil
		},
	})

	return dbCmd
}

// createShowRunCmd prints a recorded run
func createShowRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show-run [run-id]",
		Short: "Print a recorded run and its matches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id: %w", err)
			}

			conn, err := db.NewConnection(cmd.Context(), "")
			if err != nil {
				return err
			}
			defer conn.Close()

			run, err := audit.NewTracker(conn.DB).GetRun(cmd.Context(), localDebug, runID)
			if err != nil {
				return err
			}
			return writeJSON("", cmd.OutOrStdout(), run)
		},
	}
}

func recordRun(ctx context.Context, rep *engine.Report) error {
	conn, err := db.NewConnection(ctx, "")
	if err != nil {
		return err
	}
	defer conn.Close()

	tracker := audit.NewTracker(conn.DB)
	if err := tracker.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := tracker.RecordRun(ctx, localDebug, rep); err != nil {
		return err
	}
	slog.Info("run recorded", slog.String("run_id", rep.RunID.String()))
	return nil
}

func writeJSON(path string, stdout io.Writer, v any) error {
	w := stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSummary(w io.Writer, rep *engine.Report) {
	s := rep.Summary
	fmt.Fprintf(w, "Run %s (%s)\n", rep.RunID, rep.Label)
	fmt.Fprintf(w, "  Matched:     %d\n", s.Matched)
	for _, stage := range correlate.Stages {
		fmt.Fprintf(w, "    %-11s %d\n", string(stage)+":", s.ByStage[stage])
	}
	fmt.Fprintf(w, "  Unmatched A: %d\n", s.UnmatchedA)
	fmt.Fprintf(w, "  Unmatched B: %d\n", s.UnmatchedB)
	fmt.Fprintf(w, "  Ambiguous:   %d\n", s.Ambiguous)
	if rep.Spans != nil {
		fmt.Fprintf(w, "  Aggregates:  %d (%d annotations skipped)\n", s.Aggregates, s.SkippedAnnotations)
	}
	fmt.Fprintf(w, "  Completed in %s\n", rep.CompletedAt.Sub(rep.StartedAt).Round(time.Millisecond))
}

func printAggregates(w io.Writer, aggs []span.SpanWireAggregate) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CONNECTION\tCATEGORY\tOWNER\tEXISTING\tPROPOSED\tNEW")
	for _, a := range aggs {
		row := span.Display(a)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ConnectionID, row.Category, strings.ReplaceAll(row.Owner, "\t", " "), row.Existing, row.Proposed, row.New)
	}
	return tw.Flush()
}
