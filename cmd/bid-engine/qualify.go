// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bid-engine/internal/decide"
	"github.com/pdiddy/bid-engine/internal/evaluate"
	"github.com/pdiddy/bid-engine/internal/orchestrator"
	"github.com/pdiddy/bid-engine/internal/plan"
	"github.com/pdiddy/bid-engine/internal/section"
	"github.com/pdiddy/bid-engine/internal/store"
	"github.com/pdiddy/bid-engine/pkg/types"
)

var qualifyCmd = &cobra.Command{
	Use:   "qualify <opportunity>",
	Short: "Run the bid/no-bid pipeline for an ingested opportunity",
	Long: `Qualify plans the analysis of an opportunity, analyzes every section
concurrently against the ingested documents, evaluates each section and
retries weak ones once with web enrichment, then synthesizes a decision.

The decision is saved to the corpus database after the run. Section
analyses are saved as they complete.`,
	Args: cobra.ExactArgs(1),
	RunE: runQualify,
}

func runQualify(cmd *cobra.Command, args []string) error {
	opportunityID := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyQualifyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	st, err := store.NewStore(cfg.Corpus)
	if err != nil {
		return err
	}
	defer st.Close()

	backend, err := newBackend(cmd, cfg)
	if err != nil {
		return err
	}

	evaluator, err := evaluate.ForConfig(cfg.Orchestration, backend, st, logger)
	if err != nil {
		return err
	}
	orch := orchestrator.New(
		plan.New(st, backend, cfg, logger),
		section.New(st, backend, st, cfg.Corpus, logger),
		evaluator,
		decide.New(backend, st, logger),
		logger,
	)

	jsonOutput, _ := cmd.Flags().GetBool("json")
	opts := orchestrator.OptionsFromConfig(cfg.Orchestration)
	if !jsonOutput {
		opts.OnProgress = func(completed, total int, id types.SectionID) {
			fmt.Fprintf(os.Stdout, "analyzed %-16s (%d/%d)\n", id, completed, total)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res := orch.Run(ctx, opportunityID, opts)

	if res.Decision != nil {
		if err := st.SaveDecision(ctx, opportunityID, res.RunID, *res.Decision); err != nil {
			return err
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(os.Stdout)
		fmt.Fprintln(os.Stdout, renderResult(res))
	}

	if res.Stage == types.StageFailed {
		return fmt.Errorf("qualification of %s failed: %s", opportunityID, res.Error)
	}
	return nil
}

// applyQualifyFlags overrides config values with flags the user set.
func applyQualifyFlags(cmd *cobra.Command, cfg *types.PipelineConfig) {
	flags := cmd.Flags()
	o := &cfg.Orchestration
	if flags.Changed("max-concurrency") {
		o.MaxConcurrency, _ = flags.GetInt("max-concurrency")
	}
	if flags.Changed("no-evaluation") {
		disabled, _ := flags.GetBool("no-evaluation")
		o.EnableEvaluation = !disabled
	}
	if flags.Changed("quality-threshold") {
		o.QualityThreshold, _ = flags.GetInt("quality-threshold")
	}
	if flags.Changed("max-retries") {
		o.MaxRetries, _ = flags.GetInt("max-retries")
	}
	if flags.Changed("skip-planning") {
		o.SkipPlanning, _ = flags.GetBool("skip-planning")
	}
	if flags.Changed("evaluator") {
		o.Evaluator, _ = flags.GetString("evaluator")
	}
	if flags.Changed("model") {
		cfg.Reasoning.Model, _ = flags.GetString("model")
	}
}

func addQualifyFlags(cmd *cobra.Command) {
	d := types.DefaultPipelineConfig().Orchestration

	cmd.Flags().Int("max-concurrency", d.MaxConcurrency, "maximum sections analyzed at once (1-10)")
	cmd.Flags().Bool("no-evaluation", false, "skip evaluation and retries")
	cmd.Flags().Int("quality-threshold", d.QualityThreshold, "quality score below which a section is retried (0-100)")
	cmd.Flags().Int("max-retries", d.MaxRetries, "retries per section; 0 disables evaluation")
	cmd.Flags().Bool("skip-planning", false, "use the fixed fallback plan instead of planning")
	cmd.Flags().String("evaluator", d.Evaluator, "evaluation policy: rules or reasoning")
	cmd.Flags().String("model", "", "AI model identifier (overrides config)")
	cmd.Flags().String("api-key", "", "API key (overrides config and .secrets/)")
	cmd.Flags().Bool("json", false, "print the full result as JSON")
}

func init() {
	addQualifyFlags(qualifyCmd)
	rootCmd.AddCommand(qualifyCmd)
}
