// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/bid-engine/internal/plan"
	"github.com/pdiddy/bid-engine/internal/store"
	"github.com/pdiddy/bid-engine/pkg/types"
)

var planCmd = &cobra.Command{
	Use:   "plan <opportunity>",
	Short: "Print the analysis plan for an opportunity as YAML",
	Long: `Plan asks the reasoning backend for an analysis plan based on a
preview of the opportunity's documents and prints it. With --fallback it
prints the fixed plan used when planning is skipped, without calling the
backend.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	fallback, _ := cmd.Flags().GetBool("fallback")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("max-concurrency") {
		cfg.Orchestration.MaxConcurrency, _ = cmd.Flags().GetInt("max-concurrency")
	}

	var p types.Plan
	if fallback {
		p = plan.Fallback(cfg.Orchestration.MaxConcurrency)
	} else {
		st, err := store.NewStore(cfg.Corpus)
		if err != nil {
			return err
		}
		defer st.Close()

		backend, err := newBackend(cmd, cfg)
		if err != nil {
			return err
		}
		p, err = plan.New(st, backend, cfg, logger).Plan(context.Background(), args[0])
		if err != nil {
			return err
		}
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling plan: %w", err)
	}
	_, err = os.Stdout.Write(data)
	return err
}

func init() {
	planCmd.Flags().Bool("fallback", false, "print the fallback plan without calling the backend")
	planCmd.Flags().Int("max-concurrency", types.DefaultConcurrency, "concurrency of the fallback plan")
	planCmd.Flags().String("api-key", "", "API key (overrides config and .secrets/)")

	rootCmd.AddCommand(planCmd)
}
