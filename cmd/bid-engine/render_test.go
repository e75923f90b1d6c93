// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bid-engine/pkg/types"
)

func TestRenderResult(t *testing.T) {
	score := 75
	res := types.OrchestratorResult{
		RunID:             "run-1",
		OpportunityID:     "opp-1",
		CompletedSections: 1,
		Plan:              &types.Plan{Fallback: true},
		Decision: &types.Decision{
			Recommendation: types.RecommendConditional,
			Confidence:     72,
			Reasoning:      "Fits if the timeline moves.",
			Strengths:      []string{"local references"},
			Conditions:     []string{"extend timeline"},
		},
		Results: []types.SectionResult{
			{SectionID: types.SectionBudget, Success: true, RetryAttempt: 1, QualityScore: &score},
			{SectionID: types.SectionTiming, Error: "timeout"},
		},
	}

	out := renderResult(res)
	for _, want := range []string{
		"opp-1", "CONDITIONAL-BID", "confidence 72%", "extend timeline",
		"budget", "quality  75", "retried 1", "timing", "timeout",
		"1/2 sections completed", "plan: fallback",
	} {
		assert.Contains(t, out, want)
	}
}

func TestRenderResult_Failed(t *testing.T) {
	out := renderResult(types.OrchestratorResult{OpportunityID: "opp-1", Error: "deciding: unreachable"})
	assert.Contains(t, out, "No decision: deciding: unreachable")
}

func TestApplyQualifyFlags(t *testing.T) {
	cmd := &cobra.Command{}
	addQualifyFlags(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"--max-concurrency=3", "--no-evaluation", "--evaluator=reasoning"}))

	cfg := types.DefaultPipelineConfig()
	applyQualifyFlags(cmd, &cfg)

	assert.Equal(t, 3, cfg.Orchestration.MaxConcurrency)
	assert.False(t, cfg.Orchestration.EnableEvaluation)
	assert.Equal(t, "reasoning", cfg.Orchestration.Evaluator)
	assert.Equal(t, 60, cfg.Orchestration.QualityThreshold)
	assert.Equal(t, 1, cfg.Orchestration.MaxRetries)
}
