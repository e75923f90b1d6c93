// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evaluate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bid-engine/internal/reasoning"
	"github.com/pdiddy/bid-engine/pkg/types"
)

type fakeArtifacts struct {
	artifact types.Artifact
	err      error
}

func (f fakeArtifacts) Artifact(context.Context, string, types.SectionID) (types.Artifact, error) {
	return f.artifact, f.err
}

func answer(text string, calls *int) reasoning.Backend {
	return reasoning.BackendFunc(func(_ context.Context, _ reasoning.Request, out any) error {
		if calls != nil {
			*calls++
		}
		return reasoning.Decode(text, out)
	})
}

var (
	succeeded = types.SectionResult{SectionID: types.SectionBudget, Success: true}
	failed    = types.SectionResult{SectionID: types.SectionBudget, Error: "timeout"}
)

func TestRuleEvaluator(t *testing.T) {
	tests := []struct {
		name      string
		threshold int
		result    types.SectionResult
		score     int
		retry     bool
	}{
		{"success default threshold", 60, succeeded, 75, false},
		{"success below strict threshold", 80, succeeded, 75, true},
		{"failure", 60, failed, 0, true},
		{"failure zero threshold", 0, failed, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := RuleEvaluator{Threshold: tt.threshold}.Evaluate(context.Background(), "opp-1", tt.result)
			require.NoError(t, err)
			assert.Equal(t, tt.score, ev.QualityScore)
			assert.Equal(t, tt.retry, ev.NeedsRetry)
			assert.NotEmpty(t, ev.Reasoning)
		})
	}

	ev, _ := RuleEvaluator{}.Evaluate(context.Background(), "opp-1", failed)
	assert.Contains(t, ev.Reasoning, "timeout")
}

func TestReasoningEvaluator(t *testing.T) {
	arts := fakeArtifacts{artifact: types.Artifact{
		SectionID: types.SectionBudget,
		Analysis:  types.SectionAnalysis{Summary: "2.4M EUR", Findings: []string{"fixed price"}},
	}}

	t.Run("grades success", func(t *testing.T) {
		calls := 0
		e := &ReasoningEvaluator{
			Backend:   answer(`{"quality_score": 82, "confidence": 70, "completeness": 90, "needs_retry": false, "reasoning": "solid"}`, &calls),
			Artifacts: arts,
			Threshold: 60,
		}
		ev, err := e.Evaluate(context.Background(), "opp-1", succeeded)
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, 82, ev.QualityScore)
		assert.False(t, ev.NeedsRetry)
		assert.Equal(t, "solid", ev.Reasoning)
	})

	t.Run("low score needs retry", func(t *testing.T) {
		e := &ReasoningEvaluator{
			Backend:   answer(`{"quality_score": 40, "confidence": 70, "completeness": 30, "needs_retry": false, "reasoning": "thin"}`, nil),
			Artifacts: arts,
			Threshold: 60,
		}
		ev, err := e.Evaluate(context.Background(), "opp-1", succeeded)
		require.NoError(t, err)
		assert.True(t, ev.NeedsRetry)
	})

	t.Run("failed section skips backend", func(t *testing.T) {
		calls := 0
		e := &ReasoningEvaluator{Backend: answer(`{}`, &calls), Artifacts: arts}
		ev, err := e.Evaluate(context.Background(), "opp-1", failed)
		require.NoError(t, err)
		assert.Zero(t, calls)
		assert.Equal(t, 0, ev.QualityScore)
		assert.True(t, ev.NeedsRetry)
	})

	t.Run("out of range score", func(t *testing.T) {
		e := &ReasoningEvaluator{
			Backend:   answer(`{"quality_score": 140, "confidence": 70, "completeness": 30}`, nil),
			Artifacts: arts,
		}
		_, err := e.Evaluate(context.Background(), "opp-1", succeeded)
		assert.ErrorIs(t, err, reasoning.ErrSchema)
	})

	t.Run("missing artifact", func(t *testing.T) {
		errMissing := errors.New("missing")
		e := &ReasoningEvaluator{Backend: answer(`{}`, nil), Artifacts: fakeArtifacts{err: errMissing}}
		_, err := e.Evaluate(context.Background(), "opp-1", succeeded)
		assert.ErrorIs(t, err, errMissing)
	})
}

func TestForConfig(t *testing.T) {
	cfg := types.DefaultPipelineConfig().Orchestration

	e, err := ForConfig(cfg, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, RuleEvaluator{Threshold: 60}, e)

	cfg.Evaluator = PolicyReasoning
	_, err = ForConfig(cfg, nil, nil, nil)
	assert.Error(t, err)

	e, err = ForConfig(cfg, answer(`{}`, nil), fakeArtifacts{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &ReasoningEvaluator{}, e)

	cfg.Evaluator = "vibes"
	_, err = ForConfig(cfg, nil, nil, nil)
	assert.Error(t, err)
}
