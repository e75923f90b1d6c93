// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package evaluate scores completed section results and decides whether a
// section warrants a retry.
package evaluate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/bid-engine/internal/reasoning"
	"github.com/pdiddy/bid-engine/pkg/types"
)

// BaselineScore is the quality assigned to every successful section by
// RuleEvaluator.
const BaselineScore = 75

// Policy names accepted by ForConfig.
const (
	PolicyRules     = "rules"
	PolicyReasoning = "reasoning"
)

// Evaluator scores one section result of an opportunity.
type Evaluator interface {
	Evaluate(ctx context.Context, opportunityID string, result types.SectionResult) (types.Evaluation, error)
}

// RuleEvaluator scores without inspecting content: failed sections score
// 0 and need a retry, successful ones score BaselineScore and need a retry
// only when that is below Threshold.
type RuleEvaluator struct {
	Threshold int
}

// Evaluate applies the fixed rule. It never returns an error.
func (e RuleEvaluator) Evaluate(_ context.Context, _ string, result types.SectionResult) (types.Evaluation, error) {
	if !result.Success {
		return failedEvaluation(result), nil
	}
	return types.Evaluation{
		QualityScore: BaselineScore,
		Confidence:   BaselineScore,
		Completeness: 100,
		NeedsRetry:   BaselineScore < e.Threshold,
		Reasoning:    "section completed; baseline score applied",
	}, nil
}

func failedEvaluation(result types.SectionResult) types.Evaluation {
	reason := "section failed"
	if result.Error != "" {
		reason += ": " + result.Error
	}
	return types.Evaluation{NeedsRetry: true, Reasoning: reason}
}

// ArtifactReader loads the persisted analysis of a section.
type ArtifactReader interface {
	Artifact(ctx context.Context, opportunityID string, section types.SectionID) (types.Artifact, error)
}

// ReasoningEvaluator asks the reasoning backend to grade the persisted
// analysis of a successful section. Failed sections are scored by the
// same rule as RuleEvaluator without a backend call.
type ReasoningEvaluator struct {
	Backend   reasoning.Backend
	Artifacts ArtifactReader
	Threshold int
	Logger    *zap.Logger
}

// Evaluate grades the section's artifact. A retry is requested when the
// backend asks for one or the score falls below Threshold.
func (e *ReasoningEvaluator) Evaluate(ctx context.Context, opportunityID string, result types.SectionResult) (types.Evaluation, error) {
	if !result.Success {
		return failedEvaluation(result), nil
	}

	artifact, err := e.Artifacts.Artifact(ctx, opportunityID, result.SectionID)
	if err != nil {
		return types.Evaluation{}, fmt.Errorf("loading artifact for %s: %w", result.SectionID, err)
	}
	prompt, err := renderEvaluationPrompt(artifact)
	if err != nil {
		return types.Evaluation{}, fmt.Errorf("rendering prompt: %w", err)
	}

	var resp evaluationResponse
	err = e.Backend.Complete(ctx, reasoning.Request{
		Task:   "evaluate/" + string(result.SectionID),
		System: evaluationSystemPrompt,
		Prompt: prompt,
		Schema: evaluationSchema,
	}, &resp)
	if err != nil {
		return types.Evaluation{}, fmt.Errorf("evaluating %s: %w", result.SectionID, err)
	}

	ev := types.Evaluation{
		QualityScore: resp.QualityScore,
		Confidence:   resp.Confidence,
		Completeness: resp.Completeness,
		NeedsRetry:   resp.NeedsRetry || resp.QualityScore < e.Threshold,
		Reasoning:    resp.Reasoning,
	}
	if e.Logger != nil {
		e.Logger.Debug("evaluate: section graded",
			zap.String("opportunity", opportunityID),
			zap.String("section", string(result.SectionID)),
			zap.Int("quality", ev.QualityScore),
			zap.Bool("needs_retry", ev.NeedsRetry))
	}
	return ev, nil
}

// evaluationResponse is the shape the backend is asked to answer in.
type evaluationResponse struct {
	QualityScore int    `json:"quality_score"`
	Confidence   int    `json:"confidence"`
	Completeness int    `json:"completeness"`
	NeedsRetry   bool   `json:"needs_retry"`
	Reasoning    string `json:"reasoning"`
}

// Validate requires every score in [0,100].
func (r *evaluationResponse) Validate() error {
	for name, v := range map[string]int{
		"quality_score": r.QualityScore,
		"confidence":    r.Confidence,
		"completeness":  r.Completeness,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%s %d out of range [0,100]", name, v)
		}
	}
	return nil
}

// ForConfig returns the evaluator selected by cfg.Evaluator.
func ForConfig(cfg types.OrchestrationConfig, backend reasoning.Backend, artifacts ArtifactReader, logger *zap.Logger) (Evaluator, error) {
	switch cfg.Evaluator {
	case "", PolicyRules:
		return RuleEvaluator{Threshold: cfg.QualityThreshold}, nil
	case PolicyReasoning:
		if backend == nil || artifacts == nil {
			return nil, fmt.Errorf("reasoning evaluator needs a backend and an artifact reader")
		}
		return &ReasoningEvaluator{
			Backend:   backend,
			Artifacts: artifacts,
			Threshold: cfg.QualityThreshold,
			Logger:    logger,
		}, nil
	default:
		return nil, fmt.Errorf("unknown evaluator %q", cfg.Evaluator)
	}
}
