// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package decide synthesizes the final bid/no-bid recommendation from all
// section outcomes of a run.
package decide

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/bid-engine/internal/reasoning"
	"github.com/pdiddy/bid-engine/pkg/types"
)

// ArtifactLister loads the persisted section analyses of an opportunity.
type ArtifactLister interface {
	Artifacts(ctx context.Context, opportunityID string) ([]types.Artifact, error)
}

// Synthesizer turns section results into a Decision.
type Synthesizer struct {
	Backend reasoning.Backend

	// Artifacts is optional. When set, the analyses of successful sections
	// are included in the reasoning context.
	Artifacts ArtifactLister

	Logger *zap.Logger
}

// New creates a Synthesizer. A nil logger is replaced with a no-op logger.
func New(backend reasoning.Backend, artifacts ArtifactLister, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{Backend: backend, Artifacts: artifacts, Logger: logger}
}

// Outcome summarizes a result set for the reasoning context.
type Outcome struct {
	Total          int
	Successful     int
	SuccessRate    float64
	FailedSections []types.SectionID
}

// Summarize counts successes and lists failed sections in result order.
func Summarize(results []types.SectionResult) Outcome {
	o := Outcome{Total: len(results)}
	for _, r := range results {
		if r.Success {
			o.Successful++
			continue
		}
		o.FailedSections = append(o.FailedSections, r.SectionID)
	}
	if o.Total > 0 {
		o.SuccessRate = float64(o.Successful) / float64(o.Total)
	}
	return o
}

// Synthesize asks the backend for a recommendation over the full result
// set, failures included. Backend failures are returned to the caller.
func (s *Synthesizer) Synthesize(ctx context.Context, opportunityID string, results []types.SectionResult) (types.Decision, error) {
	logger := s.logger().With(zap.String("opportunity", opportunityID))
	outcome := Summarize(results)

	var artifacts []types.Artifact
	if s.Artifacts != nil {
		var err error
		artifacts, err = s.Artifacts.Artifacts(ctx, opportunityID)
		if err != nil {
			logger.Warn("decide: loading artifacts failed, deciding on outcomes only", zap.Error(err))
			artifacts = nil
		}
		artifacts = succeededArtifacts(results, artifacts)
	}

	prompt, err := renderDecisionPrompt(opportunityID, outcome, results, artifacts)
	if err != nil {
		return types.Decision{}, fmt.Errorf("rendering prompt: %w", err)
	}

	var resp decisionResponse
	err = s.Backend.Complete(ctx, reasoning.Request{
		Task:   "decision",
		System: decisionSystemPrompt,
		Prompt: prompt,
		Schema: decisionSchema,
	}, &resp)
	if err != nil {
		return types.Decision{}, fmt.Errorf("synthesizing decision for %s: %w", opportunityID, err)
	}

	d := resp.decision()
	logger.Info("decide: decision synthesized",
		zap.String("recommendation", string(d.Recommendation)),
		zap.Int("confidence", d.Confidence),
		zap.Float64("success_rate", outcome.SuccessRate))
	return d, nil
}

// succeededArtifacts keeps the artifacts of sections that succeeded in
// results. A failed section may still have an artifact from an earlier run;
// it is reported as unknown, not with stale analysis.
func succeededArtifacts(results []types.SectionResult, artifacts []types.Artifact) []types.Artifact {
	ok := make(map[types.SectionID]bool, len(results))
	for _, r := range results {
		if r.Success {
			ok[r.SectionID] = true
		}
	}
	var out []types.Artifact
	for _, a := range artifacts {
		if ok[a.SectionID] {
			out = append(out, a)
		}
	}
	return out
}

func (s *Synthesizer) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// NormalizeConfidence maps a raw confidence to 0-100. Values up to 1 are
// read as fractions and scaled by 100; larger values are rounded. The
// result is clamped to [0,100].
func NormalizeConfidence(raw float64) int {
	if math.IsNaN(raw) || raw < 0 {
		return 0
	}
	if raw <= 1 {
		raw *= 100
	}
	c := int(math.Round(raw))
	if c > 100 {
		c = 100
	}
	return c
}

// decisionResponse is the shape the backend is asked to answer in.
type decisionResponse struct {
	Recommendation string   `json:"recommendation"`
	Confidence     float64  `json:"confidence"`
	Reasoning      string   `json:"reasoning"`
	Strengths      []string `json:"strengths"`
	Weaknesses     []string `json:"weaknesses"`
	Conditions     []string `json:"conditions"`
}

// Validate rejects unknown recommendations and negative confidence.
func (r *decisionResponse) Validate() error {
	if !r.recommendation().Valid() {
		return fmt.Errorf("unknown recommendation %q", r.Recommendation)
	}
	if r.Confidence < 0 || math.IsNaN(r.Confidence) {
		return fmt.Errorf("confidence %v is negative", r.Confidence)
	}
	return nil
}

func (r *decisionResponse) recommendation() types.Recommendation {
	return types.Recommendation(strings.ToLower(strings.TrimSpace(r.Recommendation)))
}

// decision converts the answer. Conditions are kept only for a
// conditional bid; list fields are never nil.
func (r *decisionResponse) decision() types.Decision {
	d := types.Decision{
		Recommendation: r.recommendation(),
		Confidence:     NormalizeConfidence(r.Confidence),
		Reasoning:      strings.TrimSpace(r.Reasoning),
		Strengths:      nonNil(r.Strengths),
		Weaknesses:     nonNil(r.Weaknesses),
		Conditions:     []string{},
	}
	if d.Recommendation == types.RecommendConditional {
		d.Conditions = nonNil(r.Conditions)
	}
	return d
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
