// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package section runs the analysis of one section of an opportunity and
// persists the resulting artifact.
package section

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/bid-engine/internal/reasoning"
	"github.com/pdiddy/bid-engine/pkg/types"
)

// Retriever supplies ranked document snippets for an opportunity.
type Retriever interface {
	QueryContext(ctx context.Context, opportunityID, query string, maxResults int) ([]types.Snippet, error)
}

// ArtifactWriter persists one artifact per (opportunity, section).
type ArtifactWriter interface {
	SaveArtifact(ctx context.Context, a types.Artifact) error
}

// Request identifies one section analysis.
type Request struct {
	OpportunityID      string
	RunID              string
	Section            types.SectionID
	Goal               string
	AllowWebEnrichment bool
	RetryAttempt       int
}

// Runner analyzes a single section against retrieved document context.
type Runner struct {
	Retriever Retriever
	Backend   reasoning.Backend
	Artifacts ArtifactWriter

	// ContextSize is the number of snippets retrieved for the analysis.
	ContextSize int

	Logger *zap.Logger
}

// New creates a Runner. A nil logger is replaced with a no-op logger.
func New(retriever Retriever, backend reasoning.Backend, artifacts ArtifactWriter, cfg types.CorpusConfig, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		Retriever:   retriever,
		Backend:     backend,
		Artifacts:   artifacts,
		ContextSize: cfg.ContextSize,
		Logger:      logger,
	}
}

// Run analyzes req.Section and saves the artifact. Every failure is
// reported through the returned result with Success false; Run itself
// never fails.
func (r *Runner) Run(ctx context.Context, req Request) types.SectionResult {
	result := types.SectionResult{
		SectionID:    req.Section,
		RetryAttempt: req.RetryAttempt,
	}
	logger := r.logger().With(
		zap.String("opportunity", req.OpportunityID),
		zap.String("section", string(req.Section)),
		zap.Int("attempt", req.RetryAttempt),
	)

	if err := r.analyze(ctx, req); err != nil {
		logger.Warn("section: analysis failed", zap.Error(err))
		result.Error = err.Error()
		return result
	}

	logger.Debug("section: analysis saved", zap.Bool("web_enriched", req.AllowWebEnrichment))
	result.Success = true
	return result
}

func (r *Runner) analyze(ctx context.Context, req Request) error {
	if !req.Section.Valid() {
		return fmt.Errorf("%w: %q", types.ErrUnknownSection, req.Section)
	}

	size := r.ContextSize
	if size <= 0 {
		size = types.DefaultPipelineConfig().Corpus.ContextSize
	}
	query := sectionQueries[req.Section] + " " + req.Goal
	snippets, err := r.Retriever.QueryContext(ctx, req.OpportunityID, query, size)
	if err != nil {
		return fmt.Errorf("retrieving context: %w", err)
	}

	prompt, err := renderSectionPrompt(req, snippets)
	if err != nil {
		return fmt.Errorf("rendering prompt: %w", err)
	}

	var resp analysisResponse
	err = r.Backend.Complete(ctx, reasoning.Request{
		Task:           "section/" + string(req.Section),
		System:         sectionSystemPrompt,
		Prompt:         prompt,
		Schema:         analysisSchema,
		AllowWebSearch: req.AllowWebEnrichment,
	}, &resp)
	if err != nil {
		return fmt.Errorf("analyzing %s: %w", req.Section, err)
	}

	artifact := types.Artifact{
		OpportunityID: req.OpportunityID,
		SectionID:     req.Section,
		RunID:         req.RunID,
		RetryAttempt:  req.RetryAttempt,
		WebEnriched:   req.AllowWebEnrichment,
		Analysis:      resp.analysis(),
	}
	if err := r.Artifacts.SaveArtifact(ctx, artifact); err != nil {
		return fmt.Errorf("persisting artifact: %w", err)
	}
	return nil
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// analysisResponse is the shape the backend is asked to answer in.
type analysisResponse struct {
	Summary    string   `json:"summary"`
	Findings   []string `json:"findings"`
	Risks      []string `json:"risks"`
	Confidence float64  `json:"confidence"`
}

var errEmptySummary = errors.New("analysis has no summary")

// Validate requires a summary and a confidence in [0,1] or [0,100].
func (a *analysisResponse) Validate() error {
	if strings.TrimSpace(a.Summary) == "" {
		return errEmptySummary
	}
	if a.Confidence < 0 || a.Confidence > 100 {
		return fmt.Errorf("confidence %v out of range", a.Confidence)
	}
	return nil
}

// analysis converts the answer, storing confidence as a fraction.
func (a *analysisResponse) analysis() types.SectionAnalysis {
	conf := a.Confidence
	if conf > 1 {
		conf /= 100
	}
	return types.SectionAnalysis{
		Summary:    strings.TrimSpace(a.Summary),
		Findings:   a.Findings,
		Risks:      a.Risks,
		Confidence: conf,
	}
}
