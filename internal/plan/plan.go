// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package plan decomposes an opportunity into one analysis task per
// section plus a run-wide execution strategy.
package plan

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/bid-engine/internal/reasoning"
	"github.com/pdiddy/bid-engine/pkg/types"
)

// webEnrichedSections are the sections whose analysis benefits from
// external facts in the fallback plan.
var webEnrichedSections = map[types.SectionID]bool{
	types.SectionBudget:     true,
	types.SectionReferences: true,
}

// defaultGoals describes what each section's analysis should establish.
var defaultGoals = map[types.SectionID]string{
	types.SectionBudget:         "Establish the contract value, payment terms, and financial exposure.",
	types.SectionTiming:         "Establish submission deadlines, project start, and delivery milestones.",
	types.SectionContracts:      "Identify contract type, liabilities, penalties, and legal constraints.",
	types.SectionDeliverables:   "List the required deliverables and the scope of work.",
	types.SectionReferences:     "Determine required references and how our track record compares.",
	types.SectionAwardCriteria:  "Extract the award criteria and their weighting.",
	types.SectionOfferStructure: "Describe the required structure and formal requirements of the offer.",
}

// DefaultGoal returns the standard analysis goal for a section.
func DefaultGoal(id types.SectionID) string {
	return defaultGoals[id]
}

// Retriever supplies ranked document snippets for an opportunity.
type Retriever interface {
	QueryContext(ctx context.Context, opportunityID, query string, maxResults int) ([]types.Snippet, error)
}

// Planner asks the reasoning backend for a plan, using a preview of the
// opportunity's documents as context.
type Planner struct {
	Retriever Retriever
	Backend   reasoning.Backend

	// PreviewSize is the number of snippets included in the prompt.
	PreviewSize int

	// DefaultConcurrency replaces a missing or non-positive concurrency in
	// the backend's answer.
	DefaultConcurrency int

	Logger *zap.Logger
}

// New creates a Planner. A nil logger is replaced with a no-op logger.
func New(retriever Retriever, backend reasoning.Backend, cfg types.PipelineConfig, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{
		Retriever:          retriever,
		Backend:            backend,
		PreviewSize:        cfg.Corpus.PreviewSize,
		DefaultConcurrency: cfg.Orchestration.MaxConcurrency,
		Logger:             logger,
	}
}

// Plan retrieves a preview of the opportunity's documents and asks the
// backend for a plan. The answer is repaired so that it covers every
// section exactly once and carries an in-range strategy. Retrieval or
// reasoning failures are returned to the caller.
func (p *Planner) Plan(ctx context.Context, opportunityID string) (types.Plan, error) {
	logger := p.logger()

	size := p.PreviewSize
	if size <= 0 {
		size = types.DefaultPipelineConfig().Corpus.PreviewSize
	}
	preview, err := p.Retriever.QueryContext(ctx, opportunityID, "", size)
	if err != nil {
		return types.Plan{}, fmt.Errorf("retrieving preview for %s: %w", opportunityID, err)
	}

	prompt, err := renderPlanPrompt(opportunityID, preview)
	if err != nil {
		return types.Plan{}, fmt.Errorf("rendering plan prompt: %w", err)
	}

	var resp planResponse
	err = p.Backend.Complete(ctx, reasoning.Request{
		Task:   "plan",
		System: planSystemPrompt,
		Prompt: prompt,
		Schema: planSchema,
	}, &resp)
	if err != nil {
		return types.Plan{}, fmt.Errorf("planning %s: %w", opportunityID, err)
	}

	plan, repairs := Repair(resp.plan(), p.DefaultConcurrency)
	for _, r := range repairs {
		logger.Info("planner: repaired plan", zap.String("opportunity", opportunityID), zap.String("repair", r))
	}
	if err := plan.Validate(); err != nil {
		return types.Plan{}, err
	}
	return plan, nil
}

func (p *Planner) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

// Fallback returns the deterministic plan used when planning is skipped or
// fails: every section at medium priority, web enrichment only for budget
// and references, documents-first mode, and the given concurrency. An
// out-of-range concurrency is replaced by types.DefaultConcurrency.
func Fallback(concurrency int) types.Plan {
	if concurrency < types.MinConcurrency || concurrency > types.MaxConcurrency {
		concurrency = types.DefaultConcurrency
	}
	sections := types.AllSections()
	tasks := make([]types.ExecutionTask, 0, len(sections))
	for _, id := range sections {
		tasks = append(tasks, defaultTask(id))
	}
	return types.Plan{
		Tasks: tasks,
		Strategy: types.ExecutionStrategy{
			Mode:           types.ModeDocumentsFirst,
			MaxConcurrency: concurrency,
		},
		Fallback: true,
	}
}

func defaultTask(id types.SectionID) types.ExecutionTask {
	return types.ExecutionTask{
		SectionID:             id,
		Priority:              types.PriorityMedium,
		RequiresWebEnrichment: webEnrichedSections[id],
		Goal:                  defaultGoals[id],
	}
}

// Repair turns an arbitrary plan into one that passes Plan.Validate.
// Unknown and duplicate tasks are dropped (the first occurrence wins),
// missing sections are appended in canonical order with fallback
// settings, invalid priorities become medium, an invalid mode becomes
// documents-first, and the concurrency is clamped to [1,10] with
// non-positive values replaced by defaultConcurrency. It returns a
// description of each change made.
func Repair(p types.Plan, defaultConcurrency int) (types.Plan, []string) {
	var repairs []string
	out := types.Plan{Fallback: p.Fallback}

	seen := make(map[types.SectionID]bool)
	for _, t := range p.Tasks {
		switch {
		case !t.SectionID.Valid():
			repairs = append(repairs, fmt.Sprintf("dropped unknown section %q", t.SectionID))
			continue
		case seen[t.SectionID]:
			repairs = append(repairs, fmt.Sprintf("dropped duplicate section %q", t.SectionID))
			continue
		}
		seen[t.SectionID] = true
		if !t.Priority.Valid() {
			repairs = append(repairs, fmt.Sprintf("section %q: priority %q set to medium", t.SectionID, t.Priority))
			t.Priority = types.PriorityMedium
		}
		if strings.TrimSpace(t.Goal) == "" {
			t.Goal = defaultGoals[t.SectionID]
		}
		out.Tasks = append(out.Tasks, t)
	}
	for _, id := range types.AllSections() {
		if !seen[id] {
			repairs = append(repairs, fmt.Sprintf("added missing section %q", id))
			out.Tasks = append(out.Tasks, defaultTask(id))
		}
	}

	out.Strategy = p.Strategy
	if !out.Strategy.Mode.Valid() {
		repairs = append(repairs, fmt.Sprintf("mode %q set to %s", out.Strategy.Mode, types.ModeDocumentsFirst))
		out.Strategy.Mode = types.ModeDocumentsFirst
	}
	switch c := out.Strategy.MaxConcurrency; {
	case c < types.MinConcurrency:
		if defaultConcurrency < types.MinConcurrency || defaultConcurrency > types.MaxConcurrency {
			defaultConcurrency = types.DefaultConcurrency
		}
		repairs = append(repairs, fmt.Sprintf("max concurrency %d set to %d", c, defaultConcurrency))
		out.Strategy.MaxConcurrency = defaultConcurrency
	case c > types.MaxConcurrency:
		repairs = append(repairs, fmt.Sprintf("max concurrency %d clamped to %d", c, types.MaxConcurrency))
		out.Strategy.MaxConcurrency = types.MaxConcurrency
	}

	return out, repairs
}

// planResponse is the shape the backend is asked to answer in.
type planResponse struct {
	Tasks []struct {
		SectionID             string `json:"section_id"`
		Priority              string `json:"priority"`
		RequiresWebEnrichment bool   `json:"requires_web_enrichment"`
		Goal                  string `json:"goal"`
	} `json:"tasks"`
	Strategy struct {
		Mode           string `json:"mode"`
		MaxConcurrency int    `json:"max_concurrency"`
	} `json:"strategy"`
}

var errNoKnownSections = errors.New("plan names no known section")

// Validate rejects answers that Repair could only replace wholesale.
func (r *planResponse) Validate() error {
	for _, t := range r.Tasks {
		if types.SectionID(t.SectionID).Valid() {
			return nil
		}
	}
	return errNoKnownSections
}

func (r *planResponse) plan() types.Plan {
	p := types.Plan{
		Strategy: types.ExecutionStrategy{
			Mode:           types.ExecutionMode(r.Strategy.Mode),
			MaxConcurrency: r.Strategy.MaxConcurrency,
		},
	}
	for _, t := range r.Tasks {
		p.Tasks = append(p.Tasks, types.ExecutionTask{
			SectionID:             types.SectionID(strings.TrimSpace(t.SectionID)),
			Priority:              types.Priority(strings.ToLower(strings.TrimSpace(t.Priority))),
			RequiresWebEnrichment: t.RequiresWebEnrichment,
			Goal:                  t.Goal,
		})
	}
	return p
}
