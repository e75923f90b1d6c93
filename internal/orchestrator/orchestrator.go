// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package orchestrator runs the qualification pipeline for one
// opportunity: planning, concurrent section analysis, evaluation with a
// bounded retry, and decision synthesis.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/bid-engine/internal/evaluate"
	"github.com/pdiddy/bid-engine/internal/plan"
	"github.com/pdiddy/bid-engine/internal/pool"
	"github.com/pdiddy/bid-engine/internal/section"
	"github.com/pdiddy/bid-engine/pkg/types"
)

// ErrCancelled is reported when the caller's context ends a run.
var ErrCancelled = errors.New("orchestrator: run cancelled")

// Planner produces a plan for an opportunity.
type Planner interface {
	Plan(ctx context.Context, opportunityID string) (types.Plan, error)
}

// SectionRunner analyzes one section. Failures are reported in the result.
type SectionRunner interface {
	Run(ctx context.Context, req section.Request) types.SectionResult
}

// Synthesizer turns the full result set into a decision.
type Synthesizer interface {
	Synthesize(ctx context.Context, opportunityID string, results []types.SectionResult) (types.Decision, error)
}

// ProgressFunc receives one call per finished section, in completion order.
type ProgressFunc func(completed, total int, section types.SectionID)

// Options control one run. Start from DefaultOptions.
type Options struct {
	// MaxConcurrency is the fallback plan's concurrency and the ceiling
	// applied to a planned one.
	MaxConcurrency   int
	EnableEvaluation bool
	QualityThreshold int
	MaxRetries       int
	SkipPlanning     bool
	OnProgress       ProgressFunc
}

// DefaultOptions returns the options used when a caller sets nothing.
func DefaultOptions() Options {
	return Options{
		MaxConcurrency:   types.DefaultConcurrency,
		EnableEvaluation: true,
		QualityThreshold: 60,
		MaxRetries:       1,
	}
}

// OptionsFromConfig builds run options from the orchestration config.
func OptionsFromConfig(cfg types.OrchestrationConfig) Options {
	return Options{
		MaxConcurrency:   cfg.MaxConcurrency,
		EnableEvaluation: cfg.EnableEvaluation,
		QualityThreshold: cfg.QualityThreshold,
		MaxRetries:       cfg.MaxRetries,
		SkipPlanning:     cfg.SkipPlanning,
	}
}

// normalize repairs out-of-range options and reports what it changed.
func (o Options) normalize() (Options, []string) {
	var repairs []string
	if o.MaxConcurrency < types.MinConcurrency || o.MaxConcurrency > types.MaxConcurrency {
		repairs = append(repairs, fmt.Sprintf("max concurrency %d set to %d", o.MaxConcurrency, types.DefaultConcurrency))
		o.MaxConcurrency = types.DefaultConcurrency
	}
	if o.QualityThreshold < 0 || o.QualityThreshold > 100 {
		t := min(max(o.QualityThreshold, 0), 100)
		repairs = append(repairs, fmt.Sprintf("quality threshold %d clamped to %d", o.QualityThreshold, t))
		o.QualityThreshold = t
	}
	if o.MaxRetries < 0 {
		repairs = append(repairs, fmt.Sprintf("max retries %d set to 0", o.MaxRetries))
		o.MaxRetries = 0
	}
	if o.OnProgress == nil {
		o.OnProgress = func(int, int, types.SectionID) {}
	}
	return o, repairs
}

// Orchestrator sequences the pipeline components.
type Orchestrator struct {
	// Planner is optional; without it every run uses the fallback plan.
	Planner Planner

	Runner      SectionRunner
	Evaluator   evaluate.Evaluator
	Synthesizer Synthesizer
	Logger      *zap.Logger

	// NewRunID generates run identifiers. Defaults to UUIDv7.
	NewRunID func() string
}

// New creates an Orchestrator. A nil evaluator means rule-based
// evaluation; a nil logger is replaced with a no-op logger.
func New(planner Planner, runner SectionRunner, evaluator evaluate.Evaluator, synth Synthesizer, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		Planner:     planner,
		Runner:      runner,
		Evaluator:   evaluator,
		Synthesizer: synth,
		Logger:      logger,
	}
}

// Run qualifies one opportunity. It always returns a result: the run is
// Done when a decision was synthesized and Failed when the decision step
// failed, the plan could not be repaired, or ctx was cancelled. Section
// failures are reported in FailedSections and do not fail the run.
func (o *Orchestrator) Run(ctx context.Context, opportunityID string, opts Options) types.OrchestratorResult {
	runID := o.runID()
	logger := o.logger().With(zap.String("opportunity", opportunityID), zap.String("run_id", runID))

	res := types.OrchestratorResult{
		RunID:          runID,
		OpportunityID:  opportunityID,
		FailedSections: []types.SectionResult{},
		Stage:          types.StagePlanning,
	}
	fail := func(err error) types.OrchestratorResult {
		logger.Error("orchestrator: run failed", zap.String("stage", string(res.Stage)), zap.Error(err))
		res.Success = false
		res.Decision = nil
		res.Error = err.Error()
		res.Stage = types.StageFailed
		return res
	}
	cancelled := func() types.OrchestratorResult {
		return fail(fmt.Errorf("%w during %s: %v", ErrCancelled, res.Stage, context.Cause(ctx)))
	}

	if strings.TrimSpace(opportunityID) == "" {
		return fail(errors.New("opportunity ID is required"))
	}
	if o.Runner == nil || o.Synthesizer == nil {
		return fail(errors.New("orchestrator needs a section runner and a synthesizer"))
	}

	opts, repairs := opts.normalize()
	for _, r := range repairs {
		logger.Warn("orchestrator: repaired options", zap.String("repair", r))
	}

	// Planning
	p, err := o.plan(ctx, opportunityID, opts, logger)
	if err != nil {
		return fail(err)
	}
	res.Plan = &p
	if ctx.Err() != nil {
		return cancelled()
	}

	// Executing
	res.Stage = types.StageExecuting
	limit := min(p.Strategy.MaxConcurrency, opts.MaxConcurrency)
	logger.Info("orchestrator: executing sections",
		zap.Int("sections", len(p.Tasks)), zap.Int("concurrency", limit), zap.Bool("fallback_plan", p.Fallback))
	results, err := o.execute(ctx, opportunityID, runID, p, limit, opts.OnProgress)
	if err != nil {
		return fail(err)
	}
	res.Results = results
	if ctx.Err() != nil {
		tally(&res, results)
		return cancelled()
	}

	// Evaluating
	if opts.EnableEvaluation && opts.MaxRetries > 0 {
		res.Stage = types.StageEvaluating
		results, err = o.evaluate(ctx, opportunityID, runID, p, results, limit, opts, logger)
		if err != nil {
			return fail(err)
		}
		res.Results = results
		if ctx.Err() != nil {
			tally(&res, results)
			return cancelled()
		}
	}

	// Deciding
	res.Stage = types.StageDeciding
	tally(&res, results)
	decision, err := o.Synthesizer.Synthesize(ctx, opportunityID, results)
	if err != nil {
		if ctx.Err() != nil {
			return cancelled()
		}
		return fail(fmt.Errorf("deciding: %w", err))
	}

	res.Decision = &decision
	res.Success = len(res.FailedSections) == 0
	res.Stage = types.StageDone
	logger.Info("orchestrator: run done",
		zap.Bool("success", res.Success),
		zap.Int("completed", res.CompletedSections),
		zap.Int("failed", len(res.FailedSections)),
		zap.String("recommendation", string(decision.Recommendation)))
	return res
}

// plan returns the plan for the run. Planner failures fall back to the
// deterministic plan; only an unrepairable plan is an error.
func (o *Orchestrator) plan(ctx context.Context, opportunityID string, opts Options, logger *zap.Logger) (types.Plan, error) {
	if opts.SkipPlanning || o.Planner == nil {
		logger.Info("orchestrator: planning skipped, using fallback plan")
		return plan.Fallback(opts.MaxConcurrency), nil
	}

	p, err := o.Planner.Plan(ctx, opportunityID)
	if err != nil {
		logger.Warn("orchestrator: planning failed, using fallback plan", zap.Error(err))
		return plan.Fallback(opts.MaxConcurrency), nil
	}

	p, repairs := plan.Repair(p, opts.MaxConcurrency)
	for _, r := range repairs {
		logger.Warn("orchestrator: repaired plan", zap.String("repair", r))
	}
	if err := p.Validate(); err != nil {
		return types.Plan{}, fmt.Errorf("planning: %w", err)
	}
	return p, nil
}

// execute runs every task through the pool. Finished sections are
// reported on a channel drained by a single goroutine, which is the only
// caller of onProgress.
func (o *Orchestrator) execute(ctx context.Context, opportunityID, runID string, p types.Plan, limit int, onProgress ProgressFunc) ([]types.SectionResult, error) {
	total := len(p.Tasks)
	finished := make(chan types.SectionID, total)
	drained := make(chan struct{})

	go func() {
		defer close(drained)
		completed := 0
		for id := range finished {
			completed++
			onProgress(completed, total, id)
		}
	}()

	outcomes, err := pool.Run(ctx, p.Tasks, limit,
		func(ctx context.Context, task types.ExecutionTask, _ int) (types.SectionResult, error) {
			defer func() { finished <- task.SectionID }()
			return o.Runner.Run(ctx, section.Request{
				OpportunityID:      opportunityID,
				RunID:              runID,
				Section:            task.SectionID,
				Goal:               task.Goal,
				AllowWebEnrichment: task.RequiresWebEnrichment || p.Strategy.Mode == types.ModeWebEnriched,
			}), nil
		})
	close(finished)
	<-drained
	if err != nil {
		return nil, fmt.Errorf("executing sections: %w", err)
	}

	results := make([]types.SectionResult, len(outcomes))
	for i, out := range outcomes {
		if out.Err != nil {
			results[i] = types.SectionResult{SectionID: p.Tasks[i].SectionID, Error: out.Err.Error()}
			continue
		}
		results[i] = out.Value
	}
	return results, nil
}

// evaluate scores every result and retries those that need it, with web
// enrichment forced on, until they pass or MaxRetries is reached.
func (o *Orchestrator) evaluate(ctx context.Context, opportunityID, runID string, p types.Plan, results []types.SectionResult, limit int, opts Options, logger *zap.Logger) ([]types.SectionResult, error) {
	evaluator := o.Evaluator
	if evaluator == nil {
		evaluator = evaluate.RuleEvaluator{Threshold: opts.QualityThreshold}
	}

	outcomes, err := pool.Run(ctx, results, limit,
		func(ctx context.Context, r types.SectionResult, _ int) (types.SectionResult, error) {
			for {
				ev, err := evaluator.Evaluate(ctx, opportunityID, r)
				if err != nil {
					logger.Warn("orchestrator: evaluation failed, keeping result",
						zap.String("section", string(r.SectionID)), zap.Error(err))
					return r, nil
				}
				score := ev.QualityScore
				r.QualityScore = &score

				needsRetry := ev.NeedsRetry || score < opts.QualityThreshold
				if !needsRetry || r.RetryAttempt >= opts.MaxRetries || ctx.Err() != nil {
					return r, nil
				}

				logger.Info("orchestrator: retrying section",
					zap.String("section", string(r.SectionID)),
					zap.Int("attempt", r.RetryAttempt+1),
					zap.Int("quality", score))
				goal := ""
				if task, ok := p.Task(r.SectionID); ok {
					goal = task.Goal
				}
				r = o.Runner.Run(ctx, section.Request{
					OpportunityID:      opportunityID,
					RunID:              runID,
					Section:            r.SectionID,
					Goal:               goal,
					AllowWebEnrichment: true,
					RetryAttempt:       r.RetryAttempt + 1,
				})
			}
		})
	if err != nil {
		return nil, fmt.Errorf("evaluating sections: %w", err)
	}

	out := make([]types.SectionResult, len(outcomes))
	for i, oc := range outcomes {
		if oc.Err != nil {
			out[i] = results[i]
			continue
		}
		out[i] = oc.Value
	}
	return out, nil
}

// tally fills the result counters from the section results.
func tally(res *types.OrchestratorResult, results []types.SectionResult) {
	res.CompletedSections = 0
	res.FailedSections = []types.SectionResult{}
	for _, r := range results {
		if r.Success {
			res.CompletedSections++
			continue
		}
		res.FailedSections = append(res.FailedSections, r)
	}
}

func (o *Orchestrator) runID() string {
	if o.NewRunID != nil {
		return o.NewRunID()
	}
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (o *Orchestrator) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}
