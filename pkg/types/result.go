// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// SectionResult records the outcome of analyzing one section.
type SectionResult struct {
	SectionID    SectionID `json:"section_id" yaml:"section_id"`
	Success      bool      `json:"success" yaml:"success"`
	Error        string    `json:"error,omitempty" yaml:"error,omitempty"`
	RetryAttempt int       `json:"retry_attempt" yaml:"retry_attempt"`

	// QualityScore is set by the evaluator, 0-100. Nil when not evaluated.
	QualityScore *int `json:"quality_score,omitempty" yaml:"quality_score,omitempty"`
}

// Evaluation scores one section result. Only QualityScore is kept on the
// SectionResult; the rest is discarded after the retry decision.
type Evaluation struct {
	QualityScore int    `json:"quality_score" yaml:"quality_score"`
	Confidence   int    `json:"confidence" yaml:"confidence"`
	Completeness int    `json:"completeness" yaml:"completeness"`
	NeedsRetry   bool   `json:"needs_retry" yaml:"needs_retry"`
	Reasoning    string `json:"reasoning" yaml:"reasoning"`
}

// Recommendation is the final verdict on an opportunity.
type Recommendation string

const (
	RecommendBid         Recommendation = "bid"
	RecommendNoBid       Recommendation = "no-bid"
	RecommendConditional Recommendation = "conditional-bid"
)

// Valid reports whether r is a known recommendation.
func (r Recommendation) Valid() bool {
	switch r {
	case RecommendBid, RecommendNoBid, RecommendConditional:
		return true
	}
	return false
}

// Decision is the terminal artifact of a pipeline run.
type Decision struct {
	Recommendation Recommendation `json:"recommendation" yaml:"recommendation"`

	// Confidence is normalized to 0-100.
	Confidence int      `json:"confidence" yaml:"confidence"`
	Reasoning  string   `json:"reasoning" yaml:"reasoning"`
	Strengths  []string `json:"strengths" yaml:"strengths"`
	Weaknesses []string `json:"weaknesses" yaml:"weaknesses"`

	// Conditions is empty unless Recommendation is conditional-bid.
	Conditions []string `json:"conditions" yaml:"conditions"`
}

// Stage is a state of the orchestrator state machine.
type Stage string

const (
	StagePlanning   Stage = "planning"
	StageExecuting  Stage = "executing"
	StageEvaluating Stage = "evaluating"
	StageDeciding   Stage = "deciding"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// OrchestratorResult is the sole output of one pipeline run.
type OrchestratorResult struct {
	RunID             string          `json:"run_id" yaml:"run_id"`
	OpportunityID     string          `json:"opportunity_id" yaml:"opportunity_id"`
	Success           bool            `json:"success" yaml:"success"`
	CompletedSections int             `json:"completed_sections" yaml:"completed_sections"`
	FailedSections    []SectionResult `json:"failed_sections" yaml:"failed_sections"`
	Plan              *Plan           `json:"plan,omitempty" yaml:"plan,omitempty"`
	Decision          *Decision       `json:"decision,omitempty" yaml:"decision,omitempty"`
	Error             string          `json:"error,omitempty" yaml:"error,omitempty"`

	// Results lists every section result in plan order.
	Results []SectionResult `json:"results" yaml:"results"`

	// Stage is the last state reached: done or failed.
	Stage Stage `json:"stage" yaml:"stage"`
}

// SectionAnalysis is the structured output of one section's reasoning call.
type SectionAnalysis struct {
	Summary    string   `json:"summary" yaml:"summary"`
	Findings   []string `json:"findings" yaml:"findings"`
	Risks      []string `json:"risks" yaml:"risks"`
	Confidence float64  `json:"confidence" yaml:"confidence"`
}

// Artifact is the persisted analysis of one (opportunity, section) pair.
// At most one artifact is live per pair; a retry overwrites it.
type Artifact struct {
	OpportunityID string          `json:"opportunity_id" yaml:"opportunity_id"`
	SectionID     SectionID       `json:"section_id" yaml:"section_id"`
	RunID         string          `json:"run_id" yaml:"run_id"`
	RetryAttempt  int             `json:"retry_attempt" yaml:"retry_attempt"`
	WebEnriched   bool            `json:"web_enriched" yaml:"web_enriched"`
	Analysis      SectionAnalysis `json:"analysis" yaml:"analysis"`
	UpdatedAt     time.Time       `json:"updated_at" yaml:"updated_at"`
}

// Snippet is one ranked passage returned by corpus retrieval.
type Snippet struct {
	DocumentID string  `json:"document_id" yaml:"document_id"`
	Heading    string  `json:"heading" yaml:"heading"`
	Content    string  `json:"content" yaml:"content"`
	Rank       float64 `json:"rank" yaml:"rank"`
}
