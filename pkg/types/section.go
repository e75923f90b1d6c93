// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
)

// SectionID names one of the fixed analysis dimensions of an opportunity.
type SectionID string

const (
	SectionBudget         SectionID = "budget"
	SectionTiming         SectionID = "timing"
	SectionContracts      SectionID = "contracts"
	SectionDeliverables   SectionID = "deliverables"
	SectionReferences     SectionID = "references"
	SectionAwardCriteria  SectionID = "award-criteria"
	SectionOfferStructure SectionID = "offer-structure"
)

// ErrUnknownSection is returned when a section identifier is outside the fixed set.
var ErrUnknownSection = errors.New("unknown section")

// allSections is the canonical section order used by fallback plans and reports.
var allSections = []SectionID{
	SectionBudget,
	SectionTiming,
	SectionContracts,
	SectionDeliverables,
	SectionReferences,
	SectionAwardCriteria,
	SectionOfferStructure,
}

// AllSections returns a copy of the section set in canonical order.
func AllSections() []SectionID {
	out := make([]SectionID, len(allSections))
	copy(out, allSections)
	return out
}

// Valid reports whether s belongs to the fixed section set.
func (s SectionID) Valid() bool {
	for _, known := range allSections {
		if s == known {
			return true
		}
	}
	return false
}

// ParseSectionID converts a string to a SectionID, rejecting unknown names.
func ParseSectionID(s string) (SectionID, error) {
	id := SectionID(s)
	if !id.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownSection, s)
	}
	return id, nil
}

// Priority ranks a task within a plan.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// ExecutionMode selects where section analysis draws its facts from.
type ExecutionMode string

const (
	ModeDocumentsFirst ExecutionMode = "documents-first"
	ModeWebEnriched    ExecutionMode = "web-enriched"
	ModeHybrid         ExecutionMode = "hybrid"
)

// Valid reports whether m is a known execution mode.
func (m ExecutionMode) Valid() bool {
	switch m {
	case ModeDocumentsFirst, ModeWebEnriched, ModeHybrid:
		return true
	}
	return false
}

const (
	// MinConcurrency and MaxConcurrency bound ExecutionStrategy.MaxConcurrency.
	MinConcurrency = 1
	MaxConcurrency = 10

	// DefaultConcurrency is used when no ceiling is configured.
	DefaultConcurrency = 5
)

// ExecutionTask is one unit of work in a plan: the analysis of a single section.
type ExecutionTask struct {
	SectionID             SectionID `json:"section_id" yaml:"section_id"`
	Priority              Priority  `json:"priority" yaml:"priority"`
	RequiresWebEnrichment bool      `json:"requires_web_enrichment" yaml:"requires_web_enrichment"`
	Goal                  string    `json:"goal" yaml:"goal"`
}

// ExecutionStrategy holds the plan-wide execution settings.
type ExecutionStrategy struct {
	Mode           ExecutionMode `json:"mode" yaml:"mode"`
	MaxConcurrency int           `json:"max_concurrency" yaml:"max_concurrency"`
}

// Plan pairs the task list with its execution strategy.
type Plan struct {
	Tasks    []ExecutionTask   `json:"tasks" yaml:"tasks"`
	Strategy ExecutionStrategy `json:"strategy" yaml:"strategy"`

	// Fallback is true when the plan was built deterministically instead of
	// by the reasoning backend.
	Fallback bool `json:"fallback" yaml:"fallback"`
}

// ErrInvalidPlan is returned by Plan.Validate.
var ErrInvalidPlan = errors.New("invalid plan")

// Validate checks that the plan covers every section exactly once and that
// its strategy is in range.
func (p Plan) Validate() error {
	seen := make(map[SectionID]bool, len(allSections))
	for i, t := range p.Tasks {
		if !t.SectionID.Valid() {
			return fmt.Errorf("%w: task %d: %w: %q", ErrInvalidPlan, i, ErrUnknownSection, t.SectionID)
		}
		if seen[t.SectionID] {
			return fmt.Errorf("%w: duplicate section %q", ErrInvalidPlan, t.SectionID)
		}
		if !t.Priority.Valid() {
			return fmt.Errorf("%w: section %q: invalid priority %q", ErrInvalidPlan, t.SectionID, t.Priority)
		}
		seen[t.SectionID] = true
	}
	for _, id := range allSections {
		if !seen[id] {
			return fmt.Errorf("%w: missing section %q", ErrInvalidPlan, id)
		}
	}
	if !p.Strategy.Mode.Valid() {
		return fmt.Errorf("%w: invalid mode %q", ErrInvalidPlan, p.Strategy.Mode)
	}
	if p.Strategy.MaxConcurrency < MinConcurrency || p.Strategy.MaxConcurrency > MaxConcurrency {
		return fmt.Errorf("%w: max concurrency %d out of range [%d,%d]",
			ErrInvalidPlan, p.Strategy.MaxConcurrency, MinConcurrency, MaxConcurrency)
	}
	return nil
}

// Task returns the task for id and whether it is present.
func (p Plan) Task(id SectionID) (ExecutionTask, bool) {
	for _, t := range p.Tasks {
		if t.SectionID == id {
			return t, true
		}
	}
	return ExecutionTask{}, false
}
