// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/bid-engine/pkg/types"
)

// SaveArtifact stores the analysis for (opportunity, section), replacing
// any earlier artifact for the pair.
func (s *Store) SaveArtifact(ctx context.Context, a types.Artifact) error {
	if !a.SectionID.Valid() {
		return fmt.Errorf("saving artifact: %w: %q", types.ErrUnknownSection, a.SectionID)
	}
	analysis, err := json.Marshal(a.Analysis)
	if err != nil {
		return fmt.Errorf("marshaling analysis: %w", err)
	}
	updated := a.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO artifacts (opportunity_id, section_id, run_id, retry_attempt, web_enriched, analysis, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(opportunity_id, section_id) DO UPDATE SET
			run_id=excluded.run_id, retry_attempt=excluded.retry_attempt,
			web_enriched=excluded.web_enriched, analysis=excluded.analysis,
			updated_at=excluded.updated_at`,
		a.OpportunityID, string(a.SectionID), a.RunID, a.RetryAttempt, a.WebEnriched,
		string(analysis), updated.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving artifact %s/%s: %w", a.OpportunityID, a.SectionID, err)
	}
	return nil
}

// Artifact returns the live artifact for (opportunity, section).
func (s *Store) Artifact(ctx context.Context, opportunityID string, section types.SectionID) (types.Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT opportunity_id, section_id, run_id, retry_attempt, web_enriched, analysis, updated_at
		 FROM artifacts WHERE opportunity_id = ? AND section_id = ?`,
		opportunityID, string(section))
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Artifact{}, fmt.Errorf("artifact %s/%s: %w", opportunityID, section, ErrNotFound)
	}
	return a, err
}

// Artifacts returns every live artifact for an opportunity in canonical
// section order.
func (s *Store) Artifacts(ctx context.Context, opportunityID string) ([]types.Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT opportunity_id, section_id, run_id, retry_attempt, web_enriched, analysis, updated_at
		 FROM artifacts WHERE opportunity_id = ?`, opportunityID)
	if err != nil {
		return nil, fmt.Errorf("querying artifacts: %w", err)
	}
	defer rows.Close()

	bySection := make(map[types.SectionID]types.Artifact)
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		bySection[a.SectionID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []types.Artifact
	for _, id := range types.AllSections() {
		if a, ok := bySection[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArtifact(sc scanner) (types.Artifact, error) {
	var (
		a        types.Artifact
		section  string
		analysis string
		updated  string
	)
	if err := sc.Scan(&a.OpportunityID, &section, &a.RunID, &a.RetryAttempt, &a.WebEnriched, &analysis, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Artifact{}, err
		}
		return types.Artifact{}, fmt.Errorf("scanning artifact: %w", err)
	}
	a.SectionID = types.SectionID(section)
	if err := json.Unmarshal([]byte(analysis), &a.Analysis); err != nil {
		return types.Artifact{}, fmt.Errorf("decoding analysis for %s: %w", section, err)
	}
	a.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return a, nil
}

// DecisionRecord is a persisted decision with its run metadata.
type DecisionRecord struct {
	OpportunityID string         `json:"opportunity_id" yaml:"opportunity_id"`
	RunID         string         `json:"run_id" yaml:"run_id"`
	Decision      types.Decision `json:"decision" yaml:"decision"`
	CreatedAt     time.Time      `json:"created_at" yaml:"created_at"`
}

// SaveDecision appends a decision for an opportunity. The orchestrator does
// not persist decisions itself; callers store the result after a run.
func (s *Store) SaveDecision(ctx context.Context, opportunityID, runID string, d types.Decision) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshaling decision: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO decisions (opportunity_id, run_id, recommendation, confidence, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		opportunityID, runID, string(d.Recommendation), d.Confidence, string(payload),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving decision: %w", err)
	}
	return nil
}

// LatestDecision returns the most recently saved decision for an opportunity.
func (s *Store) LatestDecision(ctx context.Context, opportunityID string) (DecisionRecord, error) {
	var (
		rec     DecisionRecord
		payload string
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT opportunity_id, run_id, payload, created_at FROM decisions
		 WHERE opportunity_id = ? ORDER BY rowid DESC LIMIT 1`, opportunityID,
	).Scan(&rec.OpportunityID, &rec.RunID, &payload, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return DecisionRecord{}, fmt.Errorf("decision for %s: %w", opportunityID, ErrNotFound)
	}
	if err != nil {
		return DecisionRecord{}, fmt.Errorf("looking up decision: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &rec.Decision); err != nil {
		return DecisionRecord{}, fmt.Errorf("decoding decision: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return rec, nil
}
