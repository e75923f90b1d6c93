// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/bid-engine/pkg/types"
)

// Report bundles everything stored for one opportunity.
type Report struct {
	OpportunityID string           `json:"opportunity_id" yaml:"opportunity_id"`
	Decision      *DecisionRecord  `json:"decision,omitempty" yaml:"decision,omitempty"`
	Artifacts     []types.Artifact `json:"artifacts" yaml:"artifacts"`
}

// BuildReport gathers the live artifacts and the latest decision for an
// opportunity.
func (s *Store) BuildReport(ctx context.Context, opportunityID string) (Report, error) {
	artifacts, err := s.Artifacts(ctx, opportunityID)
	if err != nil {
		return Report{}, err
	}
	r := Report{OpportunityID: opportunityID, Artifacts: artifacts}

	rec, err := s.LatestDecision(ctx, opportunityID)
	switch {
	case err == nil:
		r.Decision = &rec
	case !errors.Is(err, ErrNotFound):
		return Report{}, err
	}
	return r, nil
}

// ExportYAML writes the opportunity report to dataDir/exports/<id>.yaml
// and returns the path.
func (s *Store) ExportYAML(ctx context.Context, opportunityID string) (string, error) {
	r, err := s.BuildReport(ctx, opportunityID)
	if err != nil {
		return "", err
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshaling YAML: %w", err)
	}
	return s.writeExport(opportunityID+".yaml", data)
}

// ExportJSON writes the opportunity report to dataDir/exports/<id>.json
// and returns the path.
func (s *Store) ExportJSON(ctx context.Context, opportunityID string) (string, error) {
	r, err := s.BuildReport(ctx, opportunityID)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}
	return s.writeExport(opportunityID+".json", data)
}

func (s *Store) writeExport(name string, data []byte) (string, error) {
	dir := filepath.Join(s.dataDir, exportsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating exports directory: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
