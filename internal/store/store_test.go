// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/bid-engine/pkg/types"
)

// --- test helpers ---

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	tmpDir := t.TempDir()
	s, err := NewStore(types.CorpusConfig{DataDir: filepath.Join(tmpDir, "data")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, tmpDir
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const tenderDoc = `---
title: City Library Renovation Tender
---
# Overview

The city invites offers for the renovation of the central library.

## Budget

The estimated contract value is 2.4 million EUR with payment in three milestones.

## Timeline

Works must start in March and complete within 14 months.

## Award criteria

Price weighs 40 percent, quality 60 percent.
`

func ingestTender(t *testing.T, s *Store, tmpDir, opportunityID string) {
	t.Helper()
	docs := filepath.Join(tmpDir, "docs-"+opportunityID)
	writeDoc(t, docs, "tender.md", tenderDoc)
	writeDoc(t, docs, "notes/contacts.txt", "Procurement contact: J. Doe\n")
	var buf strings.Builder
	_, err := s.Ingest(context.Background(), opportunityID, docs, &buf)
	require.NoError(t, err)
}

// --- schema ---

func TestNewStoreCreatesSchema(t *testing.T) {
	s, _ := testStore(t)

	for _, table := range []string{"documents", "chunks", "chunks_fts", "artifacts", "decisions"} {
		var count int
		err := s.db.QueryRow(
			`SELECT count(*) FROM sqlite_master WHERE type IN ('table','view') AND name = ?`, table,
		).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s", table)
	}
}

func TestNewStoreReopens(t *testing.T) {
	dir := t.TempDir()
	cfg := types.CorpusConfig{DataDir: dir}

	s1, err := NewStore(cfg)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := NewStore(cfg)
	require.NoError(t, err)
	defer s2.Close()

	_, err = os.Stat(filepath.Join(dir, indexDir, dbFile))
	assert.NoError(t, err)
}

// --- ingest ---

func TestIngest_IndexesSkipsAndUpdates(t *testing.T) {
	s, tmpDir := testStore(t)
	docs := filepath.Join(tmpDir, "docs")
	path := writeDoc(t, docs, "tender.md", tenderDoc)
	writeDoc(t, docs, "ignored.pdf", "binary")
	writeDoc(t, docs, ".git/config.txt", "hidden")

	ctx := context.Background()
	var buf strings.Builder

	summary, err := s.Ingest(ctx, "opp-1", docs, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Indexed)
	assert.Equal(t, 4, summary.Chunks)

	summary, err = s.Ingest(ctx, "opp-1", docs, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Total())

	require.NoError(t, os.WriteFile(path, []byte("# Budget\n\nRevised value is 3 million EUR.\n"), 0o644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	summary, err = s.Ingest(ctx, "opp-1", docs, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)

	var chunks int
	require.NoError(t, s.db.QueryRow(`SELECT count(*) FROM chunks WHERE opportunity_id = 'opp-1'`).Scan(&chunks))
	assert.Equal(t, 1, chunks)

	var title string
	require.NoError(t, s.db.QueryRow(`SELECT title FROM documents WHERE id = 'opp-1/tender.md'`).Scan(&title))
	assert.Equal(t, "tender", title)
}

func TestIngest_RequiresOpportunity(t *testing.T) {
	s, tmpDir := testStore(t)
	_, err := s.Ingest(context.Background(), " ", tmpDir, &strings.Builder{})
	assert.Error(t, err)
}

func TestSplitFrontMatter(t *testing.T) {
	title, body := splitFrontMatter(tenderDoc)
	assert.Equal(t, "City Library Renovation Tender", title)
	assert.True(t, strings.HasPrefix(body, "# Overview"))

	title, body = splitFrontMatter("# No front matter\n")
	assert.Empty(t, title)
	assert.Equal(t, "# No front matter\n", body)

	title, body = splitFrontMatter("---\nunterminated")
	assert.Empty(t, title)
	assert.Equal(t, "---\nunterminated", body)
}

func TestChunkByHeadings(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantHead []string
	}{
		{"single section", "## Budget\n\nText.", []string{"Budget"}},
		{"preamble", "Intro.\n\n# Scope\n\nBody.", []string{"", "Scope"}},
		{"empty sections dropped", "## A\n\n## B\n\nbody", []string{"B"}},
		{"empty content", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := chunkByHeadings(tt.content)
			var heads []string
			for _, c := range chunks {
				heads = append(heads, c.heading)
			}
			assert.Equal(t, tt.wantHead, heads)
		})
	}
}

func TestChunkByHeadings_SplitsLongSections(t *testing.T) {
	para := strings.Repeat("word ", 150) // 750 chars
	content := "## Long\n\n" + strings.Join([]string{para, para, para, para}, "\n\n")

	chunks := chunkByHeadings(content)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.Equal(t, "Long", c.heading)
		assert.LessOrEqual(t, len(c.body), maxChunkChars)
	}
}

// --- retrieval ---

func TestQueryContext_RanksMatches(t *testing.T) {
	s, tmpDir := testStore(t)
	ingestTender(t, s, tmpDir, "opp-1")

	snippets, err := s.QueryContext(context.Background(), "opp-1", "contract value payment milestones", 3)
	require.NoError(t, err)
	require.NotEmpty(t, snippets)
	assert.Equal(t, "Budget", snippets[0].Heading)
	assert.Equal(t, "opp-1/tender.md", snippets[0].DocumentID)
}

func TestQueryContext_IsolatesOpportunities(t *testing.T) {
	s, tmpDir := testStore(t)
	ingestTender(t, s, tmpDir, "opp-1")

	snippets, err := s.QueryContext(context.Background(), "opp-2", "budget", 5)
	require.NoError(t, err)
	assert.Empty(t, snippets)
}

func TestQueryContext_EmptyQueryReturnsPreview(t *testing.T) {
	s, tmpDir := testStore(t)
	ingestTender(t, s, tmpDir, "opp-1")

	snippets, err := s.QueryContext(context.Background(), "opp-1", "", 2)
	require.NoError(t, err)
	require.Len(t, snippets, 2)
	for _, sn := range snippets {
		assert.NotEmpty(t, sn.Content)
	}
}

func TestQueryContext_PunctuationIsSafe(t *testing.T) {
	s, tmpDir := testStore(t)
	ingestTender(t, s, tmpDir, "opp-1")

	_, err := s.QueryContext(context.Background(), "opp-1", `award-criteria: "price" NOT (quality*`, 5)
	assert.NoError(t, err)
}

func TestFTSQuery(t *testing.T) {
	assert.Equal(t, `"award" OR "criteria"`, ftsQuery("award-criteria"))
	assert.Equal(t, `"budget"`, ftsQuery("Budget budget a"))
	assert.Equal(t, "", ftsQuery("  --  "))
}

func TestDocumentCount(t *testing.T) {
	s, tmpDir := testStore(t)
	ingestTender(t, s, tmpDir, "opp-1")

	n, err := s.DocumentCount(context.Background(), "opp-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

// --- artifacts ---

func sampleArtifact(section types.SectionID, attempt int) types.Artifact {
	return types.Artifact{
		OpportunityID: "opp-1",
		SectionID:     section,
		RunID:         fmt.Sprintf("run-%d", attempt),
		RetryAttempt:  attempt,
		WebEnriched:   attempt > 0,
		Analysis: types.SectionAnalysis{
			Summary:    fmt.Sprintf("%s attempt %d", section, attempt),
			Findings:   []string{"finding"},
			Confidence: 0.8,
		},
	}
}

func TestSaveArtifact_LastWriteWins(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveArtifact(ctx, sampleArtifact(types.SectionBudget, 0)))
	require.NoError(t, s.SaveArtifact(ctx, sampleArtifact(types.SectionBudget, 1)))

	a, err := s.Artifact(ctx, "opp-1", types.SectionBudget)
	require.NoError(t, err)
	assert.Equal(t, 1, a.RetryAttempt)
	assert.True(t, a.WebEnriched)
	assert.Equal(t, "budget attempt 1", a.Analysis.Summary)
	assert.False(t, a.UpdatedAt.IsZero())

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT count(*) FROM artifacts`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSaveArtifact_RejectsUnknownSection(t *testing.T) {
	s, _ := testStore(t)
	err := s.SaveArtifact(context.Background(), sampleArtifact("pricing", 0))
	assert.ErrorIs(t, err, types.ErrUnknownSection)
}

func TestArtifact_NotFound(t *testing.T) {
	s, _ := testStore(t)
	_, err := s.Artifact(context.Background(), "opp-1", types.SectionTiming)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArtifacts_ConcurrentWritersCanonicalOrder(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	sections := types.AllSections()
	var wg sync.WaitGroup
	errs := make([]error, len(sections))
	for i, id := range sections {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.SaveArtifact(ctx, sampleArtifact(id, 0))
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	got, err := s.Artifacts(ctx, "opp-1")
	require.NoError(t, err)
	require.Len(t, got, len(sections))
	for i, a := range got {
		assert.Equal(t, sections[i], a.SectionID)
	}
}

// --- decisions and export ---

func sampleDecision() types.Decision {
	return types.Decision{
		Recommendation: types.RecommendConditional,
		Confidence:     72,
		Reasoning:      "Strong fit if the timeline is extended.",
		Strengths:      []string{"local references"},
		Weaknesses:     []string{"tight timeline"},
		Conditions:     []string{"extend timeline by two months"},
	}
}

func TestDecisions(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	_, err := s.LatestDecision(ctx, "opp-1")
	assert.True(t, errors.Is(err, ErrNotFound))

	first := sampleDecision()
	first.Confidence = 10
	require.NoError(t, s.SaveDecision(ctx, "opp-1", "run-a", first))
	require.NoError(t, s.SaveDecision(ctx, "opp-1", "run-b", sampleDecision()))

	rec, err := s.LatestDecision(ctx, "opp-1")
	require.NoError(t, err)
	assert.Equal(t, "run-b", rec.RunID)
	assert.Equal(t, sampleDecision(), rec.Decision)
}

func TestExport(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveArtifact(ctx, sampleArtifact(types.SectionTiming, 0)))
	require.NoError(t, s.SaveDecision(ctx, "opp-1", "run-a", sampleDecision()))

	yamlPath, err := s.ExportYAML(ctx, "opp-1")
	require.NoError(t, err)
	data, err := os.ReadFile(yamlPath)
	require.NoError(t, err)
	var fromYAML Report
	require.NoError(t, yaml.Unmarshal(data, &fromYAML))
	require.NotNil(t, fromYAML.Decision)
	assert.Equal(t, types.RecommendConditional, fromYAML.Decision.Decision.Recommendation)
	require.Len(t, fromYAML.Artifacts, 1)

	jsonPath, err := s.ExportJSON(ctx, "opp-1")
	require.NoError(t, err)
	data, err = os.ReadFile(jsonPath)
	require.NoError(t, err)
	var fromJSON Report
	require.NoError(t, json.Unmarshal(data, &fromJSON))
	assert.Equal(t, "opp-1", fromJSON.OpportunityID)
	assert.Equal(t, filepath.Join(s.dataDir, exportsDir, "opp-1.json"), jsonPath)
}

func TestBuildReport_NoDecision(t *testing.T) {
	s, _ := testStore(t)
	r, err := s.BuildReport(context.Background(), "opp-1")
	require.NoError(t, err)
	assert.Nil(t, r.Decision)
	assert.Empty(t, r.Artifacts)
}
