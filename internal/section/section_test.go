// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package section

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bid-engine/internal/reasoning"
	"github.com/pdiddy/bid-engine/pkg/types"
)

// --- fakes ---

type fakeRetriever struct {
	err      error
	gotQuery string
	gotMax   int
}

func (f *fakeRetriever) QueryContext(_ context.Context, _, query string, maxResults int) ([]types.Snippet, error) {
	f.gotQuery = query
	f.gotMax = maxResults
	if f.err != nil {
		return nil, f.err
	}
	return []types.Snippet{{DocumentID: "opp-1/tender.md", Heading: "Budget", Content: "Value 2.4M EUR."}}, nil
}

type memArtifacts struct {
	mu    sync.Mutex
	saved map[types.SectionID]types.Artifact
	err   error
}

func (m *memArtifacts) SaveArtifact(_ context.Context, a types.Artifact) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = make(map[types.SectionID]types.Artifact)
	}
	m.saved[a.SectionID] = a
	return nil
}

func answer(text string, got *reasoning.Request) reasoning.Backend {
	return reasoning.BackendFunc(func(_ context.Context, req reasoning.Request, out any) error {
		if got != nil {
			*got = req
		}
		return reasoning.Decode(text, out)
	})
}

const goodAnalysis = `{"summary": "Fixed price of 2.4M EUR.", "findings": ["three milestones"], "risks": ["uncapped penalties"], "confidence": 82}`

func budgetRequest(attempt int, web bool) Request {
	return Request{
		OpportunityID:      "opp-1",
		RunID:              "run-1",
		Section:            types.SectionBudget,
		Goal:               "Establish the contract value.",
		AllowWebEnrichment: web,
		RetryAttempt:       attempt,
	}
}

// --- tests ---

func TestRun_Success(t *testing.T) {
	r := &fakeRetriever{}
	arts := &memArtifacts{}
	var req reasoning.Request
	runner := New(r, answer(goodAnalysis, &req), arts, types.CorpusConfig{ContextSize: 4}, nil)

	res := runner.Run(context.Background(), budgetRequest(0, false))

	assert.True(t, res.Success)
	assert.Empty(t, res.Error)
	assert.Equal(t, types.SectionBudget, res.SectionID)
	assert.Equal(t, 0, res.RetryAttempt)
	assert.Nil(t, res.QualityScore)

	assert.Equal(t, 4, r.gotMax)
	assert.Contains(t, r.gotQuery, "budget")
	assert.Contains(t, r.gotQuery, "contract value")

	assert.Equal(t, "section/budget", req.Task)
	assert.False(t, req.AllowWebSearch)
	assert.Contains(t, req.Prompt, "Value 2.4M EUR.")
	assert.Contains(t, req.Prompt, "Use only the document excerpts")

	a, ok := arts.saved[types.SectionBudget]
	require.True(t, ok)
	assert.Equal(t, "run-1", a.RunID)
	assert.Equal(t, "Fixed price of 2.4M EUR.", a.Analysis.Summary)
	assert.InDelta(t, 0.82, a.Analysis.Confidence, 1e-9)
}

func TestRun_RetryOverwritesArtifactWithEnrichment(t *testing.T) {
	arts := &memArtifacts{}
	var req reasoning.Request
	runner := New(&fakeRetriever{}, answer(goodAnalysis, &req), arts, types.CorpusConfig{}, nil)

	require.True(t, runner.Run(context.Background(), budgetRequest(0, false)).Success)
	res := runner.Run(context.Background(), budgetRequest(1, true))

	assert.True(t, res.Success)
	assert.Equal(t, 1, res.RetryAttempt)
	assert.True(t, req.AllowWebSearch)
	assert.Contains(t, req.Prompt, "external sources")
	require.Len(t, arts.saved, 1)
	assert.Equal(t, 1, arts.saved[types.SectionBudget].RetryAttempt)
	assert.True(t, arts.saved[types.SectionBudget].WebEnriched)
}

func TestRun_FailuresAreCaptured(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name    string
		req     Request
		r       *fakeRetriever
		backend reasoning.Backend
		arts    *memArtifacts
		wantErr string
	}{
		{
			name:    "unknown section",
			req:     Request{OpportunityID: "opp-1", Section: "pricing"},
			r:       &fakeRetriever{},
			backend: answer(goodAnalysis, nil),
			arts:    &memArtifacts{},
			wantErr: "unknown section",
		},
		{
			name:    "retrieval failure",
			req:     budgetRequest(0, false),
			r:       &fakeRetriever{err: errBoom},
			backend: answer(goodAnalysis, nil),
			arts:    &memArtifacts{},
			wantErr: "retrieving context: boom",
		},
		{
			name: "backend failure",
			req:  budgetRequest(0, false),
			r:    &fakeRetriever{},
			backend: reasoning.BackendFunc(func(context.Context, reasoning.Request, any) error {
				return errBoom
			}),
			arts:    &memArtifacts{},
			wantErr: "boom",
		},
		{
			name:    "schema violation",
			req:     budgetRequest(0, false),
			r:       &fakeRetriever{},
			backend: answer(`{"summary": "", "confidence": 0.5}`, nil),
			arts:    &memArtifacts{},
			wantErr: "schema",
		},
		{
			name:    "persistence failure",
			req:     budgetRequest(0, false),
			r:       &fakeRetriever{},
			backend: answer(goodAnalysis, nil),
			arts:    &memArtifacts{err: errBoom},
			wantErr: "persisting artifact: boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := New(tt.r, tt.backend, tt.arts, types.CorpusConfig{}, nil)
			res := runner.Run(context.Background(), tt.req)
			assert.False(t, res.Success)
			assert.Contains(t, res.Error, tt.wantErr)
			assert.Empty(t, tt.arts.saved)
		})
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	backend := reasoning.BackendFunc(func(ctx context.Context, _ reasoning.Request, _ any) error {
		return ctx.Err()
	})
	res := New(&fakeRetriever{}, backend, &memArtifacts{}, types.CorpusConfig{}, nil).Run(ctx, budgetRequest(0, false))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, context.Canceled.Error())
}

func TestAnalysisResponseValidate(t *testing.T) {
	assert.NoError(t, (&analysisResponse{Summary: "ok", Confidence: 0.4}).Validate())
	assert.NoError(t, (&analysisResponse{Summary: "ok", Confidence: 90}).Validate())
	assert.Error(t, (&analysisResponse{Summary: " "}).Validate())
	assert.Error(t, (&analysisResponse{Summary: "ok", Confidence: -1}).Validate())
	assert.Error(t, (&analysisResponse{Summary: "ok", Confidence: 101}).Validate())
}
