// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package decide

import (
	"bytes"
	"text/template"

	"github.com/pdiddy/bid-engine/pkg/types"
)

const decisionSystemPrompt = `You decide whether a company should bid on a public tender opportunity, based on independent analyses of its sections. Sections that failed to analyze are unknowns and count as risk.`

const decisionSchema = `{"recommendation": "conditional-bid", "confidence": 0.7, "reasoning": "Good fit if the timeline can be extended.", "strengths": ["Relevant references"], "weaknesses": ["Tight timeline"], "conditions": ["Timeline extended by two months"]}`

var decisionPromptTmpl = template.Must(template.New("decision").Parse(`Opportunity: {{.OpportunityID}}
Sections analyzed: {{.Outcome.Successful}} of {{.Outcome.Total}} (success rate {{printf "%.0f" .Rate}}%)
Failed sections: {{range $i, $s := .Outcome.FailedSections}}{{if $i}}, {{end}}{{$s}}{{else}}none{{end}}

Section results:
{{range .Results}}- {{.SectionID}}: {{if .Success}}ok{{else}}failed ({{.Error}}){{end}}{{if .QualityScore}}, quality {{.QualityScore}}{{end}}{{if .RetryAttempt}}, retried {{.RetryAttempt}}x{{end}}
{{end}}
{{range .Artifacts}}
## {{.SectionID}}
{{.Analysis.Summary}}
{{range .Analysis.Findings}}+ {{.}}
{{end}}{{range .Analysis.Risks}}! {{.}}
{{end}}{{end}}
Recommend bid, no-bid, or conditional-bid. List conditions only for conditional-bid.`))

func renderDecisionPrompt(opportunityID string, outcome Outcome, results []types.SectionResult, artifacts []types.Artifact) (string, error) {
	var buf bytes.Buffer
	err := decisionPromptTmpl.Execute(&buf, struct {
		OpportunityID string
		Outcome       Outcome
		Rate          float64
		Results       []types.SectionResult
		Artifacts     []types.Artifact
	}{
		OpportunityID: opportunityID,
		Outcome:       outcome,
		Rate:          outcome.SuccessRate * 100,
		Results:       results,
		Artifacts:     artifacts,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
