// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evaluate

import (
	"bytes"
	"text/template"

	"github.com/pdiddy/bid-engine/pkg/types"
)

const evaluationSystemPrompt = `You review the analysis of one section of a tender opportunity and grade how complete and well-supported it is.`

const evaluationSchema = `{"quality_score": 70, "confidence": 80, "completeness": 65, "needs_retry": false, "reasoning": "Value and payment terms are covered; penalties are not."}`

var evaluationPromptTmpl = template.Must(template.New("evaluate").Parse(`Section: {{.SectionID}}
Web enrichment used: {{.WebEnriched}}

Summary:
{{.Analysis.Summary}}

Findings:
{{range .Analysis.Findings}}- {{.}}
{{else}}(none)
{{end}}
Risks:
{{range .Analysis.Risks}}- {{.}}
{{else}}(none)
{{end}}
Stated confidence: {{printf "%.2f" .Analysis.Confidence}}

Grade quality, confidence, and completeness from 0 to 100 and say whether the section should be analyzed again with external sources.`))

func renderEvaluationPrompt(a types.Artifact) (string, error) {
	var buf bytes.Buffer
	if err := evaluationPromptTmpl.Execute(&buf, a); err != nil {
		return "", err
	}
	return buf.String(), nil
}
