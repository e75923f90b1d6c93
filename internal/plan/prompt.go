// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package plan

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/pdiddy/bid-engine/pkg/types"
)

const planSystemPrompt = `You plan the qualification of a public tender opportunity for a bid/no-bid decision. Each section is analyzed independently by a separate worker.`

const planSchema = `{"tasks": [{"section_id": "budget", "priority": "critical", "requires_web_enrichment": true, "goal": "Establish the contract value and payment terms."}], "strategy": {"mode": "hybrid", "max_concurrency": 5}}`

var planPromptTmpl = template.Must(template.New("plan").Parse(`Create an analysis plan for opportunity {{.OpportunityID}}.

Return exactly one task for each of these sections: {{.Sections}}.
For each task choose a priority (critical, high, medium, low), decide whether the analysis needs facts from outside the tender documents, and state a one-sentence goal.
Choose a strategy mode (documents-first, web-enriched, hybrid) and a max_concurrency between 1 and 10.

Document preview:
{{range .Preview}}
--- {{.DocumentID}}{{if .Heading}} / {{.Heading}}{{end}}
{{.Content}}
{{else}}
(no documents indexed)
{{end}}`))

func renderPlanPrompt(opportunityID string, preview []types.Snippet) (string, error) {
	var names []string
	for _, id := range types.AllSections() {
		names = append(names, string(id))
	}
	var buf bytes.Buffer
	err := planPromptTmpl.Execute(&buf, struct {
		OpportunityID string
		Sections      string
		Preview       []types.Snippet
	}{
		OpportunityID: opportunityID,
		Sections:      strings.Join(names, ", "),
		Preview:       preview,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
