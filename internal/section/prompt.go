// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package section

import (
	"bytes"
	"text/template"

	"github.com/pdiddy/bid-engine/pkg/types"
)

// sectionQueries are the retrieval terms for each section.
var sectionQueries = map[types.SectionID]string{
	types.SectionBudget:         "budget value price cost payment financial",
	types.SectionTiming:         "deadline schedule timeline start duration milestone",
	types.SectionContracts:      "contract liability penalty warranty insurance terms",
	types.SectionDeliverables:   "deliverables scope services works requirements",
	types.SectionReferences:     "references experience similar projects qualification",
	types.SectionAwardCriteria:  "award criteria weighting evaluation score",
	types.SectionOfferStructure: "offer submission format documents envelope structure",
}

const sectionSystemPrompt = `You analyze one section of a public tender opportunity for a bid/no-bid decision. Base your answer on the supplied document excerpts and state a confidence between 0 and 1.`

const analysisSchema = `{"summary": "The contract is valued at 2.4M EUR paid in three milestones.", "findings": ["Fixed price"], "risks": ["Late payment penalties are uncapped"], "confidence": 0.8}`

var sectionPromptTmpl = template.Must(template.New("section").Parse(`Opportunity: {{.OpportunityID}}
Section: {{.Section}}
Goal: {{.Goal}}
{{if .AllowWebEnrichment}}You may consult external sources to complete facts missing from the documents.
{{else}}Use only the document excerpts below.
{{end}}
Document excerpts:
{{range .Snippets}}
--- {{.DocumentID}}{{if .Heading}} / {{.Heading}}{{end}}
{{.Content}}
{{else}}
(no matching excerpts)
{{end}}`))

func renderSectionPrompt(req Request, snippets []types.Snippet) (string, error) {
	var buf bytes.Buffer
	err := sectionPromptTmpl.Execute(&buf, struct {
		Request
		Snippets []types.Snippet
	}{req, snippets})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
