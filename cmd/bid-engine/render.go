// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pdiddy/bid-engine/pkg/types"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
)

func recommendationStyle(r types.Recommendation) lipgloss.Style {
	switch r {
	case types.RecommendBid:
		return okStyle.Bold(true)
	case types.RecommendConditional:
		return warnStyle.Bold(true)
	default:
		return failStyle.Bold(true)
	}
}

// renderResult formats a run for the terminal: a decision box followed
// by one line per section.
func renderResult(res types.OrchestratorResult) string {
	var blocks []string

	header := titleStyle.Render("Opportunity "+res.OpportunityID) + "  " + mutedStyle.Render("run "+res.RunID)
	blocks = append(blocks, header)

	if res.Decision != nil {
		blocks = append(blocks, boxStyle.Render(renderDecision(*res.Decision)))
	} else {
		blocks = append(blocks, failStyle.Render("No decision: "+res.Error))
	}

	if len(res.Results) > 0 {
		blocks = append(blocks, renderSections(res.Results))
	}

	planLine := "plan: model"
	if res.Plan != nil && res.Plan.Fallback {
		planLine = "plan: fallback"
	}
	summary := fmt.Sprintf("%d/%d sections completed, %s", res.CompletedSections, len(res.Results), planLine)
	blocks = append(blocks, mutedStyle.Render(summary))

	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

func renderDecision(d types.Decision) string {
	var b strings.Builder
	b.WriteString(recommendationStyle(d.Recommendation).Render(strings.ToUpper(string(d.Recommendation))))
	fmt.Fprintf(&b, "  confidence %d%%\n", d.Confidence)
	if d.Reasoning != "" {
		b.WriteString("\n" + d.Reasoning + "\n")
	}
	writeList(&b, "Strengths", d.Strengths, okStyle)
	writeList(&b, "Weaknesses", d.Weaknesses, failStyle)
	writeList(&b, "Conditions", d.Conditions, warnStyle)
	return strings.TrimRight(b.String(), "\n")
}

func writeList(b *strings.Builder, title string, items []string, style lipgloss.Style) {
	if len(items) == 0 {
		return
	}
	b.WriteString("\n" + titleStyle.Render(title) + "\n")
	for _, item := range items {
		b.WriteString(style.Render("  • ") + item + "\n")
	}
}

func renderSections(results []types.SectionResult) string {
	var lines []string
	for _, r := range results {
		status := okStyle.Render("ok    ")
		if !r.Success {
			status = failStyle.Render("failed")
		}
		line := fmt.Sprintf("%s  %-16s", status, r.SectionID)
		if r.QualityScore != nil {
			line += fmt.Sprintf("  quality %3d", *r.QualityScore)
		}
		if r.RetryAttempt > 0 {
			line += warnStyle.Render(fmt.Sprintf("  retried %d", r.RetryAttempt))
		}
		if r.Error != "" {
			line += "  " + mutedStyle.Render(r.Error)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
