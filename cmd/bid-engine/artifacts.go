// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var artifactsCmd = &cobra.Command{
	Use:   "artifacts <opportunity>",
	Short: "Show or export the stored analyses and decision of an opportunity",
	Long: `Artifacts prints the latest section analyses and the most recent
decision stored for an opportunity. With --export, it writes them to
data/exports/<opportunity>.yaml or .json instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runArtifacts,
}

func runArtifacts(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("export")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	opportunityID := args[0]

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	ctx := context.Background()

	switch format {
	case "":
	case "yaml":
		path, err := st.ExportYAML(ctx, opportunityID)
		if err != nil {
			return err
		}
		fmt.Println("Exported to", path)
		return nil
	case "json":
		path, err := st.ExportJSON(ctx, opportunityID)
		if err != nil {
			return err
		}
		fmt.Println("Exported to", path)
		return nil
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}

	report, err := st.BuildReport(ctx, opportunityID)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	if len(report.Artifacts) == 0 && report.Decision == nil {
		fmt.Printf("Nothing stored for %s.\n", opportunityID)
		return nil
	}

	if report.Decision != nil {
		fmt.Println(titleStyle.Render("Decision") + "  " +
			mutedStyle.Render(fmt.Sprintf("run %s, %s", report.Decision.RunID, report.Decision.CreatedAt.Format("2006-01-02 15:04"))))
		fmt.Println(boxStyle.Render(renderDecision(report.Decision.Decision)))
	}
	for _, a := range report.Artifacts {
		line := fmt.Sprintf("%-16s  confidence %3.0f%%", a.SectionID, a.Analysis.Confidence*100)
		if a.WebEnriched {
			line += warnStyle.Render("  web")
		}
		if a.RetryAttempt > 0 {
			line += warnStyle.Render(fmt.Sprintf("  retry %d", a.RetryAttempt))
		}
		fmt.Println(titleStyle.Render(line))
		fmt.Println("  " + a.Analysis.Summary)
		for _, r := range a.Analysis.Risks {
			fmt.Println(failStyle.Render("  ! ") + r)
		}
	}
	return nil
}

func init() {
	artifactsCmd.Flags().String("export", "", "write an export file instead of printing: yaml or json")
	artifactsCmd.Flags().Bool("json", false, "print the report as JSON")

	rootCmd.AddCommand(artifactsCmd)
}
