// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/bid-engine/internal/container"
	"github.com/pdiddy/bid-engine/internal/convert"
	"github.com/pdiddy/bid-engine/internal/store"
	"github.com/pdiddy/bid-engine/pkg/types"
)

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Manage the document corpus (ingest, query)",
	Long: `Corpus manages the local SQLite store of opportunity documents. Documents
are chunked by heading and indexed with FTS5; planning and section
analysis retrieve their context from it.`,
}

// --- ingest subcommand ---

var corpusIngestCmd = &cobra.Command{
	Use:   "ingest <opportunity> <dir>",
	Short: "Index the Markdown and text documents of an opportunity",
	Long: `Ingest walks dir for .md, .markdown, and .txt files and indexes them
under the opportunity. Unchanged files are skipped on subsequent runs;
changed files have their chunks replaced.

With --convert, PDF, Word, Excel, PowerPoint, and HTML attachments are first
converted to Markdown under dir/converted/ using the markitdown container
image (docker or podman), then indexed with the rest.`,
	Args: cobra.ExactArgs(2),
	RunE: runCorpusIngest,
}

func runCorpusIngest(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	dir := args[1]

	if doConvert, _ := cmd.Flags().GetBool("convert"); doConvert {
		if err := convertAttachments(ctx, dir); err != nil {
			return err
		}
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	summary, err := st.Ingest(ctx, args[0], dir, os.Stdout)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d document(s) failed indexing", summary.Failed)
	}
	return nil
}

// convertAttachments runs the markitdown converter over dir. Conversion
// failures are reported but do not stop ingest of the files that did convert.
func convertAttachments(ctx context.Context, dir string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rt, err := container.DetectRuntime(ctx)
	if err != nil {
		return err
	}
	conv, err := convert.NewMarkitdownConverter(ctx, rt, cfg.Corpus.ConverterImage)
	if err != nil {
		return err
	}

	summary, err := convert.ConvertDir(ctx, conv, dir, filepath.Join(dir, convert.OutputDir), os.Stdout)
	if err != nil {
		return err
	}
	if summary.HasFailures() {
		logger.Warn("corpus: some attachments failed conversion",
			zap.Int("failed", summary.Failed), zap.String("dir", dir))
	}
	return nil
}

// --- query subcommand ---

var corpusQueryCmd = &cobra.Command{
	Use:   "query <opportunity> [query...]",
	Short: "Search an opportunity's documents",
	Long: `Query runs a full-text search over the opportunity's documents and
prints ranked snippets. Without a query it prints the leading chunks,
which is the preview the planner sees.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCorpusQuery,
}

func runCorpusQuery(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	snippets, err := st.QueryContext(commandContext(cmd), args[0], strings.Join(args[1:], " "), limit)
	if err != nil {
		return err
	}
	return formatQueryOutput(snippets, jsonOutput)
}

func formatQueryOutput(snippets []types.Snippet, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snippets)
	}

	if len(snippets) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-30s  %-20s  %s\n", "Rank", "Document", "Heading", "Content")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))

	for i, s := range snippets {
		fmt.Fprintf(os.Stdout, "%-4d  %-30s  %-20s  %s\n",
			i+1, truncate(s.DocumentID, 30), truncate(s.Heading, 20), truncate(oneLine(s.Content), 50))
	}

	fmt.Fprintf(os.Stdout, "\n%d results\n", len(snippets))
	return nil
}

// --- shared helpers ---

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// openStore opens the corpus database named by the configuration.
func openStore() (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return store.NewStore(cfg.Corpus)
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func init() {
	corpusIngestCmd.Flags().Bool("convert", false, "convert PDF/Office attachments to Markdown before indexing")
	corpusQueryCmd.Flags().Int("limit", 10, "maximum number of snippets")
	corpusQueryCmd.Flags().Bool("json", false, "output results as JSON")

	corpusCmd.AddCommand(corpusIngestCmd)
	corpusCmd.AddCommand(corpusQueryCmd)

	rootCmd.AddCommand(corpusCmd)
}
