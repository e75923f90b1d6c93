// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns tender attachments (PDF, Word, Excel, PowerPoint,
// HTML) into Markdown so the corpus can index them.
package convert

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

// OutputDir is the subdirectory of an opportunity's document directory
// that receives converted Markdown.
const OutputDir = "converted"

// Extensions lists the attachment types sent to the converter.
var Extensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".xlsx": true,
	".pptx": true,
	".html": true,
	".htm":  true,
}

// Converter transforms one attachment into Markdown text.
type Converter interface {
	Convert(ctx context.Context, path string) (string, error)
}

// Summary holds the outcome of a directory conversion.
type Summary struct {
	Converted int
	Skipped   int
	Failed    int
}

// Total returns the number of attachments processed.
func (s Summary) Total() int {
	return s.Converted + s.Skipped + s.Failed
}

// HasFailures reports whether any attachment failed conversion.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

// header is the front matter written above converted Markdown. The store
// reads title from it.
type header struct {
	Title       string `yaml:"title"`
	Source      string `yaml:"source"`
	ConvertedAt string `yaml:"converted_at"`
}

// ConvertDir converts every attachment under srcDir into outDir, keeping
// the relative layout. Output is named after the full source file name
// (tender.pdf becomes tender.pdf.md) so attachments that differ only by
// extension do not collide. An attachment whose output is at least as new
// as the source is skipped. outDir itself and hidden directories are not
// walked.
//
// Per-file failures are counted and reported to w; ConvertDir only returns
// an error when srcDir cannot be walked or ctx is cancelled.
func ConvertDir(ctx context.Context, c Converter, srcDir, outDir string, w io.Writer) (Summary, error) {
	absOut, _ := filepath.Abs(outDir)

	var paths []string
	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == srcDir {
				return nil
			}
			if abs, _ := filepath.Abs(path); abs == absOut || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if Extensions[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return Summary{}, fmt.Errorf("walking attachment directory %s: %w", srcDir, err)
	}

	var summary Summary
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		mdPath := filepath.Join(outDir, rel+".md")

		if upToDate(path, mdPath) {
			fmt.Fprintf(w, "skipped:   %s (up to date)\n", rel)
			summary.Skipped++
			continue
		}

		if err := convertFile(ctx, c, path, mdPath); err != nil {
			fmt.Fprintf(w, "failed:    %s (%v)\n", rel, err)
			summary.Failed++
			continue
		}
		fmt.Fprintf(w, "converted: %s\n", rel)
		summary.Converted++
	}

	fmt.Fprintf(w, "\nConversion summary: %d converted, %d skipped, %d failed (total: %d)\n",
		summary.Converted, summary.Skipped, summary.Failed, summary.Total())
	return summary, nil
}

func convertFile(ctx context.Context, c Converter, path, mdPath string) error {
	body, err := c.Convert(ctx, path)
	if err != nil {
		return err
	}
	content, err := withFrontMatter(path, body)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(mdPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(mdPath, []byte(content), 0o644)
}

func upToDate(src, out string) bool {
	si, err := os.Stat(src)
	if err != nil {
		return false
	}
	oi, err := os.Stat(out)
	if err != nil {
		return false
	}
	return !oi.ModTime().Before(si.ModTime())
}

func withFrontMatter(path, body string) (string, error) {
	h := header{
		Title:       strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Source:      path,
		ConvertedAt: time.Now().UTC().Format(time.RFC3339),
	}
	data, err := yaml.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("encoding front matter: %w", err)
	}
	var b strings.Builder
	b.WriteString("---\n")
	b.Write(data)
	b.WriteString("---\n\n")
	b.WriteString(body)
	return b.String(), nil
}
