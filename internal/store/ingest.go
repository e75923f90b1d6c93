// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

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

// maxChunkChars bounds the size of one indexed chunk. Longer sections are
// split at paragraph boundaries.
const maxChunkChars = 2000

// documentExts lists the file types ingested into the corpus.
var documentExts = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
}

// IngestSummary holds counts from a corpus ingestion run.
type IngestSummary struct {
	Indexed int
	Updated int
	Skipped int
	Failed  int
	Chunks  int
}

// Total returns the number of documents processed.
func (s IngestSummary) Total() int {
	return s.Indexed + s.Updated + s.Skipped + s.Failed
}

// frontMatter is the optional YAML header of a document.
type frontMatter struct {
	Title string `yaml:"title"`
}

// Ingest indexes every Markdown or text document under dir for the given
// opportunity. Unchanged documents (same modification time) are skipped;
// changed ones have their chunks replaced.
func (s *Store) Ingest(ctx context.Context, opportunityID, dir string, w io.Writer) (IngestSummary, error) {
	if strings.TrimSpace(opportunityID) == "" {
		return IngestSummary{}, fmt.Errorf("opportunity ID is required")
	}

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if documentExts[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return IngestSummary{}, fmt.Errorf("walking document directory %s: %w", dir, err)
	}

	var summary IngestSummary

	for _, path := range paths {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		docID := opportunityID + "/" + filepath.ToSlash(rel)

		info, err := os.Stat(path)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", rel, err)
			summary.Failed++
			continue
		}
		modTime := info.ModTime().UTC().Format(time.RFC3339Nano)

		var storedModTime string
		err = s.db.QueryRowContext(ctx,
			`SELECT file_mod_time FROM documents WHERE id = ?`, docID,
		).Scan(&storedModTime)
		if err == nil && storedModTime == modTime {
			fmt.Fprintf(w, "skipped %s\n", rel)
			summary.Skipped++
			continue
		}
		isUpdate := err == nil

		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", rel, err)
			summary.Failed++
			continue
		}

		title, body := splitFrontMatter(string(data))
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		chunks := chunkByHeadings(body)

		if err := s.ingestDocument(ctx, opportunityID, docID, rel, title, modTime, chunks); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", rel, err)
			summary.Failed++
			continue
		}

		summary.Chunks += len(chunks)
		if isUpdate {
			fmt.Fprintf(w, "updated %s (%d chunks)\n", rel, len(chunks))
			summary.Updated++
		} else {
			fmt.Fprintf(w, "indexed %s (%d chunks)\n", rel, len(chunks))
			summary.Indexed++
		}
	}

	fmt.Fprintf(w, "\nindexed: %d, updated: %d, skipped: %d, failed: %d\n",
		summary.Indexed, summary.Updated, summary.Skipped, summary.Failed)

	return summary, nil
}

func (s *Store) ingestDocument(ctx context.Context, opportunityID, docID, path, title, modTime string, chunks []chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, docID); err != nil {
		return fmt.Errorf("deleting old chunks: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, opportunity_id, path, title, file_mod_time)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			path=excluded.path, title=excluded.title, file_mod_time=excluded.file_mod_time`,
		docID, opportunityID, path, title, modTime,
	)
	if err != nil {
		return fmt.Errorf("upserting document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (document_id, opportunity_id, position, heading, content)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx, docID, opportunityID, i, c.heading, c.body); err != nil {
			return fmt.Errorf("inserting chunk %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// splitFrontMatter separates an optional leading YAML block delimited by
// "---" lines and returns its title along with the remaining body.
func splitFrontMatter(content string) (string, string) {
	if !strings.HasPrefix(content, "---\n") {
		return "", content
	}
	rest := content[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return "", content
	}
	var fm frontMatter
	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		return "", content
	}
	body := strings.TrimPrefix(rest[end+len("\n---"):], "\n")
	return strings.TrimSpace(fm.Title), body
}

// chunk is a piece of a document under one heading.
type chunk struct {
	heading string
	body    string
}

// chunkByHeadings splits Markdown at heading lines (#, ##, ###). Sections
// longer than maxChunkChars are split further at blank lines. Empty
// sections are dropped.
func chunkByHeadings(content string) []chunk {
	var chunks []chunk
	heading := ""
	var bodyLines []string

	flush := func() {
		body := strings.TrimSpace(strings.Join(bodyLines, "\n"))
		bodyLines = nil
		if body == "" {
			return
		}
		for _, part := range splitLong(body) {
			chunks = append(chunks, chunk{heading: heading, body: part})
		}
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if isHeading(trimmed) {
			flush()
			heading = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			continue
		}
		bodyLines = append(bodyLines, line)
	}
	flush()

	return chunks
}

func isHeading(line string) bool {
	return strings.HasPrefix(line, "# ") || strings.HasPrefix(line, "## ") || strings.HasPrefix(line, "### ")
}

// splitLong breaks body into parts of at most maxChunkChars, cutting at
// paragraph boundaries. A single paragraph longer than the limit is kept
// whole.
func splitLong(body string) []string {
	if len(body) <= maxChunkChars {
		return []string{body}
	}
	var parts []string
	var cur strings.Builder
	for _, para := range strings.Split(body, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if cur.Len() > 0 && cur.Len()+len(para)+2 > maxChunkChars {
			parts = append(parts, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(para)
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}
