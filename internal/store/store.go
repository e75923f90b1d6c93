// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists opportunity documents, section artifacts, and
// decisions in SQLite. Document chunks are indexed with FTS5 and serve as
// the retrieval corpus for planning and section analysis.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/bid-engine/pkg/types"
)

const (
	indexDir   = "index"
	exportsDir = "exports"
	dbFile     = "bid-engine.db"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Store manages the SQLite database.
type Store struct {
	db      *sql.DB
	dataDir string
}

// NewStore opens or creates the database at dataDir/index/bid-engine.db and
// creates the schema if it does not exist.
func NewStore(cfg types.CorpusConfig) (*Store, error) {
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "data"
	}
	dbDir := filepath.Join(dataDir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Section runners save artifacts concurrently; one connection
	// serializes writers instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dataDir: dataDir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			opportunity_id TEXT NOT NULL,
			path TEXT NOT NULL,
			title TEXT,
			file_mod_time TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_opportunity ON documents(opportunity_id)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			opportunity_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			heading TEXT,
			content TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_opportunity ON chunks(opportunity_id, document_id, position)`,
		`CREATE TABLE IF NOT EXISTS artifacts (
			opportunity_id TEXT NOT NULL,
			section_id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			retry_attempt INTEGER NOT NULL,
			web_enriched INTEGER NOT NULL,
			analysis TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (opportunity_id, section_id)
		)`,
		`CREATE TABLE IF NOT EXISTS decisions (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			opportunity_id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			recommendation TEXT NOT NULL,
			confidence INTEGER NOT NULL,
			payload TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_opportunity ON decisions(opportunity_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='chunks_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE chunks_fts USING fts5(heading, content, content=chunks, content_rowid=rowid)`,
			`CREATE TRIGGER chunks_ai AFTER INSERT ON chunks BEGIN
				INSERT INTO chunks_fts(rowid, heading, content) VALUES (new.rowid, new.heading, new.content);
			END`,
			`CREATE TRIGGER chunks_ad AFTER DELETE ON chunks BEGIN
				INSERT INTO chunks_fts(chunks_fts, rowid, heading, content) VALUES('delete', old.rowid, old.heading, old.content);
			END`,
			`CREATE TRIGGER chunks_au AFTER UPDATE ON chunks BEGIN
				INSERT INTO chunks_fts(chunks_fts, rowid, heading, content) VALUES('delete', old.rowid, old.heading, old.content);
				INSERT INTO chunks_fts(rowid, heading, content) VALUES (new.rowid, new.heading, new.content);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}
