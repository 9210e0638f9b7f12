// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package vaultindex maintains a SQLite index of generated notes, so past
// research runs and their output can be listed and searched without
// rescanning the vault.
package vaultindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	indexDirName = ".obsidian-research"
	dbFile       = "index.db"
)

// Store manages the vault index SQLite database.
type Store struct {
	db         *sql.DB
	vaultDir   string
	maxResults int
}

// NewStore opens or creates the index database at
// vaultDir/.obsidian-research/index.db, creating the schema if needed.
func NewStore(vaultDir string, maxResults int) (*Store, error) {
	dbDir := filepath.Join(vaultDir, indexDirName)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{
		db:         db,
		vaultDir:   vaultDir,
		maxResults: maxResults,
	}

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
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			query TEXT,
			root_path TEXT,
			planned INTEGER,
			created INTEGER,
			timestamp TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS notes (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			basename TEXT NOT NULL UNIQUE,
			path TEXT NOT NULL,
			title TEXT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			parent_basename TEXT,
			level INTEGER,
			concepts TEXT,
			body TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_run_id ON notes(run_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='notes_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE notes_fts USING fts5(title, body, content=notes, content_rowid=rowid)`,
			`CREATE TRIGGER notes_ai AFTER INSERT ON notes BEGIN
				INSERT INTO notes_fts(rowid, title, body) VALUES (new.rowid, new.title, new.body);
			END`,
			`CREATE TRIGGER notes_ad AFTER DELETE ON notes BEGIN
				INSERT INTO notes_fts(notes_fts, rowid, title, body) VALUES('delete', old.rowid, old.title, old.body);
			END`,
			`CREATE TRIGGER notes_au AFTER UPDATE ON notes BEGIN
				INSERT INTO notes_fts(notes_fts, rowid, title, body) VALUES('delete', old.rowid, old.title, old.body);
				INSERT INTO notes_fts(rowid, title, body) VALUES (new.rowid, new.title, new.body);
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

// RunRecord describes one research run.
type RunRecord struct {
	ID        string
	Query     string
	RootPath  string
	Planned   int
	Created   int
	Timestamp time.Time
}

// NoteRecord describes one generated note file.
type NoteRecord struct {
	Basename       string
	Path           string
	Title          string
	ParentBasename string
	Level          int
	Concepts       []string
	Body           string
}

// Record stores a run and its generated notes in one transaction. A note
// whose basename already exists (a re-run with a required root name) is
// replaced, keeping the index consistent with the file on disk.
func (s *Store) Record(ctx context.Context, run RunRecord, notes []NoteRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, query, root_path, planned, created, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Query, run.RootPath, run.Planned, run.Created,
		run.Timestamp.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO notes (basename, path, title, run_id, parent_basename, level, concepts, body)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(basename) DO UPDATE SET
			path=excluded.path, title=excluded.title, run_id=excluded.run_id,
			parent_basename=excluded.parent_basename, level=excluded.level,
			concepts=excluded.concepts, body=excluded.body`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, n := range notes {
		conceptsJSON, _ := json.Marshal(n.Concepts)
		_, err := stmt.ExecContext(ctx,
			n.Basename, n.Path, n.Title, run.ID,
			n.ParentBasename, n.Level, string(conceptsJSON), n.Body,
		)
		if err != nil {
			return fmt.Errorf("inserting note %s: %w", n.Basename, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Runs lists recorded runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, root_path, planned, created, timestamp
		 FROM runs ORDER BY timestamp DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var (
			r  RunRecord
			ts string
		)
		if err := rows.Scan(&r.ID, &r.Query, &r.RootPath, &r.Planned, &r.Created, &ts); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			r.Timestamp = t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
