// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive mirrors ledger files into a SQLite database so results of
// many runs can be queried together. Each import is a run with its own id;
// every numeric cell is stored as one scalar row.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/rotor-bridge/internal/ledger"
	"github.com/pdiddy/rotor-bridge/pkg/types"
)

// Store manages the archive database.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens or creates the archive at cfg.Path and bootstraps the
// schema.
func NewStore(cfg types.ArchiveConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: archive path is empty", types.ErrConfiguration)
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: cfg.Path}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			ledger_path TEXT NOT NULL,
			file_mod_time TEXT NOT NULL,
			imported_at TEXT NOT NULL,
			columns TEXT NOT NULL,
			row_count INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ledger ON runs(ledger_path)`,
		`CREATE TABLE IF NOT EXISTS evaluations (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			row_num INTEGER NOT NULL,
			iteration INTEGER NOT NULL,
			time TEXT,
			PRIMARY KEY (run_id, row_num)
		)`,
		`CREATE TABLE IF NOT EXISTS scalars (
			run_id TEXT NOT NULL,
			row_num INTEGER NOT NULL,
			name TEXT NOT NULL,
			value REAL NOT NULL,
			PRIMARY KEY (run_id, row_num, name),
			FOREIGN KEY (run_id, row_num) REFERENCES evaluations(run_id, row_num) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scalars_name ON scalars(name, value)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Run describes one imported ledger.
type Run struct {
	ID         string    `json:"id" yaml:"id"`
	LedgerPath string    `json:"ledger_path" yaml:"ledger_path"`
	ImportedAt time.Time `json:"imported_at" yaml:"imported_at"`
	Columns    []string  `json:"columns" yaml:"columns"`
	Rows       int       `json:"rows" yaml:"rows"`
}

// ImportSummary reports the outcome of an Import.
type ImportSummary struct {
	RunID   string
	Rows    int
	Scalars int
	Skipped bool
}

// Import copies the ledger at path into a new run. A ledger whose file has
// not changed since its last import is skipped and the earlier run id is
// returned.
func (s *Store) Import(ctx context.Context, path string, w io.Writer) (ImportSummary, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ImportSummary{}, fmt.Errorf("reading ledger %s: %w", path, err)
	}
	modTime := info.ModTime().UTC().Format(time.RFC3339Nano)
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	var existing string
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM runs WHERE ledger_path = ? AND file_mod_time = ? ORDER BY imported_at DESC LIMIT 1`,
		abs, modTime,
	).Scan(&existing)
	if err == nil {
		fmt.Fprintf(w, "skipped %s (unchanged since run %s)\n", path, existing)
		return ImportSummary{RunID: existing, Skipped: true}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return ImportSummary{}, fmt.Errorf("checking previous imports: %w", err)
	}

	l, err := ledger.Load(path)
	if err != nil {
		return ImportSummary{}, err
	}

	sum := ImportSummary{RunID: uuid.NewString()}
	if err := s.importLedger(ctx, sum.RunID, abs, modTime, l, &sum); err != nil {
		return ImportSummary{}, err
	}
	fmt.Fprintf(w, "imported %s as run %s (%d rows, %d scalars)\n", path, sum.RunID, sum.Rows, sum.Scalars)
	return sum, nil
}

func (s *Store) importLedger(ctx context.Context, runID, path, modTime string, l *ledger.Ledger, sum *ImportSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	columns := l.Columns()
	columnsJSON, _ := json.Marshal(columns)
	rows := l.Rows()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, ledger_path, file_mod_time, imported_at, columns, row_count)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, path, modTime, time.Now().UTC().Format(time.RFC3339Nano), string(columnsJSON), len(rows),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	evalStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO evaluations (run_id, row_num, iteration, time) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer evalStmt.Close()

	scalarStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO scalars (run_id, row_num, name, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer scalarStmt.Close()

	for n, r := range rows {
		if _, err := evalStmt.ExecContext(ctx, runID, n, r.Iteration, r.Text(types.ColumnTime)); err != nil {
			return fmt.Errorf("inserting iteration %d: %w", r.Iteration, err)
		}
		for _, c := range columns {
			if c == types.ColumnIteration || c == types.ColumnTime {
				continue
			}
			v, err := strconv.ParseFloat(r.Text(c), 64)
			if err != nil {
				continue
			}
			if _, err := scalarStmt.ExecContext(ctx, runID, n, c, v); err != nil {
				return fmt.Errorf("inserting %s of iteration %d: %w", c, r.Iteration, err)
			}
			sum.Scalars++
		}
		sum.Rows++
	}

	return tx.Commit()
}

// Runs lists imported runs, most recent first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ledger_path, imported_at, columns, row_count FROM runs ORDER BY imported_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var imported, columns string
		if err := rows.Scan(&r.ID, &r.LedgerPath, &imported, &columns, &r.Rows); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.ImportedAt, _ = time.Parse(time.RFC3339Nano, imported)
		_ = json.Unmarshal([]byte(columns), &r.Columns)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
