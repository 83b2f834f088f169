// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"
)

const (
	defaultLimit = 10
	exportLimit  = 1000000
)

// QueryOptions selects evaluations for Best.
type QueryOptions struct {
	// Column is the scalar to rank by, e.g. "Observer21" or "TotalThrust".
	Column string

	// Maximize ranks the largest values first. Acoustic objectives are
	// minimized, performance objectives maximized.
	Maximize bool

	// RunID restricts the query to one run.
	RunID string

	// Exclude drops rows whose ranked value equals one of these, typically
	// the penalty sentinels.
	Exclude []float64

	// Limit caps the result count. Zero uses 10.
	Limit int
}

// Result is one ranked evaluation.
type Result struct {
	RunID      string  `json:"run_id" yaml:"run_id"`
	LedgerPath string  `json:"ledger_path" yaml:"ledger_path"`
	Iteration  int     `json:"iteration" yaml:"iteration"`
	Time       string  `json:"time" yaml:"time"`
	Value      float64 `json:"value" yaml:"value"`
}

// Best returns the top evaluations by opts.Column.
func (s *Store) Best(ctx context.Context, opts QueryOptions) ([]Result, error) {
	if opts.Column == "" {
		return nil, fmt.Errorf("no column to rank by")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT e.run_id, r.ledger_path, e.iteration, COALESCE(e.time, ''), sc.value
		FROM scalars sc
		JOIN evaluations e ON e.run_id = sc.run_id AND e.row_num = sc.row_num
		JOIN runs r ON r.id = e.run_id
		WHERE sc.name = ?`)
	args = append(args, opts.Column)

	if opts.RunID != "" {
		qb.WriteString(` AND e.run_id = ?`)
		args = append(args, opts.RunID)
	}
	if len(opts.Exclude) > 0 {
		qb.WriteString(` AND sc.value NOT IN (?` + strings.Repeat(`, ?`, len(opts.Exclude)-1) + `)`)
		for _, v := range opts.Exclude {
			args = append(args, v)
		}
	}

	order := "ASC"
	if opts.Maximize {
		order = "DESC"
	}
	qb.WriteString(` ORDER BY sc.value ` + order + `, r.imported_at DESC, e.iteration ASC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying best %s: %w", opts.Column, err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.RunID, &r.LedgerPath, &r.Iteration, &r.Time, &r.Value); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ExportEntry is one archived evaluation with all of its scalars.
type ExportEntry struct {
	RunID     string             `json:"run_id" yaml:"run_id"`
	Iteration int                `json:"iteration" yaml:"iteration"`
	Time      string             `json:"time,omitempty" yaml:"time,omitempty"`
	Values    map[string]float64 `json:"values" yaml:"values"`
}

// ExportYAML writes the evaluations of runID (all runs when empty) to path.
func (s *Store) ExportYAML(ctx context.Context, runID, path string) error {
	entries, err := s.exportEntries(ctx, runID)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ExportJSON writes the evaluations of runID (all runs when empty) to path.
func (s *Store) ExportJSON(ctx context.Context, runID, path string) error {
	entries, err := s.exportEntries(ctx, runID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *Store) exportEntries(ctx context.Context, runID string) ([]ExportEntry, error) {
	query := `SELECT e.run_id, e.row_num, e.iteration, COALESCE(e.time, ''), sc.name, sc.value
		FROM evaluations e
		JOIN runs r ON r.id = e.run_id
		LEFT JOIN scalars sc ON sc.run_id = e.run_id AND sc.row_num = e.row_num
		WHERE (? = '' OR e.run_id = ?)
		ORDER BY r.imported_at, e.run_id, e.row_num
		LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, runID, runID, exportLimit)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}
	defer rows.Close()

	type key struct {
		run string
		row int
	}
	var (
		entries []ExportEntry
		last    key
		started bool
	)
	for rows.Next() {
		var (
			k     key
			iter  int
			ts    string
			name  *string
			value *float64
		)
		if err := rows.Scan(&k.run, &k.row, &iter, &ts, &name, &value); err != nil {
			return nil, fmt.Errorf("scanning export row: %w", err)
		}
		if !started || k != last {
			entries = append(entries, ExportEntry{RunID: k.run, Iteration: iter, Time: ts, Values: map[string]float64{}})
			last, started = k, true
		}
		if name != nil && value != nil {
			entries[len(entries)-1].Values[*name] = *value
		}
	}
	return entries, rows.Err()
}
