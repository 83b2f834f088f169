// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records every evaluated iteration in a CSV file. A row is
// appended with zero-filled scalars when an iteration starts and patched as
// results arrive. Every mutation rewrites the whole file through a temp file
// and rename, so the file on disk is always consistent through the last
// completed call.
package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/rotor-bridge/pkg/types"
)

// zeroCell is the placeholder written into scalar columns of a new row.
const zeroCell = "0"

type row struct {
	iteration int
	cells     []string
}

// Ledger is the in-memory view of the ledger file, indexed by iteration.
// Rows keep file order; duplicate iterations are allowed and patched
// together.
type Ledger struct {
	mu      sync.Mutex
	path    string
	columns []string
	index   map[string]int
	rows    []*row
	byIter  map[int][]*row
	log     *logrus.Entry
}

// Open loads the ledger at path, reusing its column set exactly. When the
// file does not exist (or is empty) it is created with defaultColumns, which
// must include types.ColumnIteration.
func Open(path string, defaultColumns []string) (*Ledger, error) {
	l, err := load(path)
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	l, err = newLedger(path, defaultColumns)
	if err != nil {
		return nil, err
	}
	if err := l.flush(); err != nil {
		return nil, err
	}
	l.log.WithField("columns", len(l.columns)).Info("created ledger")
	return l, nil
}

// Load reads an existing ledger file. A missing file is reported with
// fs.ErrNotExist.
func Load(path string) (*Ledger, error) {
	return load(path)
}

func newLedger(path string, columns []string) (*Ledger, error) {
	l := &Ledger{
		path:    path,
		columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
		byIter:  make(map[int][]*row),
		log:     logrus.WithField("ledger", path),
	}
	for i, c := range columns {
		if c == "" {
			return nil, fmt.Errorf("%w: empty column name at position %d", types.ErrLedgerSchema, i)
		}
		if _, dup := l.index[c]; dup {
			return nil, fmt.Errorf("%w: duplicate column %s", types.ErrLedgerSchema, c)
		}
		l.index[c] = i
	}
	if _, ok := l.index[types.ColumnIteration]; !ok {
		return nil, fmt.Errorf("%w: no %s column", types.ErrLedgerSchema, types.ColumnIteration)
	}
	return l, nil
}

func load(path string) (*Ledger, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", types.ErrLedgerSchema, path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("ledger %s is empty: %w", path, fs.ErrNotExist)
	}

	l, err := newLedger(path, records[0])
	if err != nil {
		return nil, fmt.Errorf("ledger %s: %w", path, err)
	}
	iterCol := l.index[types.ColumnIteration]
	for n, rec := range records[1:] {
		it, err := parseIteration(rec[iterCol])
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", types.ErrLedgerSchema, path, n+2, err)
		}
		l.insert(&row{iteration: it, cells: rec})
	}
	l.log.WithField("rows", len(l.rows)).Debug("loaded ledger")
	return l, nil
}

// parseIteration accepts integers and integral floats ("5" or "5.0").
func parseIteration(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid iteration %q", s)
	}
	return int(f), nil
}

func (l *Ledger) insert(r *row) {
	l.rows = append(l.rows, r)
	l.byIter[r.iteration] = append(l.byIter[r.iteration], r)
}

// Path returns the backing file.
func (l *Ledger) Path() string { return l.path }

// Columns returns the fixed column schema.
func (l *Ledger) Columns() []string {
	return append([]string(nil), l.columns...)
}

// HasColumn reports whether column is part of the schema.
func (l *Ledger) HasColumn(column string) bool {
	_, ok := l.index[column]
	return ok
}

// Len returns the number of rows.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows)
}

// Has reports whether iteration has been appended.
func (l *Ledger) Has(iteration int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byIter[iteration]) > 0
}

// Append adds a row for iteration with every scalar column zero and the
// timestamp empty, then rewrites the file. Calling it twice for the same
// iteration produces two rows; callers append exactly once per iteration.
func (l *Ledger) Append(iteration int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cells := make([]string, len(l.columns))
	for i, c := range l.columns {
		switch c {
		case types.ColumnIteration:
			cells[i] = strconv.Itoa(iteration)
		case types.ColumnTime:
			cells[i] = ""
		default:
			cells[i] = zeroCell
		}
	}
	l.insert(&row{iteration: iteration, cells: cells})
	return l.flush()
}

// Patch sets column values on every row of iteration. Accepted shapes:
//
//   - string or time.Time with a column name
//   - a number (float64, float32, int, int64) with a column name
//   - []float64 holding exactly one element, with a column name
//   - map[string]float64 without a column name, for bulk updates
//
// Numbers are rounded to three decimals. Any other shape, or a scalar
// without a column name, fails with types.ErrLedgerShape.
func (l *Ledger) Patch(iteration int, value any, column ...string) error {
	if len(column) > 1 {
		return fmt.Errorf("%w: %d column names given", types.ErrLedgerShape, len(column))
	}
	col := ""
	if len(column) == 1 {
		col = column[0]
	}

	if m, ok := value.(map[string]float64); ok {
		if col != "" {
			return fmt.Errorf("%w: column %s given with a bulk mapping", types.ErrLedgerShape, col)
		}
		return l.PatchValues(iteration, m)
	}
	if col == "" {
		return fmt.Errorf("%w: %T value needs a column name", types.ErrLedgerShape, value)
	}

	switch v := value.(type) {
	case string:
		return l.PatchText(iteration, col, v)
	case time.Time:
		return l.PatchText(iteration, col, v.Format(types.TimeLayout))
	case float64:
		return l.PatchValue(iteration, col, v)
	case float32:
		return l.PatchValue(iteration, col, float64(v))
	case int:
		return l.PatchValue(iteration, col, float64(v))
	case int64:
		return l.PatchValue(iteration, col, float64(v))
	case []float64:
		if len(v) != 1 {
			return fmt.Errorf("%w: numeric slice of length %d", types.ErrLedgerShape, len(v))
		}
		return l.PatchValue(iteration, col, v[0])
	default:
		return fmt.Errorf("%w: %T", types.ErrLedgerShape, value)
	}
}

// PatchValue stores v rounded to three decimals.
func (l *Ledger) PatchValue(iteration int, column string, v float64) error {
	return l.PatchValues(iteration, map[string]float64{column: v})
}

// PatchValues stores every value rounded to three decimals. All columns are
// checked before any is written.
func (l *Ledger) PatchValues(iteration int, values map[string]float64) error {
	cells := make(map[string]string, len(values))
	for c, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value for %s", types.ErrLedgerShape, c)
		}
		cells[c] = formatScalar(v)
	}
	return l.patch(iteration, cells)
}

// PatchText stores text verbatim, e.g. the evaluation timestamp.
func (l *Ledger) PatchText(iteration int, column, text string) error {
	return l.patch(iteration, map[string]string{column: text})
}

func (l *Ledger) patch(iteration int, cells map[string]string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows := l.byIter[iteration]
	if len(rows) == 0 {
		return fmt.Errorf("%w: %d", types.ErrIterationNotOpen, iteration)
	}
	for c := range cells {
		if c == types.ColumnIteration {
			return fmt.Errorf("%w: %s is the row key and cannot be patched", types.ErrLedgerSchema, c)
		}
		if _, ok := l.index[c]; !ok {
			return fmt.Errorf("%w: unknown column %s", types.ErrLedgerSchema, c)
		}
	}
	for _, r := range rows {
		for c, v := range cells {
			r.cells[l.index[c]] = v
		}
	}
	return l.flush()
}

// Flush rewrites the backing file from memory.
func (l *Ledger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flush()
}

func (l *Ledger) flush() error {
	records := make([][]string, 0, len(l.rows)+1)
	records = append(records, l.columns)
	for _, r := range l.rows {
		records = append(records, r.cells)
	}
	if err := writeAtomic(l.path, records); err != nil {
		return fmt.Errorf("flushing ledger %s: %w", l.path, err)
	}
	l.log.WithField("rows", len(l.rows)).Debug("ledger flushed")
	return nil
}

func roundScalar(v float64) float64 {
	r := math.Round(v*1000) / 1000
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}

func formatScalar(v float64) string {
	return strconv.FormatFloat(roundScalar(v), 'f', -1, 64)
}
