// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pdiddy/rotor-bridge/pkg/types"
)

// Row is a read-only snapshot of one ledger row.
type Row struct {
	Iteration int
	Values    map[string]string
}

// Text returns the raw cell of column.
func (r Row) Text(column string) string {
	return r.Values[column]
}

// Float parses the cell of column as a number.
func (r Row) Float(column string) (float64, error) {
	s, ok := r.Values[column]
	if !ok {
		return 0, fmt.Errorf("%w: unknown column %s", types.ErrLedgerSchema, column)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s of iteration %d: %w", column, r.Iteration, err)
	}
	return v, nil
}

// Time parses the timestamp column. An unpatched row returns the zero time
// and false.
func (r Row) Time() (time.Time, bool) {
	s := r.Values[types.ColumnTime]
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(types.TimeLayout, s, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Rows returns a snapshot of every row in file order.
func (l *Ledger) Rows() []Row {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Row, len(l.rows))
	for i, r := range l.rows {
		values := make(map[string]string, len(l.columns))
		for j, c := range l.columns {
			values[c] = r.cells[j]
		}
		out[i] = Row{Iteration: r.iteration, Values: values}
	}
	return out
}

// Iteration returns the rows of one iteration. Normally there is exactly one.
func (l *Ledger) Iteration(iteration int) []Row {
	var out []Row
	for _, r := range l.Rows() {
		if r.Iteration == iteration {
			out = append(out, r)
		}
	}
	return out
}
