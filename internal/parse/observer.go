// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package parse extracts named scalars from the solver's output files: the
// whitespace-delimited acoustic observer table and the free-text performance
// report. Every failure is a *types.ParseError; nothing is defaulted.
package parse

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pdiddy/rotor-bridge/pkg/types"
)

// Table is a whitespace-delimited table with a header row. Row i holds
// observer i+1.
type Table struct {
	path    string
	columns map[string]int
	header  []string
	rows    [][]string
}

// ReadObserverTable loads the table at path.
func ReadObserverTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &types.ParseError{File: path, Err: types.ErrFileMissing}
		}
		return nil, &types.ParseError{File: path, Err: err}
	}

	t := &Table{path: path, columns: make(map[string]int)}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if t.header == nil {
			t.header = fields
			for i, name := range fields {
				if _, dup := t.columns[name]; !dup {
					t.columns[name] = i
				}
			}
			continue
		}
		t.rows = append(t.rows, fields)
	}
	if err := sc.Err(); err != nil {
		return nil, &types.ParseError{File: path, Err: err}
	}
	if t.header == nil {
		return nil, &types.ParseError{File: path, Marker: "header row", Err: types.ErrMarkerNotFound}
	}
	return t, nil
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// Columns returns the header names in file order.
func (t *Table) Columns() []string { return append([]string(nil), t.header...) }

// Value returns the cell at row observer-1 in the named column.
func (t *Table) Value(observer int, column string) (float64, error) {
	marker := fmt.Sprintf("observer %d column %s", observer, column)
	if observer < 1 || observer > len(t.rows) {
		return 0, &types.ParseError{File: t.path, Marker: marker,
			Err: fmt.Errorf("%w: table has %d rows", types.ErrRowOutOfRange, len(t.rows))}
	}
	col, ok := t.columns[column]
	if !ok {
		return 0, &types.ParseError{File: t.path, Marker: marker, Err: types.ErrColumnMissing}
	}
	row := t.rows[observer-1]
	if col >= len(row) {
		return 0, &types.ParseError{File: t.path, Marker: marker,
			Err: fmt.Errorf("%w: row has %d fields", types.ErrColumnMissing, len(row))}
	}
	v, err := parseNumber(row[col])
	if err != nil {
		return 0, &types.ParseError{File: t.path, Marker: marker, Err: err}
	}
	return v, nil
}

// ExtractObserver reads a single observer value from the table at path.
func ExtractObserver(path string, observer int, column string) (float64, error) {
	t, err := ReadObserverTable(path)
	if err != nil {
		return 0, err
	}
	return t.Value(observer, column)
}

// ExtractObservers reads column for every observer, keyed by
// types.ObserverColumn. The table is read once.
func ExtractObservers(path string, observers []int, column string) (map[string]float64, error) {
	t, err := ReadObserverTable(path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(observers))
	for _, o := range observers {
		v, err := t.Value(o, column)
		if err != nil {
			return nil, err
		}
		out[types.ObserverColumn(o)] = v
	}
	return out, nil
}

// parseNumber parses a solver number, accepting Fortran D exponents. NaN and
// infinities are rejected.
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	norm := strings.NewReplacer("D", "E", "d", "e").Replace(s)
	v, err := strconv.ParseFloat(norm, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", types.ErrMalformedNumber, s)
	}
	return v, nil
}
