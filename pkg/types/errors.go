// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
)

// Configuration errors are fatal and raised before any file I/O.
var ErrConfiguration = errors.New("configuration error")

// Solver-facing errors. The evaluation guard converts these into penalty
// scores instead of propagating them.
var (
	ErrFilesystem   = errors.New("solver filesystem error")
	ErrSolverFailed = errors.New("solver run failed")
	ErrParse        = errors.New("solver output parse error")
)

// Parse failure kinds. Each is reported inside a ParseError, which also
// matches ErrParse.
var (
	ErrFileMissing         = errors.New("output file missing")
	ErrMarkerNotFound      = errors.New("marker not found")
	ErrMalformedNumber     = errors.New("malformed number")
	ErrRowOutOfRange       = errors.New("observer row out of range")
	ErrColumnMissing       = errors.New("column not found")
	ErrRotorSectionMissing = errors.New("rotor section missing")
)

// Ledger errors indicate a mismatch between produced scalars and the ledger
// schema. They always propagate to the caller.
var (
	ErrLedgerShape      = errors.New("unrecognized ledger value shape")
	ErrLedgerSchema     = errors.New("ledger schema mismatch")
	ErrIterationNotOpen = errors.New("iteration not opened in ledger")
)

// ErrEarlyStop is returned when the candidate stream has stalled and the
// driver should stop the search.
var ErrEarlyStop = errors.New("early stop requested")

// ParseError describes a failure to extract a value from a solver output file.
type ParseError struct {
	File   string
	Marker string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Marker != "" {
		return fmt.Sprintf("parsing %s: %s: %v", e.File, e.Marker, e.Err)
	}
	return fmt.Sprintf("parsing %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is makes every ParseError match ErrParse.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}
