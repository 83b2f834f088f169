// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// Performance scalar keys produced by the performance log extractor.
const (
	PerfTotalThrust = "TotalThrust"
	PerfTotalYaw    = "TotalYaw"
	PerfPowerCoef   = "PowerCoef"
	PerfRotorEff    = "RotorEff"
)

// PerformanceKeys lists the per-rotor performance scalars in column order.
var PerformanceKeys = []string{PerfTotalThrust, PerfTotalYaw, PerfPowerCoef, PerfRotorEff}

// Ledger bookkeeping columns.
const (
	ColumnIteration = "Iteration"
	ColumnTime      = "Time"
)

// TimeLayout is the timestamp format written to the ledger.
const TimeLayout = "2006-01-02 15:04:05"

// ObserverColumn returns the ledger column name for an acoustic observer.
func ObserverColumn(observer int) string {
	return fmt.Sprintf("Observer%d", observer)
}

// PerformanceColumn returns the ledger column name for a performance key of
// the given rotor. Rotor 1 uses the bare key; later rotors append their number.
func PerformanceColumn(key string, rotor int) string {
	if rotor <= 1 {
		return key
	}
	return fmt.Sprintf("%s%d", key, rotor)
}

// EvaluationRecord is the result of evaluating one design vector.
type EvaluationRecord struct {
	// Iteration is assigned by the optimization driver.
	Iteration int `json:"iteration" yaml:"iteration"`

	// Timestamp is when the evaluation completed.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	// Design holds the evaluated design variables.
	Design DesignVector `json:"design" yaml:"design"`

	// Observers maps ObserverColumn names to acoustic scalars.
	Observers map[string]float64 `json:"observers" yaml:"observers"`

	// Performance maps PerformanceColumn names to aerodynamic scalars. Nil
	// when performance parsing is disabled.
	Performance map[string]float64 `json:"performance,omitempty" yaml:"performance,omitempty"`

	// Penalized is true when the scalars are penalty sentinels.
	Penalized bool `json:"penalized" yaml:"penalized"`

	// Cause holds the failure message of a penalized evaluation.
	Cause string `json:"cause,omitempty" yaml:"cause,omitempty"`
}
