// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"path/filepath"
	"time"
)

// DefaultBasename is the filename prefix of every generated solver file.
const DefaultBasename = "GAlgoRuns"

// SynthesisConfig holds settings for generating solver input files.
type SynthesisConfig struct {
	// Basename prefixes the generated files: <basename>bg.inp, <basename>rw.inp,
	// <basename>name.inp.
	Basename string `json:"basename" yaml:"basename" mapstructure:"basename"`

	// Topology is the rotor and blade layout being simulated.
	Topology Topology `json:"topology" yaml:"topology" mapstructure:"topology"`

	// RotationRate is the rotor speed written to the rotor-wake file (rad/s).
	RotationRate float64 `json:"rotation_rate" yaml:"rotation_rate" mapstructure:"rotation_rate"`

	// PathName is the solver's search path for the static input files.
	PathName string `json:"path_name" yaml:"path_name" mapstructure:"path_name"`

	// BaseRotorWakeFile is the static rotor-wake file of the first rotor in a
	// two-rotor run.
	BaseRotorWakeFile string `json:"base_rotor_wake_file" yaml:"base_rotor_wake_file" mapstructure:"base_rotor_wake_file"`

	// BladeDynamicsFile is the static blade dynamics file.
	BladeDynamicsFile string `json:"blade_dynamics_file" yaml:"blade_dynamics_file" mapstructure:"blade_dynamics_file"`

	// AirfoilFile is the static airfoil table.
	AirfoilFile string `json:"airfoil_file" yaml:"airfoil_file" mapstructure:"airfoil_file"`
}

// RunName is the run descriptor's basename, which the solver also uses as the
// prefix of its output files.
func (c SynthesisConfig) RunName() string {
	return c.Basename + "name"
}

// SolverConfig holds settings for invoking the external solver.
type SolverConfig struct {
	// Command is the solver executable or wrapper script.
	Command string `json:"command" yaml:"command" mapstructure:"command"`

	// Args are passed to Command unchanged.
	Args []string `json:"args" yaml:"args" mapstructure:"args"`

	// Timeout bounds a single solver run. Zero means no limit.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// ParserConfig holds settings for reading solver outputs.
type ParserConfig struct {
	// ObserverFile is the whitespace-delimited acoustic observer table.
	ObserverFile string `json:"observer_file" yaml:"observer_file" mapstructure:"observer_file"`

	// ObserverColumn is the table column read for every observer (e.g. "Total").
	ObserverColumn string `json:"observer_column" yaml:"observer_column" mapstructure:"observer_column"`

	// Observers lists the 1-based observer indices to record.
	Observers []int `json:"observers" yaml:"observers" mapstructure:"observers"`

	// PerformanceLog is the free-text performance report.
	PerformanceLog string `json:"performance_log" yaml:"performance_log" mapstructure:"performance_log"`

	// Performance enables parsing the performance log.
	Performance bool `json:"performance" yaml:"performance" mapstructure:"performance"`
}

// PenaltyConfig holds the sentinel scores assigned to failed evaluations.
type PenaltyConfig struct {
	// Observer replaces every acoustic scalar (minimized objectives).
	Observer float64 `json:"observer" yaml:"observer" mapstructure:"observer"`

	// Performance replaces every performance scalar (maximized objectives).
	Performance float64 `json:"performance" yaml:"performance" mapstructure:"performance"`
}

// LedgerConfig holds settings for the iteration ledger.
type LedgerConfig struct {
	// Path is the CSV file backing the ledger.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// EarlyStopConfig holds settings for stall detection across candidates.
type EarlyStopConfig struct {
	// Enabled turns stall detection on.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Threshold is the per-variable change below which a candidate counts
	// as a repeat (default 0.1).
	Threshold float64 `json:"threshold" yaml:"threshold" mapstructure:"threshold"`

	// Patience is the number of consecutive repeats tolerated (default 50).
	Patience int `json:"patience" yaml:"patience" mapstructure:"patience"`

	// Variables are the design variables compared between candidates.
	Variables []string `json:"variables" yaml:"variables" mapstructure:"variables"`
}

// ArchiveConfig holds settings for the SQLite ledger archive.
type ArchiveConfig struct {
	// Path is the SQLite database file.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// BridgeConfig groups all settings of the solver bridge.
type BridgeConfig struct {
	// WorkDir is where input files are written, the solver runs, and outputs
	// are read from.
	WorkDir string `json:"work_dir" yaml:"work_dir" mapstructure:"work_dir"`

	Synthesis SynthesisConfig `json:"synthesis" yaml:"synthesis" mapstructure:"synthesis"`
	Solver    SolverConfig    `json:"solver" yaml:"solver" mapstructure:"solver"`
	Parser    ParserConfig    `json:"parser" yaml:"parser" mapstructure:"parser"`
	Penalty   PenaltyConfig   `json:"penalty" yaml:"penalty" mapstructure:"penalty"`
	Ledger    LedgerConfig    `json:"ledger" yaml:"ledger" mapstructure:"ledger"`
	EarlyStop EarlyStopConfig `json:"early_stop" yaml:"early_stop" mapstructure:"early_stop"`
	Archive   ArchiveConfig   `json:"archive" yaml:"archive" mapstructure:"archive"`
}

// DefaultBridgeConfig returns the settings of the reference two-rotor setup.
func DefaultBridgeConfig() BridgeConfig {
	synth := SynthesisConfig{
		Basename:          DefaultBasename,
		Topology:          Topology{Rotors: 2, Blades: 2},
		RotationRate:      500,
		PathName:          "../",
		BaseRotorWakeFile: "GABaserw.inp",
		BladeDynamicsFile: "GABasebd.inp",
		AirfoilFile:       "0012air.inp",
	}
	return BridgeConfig{
		WorkDir:   ".",
		Synthesis: synth,
		Solver: SolverConfig{
			Command: "./GACHARMrun.sh",
		},
		Parser: ParserConfig{
			ObserverFile:   synth.RunName() + "_oaspldBA.dat",
			ObserverColumn: "Total",
			Observers:      []int{21, 22, 23, 24, 25, 2},
			PerformanceLog: synth.RunName() + "_perf.out",
		},
		Penalty: PenaltyConfig{
			Observer:    1e6,
			Performance: -1e6,
		},
		Ledger: LedgerConfig{
			Path: "GA_FileName.csv",
		},
		EarlyStop: EarlyStopConfig{
			Threshold: 0.1,
			Patience:  50,
			Variables: []string{VarTwist, VarAnhedral, VarZDistance},
		},
		Archive: ArchiveConfig{
			Path: "rotor-bridge.db",
		},
	}
}

// Validate checks the settings that must hold before any evaluation runs.
func (c BridgeConfig) Validate() error {
	if err := c.Synthesis.Topology.Validate(); err != nil {
		return err
	}
	if c.Synthesis.Basename == "" {
		return fmt.Errorf("%w: synthesis basename is empty", ErrConfiguration)
	}
	if c.Solver.Command == "" {
		return fmt.Errorf("%w: solver command is empty", ErrConfiguration)
	}
	if len(c.Parser.Observers) == 0 {
		return fmt.Errorf("%w: no observers configured", ErrConfiguration)
	}
	for _, o := range c.Parser.Observers {
		if o < 1 {
			return fmt.Errorf("%w: observer index %d must be 1-based", ErrConfiguration, o)
		}
	}
	if c.Parser.ObserverColumn == "" {
		return fmt.Errorf("%w: observer column is empty", ErrConfiguration)
	}
	if c.Parser.Performance && c.Parser.PerformanceLog == "" {
		return fmt.Errorf("%w: performance parsing enabled without a log file", ErrConfiguration)
	}
	if c.Ledger.Path == "" {
		return fmt.Errorf("%w: ledger path is empty", ErrConfiguration)
	}
	return nil
}

// LedgerFile returns the ledger path. Relative paths are taken from the work
// directory.
func (c BridgeConfig) LedgerFile() string {
	if filepath.IsAbs(c.Ledger.Path) || c.WorkDir == "" {
		return c.Ledger.Path
	}
	return filepath.Join(c.WorkDir, c.Ledger.Path)
}

// ObserverColumns returns the ledger columns of the configured observers.
func (c BridgeConfig) ObserverColumns() []string {
	cols := make([]string, len(c.Parser.Observers))
	for i, o := range c.Parser.Observers {
		cols[i] = ObserverColumn(o)
	}
	return cols
}

// PerformanceColumns returns the ledger columns of the performance scalars,
// or nil when performance parsing is disabled.
func (c BridgeConfig) PerformanceColumns() []string {
	if !c.Parser.Performance {
		return nil
	}
	var cols []string
	for rotor := 1; rotor <= c.Synthesis.Topology.Rotors; rotor++ {
		for _, key := range PerformanceKeys {
			cols = append(cols, PerformanceColumn(key, rotor))
		}
	}
	return cols
}

// LedgerColumns returns the default ledger schema for a new ledger file.
func (c BridgeConfig) LedgerColumns() []string {
	cols := []string{ColumnIteration, ColumnTime}
	cols = append(cols, DesignVariables...)
	cols = append(cols, c.ObserverColumns()...)
	cols = append(cols, c.PerformanceColumns()...)
	return cols
}
