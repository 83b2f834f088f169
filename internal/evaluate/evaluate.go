// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package evaluate runs one design vector through the solver and turns every
// solver-facing failure into a penalty record, so a single bad candidate
// never stops the optimization.
package evaluate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/rotor-bridge/internal/parse"
	"github.com/pdiddy/rotor-bridge/internal/solver"
	"github.com/pdiddy/rotor-bridge/internal/synth"
	"github.com/pdiddy/rotor-bridge/pkg/types"
)

// synthesizer writes the solver input files for a design.
type synthesizer interface {
	Write(dv types.DesignVector, topo types.Topology) (synth.InputSet, error)
}

// runner executes the solver once.
type runner interface {
	Run(ctx context.Context) error
}

// Evaluator evaluates design vectors against the configured solver. It is
// not safe for concurrent use: every evaluation shares the same input and
// output filenames in the work directory.
type Evaluator struct {
	cfg    types.BridgeConfig
	synth  synthesizer
	solver runner
	now    func() time.Time
	log    *logrus.Entry
}

// New creates an Evaluator for cfg.
func New(cfg types.BridgeConfig, log *logrus.Entry) *Evaluator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := synth.New(cfg.WorkDir, cfg.Synthesis)
	inv := solver.New(cfg.WorkDir, cfg.Solver, log.WithField("component", "solver"))
	return newEvaluator(cfg, s, inv, log)
}

func newEvaluator(cfg types.BridgeConfig, s synthesizer, r runner, log *logrus.Entry) *Evaluator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Evaluator{cfg: cfg, synth: s, solver: r, now: time.Now, log: log}
}

// SetSolverOutput forwards the solver's console output to w.
func (e *Evaluator) SetSolverOutput(w io.Writer) {
	if o, ok := e.solver.(interface{ SetOutput(io.Writer) }); ok {
		o.SetOutput(w)
	}
}

// OutputFiles returns the observer table and performance log paths the
// solver is expected to produce. The performance log is empty when
// performance parsing is disabled.
func (e *Evaluator) OutputFiles() (observer, performance string) {
	observer = e.resolve(e.cfg.Parser.ObserverFile)
	if e.cfg.Parser.Performance {
		performance = e.resolve(e.cfg.Parser.PerformanceLog)
	}
	return observer, performance
}

func (e *Evaluator) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(e.cfg.WorkDir, name)
}

// Evaluate writes the inputs for dv, runs the solver and extracts the
// configured scalars. Filesystem, solver and parse failures produce a
// penalized record and a nil error. Configuration errors are returned.
func (e *Evaluator) Evaluate(ctx context.Context, iteration int, dv types.DesignVector) (types.EvaluationRecord, error) {
	log := e.log.WithField("iteration", iteration)

	rec, err := e.run(ctx, dv)
	if err != nil {
		if !penalizable(err) {
			return types.EvaluationRecord{}, err
		}
		log.WithField("cause", err.Error()).Warn("evaluation penalized")
		rec = e.penalty(err)
	} else {
		log.Debug("evaluation completed")
	}

	rec.Iteration = iteration
	rec.Design = dv
	rec.Timestamp = e.now()
	return rec, nil
}

func (e *Evaluator) run(ctx context.Context, dv types.DesignVector) (types.EvaluationRecord, error) {
	if _, err := e.synth.Write(dv, e.cfg.Synthesis.Topology); err != nil {
		return types.EvaluationRecord{}, err
	}

	observerFile, perfFile := e.OutputFiles()
	if err := removeStale(observerFile, perfFile); err != nil {
		return types.EvaluationRecord{}, err
	}

	if err := e.solver.Run(ctx); err != nil {
		return types.EvaluationRecord{}, err
	}

	observers, err := parse.ExtractObservers(observerFile, e.cfg.Parser.Observers, e.cfg.Parser.ObserverColumn)
	if err != nil {
		return types.EvaluationRecord{}, err
	}
	rec := types.EvaluationRecord{Observers: observers}

	if perfFile != "" {
		perf, err := parse.ExtractRotors(perfFile, e.cfg.Synthesis.Topology.Rotors)
		if err != nil {
			return types.EvaluationRecord{}, err
		}
		rec.Performance = perf
	}
	return rec, nil
}

// penalty builds the record of a failed evaluation.
func (e *Evaluator) penalty(cause error) types.EvaluationRecord {
	rec := types.EvaluationRecord{
		Observers: make(map[string]float64, len(e.cfg.Parser.Observers)),
		Penalized: true,
		Cause:     cause.Error(),
	}
	for _, c := range e.cfg.ObserverColumns() {
		rec.Observers[c] = e.cfg.Penalty.Observer
	}
	if cols := e.cfg.PerformanceColumns(); cols != nil {
		rec.Performance = make(map[string]float64, len(cols))
		for _, c := range cols {
			rec.Performance[c] = e.cfg.Penalty.Performance
		}
	}
	return rec
}

// removeStale deletes outputs of a previous run so a solver that exits
// without writing them cannot be scored on old results.
func removeStale(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: removing stale output %s: %v", types.ErrFilesystem, p, err)
		}
	}
	return nil
}

func penalizable(err error) bool {
	return errors.Is(err, types.ErrFilesystem) ||
		errors.Is(err, types.ErrSolverFailed) ||
		errors.Is(err, types.ErrParse)
}
