// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bridge drives one evaluation per design vector: it opens the
// ledger row, records the inputs, runs the evaluation guard and patches the
// results. The driver's state (ledger and stall tracking) lives in an
// explicit Session rather than in globals.
package bridge

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/rotor-bridge/internal/evaluate"
	"github.com/pdiddy/rotor-bridge/internal/ledger"
	"github.com/pdiddy/rotor-bridge/pkg/types"
)

// evaluator runs one design through the solver.
type evaluator interface {
	Evaluate(ctx context.Context, iteration int, dv types.DesignVector) (types.EvaluationRecord, error)
}

// Session serialises evaluations against one ledger.
type Session struct {
	mu     sync.Mutex
	cfg    types.BridgeConfig
	ledger *ledger.Ledger
	eval   evaluator
	stall  *StallDetector
	out    io.Writer
	log    *logrus.Entry
}

// Open validates cfg, opens (or creates) the ledger and prepares the
// evaluator. An existing ledger must carry every column cfg produces.
func Open(cfg types.BridgeConfig, log *logrus.Entry) (*Session, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l, err := ledger.Open(cfg.LedgerFile(), cfg.LedgerColumns())
	if err != nil {
		return nil, err
	}
	if err := checkColumns(l, cfg.LedgerColumns()); err != nil {
		return nil, err
	}
	return newSession(cfg, l, evaluate.New(cfg, log), log), nil
}

func newSession(cfg types.BridgeConfig, l *ledger.Ledger, eval evaluator, log *logrus.Entry) *Session {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Session{cfg: cfg, ledger: l, eval: eval, out: io.Discard, log: log}
	if cfg.EarlyStop.Enabled {
		s.stall = NewStallDetector(cfg.EarlyStop)
	}
	return s
}

func checkColumns(l *ledger.Ledger, want []string) error {
	var missing []string
	for _, c := range want {
		if !l.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: ledger %s lacks columns %s", types.ErrLedgerSchema, l.Path(), strings.Join(missing, ", "))
	}
	return nil
}

// SetOutput directs per-iteration progress lines to w.
func (s *Session) SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	s.out = w
}

// SetSolverOutput forwards the solver's console output to w.
func (s *Session) SetSolverOutput(w io.Writer) {
	if e, ok := s.eval.(*evaluate.Evaluator); ok {
		e.SetSolverOutput(w)
	}
}

// Ledger returns the session's ledger.
func (s *Session) Ledger() *ledger.Ledger { return s.ledger }

// Step evaluates dv as the given iteration. The ledger row is opened with
// the design values before the solver runs, so a crash mid-evaluation still
// leaves a zero-filled row on disk. Penalized evaluations are recorded and
// returned without error. Configuration, ledger and early-stop errors are
// returned; an early stop happens before any row is opened.
func (s *Session) Step(ctx context.Context, iteration int, dv types.DesignVector) (types.EvaluationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := dv.Validate(); err != nil {
		return types.EvaluationRecord{}, err
	}
	if s.stall != nil {
		if err := s.stall.Observe(dv); err != nil {
			return types.EvaluationRecord{}, err
		}
	}

	log := s.log.WithField("iteration", iteration)
	if s.ledger.Has(iteration) {
		log.Warn("iteration already in ledger, appending a duplicate row")
	}
	if err := s.ledger.Append(iteration); err != nil {
		return types.EvaluationRecord{}, err
	}
	inputs := make(map[string]float64, len(types.DesignVariables))
	for _, name := range types.DesignVariables {
		inputs[name] = dv[name]
	}
	if err := s.ledger.PatchValues(iteration, inputs); err != nil {
		return types.EvaluationRecord{}, err
	}

	rec, err := s.eval.Evaluate(ctx, iteration, dv)
	if err != nil {
		return types.EvaluationRecord{}, err
	}

	outputs := make(map[string]float64, len(rec.Observers)+len(rec.Performance))
	for k, v := range rec.Observers {
		outputs[k] = v
	}
	for k, v := range rec.Performance {
		outputs[k] = v
	}
	if err := s.ledger.PatchValues(iteration, outputs); err != nil {
		return types.EvaluationRecord{}, err
	}
	if err := s.ledger.PatchText(iteration, types.ColumnTime, rec.Timestamp.Format(types.TimeLayout)); err != nil {
		return types.EvaluationRecord{}, err
	}

	if rec.Penalized {
		fmt.Fprintf(s.out, "penalized %d: %s\n", iteration, rec.Cause)
	} else {
		fmt.Fprintf(s.out, "evaluated %d\n", iteration)
	}
	return rec, nil
}

// Flush rewrites the ledger file. Every Step already leaves the file
// consistent; Flush is the final write before exit.
func (s *Session) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Flush()
}
