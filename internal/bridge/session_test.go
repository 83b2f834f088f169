// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/rotor-bridge/internal/ledger"
	"github.com/pdiddy/rotor-bridge/pkg/types"
)

// fakeEvaluator returns scripted records without touching the solver.
type fakeEvaluator struct {
	penalize map[int]bool
	err      error
	calls    []int
}

func (f *fakeEvaluator) Evaluate(_ context.Context, iteration int, dv types.DesignVector) (types.EvaluationRecord, error) {
	f.calls = append(f.calls, iteration)
	if f.err != nil {
		return types.EvaluationRecord{}, f.err
	}
	rec := types.EvaluationRecord{
		Iteration: iteration,
		Timestamp: time.Date(2026, 3, 1, 9, 30, 0, 0, time.Local),
		Design:    dv,
		Observers: map[string]float64{"Observer2": 70 + float64(iteration), "Observer21": 71.23456},
	}
	if f.penalize[iteration] {
		rec.Observers = map[string]float64{"Observer2": 1e6, "Observer21": 1e6}
		rec.Penalized = true
		rec.Cause = "solver run failed"
	}
	return rec, nil
}

func sessionConfig(dir string) types.BridgeConfig {
	cfg := types.DefaultBridgeConfig()
	cfg.WorkDir = dir
	cfg.Parser.Observers = []int{2, 21}
	return cfg
}

func fullDesign(twist float64) types.DesignVector {
	dv := types.DesignVector{types.VarTwist: twist, types.VarAnhedral: -10, types.VarZDistance: -0.62}
	for i := 1; i <= types.SegmentCount; i++ {
		dv[types.SegmentTwist(i)] = float64(i) / 4
	}
	return dv
}

func testSession(t *testing.T, cfg types.BridgeConfig, eval evaluator) *Session {
	t.Helper()
	l, err := ledger.Open(cfg.LedgerFile(), cfg.LedgerColumns())
	require.NoError(t, err)
	return newSession(cfg, l, eval, nil)
}

func TestStepRecordsInputsAndOutputs(t *testing.T) {
	cfg := sessionConfig(t.TempDir())
	var progress bytes.Buffer
	s := testSession(t, cfg, &fakeEvaluator{})
	s.SetOutput(&progress)

	rec, err := s.Step(context.Background(), 1, fullDesign(12.3))
	require.NoError(t, err)
	assert.False(t, rec.Penalized)

	reloaded, err := ledger.Load(cfg.LedgerFile())
	require.NoError(t, err)
	rows := reloaded.Iteration(1)
	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, "12.3", r.Text(types.VarTwist))
	assert.Equal(t, "2.5", r.Text(types.SegmentTwist(10)))
	assert.Equal(t, "71", r.Text("Observer2"))
	assert.Equal(t, "71.235", r.Text("Observer21"))
	assert.Equal(t, "2026-03-01 09:30:00", r.Text(types.ColumnTime))
	assert.Equal(t, "evaluated 1\n", progress.String())
}

func TestStepRecordsPenalty(t *testing.T) {
	cfg := sessionConfig(t.TempDir())
	var progress bytes.Buffer
	s := testSession(t, cfg, &fakeEvaluator{penalize: map[int]bool{4: true}})
	s.SetOutput(&progress)

	rec, err := s.Step(context.Background(), 4, fullDesign(1))
	require.NoError(t, err)
	assert.True(t, rec.Penalized)

	r := s.Ledger().Iteration(4)[0]
	assert.Equal(t, "1000000", r.Text("Observer2"))
	assert.Contains(t, progress.String(), "penalized 4: solver run failed")
}

func TestStepEvaluatorErrorLeavesOpenedRow(t *testing.T) {
	cfg := sessionConfig(t.TempDir())
	s := testSession(t, cfg, &fakeEvaluator{err: fmt.Errorf("%w: bad", types.ErrConfiguration)})

	_, err := s.Step(context.Background(), 2, fullDesign(3))
	require.ErrorIs(t, err, types.ErrConfiguration)

	// The row was opened with the design values before evaluation.
	rows := s.Ledger().Iteration(2)
	require.Len(t, rows, 1)
	assert.Equal(t, "3", rows[0].Text(types.VarTwist))
	assert.Equal(t, "0", rows[0].Text("Observer2"))
	assert.Equal(t, "", rows[0].Text(types.ColumnTime))
}

func TestStepRejectsIncompleteDesign(t *testing.T) {
	cfg := sessionConfig(t.TempDir())
	eval := &fakeEvaluator{}
	s := testSession(t, cfg, eval)

	_, err := s.Step(context.Background(), 1, types.DesignVector{types.VarTwist: 1})
	assert.ErrorIs(t, err, types.ErrConfiguration)
	assert.Zero(t, s.Ledger().Len())
	assert.Empty(t, eval.calls)
}

func TestStepUnknownOutputColumn(t *testing.T) {
	cfg := sessionConfig(t.TempDir())
	s := testSession(t, cfg, &fakeEvaluator{})
	// The evaluator produces Observer21, which this ledger does not carry.
	l, err := ledger.Open(filepath.Join(t.TempDir(), "narrow.csv"),
		append([]string{types.ColumnIteration, types.ColumnTime, "Observer2"}, types.DesignVariables...))
	require.NoError(t, err)
	s.ledger = l

	_, err = s.Step(context.Background(), 1, fullDesign(1))
	assert.ErrorIs(t, err, types.ErrLedgerSchema)
}

func TestStepEarlyStop(t *testing.T) {
	cfg := sessionConfig(t.TempDir())
	cfg.EarlyStop = types.EarlyStopConfig{Enabled: true, Threshold: 0.1, Patience: 1}
	eval := &fakeEvaluator{}
	s := testSession(t, cfg, eval)
	ctx := context.Background()

	_, err := s.Step(ctx, 1, fullDesign(5))
	require.NoError(t, err)
	_, err = s.Step(ctx, 2, fullDesign(5.01))
	require.NoError(t, err)
	_, err = s.Step(ctx, 3, fullDesign(5.02))
	require.ErrorIs(t, err, types.ErrEarlyStop)

	assert.Equal(t, []int{1, 2}, eval.calls)
	assert.False(t, s.Ledger().Has(3))
}

func TestOpenChecksExistingLedger(t *testing.T) {
	dir := t.TempDir()
	cfg := sessionConfig(dir)
	require.NoError(t, os.WriteFile(cfg.LedgerFile(), []byte("Iteration,Time,Twist\n"), 0o644))

	_, err := Open(cfg, nil)
	require.ErrorIs(t, err, types.ErrLedgerSchema)
	assert.Contains(t, err.Error(), "Anhedral")
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := sessionConfig(t.TempDir())
	cfg.Synthesis.Topology.Rotors = 0

	_, err := Open(cfg, nil)
	assert.ErrorIs(t, err, types.ErrConfiguration)
	_, statErr := os.Stat(cfg.LedgerFile())
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

const fakeSolverScript = `#!/bin/sh
cat > GAlgoRunsname_oaspldBA.dat <<EOF
Observer X Y Z Total
1 0.0 0.0 0.0 60.5
2 0.0 0.0 0.0 61.25
EOF
cat > GAlgoRunsname_perf.out <<EOF
 ROTOR 1 LOADS
   TOTAL THRUST      = 101.5 LB
   TOTAL YAW MOMENT  = -2.0 FT-LB
   POWER COEFFICIENT = 0.00041
   ROTOR EFFICIENCY  = 70.5 %
 END ROTOR 1 LOADS
EOF
`

func TestSessionWithScriptedSolver(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "solver.sh"), []byte(fakeSolverScript), 0o755))

	cfg := types.DefaultBridgeConfig()
	cfg.WorkDir = dir
	cfg.Synthesis.Topology = types.Topology{Rotors: 1, Blades: 2}
	cfg.Solver.Command = "./solver.sh"
	cfg.Parser.Observers = []int{1, 2}
	cfg.Parser.Performance = true

	s, err := Open(cfg, nil)
	require.NoError(t, err)

	rec, err := s.Step(context.Background(), 1, fullDesign(8))
	require.NoError(t, err)
	require.False(t, rec.Penalized, rec.Cause)
	assert.Equal(t, 61.25, rec.Observers["Observer2"])
	assert.Equal(t, 101.5, rec.Performance[types.PerfTotalThrust])

	// A second rotor is configured but the log only has one: penalized.
	cfg.Synthesis.Topology = types.Topology{Rotors: 2, Blades: 2}
	cfg.Ledger.Path = "two-rotor.csv"
	s2, err := Open(cfg, nil)
	require.NoError(t, err)
	rec, err = s2.Step(context.Background(), 1, fullDesign(8))
	require.NoError(t, err)
	assert.True(t, rec.Penalized)
	assert.Equal(t, -1e6, rec.Performance["TotalThrust2"])

	r := s2.Ledger().Iteration(1)[0]
	assert.Equal(t, "1000000", r.Text("Observer1"))
	assert.Equal(t, "-1000000", r.Text("RotorEff2"))
}
