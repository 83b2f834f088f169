// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evaluate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/rotor-bridge/internal/synth"
	"github.com/pdiddy/rotor-bridge/pkg/types"
)

const observerTable = `Observer  X  Y  Z  Total
1  0.0  -4.0  -1.0  70.63
2  0.0  -4.0   0.0  72.84
`

func rotorBlock(n int, thrust float64) string {
	return fmt.Sprintf(` ROTOR %d LOADS
   TOTAL THRUST      = %g LB
   TOTAL YAW MOMENT  = -1.5 FT-LB
   POWER COEFFICIENT = 0.0004
   ROTOR EFFICIENCY  = 70.0 %%
 END ROTOR %d LOADS
`, n, thrust, n)
}

// fakeSolver stands in for the external solver: it writes the given files
// into the work directory and returns err.
type fakeSolver struct {
	dir   string
	files map[string]string
	err   error
	calls int
}

func (f *fakeSolver) Run(ctx context.Context) error {
	f.calls++
	for name, body := range f.files {
		if err := os.WriteFile(filepath.Join(f.dir, name), []byte(body), 0o644); err != nil {
			return err
		}
	}
	if f.err != nil {
		return fmt.Errorf("%w: fake: %v", types.ErrSolverFailed, f.err)
	}
	return nil
}

type fakeSynth struct {
	err   error
	calls int
}

func (f *fakeSynth) Write(types.DesignVector, types.Topology) (synth.InputSet, error) {
	f.calls++
	return synth.InputSet{}, f.err
}

func testConfig(dir string) types.BridgeConfig {
	cfg := types.DefaultBridgeConfig()
	cfg.WorkDir = dir
	cfg.Parser.Observers = []int{2, 1}
	cfg.Parser.Performance = true
	return cfg
}

func design() types.DesignVector {
	dv := types.DesignVector{types.VarTwist: 12.3, types.VarAnhedral: -10, types.VarZDistance: -0.62}
	for i := 1; i <= types.SegmentCount; i++ {
		dv[types.SegmentTwist(i)] = 0.5
	}
	return dv
}

func goodOutputs(cfg types.BridgeConfig) map[string]string {
	return map[string]string{
		cfg.Parser.ObserverFile:   observerTable,
		cfg.Parser.PerformanceLog: rotorBlock(1, 100) + rotorBlock(2, 98.5),
	}
}

func newTestEvaluator(t *testing.T, cfg types.BridgeConfig, solver *fakeSolver) *Evaluator {
	t.Helper()
	e := newEvaluator(cfg, synth.New(cfg.WorkDir, cfg.Synthesis), solver, nil)
	e.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestEvaluateSuccess(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	solver := &fakeSolver{dir: dir, files: goodOutputs(cfg)}
	e := newTestEvaluator(t, cfg, solver)

	rec, err := e.Evaluate(context.Background(), 7, design())
	require.NoError(t, err)

	assert.Equal(t, 7, rec.Iteration)
	assert.False(t, rec.Penalized)
	assert.Empty(t, rec.Cause)
	assert.Equal(t, map[string]float64{"Observer2": 72.84, "Observer1": 70.63}, rec.Observers)
	assert.Len(t, rec.Performance, 8)
	assert.InDelta(t, 98.5, rec.Performance["TotalThrust2"], 1e-9)
	assert.Equal(t, 2026, rec.Timestamp.Year())
	assert.Equal(t, design(), rec.Design)

	// Inputs were synthesized into the work directory.
	_, err = os.Stat(filepath.Join(dir, "GAlgoRunsname.inp"))
	assert.NoError(t, err)
}

func TestEvaluatePerformanceDisabled(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Parser.Performance = false
	solver := &fakeSolver{dir: dir, files: map[string]string{cfg.Parser.ObserverFile: observerTable}}

	rec, err := newTestEvaluator(t, cfg, solver).Evaluate(context.Background(), 1, design())
	require.NoError(t, err)
	assert.False(t, rec.Penalized)
	assert.Nil(t, rec.Performance)
}

func TestEvaluatePenalizesEveryFailingStep(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(dir string, cfg *types.BridgeConfig, solver *fakeSolver)
		wantErr error
	}{
		{
			name: "solver exits non-zero",
			setup: func(_ string, _ *types.BridgeConfig, s *fakeSolver) {
				s.err = errors.New("exit status 1")
			},
			wantErr: types.ErrSolverFailed,
		},
		{
			name: "solver crashes after writing outputs",
			setup: func(_ string, cfg *types.BridgeConfig, s *fakeSolver) {
				s.files = goodOutputs(*cfg)
				s.err = errors.New("signal: segmentation fault")
			},
			wantErr: types.ErrSolverFailed,
		},
		{
			name: "observer table missing",
			setup: func(_ string, cfg *types.BridgeConfig, s *fakeSolver) {
				s.files = map[string]string{cfg.Parser.PerformanceLog: rotorBlock(1, 1) + rotorBlock(2, 1)}
			},
			wantErr: types.ErrFileMissing,
		},
		{
			name: "observer out of range",
			setup: func(_ string, cfg *types.BridgeConfig, s *fakeSolver) {
				s.files = goodOutputs(*cfg)
				cfg.Parser.Observers = []int{1, 3}
			},
			wantErr: types.ErrRowOutOfRange,
		},
		{
			name: "second rotor section missing",
			setup: func(_ string, cfg *types.BridgeConfig, s *fakeSolver) {
				s.files = map[string]string{
					cfg.Parser.ObserverFile:   observerTable,
					cfg.Parser.PerformanceLog: rotorBlock(1, 100),
				}
			},
			wantErr: types.ErrRotorSectionMissing,
		},
		{
			name: "work directory blocked",
			setup: func(dir string, cfg *types.BridgeConfig, s *fakeSolver) {
				blocker := filepath.Join(dir, "blocked")
				_ = os.WriteFile(blocker, nil, 0o644)
				cfg.WorkDir = filepath.Join(blocker, "work")
			},
			wantErr: types.ErrFilesystem,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cfg := testConfig(dir)
			solver := &fakeSolver{dir: dir}
			tt.setup(dir, &cfg, solver)

			e := newTestEvaluator(t, cfg, solver)
			rec, err := e.Evaluate(context.Background(), 3, design())
			require.NoError(t, err)

			assert.True(t, rec.Penalized)
			assert.NotEmpty(t, rec.Cause)
			assert.Equal(t, 3, rec.Iteration)
			for _, c := range cfg.ObserverColumns() {
				assert.Equal(t, 1e6, rec.Observers[c], c)
			}
			require.Len(t, rec.Performance, 8)
			for _, c := range cfg.PerformanceColumns() {
				assert.Equal(t, -1e6, rec.Performance[c], c)
			}

			// The cause names the failing step.
			assert.Contains(t, rec.Cause, tt.wantErr.Error())
		})
	}
}

func TestEvaluateIgnoresStaleOutputs(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	for name, body := range goodOutputs(cfg) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}

	// The solver exits cleanly but writes nothing this time.
	rec, err := newTestEvaluator(t, cfg, &fakeSolver{dir: dir}).Evaluate(context.Background(), 2, design())
	require.NoError(t, err)
	assert.True(t, rec.Penalized)
	assert.Contains(t, rec.Cause, types.ErrFileMissing.Error())
}

func TestEvaluateConfigurationErrorsSurface(t *testing.T) {
	t.Run("invalid topology", func(t *testing.T) {
		dir := t.TempDir()
		cfg := testConfig(dir)
		cfg.Synthesis.Topology = types.Topology{Rotors: 3, Blades: 3}
		solver := &fakeSolver{dir: dir}

		_, err := newTestEvaluator(t, cfg, solver).Evaluate(context.Background(), 1, design())
		assert.ErrorIs(t, err, types.ErrConfiguration)
		assert.Zero(t, solver.calls)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("incomplete design", func(t *testing.T) {
		dir := t.TempDir()
		cfg := testConfig(dir)
		dv := design()
		delete(dv, types.VarAnhedral)

		_, err := newTestEvaluator(t, cfg, &fakeSolver{dir: dir}).Evaluate(context.Background(), 1, dv)
		assert.ErrorIs(t, err, types.ErrConfiguration)
	})

	t.Run("unexpected synthesizer error", func(t *testing.T) {
		fs := &fakeSynth{err: errors.New("boom")}
		e := newEvaluator(testConfig(t.TempDir()), fs, &fakeSolver{}, nil)
		_, err := e.Evaluate(context.Background(), 1, design())
		assert.EqualError(t, err, "boom")
	})
}

func TestEvaluateFilesystemFailureSkipsSolver(t *testing.T) {
	dir := t.TempDir()
	solver := &fakeSolver{dir: dir}
	fs := &fakeSynth{err: fmt.Errorf("%w: disk full", types.ErrFilesystem)}
	e := newEvaluator(testConfig(dir), fs, solver, nil)

	rec, err := e.Evaluate(context.Background(), 4, design())
	require.NoError(t, err)
	assert.True(t, rec.Penalized)
	assert.Equal(t, 1, fs.calls)
	assert.Zero(t, solver.calls)
}

func TestOutputFiles(t *testing.T) {
	cfg := testConfig("/work")
	e := newEvaluator(cfg, &fakeSynth{}, &fakeSolver{}, nil)

	obs, perf := e.OutputFiles()
	assert.Equal(t, filepath.Join("/work", "GAlgoRunsname_oaspldBA.dat"), obs)
	assert.Equal(t, filepath.Join("/work", "GAlgoRunsname_perf.out"), perf)

	cfg.Parser.Performance = false
	cfg.Parser.ObserverFile = "/abs/obs.dat"
	obs, perf = newEvaluator(cfg, &fakeSynth{}, &fakeSolver{}, nil).OutputFiles()
	assert.Equal(t, "/abs/obs.dat", obs)
	assert.Empty(t, perf)
}
