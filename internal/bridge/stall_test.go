// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/rotor-bridge/pkg/types"
)

func candidate(twist, anhedral, z float64) types.DesignVector {
	return types.DesignVector{types.VarTwist: twist, types.VarAnhedral: anhedral, types.VarZDistance: z}
}

func TestStallDetectorStopsAfterPatience(t *testing.T) {
	d := NewStallDetector(types.EarlyStopConfig{Threshold: 0.1, Patience: 3})

	require.NoError(t, d.Observe(candidate(10, -5, 1)))
	for i := 1; i <= 3; i++ {
		require.NoError(t, d.Observe(candidate(10+0.01*float64(i), -5, 1)), "repeat %d", i)
		assert.Equal(t, i, d.Repeats())
	}
	err := d.Observe(candidate(10.05, -5, 1))
	assert.ErrorIs(t, err, types.ErrEarlyStop)
}

func TestStallDetectorResetsOnMovement(t *testing.T) {
	d := NewStallDetector(types.EarlyStopConfig{Threshold: 0.1, Patience: 2})

	require.NoError(t, d.Observe(candidate(1, 1, 1)))
	require.NoError(t, d.Observe(candidate(1, 1, 1)))
	require.NoError(t, d.Observe(candidate(1, 1, 1)))
	assert.Equal(t, 2, d.Repeats())

	// One variable moving by the threshold breaks the run.
	require.NoError(t, d.Observe(candidate(1, 1, 1.1)))
	assert.Equal(t, 0, d.Repeats())
	require.NoError(t, d.Observe(candidate(1, 1, 1.1)))
	assert.Equal(t, 1, d.Repeats())
}

func TestStallDetectorTracksConfiguredVariablesOnly(t *testing.T) {
	d := NewStallDetector(types.EarlyStopConfig{Threshold: 0.1, Patience: 1, Variables: []string{types.VarTwist}})

	a := candidate(5, 0, 0)
	b := candidate(5, 30, 2)
	require.NoError(t, d.Observe(a))
	require.NoError(t, d.Observe(b))
	assert.ErrorIs(t, d.Observe(a), types.ErrEarlyStop)
}

func TestStallDetectorDefaults(t *testing.T) {
	d := NewStallDetector(types.EarlyStopConfig{})
	assert.Equal(t, 0.1, d.threshold)
	assert.Equal(t, 50, d.patience)
	assert.Equal(t, []string{types.VarTwist, types.VarAnhedral, types.VarZDistance}, d.variables)

	d.repeats = 7
	d.Reset()
	assert.Zero(t, d.Repeats())
	assert.Nil(t, d.prev)
}
