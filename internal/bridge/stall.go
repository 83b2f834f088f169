// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bridge

import (
	"fmt"
	"math"

	"github.com/pdiddy/rotor-bridge/pkg/types"
)

// StallDetector watches the candidate stream for a search that keeps
// proposing nearly the same design. A candidate is a repeat when every
// tracked variable moved less than the threshold since the previous one.
type StallDetector struct {
	threshold float64
	patience  int
	variables []string

	prev    types.DesignVector
	repeats int
}

// NewStallDetector creates a detector from cfg. Missing values fall back to
// the defaults of types.DefaultBridgeConfig.
func NewStallDetector(cfg types.EarlyStopConfig) *StallDetector {
	def := types.DefaultBridgeConfig().EarlyStop
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.Patience <= 0 {
		cfg.Patience = def.Patience
	}
	if len(cfg.Variables) == 0 {
		cfg.Variables = def.Variables
	}
	return &StallDetector{
		threshold: cfg.Threshold,
		patience:  cfg.Patience,
		variables: append([]string(nil), cfg.Variables...),
	}
}

// Observe records dv and returns types.ErrEarlyStop once more than patience
// consecutive repeats have been seen. A stopped candidate is not recorded.
func (d *StallDetector) Observe(dv types.DesignVector) error {
	if d.prev != nil {
		if d.repeat(dv) {
			d.repeats++
		} else {
			d.repeats = 0
		}
		if d.repeats > d.patience {
			return fmt.Errorf("%w: %d consecutive candidates within %g on %v",
				types.ErrEarlyStop, d.repeats, d.threshold, d.variables)
		}
	}

	d.prev = make(types.DesignVector, len(d.variables))
	for _, v := range d.variables {
		d.prev[v] = dv[v]
	}
	return nil
}

func (d *StallDetector) repeat(dv types.DesignVector) bool {
	for _, v := range d.variables {
		if math.Abs(dv[v]-d.prev[v]) >= d.threshold {
			return false
		}
	}
	return true
}

// Repeats returns the current run of consecutive repeats.
func (d *StallDetector) Repeats() int { return d.repeats }

// Reset forgets the previous candidate.
func (d *StallDetector) Reset() {
	d.prev = nil
	d.repeats = 0
}
