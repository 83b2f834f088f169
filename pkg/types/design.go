// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// Design variable names. Angles are in degrees; ZDistance is the lateral
// offset of the second rotor.
const (
	VarTwist     = "Twist"
	VarAnhedral  = "Anhedral"
	VarZDistance = "ZDistance"
)

// SegmentCount is the number of blade segments carrying a twist offset.
const SegmentCount = 10

// DesignVariables lists every design variable in ledger column order.
var DesignVariables = func() []string {
	names := []string{VarTwist, VarAnhedral, VarZDistance}
	for i := 1; i <= SegmentCount; i++ {
		names = append(names, SegmentTwist(i))
	}
	return names
}()

// SegmentTwist returns the variable name of the twist offset for segment i
// (1-based).
func SegmentTwist(i int) string {
	return fmt.Sprintf("Twist%d", i)
}

// DesignVector maps design variable names to values. Ranges are enforced by
// the optimization driver, not here.
type DesignVector map[string]float64

// Validate reports a configuration error naming every missing variable.
func (dv DesignVector) Validate() error {
	var missing []string
	for _, name := range DesignVariables {
		if _, ok := dv[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: design vector missing %s", ErrConfiguration, strings.Join(missing, ", "))
	}
	return nil
}

// SegmentTwists returns the ten per-segment twist offsets in segment order.
func (dv DesignVector) SegmentTwists() []float64 {
	out := make([]float64, SegmentCount)
	for i := range out {
		out[i] = dv[SegmentTwist(i+1)]
	}
	return out
}

// Topology describes how many rotors are simulated and the total blade count
// shared between them.
type Topology struct {
	// Rotors is the number of rotors (1 or 2).
	Rotors int `json:"rotors" yaml:"rotors" mapstructure:"rotors"`

	// Blades is the total blade count across all rotors.
	Blades int `json:"blades" yaml:"blades" mapstructure:"blades"`
}

// Validate rejects rotor counts outside {1,2} and blade counts that do not
// divide evenly between the rotors.
func (t Topology) Validate() error {
	if t.Rotors != 1 && t.Rotors != 2 {
		return fmt.Errorf("%w: rotor count %d not in {1,2}", ErrConfiguration, t.Rotors)
	}
	if t.Blades <= 0 || t.Blades%t.Rotors != 0 {
		return fmt.Errorf("%w: blade count %d is not a positive multiple of rotor count %d",
			ErrConfiguration, t.Blades, t.Rotors)
	}
	return nil
}

// BladesPerRotor returns the blade count of a single rotor.
func (t Topology) BladesPerRotor() int {
	return t.Blades / t.Rotors
}
