// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package synth writes the solver input files for one design vector: the
// blade geometry, the rotor-wake settings, and the run descriptor that ties
// them to the static base files.
package synth

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pdiddy/rotor-bridge/pkg/types"
)

const (
	geometrySuffix   = "bg.inp"
	rotorWakeSuffix  = "rw.inp"
	descriptorSuffix = "name.inp"
)

// InputSet holds the paths of the generated input files.
type InputSet struct {
	Geometry      string
	RotorWake     string
	RunDescriptor string
}

// Paths returns the three file paths in write order.
func (s InputSet) Paths() []string {
	return []string{s.Geometry, s.RotorWake, s.RunDescriptor}
}

// Synthesizer renders and writes solver input files into a fixed directory.
// Every Write overwrites the previous set, so only one evaluation may use a
// directory at a time.
type Synthesizer struct {
	dir string
	cfg types.SynthesisConfig
}

// New creates a Synthesizer writing into dir.
func New(dir string, cfg types.SynthesisConfig) *Synthesizer {
	if dir == "" {
		dir = "."
	}
	return &Synthesizer{dir: dir, cfg: cfg}
}

// Files returns the solver-mandated input file paths.
func (s *Synthesizer) Files() InputSet {
	return InputSet{
		Geometry:      filepath.Join(s.dir, s.cfg.Basename+geometrySuffix),
		RotorWake:     filepath.Join(s.dir, s.cfg.Basename+rotorWakeSuffix),
		RunDescriptor: filepath.Join(s.dir, s.cfg.Basename+descriptorSuffix),
	}
}

// Write validates topo and dv, then writes the three input files. Validation
// failures wrap types.ErrConfiguration and happen before any file is touched;
// write failures wrap types.ErrFilesystem.
func (s *Synthesizer) Write(dv types.DesignVector, topo types.Topology) (InputSet, error) {
	if err := topo.Validate(); err != nil {
		return InputSet{}, err
	}
	if err := dv.Validate(); err != nil {
		return InputSet{}, err
	}

	files := s.Files()
	contents := []struct {
		path string
		body string
	}{
		{files.Geometry, renderGeometry(dv)},
		{files.RotorWake, renderRotorWake(dv, topo, s.cfg.RotationRate)},
		{files.RunDescriptor, renderRunDescriptor(s.cfg, topo, files)},
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return InputSet{}, fmt.Errorf("%w: creating work directory %s: %v", types.ErrFilesystem, s.dir, err)
	}
	for _, c := range contents {
		if err := os.WriteFile(c.path, []byte(c.body), 0o644); err != nil {
			return InputSet{}, fmt.Errorf("%w: writing %s: %v", types.ErrFilesystem, c.path, err)
		}
	}
	return files, nil
}

// Clean removes the generated input files. Files that do not exist are
// ignored.
func (s *Synthesizer) Clean() error {
	var errs []error
	for _, p := range s.Files().Paths() {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("removing %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}
