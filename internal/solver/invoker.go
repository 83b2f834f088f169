// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package solver runs the external aerodynamics/acoustics solver as a
// blocking subprocess in the work directory. The only observable result is
// whether the process completed; output files are checked by the parser.
package solver

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/rotor-bridge/pkg/types"
)

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, dir, name string, args []string, out io.Writer) error
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) Run(ctx context.Context, dir, name string, args []string, out io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = out
	cmd.Stderr = out
	return cmd.Run()
}

var defaultExec = &osExecutor{}

// Invoker runs the configured solver command.
type Invoker struct {
	dir  string
	cfg  types.SolverConfig
	exec executor
	out  io.Writer
	log  *logrus.Entry
}

// New creates an Invoker that runs cfg.Command inside dir. Solver output is
// discarded unless SetOutput is called.
func New(dir string, cfg types.SolverConfig, log *logrus.Entry) *Invoker {
	return newInvoker(dir, cfg, defaultExec, log)
}

func newInvoker(dir string, cfg types.SolverConfig, exec executor, log *logrus.Entry) *Invoker {
	if dir == "" {
		dir = "."
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Invoker{dir: dir, cfg: cfg, exec: exec, out: io.Discard, log: log}
}

// SetOutput directs the solver's combined stdout and stderr to w.
func (v *Invoker) SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	v.out = w
}

// Command returns the command line that Run executes.
func (v *Invoker) Command() string {
	return strings.Join(append([]string{v.cfg.Command}, v.cfg.Args...), " ")
}

// resolved returns the command as LookPath should see it. Commands with a
// path separator are relative to the work directory.
func (v *Invoker) resolved() string {
	c := v.cfg.Command
	if strings.ContainsRune(c, filepath.Separator) && !filepath.IsAbs(c) {
		return filepath.Join(v.dir, c)
	}
	return c
}

// Available reports whether the solver command exists and is executable.
func (v *Invoker) Available() error {
	if v.cfg.Command == "" {
		return fmt.Errorf("%w: solver command is empty", types.ErrConfiguration)
	}
	if _, err := v.exec.LookPath(v.resolved()); err != nil {
		return fmt.Errorf("solver %s not available: %w", v.cfg.Command, err)
	}
	return nil
}

// Run executes the solver and blocks until it exits. A non-zero exit, a
// missing binary, and a timeout are reported alike as types.ErrSolverFailed.
func (v *Invoker) Run(ctx context.Context) error {
	if v.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := v.exec.Run(ctx, v.dir, v.cfg.Command, v.cfg.Args, v.out)
	elapsed := time.Since(start)

	if err != nil {
		v.log.WithFields(logrus.Fields{"command": v.Command(), "elapsed": elapsed}).
			WithError(err).Warn("solver run failed")
		return fmt.Errorf("%w: %s: %v", types.ErrSolverFailed, v.Command(), err)
	}
	v.log.WithFields(logrus.Fields{"command": v.Command(), "elapsed": elapsed}).Debug("solver run completed")
	return nil
}
