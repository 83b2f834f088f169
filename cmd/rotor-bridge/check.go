// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/rotor-bridge/internal/solver"
	"github.com/pdiddy/rotor-bridge/pkg/types"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the configuration, solver and static input files",
	Long: `Check validates the effective configuration, confirms the solver command
can be executed, and looks for the static input files the run descriptor
references. Use --show to print the effective configuration as YAML.`,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	show, _ := cmd.Flags().GetBool("show")
	if show {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshaling configuration: %w", err)
		}
		os.Stdout.Write(data)
		fmt.Println()
	}

	failed := 0
	report := func(name string, err error) {
		if err != nil {
			fmt.Printf("FAIL  %s: %v\n", name, err)
			failed++
			return
		}
		fmt.Printf("ok    %s\n", name)
	}

	report("configuration", cfg.Validate())
	inv := solver.New(cfg.WorkDir, cfg.Solver, logrus.WithField("command", "check"))
	report("solver "+inv.Command(), inv.Available())
	for _, f := range staticFiles(cfg) {
		_, err := os.Stat(f)
		report("static input "+f, err)
	}

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

// staticFiles returns the never-generated input files the solver reads,
// resolved against the work directory and the configured search path.
func staticFiles(cfg types.BridgeConfig) []string {
	names := []string{cfg.Synthesis.BladeDynamicsFile, cfg.Synthesis.AirfoilFile}
	if cfg.Synthesis.Topology.Rotors == 2 {
		names = append(names, cfg.Synthesis.BaseRotorWakeFile)
	}
	base := cfg.Synthesis.PathName
	if !filepath.IsAbs(base) {
		base = filepath.Join(cfg.WorkDir, base)
	}
	var out []string
	for _, n := range names {
		if n != "" {
			out = append(out, filepath.Join(base, n))
		}
	}
	return out
}

func init() {
	checkCmd.Flags().Bool("show", false, "print the effective configuration")

	rootCmd.AddCommand(checkCmd)
}
