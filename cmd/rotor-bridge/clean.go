// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/rotor-bridge/internal/synth"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove generated solver input files from the work directory",
	Long: `Clean deletes the geometry, rotor-wake and run descriptor files written
for the last evaluation. With --outputs the solver's observer table and
performance log are removed as well. The ledger is never touched.`,
	RunE: runClean,
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	outputs, _ := cmd.Flags().GetBool("outputs")

	s := synth.New(cfg.WorkDir, cfg.Synthesis)
	if err := s.Clean(); err != nil {
		return err
	}
	fmt.Printf("removed inputs: %s\n", cfg.Synthesis.Basename+"{bg,rw,name}.inp")

	if !outputs {
		return nil
	}
	var errs []error
	for _, name := range []string{cfg.Parser.ObserverFile, cfg.Parser.PerformanceLog} {
		if name == "" {
			continue
		}
		p := name
		if !filepath.IsAbs(p) {
			p = filepath.Join(cfg.WorkDir, p)
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("removing %s: %w", p, err))
			continue
		}
		fmt.Printf("removed output: %s\n", p)
	}
	return errors.Join(errs...)
}

func init() {
	cleanCmd.Flags().Bool("outputs", false, "also remove the solver output files")

	rootCmd.AddCommand(cleanCmd)
}
