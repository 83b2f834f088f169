// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/rotor-bridge/internal/bridge"
	"github.com/pdiddy/rotor-bridge/pkg/types"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate one design vector and record it in the ledger",
	Long: `Evaluate runs a single design vector through the solver. The design is
read from a YAML or JSON file (--design) and individual variables can be
overridden with --set Name=value. The resulting record is printed to
stdout; a failed solver run is recorded with penalty scores.`,
	RunE: runEvaluate,
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	iteration, _ := cmd.Flags().GetInt("iteration")
	designFile, _ := cmd.Flags().GetString("design")
	sets, _ := cmd.Flags().GetStringArray("set")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	verbose, _ := cmd.Flags().GetBool("verbose")

	dv, err := readDesign(designFile, sets)
	if err != nil {
		return err
	}

	session, err := bridge.Open(cfg, logrus.WithField("command", "evaluate"))
	if err != nil {
		return err
	}
	session.SetOutput(os.Stderr)
	if verbose {
		session.SetSolverOutput(os.Stderr)
	}

	rec, err := session.Step(context.Background(), iteration, dv)
	if err != nil {
		return err
	}
	if err := session.Flush(); err != nil {
		return err
	}
	return printRecord(rec, jsonOutput)
}

// readDesign loads a design vector from path (YAML or JSON) and applies
// Name=value overrides.
func readDesign(path string, sets []string) (types.DesignVector, error) {
	dv := types.DesignVector{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading design file: %w", err)
		}
		if err := yaml.Unmarshal(data, &dv); err != nil {
			return nil, fmt.Errorf("%w: parsing design file %s: %v", types.ErrConfiguration, path, err)
		}
	}
	for _, s := range sets {
		name, raw, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("%w: --set %q is not Name=value", types.ErrConfiguration, s)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: --set %s: %v", types.ErrConfiguration, name, err)
		}
		dv[strings.TrimSpace(name)] = v
	}
	return dv, dv.Validate()
}

func printRecord(rec types.EvaluationRecord, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	_, err = os.Stdout.Write(data)
	return err
}

func init() {
	evaluateCmd.Flags().Int("iteration", 0, "iteration number assigned by the driver")
	evaluateCmd.Flags().String("design", "", "YAML or JSON file holding the design vector")
	evaluateCmd.Flags().StringArray("set", nil, "override a design variable, e.g. --set Twist=12.5")
	evaluateCmd.Flags().Bool("json", false, "print the record as JSON")
	evaluateCmd.Flags().BoolP("verbose", "v", false, "show solver output on stderr")
	_ = evaluateCmd.MarkFlagRequired("iteration")

	rootCmd.AddCommand(evaluateCmd)
}
