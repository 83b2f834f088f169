// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the rotor-bridge CLI. It connects an
// external optimization driver to the rotor solver: each design vector is
// turned into solver inputs, the solver is run, and the parsed results are
// recorded in the iteration ledger.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

// envKeyReplacer maps nested keys to variable names: solver.command is
// read from ROTOR_BRIDGE_SOLVER_COMMAND.
var envKeyReplacer = strings.NewReplacer(".", "_")

// rootCmd is the base command for the rotor-bridge CLI.
var rootCmd = &cobra.Command{
	Use:   "rotor-bridge",
	Short: "Evaluate rotor blade designs with an external solver",
	Long: `rotor-bridge evaluates candidate rotor blade designs for an external
optimization driver. For every design vector it writes the solver input
files, runs the solver, parses the acoustic and performance outputs, and
records the iteration in a CSV ledger that survives interruption.

Failed solver runs never stop the search: they are recorded with penalty
scores so the driver steers away from them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(viper.GetString("log_level"), viper.GetString("log_format"))
	},
}

func setupLogging(level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logrus.SetLevel(lvl)
	logrus.SetOutput(os.Stderr)

	switch format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unsupported log format %q: use text or json", format)
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./rotor-bridge.yaml or ~/.config/rotor-bridge/rotor-bridge.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("work-dir", "", "directory for solver inputs, outputs and the ledger")
	pf.String("ledger", "", "ledger CSV file (relative to the work directory)")

	bindFlag("log_level", "log-level")
	bindFlag("log_format", "log-format")
	bindFlag("work_dir", "work-dir")
	bindFlag("ledger.path", "ledger")
}

func bindFlag(key, flag string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("rotor-bridge")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "rotor-bridge"))
		}
	}

	viper.SetEnvPrefix("ROTOR_BRIDGE")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()
	setConfigDefaults()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
