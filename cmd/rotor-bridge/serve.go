// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/rotor-bridge/internal/bridge"
	"github.com/pdiddy/rotor-bridge/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Evaluate design vectors streamed by an optimization driver",
	Long: `Serve reads one JSON request per line from stdin,

  {"iteration": 12, "design": {"Twist": 10.5, "Anhedral": -4, ...}}

evaluates it, and writes one JSON response per line to stdout. The loop
ends at end of input, on early stop, or on SIGINT/SIGTERM. An evaluation
in progress when a signal arrives is finished and recorded, and the ledger
is flushed before exit.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	verbose, _ := cmd.Flags().GetBool("verbose")

	session, err := bridge.Open(cfg, logrus.WithField("command", "serve"))
	if err != nil {
		return err
	}
	session.SetOutput(os.Stderr)
	if verbose {
		session.SetSolverOutput(os.Stderr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := session.Serve(ctx, os.Stdin, os.Stdout)
	fmt.Fprintf(os.Stderr, "\nevaluated: %d, penalized: %d, rejected: %d\n",
		sum.Evaluated, sum.Penalized, sum.Rejected)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, types.ErrEarlyStop):
		fmt.Fprintln(os.Stderr, "early stop: the search has converged, ledger saved")
		return nil
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "interrupted, ledger saved")
		return nil
	default:
		return err
	}
}

func init() {
	serveCmd.Flags().BoolP("verbose", "v", false, "show solver output on stderr")
	serveCmd.Flags().Bool("early-stop", false, "stop when the driver keeps proposing the same design")
	if err := viper.BindPFlag("early_stop.enabled", serveCmd.Flags().Lookup("early-stop")); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(serveCmd)
}
