// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/rotor-bridge/internal/archive"
	"github.com/pdiddy/rotor-bridge/internal/ledger"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect, archive and query iteration ledgers",
	Long: `Ledger works with the CSV ledger written by evaluate and serve, and with
the SQLite archive that collects ledgers across runs.`,
}

// --- show subcommand ---

var ledgerShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the rows of the ledger",
	RunE:  runLedgerShow,
}

func runLedgerShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tail, _ := cmd.Flags().GetInt("tail")
	columns, _ := cmd.Flags().GetStringSlice("columns")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	l, err := ledger.Load(cfg.LedgerFile())
	if err != nil {
		return err
	}
	rows := l.Rows()
	if tail > 0 && len(rows) > tail {
		rows = rows[len(rows)-tail:]
	}
	if len(columns) == 0 {
		columns = l.Columns()
	}

	if jsonOutput {
		out := make([]map[string]string, len(rows))
		for i, r := range rows {
			out[i] = make(map[string]string, len(columns))
			for _, c := range columns {
				out[i][c] = r.Text(c)
			}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(columns, "\t"))
	for _, r := range rows {
		cells := make([]string, len(columns))
		for i, c := range columns {
			cells[i] = r.Text(c)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "\n%d rows\n", len(rows))
	return nil
}

// --- archive subcommand ---

var ledgerArchiveCmd = &cobra.Command{
	Use:   "archive [ledger.csv...]",
	Short: "Import ledgers into the SQLite archive",
	Long: `Archive copies one or more ledgers into the SQLite archive as new runs.
Without arguments the configured ledger is imported. Ledgers unchanged since
their last import are skipped.`,
	RunE: runLedgerArchive,
}

func runLedgerArchive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := archive.NewStore(cfg.Archive)
	if err != nil {
		return err
	}
	defer store.Close()

	paths := args
	if len(paths) == 0 {
		paths = []string{cfg.LedgerFile()}
	}
	for _, p := range paths {
		if _, err := store.Import(context.Background(), p, os.Stdout); err != nil {
			return err
		}
	}
	return nil
}

// --- best subcommand ---

var ledgerBestCmd = &cobra.Command{
	Use:   "best <column>",
	Short: "List the best archived evaluations by one column",
	Long: `Best ranks archived evaluations by a ledger column, lowest first unless
--maximize is given. Penalized evaluations are left out unless
--include-penalties is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runLedgerBest,
}

func runLedgerBest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	maximize, _ := cmd.Flags().GetBool("maximize")
	limit, _ := cmd.Flags().GetInt("limit")
	runID, _ := cmd.Flags().GetString("run")
	withPenalties, _ := cmd.Flags().GetBool("include-penalties")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	store, err := archive.NewStore(cfg.Archive)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := archive.QueryOptions{Column: args[0], Maximize: maximize, RunID: runID, Limit: limit}
	if !withPenalties {
		opts.Exclude = []float64{cfg.Penalty.Observer, cfg.Penalty.Performance}
	}
	results, err := store.Best(context.Background(), opts)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Rank\t%s\tIteration\tTime\tRun\n", args[0])
	for i, r := range results {
		fmt.Fprintf(tw, "%d\t%g\t%d\t%s\t%s\n", i+1, r.Value, r.Iteration, r.Time, r.RunID)
	}
	return tw.Flush()
}

// --- export subcommand ---

var ledgerExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export archived evaluations to YAML or JSON",
	RunE:  runLedgerExport,
}

func runLedgerExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	out, _ := cmd.Flags().GetString("out")
	runID, _ := cmd.Flags().GetString("run")

	store, err := archive.NewStore(cfg.Archive)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	switch format {
	case "yaml", "":
		if out == "" {
			out = "export.yaml"
		}
		err = store.ExportYAML(ctx, runID, out)
	case "json":
		if out == "" {
			out = "export.json"
		}
		err = store.ExportJSON(ctx, runID, out)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Exported to %s\n", out)
	return nil
}

func init() {
	ledgerShowCmd.Flags().Int("tail", 0, "show only the last N rows (0 = all)")
	ledgerShowCmd.Flags().StringSlice("columns", nil, "columns to show (default: all)")
	ledgerShowCmd.Flags().Bool("json", false, "output rows as JSON")

	ledgerCmd.PersistentFlags().String("archive", "", "SQLite archive file")
	if err := viper.BindPFlag("archive.path", ledgerCmd.PersistentFlags().Lookup("archive")); err != nil {
		panic(err)
	}

	ledgerBestCmd.Flags().Bool("maximize", false, "rank the largest values first")
	ledgerBestCmd.Flags().Int("limit", 10, "maximum number of results")
	ledgerBestCmd.Flags().String("run", "", "restrict to one archived run")
	ledgerBestCmd.Flags().Bool("include-penalties", false, "keep penalized evaluations")
	ledgerBestCmd.Flags().Bool("json", false, "output results as JSON")

	ledgerExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	ledgerExportCmd.Flags().String("out", "", "output file (default: export.yaml or export.json)")
	ledgerExportCmd.Flags().String("run", "", "export one archived run (default: all)")

	ledgerCmd.AddCommand(ledgerShowCmd)
	ledgerCmd.AddCommand(ledgerArchiveCmd)
	ledgerCmd.AddCommand(ledgerBestCmd)
	ledgerCmd.AddCommand(ledgerExportCmd)

	rootCmd.AddCommand(ledgerCmd)
}
