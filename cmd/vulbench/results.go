package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/czt0517/vulbench/internal/results"
	"github.com/czt0517/vulbench/internal/storage"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Post-process trainer test logs",
}

var (
	collectOutput string
	collectToDB   bool
)

var resultsCollectCmd = &cobra.Command{
	Use:   "collect <log-dir>",
	Short: "Collect metrics from test_with_*.log files into a summary CSV",
	Args:  cobra.ExactArgs(1),
	RunE:  runResultsCollect,
}

var deltasOutput string

var resultsDeltasCmd = &cobra.Command{
	Use:   "deltas <summary-csv>",
	Short: "Compute TP set deltas against the 'only' baseline per dataset",
	Args:  cobra.ExactArgs(1),
	RunE:  runResultsDeltas,
}

var (
	cwesOutput   string
	cwesTestCSVs []string
	cwesLatex    bool
)

var resultsCWEsCmd = &cobra.Command{
	Use:   "cwes <summary-csv>",
	Short: "Map TP indices to CWE identifiers (or emit a LaTeX count table)",
	Args:  cobra.ExactArgs(1),
	RunE:  runResultsCWEs,
}

func init() {
	resultsCollectCmd.Flags().StringVarP(&collectOutput, "output", "o", "test_summary_results.csv",
		"output CSV (relative paths land in the log directory)")
	resultsCollectCmd.Flags().BoolVar(&collectToDB, "db", false, "also record runs in the experiment registry")

	resultsDeltasCmd.Flags().StringVarP(&deltasOutput, "output", "o", "test_tp_deltas.csv",
		"output CSV (relative paths land next to the summary)")

	resultsCWEsCmd.Flags().StringVarP(&cwesOutput, "output", "o", "test_summary_results_cwe.csv",
		"output CSV (relative paths land next to the summary)")
	resultsCWEsCmd.Flags().StringSliceVar(&cwesTestCSVs, "test-csv", nil,
		"dataset=path pairs mapping dataset names to their test CSVs, e.g. primevul=data/primevul/test.csv")
	resultsCWEsCmd.Flags().BoolVar(&cwesLatex, "latex", false, "print a LaTeX TP-count table instead")

	resultsCmd.AddCommand(resultsCollectCmd)
	resultsCmd.AddCommand(resultsDeltasCmd)
	resultsCmd.AddCommand(resultsCWEsCmd)
}

func runResultsCollect(cmd *cobra.Command, args []string) error {
	logDir := args[0]

	rows, err := results.Collect(logDir)
	if err != nil {
		return err
	}

	outPath := collectOutput
	if !filepath.IsAbs(outPath) {
		outPath = filepath.Join(logDir, outPath)
	}
	if err := results.WriteSummaryCSV(outPath, rows); err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{"file": outPath, "runs": len(rows)}).Info("summary written")

	if collectToDB {
		if err := recordRuns(cmd.Context(), rows); err != nil {
			return err
		}
	}
	return nil
}

func recordRuns(ctx context.Context, rows []results.Summary) error {
	store, err := storage.NewStore(cfg.Storage.LocalPath, logger)
	if err != nil {
		return fmt.Errorf("open experiment registry: %w", err)
	}
	defer store.Close()

	for _, r := range rows {
		run := storage.NewRun(r.Dataset, r.TrainVariant, storage.RunKindTest)
		run.LogFile = r.LogFile
		if err := store.SaveRun(ctx, run); err != nil {
			return fmt.Errorf("save run %s: %w", r.LogFile, err)
		}
		if err := store.SaveMetrics(ctx, run.ID, r.Metrics); err != nil {
			return err
		}
	}
	logger.WithField("runs", len(rows)).Info("runs recorded in registry")
	return nil
}

func runResultsDeltas(cmd *cobra.Command, args []string) error {
	summaryPath := args[0]

	rows, err := results.ReadSummaryCSV(summaryPath)
	if err != nil {
		return err
	}
	deltas, err := results.ComputeDeltas(rows)
	if err != nil {
		return err
	}

	outPath := deltasOutput
	if !filepath.IsAbs(outPath) {
		outPath = filepath.Join(filepath.Dir(summaryPath), outPath)
	}
	if err := results.WriteDeltasCSV(outPath, deltas); err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{"file": outPath, "deltas": len(deltas)}).Info("TP delta table written")
	return nil
}

func runResultsCWEs(cmd *cobra.Command, args []string) error {
	summaryPath := args[0]

	rows, err := results.ReadSummaryCSV(summaryPath)
	if err != nil {
		return err
	}

	if cwesLatex {
		table, err := results.LaTeXTable(rows)
		if err != nil {
			return err
		}
		fmt.Print(table)
		return nil
	}

	if len(cwesTestCSVs) == 0 {
		return fmt.Errorf("at least one --test-csv dataset=path mapping is required")
	}
	mappings := map[string]map[int][]string{}
	for _, pair := range cwesTestCSVs {
		name, path, found := strings.Cut(pair, "=")
		if !found {
			return fmt.Errorf("bad --test-csv value %q, want dataset=path", pair)
		}
		m, err := results.LoadIndexToCWE(path)
		if err != nil {
			return err
		}
		mappings[name] = m
	}

	cweRows, err := results.MapSummaryToCWEs(rows, mappings)
	if err != nil {
		return err
	}

	outPath := cwesOutput
	if !filepath.IsAbs(outPath) {
		outPath = filepath.Join(filepath.Dir(summaryPath), outPath)
	}
	if err := results.WriteCWECSV(outPath, cweRows); err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{"file": outPath, "rows": len(cweRows)}).Info("CWE table written")
	return nil
}
