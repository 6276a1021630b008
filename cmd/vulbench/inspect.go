package main

import (
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/czt0517/vulbench/internal/dataset"
	"github.com/czt0517/vulbench/internal/inspect"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Dataset sanity-check helpers",
}

var inspectRowsCmd = &cobra.Command{
	Use:   "rows <csv> <indices>",
	Short: "Extract rows by dataset index into a text file",
	Long: `Indices are 0-based dataset order (row 0 is the first data row), given
either as '[2, 67, 71]' or '2,67,71'. The selected rows are written to
<base>_selected_indices.txt next to the CSV.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		indices, err := inspect.ParseIndicesArg(args[1])
		if err != nil {
			return err
		}
		outPath, err := inspect.ExtractRows(args[0], indices)
		if err != nil {
			return err
		}
		logger.WithField("file", outPath).Info("selected rows written")
		return nil
	},
}

var (
	inspectFuncCSV   string
	inspectFuncJSONL string
)

var inspectFuncCmd = &cobra.Command{
	Use:   "func <index>",
	Short: "Find the source JSONL entries for a CSV row",
	Long: `Looks up processed_func at the given dataset index in the test CSV,
then prints every JSONL object whose func field matches it exactly.
Useful for tracing a true positive back to its CVE metadata.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		matches, err := inspect.SearchFuncByIndex(inspectFuncCSV, inspectFuncJSONL, index, os.Stdout)
		if err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{"index": index, "matches": matches}).Debug("search done")
		return nil
	},
}

var (
	inspectCWECSV      string
	inspectCWEMaxHits  int
	inspectCWEContains string
)

var inspectCWECmd = &cobra.Command{
	Use:   "cwe <cwe-id>",
	Short: "Print the first functions matching a CWE",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := inspect.ShowCWEFuncs(inspectCWECSV, inspect.CWEQuery{
			CWE:      args[0],
			MaxHits:  inspectCWEMaxHits,
			Contains: inspectCWEContains,
		}, os.Stdout)
		return err
	},
}

var inspectReindexCmd = &cobra.Command{
	Use:   "reindex <csv>",
	Short: "Insert a 0-based index column (backing up the original)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backup, err := dataset.Reindex(args[0])
		if err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{"file": args[0], "backup": backup}).Info("index column written")
		return nil
	},
}

func init() {
	inspectFuncCmd.Flags().StringVar(&inspectFuncCSV, "csv", "", "test CSV to resolve the index in (required)")
	inspectFuncCmd.Flags().StringVar(&inspectFuncJSONL, "jsonl", "", "source JSONL to search (required)")
	inspectFuncCmd.MarkFlagRequired("csv")
	inspectFuncCmd.MarkFlagRequired("jsonl")

	inspectCWECmd.Flags().StringVar(&inspectCWECSV, "csv", "", "sample CSV to search (required)")
	inspectCWECmd.Flags().IntVar(&inspectCWEMaxHits, "max-hits", 5, "stop after this many matches")
	inspectCWECmd.Flags().StringVar(&inspectCWEContains, "contains", "", "additional substring filter on the code")
	inspectCWECmd.MarkFlagRequired("csv")

	inspectCmd.AddCommand(inspectRowsCmd)
	inspectCmd.AddCommand(inspectFuncCmd)
	inspectCmd.AddCommand(inspectCWECmd)
	inspectCmd.AddCommand(inspectReindexCmd)
}
