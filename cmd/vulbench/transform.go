package main

import (
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/czt0517/vulbench/internal/dataset"
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Convert raw dataset JSONL files into LineVul CSVs",
}

var transformReposvulCmd = &cobra.Command{
	Use:   "reposvul",
	Short: "Transform ReposVul JSONL into train/val/test CSVs",
	Long: `Transforms ReposVul JSONL into the CSV schema the trainer consumes.

Either pass pre-split files (--train/--val/--test) or a single --all
file, which is stratified-split 80/10/10 with a fixed seed.`,
	RunE: runTransformReposvul,
}

var transformPrimevulCmd = &cobra.Command{
	Use:   "primevul",
	Short: "Extract C functions from PrimeVul JSONL into a CSV",
	RunE:  runTransformPrimevul,
}

var (
	reposvulTrain  string
	reposvulVal    string
	reposvulTest   string
	reposvulAll    string
	reposvulOutDir string
	reposvulSeed   int64
	reposvulTrainR float64
	reposvulValR   float64

	primevulInput  string
	primevulOutput string
)

func init() {
	transformReposvulCmd.Flags().StringVar(&reposvulTrain, "train", "", "pre-split train JSONL")
	transformReposvulCmd.Flags().StringVar(&reposvulVal, "val", "", "pre-split val JSONL")
	transformReposvulCmd.Flags().StringVar(&reposvulTest, "test", "", "pre-split test JSONL")
	transformReposvulCmd.Flags().StringVar(&reposvulAll, "all", "", "single JSONL to split")
	transformReposvulCmd.Flags().StringVar(&reposvulOutDir, "out-dir", "", "output directory (required)")
	transformReposvulCmd.Flags().Int64Var(&reposvulSeed, "seed", 123456, "split shuffle seed")
	transformReposvulCmd.Flags().Float64Var(&reposvulTrainR, "train-ratio", 0.8, "train split fraction")
	transformReposvulCmd.Flags().Float64Var(&reposvulValR, "val-ratio", 0.1, "val split fraction")
	transformReposvulCmd.MarkFlagRequired("out-dir")

	transformPrimevulCmd.Flags().StringVarP(&primevulInput, "input", "i", "", "input JSONL (required)")
	transformPrimevulCmd.Flags().StringVarP(&primevulOutput, "output", "o", "", "output CSV (required)")
	transformPrimevulCmd.MarkFlagRequired("input")
	transformPrimevulCmd.MarkFlagRequired("output")

	transformCmd.AddCommand(transformReposvulCmd)
	transformCmd.AddCommand(transformPrimevulCmd)
}

func runTransformReposvul(cmd *cobra.Command, args []string) error {
	preSplit := reposvulTrain != "" && reposvulVal != "" && reposvulTest != ""
	if !preSplit && reposvulAll == "" {
		return fmt.Errorf("provide either --train/--val/--test or --all")
	}

	if preSplit {
		// The three files are independent; transform them in parallel.
		inputs := map[string]string{
			"train.csv": reposvulTrain,
			"val.csv":   reposvulVal,
			"test.csv":  reposvulTest,
		}
		var eg errgroup.Group
		for out, in := range inputs {
			out, in := out, in
			eg.Go(func() error {
				rows, stats, err := dataset.TransformReposVul(in, logger)
				if err != nil {
					return fmt.Errorf("%s: %w", in, err)
				}
				outPath := filepath.Join(reposvulOutDir, out)
				n, err := dataset.WriteRecords(outPath, rows)
				if err != nil {
					return err
				}
				logger.WithFields(logrus.Fields{"file": outPath, "rows": n, "stats": stats.String()}).Info("split written")
				return nil
			})
		}
		return eg.Wait()
	}

	ratios := dataset.SplitRatios{
		Train: reposvulTrainR,
		Val:   reposvulValR,
		Test:  1.0 - reposvulTrainR - reposvulValR,
	}
	if err := ratios.Validate(); err != nil {
		return err
	}

	rows, stats, err := dataset.TransformReposVul(reposvulAll, logger)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{"rows": len(rows), "stats": stats.String()}).Info("transformed all rows")

	train, val, test := dataset.StratifiedSplit(rows, reposvulSeed, ratios)
	for _, split := range []struct {
		name string
		rows []dataset.Record
	}{
		{"train.csv", train}, {"val.csv", val}, {"test.csv", test},
	} {
		outPath := filepath.Join(reposvulOutDir, split.name)
		n, err := dataset.WriteRecords(outPath, split.rows)
		if err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{"file": outPath, "rows": n}).Info("split written")
	}
	return nil
}

func runTransformPrimevul(cmd *cobra.Command, args []string) error {
	rows, stats, err := dataset.TransformPrimeVul(primevulInput)
	if err != nil {
		return err
	}
	n, err := dataset.WriteRecords(primevulOutput, rows)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"file":  primevulOutput,
		"rows":  n,
		"stats": stats.String(),
	}).Info("C functions written")
	return nil
}
