package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/czt0517/vulbench/internal/augment"
)

var augmentCmd = &cobra.Command{
	Use:   "augment",
	Short: "Merge synthetic sample CSVs into a transformed train split",
	Long: `Converts the synthetic vulnerable/non-vulnerable CSVs into the trainer
schema (labels forced by file) and concatenates them with the real
train split. Val/test pass through unchanged by default so evaluation
stays on real-world vulnerabilities.`,
	RunE: runAugment,
}

var augOpts augment.Options

func init() {
	f := augmentCmd.Flags()
	f.StringVar(&augOpts.TrainCSV, "train", "", "real train.csv (required)")
	f.StringVar(&augOpts.ValCSV, "val", "", "real val.csv (auto-detected next to train when omitted)")
	f.StringVar(&augOpts.TestCSV, "test", "", "real test.csv (auto-detected next to train when omitted)")
	f.StringVar(&augOpts.VulnCSV, "vuln", "", "synthetic vulnerable CSV (required)")
	f.StringVar(&augOpts.NonVulnCSV, "nonvuln", "", "synthetic non-vulnerable CSV (required)")
	f.StringVar(&augOpts.OutDir, "out-dir", "", "output directory (required)")
	f.BoolVar(&augOpts.DedupWithinSynth, "dedup-within-synth", false, "deduplicate synthetic samples by body hash")
	f.BoolVar(&augOpts.DedupAgainstTrain, "dedup-against-train", false, "drop synthetic samples already in train")
	f.BoolVar(&augOpts.KeepOnlyComplete, "keep-only-complete", false, "keep only rows with is_complete=true")

	var mode string
	f.StringVar(&mode, "augment-split", string(augment.AugmentTrainOnly), "train-only or all")
	augmentCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		switch augment.SplitMode(mode) {
		case augment.AugmentTrainOnly, augment.AugmentAll:
			augOpts.Mode = augment.SplitMode(mode)
			return nil
		}
		return fmt.Errorf("invalid --augment-split %q", mode)
	}

	augmentCmd.MarkFlagRequired("train")
	augmentCmd.MarkFlagRequired("vuln")
	augmentCmd.MarkFlagRequired("nonvuln")
	augmentCmd.MarkFlagRequired("out-dir")
}

func runAugment(cmd *cobra.Command, args []string) error {
	res, err := augment.Run(augOpts, logger)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"file":       res.TrainPath,
		"rows":       res.TrainRows,
		"label_dist": fmt.Sprintf("%v", res.TrainDist),
	}).Info("augmented train split written")
	logger.WithFields(logrus.Fields{
		"rows":       res.SynthRows,
		"label_dist": fmt.Sprintf("%v", res.SynthDist),
	}).Info("synthetic samples used")

	if res.ValPath != "" {
		logger.WithField("file", res.ValPath).Info("val split written")
	} else {
		logger.Info("val split not provided and not auto-detected; not written")
	}
	if res.TestPath != "" {
		logger.WithField("file", res.TestPath).Info("test split written")
	} else {
		logger.Info("test split not provided and not auto-detected; not written")
	}
	return nil
}
