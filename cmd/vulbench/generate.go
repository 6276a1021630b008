package main

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/czt0517/vulbench/internal/llm"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate synthetic C samples with an LLM",
	Long: `Asks the configured chat model for synthetic vulnerable and benign C
functions and writes them as synthetic CSVs for the augment command.
Requests run concurrently behind a client-side rate limit; individual
failures are skipped, not fatal.`,
	RunE: runGenerate,
}

var (
	genCWEs       []string
	genPerCWE     int
	genBenign     int
	genVulnOut    string
	genNonVulnOut string
)

func init() {
	f := generateCmd.Flags()
	f.StringSliceVar(&genCWEs, "cwes", llm.DefaultCWEs, "CWE identifiers to generate vulnerable samples for")
	f.IntVar(&genPerCWE, "per-cwe", 10, "vulnerable samples per CWE")
	f.IntVar(&genBenign, "benign", 60, "benign samples")
	f.StringVar(&genVulnOut, "vuln-out", "synth_vulnerable.csv", "output CSV for vulnerable samples")
	f.StringVar(&genNonVulnOut, "nonvuln-out", "synth_non_vulnerable.csv", "output CSV for benign samples")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	client, err := llm.NewClient(cfg, logger)
	if err != nil {
		return err
	}
	gen := llm.NewGenerator(client, cfg.API.RequestsPerMinute, cfg.API.Workers, logger)

	vuln, err := gen.GenerateVulnerable(ctx, genCWEs, genPerCWE)
	if err != nil {
		return err
	}
	n, err := llm.WriteSamplesCSV(genVulnOut, vuln)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{"file": genVulnOut, "rows": n}).Info("vulnerable samples written")

	benign, err := gen.GenerateBenign(ctx, genBenign)
	if err != nil {
		return err
	}
	n, err = llm.WriteSamplesCSV(genNonVulnOut, benign)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{"file": genNonVulnOut, "rows": n}).Info("benign samples written")
	return nil
}
