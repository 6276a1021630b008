package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/czt0517/vulbench/internal/slurm"
	"github.com/czt0517/vulbench/internal/storage"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Render and submit SLURM trainer jobs",
}

var jobScriptDir string

var jobRenderCmd = &cobra.Command{
	Use:   "render <manifest.yaml>",
	Short: "Render a manifest into an sbatch script",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobRender,
}

var (
	jobDataset string
	jobVariant string
	jobNoStore bool
	jobDry     bool
)

var jobSubmitCmd = &cobra.Command{
	Use:   "submit <manifest.yaml>",
	Short: "Render a manifest and hand it to sbatch",
	Long: `Renders the manifest into the script directory, stages its cache and
log directories, and submits it. The run is recorded in the experiment
registry unless --no-store is given. With --dry-run the rendered script
is printed instead of submitted.`,
	Args: cobra.ExactArgs(1),
	RunE: runJobSubmit,
}

func init() {
	jobRenderCmd.Flags().StringVar(&jobScriptDir, "script-dir", "", "where to write the script (default from config)")

	jobSubmitCmd.Flags().StringVar(&jobScriptDir, "script-dir", "", "where to write the script (default from config)")
	jobSubmitCmd.Flags().BoolVar(&jobDry, "dry-run", false, "print the rendered script without submitting")
	jobSubmitCmd.Flags().StringVar(&jobDataset, "dataset", "", "dataset name to record with the run")
	jobSubmitCmd.Flags().StringVar(&jobVariant, "variant", "", "train variant to record with the run")
	jobSubmitCmd.Flags().BoolVar(&jobNoStore, "no-store", false, "skip the experiment registry")

	jobCmd.AddCommand(jobRenderCmd)
	jobCmd.AddCommand(jobSubmitCmd)
}

func scriptDir() string {
	if jobScriptDir != "" {
		return jobScriptDir
	}
	return cfg.Jobs.ScriptDir
}

func runJobRender(cmd *cobra.Command, args []string) error {
	m, err := slurm.LoadManifest(args[0])
	if err != nil {
		return err
	}
	path, err := slurm.WriteScript(m, scriptDir())
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{"job": m.Name, "script": path}).Info("script rendered")
	return nil
}

func runJobSubmit(cmd *cobra.Command, args []string) error {
	m, err := slurm.LoadManifest(args[0])
	if err != nil {
		return err
	}

	if jobDry {
		script, err := slurm.Render(m)
		if err != nil {
			return err
		}
		fmt.Print(script)
		return nil
	}

	path, err := slurm.WriteScript(m, scriptDir())
	if err != nil {
		return err
	}

	sub := slurm.NewSubmitter(cfg.Jobs.SbatchBin, logger)
	jobID, err := sub.Submit(cmd.Context(), m, path)
	if err != nil {
		return err
	}

	if !jobNoStore {
		if err := recordSubmission(cmd, m, jobID); err != nil {
			// The job is already queued; losing the registry row is
			// not worth failing the submit over.
			logger.WithError(err).Warn("job submitted but not recorded in registry")
		}
	}
	return nil
}

func recordSubmission(cmd *cobra.Command, m *slurm.Manifest, jobID int) error {
	store, err := storage.NewStore(cfg.Storage.LocalPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	dataset := jobDataset
	if dataset == "" {
		dataset = m.Name
	}
	kind := storage.RunKindTrain
	if !m.Trainer.DoTrain && m.Trainer.DoTest {
		kind = storage.RunKindTest
	}

	run := storage.NewRun(dataset, jobVariant, kind)
	run.JobID = jobID
	run.LogFile = m.Output
	return store.SaveRun(cmd.Context(), run)
}
