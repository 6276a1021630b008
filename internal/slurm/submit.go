package slurm

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Submitter shells out to sbatch. The binary is injectable so tests
// and wrapper scripts can stand in for the real scheduler.
type Submitter struct {
	SbatchBin string
	Logger    *logrus.Logger
}

// NewSubmitter creates a submitter; an empty bin falls back to
// "sbatch" on PATH.
func NewSubmitter(sbatchBin string, log *logrus.Logger) *Submitter {
	if sbatchBin == "" {
		sbatchBin = "sbatch"
	}
	return &Submitter{SbatchBin: sbatchBin, Logger: log}
}

var jobIDRe = regexp.MustCompile(`Submitted batch job (\d+)`)

// Submit stages the manifest's cache directories, then hands the
// script to sbatch and returns the parsed job id.
func (s *Submitter) Submit(ctx context.Context, m *Manifest, scriptPath string) (int, error) {
	if err := StageCacheDirs(m); err != nil {
		return 0, err
	}

	cmd := exec.CommandContext(ctx, s.SbatchBin, scriptPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("sbatch %s: %w (output: %s)", scriptPath, err, strings.TrimSpace(string(out)))
	}

	jobID, err := ParseSubmitOutput(string(out))
	if err != nil {
		return 0, err
	}
	s.Logger.WithFields(logrus.Fields{"job_id": jobID, "script": scriptPath}).Info("job submitted")
	return jobID, nil
}

// ParseSubmitOutput extracts the job id from sbatch's reply
// ("Submitted batch job 12345").
func ParseSubmitOutput(out string) (int, error) {
	m := jobIDRe.FindStringSubmatch(out)
	if m == nil {
		return 0, fmt.Errorf("unexpected sbatch output: %q", strings.TrimSpace(out))
	}
	return strconv.Atoi(m[1])
}

// StageCacheDirs creates every absolute directory named in cache_env
// plus the sbatch output directory. The shared filesystem drops jobs
// whose cache paths do not exist yet, hence the pre-staging.
func StageCacheDirs(m *Manifest) error {
	for key, dir := range m.CacheEnv {
		if !filepath.IsAbs(dir) {
			continue // relative values are not paths we own
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("stage cache dir %s=%s: %w", key, dir, err)
		}
	}
	if m.Output != "" {
		dir := filepath.Dir(m.Output)
		if dir != "." && !strings.Contains(dir, "%") {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("create log dir %s: %w", dir, err)
			}
		}
	}
	return nil
}
