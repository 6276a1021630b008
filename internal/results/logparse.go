// Package results post-processes the external trainer's test logs:
// metric extraction into summary CSVs, true-positive set deltas
// against a baseline variant, and TP-index to CWE mapping.
package results

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// MetricKeys are the metric lines a completed test log ends with.
var MetricKeys = []string{
	"test_accuracy",
	"test_f1",
	"test_precision",
	"test_recall",
	"test_threshold",
}

// tailLines bounds how far back metric extraction looks. Training logs
// are long; the result block is always in the final screenful.
const tailLines = 80

// Summary is one collected test run.
type Summary struct {
	LogFile      string
	Dataset      string // primevul, reposvul, ...
	TrainVariant string // only, codellama, vul_gpt-4o, ...
	Metrics      map[string]string
	TPIndices    string // stringified index list, dataset order
}

var (
	metricRes = compileMetricRes()
	tpRe      = regexp.MustCompile(`True Positive indices \(dataset order\):\s*(\[[^\]]*\])`)
)

func compileMetricRes() map[string]*regexp.Regexp {
	res := make(map[string]*regexp.Regexp, len(MetricKeys))
	for _, key := range MetricKeys {
		res[key] = regexp.MustCompile(key + `\s*=\s*([0-9.]+)`)
	}
	return res
}

// ParseLogName infers dataset and train variant from a log filename of
// the form test_with_<dataset>_<variant>.log.
func ParseLogName(name string) (dataset, variant string) {
	base := strings.TrimSuffix(strings.TrimPrefix(name, "test_with_"), ".log")
	dataset, variant, found := strings.Cut(base, "_")
	if !found {
		return base, "unknown"
	}
	return dataset, variant
}

// ParseLogFile extracts the metric block and TP indices from the tail
// of one log. Returns nil when the log does not contain a completed
// test (neither accuracy nor f1 present).
func ParseLogFile(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	if len(lines) > tailLines {
		lines = lines[len(lines)-tailLines:]
	}
	tail := strings.Join(lines, "\n")

	metrics := map[string]string{}
	for key, re := range metricRes {
		if m := re.FindStringSubmatch(tail); m != nil {
			metrics[key] = m[1]
		}
	}
	if metrics["test_accuracy"] == "" && metrics["test_f1"] == "" {
		return nil, nil // not a completed test log
	}

	tp := "[]"
	if m := tpRe.FindStringSubmatch(tail); m != nil {
		tp = m[1]
	}

	name := filepath.Base(path)
	ds, variant := ParseLogName(name)
	return &Summary{
		LogFile:      name,
		Dataset:      ds,
		TrainVariant: variant,
		Metrics:      metrics,
		TPIndices:    tp,
	}, nil
}

// Collect parses every test_with_*.log in dir, sorted by name.
// Incomplete logs are silently skipped, matching how half-finished
// SLURM jobs leave truncated logs behind.
func Collect(dir string) ([]Summary, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "test_with_*.log"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var out []Summary
	for _, p := range paths {
		s, err := ParseLogFile(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		if s == nil {
			continue
		}
		out = append(out, *s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no completed test logs in %s", dir)
	}
	return out, nil
}

// WriteSummaryCSV writes the collected runs in a fixed column order.
func WriteSummaryCSV(path string, rows []Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"log_file", "dataset", "train_variant"}, MetricKeys...)
	header = append(header, "true_positive_indices")
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range rows {
		row := []string{r.LogFile, r.Dataset, r.TrainVariant}
		for _, key := range MetricKeys {
			row = append(row, r.Metrics[key])
		}
		row = append(row, r.TPIndices)
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ReadSummaryCSV loads a summary written by WriteSummaryCSV (or an
// equivalent hand-assembled file).
func ReadSummaryCSV(path string) ([]Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty file", path)
	}

	col := map[string]int{}
	for i, name := range records[0] {
		col[strings.TrimSpace(name)] = i
	}

	get := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var out []Summary
	for _, row := range records[1:] {
		s := Summary{
			LogFile:      get(row, "log_file"),
			Dataset:      strings.TrimSpace(get(row, "dataset")),
			TrainVariant: strings.TrimSpace(get(row, "train_variant")),
			Metrics:      map[string]string{},
			TPIndices:    get(row, "true_positive_indices"),
		}
		for _, key := range MetricKeys {
			s.Metrics[key] = get(row, key)
		}
		out = append(out, s)
	}
	return out, nil
}
