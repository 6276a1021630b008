// Package augment merges LLM-generated synthetic samples into a
// transformed train split. Val/test pass through untouched by default
// so evaluation stays on real-world vulnerabilities.
package augment

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/czt0517/vulbench/internal/dataset"
)

// SplitMode selects which splits receive synthetic samples.
type SplitMode string

const (
	// AugmentTrainOnly is the default; it avoids leaking the synthetic
	// distribution into the evaluation splits.
	AugmentTrainOnly SplitMode = "train-only"
	AugmentAll       SplitMode = "all"
)

// Options configures one augmentation run.
type Options struct {
	TrainCSV string
	ValCSV   string // optional; auto-detected next to TrainCSV when empty
	TestCSV  string // optional; auto-detected next to TrainCSV when empty

	VulnCSV    string
	NonVulnCSV string

	OutDir string

	DedupWithinSynth  bool
	DedupAgainstTrain bool
	KeepOnlyComplete  bool
	Mode              SplitMode
}

// Result reports what was written where.
type Result struct {
	TrainPath string
	TrainRows int
	TrainDist map[int]int

	SynthRows int
	SynthDist map[int]int

	ValPath  string // empty when no val split was available
	TestPath string
}

// Run performs the augmentation and writes train_aug.csv (plus val.csv
// and test.csv when available) into OutDir.
func Run(opts Options, log *logrus.Logger) (*Result, error) {
	if opts.Mode == "" {
		opts.Mode = AugmentTrainOnly
	}

	train, err := dataset.ReadRecords(opts.TrainCSV)
	if err != nil {
		return nil, err
	}

	valPath := opts.ValCSV
	if valPath == "" {
		valPath = autoDetectSplit(opts.TrainCSV, "val")
	}
	testPath := opts.TestCSV
	if testPath == "" {
		testPath = autoDetectSplit(opts.TrainCSV, "test")
	}

	synth, err := LoadSynthetic(opts.VulnCSV, opts.NonVulnCSV, opts.KeepOnlyComplete)
	if err != nil {
		return nil, err
	}
	if opts.DedupWithinSynth {
		before := len(synth)
		synth = DedupWithin(synth)
		log.WithFields(logrus.Fields{"before": before, "after": len(synth)}).Debug("synth dedup")
	}
	if opts.DedupAgainstTrain {
		before := len(synth)
		synth = RemoveOverlap(train, synth)
		log.WithFields(logrus.Fields{"before": before, "after": len(synth)}).Debug("train overlap removed")
	}

	res := &Result{
		SynthRows: len(synth),
		SynthDist: LabelDist(synth),
	}

	if err := os.MkdirAll(opts.OutDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	trainAug := dropEmpty(append(append([]dataset.Record{}, train...), synth...))
	res.TrainPath = filepath.Join(opts.OutDir, "train_aug.csv")
	if res.TrainRows, err = dataset.WriteRecords(res.TrainPath, trainAug); err != nil {
		return nil, err
	}
	res.TrainDist = LabelDist(trainAug)

	writeSplit := func(inPath, outName string) (string, error) {
		if inPath == "" {
			return "", nil
		}
		rows, err := dataset.ReadRecords(inPath)
		if err != nil {
			return "", err
		}
		if opts.Mode == AugmentAll {
			rows = append(rows, synth...)
		}
		outPath := filepath.Join(opts.OutDir, outName)
		if _, err := dataset.WriteRecords(outPath, dropEmpty(rows)); err != nil {
			return "", err
		}
		return outPath, nil
	}

	if res.ValPath, err = writeSplit(valPath, "val.csv"); err != nil {
		return nil, err
	}
	if res.TestPath, err = writeSplit(testPath, "test.csv"); err != nil {
		return nil, err
	}
	return res, nil
}

// LoadSynthetic converts the generated CSVs into trainer records with
// forced labels: everything from vulnCSV is 1, everything from
// nonVulnCSV is 0, regardless of what the model claimed.
func LoadSynthetic(vulnCSV, nonVulnCSV string, keepOnlyComplete bool) ([]dataset.Record, error) {
	vuln, err := loadSynthFile(vulnCSV, 1, keepOnlyComplete)
	if err != nil {
		return nil, err
	}
	benign, err := loadSynthFile(nonVulnCSV, 0, keepOnlyComplete)
	if err != nil {
		return nil, err
	}
	return dropEmpty(append(vuln, benign...)), nil
}

func loadSynthFile(path string, label int, keepOnlyComplete bool) ([]dataset.Record, error) {
	header, rows, err := dataset.ReadRawCSV(path)
	if err != nil {
		return nil, err
	}

	col := map[string]int{}
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	codeCol, ok := col["processed_func"]
	if !ok {
		if codeCol, ok = col["code"]; !ok {
			return nil, fmt.Errorf("%s: need a processed_func or code column (header: %v)", path, header)
		}
	}
	cweCol, hasCWE := col["cwe"]
	completeCol, hasComplete := col["is_complete"]

	var out []dataset.Record
	for _, row := range rows {
		if keepOnlyComplete && hasComplete && !isTruthy(cell(row, completeCol)) {
			continue
		}
		cwe := "['-']"
		if label == 1 && hasCWE {
			cwe = ExtractCWEList(cell(row, cweCol))
		}
		out = append(out, dataset.Record{
			Func:         dataset.CleanCode(cell(row, codeCol)),
			Target:       label,
			FuncWithFix:  "-",
			CVEID:        "-",
			CWEID:        cwe,
			CommitID:     "-",
			FilePath:     "-",
			FileLanguage: "C",
			FlawLineIdx:  "[]",
		})
	}
	return out, nil
}

var cweRe = regexp.MustCompile(`(?i)(CWE-\d+)`)

// ExtractCWEList pulls the first CWE identifier out of a cell and
// renders it as the list cell the schema uses, e.g. "['CWE-787']".
// Cells without one become "['-']".
func ExtractCWEList(cell string) string {
	m := cweRe.FindString(cell)
	if m == "" {
		return "['-']"
	}
	return "['" + strings.ToUpper(m) + "']"
}

// HashCode is the stable per-function-body hash used for dedup.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// DedupWithin drops later rows whose function body repeats an earlier
// one. LLMs produce near-identical snippets often enough for this to
// matter.
func DedupWithin(rows []dataset.Record) []dataset.Record {
	seen := make(map[string]struct{}, len(rows))
	out := rows[:0:0]
	for _, r := range rows {
		h := HashCode(r.Func)
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, r)
	}
	return out
}

// RemoveOverlap drops candidates whose function body already appears
// in base, preventing synthetic rows from duplicating real training
// data.
func RemoveOverlap(base, candidates []dataset.Record) []dataset.Record {
	baseHashes := make(map[string]struct{}, len(base))
	for _, r := range base {
		baseHashes[HashCode(r.Func)] = struct{}{}
	}
	out := candidates[:0:0]
	for _, r := range candidates {
		if _, dup := baseHashes[HashCode(r.Func)]; dup {
			continue
		}
		out = append(out, r)
	}
	return out
}

// LabelDist counts rows per label.
func LabelDist(rows []dataset.Record) map[int]int {
	dist := map[int]int{}
	for _, r := range rows {
		dist[r.Target]++
	}
	return dist
}

func dropEmpty(rows []dataset.Record) []dataset.Record {
	out := rows[:0:0]
	for _, r := range rows {
		if r.Func != "" {
			out = append(out, r)
		}
	}
	return out
}

func autoDetectSplit(trainCSV, name string) string {
	cand := filepath.Join(filepath.Dir(trainCSV), name+".csv")
	if _, err := os.Stat(cand); err != nil {
		return ""
	}
	return cand
}

func isTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
