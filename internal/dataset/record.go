// Package dataset converts raw vulnerability datasets (ReposVul,
// PrimeVul JSONL) into the CSV schema the LineVul trainer consumes,
// and provides the CSV plumbing shared by the rest of the pipeline.
package dataset

import (
	"fmt"
	"strconv"
	"strings"
)

// Columns is the trainer's CSV schema. Older files in the wild miss
// the index and flaw columns; readers tolerate that, writers always
// emit the full set.
var Columns = []string{
	"index",
	"processed_func",
	"target",
	"vul_func_with_fix",
	"cve_id",
	"cwe_id",
	"commit_id",
	"file_path",
	"file_language",
	"flaw_line_index",
	"flaw_line",
}

// Record is one trainer sample: a function body with its label and
// tracing metadata. The index column is assigned at write time.
type Record struct {
	Func         string // processed_func
	Target       int    // 0 or 1
	FuncWithFix  string // vul_func_with_fix
	CVEID        string
	CWEID        string // rendered list cell, e.g. "['CWE-787']"
	CommitID     string
	FilePath     string
	FileLanguage string
	FlawLineIdx  string // list cell, "[]" when unknown
	FlawLine     string
}

// normalize fills the placeholder values the trainer expects for
// missing metadata.
func (r *Record) normalize() {
	if r.FuncWithFix == "" {
		r.FuncWithFix = "-"
	}
	if r.CVEID == "" {
		r.CVEID = "-"
	}
	if r.CWEID == "" {
		r.CWEID = "['-']"
	}
	if r.CommitID == "" {
		r.CommitID = "-"
	}
	if r.FilePath == "" {
		r.FilePath = "-"
	}
	if r.FileLanguage == "" {
		r.FileLanguage = "C"
	}
	if r.FlawLineIdx == "" {
		r.FlawLineIdx = "[]"
	}
}

func (r Record) row(index int) []string {
	r.normalize()
	return []string{
		strconv.Itoa(index),
		r.Func,
		strconv.Itoa(r.Target),
		r.FuncWithFix,
		r.CVEID,
		r.CWEID,
		r.CommitID,
		r.FilePath,
		r.FileLanguage,
		r.FlawLineIdx,
		r.FlawLine,
	}
}

// CleanCode strips NUL bytes, normalizes line endings to \n and trims
// surrounding whitespace. Applied to every function body the pipeline
// touches so hashes and exact-match lookups agree across sources.
func CleanCode(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}

// ParseLabel coerces the label shapes seen in the raw datasets (bool,
// number, "0"/"1", "true"/"false") into 0/1. The second return is
// false when the value is missing or not a binary label.
func ParseLabel(v any) (int, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case int:
		if t == 0 || t == 1 {
			return t, true
		}
	case float64:
		n := int(t)
		if n == 0 || n == 1 {
			return n, true
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "0", "false":
			return 0, true
		case "1", "true":
			return 1, true
		}
	}
	return 0, false
}

// Stats counts kept and skipped entries per reason during a transform.
type Stats map[string]int

func (s Stats) Add(reason string) { s[reason]++ }

var statOrder = []string{
	"kept",
	"skip_no_details",
	"skip_detail_not_dict",
	"skip_no_code",
	"skip_no_label",
	"skip_not_c",
	"skip_bad_json",
}

// String renders the counters in a stable order for log output.
func (s Stats) String() string {
	var parts []string
	for _, k := range statOrder {
		if n, ok := s[k]; ok {
			parts = append(parts, fmt.Sprintf("%s=%d", k, n))
		}
	}
	for k, n := range s {
		known := false
		for _, o := range statOrder {
			if k == o {
				known = true
				break
			}
		}
		if !known {
			parts = append(parts, fmt.Sprintf("%s=%d", k, n))
		}
	}
	return strings.Join(parts, " ")
}
