package dataset

import (
	"encoding/json"
	"strings"
)

// cppMarkers are constructs that mark a function as C++ rather than C.
// Deliberately conservative: better to drop a few C functions than to
// feed C++ into a C-only experiment. Matching is case-insensitive.
var cppMarkers = []string{
	"::",
	"template<",
	"std::",
	"using namespace",
	"new ",
	"delete ",
	"noexcept",
	"nullptr",
	"friend ",
	"virtual ",
	"public:",
	"private:",
	"protected:",
	"constexpr",
	"decltype",
	"typename",
	"explicit",
	"mutable",
	"static_cast<",
	"dynamic_cast<",
	"reinterpret_cast<",
	"const_cast<",
}

// LooksLikeCPP reports whether a function body contains typical C++
// constructs.
func LooksLikeCPP(fn string) bool {
	lower := strings.ToLower(fn)
	for _, marker := range cppMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// IsCFunction applies the plausibility check for a C function body:
// not C++, and at least a parameter list and a block.
func IsCFunction(fn string) bool {
	if fn == "" {
		return false
	}
	if LooksLikeCPP(fn) {
		return false
	}
	return strings.Contains(fn, "(") && strings.Contains(fn, ")") &&
		strings.Contains(fn, "{") && strings.Contains(fn, "}")
}

type primevulSample struct {
	Func     string          `json:"func"`
	Target   any             `json:"target"`
	CVE      string          `json:"cve"`
	CWE      json.RawMessage `json:"cwe"`
	CommitID string          `json:"commit_id"`
	FileName string          `json:"file_name"`
}

// TransformPrimeVul extracts C functions from a PrimeVul JSONL file.
// Malformed lines are counted and skipped rather than failing the run;
// the dataset ships with a handful of broken entries.
func TransformPrimeVul(path string) ([]Record, Stats, error) {
	var rows []Record
	stats := Stats{}

	err := ForEachLine(path, func(line int, raw []byte) error {
		var sample primevulSample
		if err := json.Unmarshal(raw, &sample); err != nil {
			stats.Add("skip_bad_json")
			return nil
		}

		if !IsCFunction(sample.Func) {
			stats.Add("skip_not_c")
			return nil
		}
		label, ok := ParseLabel(sample.Target)
		if !ok {
			stats.Add("skip_no_label")
			return nil
		}

		stats.Add("kept")
		rows = append(rows, Record{
			Func:         CleanCode(sample.Func),
			Target:       label,
			FuncWithFix:  "-",
			CVEID:        sample.CVE,
			CWEID:        compactJSON(sample.CWE),
			CommitID:     sample.CommitID,
			FilePath:     sample.FileName,
			FileLanguage: "c",
			FlawLineIdx:  "[]",
		})
		return nil
	})
	if err != nil {
		return nil, stats, err
	}
	return rows, stats, nil
}

// compactJSON re-serializes the raw cwe value (usually a list) so the
// CSV cell keeps its list structure, e.g. ["CWE-787"].
func compactJSON(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return trimmed
	}
	out, err := json.Marshal(v)
	if err != nil {
		return trimmed
	}
	return string(out)
}
