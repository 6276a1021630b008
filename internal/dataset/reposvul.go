package dataset

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// reposvulEntry is the per-CVE envelope. The details block comes in
// several shapes (single object, list, occasionally garbage), so the
// unstable parts stay raw until inspected.
type reposvulEntry struct {
	CVEID       string          `json:"cve_id"`
	CWEID       json.RawMessage `json:"cwe_id"`
	CommitID    string          `json:"commit_id"`
	CVELanguage string          `json:"cve_language"`
	Details     json.RawMessage `json:"details"`
}

type reposvulDetail struct {
	FileLanguage   string          `json:"file_language"`
	FilePath       string          `json:"file_path"`
	FunctionBefore json.RawMessage `json:"function_before"`
	FunctionAfter  json.RawMessage `json:"function_after"`
	CodeBefore     string          `json:"code_before"`
	Code           string          `json:"code"`
	Patch          string          `json:"patch"`
	Target         any             `json:"target"`
}

// funcBlock is one element of function_before/function_after.
type funcBlock struct {
	Function   string `json:"function"`
	CodeBefore string `json:"code_before"`
	Code       string `json:"code"`
	Target     any    `json:"target"`
}

// TransformReposVul converts one ReposVul JSONL file into trainer
// records. Every detail of every CVE entry becomes a candidate row;
// candidates without extractable code or a binary label are counted
// and skipped.
func TransformReposVul(path string, log *logrus.Logger) ([]Record, Stats, error) {
	var rows []Record
	stats := Stats{}

	err := ForEachLine(path, func(line int, raw []byte) error {
		var entry reposvulEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		details := asRawList(entry.Details)
		if len(details) == 0 {
			stats.Add("skip_no_details")
			return nil
		}

		for _, rawDetail := range details {
			if !isJSONObject(rawDetail) {
				stats.Add("skip_detail_not_dict")
				continue
			}
			var detail reposvulDetail
			if err := json.Unmarshal(rawDetail, &detail); err != nil {
				stats.Add("skip_detail_not_dict")
				continue
			}

			rec, reason := extractReposVulRecord(&entry, &detail)
			if reason != "" {
				stats.Add(reason)
				continue
			}
			stats.Add("kept")
			rows = append(rows, rec)
		}
		return nil
	})
	if err != nil {
		return nil, stats, err
	}

	log.WithFields(logrus.Fields{"file": path, "kept": stats["kept"]}).Debug("reposvul transform done")
	return rows, stats, nil
}

// extractReposVulRecord applies the fallback chains that grew with the
// dataset's schema drift:
//
//	before code: function_before[0].function -> code_before -> code
//	label:       function_before[0].target   -> detail.target
//	after code:  function_after[0].function  -> patch -> before code
//
// The returned reason is empty on success, else a Stats key.
func extractReposVulRecord(entry *reposvulEntry, detail *reposvulDetail) (Record, string) {
	var before string
	var label int
	haveLabel := false

	if fbs := asRawList(detail.FunctionBefore); len(fbs) > 0 {
		code, target, ok := decodeFuncBlock(fbs[0])
		if ok {
			before = code
			if v, labelOK := ParseLabel(target); labelOK {
				label, haveLabel = v, true
			}
		}
	}
	if before == "" {
		before = CleanCode(firstNonEmpty(detail.CodeBefore, detail.Code))
	}
	if before == "" {
		return Record{}, "skip_no_code"
	}

	if !haveLabel {
		if v, ok := ParseLabel(detail.Target); ok {
			label, haveLabel = v, true
		}
	}
	if !haveLabel {
		return Record{}, "skip_no_label"
	}

	var after string
	if fas := asRawList(detail.FunctionAfter); len(fas) > 0 {
		if code, _, ok := decodeFuncBlock(fas[0]); ok {
			after = code
		}
	}
	if after == "" {
		after = CleanCode(detail.Patch)
	}
	if after == "" {
		after = before // so vul_func_with_fix is never empty
	}

	lang := strings.TrimSpace(firstNonEmpty(detail.FileLanguage, entry.CVELanguage))

	return Record{
		Func:         before,
		Target:       label,
		FuncWithFix:  after,
		CVEID:        entry.CVEID,
		CWEID:        formatCWECell(entry.CWEID),
		CommitID:     entry.CommitID,
		FilePath:     detail.FilePath,
		FileLanguage: lang,
	}, ""
}

// decodeFuncBlock handles the two shapes function_before elements come
// in: an object with function/target fields, or a bare string.
func decodeFuncBlock(raw json.RawMessage) (code string, target any, ok bool) {
	if isJSONObject(raw) {
		var fb funcBlock
		if err := json.Unmarshal(raw, &fb); err != nil {
			return "", nil, false
		}
		code = CleanCode(firstNonEmpty(fb.Function, fb.CodeBefore, fb.Code))
		return code, fb.Target, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return CleanCode(s), nil, true
	}
	return "", nil, false
}

// asRawList normalizes a value that may be a list, a single object, or
// absent into a slice of raw elements.
func asRawList(raw json.RawMessage) []json.RawMessage {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil
		}
		return list
	}
	return []json.RawMessage{raw}
}

func isJSONObject(raw json.RawMessage) bool {
	return strings.HasPrefix(strings.TrimSpace(string(raw)), "{")
}

// formatCWECell renders the cwe_id field the way downstream tooling
// expects: a python-style single-quoted list for list values, the bare
// string otherwise, "" when absent.
func formatCWECell(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	if strings.HasPrefix(trimmed, "[") {
		var list []string
		if err := json.Unmarshal(raw, &list); err != nil {
			return trimmed
		}
		quoted := make([]string, len(list))
		for i, c := range list {
			quoted[i] = "'" + c + "'"
		}
		return "[" + strings.Join(quoted, ", ") + "]"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return trimmed
	}
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
