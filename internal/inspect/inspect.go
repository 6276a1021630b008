// Package inspect implements the dataset sanity-check helpers: row
// extraction by dataset index, reverse lookup of a CSV function in the
// source JSONL, and CWE-filtered browsing of sample CSVs.
package inspect

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/czt0517/vulbench/internal/dataset"
	"github.com/czt0517/vulbench/internal/results"
)

// ExtractRows writes the data rows at the given 0-based indices (row 0
// is the first row after the header) to <base>_selected_indices.txt
// next to the CSV, header first. Returns the output path.
func ExtractRows(csvPath string, indices map[int]struct{}) (string, error) {
	if len(indices) == 0 {
		return "", fmt.Errorf("no valid indices given")
	}

	header, rows, err := dataset.ReadRawCSV(csvPath)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(csvPath)
	base := strings.TrimSuffix(filepath.Base(csvPath), filepath.Ext(csvPath))
	outPath := filepath.Join(dir, base+"_selected_indices.txt")

	f, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", outPath, err)
	}
	defer f.Close()

	fmt.Fprintln(f, strings.Join(header, ","))
	for i, row := range rows {
		if _, want := indices[i]; want {
			fmt.Fprintln(f, strings.Join(row, ","))
		}
	}
	return outPath, nil
}

// SearchFuncByIndex resolves processed_func at the given dataset index
// in the test CSV, then prints every JSONL object in the source
// dataset whose func field matches it exactly. Returns the number of
// matches.
func SearchFuncByIndex(csvPath, jsonlPath string, index int, w io.Writer) (int, error) {
	fn, err := funcAtIndex(csvPath, index)
	if err != nil {
		return 0, err
	}

	fmt.Fprintf(w, "Function at index %d:\n%s\n%s\n", index, fn, strings.Repeat("=", 80))

	matches := 0
	err = dataset.ForEachLine(jsonlPath, func(line int, raw []byte) error {
		var obj struct {
			Func string `json:"func"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil // skip malformed lines, same as the transform
		}
		if obj.Func != fn {
			return nil
		}
		matches++

		var pretty bytes.Buffer
		if err := json.Indent(&pretty, raw, "", "  "); err != nil {
			pretty.Write(raw)
		}
		fmt.Fprintf(w, "--- match %d (line %d) ---\n%s\n\n", matches, line, pretty.String())
		return nil
	})
	if err != nil {
		return matches, err
	}
	if matches == 0 {
		fmt.Fprintf(w, "no entries with this function found in %s\n", jsonlPath)
	}
	return matches, nil
}

// funcAtIndex reads processed_func for one dataset index, honoring an
// explicit index column when present and falling back to row position.
func funcAtIndex(csvPath string, index int) (string, error) {
	header, rows, err := dataset.ReadRawCSV(csvPath)
	if err != nil {
		return "", err
	}

	col := map[string]int{}
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	funcCol, ok := col["processed_func"]
	if !ok {
		return "", fmt.Errorf("%s: no processed_func column", csvPath)
	}

	if idxCol, hasIdx := col["index"]; hasIdx {
		want := fmt.Sprintf("%d", index)
		for n, row := range rows {
			if idxCol < len(row) && strings.TrimSpace(row[idxCol]) == want {
				if funcCol >= len(row) {
					return "", fmt.Errorf("%s: row %d has no processed_func cell", csvPath, n+1)
				}
				return row[funcCol], nil
			}
		}
		return "", fmt.Errorf("index %d not found in %s", index, csvPath)
	}

	if index < 0 || index >= len(rows) {
		return "", fmt.Errorf("index %d out of range (%d rows)", index, len(rows))
	}
	if funcCol >= len(rows[index]) {
		return "", fmt.Errorf("%s: row %d has no processed_func cell", csvPath, index+1)
	}
	return rows[index][funcCol], nil
}

// CWEQuery filters a sample CSV by CWE identifier.
type CWEQuery struct {
	CWE      string // e.g. "CWE-787"; substring match on the CWE cell
	MaxHits  int    // stop after this many matches (default 5)
	Contains string // optional substring filter on the function body
}

// ShowCWEFuncs streams the CSV and prints the first matching function
// bodies. The CWE column is preferred as `cwe` (synthetic CSVs) with
// `cwe_id` (dataset CSVs) as fallback. Returns the hit count.
func ShowCWEFuncs(csvPath string, q CWEQuery, w io.Writer) (int, error) {
	if q.MaxHits <= 0 {
		q.MaxHits = 5
	}

	header, rows, err := dataset.ReadRawCSV(csvPath)
	if err != nil {
		return 0, err
	}

	col := map[string]int{}
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}

	cweCol, ok := col["cwe"]
	if !ok {
		if cweCol, ok = col["cwe_id"]; !ok {
			return 0, fmt.Errorf("%s: no cwe or cwe_id column (header: %v)", csvPath, header)
		}
	}
	funcCol, ok := col["processed_func"]
	if !ok {
		return 0, fmt.Errorf("%s: no processed_func column", csvPath)
	}

	hits := 0
	for _, row := range rows {
		cweVal := strings.TrimSpace(cellAt(row, cweCol))
		if cweVal == "" || !strings.Contains(cweVal, q.CWE) {
			continue
		}
		body := cellAt(row, funcCol)
		if q.Contains != "" && !strings.Contains(body, q.Contains) {
			continue
		}
		hits++
		fmt.Fprintf(w, "\n=== hit %d (cwe: %s) ===\n%s\n", hits, cweVal, body)
		if hits >= q.MaxHits {
			break
		}
	}
	if hits == 0 {
		fmt.Fprintf(w, "no entries matching %q in %s\n", q.CWE, csvPath)
	}
	return hits, nil
}

// ParseIndicesArg parses the command-line indices argument; it shares
// the bracketed/comma format with the results tooling.
func ParseIndicesArg(arg string) (map[int]struct{}, error) {
	return results.ParseIndices(arg)
}

func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
