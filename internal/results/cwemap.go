package results

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/czt0517/vulbench/internal/dataset"
)

// LoadIndexToCWE builds the index -> CWE list mapping from a test CSV.
// The cwe_id column may hold a bracketed list (either ['CWE-787'] or
// JSON ["CWE-787"]) or a plain string.
func LoadIndexToCWE(testCSV string) (map[int][]string, error) {
	header, rows, err := dataset.ReadRawCSV(testCSV)
	if err != nil {
		return nil, err
	}

	col := map[string]int{}
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	idxCol, ok := col["index"]
	if !ok {
		return nil, fmt.Errorf("%s: no index column; run 'vulbench inspect reindex' first", testCSV)
	}
	cweCol, hasCWE := col["cwe_id"]

	mapping := map[int][]string{}
	for _, row := range rows {
		idxRaw := strings.TrimSpace(get(row, idxCol))
		if idxRaw == "" {
			continue
		}
		idx, err := strconv.Atoi(idxRaw)
		if err != nil {
			continue
		}
		var cwes []string
		if hasCWE {
			cwes = ParseCWECell(get(row, cweCol))
		}
		mapping[idx] = cwes
	}
	return mapping, nil
}

// ParseCWECell tolerates the three shapes the pipeline has produced
// over time: python-style lists with single quotes, JSON lists, and
// bare strings.
func ParseCWECell(cell string) []string {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	if strings.HasPrefix(cell, "[") && strings.HasSuffix(cell, "]") {
		// Try JSON first, then the single-quoted python form.
		var list []string
		if err := json.Unmarshal([]byte(cell), &list); err == nil {
			return list
		}
		inner := strings.TrimSuffix(strings.TrimPrefix(cell, "["), "]")
		var out []string
		for _, part := range strings.Split(inner, ",") {
			part = strings.Trim(strings.TrimSpace(part), "'\"")
			if part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return []string{cell}
}

// CWERow is one run with its TP indices resolved to CWE identifiers.
type CWERow struct {
	Dataset      string
	TrainVariant string
	CWEs         []string
}

// MapSummaryToCWEs resolves every run's TP index list through the
// per-dataset mapping. Runs for datasets without a mapping keep an
// empty CWE list rather than failing the whole table.
func MapSummaryToCWEs(rows []Summary, mappings map[string]map[int][]string) ([]CWERow, error) {
	var out []CWERow
	for _, r := range rows {
		row := CWERow{Dataset: r.Dataset, TrainVariant: r.TrainVariant}
		if mapping, ok := mappings[r.Dataset]; ok {
			set, err := ParseIndices(r.TPIndices)
			if err != nil {
				return nil, fmt.Errorf("%s/%s: %w", r.Dataset, r.TrainVariant, err)
			}
			for _, idx := range SortedIndices(set) {
				row.CWEs = append(row.CWEs, mapping[idx]...)
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// WriteCWECSV writes the dataset/variant/CWE-list table.
func WriteCWECSV(path string, rows []CWERow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"dataset", "train_variant", "true_positive_cwes"}); err != nil {
		return err
	}
	for _, r := range rows {
		quoted := make([]string, len(r.CWEs))
		for i, c := range r.CWEs {
			quoted[i] = "'" + c + "'"
		}
		cell := "[" + strings.Join(quoted, ", ") + "]"
		if err := w.Write([]string{r.Dataset, r.TrainVariant, cell}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// LaTeXTable renders the per-run TP counts as a LaTeX table for the
// paper. Underscores in identifiers are escaped.
func LaTeXTable(rows []Summary) (string, error) {
	var b strings.Builder
	b.WriteString("\\begin{table}[ht]\n")
	b.WriteString("\\centering\n")
	b.WriteString("\\begin{tabular}{l l r}\n")
	b.WriteString("\\hline\n")
	b.WriteString("dataset & train\\_variant & \\#TP \\\\\n")
	b.WriteString("\\hline\n")

	for _, r := range rows {
		set, err := ParseIndices(r.TPIndices)
		if err != nil {
			return "", fmt.Errorf("%s: %w", r.LogFile, err)
		}
		fmt.Fprintf(&b, "%s & %s & %d \\\\\n",
			escapeLaTeX(r.Dataset), escapeLaTeX(r.TrainVariant), len(set))
	}

	b.WriteString("\\hline\n")
	b.WriteString("\\end{tabular}\n")
	b.WriteString("\\caption{True positive counts per test run}\n")
	b.WriteString("\\label{tab:true_positive_counts}\n")
	b.WriteString("\\end{table}\n")
	return b.String(), nil
}

func escapeLaTeX(s string) string {
	return strings.ReplaceAll(s, "_", "\\_")
}

func get(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
