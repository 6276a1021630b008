package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// WriteRecords writes records with the full schema and a generated
// 0-based index column. Returns the number of data rows written.
func WriteRecords(path string, rows []Record) (int, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Columns); err != nil {
		return 0, err
	}
	for i, r := range rows {
		if err := w.Write(r.row(i)); err != nil {
			return i, err
		}
	}
	w.Flush()
	return len(rows), w.Error()
}

// ReadRecords loads a trainer CSV back into records. Columns are
// resolved by header name, so files from before the index and flaw
// columns were added still load.
func ReadRecords(path string) ([]Record, error) {
	header, rows, err := ReadRawCSV(path)
	if err != nil {
		return nil, err
	}

	col := headerIndex(header)
	if _, ok := col["processed_func"]; !ok {
		return nil, fmt.Errorf("%s: no processed_func column (header: %v)", path, header)
	}

	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		target, _ := strconv.Atoi(strings.TrimSpace(cellByName(row, col, "target")))
		out = append(out, Record{
			Func:         CleanCode(cellByName(row, col, "processed_func")),
			Target:       target,
			FuncWithFix:  cellByName(row, col, "vul_func_with_fix"),
			CVEID:        cellByName(row, col, "cve_id"),
			CWEID:        cellByName(row, col, "cwe_id"),
			CommitID:     cellByName(row, col, "commit_id"),
			FilePath:     cellByName(row, col, "file_path"),
			FileLanguage: cellByName(row, col, "file_language"),
			FlawLineIdx:  cellByName(row, col, "flaw_line_index"),
			FlawLine:     cellByName(row, col, "flaw_line"),
		})
	}
	return out, nil
}

// ReadRawCSV loads a CSV as header plus raw rows. Rows may have
// varying field counts; callers index defensively.
func ReadRawCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("%s: empty file", path)
	}
	return all[0], all[1:], nil
}

// Reindex inserts a 0-based index column as the first column of a CSV,
// backing up the original to <base>_no_index.csv once. An existing
// index column is dropped first, so re-running is idempotent.
func Reindex(path string) (string, error) {
	header, rows, err := ReadRawCSV(path)
	if err != nil {
		return "", err
	}

	// Drop an existing index column before re-numbering.
	if len(header) > 0 && strings.TrimSpace(header[0]) == "index" {
		header = header[1:]
		for i, row := range rows {
			if len(row) > 0 {
				rows[i] = row[1:]
			}
		}
	}

	ext := filepath.Ext(path)
	backup := strings.TrimSuffix(path, ext) + "_no_index" + ext
	if _, err := os.Stat(backup); os.IsNotExist(err) {
		if err := writeRawCSV(backup, header, rows); err != nil {
			return "", fmt.Errorf("write backup: %w", err)
		}
	}

	newHeader := append([]string{"index"}, header...)
	newRows := make([][]string, len(rows))
	for i, row := range rows {
		newRows[i] = append([]string{strconv.Itoa(i)}, row...)
	}
	if err := writeRawCSV(path, newHeader, newRows); err != nil {
		return "", err
	}
	return backup, nil
}

func writeRawCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func headerIndex(header []string) map[string]int {
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	return col
}

func cellByName(row []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
