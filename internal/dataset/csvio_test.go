package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "train.csv")
	rows := []Record{
		{Func: "int f() { return 0; }", Target: 0, CVEID: "CVE-1", CWEID: "['CWE-787']"},
		{Func: "int g() { return 1; }", Target: 1},
	}

	n, err := WriteRecords(path, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	header, raw, err := ReadRawCSV(path)
	require.NoError(t, err)
	assert.Equal(t, Columns, header)
	require.Len(t, raw, 2)
	assert.Equal(t, "0", raw[0][0], "index column is generated")
	assert.Equal(t, "1", raw[1][0])

	got, err := ReadRecords(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "int f() { return 0; }", got[0].Func)
	assert.Equal(t, "CVE-1", got[0].CVEID)
	// Placeholders filled in by normalization on write.
	assert.Equal(t, "-", got[1].CVEID)
	assert.Equal(t, "['-']", got[1].CWEID)
	assert.Equal(t, "C", got[1].FileLanguage)
	assert.Equal(t, "[]", got[1].FlawLineIdx)
}

func TestReadRecords_OldSchema(t *testing.T) {
	// Files written before the index and flaw columns existed still load.
	path := filepath.Join(t.TempDir(), "old.csv")
	content := "processed_func,target,vul_func_with_fix,cve_id,cwe_id,commit_id,file_path,file_language\n" +
		"int f() { return 0; },1,-,CVE-9,['CWE-125'],c0ffee,a.c,C\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	got, err := ReadRecords(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Target)
	assert.Equal(t, "CVE-9", got[0].CVEID)
	assert.Equal(t, "", got[0].FlawLine)
}

func TestReindex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.csv")
	content := "processed_func,target\nfoo,1\nbar,0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	backup, err := Reindex(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "test_no_index.csv"), backup)

	header, rows, err := ReadRawCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"index", "processed_func", "target"}, header)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"0", "foo", "1"}, rows[0])
	assert.Equal(t, []string{"1", "bar", "0"}, rows[1])

	// Backup holds the original, without index column.
	bHeader, bRows, err := ReadRawCSV(backup)
	require.NoError(t, err)
	assert.Equal(t, []string{"processed_func", "target"}, bHeader)
	assert.Len(t, bRows, 2)

	// Re-running does not stack index columns and keeps the first backup.
	_, err = Reindex(path)
	require.NoError(t, err)
	header, _, err = ReadRawCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"index", "processed_func", "target"}, header)
}
