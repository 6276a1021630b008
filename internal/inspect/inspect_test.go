package inspect

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestExtractRows(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "test.csv",
		"index,processed_func,target\n0,foo,1\n1,bar,0\n2,baz,1\n")

	indices, err := ParseIndicesArg("[0, 2]")
	require.NoError(t, err)

	outPath, err := ExtractRows(csvPath, indices)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "test_selected_indices.txt"), outPath)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "index,processed_func,target", lines[0])
	assert.Equal(t, "0,foo,1", lines[1])
	assert.Equal(t, "2,baz,1", lines[2])
}

func TestExtractRows_NoIndices(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "test.csv", "index,processed_func\n0,foo\n")
	_, err := ExtractRows(csvPath, map[int]struct{}{})
	assert.Error(t, err)
}

func TestSearchFuncByIndex(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "test.csv",
		"index,processed_func,target\n"+
			"0,\"int a(void) { return 0; }\",0\n"+
			"1,\"int b(void) { return 1; }\",1\n")
	jsonlPath := writeFile(t, dir, "source.jsonl",
		`{"func": "int a(void) { return 0; }", "cve": "CVE-1"}`+"\n"+
			`{"func": "int b(void) { return 1; }", "cve": "CVE-2"}`+"\n"+
			`{"func": "int b(void) { return 1; }", "cve": "CVE-3"}`+"\n")

	var out bytes.Buffer
	matches, err := SearchFuncByIndex(csvPath, jsonlPath, 1, &out)
	require.NoError(t, err)
	assert.Equal(t, 2, matches)
	assert.Contains(t, out.String(), "CVE-2")
	assert.Contains(t, out.String(), "CVE-3")
	assert.NotContains(t, out.String(), "CVE-1")
}

func TestSearchFuncByIndex_PositionalFallback(t *testing.T) {
	// Without an index column the row position is the index.
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "test.csv",
		"processed_func,target\n"+
			"\"int a(void) { return 0; }\",0\n"+
			"\"int b(void) { return 1; }\",1\n")
	jsonlPath := writeFile(t, dir, "source.jsonl",
		`{"func": "int b(void) { return 1; }", "cve": "CVE-9"}`+"\n")

	var out bytes.Buffer
	matches, err := SearchFuncByIndex(csvPath, jsonlPath, 1, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, matches)

	_, err = SearchFuncByIndex(csvPath, jsonlPath, 5, &out)
	assert.Error(t, err, "out-of-range index")
}

func TestSearchFuncByIndex_RaggedRow(t *testing.T) {
	// ReadRawCSV tolerates rows with fewer fields than the header, so a
	// truncated data row must surface as an error, not a panic.
	dir := t.TempDir()
	jsonlPath := writeFile(t, dir, "source.jsonl",
		`{"func": "int a(void) { return 0; }"}`+"\n")

	var out bytes.Buffer

	withIndex := writeFile(t, dir, "indexed.csv",
		"index,processed_func,target\n0\n")
	_, err := SearchFuncByIndex(withIndex, jsonlPath, 0, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no processed_func cell")

	positional := writeFile(t, dir, "positional.csv",
		"target,processed_func\n1\n")
	_, err = SearchFuncByIndex(positional, jsonlPath, 0, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no processed_func cell")
}

func TestShowCWEFuncs(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "synth.csv",
		"processed_func,cwe,is_complete,model\n"+
			"\"int v1() { char b[1]; b[4]=0; return 0; }\",CWE-787,true,gpt-4o\n"+
			"\"int v2() { return *(int*)0; }\",CWE-476,true,gpt-4o\n"+
			"\"int v3() { char b[1]; b[8]=0; return 0; }\",CWE-787,true,gpt-4o\n")

	var out bytes.Buffer
	hits, err := ShowCWEFuncs(csvPath, CWEQuery{CWE: "CWE-787"}, &out)
	require.NoError(t, err)
	assert.Equal(t, 2, hits)
	assert.Contains(t, out.String(), "int v1()")
	assert.NotContains(t, out.String(), "int v2()")

	out.Reset()
	hits, err = ShowCWEFuncs(csvPath, CWEQuery{CWE: "CWE-787", MaxHits: 1}, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, hits)

	out.Reset()
	hits, err = ShowCWEFuncs(csvPath, CWEQuery{CWE: "CWE-787", Contains: "b[8]"}, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
	assert.Contains(t, out.String(), "int v3()")
}

func TestShowCWEFuncs_CWEIDColumnFallback(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "test.csv",
		"index,processed_func,target,cwe_id\n0,\"int f() { return 0; }\",1,['CWE-125']\n")

	var out bytes.Buffer
	hits, err := ShowCWEFuncs(csvPath, CWEQuery{CWE: "CWE-125"}, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
}
