package augment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/czt0517/vulbench/internal/dataset"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestExtractCWEList(t *testing.T) {
	tests := []struct {
		name string
		cell string
		want string
	}{
		{"plain id", "CWE-787", "['CWE-787']"},
		{"lowercase", "cwe-125 out of bounds read", "['CWE-125']"},
		{"embedded in text", "This is CWE-416 (use after free)", "['CWE-416']"},
		{"no id", "buffer overflow", "['-']"},
		{"empty", "", "['-']"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCWEList(tt.cell))
		})
	}
}

func TestDedupWithin(t *testing.T) {
	rows := []dataset.Record{
		{Func: "int a() { return 1; }", Target: 1},
		{Func: "int b() { return 2; }", Target: 1},
		{Func: "int a() { return 1; }", Target: 0}, // duplicate body, different label
	}
	got := DedupWithin(rows)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Target, "first occurrence wins")
}

func TestRemoveOverlap(t *testing.T) {
	base := []dataset.Record{{Func: "int shared() { return 0; }"}}
	cand := []dataset.Record{
		{Func: "int shared() { return 0; }"},
		{Func: "int fresh() { return 1; }"},
	}
	got := RemoveOverlap(base, cand)
	require.Len(t, got, 1)
	assert.Equal(t, "int fresh() { return 1; }", got[0].Func)
}

func TestLoadSynthetic(t *testing.T) {
	dir := t.TempDir()
	vuln := writeCSV(t, dir, "vuln.csv",
		"processed_func,cwe,is_complete,model\n"+
			"\"int v() { char b[2]; b[5] = 1; return 0; }\",CWE-787,true,gpt-4o\n"+
			"\"int broken(\",CWE-125,false,gpt-4o\n")
	benign := writeCSV(t, dir, "benign.csv",
		"processed_func,cwe,is_complete,model\n"+
			"\"int ok() { return 0; }\",,true,gpt-4o\n")

	rows, err := LoadSynthetic(vuln, benign, false)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, 1, rows[0].Target, "vulnerable label forced to 1")
	assert.Equal(t, "['CWE-787']", rows[0].CWEID)
	assert.Equal(t, 0, rows[2].Target, "benign label forced to 0")
	assert.Equal(t, "['-']", rows[2].CWEID)

	complete, err := LoadSynthetic(vuln, benign, true)
	require.NoError(t, err)
	assert.Len(t, complete, 2, "incomplete rows filtered")
}

func TestLoadSynthetic_CodeColumnFallback(t *testing.T) {
	dir := t.TempDir()
	vuln := writeCSV(t, dir, "vuln.csv", "code,cwe\n\"int v() { return *(int*)0; }\",CWE-476\n")
	benign := writeCSV(t, dir, "benign.csv", "code\n\"int ok() { return 0; }\"\n")

	rows, err := LoadSynthetic(vuln, benign, false)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "['CWE-476']", rows[0].CWEID)
}

func TestRun_TrainOnly(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")

	trainRows := []dataset.Record{
		{Func: "int r1() { return 1; }", Target: 1},
		{Func: "int r0() { return 0; }", Target: 0},
	}
	trainCSV := filepath.Join(dir, "train.csv")
	_, err := dataset.WriteRecords(trainCSV, trainRows)
	require.NoError(t, err)
	_, err = dataset.WriteRecords(filepath.Join(dir, "val.csv"), trainRows[:1])
	require.NoError(t, err)
	_, err = dataset.WriteRecords(filepath.Join(dir, "test.csv"), trainRows[1:])
	require.NoError(t, err)

	vuln := writeCSV(t, dir, "synth_vuln.csv",
		"processed_func,cwe,is_complete,model\n\"int sv() { char b[1]; b[9]=0; return 0; }\",CWE-787,true,gpt-4o\n")
	benign := writeCSV(t, dir, "synth_benign.csv",
		"processed_func,cwe,is_complete,model\n\"int sb() { return 0; }\",,true,gpt-4o\n")

	res, err := Run(Options{
		TrainCSV:   trainCSV,
		VulnCSV:    vuln,
		NonVulnCSV: benign,
		OutDir:     outDir,
	}, testLogger())
	require.NoError(t, err)

	assert.Equal(t, 4, res.TrainRows)
	assert.Equal(t, map[int]int{0: 2, 1: 2}, res.TrainDist)
	assert.Equal(t, 2, res.SynthRows)
	assert.Equal(t, map[int]int{0: 1, 1: 1}, res.SynthDist)

	// Val/test auto-detected next to train and passed through unchanged.
	assert.Equal(t, filepath.Join(outDir, "val.csv"), res.ValPath)
	val, err := dataset.ReadRecords(res.ValPath)
	require.NoError(t, err)
	assert.Len(t, val, 1, "synthetic rows must not leak into val")

	test, err := dataset.ReadRecords(res.TestPath)
	require.NoError(t, err)
	assert.Len(t, test, 1)
}

func TestRun_DedupAgainstTrain(t *testing.T) {
	dir := t.TempDir()

	trainCSV := filepath.Join(dir, "train.csv")
	_, err := dataset.WriteRecords(trainCSV, []dataset.Record{
		{Func: "int dup() { return 0; }", Target: 0},
	})
	require.NoError(t, err)

	vuln := writeCSV(t, dir, "v.csv", "processed_func,cwe\n\"int dup() { return 0; }\",CWE-787\n")
	benign := writeCSV(t, dir, "n.csv", "processed_func\n\"int other() { return 0; }\"\n")

	res, err := Run(Options{
		TrainCSV:          trainCSV,
		VulnCSV:           vuln,
		NonVulnCSV:        benign,
		OutDir:            filepath.Join(dir, "out"),
		DedupAgainstTrain: true,
	}, testLogger())
	require.NoError(t, err)

	assert.Equal(t, 1, res.SynthRows, "overlapping synthetic row removed")
	assert.Equal(t, 2, res.TrainRows)
}
