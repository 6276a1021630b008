package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSONL(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.jsonl")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestTransformReposVul_FunctionBefore(t *testing.T) {
	path := writeJSONL(t, `{"cve_id": "CVE-2021-1234", "cwe_id": ["CWE-787"], "commit_id": "abc123", "cve_language": "C", "details": [{"file_path": "src/parse.c", "file_language": "C", "function_before": [{"function": "int f(char *p) { return p[0]; }", "target": 1}], "function_after": [{"function": "int f(char *p) { if (!p) return 0; return p[0]; }"}]}]}`)

	rows, stats, err := TransformReposVul(path, testLogger())
	require.NoError(t, err)
	require.Len(t, rows, 1)

	r := rows[0]
	assert.Equal(t, "int f(char *p) { return p[0]; }", r.Func)
	assert.Equal(t, 1, r.Target)
	assert.Equal(t, "int f(char *p) { if (!p) return 0; return p[0]; }", r.FuncWithFix)
	assert.Equal(t, "CVE-2021-1234", r.CVEID)
	assert.Equal(t, "['CWE-787']", r.CWEID)
	assert.Equal(t, "abc123", r.CommitID)
	assert.Equal(t, "src/parse.c", r.FilePath)
	assert.Equal(t, 1, stats["kept"])
}

func TestTransformReposVul_Fallbacks(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantFunc string
		wantFix  string
		wantTgt  int
	}{
		{
			name: "code_before and detail target when function_before missing",
			line: `{"details": [{"code_before": "void g(void) { ; }", "target": 0, "patch": "void g2(void) { ; }"}]}`,

			wantFunc: "void g(void) { ; }",
			wantFix:  "void g2(void) { ; }",
			wantTgt:  0,
		},
		{
			name:     "code field as last code fallback",
			line:     `{"details": [{"code": "int h() { return 1; }", "target": "1"}]}`,
			wantFunc: "int h() { return 1; }",
			wantFix:  "int h() { return 1; }", // after falls back to before
			wantTgt:  1,
		},
		{
			name:     "details as single object instead of list",
			line:     `{"details": {"code_before": "int k() { return 2; }", "target": true}}`,
			wantFunc: "int k() { return 2; }",
			wantFix:  "int k() { return 2; }",
			wantTgt:  1,
		},
		{
			name:     "function_before as bare string with detail label",
			line:     `{"details": [{"function_before": "int m() { return 3; }", "target": 0}]}`,
			wantFunc: "int m() { return 3; }",
			wantFix:  "int m() { return 3; }",
			wantTgt:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, _, err := TransformReposVul(writeJSONL(t, tt.line), testLogger())
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, tt.wantFunc, rows[0].Func)
			assert.Equal(t, tt.wantFix, rows[0].FuncWithFix)
			assert.Equal(t, tt.wantTgt, rows[0].Target)
		})
	}
}

func TestTransformReposVul_Skips(t *testing.T) {
	tests := []struct {
		name string
		line string
		stat string
	}{
		{"no details", `{"cve_id": "CVE-1"}`, "skip_no_details"},
		{"detail not an object", `{"details": ["just a string"]}`, "skip_detail_not_dict"},
		{"no code anywhere", `{"details": [{"target": 1}]}`, "skip_no_code"},
		{"no label anywhere", `{"details": [{"code": "int f() {}"}]}`, "skip_no_label"},
		{"non-binary label", `{"details": [{"code": "int f() {}", "target": 7}]}`, "skip_no_label"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, stats, err := TransformReposVul(writeJSONL(t, tt.line), testLogger())
			require.NoError(t, err)
			assert.Empty(t, rows)
			assert.Equal(t, 1, stats[tt.stat], "stats: %v", stats)
		})
	}
}

func TestTransformReposVul_FunctionBeforeLabelWins(t *testing.T) {
	// function_before.target takes precedence over the detail target.
	path := writeJSONL(t, `{"details": [{"function_before": [{"function": "int f() { return 0; }", "target": 1}], "target": 0}]}`)
	rows, _, err := TransformReposVul(path, testLogger())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Target)
}

func TestFormatCWECell(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"list", `["CWE-787", "CWE-125"]`, "['CWE-787', 'CWE-125']"},
		{"single string", `"CWE-416"`, "CWE-416"},
		{"null", `null`, ""},
		{"absent", ``, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatCWECell([]byte(tt.raw)))
		})
	}
}

func TestCleanCode(t *testing.T) {
	in := "\r\nint f() {\r\n\treturn 0;\x00\r}\n\n"
	assert.Equal(t, "int f() {\n\treturn 0;\n}", CleanCode(in))
}

func TestParseLabel(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   int
		wantOK bool
	}{
		{"bool true", true, 1, true},
		{"bool false", false, 0, true},
		{"float 1", float64(1), 1, true},
		{"float 0", float64(0), 0, true},
		{"float out of range", float64(3), 0, false},
		{"string 1", "1", 1, true},
		{"string false", "FALSE", 0, true},
		{"string junk", "maybe", 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLabel(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
