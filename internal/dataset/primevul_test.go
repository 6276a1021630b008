package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLooksLikeCPP(t *testing.T) {
	tests := []struct {
		name string
		fn   string
		want bool
	}{
		{"plain c", "int add(int a, int b) { return a + b; }", false},
		{"scope resolution", "void Foo::bar() { x = 1; }", true},
		{"std namespace", "void f() { std::vector<int> v; }", true},
		{"template", "template<typename T> T id(T x) { return x; }", true},
		{"nullptr", "void f(char *p) { if (p == nullptr) return; }", true},
		{"case insensitive marker", "void f() { STD::string s; }", true},
		{"c with pointers and casts", "char *dup(const char *s) { return strdup(s); }", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LooksLikeCPP(tt.fn))
		})
	}
}

func TestIsCFunction(t *testing.T) {
	tests := []struct {
		name string
		fn   string
		want bool
	}{
		{"complete c function", "int f(int x) { return x; }", true},
		{"empty", "", false},
		{"no body", "int f(int x);", false},
		{"no parameter list", "int x = 1; { }", false},
		{"cpp rejected", "void Foo::f(int x) { y = x; }", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCFunction(tt.fn))
		})
	}
}

func TestTransformPrimeVul(t *testing.T) {
	path := writeJSONL(t,
		`{"func": "int f(int x) { return x; }", "target": 1, "cve": "CVE-2020-1", "cwe": ["CWE-125"], "commit_id": "deadbeef", "file_name": "a.c"}`,
		`{"func": "void Foo::g() { h(); }", "target": 0}`,
		`{not valid json`,
		`{"func": "int ok(void) { return 0; }", "target": 0, "cwe": ["CWE-787"]}`,
	)

	rows, stats, err := TransformPrimeVul(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, stats["kept"])
	assert.Equal(t, 1, stats["skip_not_c"])
	assert.Equal(t, 1, stats["skip_bad_json"])

	r := rows[0]
	assert.Equal(t, "int f(int x) { return x; }", r.Func)
	assert.Equal(t, 1, r.Target)
	assert.Equal(t, "-", r.FuncWithFix)
	assert.Equal(t, "CVE-2020-1", r.CVEID)
	assert.Equal(t, `["CWE-125"]`, r.CWEID)
	assert.Equal(t, "deadbeef", r.CommitID)
	assert.Equal(t, "a.c", r.FilePath)
	assert.Equal(t, "c", r.FileLanguage)
	assert.Equal(t, "[]", r.FlawLineIdx)
}
