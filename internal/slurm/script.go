package slurm

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
)

// scriptTemplate mirrors the batch scripts the experiments were run
// with: SBATCH header, module loads, cache exports, environment
// activation, then the trainer invocation.
const scriptTemplate = `#!/bin/bash
#SBATCH --job-name={{.Name}}
{{- if .Partition}}
#SBATCH --partition={{.Partition}}
{{- end}}
{{- if .Gres}}
#SBATCH --gres={{.Gres}}
{{- end}}
{{- if .CPUs}}
#SBATCH --cpus-per-task={{.CPUs}}
{{- end}}
{{- if .Mem}}
#SBATCH --mem={{.Mem}}
{{- end}}
{{- if .Time}}
#SBATCH --time={{.Time}}
{{- end}}
#SBATCH --output={{.Output}}

set -euo pipefail
{{range .Modules}}
module load {{.}}
{{- end}}
{{- range .CacheExports}}
export {{.}}
{{- end}}
{{- if .Venv}}
source {{.Venv}}
{{- end}}
{{- if .CondaEnv}}
conda activate {{.CondaEnv}}
{{- end}}
{{- if .Workdir}}

cd {{.Workdir}}
{{- end}}

{{.Command}}
`

var scriptTmpl = template.Must(template.New("sbatch").Parse(scriptTemplate))

// scriptData is the flattened view the template renders.
type scriptData struct {
	Name         string
	Partition    string
	Gres         string
	CPUs         int
	Mem          string
	Time         string
	Output       string
	Modules      []string
	CacheExports []string
	Venv         string
	CondaEnv     string
	Workdir      string
	Command      string
}

// Render produces the sbatch script text for a manifest. Rendering is
// pure: same manifest, same bytes.
func Render(m *Manifest) (string, error) {
	data := scriptData{
		Name:      m.Name,
		Partition: m.Partition,
		Gres:      m.Gres,
		CPUs:      m.CPUs,
		Mem:       m.Mem,
		Time:      m.Time,
		Output:    m.Output,
		Modules:   m.Modules,
		Venv:      m.Venv,
		CondaEnv:  m.CondaEnv,
		Workdir:   m.Workdir,
		Command:   Command(m),
	}

	// Sorted so cache_env map order cannot change the script.
	keys := make([]string, 0, len(m.CacheEnv))
	for k := range m.CacheEnv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		data.CacheExports = append(data.CacheExports, fmt.Sprintf("%s=%q", k, m.CacheEnv[k]))
	}

	var b strings.Builder
	if err := scriptTmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render script: %w", err)
	}
	return b.String(), nil
}

// Command returns the single-line trainer invocation.
func Command(m *Manifest) string {
	parts := append([]string{m.Trainer.Python, m.Trainer.Script}, m.Trainer.Args()...)
	return strings.Join(parts, " ")
}

// WriteScript renders the manifest into dir as <name>.sbatch and
// returns the script path.
func WriteScript(m *Manifest, dir string) (string, error) {
	text, err := Render(m)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create script directory: %w", err)
	}
	path := filepath.Join(dir, m.Name+".sbatch")
	if err := os.WriteFile(path, []byte(text), 0755); err != nil {
		return "", fmt.Errorf("write script: %w", err)
	}
	return path, nil
}
