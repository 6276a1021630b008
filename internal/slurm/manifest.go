// Package slurm turns declarative job manifests into sbatch scripts
// that invoke the external LineVul trainer, and submits them. The
// scheduler itself stays untouched: everything here is argument
// assembly and file staging.
package slurm

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Manifest describes one training or testing job.
type Manifest struct {
	Name      string `yaml:"name"`
	Partition string `yaml:"partition"`
	Gres      string `yaml:"gres"` // e.g. gpu:a100:1
	CPUs      int    `yaml:"cpus"`
	Mem       string `yaml:"mem"`    // e.g. 64G
	Time      string `yaml:"time"`   // e.g. 24:00:00
	Output    string `yaml:"output"` // sbatch output pattern, e.g. logs/%x_%j.log

	// Environment setup on the compute node.
	Modules  []string          `yaml:"modules"`   // module load targets
	Venv     string            `yaml:"venv"`      // activate script to source
	CondaEnv string            `yaml:"conda_env"` // alternative to venv
	CacheEnv map[string]string `yaml:"cache_env"` // HF caches etc. on the shared filesystem
	Workdir  string            `yaml:"workdir"`

	Trainer Trainer `yaml:"trainer"`
}

// Trainer holds the parameters assembled into the linevul_main.py
// invocation. Zero values are omitted from the command line, so a test
// manifest simply leaves the training knobs unset.
type Trainer struct {
	Python string `yaml:"python"` // default "python"
	Script string `yaml:"script"` // default "linevul_main.py"

	ModelType     string `yaml:"model_type"` // default "roberta"
	ModelPath     string `yaml:"model_path"`
	TokenizerPath string `yaml:"tokenizer_path"`
	OutputDir     string `yaml:"output_dir"`

	TrainFile string `yaml:"train_file"`
	EvalFile  string `yaml:"eval_file"`
	TestFile  string `yaml:"test_file"`

	DoTrain                bool `yaml:"do_train"`
	DoEval                 bool `yaml:"do_eval"`
	DoTest                 bool `yaml:"do_test"`
	EvaluateDuringTraining bool `yaml:"evaluate_during_training"`

	Epochs         int     `yaml:"epochs"`
	BlockSize      int     `yaml:"block_size"`
	TrainBatchSize int     `yaml:"train_batch_size"`
	EvalBatchSize  int     `yaml:"eval_batch_size"`
	LearningRate   string  `yaml:"learning_rate"` // kept textual: 2e-5 must survive round-trips
	MaxGradNorm    float64 `yaml:"max_grad_norm"`
	Seed           int     `yaml:"seed"`

	// Extra passes through flags this struct has no field for,
	// rendered in sorted key order.
	Extra map[string]string `yaml:"extra"`
}

// LoadManifest reads and validates a YAML job manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return &m, nil
}

func (m *Manifest) applyDefaults() {
	if m.Trainer.Python == "" {
		m.Trainer.Python = "python"
	}
	if m.Trainer.Script == "" {
		m.Trainer.Script = "linevul_main.py"
	}
	if m.Trainer.ModelType == "" {
		m.Trainer.ModelType = "roberta"
	}
	if m.Output == "" {
		m.Output = "logs/%x_%j.log"
	}
}

// Validate rejects manifests that sbatch or the trainer would reject
// later, when the job has already waited in the queue.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("name is required")
	}
	if m.Trainer.OutputDir == "" {
		return fmt.Errorf("trainer.output_dir is required")
	}
	if !m.Trainer.DoTrain && !m.Trainer.DoTest && !m.Trainer.DoEval {
		return fmt.Errorf("at least one of trainer.do_train/do_eval/do_test must be set")
	}
	if m.Trainer.DoTrain && m.Trainer.TrainFile == "" {
		return fmt.Errorf("trainer.train_file is required with do_train")
	}
	if m.Trainer.DoTest && m.Trainer.TestFile == "" {
		return fmt.Errorf("trainer.test_file is required with do_test")
	}
	return nil
}

// Args assembles the trainer command line. The order is fixed so that
// re-rendering a manifest always produces a byte-identical script.
func (t Trainer) Args() []string {
	var args []string
	add := func(flag, val string) {
		if val != "" {
			args = append(args, flag, val)
		}
	}
	addBool := func(flag string, on bool) {
		if on {
			args = append(args, flag)
		}
	}
	addInt := func(flag string, val int) {
		if val != 0 {
			args = append(args, flag, fmt.Sprintf("%d", val))
		}
	}

	add("--model_type", t.ModelType)
	add("--model_name_or_path", t.ModelPath)
	add("--tokenizer_name", t.TokenizerPath)
	add("--output_dir", t.OutputDir)
	addBool("--do_train", t.DoTrain)
	addBool("--do_eval", t.DoEval)
	addBool("--do_test", t.DoTest)
	addBool("--evaluate_during_training", t.EvaluateDuringTraining)
	add("--train_data_file", t.TrainFile)
	add("--eval_data_file", t.EvalFile)
	add("--test_data_file", t.TestFile)
	addInt("--epochs", t.Epochs)
	addInt("--block_size", t.BlockSize)
	addInt("--train_batch_size", t.TrainBatchSize)
	addInt("--eval_batch_size", t.EvalBatchSize)
	add("--learning_rate", t.LearningRate)
	if t.MaxGradNorm != 0 {
		args = append(args, "--max_grad_norm", trimFloat(t.MaxGradNorm))
	}
	addInt("--seed", t.Seed)

	keys := make([]string, 0, len(t.Extra))
	for k := range t.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := t.Extra[k]; v == "" {
			args = append(args, "--"+k)
		} else {
			args = append(args, "--"+k, v)
		}
	}
	return args
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%g", f)
	return s
}
