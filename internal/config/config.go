package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all vulbench settings.
type Config struct {
	// API configuration for the synthetic-sample generator
	API APIConfig `yaml:"api" mapstructure:"api"`

	// Storage configuration for the experiment registry
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// Jobs configuration for SLURM submission
	Jobs JobsConfig `yaml:"jobs" mapstructure:"jobs"`
}

type APIConfig struct {
	OpenAIKey         string `yaml:"openai_key" mapstructure:"openai_key"`
	OpenAIModel       string `yaml:"openai_model" mapstructure:"openai_model"`
	RequestsPerMinute int    `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	Workers           int    `yaml:"workers" mapstructure:"workers"`

	// KeySource records where OpenAIKey came from ("env", "keychain",
	// "config", "none"). Set by Load, never read from a file.
	KeySource string `yaml:"-" mapstructure:"-"`
}

type StorageConfig struct {
	// LocalPath is the SQLite experiment registry location.
	LocalPath string `yaml:"local_path" mapstructure:"local_path"`
}

type JobsConfig struct {
	// ScriptDir is where rendered sbatch scripts land.
	ScriptDir string `yaml:"script_dir" mapstructure:"script_dir"`
	// SbatchBin allows overriding the sbatch binary (tests, wrappers).
	SbatchBin string `yaml:"sbatch_bin" mapstructure:"sbatch_bin"`
}

// Default returns default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		API: APIConfig{
			OpenAIModel:       "gpt-4o",
			RequestsPerMinute: 60,
			Workers:           4,
		},
		Storage: StorageConfig{
			LocalPath: filepath.Join(homeDir, ".vulbench", "experiments.db"),
		},
		Jobs: JobsConfig{
			ScriptDir: "jobs/rendered",
			SbatchBin: "sbatch",
		},
	}
}

// Load loads configuration from file, environment and defaults, in
// ascending precedence: defaults < config file < VULBENCH_* env vars.
// A missing config file is not an error; the defaults apply.
func Load(path string) (*Config, error) {
	// .env first so the environment is complete before viper reads it.
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("api.openai_key", cfg.API.OpenAIKey)
	v.SetDefault("api.openai_model", cfg.API.OpenAIModel)
	v.SetDefault("api.requests_per_minute", cfg.API.RequestsPerMinute)
	v.SetDefault("api.workers", cfg.API.Workers)
	v.SetDefault("storage.local_path", cfg.Storage.LocalPath)
	v.SetDefault("jobs.script_dir", cfg.Jobs.ScriptDir)
	v.SetDefault("jobs.sbatch_bin", cfg.Jobs.SbatchBin)

	v.SetEnvPrefix("VULBENCH")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".vulbench")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".vulbench"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && path != "" {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Key precedence: environment beats keychain beats config file.
	switch {
	case os.Getenv("OPENAI_API_KEY") != "":
		cfg.API.OpenAIKey = os.Getenv("OPENAI_API_KEY")
		cfg.API.KeySource = "env"
	case cfg.API.OpenAIKey != "":
		cfg.API.KeySource = "config"
	default:
		if key, err := NewKeyringManager().GetAPIKey(); err == nil && key != "" {
			cfg.API.OpenAIKey = key
			cfg.API.KeySource = "keychain"
		} else {
			cfg.API.KeySource = "none"
		}
	}

	return cfg, nil
}

// loadEnvFiles loads .env from the working directory if present.
// Errors are deliberately ignored: a missing .env just means the
// environment is configured some other way.
func loadEnvFiles() {
	_ = godotenv.Load()
}
