// Package config handles reading and writing .compass/config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level structure for .compass/config.yaml.
type Config struct {
	Version   int             `yaml:"version"`
	Model     string          `yaml:"model"`
	Project   ProjectConfig   `yaml:"project"`
	Interview InterviewConfig `yaml:"interview"`
	Execution ExecutionConfig `yaml:"execution"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Cleanup   CleanupConfig   `yaml:"cleanup"`
}

// ProjectConfig holds project metadata supplied during init.
type ProjectConfig struct {
	Name        string `yaml:"name"`
	DefaultType string `yaml:"default_type"` // project-type tag used when --type is omitted
}

// InterviewConfig controls the clarifying-question phase.
type InterviewConfig struct {
	MaxQuestions int  `yaml:"max_questions"`
	Skip         bool `yaml:"skip"` // never ask questions, plan straight from the prompt
}

// ExecutionConfig controls task execution behaviour.
type ExecutionConfig struct {
	MaxRetries     int    `yaml:"max_retries"`
	TimeoutPerTask int    `yaml:"timeout_per_task"` // seconds
	AllowedTools   string `yaml:"allowed_tools"`
}

// ServerConfig configures the HTTP controller surface started by `compass serve`.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StorageConfig locates the session database.
type StorageConfig struct {
	DBPath string `yaml:"db_path"` // relative paths resolve against the project root
}

// CleanupConfig controls pruning of old sessions and run directories.
type CleanupConfig struct {
	MaxAgeDays int `yaml:"max_age_days"`
}

const (
	configDir  = ".compass"
	configFile = "config.yaml"
)

// Dir returns the .compass directory inside the project root.
func Dir(projectRoot string) string {
	return filepath.Join(projectRoot, configDir)
}

// RunsDir returns the directory holding per-session run artifacts.
func RunsDir(projectRoot string) string {
	return filepath.Join(projectRoot, configDir, "runs")
}

// RunDir returns the artifact directory for one session.
func RunDir(projectRoot, sessionID string) string {
	return filepath.Join(RunsDir(projectRoot), sessionID)
}

// ReadConfig reads .compass/config.yaml from the given project directory.
// dir is the project root (not .compass/ itself).
// Returns an error if the file is not found or YAML is malformed.
func ReadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, configDir, configFile)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads the project config, falling back to defaults when the
// project has not been initialized.
func LoadOrDefault(dir string) *Config {
	cfg, err := ReadConfig(dir)
	if err != nil {
		return DefaultConfig()
	}
	return cfg
}

// WriteConfig writes cfg to .compass/config.yaml in the given project directory.
// Creates the .compass/ directory if it does not exist.
func WriteConfig(dir string, cfg *Config) error {
	dirPath := filepath.Join(dir, configDir)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	path := filepath.Join(dirPath, configFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// DBPath resolves the session database path against the project root.
func (c *Config) DBPath(projectRoot string) string {
	if filepath.IsAbs(c.Storage.DBPath) {
		return c.Storage.DBPath
	}
	return filepath.Join(projectRoot, c.Storage.DBPath)
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Model:   "opus",
		Project: ProjectConfig{
			DefaultType: "general",
		},
		Interview: InterviewConfig{
			MaxQuestions: 6,
		},
		Execution: ExecutionConfig{
			MaxRetries:     2,
			TimeoutPerTask: 600,
			AllowedTools:   "Read,Write,Edit,Bash,Grep,Glob",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:7420",
		},
		Storage: StorageConfig{
			DBPath: filepath.Join(configDir, "sessions.db"),
		},
		Cleanup: CleanupConfig{
			MaxAgeDays: 30,
		},
	}
}
