package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the CLI configuration
type Config struct {
	Disk   DiskConfig   `yaml:"disk,omitempty"`
	Model  ModelConfig  `yaml:"model,omitempty"`
	Search SearchConfig `yaml:"search,omitempty"`
	Ingest IngestConfig `yaml:"ingest,omitempty"`
}

// DiskConfig holds disk file defaults
type DiskConfig struct {
	// Path is the disk file used when -disk is not given
	Path string `yaml:"path,omitempty"`

	// Format selects the durable layout for create: "sqlite" | "bolt"
	// If empty, the layout follows the file extension
	Format string `yaml:"format,omitempty"`
}

// ModelConfig holds embedding model defaults
type ModelConfig struct {
	Signature string `yaml:"signature,omitempty"` // model signature disks are bound to
	Dimension int    `yaml:"dimension,omitempty"` // 0 = parse from the signature
}

// SearchConfig holds search defaults
type SearchConfig struct {
	DefaultTopK  int  `yaml:"default_top_k,omitempty"` // default number of results
	KeywordIndex bool `yaml:"keyword_index,omitempty"` // build the keyword sidecar on open
}

// IngestConfig holds create/ingest defaults
type IngestConfig struct {
	Exclude []string `yaml:"exclude,omitempty"` // glob patterns skipped during create
}

// Load loads configuration from the default config file
// Default location: ~/.aimdisk/config.yaml
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	return LoadFromFile(filepath.Join(homeDir, ".aimdisk", "config.yaml"))
}

// LoadFromFile loads configuration from a specific file. A missing file is
// not an error: every option has a usable default.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// expandPath expands ~ and $HOME to the user's home directory
// Supports both:
//
//	~/.aimdisk/memory.aim
//	$HOME/.aimdisk/memory.aim
func expandPath(path string) string {
	if strings.HasPrefix(path, "$HOME/") || path == "$HOME" {
		homeDir := os.Getenv("HOME")
		if homeDir == "" {
			var err error
			homeDir, err = os.UserHomeDir()
			if err != nil {
				return path
			}
		}
		if path == "$HOME" {
			return homeDir
		}
		return filepath.Join(homeDir, path[6:])
	}

	if strings.HasPrefix(path, "~/") || path == "~" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return homeDir
		}
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	if c.Disk.Path != "" {
		c.Disk.Path = expandPath(c.Disk.Path)
	}

	if c.Model.Signature == "" {
		c.Model.Signature = "demo-4_fp32"
	}

	if c.Search.DefaultTopK == 0 {
		c.Search.DefaultTopK = 10
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Disk.Format {
	case "", "sqlite", "bolt":
	default:
		return fmt.Errorf("unsupported disk format: %s (want sqlite or bolt)", c.Disk.Format)
	}

	if c.Model.Dimension < 0 {
		return fmt.Errorf("model dimension must not be negative, got: %d", c.Model.Dimension)
	}

	if c.Search.DefaultTopK <= 0 {
		return fmt.Errorf("default_top_k must be positive, got: %d", c.Search.DefaultTopK)
	}

	return nil
}

// Save saves the configuration to the default location
func (c *Config) Save() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".aimdisk")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return c.SaveToFile(filepath.Join(configDir, "config.yaml"))
}

// SaveToFile saves the configuration to a specific file
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

const defaultConfigTemplate = `# aimdisk configuration
#
# Copy and edit this file for your environment.
# Default location: $HOME/.aimdisk/config.yaml

disk:
  # Disk file used when -disk is not given
  # path: ~/.aimdisk/memory.aim

  # Durable layout for create: "sqlite" or "bolt"
  # If unset, the file extension decides (.idz selects bolt)
  # format: sqlite

model:
  # Model signature new disks are bound to
  signature: demo-4_fp32

  # Vector dimension; if unset, parsed from the signature
  # dimension: 4

search:
  default_top_k: 10
  # keyword_index: true

ingest:
  # Glob patterns skipped during create
  # exclude:
  #   - "**/*.log"
  #   - "**/node_modules/**"
`

// WriteDefaultTemplate creates a default configuration file if it does not exist.
// It returns true if a file was created, false if it already existed.
func WriteDefaultTemplate(path string) (bool, error) {
	if path == "" {
		return false, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0644); err != nil {
		return false, fmt.Errorf("failed to write config template: %w", err)
	}

	return true, nil
}
