package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// StoreConfig holds the segment store layout: where files live, how they are
// named, and the shape of the data written into them.
type StoreConfig struct {
	Location      string `yaml:"location"`
	TableName     string `yaml:"table_name"`
	FileExtension string `yaml:"file_extension"`
	// KeyLength is the fixed byte width of one row key.
	KeyLength int `yaml:"key_length"`
	// MeasureCount is the number of measure columns per blocklet.
	MeasureCount int `yaml:"measure_count"`
	// MaxFileSizeMB is the rotation threshold. The writer starts a new
	// segment file once the running size estimate reaches this many
	// megabytes.
	MaxFileSizeMB    int64 `yaml:"max_file_size_mb"`
	RotationEnabled  bool  `yaml:"rotation_enabled"`
	InProgressMarker bool  `yaml:"in_progress_marker"`
}

// MaxFileSizeBytes converts the configured rotation threshold to bytes.
func (c StoreConfig) MaxFileSizeBytes() uint64 {
	return uint64(c.MaxFileSizeMB) * 1024 * 1024
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // e.g., "debug", "info", "warn", "error"
	Output string `yaml:"output"` // e.g., "stdout", "file", "none"
	File   string `yaml:"file"`   // Path to the log file, used if output is "file"
}

// Config is the top-level configuration struct.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
}

// Load reads configuration from an io.Reader.
// This is the core logic, separated for testability.
func Load(r io.Reader) (*Config, error) {
	// Set default values
	cfg := &Config{
		Store: StoreConfig{
			Location:         "./data",
			TableName:        "fact",
			FileExtension:    ".fact",
			KeyLength:        8,
			MeasureCount:     1,
			MaxFileSizeMB:    100,
			RotationEnabled:  true,
			InProgressMarker: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
			File:   "factstore.log",
		},
	}

	// If the reader is nil, it's like an empty file, return defaults.
	if r == nil {
		return cfg, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config data: %w", err)
	}

	// If data is empty, return defaults.
	if len(data) == 0 {
		return cfg, nil
	}

	// Unmarshal YAML into the config struct, overwriting defaults
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	return cfg, nil
}

// LoadConfig reads configuration from a YAML file by path.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			// If file doesn't exist, return default config by calling Load with a nil reader.
			return Load(nil)
		}
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	return Load(file)
}
