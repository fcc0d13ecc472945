// Package config loads application configuration from file and environment
// variables via viper.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/soundprediction/tempograph/pkg/alert"
	"github.com/soundprediction/tempograph/pkg/contradiction"
	"github.com/soundprediction/tempograph/pkg/driver"
	"github.com/soundprediction/tempograph/pkg/evolution"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Storage configuration for the version store
	Storage StorageConfig `mapstructure:"storage"`

	// Graph configuration for the current-state graph store
	Graph GraphConfig `mapstructure:"graph"`

	// Tracking configuration for the evolution tracker
	Tracking evolution.Config `mapstructure:"tracking"`

	// Contradiction configuration for detection and resolution
	Contradiction contradiction.Config `mapstructure:"contradiction"`

	// Export configuration for archive output
	Export ExportConfig `mapstructure:"export"`

	// Alert configuration for review notifications
	Alert alert.Config `mapstructure:"alert"`

	// CircuitBreaker configuration for the graph store wrapper
	CircuitBreaker driver.BreakerConfig `mapstructure:"circuit_breaker"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StorageConfig holds version store configuration
type StorageConfig struct {
	Backend string `mapstructure:"backend"` // memory, file, badger
	Path    string `mapstructure:"path"`
}

// GraphConfig holds graph store configuration
type GraphConfig struct {
	Driver   string `mapstructure:"driver"` // memory, neo4j
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// ExportConfig holds archive export configuration
type ExportConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Storage defaults
	viper.SetDefault("storage.backend", "file")
	viper.SetDefault("storage.path", "./version_history")

	// Graph defaults
	viper.SetDefault("graph.driver", "memory")
	viper.SetDefault("graph.uri", "")
	viper.SetDefault("graph.username", "")
	viper.SetDefault("graph.password", "")
	viper.SetDefault("graph.database", "")

	// Tracking defaults
	viper.SetDefault("tracking.track_entity_changes", true)
	viper.SetDefault("tracking.track_relationship_changes", true)
	viper.SetDefault("tracking.track_property_changes", true)
	viper.SetDefault("tracking.track_confidence_changes", true)
	viper.SetDefault("tracking.min_confidence_difference", 0.1)

	// Contradiction defaults
	viper.SetDefault("contradiction.detector.numeric_tolerance", 0.05)
	viper.SetDefault("contradiction.detector.definition_similarity_threshold", 0.5)
	viper.SetDefault("contradiction.resolver.citation_weight", 1.0)
	viper.SetDefault("contradiction.resolver.recency_weight", 1.0)

	// Export defaults
	home, err := os.UserHomeDir()
	if err == nil {
		defaultPath := fmt.Sprintf("%s/.tempograph/archives", home)
		viper.SetDefault("export.parquet_path", defaultPath)
	}
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	// Graph store credentials
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Graph.URI = uri
		config.Graph.Driver = "neo4j"
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Graph.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Graph.Password = pass
	}

	// Generic storage settings
	if backend := os.Getenv("STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = backend
	}
	if path := os.Getenv("STORAGE_PATH"); path != "" {
		config.Storage.Path = path
	}

	// Export settings
	if path := os.Getenv("EXPORT_PARQUET_PATH"); path != "" {
		config.Export.ParquetPath = path
	}
}
