package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the logocluster run configuration.
type Config struct {
	Manifest ManifestConfig `yaml:"manifest"`
	Hash     HashConfig     `yaml:"hash"`
	Cluster  ClusterConfig  `yaml:"cluster"`
	Workers  int            `yaml:"workers"` // 0 = one per CPU
	Output   OutputConfig   `yaml:"output"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ManifestConfig locates the download stage's manifest.
type ManifestConfig struct {
	Path    string `yaml:"path"`
	BaseDir string `yaml:"base_dir"` // resolves relative local_path values (default: working directory)
}

// HashConfig selects the perceptual hash.
type HashConfig struct {
	Algorithm string `yaml:"algorithm"` // phash, dhash, ahash (default: phash)
	Size      int    `yaml:"size"`      // grid side (default: 8 -> 64 bits)
	MaxPixels int    `yaml:"max_pixels"`
}

// ClusterConfig holds the clustering settings.
type ClusterConfig struct {
	Threshold       *int   `yaml:"threshold"` // nil = default 8; 0 is a valid exact-match threshold
	Strategy        string `yaml:"strategy"`  // auto, exhaustive, banded (default: auto)
	BandedMinInputs int    `yaml:"banded_min_inputs"`
}

// OutputConfig holds report settings.
type OutputConfig struct {
	Path   string `yaml:"path"`   // "-" = stdout
	Format string `yaml:"format"` // json, jsonl, text (default: json)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// MetricsConfig holds Prometheus textfile settings.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"` // empty = metrics not written
}

const (
	defaultThreshold    = 8
	defaultHashSize     = 8
	defaultManifestPath = "data/staged-logos.csv"
)

// Load reads configuration from a YAML file and applies defaults. An empty
// path yields the defaults. The result is not validated: callers apply their
// overrides first and then call Validate.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}

		// Substitute env variables of the form ${VAR}
		data = expandEnvVars(data)

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.ApplyDefaults()

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// FindConfigPath returns config/<env>.yaml if it exists, or "".
func FindConfigPath(env string) string {
	path := filepath.Join("config", env+".yaml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Manifest.Path == "" {
		c.Manifest.Path = defaultManifestPath
	}
	if c.Hash.Algorithm == "" {
		c.Hash.Algorithm = "phash"
	}
	if c.Hash.Size <= 0 {
		c.Hash.Size = defaultHashSize
	}
	if c.Cluster.Threshold == nil {
		t := defaultThreshold
		c.Cluster.Threshold = &t
	}
	if c.Cluster.Strategy == "" {
		c.Cluster.Strategy = "auto"
	}
	if c.Output.Path == "" {
		c.Output.Path = "cluster_report.json"
	}
	if c.Output.Format == "" {
		c.Output.Format = formatFromPath(c.Output.Path)
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	switch c.Hash.Algorithm {
	case "phash", "dhash", "ahash":
	default:
		return fmt.Errorf("hash.algorithm must be phash, dhash or ahash, got %q", c.Hash.Algorithm)
	}
	bits := c.Hash.Size * c.Hash.Size
	if c.Hash.Algorithm == "phash" && bits&(bits-1) != 0 {
		return fmt.Errorf("hash.size squared must be a power of two for phash, got %d", bits)
	}
	if c.Cluster.Threshold != nil && (*c.Cluster.Threshold < 0 || *c.Cluster.Threshold > bits) {
		return fmt.Errorf("cluster.threshold must be between 0 and %d, got %d", bits, *c.Cluster.Threshold)
	}
	switch c.Cluster.Strategy {
	case "auto", "exhaustive", "banded":
	default:
		return fmt.Errorf("cluster.strategy must be auto, exhaustive or banded, got %q", c.Cluster.Strategy)
	}
	switch c.Output.Format {
	case "json", "jsonl", "text":
	default:
		return fmt.Errorf("output.format must be json, jsonl or text, got %q", c.Output.Format)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	return nil
}

// ThresholdValue returns the configured threshold, or the default.
func (c *Config) ThresholdValue() int {
	if c.Cluster.Threshold == nil {
		return defaultThreshold
	}
	return *c.Cluster.Threshold
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return "text"
	case ".jsonl", ".ndjson":
		return "jsonl"
	default:
		return "json"
	}
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
