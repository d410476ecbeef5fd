package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// State backends.
const (
	BackendJSON   = "json"
	BackendBadger = "badger"
)

const (
	defaultRoot        = "~/.cache/huggingface/lerobot"
	defaultStatePrefix = "observation.state"
	defaultImagePrefix = "observation.images"
)

type DatasetConfig struct {
	Root        string `yaml:"root"`
	RepoID      string `yaml:"repo_id"`
	StatePrefix string `yaml:"state_prefix"`
	ImagePrefix string `yaml:"image_prefix"`
}

// Dir is the on-disk dataset directory, <root>/<repo_id>, with a leading
// ~ expanded.
func (d DatasetConfig) Dir() string {
	return filepath.Join(expandHome(d.Root), d.RepoID)
}

type EngineConfig struct {
	Workers      int    `yaml:"workers"`
	DuckDBMemory string `yaml:"duckdbMemory"`
}

type S3Config struct {
	Enabled   bool   `yaml:"enabled"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Endpoint  string `yaml:"endpoint"`
	Prefix    string `yaml:"prefix"`
}

type CheckpointConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	S3       S3Config      `yaml:"s3"`
}

type BadgerConfig struct {
	Path       string           `yaml:"path"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
}

type StateConfig struct {
	Backend string       `yaml:"backend"`
	Badger  BadgerConfig `yaml:"badger"`
}

// Named type to allow reuse and clearer code
type KafkaConfig struct {
	Brokers        []string `yaml:"brokers"`
	SchemaRegistry string   `yaml:"schemaRegistry"`
	UseAvro        bool     `yaml:"useAvro"`
	EventsTopic    string   `yaml:"eventsTopic"`
	JobsTopic      string   `yaml:"jobsTopic"`
	GroupID        string   `yaml:"groupID"`
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

type AppConfig struct {
	Dataset DatasetConfig `yaml:"dataset"`
	Engine  EngineConfig  `yaml:"engine"`
	State   StateConfig   `yaml:"state"`
	Kafka   KafkaConfig   `yaml:"kafka"`
}

// Default returns the configuration used when no file is given.
func Default() AppConfig {
	return AppConfig{
		Dataset: DatasetConfig{
			Root:        defaultRoot,
			StatePrefix: defaultStatePrefix,
			ImagePrefix: defaultImagePrefix,
		},
		Engine: EngineConfig{Workers: 1},
		State: StateConfig{
			Backend: BackendJSON,
			Badger: BadgerConfig{
				Checkpoint: CheckpointConfig{Interval: 5 * time.Minute},
			},
		},
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the settings every command relies on.
func (c *AppConfig) Validate() error {
	if c.Dataset.Root == "" {
		return fmt.Errorf("dataset.root is required")
	}
	if c.Dataset.RepoID == "" {
		return fmt.Errorf("dataset.repo_id is required")
	}
	if c.Engine.Workers < 1 {
		return fmt.Errorf("engine.workers must be >= 1, got %d", c.Engine.Workers)
	}

	switch c.State.Backend {
	case BackendJSON:
	case BackendBadger:
		if c.State.Badger.Path == "" {
			return fmt.Errorf("state.badger.path is required for the badger backend")
		}
		s3 := c.State.Badger.Checkpoint.S3
		if c.State.Badger.Checkpoint.Enabled && s3.Enabled && s3.Bucket == "" {
			return fmt.Errorf("state.badger.checkpoint.s3.bucket is required when S3 is enabled")
		}
	default:
		return fmt.Errorf("unknown state.backend %q (want %s or %s)", c.State.Backend, BackendJSON, BackendBadger)
	}

	if c.Kafka.Enabled() {
		if c.Kafka.UseAvro && c.Kafka.SchemaRegistry == "" {
			return fmt.Errorf("schema registry is required when using Avro")
		}
		if c.Kafka.EventsTopic == "" && c.Kafka.JobsTopic == "" {
			return fmt.Errorf("kafka needs eventsTopic or jobsTopic")
		}
	}
	return nil
}

// ValidateWorker adds the checks worker mode needs on top of Validate.
func (c *AppConfig) ValidateWorker() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if !c.Kafka.Enabled() {
		return fmt.Errorf("kafka brokers are required")
	}
	if c.Kafka.JobsTopic == "" {
		return fmt.Errorf("kafka.jobsTopic is required")
	}
	if c.Kafka.GroupID == "" {
		return fmt.Errorf("kafka.groupID is required")
	}
	return nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
