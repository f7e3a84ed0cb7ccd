// Package config loads ordertrail settings from an optional YAML file and
// ORDERTRAIL_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all ordertrail configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Masters MastersConfig `yaml:"masters"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Dynamo  DynamoConfig  `yaml:"dynamo"`
}

// StoreConfig selects where log rows are read from. When Dynamo.Table is
// set the DynamoDB table is used instead of the SQLite file.
type StoreConfig struct {
	DBPath string `yaml:"db_path"`
}

// MastersConfig selects the master source. Exactly one is normally set;
// Dir wins over Pebble, Pebble over Badger.
type MastersConfig struct {
	Dir    string `yaml:"dir"`
	Pebble string `yaml:"pebble"`
	Badger string `yaml:"badger"`
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "text" or "json"
}

// KafkaConfig enables publishing entries when Brokers is non-empty.
type KafkaConfig struct {
	Brokers string `yaml:"brokers"` // comma-separated host:port
	Topic   string `yaml:"topic"`
}

// DynamoConfig enables the DynamoDB row lister when Table is non-empty.
type DynamoConfig struct {
	Table    string `yaml:"table"`
	Index    string `yaml:"index"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Store:   StoreConfig{DBPath: "ordertrail.db"},
		Masters: MastersConfig{Dir: "masters"},
		Server:  ServerConfig{Addr: ":8080"},
		Log:     LogConfig{Level: "info", Format: "text"},
		Kafka:   KafkaConfig{Topic: "ordertrail.changelog"},
		Dynamo:  DynamoConfig{Index: "receptionNumber-index", Region: "ap-northeast-1"},
	}
}

// Load reads path (if non-empty) over the defaults, then applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Store.DBPath = getenv("ORDERTRAIL_DB", cfg.Store.DBPath)
	cfg.Masters.Dir = getenv("ORDERTRAIL_MASTERS_DIR", cfg.Masters.Dir)
	cfg.Masters.Pebble = getenv("ORDERTRAIL_MASTERS_PEBBLE", cfg.Masters.Pebble)
	cfg.Masters.Badger = getenv("ORDERTRAIL_MASTERS_BADGER", cfg.Masters.Badger)
	cfg.Server.Addr = getenv("ORDERTRAIL_ADDR", cfg.Server.Addr)
	cfg.Log.Level = getenv("ORDERTRAIL_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getenv("ORDERTRAIL_LOG_FORMAT", cfg.Log.Format)
	cfg.Kafka.Brokers = getenv("ORDERTRAIL_KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.Topic = getenv("ORDERTRAIL_KAFKA_TOPIC", cfg.Kafka.Topic)
	cfg.Dynamo.Table = getenv("ORDERTRAIL_DYNAMO_TABLE", cfg.Dynamo.Table)
	cfg.Dynamo.Index = getenv("ORDERTRAIL_DYNAMO_INDEX", cfg.Dynamo.Index)
	cfg.Dynamo.Region = getenv("ORDERTRAIL_DYNAMO_REGION", cfg.Dynamo.Region)
	cfg.Dynamo.Endpoint = getenv("ORDERTRAIL_DYNAMO_ENDPOINT", cfg.Dynamo.Endpoint)
}

// Validate rejects settings that cannot work together.
func (c Config) Validate() error {
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q: must be text or json", c.Log.Format)
	}
	if c.Kafka.Brokers != "" && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required when kafka.brokers is set")
	}
	if c.Masters.Dir == "" && c.Masters.Pebble == "" && c.Masters.Badger == "" {
		return fmt.Errorf("no master source configured")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
