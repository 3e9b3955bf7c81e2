// Package config provides configuration loading for the memengine
// server and CLI.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Tags       TagsConfig       `yaml:"tags"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StoreConfig selects and configures the memory store backend.
type StoreConfig struct {
	// Type is "chromem" (in-memory vector store) or "sqlite" (durable).
	Type string `yaml:"type"`

	// Path is the database file for the sqlite backend.
	Path string `yaml:"path"`
}

// EmbeddingConfig holds remote embedding settings.
type EmbeddingConfig struct {
	Model        string `yaml:"model"`
	Dimensions   int    `yaml:"dimensions"`
	APIKeyEnv    string `yaml:"api_key_env"`
	CacheEntries int64  `yaml:"cache_entries"`
}

// ClassifierConfig holds classification model settings.
type ClassifierConfig struct {
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// TagsConfig holds tag suggestion settings.
type TagsConfig struct {
	Model string `yaml:"model"`
}

// ChunkerConfig holds text chunking settings.
type ChunkerConfig struct {
	MaxChunkLength int `yaml:"max_chunk_length"`
}

// IngestConfig holds background ingestion queue settings.
type IngestConfig struct {
	Workers        int `yaml:"workers"`
	QueueSize      int `yaml:"queue_size"`
	MaxAttempts    int `yaml:"max_attempts"`
	JobTimeoutSecs int `yaml:"job_timeout_secs"`
}

// RetrievalConfig holds search defaults.
type RetrievalConfig struct {
	TopK      int     `yaml:"top_k"`
	Threshold float64 `yaml:"threshold"`
}

// Load reads the config file at path and applies defaults. A missing
// file is not an error; the defaults are used as-is.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyDefaults(&cfg)
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// EmbeddingAPIKey resolves the embedding API key from the environment.
func (c *Config) EmbeddingAPIKey() string {
	return os.Getenv(c.Embedding.APIKeyEnv)
}

// ClassifierAPIKey resolves the classifier API key from the environment.
func (c *Config) ClassifierAPIKey() string {
	return os.Getenv(c.Classifier.APIKeyEnv)
}
