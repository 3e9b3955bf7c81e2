package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = "chromem"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "data/memengine.db"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.CacheEntries == 0 {
		cfg.Embedding.CacheEntries = 4096
	}
	if cfg.Classifier.Model == "" {
		cfg.Classifier.Model = "claude-sonnet-4-20250514"
	}
	if cfg.Classifier.APIKeyEnv == "" {
		cfg.Classifier.APIKeyEnv = "ANTHROPIC_API_KEY"
	}
	if cfg.Tags.Model == "" {
		cfg.Tags.Model = cfg.Classifier.Model
	}
	if cfg.Chunker.MaxChunkLength == 0 {
		cfg.Chunker.MaxChunkLength = 1000
	}
	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = 4
	}
	if cfg.Ingest.QueueSize == 0 {
		cfg.Ingest.QueueSize = 256
	}
	if cfg.Ingest.MaxAttempts == 0 {
		cfg.Ingest.MaxAttempts = 3
	}
	if cfg.Ingest.JobTimeoutSecs == 0 {
		cfg.Ingest.JobTimeoutSecs = 120
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.Threshold == 0 {
		cfg.Retrieval.Threshold = 0.5
	}
}
