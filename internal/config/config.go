// Package config provides configuration management for Cortex.
// It loads settings from environment variables with the CORTEX_ prefix
// and provides sensible defaults for all configuration options. Dimension
// weights come from an optional YAML file that can be hot-reloaded.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration settings for the Cortex engine.
type Config struct {
	Storage  StorageConfig
	Index    IndexConfig
	Embed    EmbedConfig
	Analysis AnalysisConfig
}

// StorageConfig contains database configuration.
type StorageConfig struct {
	DataPath string // Path to the SQLite database file (default: ./data/cortex.db)
}

// IndexConfig contains the optional pgvector candidate index configuration.
type IndexConfig struct {
	PostgresDSN string // Connection string; empty disables the ANN index
	Dimension   int    // Must match the embedding model (default: 768)
}

// EmbedConfig contains embedding backend configuration.
type EmbedConfig struct {
	OllamaURL         string        // Ollama API URL (default: http://localhost:11434)
	Model             string        // Embedding model name (default: nomic-embed-text)
	Dimension         int           // Model output size (default: 768)
	Timeout           time.Duration // Per-request timeout (default: 10s)
	RequestsPerSecond float64       // Backend rate limit (default: 10)
	CacheSize         int           // LRU embedding cache capacity (default: 4096)
}

// AnalysisConfig contains analysis pipeline tuning.
type AnalysisConfig struct {
	WeightsPath       string        // Path to the dimension weights YAML; empty uses defaults
	MinCompositeScore float64       // Persistence threshold for memory relationships (default: 0.3)
	CandidateLimit    int           // Max candidate memories compared per memory (default: 200)
	Workers           int           // Analysis worker pool size (default: 4)
	BatchTimeout      time.Duration // Per-batch deadline (default: 5m)
	ClusterSeed       int64         // Seed for deterministic clustering (default: 1)
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. All environment variables use the CORTEX_ prefix.
func LoadConfig() (*Config, error) {
	return &Config{
		Storage: StorageConfig{
			DataPath: getEnv("CORTEX_DATA_PATH", "./data/cortex.db"),
		},
		Index: IndexConfig{
			PostgresDSN: getEnv("CORTEX_POSTGRES_DSN", ""),
			Dimension:   getEnvInt("CORTEX_INDEX_DIMENSION", 768),
		},
		Embed: EmbedConfig{
			OllamaURL:         getEnv("CORTEX_OLLAMA_URL", "http://localhost:11434"),
			Model:             getEnv("CORTEX_EMBEDDING_MODEL", "nomic-embed-text"),
			Dimension:         getEnvInt("CORTEX_EMBEDDING_DIMENSION", 768),
			Timeout:           getEnvDuration("CORTEX_EMBEDDING_TIMEOUT", 10*time.Second),
			RequestsPerSecond: getEnvFloat("CORTEX_EMBEDDING_RPS", 10),
			CacheSize:         getEnvInt("CORTEX_EMBEDDING_CACHE_SIZE", 4096),
		},
		Analysis: AnalysisConfig{
			WeightsPath:       getEnv("CORTEX_WEIGHTS_PATH", ""),
			MinCompositeScore: getEnvFloat("CORTEX_MIN_COMPOSITE_SCORE", 0.3),
			CandidateLimit:    getEnvInt("CORTEX_CANDIDATE_LIMIT", 200),
			Workers:           getEnvInt("CORTEX_WORKERS", 4),
			BatchTimeout:      getEnvDuration("CORTEX_BATCH_TIMEOUT", 5*time.Minute),
			ClusterSeed:       int64(getEnvInt("CORTEX_CLUSTER_SEED", 1)),
		},
	}, nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default
// value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable (Go duration
// syntax, e.g. "30s") or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
