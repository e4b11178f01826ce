package profile

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Profile is configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo".
	Mode string
	// Addr is the binding address for server.
	Addr string
	// Port is the binding port for server.
	Port int
	// Driver is the database driver. Only "postgres" carries native vector
	// operators, so it is the only accepted value today.
	Driver string
	// DSN points to the backing Postgres database (requires pgvector).
	DSN string
	// Version is the current version of server.
	Version string

	// Embedding provider configuration (OpenAI-compatible protocol).
	EmbeddingAPIKey    string
	EmbeddingBaseURL   string
	EmbeddingModel     string
	EmbeddingDimension int

	// Content source configuration: the host CMS that owns the documents.
	ContentSourceURL   string
	ContentSourceToken string
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.EmbeddingAPIKey = getEnvOrDefault("CONTENTVEC_EMBEDDING_API_KEY", "")
	p.EmbeddingBaseURL = getEnvOrDefault("CONTENTVEC_EMBEDDING_BASE_URL", "https://api.openai.com/v1")
	p.EmbeddingModel = getEnvOrDefault("CONTENTVEC_EMBEDDING_MODEL", "text-embedding-3-small")
	p.EmbeddingDimension = getEnvOrDefaultInt("CONTENTVEC_EMBEDDING_DIMENSION", 1536)

	p.ContentSourceURL = getEnvOrDefault("CONTENTVEC_CONTENT_SOURCE_URL", "")
	p.ContentSourceToken = getEnvOrDefault("CONTENTVEC_CONTENT_SOURCE_TOKEN", "")
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver != "postgres" {
		return errors.Errorf("unsupported database driver %q: vector search requires postgres with pgvector", p.Driver)
	}
	if p.DSN == "" {
		return errors.New("dsn is required")
	}
	if p.EmbeddingAPIKey == "" {
		return errors.New("embedding API key is required (CONTENTVEC_EMBEDDING_API_KEY)")
	}
	if p.EmbeddingDimension <= 0 {
		return errors.Errorf("invalid embedding dimension: %d", p.EmbeddingDimension)
	}

	return nil
}
