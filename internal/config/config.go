package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all settings for the Chromance server.
type Config struct {
	// Server
	Port     string `envconfig:"SERVER_PORT" default:"8080"`
	Env      string `envconfig:"ENV" default:"production"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// PostgreSQL
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     string `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`
	DBSSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNECTIONS" default:"10"`

	// Redis (per-campaign turn locks)
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	TurnLockTTL   time.Duration `envconfig:"TURN_LOCK_TTL" default:"90s"`

	// RabbitMQ (game events for the notification layer)
	RabbitMQURL   string `envconfig:"RABBITMQ_URL" required:"true"`
	EventExchange string `envconfig:"EVENT_EXCHANGE" default:"chromance.events"`

	// JWT (verification only; issuance lives in the auth service)
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	// Language-model oracle
	OracleAPIKey         string `envconfig:"ORACLE_API_KEY" required:"true"`
	OracleBaseURL        string `envconfig:"ORACLE_BASE_URL" default:"https://api.groq.com/openai/v1"`
	OracleModel          string `envconfig:"ORACLE_MODEL" default:"llama-3.3-70b-versatile"`
	OracleEmbeddingModel string `envconfig:"ORACLE_EMBEDDING_MODEL" default:"text-embedding-3-small"`
	OracleTimeout        int    `envconfig:"ORACLE_TIMEOUT_SECONDS" default:"30"`
	OracleMaxRetries     int    `envconfig:"ORACLE_MAX_RETRIES" default:"3"`

	// Context assembly
	ContextRecentWindow     int           `envconfig:"CONTEXT_RECENT_WINDOW" default:"6"`
	ContextTopK             int           `envconfig:"CONTEXT_TOP_K" default:"5"`
	ContextArchiveTopK      int           `envconfig:"CONTEXT_ARCHIVE_TOP_K" default:"3"`
	ContextLoreFloor        float64       `envconfig:"CONTEXT_LORE_FLOOR" default:"0.35"`
	ContextTokenBudget      int           `envconfig:"CONTEXT_TOKEN_BUDGET" default:"3000"`
	ContextRetrievalTimeout time.Duration `envconfig:"CONTEXT_RETRIEVAL_TIMEOUT" default:"2s"`
}

// GetDSN returns the PostgreSQL connection string.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return &cfg, nil
}
