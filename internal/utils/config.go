package utils

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/moibraahim/gymnation-task/internal/models"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"

	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendSQLite   = "sqlite"

	// EmbeddingDimension is the vector size the index is provisioned with.
	EmbeddingDimension = 512
)

type Config struct {
	ServerPort          string
	ConversationBackend string
	Model               ModelConfig
	Postgres            PostgresConfig
	Mongo               MongoConfig
	SQLite              SQLiteConfig
	Redis               RedisConfig
	Pinecone            PineconeConfig
	Embedding           EmbeddingConfig
	RAG                 RAGConfig
	Turn                TurnConfig
	Prompts             PromptsConfig
	Logging             LoggingConfig
}

type ModelConfig struct {
	Provider    string
	APIKey      string
	Name        string
	BaseURL     string
	Timeout     time.Duration
	MaxRetries  int
	Temperature float64
	MaxTokens   int
}

type PostgresConfig struct {
	DSN               string
	Host              string
	Port              int
	User              string
	Password          string
	Database          string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration
}

type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Enabled reports whether an embedding cache should be attached.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

type PineconeConfig struct {
	APIKey          string
	IndexName       string
	IndexHost       string
	Namespace       string
	Dimension       int
	ControlPlaneURL string
	Timeout         time.Duration
}

type EmbeddingConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type RAGConfig struct {
	TopK            int
	MinScore        float64
	MaxContextChars int
}

type TurnConfig struct {
	MaxToolRounds     int
	Timeout           time.Duration
	DefaultPromptType string
}

type PromptsConfig struct {
	File  string
	Watch bool
}

type LoggingConfig struct {
	Level        string
	Encoding     string
	Development  bool
	EnableCaller bool
	ServiceName  string
}

// LoadConfig reads the process environment and validates it.
func LoadConfig() (*Config, error) {
	cfg := loadFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv reads the environment without validating it, for tools that only
// need part of the configuration.
func FromEnv() *Config {
	return loadFromEnv()
}

func loadFromEnv() *Config {
	provider := strings.ToLower(envOrDefault("MODEL_PROVIDER", ProviderOpenAI))

	modelKey := os.Getenv("MODEL_API_KEY")
	if modelKey == "" {
		switch provider {
		case ProviderOpenAI:
			modelKey = os.Getenv("OPENAI_API_KEY")
		case ProviderAnthropic:
			modelKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}

	embeddingKey := os.Getenv("EMBEDDING_API_KEY")
	if embeddingKey == "" {
		embeddingKey = os.Getenv("OPENAI_API_KEY")
	}
	if embeddingKey == "" && provider == ProviderOpenAI {
		embeddingKey = modelKey
	}

	retries := parseInt(envOrDefault("MODEL_MAX_RETRIES", "1"), 1)
	if retries > 1 {
		retries = 1
	}
	if retries < 0 {
		retries = 0
	}

	return &Config{
		ServerPort:          envOrDefault("SERVER_PORT", envOrDefault("PORT", "8000")),
		ConversationBackend: strings.ToLower(envOrDefault("CONVERSATION_BACKEND", BackendPostgres)),
		Model: ModelConfig{
			Provider:    provider,
			APIKey:      modelKey,
			Name:        envOrDefault("MODEL_NAME", "gpt-4o-mini"),
			BaseURL:     os.Getenv("MODEL_BASE_URL"),
			Timeout:     parseDuration(envOrDefault("MODEL_TIMEOUT", "120s"), 120*time.Second),
			MaxRetries:  retries,
			Temperature: parseFloat(envOrDefault("MODEL_TEMPERATURE", "0.7"), 0.7),
			MaxTokens:   parseInt(envOrDefault("MODEL_MAX_TOKENS", "1000"), 1000),
		},
		Postgres: PostgresConfig{
			DSN:               envOrDefault("POSTGRES_URL", os.Getenv("POSTGRES_DSN")),
			Host:              os.Getenv("POSTGRES_HOST"),
			Port:              parseInt(envOrDefault("POSTGRES_PORT", "5432"), 5432),
			User:              envOrDefault("POSTGRES_USER", "postgres"),
			Password:          os.Getenv("POSTGRES_PASSWORD"),
			Database:          envOrDefault("POSTGRES_DB", "postgres"),
			SSLMode:           os.Getenv("POSTGRES_SSLMODE"),
			MaxConns:          parseInt32(envOrDefault("POSTGRES_MAX_CONNS", "10"), 10),
			MinConns:          parseInt32(envOrDefault("POSTGRES_MIN_CONNS", "1"), 1),
			MaxConnLifetime:   parseDuration(envOrDefault("POSTGRES_MAX_CONN_LIFETIME", "1h"), time.Hour),
			MaxConnIdleTime:   parseDuration(envOrDefault("POSTGRES_MAX_CONN_IDLE_TIME", "30m"), 30*time.Minute),
			HealthCheckPeriod: parseDuration(envOrDefault("POSTGRES_HEALTH_CHECK_PERIOD", "1m"), time.Minute),
			ConnectTimeout:    parseDuration(envOrDefault("POSTGRES_CONNECT_TIMEOUT", "5s"), 5*time.Second),
		},
		Mongo: MongoConfig{
			URI:            os.Getenv("MONGO_URI"),
			Database:       envOrDefault("MONGO_DB_NAME", "booking_assistant"),
			ConnectTimeout: parseDuration(envOrDefault("MONGO_CONNECT_TIMEOUT", "5s"), 5*time.Second),
		},
		SQLite: SQLiteConfig{
			Path: envOrDefault("SQLITE_PATH", "data/conversations.db"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       parseInt(envOrDefault("REDIS_DB", "0"), 0),
			TTL:      parseDuration(envOrDefault("EMBEDDING_CACHE_TTL", "24h"), 24*time.Hour),
		},
		Pinecone: PineconeConfig{
			APIKey:          os.Getenv("PINECONE_API_KEY"),
			IndexName:       os.Getenv("PINECONE_INDEX_NAME"),
			IndexHost:       os.Getenv("PINECONE_INDEX_HOST"),
			Namespace:       os.Getenv("PINECONE_NAMESPACE"),
			Dimension:       parseInt(envOrDefault("PINECONE_DIMENSION", strconv.Itoa(EmbeddingDimension)), -1),
			ControlPlaneURL: envOrDefault("PINECONE_CONTROL_PLANE_URL", "https://api.pinecone.io"),
			Timeout:         parseDuration(envOrDefault("PINECONE_TIMEOUT", "10s"), 10*time.Second),
		},
		Embedding: EmbeddingConfig{
			APIKey:  embeddingKey,
			Model:   envOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
			BaseURL: os.Getenv("EMBEDDING_BASE_URL"),
		},
		RAG: RAGConfig{
			TopK:            parseInt(envOrDefault("RAG_TOP_K", "3"), 3),
			MinScore:        parseFloat(envOrDefault("RAG_MIN_SCORE", "0.2"), 0.2),
			MaxContextChars: parseInt(envOrDefault("RAG_MAX_CONTEXT_CHARS", "2000"), 2000),
		},
		Turn: TurnConfig{
			MaxToolRounds:     parseInt(envOrDefault("TURN_MAX_TOOL_ROUNDS", "5"), 5),
			Timeout:           parseDuration(envOrDefault("TURN_TIMEOUT", "300s"), 300*time.Second),
			DefaultPromptType: strings.ToLower(envOrDefault("PROMPT_DEFAULT_TYPE", "default")),
		},
		Prompts: PromptsConfig{
			File:  os.Getenv("PROMPTS_FILE"),
			Watch: parseBool(envOrDefault("PROMPTS_WATCH", "true"), true),
		},
		Logging: LoggingConfig{
			Level:        strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
			Encoding:     strings.ToLower(envOrDefault("LOG_ENCODING", "json")),
			Development:  parseBool(envOrDefault("LOG_DEVELOPMENT", "false"), false),
			EnableCaller: parseBool(envOrDefault("LOG_CALLER", "false"), false),
			ServiceName:  envOrDefault("SERVICE_NAME", "booking-assistant"),
		},
	}
}

// Validate reports every missing or invalid setting in one error wrapping
// models.ErrConfiguration.
func (c *Config) Validate() error {
	var problems []string

	switch c.Model.Provider {
	case ProviderOpenAI, ProviderAnthropic:
		if strings.TrimSpace(c.Model.APIKey) == "" {
			problems = append(problems, "MODEL_API_KEY")
		}
	case ProviderOllama:
	default:
		problems = append(problems, fmt.Sprintf("MODEL_PROVIDER (unsupported %q)", c.Model.Provider))
	}
	if strings.TrimSpace(c.Model.Name) == "" {
		problems = append(problems, "MODEL_NAME")
	}
	if c.Model.Timeout <= 0 {
		problems = append(problems, "MODEL_TIMEOUT (must be positive)")
	}

	switch c.ConversationBackend {
	case BackendPostgres:
		if c.Postgres.DSN == "" && c.Postgres.Host == "" {
			problems = append(problems, "POSTGRES_URL")
		}
		if c.Postgres.Password == "" && !dsnHasPassword(c.Postgres.DSN) {
			problems = append(problems, "POSTGRES_PASSWORD")
		}
	case BackendMongo:
		if c.Mongo.URI == "" {
			problems = append(problems, "MONGO_URI")
		}
		if c.Mongo.Database == "" {
			problems = append(problems, "MONGO_DB_NAME")
		}
	case BackendSQLite:
		if c.SQLite.Path == "" {
			problems = append(problems, "SQLITE_PATH")
		}
	default:
		problems = append(problems, fmt.Sprintf("CONVERSATION_BACKEND (unsupported %q)", c.ConversationBackend))
	}

	if c.Pinecone.APIKey == "" {
		problems = append(problems, "PINECONE_API_KEY")
	}
	if c.Pinecone.IndexName == "" {
		problems = append(problems, "PINECONE_INDEX_NAME")
	}
	if c.Pinecone.Dimension != EmbeddingDimension {
		problems = append(problems, fmt.Sprintf("PINECONE_DIMENSION (must be %d)", EmbeddingDimension))
	}
	if c.Embedding.APIKey == "" {
		problems = append(problems, "EMBEDDING_API_KEY")
	}

	if c.RAG.TopK <= 0 {
		problems = append(problems, "RAG_TOP_K (must be positive)")
	}
	if c.RAG.MaxContextChars <= 0 {
		problems = append(problems, "RAG_MAX_CONTEXT_CHARS (must be positive)")
	}
	if c.Turn.MaxToolRounds <= 0 {
		problems = append(problems, "TURN_MAX_TOOL_ROUNDS (must be positive)")
	}
	if c.Turn.Timeout <= 0 {
		problems = append(problems, "TURN_TIMEOUT (must be positive)")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: missing or invalid environment variables: %s", models.ErrConfiguration, strings.Join(problems, ", "))
	}
	return nil
}

func (c PostgresConfig) BuildDSN() string {
	if c.DSN != "" {
		return withPassword(c.DSN, c.Password)
	}
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		url.PathEscape(c.User), url.PathEscape(c.Password), c.Host, c.Port, c.Database)
	if c.SSLMode != "" {
		dsn += "?sslmode=" + url.QueryEscape(c.SSLMode)
	}
	return dsn
}

// withPassword injects the access key into a URL-style DSN that has none.
func withPassword(dsn, password string) string {
	if password == "" || dsnHasPassword(dsn) {
		return dsn
	}
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
		return dsn
	}
	u.User = url.UserPassword(u.User.Username(), password)
	return u.String()
}

func dsnHasPassword(dsn string) bool {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return strings.Contains(dsn, "password=")
	}
	_, ok := u.User.Password()
	return ok
}

func envOrDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(value string, fallback int) int {
	i, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return i
}

func parseInt32(value string, fallback int32) int32 {
	i, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return int32(i)
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(value string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}
