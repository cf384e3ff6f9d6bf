// internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type QdrantConfig struct {
	Host       string
	Port       int
	Collection string
}

type TypesenseConfig struct {
	Host       string
	Port       int
	APIKey     string
	Collection string
}

type AzureOpenAIConfig struct {
	Endpoint       string
	APIKey         string
	DeploymentName string
}

// ModelsConfig routes each pipeline stage to a model name. The provider is
// picked from the name by providers.NewProvider.
type ModelsConfig struct {
	Profile    string `yaml:"profile"`
	Extraction string `yaml:"extraction"`
	Generation string `yaml:"generation"`
	Response   string `yaml:"response"`
	Embedding  string `yaml:"embedding"`
}

type PipelineConfig struct {
	MaxConcurrency    int
	MaxProfileTokens  int
	MaxIndexTokens    int
	StructuredOutputs bool
	StoreBackend      string
	IndexResponses    bool
	// Model call guards; zero disables each.
	ModelRetries    int
	ModelRPS        float64
	BreakerFailures int
}

type Config struct {
	Port              string
	Environment       string
	LogLevel          string
	InngestEventKey   string
	InngestSigningKey string
	OpenAIAPIKey      string
	AnthropicAPIKey   string
	SlackWebhookURL   string
	DatabaseURL       string
	AzureOpenAI       AzureOpenAIConfig
	Database          DatabaseConfig
	Qdrant            QdrantConfig
	Typesense         TypesenseConfig
	Models            ModelsConfig
	Pipeline          PipelineConfig
}

// DatabaseConfig mirrors the connection settings used by the API service.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
}

// DSN renders the lib/pq key/value connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

func Load() *Config {
	config := &Config{
		Port:              getEnv("PORT", "8000"),
		Environment:       getEnv("ENVIRONMENT", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		InngestEventKey:   os.Getenv("INNGEST_EVENT_KEY"),
		InngestSigningKey: os.Getenv("INNGEST_SIGNING_KEY"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey:   os.Getenv("ANTHROPIC_API_KEY"),
		SlackWebhookURL:   os.Getenv("SLACK_WEBHOOK_URL"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		AzureOpenAI: AzureOpenAIConfig{
			Endpoint:       os.Getenv("AZURE_OPENAI_ENDPOINT"),
			APIKey:         os.Getenv("AZURE_OPENAI_KEY"),
			DeploymentName: os.Getenv("AZURE_OPENAI_DEPLOYMENT_NAME"),
		},
	}

	dbConfig, err := parseDatabaseConfig()
	if err != nil {
		// Fall back to discrete env vars when DATABASE_URL is missing or invalid
		dbConfig = DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "senso_sov"),
			SSLMode:         getEnv("DB_SSLMODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getEnvInt("DB_CONN_MAX_LIFETIME", 300),
		}
	}
	config.Database = dbConfig

	config.Qdrant = QdrantConfig{
		Host:       getEnv("QDRANT_HOST", "qdrant"),
		Port:       getEnvInt("QDRANT_PORT", 6334),
		Collection: getEnv("QDRANT_COLLECTION", "ai_responses"),
	}
	config.Typesense = TypesenseConfig{
		Host:       getEnv("TYPESENSE_HOST", "typesense"),
		Port:       getEnvInt("TYPESENSE_PORT", 8108),
		APIKey:     getEnv("TYPESENSE_API_KEY", "xyz"),
		Collection: getEnv("TYPESENSE_COLLECTION", "ai_responses"),
	}

	config.Models = ModelsConfig{
		Profile:    getEnv("MODEL_PROFILE", "gpt-4.1-mini"),
		Extraction: getEnv("MODEL_EXTRACTION", "gpt-4.1-mini"),
		Generation: getEnv("MODEL_GENERATION", "gpt-4.1"),
		Response:   getEnv("MODEL_RESPONSE", "gpt-4.1"),
		Embedding:  getEnv("MODEL_EMBEDDING", "text-embedding-3-small"),
	}
	config.Pipeline = PipelineConfig{
		MaxConcurrency:    getEnvInt("PIPELINE_MAX_CONCURRENCY", 4),
		MaxProfileTokens:  getEnvInt("PIPELINE_MAX_PROFILE_TOKENS", 1500),
		MaxIndexTokens:    getEnvInt("PIPELINE_MAX_INDEX_TOKENS", 8000),
		StructuredOutputs: getEnvBool("PIPELINE_STRUCTURED_OUTPUTS", true),
		StoreBackend:      getEnv("STORE_BACKEND", "memory"),
		IndexResponses:    getEnvBool("PIPELINE_INDEX_RESPONSES", false),
		ModelRetries:      getEnvInt("MODEL_MAX_RETRIES", 2),
		ModelRPS:          getEnvFloat("MODEL_REQUESTS_PER_SECOND", 0),
		BreakerFailures:   getEnvInt("MODEL_BREAKER_FAILURES", 5),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := config.LoadFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "config: ignoring %s: %v\n", path, err)
		}
	}

	return config
}

// fileOverlay is the subset of settings a YAML file may override.
type fileOverlay struct {
	Models   *ModelsConfig    `yaml:"models"`
	Pipeline *pipelineOverlay `yaml:"pipeline"`
}

type pipelineOverlay struct {
	MaxConcurrency    int      `yaml:"max_concurrency"`
	MaxProfileTokens  int      `yaml:"max_profile_tokens"`
	MaxIndexTokens    int      `yaml:"max_index_tokens"`
	StructuredOutputs *bool    `yaml:"structured_outputs"`
	StoreBackend      string   `yaml:"store_backend"`
	IndexResponses    *bool    `yaml:"index_responses"`
	ModelRetries      *int     `yaml:"model_retries"`
	ModelRPS          *float64 `yaml:"model_requests_per_second"`
	BreakerFailures   *int     `yaml:"breaker_failures"`
}

// LoadFile overlays the models and pipeline blocks from a YAML file. Zero
// values in the file leave the env-derived values untouched.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return c.applyOverlay(data)
}

func (c *Config) applyOverlay(data []byte) error {
	var overlay fileOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if m := overlay.Models; m != nil {
		setString(&c.Models.Profile, m.Profile)
		setString(&c.Models.Extraction, m.Extraction)
		setString(&c.Models.Generation, m.Generation)
		setString(&c.Models.Response, m.Response)
		setString(&c.Models.Embedding, m.Embedding)
	}
	if p := overlay.Pipeline; p != nil {
		if p.MaxConcurrency > 0 {
			c.Pipeline.MaxConcurrency = p.MaxConcurrency
		}
		if p.MaxProfileTokens > 0 {
			c.Pipeline.MaxProfileTokens = p.MaxProfileTokens
		}
		if p.MaxIndexTokens > 0 {
			c.Pipeline.MaxIndexTokens = p.MaxIndexTokens
		}
		setString(&c.Pipeline.StoreBackend, p.StoreBackend)
		if p.StructuredOutputs != nil {
			c.Pipeline.StructuredOutputs = *p.StructuredOutputs
		}
		if p.IndexResponses != nil {
			c.Pipeline.IndexResponses = *p.IndexResponses
		}
		if p.ModelRetries != nil {
			c.Pipeline.ModelRetries = *p.ModelRetries
		}
		if p.ModelRPS != nil {
			c.Pipeline.ModelRPS = *p.ModelRPS
		}
		if p.BreakerFailures != nil {
			c.Pipeline.BreakerFailures = *p.BreakerFailures
		}
	}
	return nil
}

// Validate reports settings that make the service unable to start.
func (c *Config) Validate() error {
	switch c.Pipeline.StoreBackend {
	case "memory":
	case "postgres":
		if c.Database.Host == "" || c.Database.Name == "" {
			return fmt.Errorf("postgres store requires a database host and name")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Pipeline.StoreBackend)
	}
	if c.Pipeline.ModelRetries < 0 || c.Pipeline.ModelRPS < 0 || c.Pipeline.BreakerFailures < 0 {
		return fmt.Errorf("model retry, rate and breaker settings must not be negative")
	}
	if c.Pipeline.MaxConcurrency < 1 {
		return fmt.Errorf("pipeline max concurrency must be at least 1, got %d", c.Pipeline.MaxConcurrency)
	}
	return nil
}

// IsDevelopment reports whether the service runs without production hardening.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "" || c.Environment == "development"
}

func parseDatabaseConfig() (DatabaseConfig, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return DatabaseConfig{}, fmt.Errorf("DATABASE_URL not set")
	}

	parsedURL, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	if parsedURL.Hostname() == "" || len(parsedURL.Path) < 2 {
		return DatabaseConfig{}, fmt.Errorf("DATABASE_URL missing host or database name")
	}

	config := DatabaseConfig{
		Host:            parsedURL.Hostname(),
		Port:            5432,
		User:            parsedURL.User.Username(),
		Name:            strings.TrimPrefix(parsedURL.Path, "/"),
		SSLMode:         getEnv("DB_SSLMODE", "require"),
		MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 25),
		ConnMaxLifetime: getEnvInt("DB_CONN_MAX_LIFETIME", 300),
	}

	if password, ok := parsedURL.User.Password(); ok {
		config.Password = password
	}
	if sslmode := parsedURL.Query().Get("sslmode"); sslmode != "" {
		config.SSLMode = sslmode
	}

	if parsedURL.Port() != "" {
		if port, err := strconv.Atoi(parsedURL.Port()); err == nil {
			config.Port = port
		}
	}

	return config, nil
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
