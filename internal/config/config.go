package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort  string
	LogLevel  string
	JWTSecret string

	DatabaseURL  string
	CatalogPath  string
	WatchCatalog bool

	SearchBackend       string
	ElasticsearchURL    string
	ElasticsearchIndex  string
	ElasticsearchAPIKey string

	LLMProvider       string
	GeminiAPIKey      string
	GeminiModel       string
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIBaseURL     string
	AnthropicAPIKey   string
	AnthropicModel    string
	OllamaModel       string
	CompletionTimeout time.Duration
	ImageGeneration   bool

	SessionBackend   string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	SessionRetention time.Duration
	SweepSchedule    string
}

var AppConfig Config

// LoadConfig populates AppConfig from the environment (and an optional .env file).
func LoadConfig() error {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := Config{
		HTTPPort:  getEnv("HTTP_PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "INFO"),
		JWTSecret: getEnv("JWT_SECRET", ""),

		DatabaseURL:  getEnv("DATABASE_URL", "catalog.db"),
		CatalogPath:  getEnv("CATALOG_PATH", "catalog.json"),
		WatchCatalog: getEnvAsBool("WATCH_CATALOG", false),

		SearchBackend:       strings.ToLower(getEnv("SEARCH_BACKEND", "bleve")),
		ElasticsearchURL:    getEnv("ELASTICSEARCH_URL", ""),
		ElasticsearchIndex:  getEnv("ELASTICSEARCH_INDEX", "products"),
		ElasticsearchAPIKey: getEnv("ELASTICSEARCH_API_KEY", ""),

		LLMProvider:       strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-1.5-flash-latest"),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		AnthropicAPIKey:   getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:    getEnv("ANTHROPIC_MODEL", "claude-3-haiku-20240307"),
		OllamaModel:       getEnv("OLLAMA_MODEL", "llama3.1"),
		CompletionTimeout: getEnvAsDuration("COMPLETION_TIMEOUT", 20*time.Second),
		ImageGeneration:   getEnvAsBool("IMAGE_GENERATION", false),

		SessionBackend:   strings.ToLower(getEnv("SESSION_BACKEND", "memory")),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvAsInt("REDIS_DB", 0),
		SessionRetention: getEnvAsDuration("SESSION_RETENTION", 24*time.Hour),
		SweepSchedule:    getEnv("SWEEP_SCHEDULE", "@every 15m"),
	}

	if err := cfg.validate(); err != nil {
		return err
	}

	AppConfig = cfg
	return nil
}

func (c Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}

	switch c.SearchBackend {
	case "bleve":
	case "elastic":
		if c.ElasticsearchURL == "" {
			return fmt.Errorf("ELASTICSEARCH_URL is required when SEARCH_BACKEND=elastic")
		}
	default:
		return fmt.Errorf("unknown SEARCH_BACKEND %q (supported: bleve, elastic)", c.SearchBackend)
	}

	switch c.SessionBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown SESSION_BACKEND %q (supported: memory, redis)", c.SessionBackend)
	}

	if c.SessionRetention <= 0 {
		return fmt.Errorf("SESSION_RETENTION must be positive")
	}
	return nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
