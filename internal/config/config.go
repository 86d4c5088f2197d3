package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Graph     GraphConfig
	Keys      APIKeys
	Ai        AIConfig
	Qa        QAConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JwtSecret          string
}

type DatabaseConfig struct {
	Connection string
}

type GraphConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

type APIKeys struct {
	GoogleGemini string
}

type AIConfig struct {
	EmbeddingProvider string // "gemini" or "ollama"
	OllamaBaseURL     string
	OllamaModel       string
	LLMProvider       string // "ollama", "openai", etc
	LLMModel          string // e.g. "llama3", "qwen2.5"
}

type QAConfig struct {
	HighThreshold     float64
	LowThreshold      float64
	SimilarityFloor   float64
	RetrievalLimit    int
	ClassifyTimeoutMs int
	PipelineTimeoutMs int
	WorkerPoolSize    int
	MaxRetries        int
	BackoffBaseSec    int
	BackoffCapSec     int
}

type RateLimitConfig struct {
	Limit         int
	WindowSeconds int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JwtSecret:          getEnv("JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Graph: GraphConfig{
			URI:      getEnv("NEO4J_URI", "bolt://localhost:7687"),
			Username: getEnv("NEO4J_USERNAME", "neo4j"),
			Password: getEnv("NEO4J_PASSWORD", ""),
			Database: getEnv("NEO4J_DATABASE", "neo4j"),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "gemini"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
		},
		Qa: QAConfig{
			HighThreshold:     getEnvAsFloat("QA_HIGH_THRESHOLD", 0.8),
			LowThreshold:      getEnvAsFloat("QA_LOW_THRESHOLD", 0.6),
			SimilarityFloor:   getEnvAsFloat("QA_SIMILARITY_FLOOR", 0.3),
			RetrievalLimit:    getEnvAsInt("QA_RETRIEVAL_LIMIT", 5),
			ClassifyTimeoutMs: getEnvAsInt("QA_CLASSIFY_TIMEOUT_MS", 5000),
			PipelineTimeoutMs: getEnvAsInt("QA_PIPELINE_TIMEOUT_MS", 60000),
			WorkerPoolSize:    getEnvAsInt("QA_WORKER_POOL_SIZE", 2),
			MaxRetries:        getEnvAsInt("QA_VERIFY_MAX_RETRIES", 3),
			BackoffBaseSec:    getEnvAsInt("QA_VERIFY_BACKOFF_BASE_SEC", 30),
			BackoffCapSec:     getEnvAsInt("QA_VERIFY_BACKOFF_CAP_SEC", 900),
		},
		RateLimit: RateLimitConfig{
			Limit:         getEnvAsInt("RATE_LIMIT_QUESTIONS", 20),
			WindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 3600),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}
