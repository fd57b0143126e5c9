package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
	Ai       AIConfig
	Spiral   SpiralConfig
	Store    StoreConfig
	Security SecurityConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	SpiralLogFilePath  string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	OtlpEndpoint       string
	TracingEnabled     bool
}

type DatabaseConfig struct {
	Connection string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
	AlertEmail string
}

type AIConfig struct {
	EmbeddingProvider    string // "ollama" or "openai"
	OllamaBaseURL        string
	OllamaModel          string
	LLMProvider          string // "ollama" or "openai"
	LLMModel             string
	OpenAIBaseURL        string
	OpenAIAPIKey         string
	OpenAIEmbeddingModel string
}

// SpiralConfig carries the reasoning weights and thresholds. The defaults
// reproduce the tuned values observed in production; they are configuration,
// not derived quantities.
type SpiralConfig struct {
	CandidateTarget     int     // candidates handed to the diagnose stage
	MaxRounds           int     // hard round ceiling per session
	HighCoverage        float64 // coverage at which a session converges
	ForcedFloor         float64 // below this at max rounds the result is flagged insufficient
	WeightSimilarity    float64
	WeightSymptom       float64
	WeightTonguePulse   float64
	WeightSpecificity   float64
	TieBreakGap         float64 // score gap inside which specificity wins
	AnchorRegression    float64 // coverage drop that releases the anchor
	ConvWeightCoverage  float64
	ConvWeightAnchor    float64
	ConvWeightProgress  float64
	StageTimeoutSeconds int
	UnavailableRetries  int
	VirtualCaseScore    float64 // neutral sub-score for synthesized candidates
}

type StoreConfig struct {
	MaxSessions      int
	IdleTimeoutHours int
	SweepMinutes     int
}

type SecurityConfig struct {
	RateLimitPerMinute int
	AlertFlagThreshold int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/pulse.log"),
			SpiralLogFilePath:  getEnv("SPIRAL_LOG_FILE_PATH", "logs/spiral_engine.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			OtlpEndpoint:       getEnv("OTLP_ENDPOINT", "localhost:4318"),
			TracingEnabled:     getEnvAsBool("TRACING_ENABLED", false),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "Pulse"),
			AlertEmail: getEnv("SECURITY_ALERT_EMAIL", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider:    getEnv("EMBEDDING_PROVIDER", "ollama"),
			OllamaBaseURL:        getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:          getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:          getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:             getEnv("LLM_MODEL", "qwen2.5:14b"),
			OpenAIBaseURL:        getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OpenAIAPIKey:         getEnv("OPENAI_API_KEY", ""),
			OpenAIEmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
		},
		Spiral: SpiralConfig{
			CandidateTarget:     getEnvAsInt("SPIRAL_CANDIDATE_TARGET", 3),
			MaxRounds:           getEnvAsInt("SPIRAL_MAX_ROUNDS", 8),
			HighCoverage:        getEnvAsFloat("SPIRAL_HIGH_COVERAGE", 0.8),
			ForcedFloor:         getEnvAsFloat("SPIRAL_FORCED_FLOOR", 0.75),
			WeightSimilarity:    getEnvAsFloat("SPIRAL_WEIGHT_SIMILARITY", 0.4),
			WeightSymptom:       getEnvAsFloat("SPIRAL_WEIGHT_SYMPTOM", 0.3),
			WeightTonguePulse:   getEnvAsFloat("SPIRAL_WEIGHT_TONGUE_PULSE", 0.2),
			WeightSpecificity:   getEnvAsFloat("SPIRAL_WEIGHT_SPECIFICITY", 0.1),
			TieBreakGap:         getEnvAsFloat("SPIRAL_TIE_BREAK_GAP", 0.08),
			AnchorRegression:    getEnvAsFloat("SPIRAL_ANCHOR_REGRESSION", 0.2),
			ConvWeightCoverage:  getEnvAsFloat("SPIRAL_CONV_WEIGHT_COVERAGE", 0.5),
			ConvWeightAnchor:    getEnvAsFloat("SPIRAL_CONV_WEIGHT_ANCHOR", 0.3),
			ConvWeightProgress:  getEnvAsFloat("SPIRAL_CONV_WEIGHT_PROGRESS", 0.2),
			StageTimeoutSeconds: getEnvAsInt("SPIRAL_STAGE_TIMEOUT_SECONDS", 30),
			UnavailableRetries:  getEnvAsInt("SPIRAL_UNAVAILABLE_RETRIES", 2),
			VirtualCaseScore:    getEnvAsFloat("SPIRAL_VIRTUAL_CASE_SCORE", 0.5),
		},
		Store: StoreConfig{
			MaxSessions:      getEnvAsInt("SESSION_MAX_RESIDENT", 1000),
			IdleTimeoutHours: getEnvAsInt("SESSION_IDLE_TIMEOUT_HOURS", 24),
			SweepMinutes:     getEnvAsInt("SESSION_SWEEP_MINUTES", 60),
		},
		Security: SecurityConfig{
			RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 20),
			AlertFlagThreshold: getEnvAsInt("SECURITY_ALERT_FLAG_THRESHOLD", 3),
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

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}
