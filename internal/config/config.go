package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config centralizes runtime settings for the API, the worker and the sweeper.
type Config struct {
	Port string

	AuthToken          string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	LogLevel string
	// Timezone formats notification and e-mail clock times.
	Timezone string

	AIProvider        string
	GeminiAPIKey      string
	GeminiBaseURL     string
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	OpenRouterSiteURL string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	AIModelPrimary    string
	AIModelFallback   string
	AITimeoutMS       int
	AIMaxRetries      int

	ClassifierCacheTTLSeconds int
	ClassifierCacheMaxEntries int

	GmailCredentialsPath string
	GmailTokenPath       string
	GmailUser            string

	RecordStore      string
	NotionToken      string
	NotionDatabaseID string
	NotionStatusKind string
	DatabaseURL      string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisStream   string
	RedisDLQ      string
	RedisGroup    string
	RedisConsumer string
	QueueBuffer   int

	ExternalCallTimeoutMS int
	SearchLimit           int

	SweepEnabled    bool
	SweepSpec       string
	SweepQuery      string
	SweepMaxResults int

	WorkerEnabled bool

	EmailPackages        []string
	ProfessionalPackages []string
	MessagingPackages    []string
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		AuthToken:          getEnv("API_AUTH_TOKEN", ""),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 40),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		Timezone: getEnv("AGENT_TIMEZONE", "Local"),

		AIProvider:        strings.ToLower(getEnv("AI_PROVIDER", "gemini")),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL:     getEnv("GEMINI_BASE_URL", ""),
		OpenRouterAPIKey:  getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterSiteURL: getEnv("OPENROUTER_SITE_URL", ""),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		AIModelPrimary:    getEnv("AI_MODEL_PRIMARY", ""),
		AIModelFallback:   getEnv("AI_MODEL_FALLBACK", ""),
		AITimeoutMS:       getEnvInt("AI_TIMEOUT_MS", 15000),
		AIMaxRetries:      getEnvInt("AI_MAX_RETRIES", 2),

		ClassifierCacheTTLSeconds: getEnvInt("CLASSIFIER_CACHE_TTL_SECONDS", 21600),
		ClassifierCacheMaxEntries: getEnvInt("CLASSIFIER_CACHE_MAX_ENTRIES", 2000),

		GmailCredentialsPath: getEnv("GMAIL_CREDENTIALS_PATH", ""),
		GmailTokenPath:       getEnv("GMAIL_TOKEN_PATH", "token.json"),
		GmailUser:            getEnv("GMAIL_USER", "me"),

		RecordStore:      strings.ToLower(getEnv("RECORD_STORE", "notion")),
		NotionToken:      getEnv("NOTION_TOKEN", ""),
		NotionDatabaseID: getEnv("NOTION_DATABASE_ID", ""),
		NotionStatusKind: strings.ToLower(getEnv("NOTION_STATUS_KIND", "status")),
		DatabaseURL:      getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisStream:   getEnv("REDIS_STREAM", "career_signals"),
		RedisDLQ:      getEnv("REDIS_DLQ_STREAM", "career_signals_dlq"),
		RedisGroup:    getEnv("REDIS_GROUP", "career_dispatchers"),
		RedisConsumer: getEnv("REDIS_CONSUMER", "agent-1"),
		QueueBuffer:   getEnvInt("QUEUE_BUFFER", 256),

		ExternalCallTimeoutMS: getEnvInt("EXTERNAL_CALL_TIMEOUT_MS", 10000),
		SearchLimit:           getEnvInt("SIGNAL_SEARCH_LIMIT", 3),

		SweepEnabled:    getEnvBool("SWEEP_ENABLED", true),
		SweepSpec:       getEnv("SWEEP_SPEC", "@every 15m"),
		SweepQuery:      getEnv("SWEEP_QUERY", "newer_than:1h category:primary"),
		SweepMaxResults: getEnvInt("SWEEP_MAX_RESULTS", 20),

		WorkerEnabled: getEnvBool("WORKER_ENABLED", true),

		EmailPackages:        getEnvList("EMAIL_PACKAGES"),
		ProfessionalPackages: getEnvList("PROFESSIONAL_PACKAGES"),
		MessagingPackages:    getEnvList("MESSAGING_PACKAGES"),
	}
}

func (c Config) AITimeout() time.Duration {
	return time.Duration(c.AITimeoutMS) * time.Millisecond
}

func (c Config) ExternalCallTimeout() time.Duration {
	return time.Duration(c.ExternalCallTimeoutMS) * time.Millisecond
}

func (c Config) ClassifierCacheTTL() time.Duration {
	return time.Duration(c.ClassifierCacheTTLSeconds) * time.Second
}

// Location resolves Timezone, falling back to the host zone.
func (c Config) Location() *time.Location {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
