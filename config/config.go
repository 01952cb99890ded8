package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string

	// Database
	DatabaseURL string
	RedisURL    string

	// OpenAI
	OpenAIAPIKey  string
	LLMModel      string
	LLMMaxTokens  int
	LLMTimeoutSec int

	// Classification
	AutoApproveThreshold float64

	// Matching
	TitleSimilarityThreshold float64
	FuzzyExactScore          float64
	FuzzySubstringScore      float64
	FuzzyDomainScore         float64
	FuzzyCandidateLimit      int
	RecencyWindowDays        int

	// Batch throttling for external model calls
	MatchBatchSize  int
	MatchBatchPause time.Duration

	// Domain sets
	HiringPlatformDomains []string
	ConsumerMailDomains   []string
	ATSSubdomainMarkers   []string

	// Snowflake
	NodeID int64
}

func Load() (*Config, error) {
	return &Config{
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		// OpenAI
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		LLMModel:      getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:  getEnvInt("LLM_MAX_TOKENS", 1024),
		LLMTimeoutSec: getEnvInt("LLM_TIMEOUT_SEC", 60),

		// Classification
		AutoApproveThreshold: getEnvFloat("AUTO_APPROVE_THRESHOLD", 0.85),

		// Matching
		TitleSimilarityThreshold: getEnvFloat("TITLE_SIMILARITY_THRESHOLD", 0.7),
		FuzzyExactScore:          getEnvFloat("FUZZY_EXACT_SCORE", 1.0),
		FuzzySubstringScore:      getEnvFloat("FUZZY_SUBSTRING_SCORE", 0.8),
		FuzzyDomainScore:         getEnvFloat("FUZZY_DOMAIN_SCORE", 0.5),
		FuzzyCandidateLimit:      getEnvInt("FUZZY_CANDIDATE_LIMIT", 5),
		RecencyWindowDays:        getEnvInt("RECENCY_WINDOW_DAYS", 90),

		// Batch throttling
		MatchBatchSize:  getEnvInt("MATCH_BATCH_SIZE", 3),
		MatchBatchPause: time.Duration(getEnvInt("MATCH_BATCH_PAUSE_MS", 2000)) * time.Millisecond,

		// Domain sets
		HiringPlatformDomains: getEnvSlice("HIRING_PLATFORM_DOMAINS", nil),
		ConsumerMailDomains:   getEnvSlice("CONSUMER_MAIL_DOMAINS", nil),
		ATSSubdomainMarkers:   getEnvSlice("ATS_SUBDOMAIN_MARKERS", nil),

		// Snowflake
		NodeID: int64(getEnvInt("NODE_ID", 1)),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

// RecencyWindow returns the matching recency window as a duration.
func (c *Config) RecencyWindow() time.Duration {
	return time.Duration(c.RecencyWindowDays) * 24 * time.Hour
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
