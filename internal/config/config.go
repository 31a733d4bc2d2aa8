package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	CORSAllowedOrigins []string

	// Catalog and triage tuning
	CatalogDir       string
	MaxResults       int
	MinScenarioScore float64
	MaxTurns         int

	// Session lifecycle
	SessionIdleTimeout   time.Duration
	SessionSweepInterval time.Duration

	// Reply generation
	LLMProvider    string
	GeminiAPIKey   string
	GeminiModel    string
	BedrockModelID string
	ReplyTimeout   time.Duration
	LLMMaxTokens   int
	LLMTemperature float64

	// Optional Bedrock guardrail applied to generated replies
	BedrockGuardrailID      string
	BedrockGuardrailVersion string

	// AWS (Bedrock, SES)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Rate limiting
	RateLimitRPS   float64
	RateLimitBurst int
	RedisAddr      string
	RedisPassword  string
	RedisTLS       bool

	// Escalation notifications
	EscalationEmailTo   string // comma separated on-call list
	EmailProvider       string
	SendGridAPIKey      string
	EmailFrom           string
	EmailFromName       string
	SESConfigurationSet string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),

		CatalogDir:       getEnv("CATALOG_DIR", ""),
		MaxResults:       getEnvAsInt("MAX_RESULTS", 6),
		MinScenarioScore: getEnvAsFloat("MIN_SCENARIO_SCORE", 1),
		MaxTurns:         getEnvAsInt("MAX_TURNS", 50),

		SessionIdleTimeout:   getEnvAsDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		SessionSweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", time.Minute),

		LLMProvider:    strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "auto"))),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),
		ReplyTimeout:   getEnvAsDuration("REPLY_TIMEOUT", 8*time.Second),
		LLMMaxTokens:   getEnvAsInt("LLM_MAX_TOKENS", 500),
		LLMTemperature: getEnvAsFloat("LLM_TEMPERATURE", 0.7),

		BedrockGuardrailID:      getEnv("BEDROCK_GUARDRAIL_ID", ""),
		BedrockGuardrailVersion: getEnv("BEDROCK_GUARDRAIL_VERSION", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 2),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 10),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisTLS:       getEnvAsBool("REDIS_TLS", false),

		EscalationEmailTo:   getEnv("ESCALATION_EMAIL_TO", ""),
		EmailProvider:       strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "none"))),
		SendGridAPIKey:      getEnv("SENDGRID_API_KEY", ""),
		EmailFrom:           getEnv("EMAIL_FROM", ""),
		EmailFromName:       getEnv("EMAIL_FROM_NAME", "MindBridge Triage"),
		SESConfigurationSet: getEnv("SES_CONFIGURATION_SET", ""),
	}
}

// GenerationEnabled reports whether an external reply generator should be wired.
func (c *Config) GenerationEnabled() bool {
	switch c.LLMProvider {
	case "none", "off", "disabled":
		return false
	case "gemini":
		return c.GeminiAPIKey != ""
	case "bedrock":
		return c.BedrockModelID != ""
	default:
		return c.GeminiAPIKey != "" || c.BedrockModelID != ""
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
