package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Host          string
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	LogFormat     string
	TLSCertFile   string
	TLSKeyFile    string

	// HTTP surface
	AllowedOrigins  []string
	RateLimitWindow time.Duration
	RateLimitMax    int
	MaxUploadBytes  int64
	MaxFiles        int
	JSONBodyLimit   int64

	// Salesforce
	SalesforceClientID        string
	SalesforceClientSecret    string
	SalesforceLoginURL        string
	SalesforceRedirectURI     string
	SalesforceAPIVersion      string
	SalesforceRefreshToken    string
	SalesforceUsername        string
	SalesforceJWTKeyFile      string
	SalesforceDefaultRecordID string
	SalesforceInstanceURL     string

	// OCR
	OCRProvider    string
	GeminiAPIKey   string
	GeminiModel    string
	BedrockModelID string

	// Storage
	RedisAddr           string
	RedisPassword       string
	RedisTLS            bool
	DatabaseURL         string
	DraftTTL            time.Duration
	UploadArchiveBucket string
	RedactionRulesFile  string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Notifications
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	SESFromName       string
	SESConfigSet      string
	NotifyTo          string
	WorkerConcurrency int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	port := getEnv("PORT", "3000")
	host := getEnv("HOST", "localhost")
	return &Config{
		Host:          host,
		Port:          port,
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "https://"+host+":"+port), "/"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		TLSCertFile:   getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:    getEnv("TLS_KEY_FILE", ""),

		AllowedOrigins:  getEnvAsList("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		RateLimitWindow: getEnvAsDuration("RATE_LIMIT_WINDOW", getEnvAsDuration("RATE_LIMIT_WINDOW_MS", time.Minute)),
		RateLimitMax:    getEnvAsInt("RATE_LIMIT_MAX", 60),
		MaxUploadBytes:  getEnvAsInt64("MAX_UPLOAD_BYTES", 5*1024*1024),
		MaxFiles:        getEnvAsInt("MAX_FILES", 20),
		JSONBodyLimit:   getEnvAsInt64("JSON_BODY_LIMIT", 200*1024),

		SalesforceClientID:        getEnv("SALESFORCE_CLIENT_ID", ""),
		SalesforceClientSecret:    getEnv("SALESFORCE_CLIENT_SECRET", ""),
		SalesforceLoginURL:        strings.TrimRight(getEnv("SALESFORCE_LOGIN_URL", "https://login.salesforce.com"), "/"),
		SalesforceRedirectURI:     getEnv("SALESFORCE_REDIRECT_URI", "https://"+host+":"+port+"/oauth/callback"),
		SalesforceAPIVersion:      getEnv("SALESFORCE_API_VERSION", "59.0"),
		SalesforceRefreshToken:    getEnv("SALESFORCE_REFRESH_TOKEN", ""),
		SalesforceUsername:        getEnv("SALESFORCE_USERNAME", ""),
		SalesforceJWTKeyFile:      getEnv("SALESFORCE_JWT_KEY_FILE", ""),
		SalesforceDefaultRecordID: getEnv("SALESFORCE_DEFAULT_RECORD_TYPE_ID", ""),
		SalesforceInstanceURL:     strings.TrimRight(getEnv("SALESFORCE_INSTANCE_URL", ""), "/"),

		OCRProvider:    strings.ToLower(strings.TrimSpace(getEnv("OCR_PROVIDER", "gemini"))),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),

		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisTLS:            getEnvAsBool("REDIS_TLS", false),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		DraftTTL:            getEnvAsDuration("DRAFT_TTL", 30*24*time.Hour),
		UploadArchiveBucket: getEnv("UPLOAD_ARCHIVE_BUCKET", ""),
		RedactionRulesFile:  getEnv("REDACTION_RULES_FILE", ""),

		AWSRegion:           getEnv("AWS_REGION", "eu-west-3"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Onboarding Fournisseurs"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESFromName:       getEnv("SES_FROM_NAME", "Onboarding Fournisseurs"),
		SESConfigSet:      getEnv("SES_CONFIGURATION_SET", ""),
		NotifyTo:          getEnv("NOTIFY_TO", ""),
		WorkerConcurrency: getEnvAsInt("WORKER_CONCURRENCY", 5),
	}
}

// IsProduction reports whether the service runs with ENV=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil && value > 0 {
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

// getEnvAsDuration accepts Go durations ("15m") or a bare number of milliseconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	if ms, err := strconv.ParseInt(valueStr, 10, 64); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
