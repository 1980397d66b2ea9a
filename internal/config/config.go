package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server
	Port string
	Env  string

	// JWT
	JWTSecret        string
	JWTExpirationDur time.Duration

	// Redis cache. Empty disables caching.
	RedisURL string

	// Outbound HTTP
	RequestTimeout time.Duration
	KMSBaseURL     string
	CMRBaseURL     string

	// GitHub Actions deploy trigger
	GithubToken      string
	GithubRepo       string
	GithubWorkflowID string
	GithubBranch     string
	GithubAPIURL     string

	// GCMD sync
	PipelineAPIKey string
	GcmdSyncUser   string
	ReportDir      string

	// Login lockout
	MaxLoginAttempts int
	LockoutDuration  time.Duration
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),

		RedisURL: getEnv("REDIS_URL", ""),

		KMSBaseURL: getEnv("KMS_BASE_URL", "https://gcmd.earthdata.nasa.gov/kms"),
		CMRBaseURL: getEnv("CMR_BASE_URL", "https://cmr.earthdata.nasa.gov/search"),

		GithubToken:      getEnv("GITHUB_WORKFLOW_TOKEN", ""),
		GithubRepo:       getEnv("GITHUB_WORKFLOW_REPO", ""),
		GithubWorkflowID: getEnv("GITHUB_WORKFLOW_ID", ""),
		GithubBranch:     getEnv("GITHUB_WORKFLOW_BRANCH", "production"),
		GithubAPIURL:     getEnv("GITHUB_API_URL", "https://api.github.com"),

		PipelineAPIKey: getEnv("PIPELINE_API_KEY", ""),
		GcmdSyncUser:   getEnv("GCMD_SYNC_USER", "admin"),
		ReportDir:      getEnv("REPORT_DIR", "reports"),

		MaxLoginAttempts: getEnvInt("MAX_LOGIN_ATTEMPTS", 5),
	}

	config.JWTExpirationDur = getEnvDuration("JWT_EXPIRES_IN", 24*time.Hour)
	config.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", 30*time.Second)
	config.LockoutDuration = getEnvDuration("LOCKOUT_DURATION", 15*time.Minute)

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// DeployConfigured reports whether every GitHub workflow setting is present.
func (c *Config) DeployConfigured() bool {
	return c.GithubToken != "" && c.GithubRepo != "" && c.GithubWorkflowID != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %d\n", key, raw, defaultValue)
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %s\n", key, raw, defaultValue)
		return defaultValue
	}
	return d
}
