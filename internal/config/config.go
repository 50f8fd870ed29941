package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	DatabaseURL        string
	HTTPPort           string
	LogLevel           string
	JWTSecret          string
	WebhookBaseURL     string
	WebhookTimeoutSecs int
	DevTokenEndpoint   bool
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Info("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		DatabaseURL:        getEnv("DATABASE_URL", "sage_companion.db"),
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		WebhookBaseURL:     getEnv("WORKFLOW_WEBHOOK_BASE_URL", ""),
		WebhookTimeoutSecs: getEnvAsInt("WORKFLOW_TIMEOUT_SECONDS", 60),
		DevTokenEndpoint:   getEnv("DEV_TOKEN_ENDPOINT", "") == "true",
	}

	if AppConfig.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}

	if AppConfig.WebhookBaseURL == "" {
		log.Fatal("WORKFLOW_WEBHOOK_BASE_URL environment variable is required")
	}
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
