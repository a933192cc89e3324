package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPPort string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	PostgreSQLConnStr string

	// Без Redis и PostgreSQL: сессии и архив в памяти процесса
	UseStubs bool

	// Профиль ядра: адрес ML бэкенда, режим очистки, пороги
	ProfilePath string
	MLTimeout   time.Duration

	MaxUploadBytes int64
	LogFile        string
}

func LoadConfig() *Config {
	return &Config{
		HTTPPort:          getEnvString("FORGE_HTTP_PORT", "8081"),
		RedisAddr:         getEnvString("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnvString("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		RedisTTL:          getEnvDuration("FORGE_SESSION_TTL", 24*time.Hour),
		PostgreSQLConnStr: getEnvString("POSTGRES_DSN", "host=localhost port=5432 user=postgres password=postgres dbname=eda_forensics sslmode=disable"),
		UseStubs:          getEnvBool("FORGE_USE_STUBS", false),
		ProfilePath:       getEnvString("PROFILE_PATH", ""),
		MLTimeout:         getEnvDuration("FORGE_ML_TIMEOUT", 2*time.Minute),
		MaxUploadBytes:    int64(getEnvInt("FORGE_MAX_UPLOAD_MB", 32)) << 20,
		LogFile:           getEnvString("LOG_FILE", ""),
	}
}

func getEnvString(key, defaultValue string) string {
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
