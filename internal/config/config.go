package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DB     DBConfig
	MinIO  MinIOConfig
	JWT    JWTConfig
	Server ServerConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type JWTConfig struct {
	Secret             string
	AccessTokenMinutes int
	RefreshTokenDays   int
}

type ServerConfig struct {
	Port          string
	FrontendURL   string
	SecureCookies bool
}

func Load() *Config {
	// Missing .env is fine; containers inject real env vars.
	_ = godotenv.Load()

	return &Config{
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "purrfect"),
			Password: getEnv("DB_PASSWORD", "purrfect_secret"),
			Name:     getEnv("DB_NAME", "purrfect"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "purrfect"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "purrfect_secret"),
			Bucket:    getEnv("MINIO_BUCKET", "avatars"),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", "change-me-in-production"),
			AccessTokenMinutes: getEnvAsInt("JWT_ACCESS_MINUTES", 15),
			RefreshTokenDays:   getEnvAsInt("JWT_REFRESH_DAYS", 7),
		},
		Server: ServerConfig{
			Port:          getEnv("SERVER_PORT", "8080"),
			FrontendURL:   getEnv("FRONTEND_URL", "http://localhost:5173"),
			SecureCookies: getEnvAsBool("SECURE_COOKIES", false),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
