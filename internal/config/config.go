package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultJWTSecret is the development-only fallback signing secret. It is
// public by definition; main logs a warning whenever it is in effect.
const DefaultJWTSecret = "sharelytics-dev-secret"

type Config struct {
	Env  string
	Port int

	// StoreDriver is one of "mongo", "postgres", "memory".
	StoreDriver string
	MongoURI    string
	MongoDB     string
	DBURL       string

	JWTSecret string
	JWTTTL    time.Duration

	CORSOrigins []string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OTLPEndpoint string

	// Optional dev seed user, created at startup when email+password are set.
	SeedEmail    string
	SeedPassword string
	SeedName     string
}

func Load() Config {
	// Local dev convenience; a missing .env is not an error.
	_ = godotenv.Load()

	return Config{
		Env:           getEnv("APP_ENV", "dev"),
		Port:          getEnvInt("PORT", 5050),
		StoreDriver:   getEnv("STORE_DRIVER", "mongo"),
		MongoURI:      getEnv("MONGODB_URI", "mongodb://127.0.0.1:27017"),
		MongoDB:       getEnv("MONGODB_DB", "sharelytics"),
		DBURL:         buildDBURL(),
		JWTSecret:     getEnv("JWT_SECRET", DefaultJWTSecret),
		JWTTTL:        time.Duration(getEnvInt("JWT_TTL_HOURS", 24)) * time.Hour,
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		OTLPEndpoint:  getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		SeedEmail:     getEnv("SEED_EMAIL", ""),
		SeedPassword:  getEnv("SEED_PASSWORD", ""),
		SeedName:      getEnv("SEED_NAME", "Demo User"),
	}
}

// UsingDefaultSecret reports whether the insecure dev fallback is in effect.
func (c Config) UsingDefaultSecret() bool {
	return c.JWTSecret == DefaultJWTSecret
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "sharelytics")
	pass := getEnv("DB_PASSWORD", "sharelytics")
	name := getEnv("DB_NAME", "sharelytics")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func splitList(raw string) []string {
	var out []string

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Println(err)
			return fallback
		}

		return num
	}
	return fallback
}
