package config

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

//nolint:gochecknoglobals // one-shot .env load
var once sync.Once

func init() {
	once.Do(func() {
		if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
			log.Printf("Warning: could not load .env file: %v", err)
		}
	})
}

const (
	appNameVar = "APP_NAME"
	baseURLVar = "CLINIC_API_URL"

	defaultRequestTimeout = 30 * time.Second
	defaultCacheTTL       = 30 * time.Second
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "clinicctl")
}

// GetBaseURL returns the clinic backend base URL.
func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:3000/api")
}

func (EnvVars) GetRequestTimeout() time.Duration {
	return parseDurationOrDefault("REQUEST_TIMEOUT", defaultRequestTimeout)
}

func (EnvVars) GetCacheTTL() time.Duration {
	return parseDurationOrDefault("CACHE_TTL", defaultCacheTTL)
}

func (EnvVars) GetLogLevel() string {
	return GetEnv("LOG_LEVEL", "info")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

type Storage struct{}

var _ StorageConfig = Storage{}

func (Storage) GetTokenFilePath() string {
	return GetEnv("TOKEN_FILE", "")
}

func (Storage) GetTokenFileSecret() string {
	return GetEnv("TOKEN_FILE_SECRET", "")
}

// GetRedisAddr returns the redis address for shared token storage, empty
// when the file store should be used instead.
func (Storage) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "")
}

func (Storage) GetRedisPrefix() string {
	return GetEnv("REDIS_PREFIX", "clinic:session")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func parseDurationOrDefault(varName string, def time.Duration) time.Duration {
	if v := os.Getenv(varName); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("Invalid duration in %s: %s, using default %s", varName, v, def)
	}
	return def
}
