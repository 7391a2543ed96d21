package config

import "time"

type Config interface {
	EnvConfig
	StorageConfig
}

type EnvConfig interface {
	GetAppName() string
	GetBaseURL() string
	GetRequestTimeout() time.Duration
	GetCacheTTL() time.Duration
	GetLogLevel() string
	GetEnv() string
}

type StorageConfig interface {
	GetTokenFilePath() string
	GetTokenFileSecret() string
	GetRedisAddr() string
	GetRedisPrefix() string
}

type mainConfig struct {
	EnvVars
	Storage
}

func New() Config {
	return mainConfig{}
}
