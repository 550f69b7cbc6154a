// Package config centralises environment-driven configuration, using
// the log-on-default / log-on-parse-failure style the rest of the
// core's ambient stack follows.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/ontocore/ontocore-server/internal/logger"
)

func GetEnv(key, defaultVal string, log *logger.Logger) string {
	scoped := log
	if scoped != nil {
		scoped = scoped.With("env_var", key)
	}
	val, ok := os.LookupEnv(key)
	if !ok {
		if scoped != nil {
			scoped.Debug("environment variable not found, using default", "default", defaultVal)
		}
		return defaultVal
	}
	return val
}

func GetEnvAsInt(key string, defaultVal int, log *logger.Logger) int {
	scoped := log
	if scoped != nil {
		scoped = scoped.With("env_var", key)
	}
	valStr, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	i, err := strconv.Atoi(valStr)
	if err != nil {
		if scoped != nil {
			scoped.Debug("environment variable could not be parsed as int, using default", "provided", valStr, "default", defaultVal, "error", err)
		}
		return defaultVal
	}
	return i
}

func GetEnvAsDuration(key string, defaultVal time.Duration, log *logger.Logger) time.Duration {
	scoped := log
	if scoped != nil {
		scoped = scoped.With("env_var", key)
	}
	valStr, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	d, err := time.ParseDuration(valStr)
	if err != nil {
		if scoped != nil {
			scoped.Debug("environment variable could not be parsed as duration, using default", "provided", valStr, "default", defaultVal, "error", err)
		}
		return defaultVal
	}
	return d
}

func GetEnvAsBool(key string, defaultVal bool, log *logger.Logger) bool {
	valStr, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	b, err := strconv.ParseBool(valStr)
	if err != nil {
		return defaultVal
	}
	return b
}

// Config is the process-wide configuration for the core subsystems.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresName     string

	RedisAddr string
	JobTTL    time.Duration

	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	FlushInterval int
	PageSize      int

	OTelEnabled bool
}

func Load(log *logger.Logger) Config {
	return Config{
		PostgresHost:     GetEnv("POSTGRES_HOST", "localhost", log),
		PostgresPort:     GetEnv("POSTGRES_PORT", "5432", log),
		PostgresUser:     GetEnv("POSTGRES_USER", "postgres", log),
		PostgresPassword: GetEnv("POSTGRES_PASSWORD", "", log),
		PostgresName:     GetEnv("POSTGRES_NAME", "ontocore", log),

		RedisAddr: GetEnv("REDIS_ADDR", "", log),
		JobTTL:    GetEnvAsDuration("JOB_TTL", 24*time.Hour, log),

		Neo4jURI:      GetEnv("NEO4J_URI", "", log),
		Neo4jUser:     GetEnv("NEO4J_USER", "neo4j", log),
		Neo4jPassword: GetEnv("NEO4J_PASSWORD", "", log),
		Neo4jDatabase: GetEnv("NEO4J_DATABASE", "", log),

		FlushInterval: GetEnvAsInt("FLUSH_INTERVAL", 5000, log),
		PageSize:      GetEnvAsInt("STREAM_PAGE_SIZE", 1000, log),

		OTelEnabled: GetEnvAsBool("OTEL_ENABLED", false, log),
	}
}
