// Package config provides configuration management for the boost engine.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Chain    ChainConfig
	Engine   EngineConfig
	Worker   WorkerConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string
	Port           string
	RequestsPerSec int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// ChainConfig holds the chain endpoints and collaborator contract
// addresses the engine talks to.
type ChainConfig struct {
	RPCPrimary   string
	RPCSecondary string

	// OperatorKey is the hex-encoded private key the engine submits
	// collaborator transactions with.
	OperatorKey string

	MeritManagerAddress string
	TreasuryAddress     string
	BadgeNFTAddress     string
	RandomOracleAddress string

	// HoldingThreshold is the minimum totem token/NFT balance required
	// to boost.
	HoldingThreshold int64

	// UseLocalOracle switches the randomness oracle to the in-process
	// implementation for development environments without a chain.
	UseLocalOracle bool
}

// EngineConfig holds boost engine parameters
type EngineConfig struct {
	// FrontendSigner is the default trusted signer address; the manager
	// can override it at runtime.
	FrontendSigner string

	// ManagerKey gates the admin endpoints.
	ManagerKey string

	// OracleKey authenticates the oracle fulfillment callback.
	OracleKey string

	SignatureTolerance time.Duration
}

// WorkerConfig holds fulfillment worker configuration
type WorkerConfig struct {
	PollInterval time.Duration

	// StaleAge is how long a request may stay pending before the worker
	// starts logging it. Stale requests are never cancelled.
	StaleAge time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from the environment and an optional .env file
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnv("SERVER_PORT", "8080"),
			RequestsPerSec: getEnvAsInt("SERVER_REQUESTS_PER_SEC", 20),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "boost_engine"),
				User:           getEnv("POSTGRES_USER", "boost"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "boost_engine"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Chain: ChainConfig{
			RPCPrimary:          getEnv("CHAIN_RPC_PRIMARY", ""),
			RPCSecondary:        getEnv("CHAIN_RPC_SECONDARY", ""),
			OperatorKey:         getEnv("CHAIN_OPERATOR_KEY", ""),
			MeritManagerAddress: getEnv("MERIT_MANAGER_ADDRESS", ""),
			TreasuryAddress:     getEnv("TREASURY_ADDRESS", ""),
			BadgeNFTAddress:     getEnv("BADGE_NFT_ADDRESS", ""),
			RandomOracleAddress: getEnv("RANDOM_ORACLE_ADDRESS", ""),
			HoldingThreshold:    int64(getEnvAsInt("HOLDING_THRESHOLD", 1)),
			UseLocalOracle:      getEnvAsBool("USE_LOCAL_ORACLE", false),
		},
		Engine: EngineConfig{
			FrontendSigner:     getEnv("FRONTEND_SIGNER", ""),
			ManagerKey:         getEnv("MANAGER_KEY", ""),
			OracleKey:          getEnv("ORACLE_KEY", ""),
			SignatureTolerance: getEnvAsDuration("SIGNATURE_TOLERANCE", 5*time.Minute),
		},
		Worker: WorkerConfig{
			PollInterval: getEnvAsDuration("FULFILLER_POLL_INTERVAL", 15*time.Second),
			StaleAge:     getEnvAsDuration("FULFILLER_STALE_AGE", 24*time.Hour),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks that the configuration is internally consistent
func (c *Config) Validate() error {
	if c.Database.Postgres.MaxConnections <= 0 {
		return fmt.Errorf("POSTGRES_MAX_CONNECTIONS must be positive")
	}
	if c.Engine.SignatureTolerance <= 0 {
		return fmt.Errorf("SIGNATURE_TOLERANCE must be positive")
	}
	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("FULFILLER_POLL_INTERVAL must be positive")
	}
	if c.Chain.HoldingThreshold < 0 {
		return fmt.Errorf("HOLDING_THRESHOLD must not be negative")
	}
	if !c.Chain.UseLocalOracle && c.Chain.RPCPrimary == "" {
		return fmt.Errorf("CHAIN_RPC_PRIMARY is required unless USE_LOCAL_ORACLE is set")
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a bool with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
