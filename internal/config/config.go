/**
 * @description
 * This package handles the configuration management for the signer-service.
 * It uses the Viper library to read configuration from environment variables
 * (optionally seeded from a .env file), providing a centralized way to manage
 * application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the signer-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort      string `mapstructure:"SERVER_PORT"`
	Environment     string `mapstructure:"ENV"`
	RedisURL        string `mapstructure:"REDIS_URL"`
	RabbitMQURL     string `mapstructure:"RABBITMQ_URL"`
	EventExchange   string `mapstructure:"SIGNER_EVENT_EXCHANGE"`
	ClientBaseURL   string `mapstructure:"CLIENT_ADDRESS"`
	SignerSecret    string `mapstructure:"SIGNER_SECRET"`
	SecurityEnabled bool   `mapstructure:"SECURITY_ENABLED"`

	PollingIntervalMS   int `mapstructure:"POLLING_INTERVAL"`
	PollingMaxAttempts  int `mapstructure:"POLLING_MAX_ATTEMPTS"`
	KeyTTLSeconds       int `mapstructure:"KEY_TTL"`
	RequestTTLSeconds   int `mapstructure:"REQUEST_DEDUP_TTL"`
	JobLeaseSeconds     int `mapstructure:"JOB_LEASE_SECONDS"`
	ResourceConcurrency int `mapstructure:"RESOURCE_WORKER_CONCURRENCY"`
	LedgerCallsPerSec   int `mapstructure:"LEDGER_CALLS_PER_SECOND"`

	AppKey string `mapstructure:"APP_KEY"`

	TronAPIBaseURL        string `mapstructure:"TRON_API_BASE_URL"`
	TronAPIKey            string `mapstructure:"TRON_KEY"`
	TronFeeLimit          int64  `mapstructure:"TRON_FEE_LIMIT"`
	USDTContract          string `mapstructure:"USDT_CONTRACT_ADDRESS"`
	ReFeeBaseURL          string `mapstructure:"RE_FEE_BASE_URL"`
	ReFeeAPIKey           string `mapstructure:"RE_FEE_API_KEY"`
	ReFeeProceedOnFailure bool   `mapstructure:"RE_FEE_SHOULD_PROCEED"`
}

// PollingInterval returns the fixed retry cadence shared by the polling
// queues.
func (c Config) PollingInterval() time.Duration {
	return time.Duration(c.PollingIntervalMS) * time.Millisecond
}

// KeyTTL returns how long ephemeral wallet material stays recoverable.
func (c Config) KeyTTL() time.Duration {
	return time.Duration(c.KeyTTLSeconds) * time.Second
}

// RequestTTL returns the lifetime of the request-dedup marker.
func (c Config) RequestTTL() time.Duration {
	return time.Duration(c.RequestTTLSeconds) * time.Second
}

// JobLease returns how long a reserved job stays invisible before the reaper
// hands it back for redelivery.
func (c Config) JobLease() time.Duration {
	return time.Duration(c.JobLeaseSeconds) * time.Second
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()

	// Tell viper the path to look for the optional .env file.
	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	// Enable automatic binding of environment variables.
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	v.SetDefault("SERVER_PORT", "3000")
	v.SetDefault("ENV", "local")
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("SIGNER_EVENT_EXCHANGE", "signer_events")
	v.SetDefault("POLLING_INTERVAL", 60000)
	v.SetDefault("POLLING_MAX_ATTEMPTS", 30)
	v.SetDefault("KEY_TTL", 3600)
	v.SetDefault("REQUEST_DEDUP_TTL", 20)
	v.SetDefault("JOB_LEASE_SECONDS", 120)
	v.SetDefault("RESOURCE_WORKER_CONCURRENCY", 3)
	v.SetDefault("LEDGER_CALLS_PER_SECOND", 5)
	v.SetDefault("SECURITY_ENABLED", false)
	v.SetDefault("TRON_API_BASE_URL", "https://api.shasta.trongrid.io")
	v.SetDefault("TRON_FEE_LIMIT", 150000000)
	v.SetDefault("RE_FEE_SHOULD_PROCEED", true)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	for _, key := range []string{
		"SERVER_PORT", "ENV", "REDIS_URL", "RABBITMQ_URL",
		"SIGNER_EVENT_EXCHANGE", "CLIENT_ADDRESS", "SIGNER_SECRET",
		"SECURITY_ENABLED", "POLLING_INTERVAL", "POLLING_MAX_ATTEMPTS",
		"KEY_TTL", "REQUEST_DEDUP_TTL", "JOB_LEASE_SECONDS",
		"RESOURCE_WORKER_CONCURRENCY", "LEDGER_CALLS_PER_SECOND", "APP_KEY",
		"TRON_API_BASE_URL", "TRON_KEY", "TRON_FEE_LIMIT",
		"USDT_CONTRACT_ADDRESS", "RE_FEE_BASE_URL", "RE_FEE_API_KEY",
		"RE_FEE_SHOULD_PROCEED",
	} {
		_ = v.BindEnv(key)
	}

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("failed to read config file; using environment values", "err", err)
		}
		err = nil
	}

	// Unmarshal the configuration into the Config struct.
	if err = v.Unmarshal(&config); err != nil {
		return
	}

	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RabbitMQURL = strings.TrimSpace(config.RabbitMQURL)
	config.ClientBaseURL = strings.TrimSuffix(strings.TrimSpace(config.ClientBaseURL), "/")
	config.TronAPIBaseURL = strings.TrimSuffix(strings.TrimSpace(config.TronAPIBaseURL), "/")
	config.ReFeeBaseURL = strings.TrimSuffix(strings.TrimSpace(config.ReFeeBaseURL), "/")

	if config.PollingIntervalMS <= 0 {
		config.PollingIntervalMS = 60000
	}
	if config.PollingMaxAttempts <= 0 {
		config.PollingMaxAttempts = 30
	}
	if config.ResourceConcurrency <= 0 {
		config.ResourceConcurrency = 3
	}
	if config.LedgerCallsPerSec <= 0 {
		config.LedgerCallsPerSec = 5
	}

	return config, nil
}
