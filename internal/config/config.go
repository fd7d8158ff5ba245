// Package config loads process configuration from a YAML file overridden by
// environment variables, following the teacher's viper-based Must() pattern.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

// Config holds the full process configuration for both the gateway and the
// worker binaries; each binary reads only the sections it needs.
type Config struct {
	Server     Server         `mapstructure:"server"`
	RabbitMQ   RabbitMQ       `mapstructure:"rabbitmq"`
	Redis      Redis          `mapstructure:"redis"`
	Database   Database       `mapstructure:"database"`
	Email      Email          `mapstructure:"email"`
	Push       Push           `mapstructure:"push"`
	Breaker    Breaker        `mapstructure:"breaker"`
	APIKey     string         `mapstructure:"api_key"`
	Retry      retry.Strategy `mapstructure:"retry"`
	Idempotency struct {
		TTLSeconds int `mapstructure:"ttl_seconds"`
	} `mapstructure:"idempotency"`
	StatusTTLSeconds int `mapstructure:"status_ttl_seconds"`
	MaxAttempts      int `mapstructure:"max_attempts"`
	Workers          struct {
		Count int `mapstructure:"count"`
	} `mapstructure:"workers"`
	Channel string `mapstructure:"channel"` // which fleet this worker process serves
}

// Server holds HTTP server configuration.
type Server struct {
	Port string `mapstructure:"port"`
}

// RabbitMQ holds broker connection and reconnection configuration.
type RabbitMQ struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	Retries  int           `mapstructure:"retries"`
	Pause    time.Duration `mapstructure:"pause"`
	Exchange string        `mapstructure:"exchange"`
}

// URL returns the broker connection string.
func (r RabbitMQ) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d", r.User, r.Password, r.Host, r.Port)
}

// Redis holds the status-store connection configuration.
type Redis struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	Database int    `mapstructure:"database"`
}

// Database holds the delivery-audit Postgres connection configuration.
type Database struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Pass            string        `mapstructure:"pass"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL DSN string for the audit database.
func (d Database) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Pass, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// Email holds SMTP relay configuration.
type Email struct {
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// Push holds mobile push gateway configuration.
type Push struct {
	Endpoint          string `mapstructure:"endpoint"`
	FirebaseProjectID string `mapstructure:"firebase_project_id"`
	ClientEmail       string `mapstructure:"firebase_client_email"`
	PrivateKey        string `mapstructure:"firebase_private_key"`
}

// Breaker holds circuit-breaker tunables shared by both adapters.
type Breaker struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	ErrorThreshold    float64       `mapstructure:"error_threshold"`
	Cooldown          time.Duration `mapstructure:"cooldown"`
	MinRequestsToTrip uint32        `mapstructure:"min_requests_to_trip"`
}

// mustBindEnv binds environment variables to their viper keys. The broker is
// addressed by RABBITMQ_HOST/PORT/USER/PASSWORD and the HTTP listen address
// by PORT; no single broker-URL variable and no SERVICE_PORT are read.
func mustBindEnv() {
	bindings := map[string]string{
		"server.port": "PORT",

		"rabbitmq.host":     "RABBITMQ_HOST",
		"rabbitmq.port":     "RABBITMQ_PORT",
		"rabbitmq.user":     "RABBITMQ_USER",
		"rabbitmq.password": "RABBITMQ_PASSWORD",

		"redis.address":  "REDIS_URL",
		"redis.password": "REDIS_PASSWORD",
		"redis.database": "REDIS_DATABASE",

		"database.host": "DB_HOST",
		"database.port": "DB_PORT",
		"database.user": "DB_USER",
		"database.pass": "DB_PASSWORD",
		"database.name": "DB_NAME",

		"email.smtp_host": "SMTP_HOST",
		"email.smtp_port": "SMTP_PORT",
		"email.username":  "SMTP_USER",
		"email.password":  "SMTP_PASS",
		"email.from":      "EMAIL_FROM",

		"push.endpoint":               "FIREBASE_ENDPOINT",
		"push.firebase_project_id":    "FIREBASE_PROJECT_ID",
		"push.firebase_client_email":  "FIREBASE_CLIENT_EMAIL",
		"push.firebase_private_key":   "FIREBASE_PRIVATE_KEY",

		"api_key":                    "API_KEY",
		"idempotency.ttl_seconds":    "IDEMPOTENCY_TTL_SECONDS",
		"status_ttl_seconds":         "STATUS_TTL_SECONDS",
		"max_attempts":               "MAX_ATTEMPTS",
		"channel":                    "NOTIFIER_CHANNEL",
	}

	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			zlog.Logger.Panic().Err(err).Msgf("failed to bind env %s", env)
		}
	}
}

// setDefaults seeds the process defaults spec.md §6/§4.3 names.
func setDefaults() {
	viper.SetDefault("idempotency.ttl_seconds", 86400)
	viper.SetDefault("status_ttl_seconds", 86400)
	viper.SetDefault("max_attempts", 5)
	viper.SetDefault("rabbitmq.exchange", "notifications.direct")
	viper.SetDefault("breaker.timeout", 10*time.Second)
	viper.SetDefault("breaker.error_threshold", 0.6)
	viper.SetDefault("breaker.cooldown", 30*time.Second)
	viper.SetDefault("breaker.min_requests_to_trip", 5)
	viper.SetDefault("workers.count", 4)
}

// Must loads configuration from config.yml and the environment; the loaded
// values are not validated. It panics if configuration cannot be read or unmarshalled —
// there is no sensible degraded mode for a process that cannot find its own
// broker or cache address.
func Must() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			zlog.Logger.Panic().Err(err).Msg("failed to read config")
		}
		zlog.Logger.Warn().Msg("no config file found, relying on defaults and environment")
	}

	mustBindEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		zlog.Logger.Panic().Err(err).Msgf("failed to unmarshal config: %v", err)
	}

	return &cfg
}
