package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer string // Issuer name shown in authenticator apps (default: Inkwell)

	StoreDriver  string // Database driver (sqlite, postgres) (default: sqlite)
	DatabaseFile string // Path to SQLite database file (default: ./inkwell.db)
	DatabaseDSN  string // Postgres DSN, required when StoreDriver is postgres

	RedisAddr     string // Optional: Redis address for session storage; empty uses in-memory sessions
	RedisPassword string // Optional: Redis password
	RedisDB       int    // Optional: Redis database number

	PepperFile    string // Path to file containing pepper for password hashing (default: ./pepper)
	SecureCookies bool   // Mark cookies Secure; on by default outside dev

	SessionTimeout            time.Duration // Idle session lifetime (default: 30m)
	SessionRegenerateInterval time.Duration // Session ID rotation interval (default: 5m)
	SessionCheckIP            bool          // Terminate sessions on IP change (default: true)

	RememberTokenTTL time.Duration // Remember-me token lifetime (default: 30 days)

	FailureWindow time.Duration // Sliding window for counting login failures (default: 1h)
	IPThreshold   int           // Failures per IP before blocking (default: 5)
	LockThreshold int           // Failures per account before locking (default: 10)

	EventRetention time.Duration // How long security events are kept (default: 90 days)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	env := getEnvOrDefault("ENV", "dev")

	return Config{
		Issuer: getEnvOrDefault("AUTH_ISSUER", "Inkwell"),

		StoreDriver:  getEnvOrDefault("AUTH_STORE_DRIVER", "sqlite"),
		DatabaseFile: getEnvOrDefault("AUTH_DATABASE_FILE", "inkwell.db"),
		DatabaseDSN:  os.Getenv("AUTH_DATABASE_DSN"),

		RedisAddr:     os.Getenv("AUTH_REDIS_ADDR"),
		RedisPassword: os.Getenv("AUTH_REDIS_PASSWORD"),
		RedisDB:       getEnvIntOrDefault("AUTH_REDIS_DB", 0),

		PepperFile:    getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),
		SecureCookies: getEnvBoolOrDefault("AUTH_SECURE_COOKIES", env != "dev"),

		SessionTimeout:            getEnvDurationOrDefault("SESSION_TIMEOUT", 30*time.Minute),
		SessionRegenerateInterval: getEnvDurationOrDefault("SESSION_REGENERATE_INTERVAL", 5*time.Minute),
		SessionCheckIP:            getEnvBoolOrDefault("SESSION_CHECK_IP", true),

		RememberTokenTTL: getEnvDurationOrDefault("REMEMBER_TOKEN_TTL", 30*24*time.Hour),

		FailureWindow: getEnvDurationOrDefault("LOGIN_FAILURE_WINDOW", time.Hour),
		IPThreshold:   getEnvIntOrDefault("LOGIN_IP_THRESHOLD", 5),
		LockThreshold: getEnvIntOrDefault("LOGIN_LOCK_THRESHOLD", 10),

		EventRetention: getEnvDurationOrDefault("SECURITY_EVENT_RETENTION", 90*24*time.Hour),

		Env:                  env,
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
