package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Login    LoginConfig
	Admin    AdminConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port            string
	Env             string
	LogLevel        string
	AllowedOrigins  []string
	TrustedProxies  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	LoginRatePerMin int // per-IP requests per minute on the login route
	UsersRatePerMin int
	MetricsAddr     string // internal listener for /metrics; disabled when empty
}

type AuthConfig struct {
	TokenSecret           string
	TokenIssuer           string
	SessionTokenExpiry    time.Duration
	PasswordHashAlgorithm string
	BcryptCost            int
}

// LoginConfig controls failed-attempt throttling and response padding
type LoginConfig struct {
	AttemptLimit    int
	WindowDuration  time.Duration
	PlaceholderHash string // generated at startup when empty
	MaxTracked      int
	SweepInterval   time.Duration
	TimingBaseDelay time.Duration
	TimingJitter    time.Duration
	DelayOnSuccess  bool
	AttemptTimeout  time.Duration
}

// AdminConfig seeds an initial user when both fields are set
type AdminConfig struct {
	Email    string
	Name     string
	Password string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	tokenSecret := getEnv("TOKEN_SECRET", getEnv("JWT_SECRET", ""))
	if tokenSecret == "" {
		return nil, fmt.Errorf("TOKEN_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "gatekeeper"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Env:             env,
			LogLevel:        getEnv("LOG_LEVEL", "info"),
			AllowedOrigins:  parseAllowedOrigins(env),
			TrustedProxies:  splitList(getEnv("TRUSTED_PROXIES", "")),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
			LoginRatePerMin: getEnvAsInt("LOGIN_RATE_PER_MINUTE", 60),
			UsersRatePerMin: getEnvAsInt("USERS_RATE_PER_MINUTE", 300),
			MetricsAddr:     getEnv("METRICS_ADDR", ""),
		},
		Auth: AuthConfig{
			TokenSecret:           tokenSecret,
			TokenIssuer:           getEnv("TOKEN_ISSUER", "gatekeeper"),
			SessionTokenExpiry:    getEnvAsDuration("SESSION_TOKEN_EXPIRY", 24*time.Hour),
			PasswordHashAlgorithm: strings.ToLower(getEnv("PASSWORD_HASH_ALGORITHM", "bcrypt")),
			BcryptCost:            getEnvAsInt("BCRYPT_COST", 12),
		},
		Login: LoginConfig{
			AttemptLimit:    getEnvAsInt("LOGIN_ATTEMPT_LIMIT", 5),
			WindowDuration:  getEnvAsDuration("LOGIN_WINDOW_DURATION", 30*time.Minute),
			PlaceholderHash: getEnv("PLACEHOLDER_HASH", ""),
			MaxTracked:      getEnvAsInt("MAX_TRACKED_IDENTITIES", 100_000),
			SweepInterval:   getEnvAsDuration("SWEEP_INTERVAL", time.Minute),
			TimingBaseDelay: getEnvAsDuration("TIMING_DELAY_BASE", 250*time.Millisecond),
			TimingJitter:    getEnvAsDuration("TIMING_DELAY_JITTER", 50*time.Millisecond),
			DelayOnSuccess:  getEnvAsBool("TIMING_DELAY_ON_SUCCESS", false),
			AttemptTimeout:  getEnvAsDuration("LOGIN_ATTEMPT_TIMEOUT", 5*time.Second),
		},
		Admin: AdminConfig{
			Email:    getEnv("ADMIN_EMAIL", ""),
			Name:     getEnv("ADMIN_NAME", "Administrator"),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateTokenSecret(tokenSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.Login.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Auth.PasswordHashAlgorithm {
	case "bcrypt", "argon2id":
	default:
		return nil, fmt.Errorf("PASSWORD_HASH_ALGORITHM must be bcrypt or argon2id (got %q)", cfg.Auth.PasswordHashAlgorithm)
	}

	return cfg, nil
}

// Validate rejects limits that would disable throttling
func (c *LoginConfig) Validate() error {
	if c.AttemptLimit <= 0 {
		return fmt.Errorf("LOGIN_ATTEMPT_LIMIT must be positive (got %d)", c.AttemptLimit)
	}
	if c.WindowDuration <= 0 {
		return fmt.Errorf("LOGIN_WINDOW_DURATION must be positive (got %s)", c.WindowDuration)
	}
	if c.MaxTracked <= 0 {
		return fmt.Errorf("MAX_TRACKED_IDENTITIES must be positive (got %d)", c.MaxTracked)
	}
	if c.TimingBaseDelay < 0 || c.TimingJitter < 0 {
		return fmt.Errorf("timing delays cannot be negative")
	}
	return nil
}

// validateTokenSecret enforces minimum security standards for the token signing secret
func validateTokenSecret(secret, env string) error {
	// Minimum length based on environment
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // Production requires stronger secret (256 bits)
	}

	if len(secret) < minLength {
		return fmt.Errorf("TOKEN_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	// Check against common weak secrets
	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("TOKEN_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return splitList(getEnv("ALLOWED_ORIGINS", ""))
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
