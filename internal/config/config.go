package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/reviewdesk/draft-review-console/internal/domain"
)

// Config aggregates runtime configuration for the console.
type Config struct {
	App      AppConfig
	Backend  BackendConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// BackendConfig describes the review backend reached by the gateway.
type BackendConfig struct {
	BaseURL            string
	APIKey             string
	TimeoutSeconds     int
	DraftsPath         string
	ActionPath         string
	RegeneratePath     string
	ChatHistoryPath    string
	ChatSendPath       string
	ChatAutomationPath string
	RateLimitPerSecond float64
	RateBurst          int
}

// PostgresConfig holds the decision journal connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	EventsChannel string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines operator authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	Operators             []domain.Operator
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	operators, err := ParseOperators(os.Getenv("AUTH_OPERATORS"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_OPERATORS: %w", err)
	}

	rateLimit, err := strconv.ParseFloat(getEnv("BACKEND_RATE_LIMIT_PER_SECOND", "0"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid BACKEND_RATE_LIMIT_PER_SECOND: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "draft-review-console"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Backend: BackendConfig{
			BaseURL:            strings.TrimRight(getEnv("BACKEND_BASE_URL", "http://127.0.0.1:5678/webhook"), "/"),
			APIKey:             os.Getenv("BACKEND_API_KEY"),
			TimeoutSeconds:     getEnvAsInt("BACKEND_TIMEOUT_SECONDS", 30),
			DraftsPath:         getEnv("BACKEND_DRAFTS_PATH", "/drafts"),
			ActionPath:         getEnv("BACKEND_ACTION_PATH", "/drafts/action"),
			RegeneratePath:     getEnv("BACKEND_REGENERATE_PATH", "/drafts/regenerate"),
			ChatHistoryPath:    getEnv("BACKEND_CHAT_HISTORY_PATH", "/chat/history"),
			ChatSendPath:       getEnv("BACKEND_CHAT_SEND_PATH", "/chat/send"),
			ChatAutomationPath: getEnv("BACKEND_CHAT_AUTOMATION_PATH", "/chat/automation"),
			RateLimitPerSecond: rateLimit,
			RateBurst:          getEnvAsInt("BACKEND_RATE_BURST", 5),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 5)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 1)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:          os.Getenv("REDIS_ADDR"),
			Password:      os.Getenv("REDIS_PASSWORD"),
			DB:            redisDB,
			EventsChannel: getEnv("REDIS_EVENTS_CHANNEL", "draft-review:events"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 480),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			Operators:             operators,
		},
	}

	return cfg, nil
}

// ParseOperators decodes "user:bcrypt-hash:ROLE" entries separated by commas.
// The role is optional and defaults to REVIEWER.
func ParseOperators(raw string) ([]domain.Operator, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var operators []domain.Operator
	seen := map[string]struct{}{}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("malformed operator entry %q", entry)
		}
		role := domain.OperatorRoleReviewer
		if len(parts) == 3 {
			role = domain.OperatorRole(strings.ToUpper(parts[2]))
			if role != domain.OperatorRoleReviewer && role != domain.OperatorRoleViewer {
				return nil, fmt.Errorf("unknown role %q for operator %q", parts[2], parts[0])
			}
		}
		if _, dup := seen[parts[0]]; dup {
			return nil, fmt.Errorf("duplicate operator %q", parts[0])
		}
		seen[parts[0]] = struct{}{}
		operators = append(operators, domain.Operator{Username: parts[0], PasswordHash: parts[1], Role: role})
	}
	return operators, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the per-call transport timeout; zero means none.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(b.TimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
