package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Chat     ChatConfig
	Triage   TriageConfig
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

// PostgresConfig holds DB connection values. An empty DSN selects the
// in-memory store instead of postgres.
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
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines service-token parameters for the REST API.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// ChatConfig configures the chat-platform client.
type ChatConfig struct {
	BaseURL               string
	BotToken              string
	RequestTimeoutSeconds int
	RateLimitPerSecond    float64
	RateBurst             int
	PermalinkTTLSeconds   int
}

// TriageConfig drives the ticket/escalation lifecycle engine.
type TriageConfig struct {
	ChannelID          string
	TriggerEmoji       string
	ResolvedEmoji      string
	AckEmoji           string
	AssignmentEnabled  bool
	StaleAfterHours    int
	SweepIntervalHours int
	StaleAppendsStatus bool
	PermalinkFailFast  bool
	WorkerCount        int
	Timezone           string
	Teams              []string
	Impacts            []string
	Tags               []string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	rateLimit, err := strconv.ParseFloat(getEnv("CHAT_RATE_LIMIT_PER_SECOND", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid CHAT_RATE_LIMIT_PER_SECOND: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "triage-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Chat: ChatConfig{
			BaseURL:               getEnv("CHAT_BASE_URL", "https://slack.com/api"),
			BotToken:              os.Getenv("CHAT_BOT_TOKEN"),
			RequestTimeoutSeconds: getEnvAsInt("CHAT_REQUEST_TIMEOUT_SECONDS", 10),
			RateLimitPerSecond:    rateLimit,
			RateBurst:             getEnvAsInt("CHAT_RATE_BURST", 5),
			PermalinkTTLSeconds:   getEnvAsInt("CHAT_PERMALINK_TTL_SECONDS", 86400),
		},
		Triage: TriageConfig{
			ChannelID:          getEnv("TRIAGE_CHANNEL_ID", ""),
			TriggerEmoji:       getEnv("TRIAGE_TRIGGER_EMOJI", "ticket"),
			ResolvedEmoji:      getEnv("TRIAGE_RESOLVED_EMOJI", "white_check_mark"),
			AckEmoji:           getEnv("TRIAGE_ACK_EMOJI", "eyes"),
			AssignmentEnabled:  getEnvAsBool("TRIAGE_ASSIGNMENT_ENABLED", true),
			StaleAfterHours:    getEnvAsInt("TRIAGE_STALE_AFTER_HOURS", 72),
			SweepIntervalHours: getEnvAsInt("TRIAGE_SWEEP_INTERVAL_HOURS", 24),
			StaleAppendsStatus: getEnvAsBool("TRIAGE_STALE_APPENDS_STATUS", false),
			PermalinkFailFast:  getEnvAsBool("TRIAGE_PERMALINK_FAIL_FAST", false),
			WorkerCount:        getEnvAsInt("TRIAGE_WORKER_COUNT", 4),
			Timezone:           getEnv("TRIAGE_TIMEZONE", "UTC"),
			Teams:              getEnvAsList("TRIAGE_TEAMS", "platform,frontend,backend"),
			Impacts:            getEnvAsList("TRIAGE_IMPACTS", "low,medium,high,critical"),
			Tags:               getEnvAsList("TRIAGE_TAGS", "bug,question,incident,request"),
		},
	}

	return cfg, nil
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

// StaleThreshold returns the cutoff age for the staleness sweep.
func (t TriageConfig) StaleThreshold() time.Duration {
	return time.Duration(t.StaleAfterHours) * time.Hour
}

// SweepInterval returns the cadence of the staleness sweep.
func (t TriageConfig) SweepInterval() time.Duration {
	return time.Duration(t.SweepIntervalHours) * time.Hour
}

// Location resolves the configured timezone, falling back to UTC.
func (t TriageConfig) Location() *time.Location {
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RequestTimeout returns the per-call timeout for chat API invocations.
func (c ChatConfig) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// PermalinkTTL returns the cache lifetime for permalinks.
func (c ChatConfig) PermalinkTTL() time.Duration {
	return time.Duration(c.PermalinkTTLSeconds) * time.Second
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

func getEnvAsList(key, fallback string) []string {
	val := getEnv(key, fallback)
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
