package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	NewChatDuplicate = "duplicate"
	NewChatReuse     = "reuse"

	CommitEager    = "eager"
	CommitDeferred = "deferred"
)

// stagingJWTSecret signs tokens when JWT_SECRET_KEY is unset outside production.
const stagingJWTSecret = "diabot-staging-secret"

// Config holds every environment backed setting of the server.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"staging"`
	Port   string `env:"PORT" envDefault:"5000"`

	JWTSecret     string        `env:"JWT_SECRET_KEY"`
	TokenLifetime time.Duration `env:"JWT_TOKEN_LIFETIME" envDefault:"24h"`

	DBDriver string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"DB_DSN" envDefault:"app.db"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	AllowOrigins []string `env:"CORS_ALLOW_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000,http://localhost:5173,http://127.0.0.1:5173"`

	// query responder. The default "local" provider answers offline; set
	// RESPONDER_PROVIDER=gemini together with IS_GEMINI_ENABLED=true and
	// GEMINI_API_KEY for real replies.
	ResponderProvider       string `env:"RESPONDER_PROVIDER" envDefault:"local"`
	ResponderTimeoutSeconds int    `env:"RESPONDER_TIMEOUT_SECONDS" envDefault:"75"`
	IsGeminiEnabled         bool   `env:"IS_GEMINI_ENABLED" envDefault:"false"`
	GeminiAPIKey            string `env:"GEMINI_API_KEY"`
	GeminiModel             string `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	OpenAIAPIKey            string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL           string `env:"OPENAI_BASE_URL"`
	OpenAIModel             string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	SystemPrompt            string `env:"SYSTEM_PROMPT" envDefault:"You are a friendly diabetes care assistant. Answer clearly and concisely, and recommend consulting a clinician for medical decisions."`

	// reconciler policies
	NewChatPolicy string `env:"NEW_CHAT_POLICY" envDefault:"duplicate"`
	CommitMode    string `env:"COMMIT_MODE" envDefault:"eager"`

	// session store
	SessionTTLSeconds int `env:"SESSION_TTL_SECONDS" envDefault:"3600"`
	SessionMaxTurns   int `env:"SESSION_MAX_TURNS" envDefault:"20"`
	SessionMaxItems   int `env:"SESSION_MAX_ITEMS" envDefault:"500"`

	// runtime tunables
	RateLimitWindowSeconds int `env:"RATE_LIMIT_WINDOW_SECONDS" envDefault:"10"`
	RateLimitCapacity      int `env:"RATE_LIMIT_CAPACITY" envDefault:"5"`
	UserConcurrencyLimit   int `env:"USER_CONCURRENCY_LIMIT" envDefault:"2"`
	DuplicateWindowSeconds int `env:"DUPLICATE_WINDOW_SECONDS" envDefault:"0"`
}

func (c *Config) IsProduction() bool { return c.AppEnv == "production" }
func (c *Config) IsStaging() bool    { return c.AppEnv == "staging" }

// ResponderTimeout is zero when no timeout beyond the transport applies.
func (c *Config) ResponderTimeout() time.Duration {
	if c.ResponderTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.ResponderTimeoutSeconds) * time.Second
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

// loadAppEnv loads .env unless APP_ENV is production. A missing file is fine.
func loadAppEnv() {
	if os.Getenv("APP_ENV") == "production" {
		return
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("[config] could not load .env")
	}
}

// Load reads .env (outside production) and parses the environment.
func Load() (*Config, error) {
	loadAppEnv()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = stagingJWTSecret
		log.Warn().Msg("[config] JWT_SECRET_KEY not set, using the staging secret")
	}

	log.Info().
		Str("app_env", cfg.AppEnv).
		Str("db_driver", cfg.DBDriver).
		Str("responder", cfg.ResponderProvider).
		Bool("gemini_enabled", cfg.IsGeminiEnabled).
		Bool("gemini_key_present", cfg.GeminiAPIKey != "").
		Str("new_chat_policy", cfg.NewChatPolicy).
		Str("commit_mode", cfg.CommitMode).
		Msg("[config] loaded")
	log.Info().
		Int("window_s", cfg.RateLimitWindowSeconds).
		Int("capacity", cfg.RateLimitCapacity).
		Int("user_conc", cfg.UserConcurrencyLimit).
		Int("dup_window_s", cfg.DuplicateWindowSeconds).
		Int("session_ttl_s", cfg.SessionTTLSeconds).
		Int("session_max_turns", cfg.SessionMaxTurns).
		Msg("[config] tunables")
	return cfg, nil
}

// Validate checks enum values and production requirements.
func (c *Config) Validate() error {
	if !slices.Contains([]string{"staging", "production"}, c.AppEnv) {
		return errors.New("environment variable APP_ENV must be 'staging' or 'production'")
	}
	if c.IsProduction() && c.JWTSecret == "" {
		return errors.New("JWT_SECRET_KEY must be set in production")
	}
	if !slices.Contains([]string{"sqlite", "mysql", "postgres"}, c.DBDriver) {
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if !slices.Contains([]string{ProviderGemini, ProviderOpenAI, ProviderLocal}, c.ResponderProvider) {
		return fmt.Errorf("unsupported RESPONDER_PROVIDER %q", c.ResponderProvider)
	}
	if !slices.Contains([]string{NewChatDuplicate, NewChatReuse}, c.NewChatPolicy) {
		return fmt.Errorf("unsupported NEW_CHAT_POLICY %q", c.NewChatPolicy)
	}
	if !slices.Contains([]string{CommitEager, CommitDeferred}, c.CommitMode) {
		return fmt.Errorf("unsupported COMMIT_MODE %q", c.CommitMode)
	}
	return nil
}
