package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ekosmy/portfolio/internal/auth"
	"github.com/ekosmy/portfolio/internal/quizapi"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Log struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // text|json
	Output string `yaml:"output"` // console|file|both
	File   string `yaml:"file"`
}

type Config struct {
	Mode      Mode   `yaml:"mode"`
	HTTPAddr  string `yaml:"http_addr"`
	PublicURL string `yaml:"public_url"`

	AuthAPIURL  string        `yaml:"auth_api_url"`
	QuizAPIURL  string        `yaml:"quiz_api_url"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	DBDriver    string `yaml:"db_driver"` // sqlite|postgres
	DBDSN       string `yaml:"db_dsn"`
	Profile     string `yaml:"profile"`
	TokenSecret string `yaml:"token_secret"` // seals stored tokens when set

	CacheDriver   string        `yaml:"cache_driver"` // memory|redis|none
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`

	// finished gateway sessions are dropped after this long
	SessionSweep time.Duration `yaml:"session_sweep"`
	EnableAdmin  bool          `yaml:"enable_admin"`

	CORSOriginsOnline  []string `yaml:"cors_origins_online"`
	CORSOriginsOffline []string `yaml:"cors_origins_offline"`

	Log Log `yaml:"log"`
}

func Defaults() Config {
	return Config{
		Mode:               ModeOffline,
		HTTPAddr:           ":8080",
		AuthAPIURL:         auth.DefaultBaseURL,
		QuizAPIURL:         quizapi.DefaultBaseURL,
		HTTPTimeout:        15 * time.Second,
		DBDriver:           "sqlite",
		Profile:            "default",
		CacheDriver:        "memory",
		CacheTTL:           60 * time.Second,
		RedisAddr:          "localhost:6379",
		SessionSweep:       30 * time.Minute,
		EnableAdmin:        true,
		CORSOriginsOnline:  []string{"https://ekos.my.id"},
		CORSOriginsOffline: []string{"http://localhost:3000", "http://localhost:3010"},
		Log:                Log{Level: "info", Format: "text", Output: "console", File: "logs/portfolio.log"},
	}
}

// FromEnv is Defaults overridden by the environment.
func FromEnv() Config {
	c := Defaults()
	applyEnv(&c)
	return c
}

// Load reads .env (when present), then the YAML file at path (when path is
// not empty), then environment overrides, and validates the result.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: .env: %w", err)
	}
	c := Defaults()
	if path == "" {
		path = os.Getenv("QUIZ_CONFIG")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	applyEnv(&c)
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func applyEnv(c *Config) {
	c.Mode = Mode(envOr("MODE", string(c.Mode)))
	c.HTTPAddr = envOr("HTTP_ADDR", c.HTTPAddr)
	c.PublicURL = envOr("PUBLIC_URL", c.PublicURL)
	c.AuthAPIURL = envOr("AUTH_API_URL", c.AuthAPIURL)
	c.QuizAPIURL = envOr("QUIZ_API_URL", c.QuizAPIURL)
	c.HTTPTimeout = envDuration("HTTP_TIMEOUT", c.HTTPTimeout)
	c.DBDriver = envOr("DB_DRIVER", c.DBDriver)
	c.DBDSN = envOr("DB_DSN", c.DBDSN)
	c.Profile = envOr("PROFILE", c.Profile)
	c.TokenSecret = envOr("TOKEN_SECRET", c.TokenSecret)
	c.CacheDriver = envOr("CACHE_DRIVER", c.CacheDriver)
	c.CacheTTL = envDuration("CACHE_TTL", c.CacheTTL)
	c.RedisAddr = envOr("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = envOr("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = envInt("REDIS_DB", c.RedisDB)
	c.SessionSweep = envDuration("SESSION_SWEEP", c.SessionSweep)
	c.EnableAdmin = envBool("ENABLE_ADMIN", c.EnableAdmin)
	c.CORSOriginsOnline = csvOr("CORS_ORIGINS_ONLINE", c.CORSOriginsOnline)
	c.CORSOriginsOffline = csvOr("CORS_ORIGINS_OFFLINE", c.CORSOriginsOffline)
	c.Log.Level = envOr("LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOr("LOG_FORMAT", c.Log.Format)
	c.Log.Output = envOr("LOG_OUTPUT", c.Log.Output)
	c.Log.File = envOr("LOG_FILE", c.Log.File)
}

// CORSOrigins picks the allow list for the current mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func (c Config) Validate() error {
	var errs []error
	switch c.Mode {
	case ModeOffline, ModeOnline:
	default:
		errs = append(errs, fmt.Errorf("MODE must be offline or online, got %q", c.Mode))
	}
	for name, v := range map[string]string{"AUTH_API_URL": c.AuthAPIURL, "QUIZ_API_URL": c.QuizAPIURL} {
		u, err := url.Parse(v)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL, got %q", name, v))
		}
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("HTTP_TIMEOUT must be positive"))
	}
	if c.SessionSweep < 0 {
		errs = append(errs, errors.New("SESSION_SWEEP must not be negative; 0 turns sweeping off"))
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver))
	}
	switch c.CacheDriver {
	case "memory", "none":
	case "redis":
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis cache"))
		}
	default:
		errs = append(errs, fmt.Errorf("CACHE_DRIVER must be memory, redis or none, got %q", c.CacheDriver))
	}
	if c.Profile == "" {
		errs = append(errs, errors.New("PROFILE must not be empty"))
	}
	return errors.Join(errs...)
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func envInt(k string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return def
}

func envDuration(k string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return d
	}
	return def
}

func csvOr(k string, def []string) []string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
