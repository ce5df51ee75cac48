// Package config loads server settings from defaults, an optional config
// file and the environment, in increasing precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const MinSecretLength = 32

type Config struct {
	Host        string `mapstructure:"API_HOST"`
	Port        int    `mapstructure:"API_PORT"`
	DBDriver    string `mapstructure:"DB_DRIVER"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	SecretKey   string `mapstructure:"SECRET_KEY"`
	AppEnv      string `mapstructure:"APP_ENV"`

	AdminMasterPassword    string `mapstructure:"ADMIN_MASTER_PASSWORD"`
	AdminMasterPasswordDev string `mapstructure:"ADMIN_MASTER_PASSWORD_DEV"`
	AdminSessionMaxAge     int    `mapstructure:"ADMIN_SESSION_MAX_AGE"`
	AdminSessionCookieName string `mapstructure:"ADMIN_SESSION_COOKIE_NAME"`

	SessionCookieName   string        `mapstructure:"SESSION_COOKIE_NAME"`
	SessionTTL          time.Duration `mapstructure:"SESSION_TTL"`
	SessionCookieSecure bool          `mapstructure:"SESSION_COOKIE_SECURE"`
	RedisURL            string        `mapstructure:"REDIS_URL"`
	CleanupInterval     time.Duration `mapstructure:"CLEANUP_INTERVAL"`

	ChessComBaseURL string        `mapstructure:"CHESSCOM_BASE_URL"`
	ChessComTimeout time.Duration `mapstructure:"CHESSCOM_TIMEOUT"`

	CORSOrigins string `mapstructure:"CORS_ORIGINS"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogFormat   string `mapstructure:"LOG_FORMAT"`
	Dev         bool   `mapstructure:"DEV"`
}

var defaults = map[string]any{
	"API_HOST":                  "localhost",
	"API_PORT":                  8000,
	"DB_DRIVER":                 "sqlite3",
	"DATABASE_URL":              "chessaroo.db",
	"SECRET_KEY":                "",
	"APP_ENV":                   "production",
	"ADMIN_MASTER_PASSWORD":     "",
	"ADMIN_MASTER_PASSWORD_DEV": "",
	"ADMIN_SESSION_MAX_AGE":     3600,
	"ADMIN_SESSION_COOKIE_NAME": "chessaroo_admin_session",
	"SESSION_COOKIE_NAME":       "chessaroo_session",
	"SESSION_TTL":               "168h",
	"SESSION_COOKIE_SECURE":     false,
	"REDIS_URL":                 "",
	"CLEANUP_INTERVAL":          "1h",
	"CHESSCOM_BASE_URL":         "https://www.chess.com",
	"CHESSCOM_TIMEOUT":          "10s",
	"CORS_ORIGINS":              "http://localhost:3000",
	"LOG_LEVEL":                 "info",
	"LOG_FORMAT":                "json",
	"DEV":                       false,
}

// Setup reads cfgPath when given, then applies environment overrides
func Setup(cfgPath string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite3 or postgres, got %q", c.DBDriver)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("API_PORT out of range: %d", c.Port)
	}
	if c.SecretKey != "" && len(c.SecretKey) < MinSecretLength {
		return fmt.Errorf("SECRET_KEY must be at least %d bytes", MinSecretLength)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.ChessComTimeout <= 0 {
		return fmt.Errorf("CHESSCOM_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AdminPassword picks the master password for the running environment
func (c *Config) AdminPassword() string {
	switch strings.ToLower(strings.TrimSpace(c.AppEnv)) {
	case "production", "prod":
		return c.AdminMasterPassword
	default:
		return c.AdminMasterPasswordDev
	}
}

func (c *Config) AdminSessionTTL() time.Duration {
	return time.Duration(c.AdminSessionMaxAge) * time.Second
}

// Origins splits CORS_ORIGINS, dropping blanks
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
