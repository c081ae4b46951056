package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

// Config holds runtime configuration for the API process.
type Config struct {
	Port    string `envconfig:"PORT" default:"8080"`
	GinMode string `envconfig:"GIN_MODE" default:"debug"`

	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBHost      string `envconfig:"DB_HOST" default:"localhost"`
	DBPort      string `envconfig:"DB_PORT" default:"5432"`
	DBUser      string `envconfig:"DB_USER" default:"postgres"`
	DBPassword  string `envconfig:"DB_PASSWORD" default:"postgres"`
	DBName      string `envconfig:"DB_NAME" default:"postgres"`
	DBSSLMode   string `envconfig:"DB_SSLMODE" default:"disable"`

	JWTSecret string `envconfig:"JWT_SECRET"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173,http://127.0.0.1:5173"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	// Embedded so the nested keys are not prefixed.
	DriveConfig
	AttachmentsConfig
}

// DriveConfig configures the remote attachment store.
type DriveConfig struct {
	RootFolderName     string `envconfig:"DRIVE_ROOT_FOLDER_NAME" default:"ExpenseControl"`
	RootFolderID       string `envconfig:"DRIVE_ROOT_FOLDER_ID"`
	RequestsFolderName string `envconfig:"DRIVE_REQUESTS_FOLDER_NAME" default:"requests"`
	SharedDriveID      string `envconfig:"DRIVE_SHARED_DRIVE_ID"`

	ServiceAccountJSON string `envconfig:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	ServiceAccountFile string `envconfig:"GOOGLE_SERVICE_ACCOUNT_FILE"`

	OAuthClientID     string `envconfig:"GOOGLE_OAUTH_CLIENT_ID"`
	OAuthClientSecret string `envconfig:"GOOGLE_OAUTH_CLIENT_SECRET"`
	OAuthRefreshToken string `envconfig:"GOOGLE_OAUTH_REFRESH_TOKEN"`
}

// AttachmentsConfig configures the local fallback store.
type AttachmentsConfig struct {
	LocalFallback bool   `envconfig:"ATTACHMENTS_LOCAL_FALLBACK" default:"true"`
	LocalRoot     string `envconfig:"ATTACHMENTS_LOCAL_ROOT" default:"./storage/attachments"`
}

// Load reads optional .env files and decodes the environment into a Config.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{"configs/.env", ".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err == nil {
			logrus.WithField("file", f).Debug("loaded env file")
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if cfg.IsRelease() && cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be provided in release mode")
	}
	return &cfg, nil
}

// IsRelease reports whether gin runs in release mode.
func (c *Config) IsRelease() bool {
	return c != nil && c.GinMode == "release"
}

// DSN returns the postgres connection string. DATABASE_URL wins over the
// discrete DB_* keys; a jdbc:postgresql:// URL is rewritten to postgres://.
func (c *Config) DSN() (string, error) {
	if raw := strings.TrimSpace(c.DatabaseURL); raw != "" {
		return NormalizeDatabaseURL(raw)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String(), nil
}

// NormalizeDatabaseURL accepts postgres://, postgresql:// and jdbc:postgresql://
// URLs. JDBC style user/password query parameters are moved into userinfo.
func NormalizeDatabaseURL(raw string) (string, error) {
	raw = strings.TrimPrefix(raw, "jdbc:")
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	switch u.Scheme {
	case "postgres", "postgresql":
	default:
		return "", fmt.Errorf("unsupported DATABASE_URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("DATABASE_URL has no host")
	}

	q := u.Query()
	user, password := q.Get("user"), q.Get("password")
	if user != "" && u.User == nil {
		if password != "" {
			u.User = url.UserPassword(user, password)
		} else {
			u.User = url.User(user)
		}
	}
	q.Del("user")
	q.Del("password")
	if q.Get("sslmode") == "" {
		q.Set("sslmode", "disable")
	}
	u.Scheme = "postgres"
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// NewLogger builds the root logrus logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if strings.EqualFold(c.LogFormat, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// devJWTSecret is only used outside release mode, where Load enforces JWT_SECRET.
const devJWTSecret = "default_super_secret_key"

// JWTKey returns the HMAC key tokens are verified with.
func (c *Config) JWTKey() []byte {
	if c.JWTSecret == "" {
		return []byte(devJWTSecret)
	}
	return []byte(c.JWTSecret)
}
