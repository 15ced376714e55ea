package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override values from the config file.
const (
	EnvConfigPath     = "AICONSOLE_CONFIG"
	EnvSessionSecret  = "AICONSOLE_SESSION_SECRET"
	EnvSessionStore   = "AICONSOLE_SESSION_STORE"
	EnvDBType         = "AICONSOLE_DB_TYPE"
	EnvDBPath         = "AICONSOLE_DB_PATH"
	EnvMySQLHost      = "AICONSOLE_MYSQL_HOST"
	EnvMySQLUser      = "AICONSOLE_MYSQL_USER"
	EnvMySQLPassword  = "AICONSOLE_MYSQL_PASSWORD"
	EnvMySQLDatabase  = "AICONSOLE_MYSQL_DATABASE"
	EnvRedisAddr      = "AICONSOLE_REDIS_ADDR"
	EnvRedisPassword  = "AICONSOLE_REDIS_PASSWORD"
	EnvLogLevel       = "AICONSOLE_LOG_LEVEL"
	EnvAdminPassword  = "AICONSOLE_ADMIN_PASSWORD"
	DefaultConfigPath = "configs/config.yaml"
)

// Session store backends.
const (
	SessionStoreMemory   = "memory"
	SessionStoreDatabase = "database"
	SessionStoreRedis    = "redis"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Session     SessionConfig     `yaml:"session"`
	Redis       RedisConfig       `yaml:"redis"`
	Security    SecurityConfig    `yaml:"security"`
	Audit       AuditConfig       `yaml:"audit"`
	Logging     LoggingConfig     `yaml:"logging"`
	DefaultUser DefaultUserConfig `yaml:"default_user"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	Mode           string   `yaml:"mode"`
	APIPrefix      string   `yaml:"api_prefix"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Type   string       `yaml:"type"`
	SQLite SQLiteConfig `yaml:"sqlite"`
	MySQL  MySQLConfig  `yaml:"mysql"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Charset  string `yaml:"charset"`
}

// SessionConfig controls how login sessions are issued and stored.
type SessionConfig struct {
	Store        string `yaml:"store"`
	Secret       string `yaml:"secret"`
	TTL          string `yaml:"ttl"`
	Issuer       string `yaml:"issuer"`
	CookieName   string `yaml:"cookie_name"`
	CookieSecure bool   `yaml:"cookie_secure"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type SecurityConfig struct {
	BcryptCost int `yaml:"bcrypt_cost"`
}

// AuditConfig bounds audit writes and log queries.
type AuditConfig struct {
	Timeout        string `yaml:"timeout"`
	DefaultPerPage int    `yaml:"default_per_page"`
	MaxPerPage     int    `yaml:"max_per_page"`
	MaxStatsDays   int    `yaml:"max_stats_days"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type DefaultUserConfig struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

const (
	defaultSessionTTL   = 7 * 24 * time.Hour
	defaultAuditTimeout = 2 * time.Second
)

// Load reads the configuration file and environment variables
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(&cfg)
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Ensure data directory exists for SQLite
	if cfg.Database.Type == "sqlite" {
		dataDir := filepath.Dir(cfg.Database.SQLite.Path)
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	return &cfg, nil
}

// ResolvePath picks the config path from the flag value, then the
// environment, then the default.
func ResolvePath(flagValue string) string {
	if p := strings.TrimSpace(flagValue); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p
	}
	return DefaultConfigPath
}

func applyEnv(cfg *Config) {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	override(&cfg.Session.Secret, EnvSessionSecret)
	override(&cfg.Session.Store, EnvSessionStore)
	override(&cfg.Database.Type, EnvDBType)
	override(&cfg.Database.SQLite.Path, EnvDBPath)
	override(&cfg.Database.MySQL.Host, EnvMySQLHost)
	override(&cfg.Database.MySQL.Username, EnvMySQLUser)
	override(&cfg.Database.MySQL.Password, EnvMySQLPassword)
	override(&cfg.Database.MySQL.Database, EnvMySQLDatabase)
	override(&cfg.Redis.Addr, EnvRedisAddr)
	override(&cfg.Redis.Password, EnvRedisPassword)
	override(&cfg.Logging.Level, EnvLogLevel)
	override(&cfg.DefaultUser.Password, EnvAdminPassword)
}

// ApplyDefaults fills every omitted setting. It is exported so tests can
// build a Config literal and still get sane values.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 5001
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}
	if c.Server.APIPrefix == "" {
		c.Server.APIPrefix = "/api"
	}

	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.SQLite.Path == "" {
		c.Database.SQLite.Path = "data/aiconsole.db"
	}
	if c.Database.MySQL.Port == 0 {
		c.Database.MySQL.Port = 3306
	}
	if c.Database.MySQL.Charset == "" {
		c.Database.MySQL.Charset = "utf8mb4"
	}

	if c.Session.Store == "" {
		c.Session.Store = SessionStoreMemory
	}
	if c.Session.TTL == "" {
		c.Session.TTL = defaultSessionTTL.String()
	}
	if c.Session.Issuer == "" {
		c.Session.Issuer = "aiconsole"
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "aiconsole_session"
	}

	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "aiconsole:session:"
	}

	if c.Security.BcryptCost == 0 {
		c.Security.BcryptCost = 12
	}

	if c.Audit.Timeout == "" {
		c.Audit.Timeout = defaultAuditTimeout.String()
	}
	if c.Audit.DefaultPerPage <= 0 {
		c.Audit.DefaultPerPage = 50
	}
	if c.Audit.MaxPerPage <= 0 {
		c.Audit.MaxPerPage = 100
	}
	if c.Audit.DefaultPerPage > c.Audit.MaxPerPage {
		c.Audit.DefaultPerPage = c.Audit.MaxPerPage
	}
	if c.Audit.MaxStatsDays <= 0 {
		c.Audit.MaxStatsDays = 365
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate rejects configurations that cannot start a server.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite":
	case "mysql":
		if c.Database.MySQL.Username == "" {
			return fmt.Errorf("MySQL username is required")
		}
		if c.Database.MySQL.Database == "" {
			return fmt.Errorf("MySQL database name is required")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	switch c.Session.Store {
	case SessionStoreMemory, SessionStoreDatabase:
	case SessionStoreRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required for the redis session store")
		}
	default:
		return fmt.Errorf("unsupported session store: %s", c.Session.Store)
	}

	if c.Session.Secret == "" {
		return fmt.Errorf("session secret is required (set session.secret or %s)", EnvSessionSecret)
	}
	return nil
}

// SessionTTL parses the session lifetime, falling back to the default on
// malformed or non-positive values.
func (c *Config) SessionTTL() time.Duration {
	return parseDuration(c.Session.TTL, defaultSessionTTL)
}

// AuditTimeout parses the audit write bound.
func (c *Config) AuditTimeout() time.Duration {
	return parseDuration(c.Audit.Timeout, defaultAuditTimeout)
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
