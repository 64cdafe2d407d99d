package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Platforms PlatformsConfig
	Conflict  ConflictConfig
	Retry     RetryConfig
	Worker    WorkerConfig
	Dedup     DedupConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings. Redis backs the shared rate
// limit counters and the envelope deduplication store; with Enabled false
// both fall back to in-process state.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns the host:port address for the Redis client
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// PlatformConfig holds the per-platform integration settings
type PlatformConfig struct {
	// Secret is the webhook signing secret or pre-shared token
	Secret string
	// RatePerMinute caps webhook admissions per minute
	RatePerMinute int
	// RatePerHour caps webhook admissions per hour
	RatePerHour int
	// RateBurst extends both caps by a shared burst allowance
	RateBurst int
	// RetryAfter is the minimum wait suggested to a rate-limited sender;
	// zero suggests the computed window boundary
	RetryAfter time.Duration
	// RelaxedVerification admits unsigned payloads with a warning when no
	// secret is provisioned; development only
	RelaxedVerification bool
}

// PlatformsConfig holds the settings of every connected platform
type PlatformsConfig struct {
	Shopify PlatformConfig
	Ecwid   PlatformConfig
	Gumroad PlatformConfig
	// PreferredLocales orders the locales used to pick display names out of
	// translated fields
	PreferredLocales []string
}

// ConflictConfig holds conflict resolution settings
type ConflictConfig struct {
	// DefaultStrategy applies when a request names no strategy:
	// TIMESTAMP_WINS, PLATFORM_PRIORITY, MERGE_FIELDS, MANUAL_REVIEW
	DefaultStrategy string
	// PlatformPriority ranks platforms for PLATFORM_PRIORITY, highest first
	PlatformPriority []string
}

// RetryConfig holds retry scheduling settings
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	Multiplier float64
	MaxDelay   time.Duration
}

// WorkerConfig holds the async reconciliation pool settings
type WorkerConfig struct {
	PoolSize   int
	QueueDepth int
	// PersistTimeout bounds each repository call made while reconciling
	PersistTimeout time.Duration
}

// DedupConfig holds envelope deduplication settings
type DedupConfig struct {
	Enabled bool
	TTL     time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ServiceName       string
	Insecure          bool
	ExportInterval    time.Duration
}

// Load loads configuration from a TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with SYNCBRIDGE_ prefix (e.g. SYNCBRIDGE_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine, defaults and env vars cover it
	}

	v.SetEnvPrefix("SYNCBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Platforms: PlatformsConfig{
			Shopify:          platformSection(v, "platforms.shopify"),
			Ecwid:            platformSection(v, "platforms.ecwid"),
			Gumroad:          platformSection(v, "platforms.gumroad"),
			PreferredLocales: v.GetStringSlice("platforms.preferred_locales"),
		},
		Conflict: ConflictConfig{
			DefaultStrategy:  v.GetString("conflict.default_strategy"),
			PlatformPriority: v.GetStringSlice("conflict.platform_priority"),
		},
		Retry: RetryConfig{
			MaxRetries: v.GetInt("retry.max_retries"),
			BaseDelay:  v.GetDuration("retry.base_delay"),
			Multiplier: v.GetFloat64("retry.multiplier"),
			MaxDelay:   v.GetDuration("retry.max_delay"),
		},
		Worker: WorkerConfig{
			PoolSize:       v.GetInt("worker.pool_size"),
			QueueDepth:     v.GetInt("worker.queue_depth"),
			PersistTimeout: v.GetDuration("worker.persist_timeout"),
		},
		Dedup: DedupConfig{
			Enabled: v.GetBool("dedup.enabled"),
			TTL:     v.GetDuration("dedup.ttl"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func platformSection(v *viper.Viper, prefix string) PlatformConfig {
	return PlatformConfig{
		Secret:              v.GetString(prefix + ".secret"),
		RatePerMinute:       v.GetInt(prefix + ".rate_per_minute"),
		RatePerHour:         v.GetInt(prefix + ".rate_per_hour"),
		RateBurst:           v.GetInt(prefix + ".rate_burst"),
		RetryAfter:          v.GetDuration(prefix + ".retry_after"),
		RelaxedVerification: v.GetBool(prefix + ".relaxed_verification"),
	}
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "syncbridge"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "syncbridge"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // webhook payloads are small; 1MB is generous
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}

	applyPlatformDefaults(&cfg.Platforms.Shopify)
	applyPlatformDefaults(&cfg.Platforms.Ecwid)
	applyPlatformDefaults(&cfg.Platforms.Gumroad)
	if len(cfg.Platforms.PreferredLocales) == 0 {
		cfg.Platforms.PreferredLocales = []string{"en"}
	}

	if cfg.Conflict.DefaultStrategy == "" {
		cfg.Conflict.DefaultStrategy = "TIMESTAMP_WINS"
	}
	if len(cfg.Conflict.PlatformPriority) == 0 {
		cfg.Conflict.PlatformPriority = []string{"SHOPIFY", "ECWID", "GUMROAD"}
	}

	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 5
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = time.Second
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry.Multiplier = 2.0
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = 5 * time.Minute
	}

	if cfg.Worker.PoolSize == 0 {
		cfg.Worker.PoolSize = 8
	}
	if cfg.Worker.QueueDepth == 0 {
		cfg.Worker.QueueDepth = 1024
	}
	if cfg.Worker.PersistTimeout == 0 {
		cfg.Worker.PersistTimeout = 5 * time.Second
	}

	if cfg.Dedup.TTL == 0 {
		cfg.Dedup.TTL = 24 * time.Hour
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "syncbridge"
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 30 * time.Second
	}
}

func applyPlatformDefaults(p *PlatformConfig) {
	if p.RatePerMinute == 0 {
		p.RatePerMinute = 60
	}
	if p.RatePerHour == 0 {
		p.RatePerHour = 1000
	}
	if p.RateBurst == 0 {
		p.RateBurst = 10
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Conflict.DefaultStrategy {
	case "TIMESTAMP_WINS", "PLATFORM_PRIORITY", "MERGE_FIELDS", "MANUAL_REVIEW":
	default:
		return fmt.Errorf("conflict.default_strategy %q is not a known strategy", c.Conflict.DefaultStrategy)
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		// Unsigned webhook admission is a development convenience only.
		for name, p := range map[string]PlatformConfig{
			"shopify": c.Platforms.Shopify,
			"ecwid":   c.Platforms.Ecwid,
			"gumroad": c.Platforms.Gumroad,
		} {
			if p.RelaxedVerification {
				return fmt.Errorf("platforms.%s.relaxed_verification must be false in production", name)
			}
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
