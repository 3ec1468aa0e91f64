package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	pstrings "regform/pkg/platform/strings"
)

// EnvPrefix namespaces every environment variable, e.g. REGFORM_ADDR.
const EnvPrefix = "REGFORM"

// Store backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config is the full server configuration.
type Config struct {
	Server  Server  `mapstructure:"server"`
	Log     Log     `mapstructure:"log"`
	Store   Store   `mapstructure:"store"`
	Form    Form    `mapstructure:"form"`
	Kafka   Kafka   `mapstructure:"kafka"`
	Tracing Tracing `mapstructure:"tracing"`
	Limits  Limits  `mapstructure:"limits"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `mapstructure:"addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Store selects and configures the registration record backend.
type Store struct {
	Backend       string `mapstructure:"backend"`
	Key           string `mapstructure:"key"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	RedisURL      string `mapstructure:"redis_url"`
	RedisPoolSize int    `mapstructure:"redis_pool_size"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
}

// Form holds behaviour knobs of a form session.
type Form struct {
	ResetDelay    time.Duration `mapstructure:"reset_delay"`
	MaxUploadMB   float64       `mapstructure:"max_upload_mb"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	SealPasswords bool          `mapstructure:"seal_passwords"`
	BcryptCost    int           `mapstructure:"bcrypt_cost"`
}

// Kafka configures the audit topic. No brokers means audit stays in memory.
type Kafka struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type Tracing struct {
	Exporter     string  `mapstructure:"exporter"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

// Limits caps how many forms one client address may open per window.
// A zero FormsPerWindow disables the limit.
type Limits struct {
	FormsPerWindow int           `mapstructure:"forms_per_window"`
	Window         time.Duration `mapstructure:"window"`
}

// envKeys maps config keys to the environment variable suffix after EnvPrefix.
var envKeys = map[string]string{
	"server.addr":             "ADDR",
	"server.request_timeout":  "REQUEST_TIMEOUT",
	"server.shutdown_timeout": "SHUTDOWN_TIMEOUT",
	"log.level":               "LOG_LEVEL",
	"log.format":              "LOG_FORMAT",
	"store.backend":           "STORE",
	"store.key":               "STORE_KEY",
	"store.sqlite_path":       "SQLITE_PATH",
	"store.redis_url":         "REDIS_URL",
	"store.redis_pool_size":   "REDIS_POOL_SIZE",
	"store.postgres_dsn":      "POSTGRES_DSN",
	"form.reset_delay":        "RESET_DELAY",
	"form.max_upload_mb":      "MAX_UPLOAD_MB",
	"form.session_ttl":        "SESSION_TTL",
	"form.seal_passwords":     "SEAL_PASSWORDS",
	"form.bcrypt_cost":        "BCRYPT_COST",
	"kafka.brokers":           "KAFKA_BROKERS",
	"kafka.topic":             "KAFKA_TOPIC",
	"tracing.exporter":        "TRACING_EXPORTER",
	"tracing.otlp_endpoint":   "OTLP_ENDPOINT",
	"tracing.sample_rate":     "TRACING_SAMPLE_RATE",
	"limits.forms_per_window": "RATE_LIMIT_FORMS",
	"limits.window":           "RATE_LIMIT_WINDOW",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("store.backend", StoreMemory)
	v.SetDefault("store.key", "registrations")
	v.SetDefault("store.sqlite_path", "regform.db")
	v.SetDefault("store.redis_pool_size", 10)

	v.SetDefault("form.reset_delay", "2s")
	v.SetDefault("form.max_upload_mb", 5.0)
	v.SetDefault("form.session_ttl", "30m")
	v.SetDefault("form.seal_passwords", false)
	v.SetDefault("form.bcrypt_cost", 10)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "regform.audit")

	v.SetDefault("tracing.exporter", "none")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")
	v.SetDefault("tracing.sample_rate", 1.0)

	v.SetDefault("limits.forms_per_window", 30)
	v.SetDefault("limits.window", "1m")
}

// FromEnv builds the config from REGFORM_* environment variables and defaults.
func FromEnv() (*Config, error) {
	return Load("")
}

// Load reads an optional YAML config file, then lets the environment override it.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envKeys {
		if err := v.BindEnv(key, EnvPrefix+"_"+env); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Kafka.Brokers = pstrings.SplitList(strings.Join(cfg.Kafka.Brokers, ","))
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Backend {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite store requires REGFORM_SQLITE_PATH"))
		}
	case StoreRedis:
		if c.Store.RedisURL == "" {
			errs = append(errs, errors.New("redis store requires REGFORM_REDIS_URL"))
		}
	case StorePostgres:
		if c.Store.PostgresDSN == "" {
			errs = append(errs, errors.New("postgres store requires REGFORM_POSTGRES_DSN"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	if c.Store.Key == "" {
		errs = append(errs, errors.New("store key must not be empty"))
	}
	if c.Form.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("max upload size must be positive, got %g", c.Form.MaxUploadMB))
	}
	if c.Form.ResetDelay < 0 {
		errs = append(errs, fmt.Errorf("reset delay must not be negative, got %s", c.Form.ResetDelay))
	}
	if c.Form.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("session ttl must be positive, got %s", c.Form.SessionTTL))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if c.Limits.FormsPerWindow < 0 {
		errs = append(errs, fmt.Errorf("forms per window must not be negative, got %d", c.Limits.FormsPerWindow))
	}
	if c.Limits.FormsPerWindow > 0 && c.Limits.Window <= 0 {
		errs = append(errs, fmt.Errorf("rate limit window must be positive, got %s", c.Limits.Window))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka topic must be set when brokers are configured"))
	}
	return errors.Join(errs...)
}
