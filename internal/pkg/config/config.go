package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	GelfMinLevel string `env:"GELF_MIN_LEVEL" envDefault:"information"`

	Deployment string `env:"DEPLOYMENT,required"`
	Instance   string `env:"INSTANCE"` // defaults to the host name

	ServerURL   string        `env:"HEKAD_SERVER_URL,required"`
	LogDir      string        `env:"HEKAD_LOG_DIR"`  // defaults to <tmp>/hekad-logs
	WorkDir     string        `env:"HEKAD_WORK_DIR"` // defaults to <tmp>/hekad-bin
	BundleDir   string        `env:"HEKAD_BUNDLE_DIR"`
	ProcessName string        `env:"HEKAD_PROCESS_NAME" envDefault:"hekad"`
	CAFile      string        `env:"HEKAD_CA_FILE"`
	CertFile    string        `env:"HEKAD_CERT_FILE"`
	KeyFile     string        `env:"HEKAD_KEY_FILE"`
	GracePeriod time.Duration `env:"HEKAD_GRACE_PERIOD" envDefault:"5s"`
	LogRetain   int           `env:"HEKAD_LOG_RETAIN_DAYS" envDefault:"31"`

	StatsdHost          string `env:"STATSD_HOST" envDefault:"localhost"`
	StatsdPort          int    `env:"STATSD_PORT" envDefault:"8125"`
	StatsdMaxPacketSize int    `env:"STATSD_MAX_PACKET_SIZE" envDefault:"512"`

	AdminServerAddr string `env:"ADMIN_SERVER_ADDR" envDefault:":9091"`
	AdminToken      string `env:"ADMIN_TOKEN"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisGelfList string `env:"REDIS_GELF_LIST" envDefault:"gelf"`
	RedisMaxLen   int64  `env:"REDIS_GELF_MAX_LEN" envDefault:"100000"`

	PostgresURL string `env:"POSTGRES_URL"`

	PIIRedactionFields string  `env:"PII_REDACTION_FIELDS" envDefault:"password,secret,token"`
	OutputLogRate      float64 `env:"OUTPUT_LOG_RATE" envDefault:"20"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.Instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("INSTANCE not set and host name unavailable: %w", err)
		}
		c.Instance = host
	}
	if c.WorkDir == "" {
		c.WorkDir = filepath.Join(os.TempDir(), "hekad-bin")
	}
	if c.LogDir == "" {
		c.LogDir = filepath.Join(os.TempDir(), "hekad-logs")
	}
	return nil
}

// RedactionFields returns the configured PII field names.
func (c *Config) RedactionFields() []string {
	var fields []string
	for _, f := range strings.Split(c.PIIRedactionFields, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}
