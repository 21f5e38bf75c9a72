package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
// Values are resolved from Default, then the optional config file, then .env, then the environment.
type Config struct {
	RootDir      string `env:"DEVRELAY_ROOT_DIR" yaml:"root_dir" toml:"root_dir"`
	Addr         string `env:"DEVRELAY_ADDR" yaml:"addr" toml:"addr"`
	AdminAddr    string `env:"DEVRELAY_ADMIN_ADDR" yaml:"admin_addr" toml:"admin_addr"` // empty disables the admin server
	InstanceID   string `env:"DEVRELAY_INSTANCE_ID" yaml:"instance_id" toml:"instance_id"`
	LogLevel     string `env:"LOG_LEVEL" yaml:"log_level" toml:"log_level"`
	LogFile      string `env:"DEVRELAY_LOG_FILE" yaml:"log_file" toml:"log_file"`
	CaptureLevel string `env:"DEVRELAY_CAPTURE_LEVEL" yaml:"capture_level" toml:"capture_level"`

	StreamBuffer       int    `env:"DEVRELAY_STREAM_BUFFER" yaml:"stream_buffer" toml:"stream_buffer"`
	StreamToken        string `env:"DEVRELAY_STREAM_TOKEN" yaml:"stream_token" toml:"stream_token"`
	PIIRedactionFields string `env:"PII_REDACTION_FIELDS" yaml:"pii_redaction_fields" toml:"pii_redaction_fields"`

	JournalDir     string `env:"DEVRELAY_JOURNAL_DIR" yaml:"journal_dir" toml:"journal_dir"` // empty disables the journal
	WALSegmentSize int64  `env:"WAL_SEGMENT_SIZE_BYTES" yaml:"wal_segment_size_bytes" toml:"wal_segment_size_bytes"`
	WALMaxDiskSize int64  `env:"WAL_MAX_DISK_SIZE_BYTES" yaml:"wal_max_disk_size_bytes" toml:"wal_max_disk_size_bytes"`

	RedisAddr    string `env:"REDIS_ADDR" yaml:"redis_addr" toml:"redis_addr"` // empty disables remote fan-out
	RedisStream  string `env:"DEVRELAY_REDIS_STREAM" yaml:"redis_stream" toml:"redis_stream"`
	RedisMaxLen  int64  `env:"DEVRELAY_REDIS_MAXLEN" yaml:"redis_maxlen" toml:"redis_maxlen"`
	FollowRemote bool   `env:"DEVRELAY_FOLLOW_REMOTE" yaml:"follow_remote" toml:"follow_remote"`
	PostgresURL  string `env:"POSTGRES_URL" yaml:"postgres_url" toml:"postgres_url"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Addr:               ":3000",
		AdminAddr:          "127.0.0.1:9090",
		LogLevel:           "info",
		CaptureLevel:       "debug",
		StreamBuffer:       256,
		PIIRedactionFields: "password,token,authorization,secret",
		WALSegmentSize:     16 << 20,  // 16MB
		WALMaxDiskSize:     256 << 20, // 256MB
		RedisStream:        "devrelay:logs",
		RedisMaxLen:        10000,
	}
}

// Load reads configuration from the optional file at path (.yaml, .yml or .toml), a .env file
// in the working directory, and environment variables, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.fillDerived(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		return fmt.Errorf("unsupported config file extension %q", ext)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) fillDerived() error {
	if c.RootDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve root dir: %w", err)
		}
		c.RootDir = wd
	}
	if c.InstanceID == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "devrelay"
		}
		c.InstanceID = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if _, err := ParseLevel(c.CaptureLevel); err != nil {
		errs = append(errs, fmt.Errorf("capture_level: %w", err))
	}
	if c.StreamBuffer <= 0 {
		errs = append(errs, fmt.Errorf("stream_buffer must be positive, got %d", c.StreamBuffer))
	}
	if c.JournalDir != "" {
		if c.WALSegmentSize <= 0 || c.WALMaxDiskSize <= 0 {
			errs = append(errs, errors.New("WAL sizes must be positive"))
		} else if c.WALSegmentSize > c.WALMaxDiskSize {
			errs = append(errs, fmt.Errorf("WAL segment size %d exceeds max disk size %d", c.WALSegmentSize, c.WALMaxDiskSize))
		}
	}
	if c.FollowRemote && c.RedisAddr == "" {
		errs = append(errs, errors.New("follow_remote requires redis_addr"))
	}
	if c.RedisAddr != "" && c.RedisStream == "" {
		errs = append(errs, errors.New("redis_stream must not be empty when redis_addr is set"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// RedactionFields returns the configured attribute keys to redact.
func (c *Config) RedactionFields() []string {
	var fields []string
	for _, f := range strings.Split(c.PIIRedactionFields, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// ParseLevel parses a slog level name such as "debug" or "warn+2".
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, err
	}
	return level, nil
}
