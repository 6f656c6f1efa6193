// Package config loads server settings.
//
// PRECEDENCE (lowest to highest):
//
//	built-in defaults → YAML file (--config) → environment variables → CLI flags
//
// The first three are handled here; flags are applied by the cli package
// because only it knows which flags the user actually set.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MinSecretLength is the shortest JWT secret the server accepts.
const MinSecretLength = 32

// Config is the full server configuration.
type Config struct {
	Port         int      `yaml:"port"`
	MaxBodyBytes int64    `yaml:"max_body_bytes"`
	Database     Database `yaml:"database"`
	Auth         Auth     `yaml:"auth"`
	Log          Log      `yaml:"log"`
	S3           S3       `yaml:"s3"`
}

// Database selects the record store.
type Database struct {
	Driver      string `yaml:"driver"` // "sqlite" or "postgres"
	DSN         string `yaml:"dsn"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// Auth configures token issuing.
type Auth struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// S3 configures backup archival. Archival is off while Bucket is empty.
type S3 struct {
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// Enabled reports whether backups should be archived.
func (s S3) Enabled() bool { return s.Bucket != "" }

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:         8080,
		MaxBodyBytes: 5 << 20, // 5 MiB
		Database: Database{
			Driver:      "sqlite",
			DSN:         "data/spacesync.db",
			AutoMigrate: true,
		},
		Auth: Auth{TokenTTL: 24 * time.Hour},
		Log:  Log{Level: "info", Format: "text"},
		S3:   S3{Region: "us-east-1"},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment as seen through getenv.
func Load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides fields from environment variables that are set.
func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid PORT %q", v)
		}
		c.Port = port
	}

	str("DB_DRIVER", &c.Database.Driver)
	// DB_PATH is the SQLite file; DATABASE_DSN wins when both are set.
	str("DB_PATH", &c.Database.DSN)
	str("DATABASE_DSN", &c.Database.DSN)
	if v := getenv("DB_AUTO_MIGRATE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: invalid DB_AUTO_MIGRATE %q", v)
		}
		c.Database.AutoMigrate = b
	}

	str("JWT_SECRET", &c.Auth.JWTSecret)
	if v := getenv("TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid TOKEN_TTL %q", v)
		}
		c.Auth.TokenTTL = d
	}

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	str("S3_BUCKET", &c.S3.Bucket)
	str("S3_REGION", &c.S3.Region)
	str("S3_ENDPOINT", &c.S3.Endpoint)
	str("S3_ACCESS_KEY", &c.S3.AccessKey)
	str("S3_SECRET_KEY", &c.S3.SecretKey)
	if v := getenv("S3_USE_PATH_STYLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: invalid S3_USE_PATH_STYLE %q", v)
		}
		c.S3.UsePathStyle = b
	}
	return nil
}

// Validate checks the settings every command needs.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q (want sqlite or postgres)", c.Database.Driver))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database dsn is empty"))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("max_body_bytes must be positive"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q (want text or json)", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// ValidateServe adds the checks only the HTTP server needs.
func (c Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(c.Auth.JWTSecret) < MinSecretLength {
		return fmt.Errorf("config: JWT secret must be at least %d characters", MinSecretLength)
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("config: token ttl must be positive")
	}
	return nil
}
