package pagecraft

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Backend names accepted in Config.Backend.
const (
	BackendBadger    = "badger"
	BackendMemory    = "memory"
	BackendSQLite    = "sqlite"
	BackendPostgres  = "postgres"
	BackendSurrealDB = "surrealdb"
)

// Config holds application configuration.
//
// Values are layered: built-in defaults, then the YAML file, then
// environment variables, then command line flags.
type Config struct {
	Backend    string `yaml:"backend" validate:"required,oneof=badger memory sqlite postgres surrealdb"`
	DataDir    string `yaml:"data_dir" validate:"required_if=Backend badger"`
	SQLitePath string `yaml:"sqlite_path" validate:"required_if=Backend sqlite"`

	PostgresDSN string          `yaml:"postgres_dsn" validate:"required_if=Backend postgres"`
	SurrealDB   SurrealDBConfig `yaml:"surrealdb"`

	Listen string `yaml:"listen" validate:"required,hostname_port"`

	// AllowedOrigins lists browser origins, besides the server's own host,
	// that may open the change feed. "*" allows any.
	AllowedOrigins []string `yaml:"allowed_origins" validate:"dive,required"`

	// Registry is a block type YAML file replacing the built-in set. It is
	// watched for changes when WatchRegistry is set.
	Registry      string `yaml:"registry" validate:"omitempty,file"`
	WatchRegistry bool   `yaml:"watch_registry"`

	// ReadOnly starts the server with writes rejected.
	ReadOnly bool `yaml:"read_only"`

	Log LogConfig `yaml:"log"`
}

type SurrealDBConfig struct {
	URL       string `yaml:"url" validate:"omitempty,url"`
	Namespace string `yaml:"namespace"`
	Database  string `yaml:"database"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

type LogConfig struct {
	Level   string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Path    string `yaml:"path"`
	Console bool   `yaml:"console"`
}

// DefaultConfig returns the configuration used when nothing else is given.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendBadger,
		DataDir: "data",
		Listen:  "localhost:8080",
		SurrealDB: SurrealDBConfig{
			URL:       "ws://localhost:8000/rpc",
			Namespace: "pagecraft",
			Database:  "pagecraft",
			Username:  "root",
			Password:  "root",
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadConfig reads path (if not empty) over the defaults and applies
// environment overrides. The result is not validated yet; flags may still
// change it.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Backend = getEnv("PAGECRAFT_BACKEND", c.Backend)
	c.DataDir = getEnv("PAGECRAFT_DATA_DIR", c.DataDir)
	c.SQLitePath = getEnv("PAGECRAFT_SQLITE_PATH", c.SQLitePath)
	c.PostgresDSN = getEnv("POSTGRES_DSN", c.PostgresDSN)
	c.SurrealDB.URL = getEnv("SURREALDB_URL", c.SurrealDB.URL)
	c.SurrealDB.Namespace = getEnv("SURREALDB_NS", c.SurrealDB.Namespace)
	c.SurrealDB.Database = getEnv("SURREALDB_DB", c.SurrealDB.Database)
	c.SurrealDB.Username = getEnv("SURREALDB_USER", c.SurrealDB.Username)
	c.SurrealDB.Password = getEnv("SURREALDB_PASS", c.SurrealDB.Password)
	c.Listen = getEnv("PAGECRAFT_LISTEN", c.Listen)
	if v := getEnv("PAGECRAFT_ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = strings.Split(v, ",")
	}
	c.Registry = getEnv("PAGECRAFT_REGISTRY", c.Registry)
	c.Log.Level = getEnv("PAGECRAFT_LOG_LEVEL", c.Log.Level)
	c.Log.Path = getEnv("PAGECRAFT_LOG_PATH", c.Log.Path)
	if v, err := strconv.ParseBool(getEnv("PAGECRAFT_READ_ONLY", "")); err == nil {
		c.ReadOnly = v
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Backend == BackendSurrealDB && c.SurrealDB.URL == "" {
		return errors.New("invalid config: surrealdb.url is required for the surrealdb backend")
	}
	return nil
}

// getEnv returns the environment variable key, or defaultValue when it is
// unset or empty.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
