package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/shaharia-lab/apns-notifyd/internal/notification"
)

// Supported registry backends.
const (
	StoreSQLite   = "sqlite"
	StoreDynamoDB = "dynamodb"
)

const defaultPushTimeout = 30 * time.Second

// AppConfig holds all application-level configuration. Values come from an
// optional YAML file, overridden by environment variables.
type AppConfig struct {
	// Store selects the registry backend: "sqlite" (default) or "dynamodb".
	Store string `envconfig:"APNS_NOTIFYD_STORE" yaml:"store"`

	// DBPath is the SQLite database file. Required for the sqlite store.
	DBPath string `envconfig:"APNS_NOTIFYD_DB_PATH" yaml:"db_path"`

	// DynamoDBTable is the registry table. Required for the dynamodb store.
	DynamoDBTable string `envconfig:"APNS_NOTIFYD_DYNAMODB_TABLE" yaml:"dynamodb_table"`

	// DynamoDBEndpoint overrides the AWS endpoint, e.g. for DynamoDB Local.
	DynamoDBEndpoint string `envconfig:"APNS_NOTIFYD_DYNAMODB_ENDPOINT" yaml:"dynamodb_endpoint"`

	// IdentityPath is a PEM file with the APNs client key and certificate.
	// Only the push path requires it.
	IdentityPath string `envconfig:"APNS_NOTIFYD_IDENT_PATH" yaml:"identity_path"`

	// Topic is sent as apns-topic, usually the app bundle id.
	Topic string `envconfig:"APNS_NOTIFYD_TOPIC" yaml:"topic"`

	// Gateway is the APNs base URL. Defaults to production.
	Gateway string `envconfig:"APNS_NOTIFYD_GATEWAY" yaml:"gateway"`

	// PushTimeout bounds each push request. Defaults to 30s.
	PushTimeout time.Duration `envconfig:"APNS_NOTIFYD_PUSH_TIMEOUT" yaml:"push_timeout"`

	// LogDir receives rotated JSON logs. Empty means stderr.
	LogDir string `envconfig:"APNS_NOTIFYD_LOG_DIR" yaml:"log_dir"`

	// PushgatewayURL enables pushing metrics on exit when set.
	PushgatewayURL string `envconfig:"APNS_NOTIFYD_PUSHGATEWAY_URL" yaml:"pushgateway_url"`

	// LogLevel sets the minimum log level (debug, info, warn, error). Defaults to info.
	LogLevel string `envconfig:"LOG_LEVEL" yaml:"log_level"`
}

// MissingError reports a required setting that was not provided.
type MissingError struct {
	Var string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("required setting %s is not set", e.Var)
}

// Load reads the YAML file at path (if path is non-empty), then applies
// environment variables on top and fills in defaults.
func Load(path string) (*AppConfig, error) {
	var c AppConfig
	if path != "" {
		//nolint:gosec // path is given on the command line by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parsing config file %q: %w", path, err)
		}
	}
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if c.Store == "" {
		c.Store = StoreSQLite
	}
	if c.Gateway == "" {
		c.Gateway = notification.DefaultGateway
	}
	if c.PushTimeout <= 0 {
		c.PushTimeout = defaultPushTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return &c, nil
}

// Validate checks the settings every invocation needs: a registry location.
func (c *AppConfig) Validate() error {
	switch c.Store {
	case StoreSQLite:
		if c.DBPath == "" {
			return &MissingError{Var: "APNS_NOTIFYD_DB_PATH"}
		}
	case StoreDynamoDB:
		if c.DynamoDBTable == "" {
			return &MissingError{Var: "APNS_NOTIFYD_DYNAMODB_TABLE"}
		}
	default:
		return fmt.Errorf("unknown store %q (want %s or %s)", c.Store, StoreSQLite, StoreDynamoDB)
	}
	return nil
}

// APNs returns the sender settings. They are validated only when a push
// is actually attempted.
func (c *AppConfig) APNs() notification.APNsConfig {
	return notification.APNsConfig{
		Gateway:      c.Gateway,
		IdentityPath: c.IdentityPath,
		Topic:        c.Topic,
		Timeout:      c.PushTimeout,
	}
}

// SlogLevel converts the LogLevel string to a slog.Level.
// Unknown values default to slog.LevelInfo.
func (c *AppConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
