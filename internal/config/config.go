package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/oarkflow/log"
	"gopkg.in/yaml.v3"

	"analytics-uploader/internal/events"
)

// Fixed file names. The uploader takes no flags; an optional config.yaml next
// to the binary overrides the defaults below.
const (
	ConfigFileName      = "config.yaml"
	CredentialsFileName = "creds.conf"
	AnalyticsFileName   = "combined-analytics.csv"
)

const (
	CommitTransaction = "transaction"
	CommitRow         = "row"
)

// ErrConfigNotFound is returned by LoadConfig when the file does not exist.
var ErrConfigNotFound = errors.New("config file not found")

type Config struct {
	Source      Source      `yaml:"source"`
	Credentials CredsFile   `yaml:"credentials"`
	Destination Destination `yaml:"destination"`
	Log         Log         `yaml:"log"`
}

type Source struct {
	Path           string  `yaml:"path"`
	ReservedPrefix *string `yaml:"reserved_prefix"`
}

type CredsFile struct {
	Path    string `yaml:"path"`
	Section string `yaml:"section"`
}

type Destination struct {
	Driver string `yaml:"driver"`
	Table  string `yaml:"table"`
	// FirstID is the identifier the table assigns to its first row.
	FirstID int64  `yaml:"first_id"`
	Commit  string `yaml:"commit"`
}

type Log struct {
	Level string `yaml:"level"`
}

// Prefix returns the reserved customer prefix. An explicit empty string in
// config.yaml disables filtering.
func (s Source) Prefix() string {
	if s.ReservedPrefix == nil {
		return events.ReservedCustomerPrefix
	}
	return *s.ReservedPrefix
}

func Default() *Config {
	return &Config{
		Source:      Source{Path: AnalyticsFileName},
		Credentials: CredsFile{Path: CredentialsFileName, Section: DefaultSection},
		Destination: Destination{
			Driver: "postgres",
			Table:  "analytics",
			Commit: CommitTransaction,
		},
		Log: Log{Level: "info"},
	}
}

// LoadConfig reads path over the defaults and validates the result.
func LoadConfig(path string) (*Config, error) {
	config := Default()

	file, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	err = yaml.Unmarshal(file, config)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	switch c.Destination.Driver {
	case "postgres", "libpq", "mysql", "sqlite", "mongo":
	default:
		return fmt.Errorf("unsupported destination driver %q", c.Destination.Driver)
	}

	switch c.Destination.Commit {
	case CommitTransaction, CommitRow:
	default:
		return fmt.Errorf("unsupported commit mode %q", c.Destination.Commit)
	}

	if c.Destination.Table == "" {
		return errors.New("destination table must not be empty")
	}
	if c.Source.Path == "" {
		return errors.New("source path must not be empty")
	}
	if c.Credentials.Path == "" || c.Credentials.Section == "" {
		return errors.New("credentials path and section must not be empty")
	}

	// Unknown names parse to a level above error, which would hide the
	// failure report.
	if log.ParseLevel(c.Log.Level) > log.ErrorLevel {
		return fmt.Errorf("unsupported log level %q", c.Log.Level)
	}
	return nil
}
