package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/ofxread/internal/common"
	"github.com/spf13/viper"
)

// Output formats for the parse command.
const (
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatTable = "table"
)

// EnvKeyReplacer maps nested keys to environment names, so database.path
// reads OFXREAD_DATABASE_PATH.
var EnvKeyReplacer = strings.NewReplacer(".", "_")

// DefaultDatabasePath is where imports are archived unless configured.
const DefaultDatabasePath = "~/.local/share/ofxread/archive.db"

// Config holds the settings read from flags, environment and config file.
type Config struct {
	LogLevel     string
	LogFormat    string
	DatabasePath string
	Timezone     string
	OutputFormat string
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("parse.timezone", "Local")
	v.SetDefault("output.format", FormatJSON)
}

// Load reads and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		LogLevel:     v.GetString("logging.level"),
		LogFormat:    v.GetString("logging.format"),
		DatabasePath: ExpandPath(v.GetString("database.path")),
		Timezone:     v.GetString("parse.timezone"),
		OutputFormat: strings.ToLower(v.GetString("output.format")),
	}

	if _, err := common.ParseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}

	switch cfg.OutputFormat {
	case FormatJSON, FormatYAML, FormatTable:
	default:
		return nil, fmt.Errorf("%w: unknown output format %q", common.ErrInvalidConfig, cfg.OutputFormat)
	}

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Location resolves the configured default time zone. An empty value or
// "Local" means the system zone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local", "local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown time zone %q: %v", common.ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}
