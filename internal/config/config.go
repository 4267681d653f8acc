// Package config loads the YAML configuration of the georepo command.
//
// A configuration describes one dataset: where its features come from, the
// optional JSON Lines store that persists them and the attributes exposed as
// columns. Missing values are filled in by applyDefaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/maruel/georepo/internal/binding"
	"gopkg.in/yaml.v3"
)

// currentVersion is the only configuration version understood.
const currentVersion = 1

// Config is the root of the configuration file.
type Config struct {
	Version  int     `yaml:"version"`
	LogLevel string  `yaml:"log_level,omitempty"`
	Dataset  Dataset `yaml:"dataset"`
}

// Dataset describes the records served by the command.
type Dataset struct {
	// Title names the collection. Defaults to "Feature".
	Title string `yaml:"title,omitempty"`
	// Source is a GeoJSON FeatureCollection file.
	Source string `yaml:"source,omitempty"`
	// Store is a JSON Lines file. When it does not exist yet, it is created
	// from Source.
	Store string `yaml:"store,omitempty"`
	// IDProperty names the feature property holding the identifier. The
	// GeoJSON feature id is used when empty.
	IDProperty string `yaml:"id_property,omitempty"`
	// IDColumn is the name of the identifier column.
	IDColumn string `yaml:"id_column,omitempty"`
	// SRID is reported as is; coordinates are never transformed.
	SRID int `yaml:"srid,omitempty"`
	// Watch reloads Store when another process modifies it.
	Watch bool `yaml:"watch,omitempty"`
	// Attributes lists the feature properties exposed as columns.
	Attributes []Attribute `yaml:"attributes,omitempty"`
}

// Attribute maps a feature property to a column.
type Attribute struct {
	Name        string             `yaml:"name"`
	Type        binding.ColumnType `yaml:"type,omitempty"`
	Caption     string             `yaml:"caption,omitempty"`
	Description string             `yaml:"description,omitempty"`
	Ordinal     int                `yaml:"ordinal,omitempty"`
	Required    bool               `yaml:"required,omitempty"`
	Unique      bool               `yaml:"unique,omitempty"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// LoadFromPath loads and validates the configuration at path.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is a CLI flag
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML configuration. Unknown keys are
// rejected.
func Parse(data []byte) (*Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644) //nolint:gosec // G306: configuration is not secret
}

// applyDefaults fills in missing values.
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = currentVersion
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Dataset.Title == "" {
		c.Dataset.Title = "Feature"
	}
	if c.Dataset.IDColumn == "" {
		c.Dataset.IDColumn = binding.DefaultIDColumn
	}
	for i := range c.Dataset.Attributes {
		a := &c.Dataset.Attributes[i]
		if a.Type == "" {
			a.Type = binding.ColumnTypeText
		}
	}
}

var logLevels = []string{"debug", "info", "warn", "error"}

var columnTypes = []binding.ColumnType{
	binding.ColumnTypeText,
	binding.ColumnTypeNumber,
	binding.ColumnTypeBool,
	binding.ColumnTypeDate,
	binding.ColumnTypeBlob,
	binding.ColumnTypeGeometry,
	binding.ColumnTypeJSON,
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Version != currentVersion {
		return fmt.Errorf("unsupported config version %d", c.Version)
	}
	if !slices.Contains(logLevels, c.LogLevel) {
		return fmt.Errorf("unknown log level: %q", c.LogLevel)
	}
	if c.Dataset.SRID < 0 {
		return fmt.Errorf("invalid srid %d", c.Dataset.SRID)
	}
	seen := map[string]bool{c.Dataset.IDColumn: true}
	for i, a := range c.Dataset.Attributes {
		if a.Name == "" {
			return fmt.Errorf("attribute %d: name is required", i)
		}
		if seen[a.Name] {
			return fmt.Errorf("attribute %q: duplicate column name", a.Name)
		}
		seen[a.Name] = true
		if !slices.Contains(columnTypes, a.Type) {
			return fmt.Errorf("attribute %q: unknown type %q", a.Name, a.Type)
		}
	}
	return nil
}
