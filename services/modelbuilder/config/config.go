// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads, validates, and watches the model builder's YAML
// configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MODELBUILDER_"

var (
	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")

	validate *validator.Validate
)

func init() {
	validate = validator.New()
}

// Config is the root of the configuration file.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Limits    LimitsConfig    `yaml:"limits"`
	Storage   StorageConfig   `yaml:"storage"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
	Influx    InfluxConfig    `yaml:"influx"`
}

type ServerConfig struct {
	Port  int  `yaml:"port" validate:"min=1,max=65535"`
	Debug bool `yaml:"debug"`
}

// LimitsConfig holds the tunables that may change while the server runs.
type LimitsConfig struct {
	// MaxPayloadMB is the serialized size ceiling for imports and saves.
	MaxPayloadMB float64 `yaml:"max_payload_mb" validate:"gt=0"`

	// RoundingDepth is the number of decimals kept in daily series.
	RoundingDepth int `yaml:"rounding_depth" validate:"min=0,max=10"`

	// ImportsPerMinute limits imports per session. Zero disables the limit.
	ImportsPerMinute float64 `yaml:"import_rate_per_minute" validate:"gte=0"`

	ImportBurst int `yaml:"import_burst" validate:"gte=1"`
}

type StorageConfig struct {
	KeyPrefix string        `yaml:"key_prefix"`
	Fast      FastConfig    `yaml:"fast"`
	Durable   DurableConfig `yaml:"durable"`
}

type FastConfig struct {
	Capacity int           `yaml:"capacity" validate:"gt=0"`
	TTL      time.Duration `yaml:"ttl"`
}

type DurableConfig struct {
	// Backend is one of badger, sqlite or none.
	Backend string        `yaml:"backend" validate:"oneof=badger sqlite none"`
	Path    string        `yaml:"path" validate:"required_unless=Backend none"`
	TTL     time.Duration `yaml:"ttl"`

	// SweepInterval controls how often expired sqlite rows are removed.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" validate:"required"`
	Environment    string `yaml:"environment"`
	TraceExporter  string `yaml:"trace_exporter" validate:"oneof=otlp stdout none"`
	MetricExporter string `yaml:"metric_exporter" validate:"oneof=prometheus stdout none"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// InfluxConfig is optional. Export is disabled while URL is empty.
type InfluxConfig struct {
	URL         string `yaml:"url" validate:"omitempty,url"`
	Token       string `yaml:"token"`
	Org         string `yaml:"org" validate:"required_with=URL"`
	Bucket      string `yaml:"bucket" validate:"required_with=URL"`
	Measurement string `yaml:"measurement"`
}

// Enabled reports whether an InfluxDB target is configured.
func (c InfluxConfig) Enabled() bool {
	return c.URL != ""
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Server: ServerConfig{Port: 8095},
		Limits: LimitsConfig{
			MaxPayloadMB:     30,
			RoundingDepth:    6,
			ImportsPerMinute: 30,
			ImportBurst:      5,
		},
		Storage: StorageConfig{
			KeyPrefix: "modelbuilder",
			Fast: FastConfig{
				Capacity: 256,
				TTL:      30 * time.Minute,
			},
			Durable: DurableConfig{
				Backend:       "badger",
				Path:          filepath.Join(defaultDataDir(), "sessions"),
				TTL:           7 * 24 * time.Hour,
				SweepInterval: time.Hour,
			},
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "modelbuilder",
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			OTLPEndpoint:   "localhost:4317",
			OTLPInsecure:   true,
		},
		Logging: LoggingConfig{Level: "info"},
		Influx:  InfluxConfig{Measurement: "daily_emissions"},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".modelbuilder"
	}
	return filepath.Join(home, ".modelbuilder")
}

// DefaultPath is where the CLI looks for a config file when none is given.
func DefaultPath() string {
	return filepath.Join(defaultDataDir(), "config.yaml")
}

// Load reads the file at path over the defaults, applies environment
// overrides, and validates the result.
//
// Description:
//
//	A missing file is not an error; the defaults are used. Keys absent from
//	the file keep their default values.
//
// Inputs:
//
//	path - Path to the YAML file. Empty means defaults only.
//
// Outputs:
//
//	Config - The merged configuration.
//	error - Read, parse or validation failure.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks struct tag constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// WriteDefault writes the default configuration to path, creating parent
// directories. An existing file is left untouched.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

type lookupFunc func(string) (string, bool)

// applyEnv overrides fields from MODELBUILDER_* variables.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *float64) {
		if v, ok := lookup(EnvPrefix + key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = f
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	integer("PORT", &cfg.Server.Port)
	boolean("DEBUG", &cfg.Server.Debug)
	num("MAX_PAYLOAD_MB", &cfg.Limits.MaxPayloadMB)
	integer("ROUNDING_DEPTH", &cfg.Limits.RoundingDepth)
	num("IMPORT_RATE_PER_MINUTE", &cfg.Limits.ImportsPerMinute)
	str("STORAGE_BACKEND", &cfg.Storage.Durable.Backend)
	str("STORAGE_PATH", &cfg.Storage.Durable.Path)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_DIR", &cfg.Logging.Dir)
	boolean("LOG_JSON", &cfg.Logging.JSON)
	str("TRACE_EXPORTER", &cfg.Telemetry.TraceExporter)
	str("METRIC_EXPORTER", &cfg.Telemetry.MetricExporter)
	str("OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)
	str("INFLUX_URL", &cfg.Influx.URL)
	str("INFLUX_TOKEN", &cfg.Influx.Token)
	str("INFLUX_ORG", &cfg.Influx.Org)
	str("INFLUX_BUCKET", &cfg.Influx.Bucket)

	return errors.Join(errs...)
}
