// Package config loads runtime settings from an optional YAML file and
// LABCHECKIN_* environment variables. Environment values win.
//
//	LABCHECKIN_STORAGE_DRIVER          memory|sqlite|postgres (default sqlite)
//	LABCHECKIN_SQLITE_PATH             sqlite file (default ./labcheckin.db)
//	LABCHECKIN_POSTGRES_DSN            postgres DSN when driver=postgres
//	LABCHECKIN_ARCHIVE_DRIVER          none|fs|memory|s3 (default none)
//	LABCHECKIN_ARCHIVE_DIR             root directory when driver=fs
//	LABCHECKIN_ARCHIVE_S3_BUCKET       bucket when driver=s3
//	LABCHECKIN_ARCHIVE_S3_REGION       region (default us-east-1)
//	LABCHECKIN_ARCHIVE_S3_ENDPOINT     custom endpoint, e.g. MinIO
//	LABCHECKIN_ARCHIVE_S3_PREFIX       key prefix inside the bucket
//	LABCHECKIN_ARCHIVE_S3_PATH_STYLE   true|false
//	LABCHECKIN_EDIT_DELAY              debounce for edits while filtering errors
//	LABCHECKIN_HIDE_DELAY              delay before a fixed row leaves the error view
//	LABCHECKIN_VALIDATE_ON_LOAD        run barcode uniqueness when a form loads
//	LABCHECKIN_UNIQUENESS_CONCURRENCY  parallel per-lab barcode lookups
//	LABCHECKIN_METRICS                 prometheus|expvar|none (default prometheus)
//	LABCHECKIN_VERBOSE                 debug logging
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// ArchiveNone disables archiving of accepted submissions.
const ArchiveNone = "none"

// Config holds every runtime setting.
type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Form       FormConfig       `yaml:"form"`
	Uniqueness UniquenessConfig `yaml:"uniqueness"`
	Metrics    string           `yaml:"metrics"`
	Verbose    bool             `yaml:"verbose"`
}

// StorageConfig selects the check-in store.
type StorageConfig struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// ArchiveConfig selects where accepted submissions are archived.
type ArchiveConfig struct {
	Driver string   `yaml:"driver"`
	Dir    string   `yaml:"dir"`
	S3     S3Config `yaml:"s3"`
}

// S3Config configures the S3 archive backend.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	Prefix    string `yaml:"prefix"`
	PathStyle bool   `yaml:"path_style"`
}

// FormConfig tunes the form's debounce windows.
type FormConfig struct {
	EditDelay      time.Duration `yaml:"edit_delay"`
	HideDelay      time.Duration `yaml:"hide_delay"`
	ValidateOnLoad bool          `yaml:"validate_on_load"`
}

// UniquenessConfig tunes barcode lookups.
type UniquenessConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Storage: StorageConfig{Driver: StorageSQLite, SQLitePath: "./labcheckin.db"},
		Archive: ArchiveConfig{Driver: ArchiveNone, Dir: "./archive"},
		Form: FormConfig{
			EditDelay:      500 * time.Millisecond,
			HideDelay:      1500 * time.Millisecond,
			ValidateOnLoad: true,
		},
		Uniqueness: UniquenessConfig{Concurrency: 4},
		Metrics:    "prometheus",
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error; an empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("LABCHECKIN_STORAGE_DRIVER", &c.Storage.Driver)
	str("LABCHECKIN_SQLITE_PATH", &c.Storage.SQLitePath)
	str("LABCHECKIN_POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("LABCHECKIN_ARCHIVE_DRIVER", &c.Archive.Driver)
	str("LABCHECKIN_ARCHIVE_DIR", &c.Archive.Dir)
	str("LABCHECKIN_ARCHIVE_S3_BUCKET", &c.Archive.S3.Bucket)
	str("LABCHECKIN_ARCHIVE_S3_REGION", &c.Archive.S3.Region)
	str("LABCHECKIN_ARCHIVE_S3_ENDPOINT", &c.Archive.S3.Endpoint)
	str("LABCHECKIN_ARCHIVE_S3_PREFIX", &c.Archive.S3.Prefix)
	boolean("LABCHECKIN_ARCHIVE_S3_PATH_STYLE", &c.Archive.S3.PathStyle)
	duration("LABCHECKIN_EDIT_DELAY", &c.Form.EditDelay)
	duration("LABCHECKIN_HIDE_DELAY", &c.Form.HideDelay)
	boolean("LABCHECKIN_VALIDATE_ON_LOAD", &c.Form.ValidateOnLoad)
	str("LABCHECKIN_METRICS", &c.Metrics)
	boolean("LABCHECKIN_VERBOSE", &c.Verbose)
	if v, ok := lookup("LABCHECKIN_UNIQUENESS_CONCURRENCY"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("LABCHECKIN_UNIQUENESS_CONCURRENCY: %w", err))
		} else {
			c.Uniqueness.Concurrency = n
		}
	}
	return errors.Join(errs...)
}

// Validate checks driver names and bounds.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite, StoragePostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch strings.ToLower(c.Archive.Driver) {
	case ArchiveNone, "fs", "memory":
	case "s3":
		if c.Archive.S3.Bucket == "" {
			errs = append(errs, errors.New("archive s3 bucket required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown archive driver %q", c.Archive.Driver))
	}
	switch c.Metrics {
	case "prometheus", "expvar", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown metrics backend %q", c.Metrics))
	}
	if c.Form.EditDelay < 0 || c.Form.HideDelay < 0 {
		errs = append(errs, errors.New("debounce delays must not be negative"))
	}
	if c.Uniqueness.Concurrency < 0 {
		errs = append(errs, errors.New("uniqueness concurrency must not be negative"))
	}
	return errors.Join(errs...)
}
