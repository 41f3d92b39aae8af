// Package config handles leedstool configuration loading and management.
package config

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/leeds-assets/internal/logger"
	"github.com/Faultbox/leeds-assets/pkg/chunk"
	"github.com/Faultbox/leeds-assets/pkg/formats"
)

// Config holds all tool settings.
type Config struct {
	Decode  DecodeConfig  `yaml:"decode"`
	Data    DataConfig    `yaml:"data"`
	Report  ReportConfig  `yaml:"report"`
	Logging LoggingConfig `yaml:"logging"`
}

// DecodeConfig controls how containers are read.
type DecodeConfig struct {
	ByteOrder     string `yaml:"byte_order"` // auto, little or big
	Alignment     int    `yaml:"alignment"`
	AllowNonPow2  bool   `yaml:"allow_npot"`
	MaxInflatedMB int    `yaml:"max_inflated_mb"`
	Workers       int    `yaml:"workers"` // 0 = one per CPU
}

// DataConfig holds asset locations.
type DataConfig struct {
	SearchPaths []string `yaml:"search_paths"` // directories scanned for loose files
	Archives    []string `yaml:"archives"`     // IMG archives, later ones take priority
}

// ReportConfig controls command output.
type ReportConfig struct {
	Format          string `yaml:"format"` // text or yaml
	ShowUnknown     bool   `yaml:"show_unknown"`
	ShowDiagnostics bool   `yaml:"show_diagnostics"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	LogFile    string `yaml:"log_file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Report formats.
const (
	FormatText = "text"
	FormatYAML = "yaml"
)

// Default returns a Config with sensible default values.
func Default() *Config {
	file := logger.DefaultFileConfig("")
	return &Config{
		Decode: DecodeConfig{
			ByteOrder:     "auto",
			Alignment:     1,
			MaxInflatedMB: formats.DefaultMaxInflated >> 20,
		},
		Report: ReportConfig{
			Format:          FormatText,
			ShowDiagnostics: true,
		},
		Logging: LoggingConfig{
			Level:      "warn",
			MaxSizeMB:  file.MaxSizeMB,
			MaxBackups: file.MaxBackups,
			MaxAgeDays: file.MaxAgeDays,
			Compress:   file.Compress,
		},
	}
}

// Validate checks values the YAML decoder cannot.
func (c *Config) Validate() error {
	if _, err := chunk.ParseOrder(c.Decode.ByteOrder); err != nil {
		return errors.Wrap(err, "decode.byte_order")
	}
	if c.Decode.Alignment < 0 {
		return errors.Errorf("decode.alignment: %d is negative", c.Decode.Alignment)
	}
	if c.Decode.Workers < 0 {
		return errors.Errorf("decode.workers: %d is negative", c.Decode.Workers)
	}
	if c.Decode.MaxInflatedMB < 0 {
		return errors.Errorf("decode.max_inflated_mb: %d is negative", c.Decode.MaxInflatedMB)
	}
	switch c.Report.Format {
	case FormatText, FormatYAML:
	default:
		return errors.Errorf("report.format: %q is not text or yaml", c.Report.Format)
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return errors.Wrap(err, "logging.level")
	}
	return nil
}

// Options converts the decode section to decoder options.
func (d DecodeConfig) Options(log *zap.Logger) (formats.Options, error) {
	order, err := chunk.ParseOrder(d.ByteOrder)
	if err != nil {
		return formats.Options{}, err
	}
	opts := formats.Options{
		Order:        order,
		Alignment:    d.Alignment,
		AllowNonPow2: d.AllowNonPow2,
		Logger:       log,
	}
	if d.MaxInflatedMB > 0 {
		opts.MaxInflated = d.MaxInflatedMB << 20
	}
	return opts, nil
}

// FileConfig returns the rotation settings for the log file.
func (l LoggingConfig) FileConfig() logger.FileConfig {
	return logger.FileConfig{
		Path:       l.LogFile,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
		Compress:   l.Compress,
	}
}
