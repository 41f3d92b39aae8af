package config

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Decode.ByteOrder != "auto" {
		t.Errorf("expected byte order auto, got %s", cfg.Decode.ByteOrder)
	}
	if cfg.Decode.Alignment != 1 {
		t.Errorf("expected alignment 1, got %d", cfg.Decode.Alignment)
	}
	if cfg.Decode.MaxInflatedMB != 256 {
		t.Errorf("expected max inflated 256MB, got %d", cfg.Decode.MaxInflatedMB)
	}
	if cfg.Report.Format != FormatText {
		t.Errorf("expected text reports, got %s", cfg.Report.Format)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected log level 'warn', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
decode:
  byte_order: big
  alignment: 4
  allow_npot: true
  workers: 3

data:
  search_paths: ["/data/lcs/models"]
  archives: ["/data/lcs/GTA3.IMG", "/data/lcs/patch.img"]

report:
  format: yaml
  show_unknown: true

logging:
  level: "debug"
  log_file: "leeds.log"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Decode.ByteOrder != "big" || cfg.Decode.Alignment != 4 || !cfg.Decode.AllowNonPow2 {
		t.Errorf("decode section not loaded: %+v", cfg.Decode)
	}
	if cfg.Decode.Workers != 3 {
		t.Errorf("expected 3 workers, got %d", cfg.Decode.Workers)
	}
	if cfg.Decode.MaxInflatedMB != 256 {
		t.Errorf("unset key lost its default: max_inflated_mb = %d", cfg.Decode.MaxInflatedMB)
	}
	if len(cfg.Data.Archives) != 2 || cfg.Data.Archives[1] != "/data/lcs/patch.img" {
		t.Errorf("unexpected archives %v", cfg.Data.Archives)
	}
	if len(cfg.Data.SearchPaths) != 1 {
		t.Errorf("unexpected search paths %v", cfg.Data.SearchPaths)
	}
	if cfg.Report.Format != FormatYAML || !cfg.Report.ShowUnknown || !cfg.Report.ShowDiagnostics {
		t.Errorf("report section not merged: %+v", cfg.Report)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.LogFile != "leeds.log" {
		t.Errorf("logging section not loaded: %+v", cfg.Logging)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"syntax", "decode:\n  alignment: not a number\n  invalid syntax here\n"},
		{"unknown key", "decode:\n  endianness: big\n"},
		{"bad byte order", "decode:\n  byte_order: middle\n"},
		{"bad format", "report:\n  format: html\n"},
		{"negative workers", "decode:\n  workers: -2\n"},
		{"bad level", "logging:\n  level: loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "invalid.yaml")
			if err := os.WriteFile(configPath, []byte(tt.yaml), 0644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}
			if err := loadFromFile(Default(), configPath); err == nil {
				t.Error("expected error loading invalid config, got nil")
			}
		})
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	err := loadFromFile(cfg, "/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestLoadEmptyFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(configPath, nil, 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("empty config rejected: %v", err)
	}
	if cfg.Report.Format != FormatText {
		t.Errorf("defaults lost: %+v", cfg.Report)
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	// Actual path depends on OS
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	os.Chdir(tmpDir)

	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	configPath := filepath.Join(tmpDir, "leedstool.yaml")
	if err := os.WriteFile(configPath, []byte("decode:\n  alignment: 4\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}
	if path := findConfigFile(); path == "" {
		t.Error("expected to find leedstool.yaml in current directory")
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		verify func(t *testing.T, cfg *Config)
	}{
		{
			name: "debug flag",
			args: []string{"--debug"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
		},
		{
			name: "decode flags",
			args: []string{"--byte-order=big", "--align", "4", "--allow-npot", "-j", "8"},
			verify: func(t *testing.T, cfg *Config) {
				d := cfg.Decode
				if d.ByteOrder != "big" || d.Alignment != 4 || !d.AllowNonPow2 || d.Workers != 8 {
					t.Errorf("decode flags not applied: %+v", d)
				}
			},
		},
		{
			name: "archives append",
			args: []string{"--img", "a.img", "--img", "b.img"},
			verify: func(t *testing.T, cfg *Config) {
				if len(cfg.Data.Archives) != 2 || cfg.Data.Archives[1] != "b.img" {
					t.Errorf("expected archives [a.img b.img], got %v", cfg.Data.Archives)
				}
			},
		},
		{
			name: "report flags",
			args: []string{"-f", "yaml", "--show-unknown"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Report.Format != FormatYAML || !cfg.Report.ShowUnknown {
					t.Errorf("report flags not applied: %+v", cfg.Report)
				}
			},
		},
		{
			name: "unset flags keep values",
			args: nil,
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Decode.Alignment != 1 || cfg.Logging.Level != "warn" {
					t.Errorf("defaults overwritten: %+v %+v", cfg.Decode, cfg.Logging)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
			f := BindFlags(fs)
			if err := fs.Parse(tt.args); err != nil {
				t.Fatalf("parse: %v", err)
			}

			cfg := Default()
			f.apply(cfg)
			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	yamlContent := `
decode:
  alignment: 4
  workers: 2
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f := BindFlags(fs)
	if err := fs.Parse([]string{"--config", configPath, "--workers", "16"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := f.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Workers should be from flag (16), not file (2)
	if cfg.Decode.Workers != 16 {
		t.Errorf("expected 16 workers from flag, got %d", cfg.Decode.Workers)
	}
	// Alignment should be from file (4) since no flag override
	if cfg.Decode.Alignment != 4 {
		t.Errorf("expected alignment 4 from file, got %d", cfg.Decode.Alignment)
	}
}

func TestLoadRejectsBadFlag(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f := BindFlags(fs)
	if err := fs.Parse([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Load(); err == nil {
		t.Error("missing explicit config file was accepted")
	}

	fs = pflag.NewFlagSet("test", pflag.ContinueOnError)
	f = BindFlags(fs)
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	if err := fs.Parse([]string{"--format", "html"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Load(); err == nil {
		t.Error("invalid --format was accepted")
	}
}

func TestDecodeOptions(t *testing.T) {
	cfg := Default()
	cfg.Decode.ByteOrder = "be"
	cfg.Decode.MaxInflatedMB = 8
	opts, err := cfg.Decode.Options(nil)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Order != binary.BigEndian || opts.MaxInflated != 8<<20 || opts.Alignment != 1 {
		t.Errorf("unexpected options %+v", opts)
	}

	cfg.Decode.ByteOrder = "auto"
	if opts, _ := cfg.Decode.Options(nil); opts.Order != nil {
		t.Errorf("auto byte order resolved to %v", opts.Order)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Data.Archives = []string{"gta3.img"}
	cfg.Report.Format = FormatYAML
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Report.Format != FormatYAML || len(loaded.Data.Archives) != 1 {
		t.Errorf("saved config not restored: %+v", loaded)
	}
}
