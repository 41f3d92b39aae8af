package config

import (
	"github.com/spf13/pflag"
)

// Flags are the command-line overrides. Only flags the user actually set
// replace file values.
type Flags struct {
	fs *pflag.FlagSet

	Config       string
	Debug        bool
	LogLevel     string
	LogFile      string
	ByteOrder    string
	Alignment    int
	AllowNonPow2 bool
	Workers      int
	Archives     []string
	Format       string
	ShowUnknown  bool
}

// BindFlags registers the override flags on fs.
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVarP(&f.Config, "config", "c", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Write logs to this file as well")
	fs.StringVar(&f.ByteOrder, "byte-order", "", "Byte order: auto, little or big")
	fs.IntVar(&f.Alignment, "align", 0, "Nested chunk alignment in bytes")
	fs.BoolVar(&f.AllowNonPow2, "allow-npot", false, "Accept non power-of-two textures")
	fs.IntVarP(&f.Workers, "workers", "j", 0, "Parallel decode workers (0 = one per CPU)")
	fs.StringSliceVar(&f.Archives, "img", nil, "IMG archive to load (repeatable)")
	fs.StringVarP(&f.Format, "format", "f", "", "Report format: text or yaml")
	fs.BoolVar(&f.ShowUnknown, "show-unknown", false, "List unknown chunks in reports")
	return f
}

// Load loads the config file named by --config (or the first one found)
// and applies the flags over it.
func (f *Flags) Load() (*Config, error) {
	cfg, err := Load(f.Config)
	if err != nil {
		return nil, err
	}
	f.apply(cfg)
	return cfg, cfg.Validate()
}

func (f *Flags) changed(name string) bool {
	return f.fs != nil && f.fs.Changed(name)
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.changed("log-level") {
		cfg.Logging.Level = f.LogLevel
	}
	if f.changed("log-file") {
		cfg.Logging.LogFile = f.LogFile
	}
	if f.changed("byte-order") {
		cfg.Decode.ByteOrder = f.ByteOrder
	}
	if f.changed("align") {
		cfg.Decode.Alignment = f.Alignment
	}
	if f.changed("allow-npot") {
		cfg.Decode.AllowNonPow2 = f.AllowNonPow2
	}
	if f.changed("workers") {
		cfg.Decode.Workers = f.Workers
	}
	if f.changed("img") {
		cfg.Data.Archives = append(cfg.Data.Archives, f.Archives...)
	}
	if f.changed("format") {
		cfg.Report.Format = f.Format
	}
	if f.changed("show-unknown") {
		cfg.Report.ShowUnknown = f.ShowUnknown
	}
}
