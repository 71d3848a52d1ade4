package config

import "flag"

// Flags holds command line overrides registered on a subcommand's FlagSet.
type Flags struct {
	config    *string
	debug     *bool
	dataDir   *string
	workers   *int
	maxPoints *int
	logFile   *string
	noCurtain *bool
}

// RegisterFlags adds the shared overrides to fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		config:    fs.String("config", "", "Path to config file"),
		debug:     fs.Bool("debug", false, "Enable debug logging"),
		dataDir:   fs.String("data", "", "Data directory holding the layers"),
		workers:   fs.Int("workers", 0, "Worker count (0 = config value)"),
		maxPoints: fs.Int("maxpoints", 0, "Point budget per tile (33..2047)"),
		logFile:   fs.String("log", "", "Log file path"),
		noCurtain: fs.Bool("nocurtain", false, "Omit curtain geometry from JSON tiles"),
	}
}

// ConfigPath returns the explicit config path given with -config.
func (f *Flags) ConfigPath() string {
	return *f.config
}

// apply applies command line overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if *f.debug {
		cfg.Logging.Level = "debug"
	}
	if *f.dataDir != "" {
		cfg.Processing.DataDir = *f.dataDir
	}
	if *f.workers > 0 {
		cfg.Processing.Workers = *f.workers
	}
	if *f.maxPoints > 0 {
		cfg.Processing.MaxPoints = *f.maxPoints
	}
	if *f.logFile != "" {
		cfg.Logging.LogFile = *f.logFile
	}
	if *f.noCurtain {
		cfg.Processing.Curtain = false
	}
}
