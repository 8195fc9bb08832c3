// Package config loads runtime options for the renaming pipeline from
// flags and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Default values
	DefaultLogLevel           = "info"
	DefaultLargeFormThreshold = 1000
	DefaultProximityInflate   = 100.0
	DefaultGridSize           = 100.0
	DefaultMaxNearby          = 10
	DefaultExactMatchMinSupport = 2
	DefaultMaxRetries         = 5
	DefaultTimeoutSeconds     = 120
)

// Options holds every tunable for the renaming pipeline's stages.
type Options struct {
	// Application
	LogLevel string

	// Field extraction
	LargeFormThreshold int

	// Context extraction
	ProximityInflate float64
	GridSize         float64
	MaxNearby        int

	// Name engine. ExactMatchMinSupport (minimum training support for an
	// exact fingerprint match) and MaxRetries (bound on the name engine's
	// validation loop) are loaded and validated here but are not passed to
	// the name engine, which uses a fixed minimum support of 2 and a fixed
	// bound of 5 retries.
	ExactMatchMinSupport int
	MaxRetries           int

	// Resource limits. TimeoutSeconds is loaded and validated but is not
	// read by the pipeline; no per-document time budget is enforced.
	TimeoutSeconds int

	// Output
	OutputDir string
}

// DefaultOptions returns an Options populated with this tool's documented
// defaults.
func DefaultOptions() *Options {
	return &Options{
		LogLevel:             DefaultLogLevel,
		LargeFormThreshold:   DefaultLargeFormThreshold,
		ProximityInflate:     DefaultProximityInflate,
		GridSize:             DefaultGridSize,
		MaxNearby:            DefaultMaxNearby,
		ExactMatchMinSupport: DefaultExactMatchMinSupport,
		MaxRetries:           DefaultMaxRetries,
		TimeoutSeconds:       DefaultTimeoutSeconds,
	}
}

// LoadFromFlags parses command line flags and environment variables
// (prefix PDFRENAME_) into an Options, with flags taking precedence over
// viper-sourced defaults.
func LoadFromFlags() (*Options, error) {
	opts := DefaultOptions()

	setupViperEnvironment(opts)
	defineCommandLineFlags(opts)
	bindFlagsToViper()
	setupUsageMessage()

	pflag.Parse()

	populateOptionsFromViper(opts)

	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return opts, nil
}

func setupViperEnvironment(opts *Options) {
	viper.SetEnvPrefix("PDFRENAME")
	viper.AutomaticEnv()

	viper.SetDefault("loglevel", opts.LogLevel)
	viper.SetDefault("largeformthreshold", opts.LargeFormThreshold)
	viper.SetDefault("proximityinflate", opts.ProximityInflate)
	viper.SetDefault("gridsize", opts.GridSize)
	viper.SetDefault("maxnearby", opts.MaxNearby)
	viper.SetDefault("exactmatchminsupport", opts.ExactMatchMinSupport)
	viper.SetDefault("maxretries", opts.MaxRetries)
	viper.SetDefault("timeoutseconds", opts.TimeoutSeconds)
	viper.SetDefault("outputdir", opts.OutputDir)
}

func defineCommandLineFlags(opts *Options) {
	pflag.String("loglevel", opts.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int("largeformthreshold", opts.LargeFormThreshold, "Field count above which a LargeForm warning is emitted")
	pflag.Float64("proximityinflate", opts.ProximityInflate, "Proximity box inflation, in PDF user-space units")
	pflag.Float64("gridsize", opts.GridSize, "Visual-group grid cell size, in PDF user-space units")
	pflag.Int("maxnearby", opts.MaxNearby, "Maximum nearby text entries retained per field")
	pflag.Int("exactmatchminsupport", opts.ExactMatchMinSupport, "Minimum training support before an exact match is trusted (not read by the pipeline)")
	pflag.Int("maxretries", opts.MaxRetries, "Maximum name-generation retries before falling back (not read by the pipeline)")
	pflag.Int("timeoutseconds", opts.TimeoutSeconds, "Per-document time budget, in seconds (not read by the pipeline)")
	pflag.String("outputdir", opts.OutputDir, "Directory to write output artifacts into (default: next to the input)")
}

func bindFlagsToViper() {
	_ = viper.BindPFlag("loglevel", pflag.Lookup("loglevel"))
	_ = viper.BindPFlag("largeformthreshold", pflag.Lookup("largeformthreshold"))
	_ = viper.BindPFlag("proximityinflate", pflag.Lookup("proximityinflate"))
	_ = viper.BindPFlag("gridsize", pflag.Lookup("gridsize"))
	_ = viper.BindPFlag("maxnearby", pflag.Lookup("maxnearby"))
	_ = viper.BindPFlag("exactmatchminsupport", pflag.Lookup("exactmatchminsupport"))
	_ = viper.BindPFlag("maxretries", pflag.Lookup("maxretries"))
	_ = viper.BindPFlag("timeoutseconds", pflag.Lookup("timeoutseconds"))
	_ = viper.BindPFlag("outputdir", pflag.Lookup("outputdir"))
}

func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\npdfrename - rewrites PDF AcroForm field names to a consistent BEM grammar\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  PDFRENAME_LOGLEVEL             Log level\n")
		fmt.Fprintf(os.Stderr, "  PDFRENAME_LARGEFORMTHRESHOLD   LargeForm warning threshold\n")
		fmt.Fprintf(os.Stderr, "  PDFRENAME_EXACTMATCHMINSUPPORT Minimum exact-match training support\n")
		fmt.Fprintf(os.Stderr, "  PDFRENAME_TIMEOUTSECONDS       Per-document time budget\n")
		fmt.Fprintf(os.Stderr, "  PDFRENAME_OUTPUTDIR            Output artifact directory\n")
	}
}

func populateOptionsFromViper(opts *Options) {
	opts.LogLevel = viper.GetString("loglevel")
	opts.LargeFormThreshold = viper.GetInt("largeformthreshold")
	opts.ProximityInflate = viper.GetFloat64("proximityinflate")
	opts.GridSize = viper.GetFloat64("gridsize")
	opts.MaxNearby = viper.GetInt("maxnearby")
	opts.ExactMatchMinSupport = viper.GetInt("exactmatchminsupport")
	opts.MaxRetries = viper.GetInt("maxretries")
	opts.TimeoutSeconds = viper.GetInt("timeoutseconds")
	opts.OutputDir = viper.GetString("outputdir")
}

// Validate checks invariants the rest of the pipeline assumes hold.
func (o *Options) Validate() error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[o.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", o.LogLevel)
	}
	if o.LargeFormThreshold <= 0 {
		return errors.New("largeformthreshold must be positive")
	}
	if o.MaxNearby <= 0 {
		return errors.New("maxnearby must be positive")
	}
	if o.ExactMatchMinSupport <= 0 {
		return errors.New("exactmatchminsupport must be positive")
	}
	if o.MaxRetries <= 0 {
		return errors.New("maxretries must be positive")
	}
	if o.TimeoutSeconds <= 0 {
		return errors.New("timeoutseconds must be positive")
	}
	return nil
}

// IsDebug reports whether debug logging is enabled.
func (o *Options) IsDebug() bool { return o.LogLevel == "debug" }
