package config

import (
	"flag"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/tripwatch/tripwatch/internal/errors"
)

const (
	DefaultLogLevel = "info"

	defaultSpeedThresholdMPH      = 5.0
	defaultSpeedDetectionDuration = 15 * time.Second
	defaultAutoStopDuration       = 30 * time.Minute
	defaultMaxStepMeters          = 1000.0
	defaultMaxPlausibleSpeed      = 200.0 // m/s
	defaultWindowSize             = 5
	defaultDiagInterval           = 20 * time.Second
	defaultDiagCapacity           = 60
	defaultTripsDB                = "/var/lib/tripwatch/trips.db"
)

type Config struct {
	// Trip detection
	SpeedThresholdMPH      float64       `mapstructure:"speed_threshold_mph"`
	SpeedDetectionDuration time.Duration `mapstructure:"speed_detection_duration"`
	AutoStopDuration       time.Duration `mapstructure:"auto_stop_duration"`

	// Location stream
	MaxStepMeters     float64 `mapstructure:"max_step_meters"`
	MaxPlausibleSpeed float64 `mapstructure:"max_plausible_speed"`
	WindowSize        int     `mapstructure:"window_size"`

	// Diagnostics
	DiagInterval time.Duration `mapstructure:"diag_interval"`
	DiagCapacity int           `mapstructure:"diag_capacity"`

	// Trip persistence
	Trips   bool   `mapstructure:"trips"`
	TripsDB string `mapstructure:"database"`

	// Fix source: path to an NMEA stream ("-" for stdin)
	Source string `mapstructure:"source"`

	LogLevel string `mapstructure:"log_level"`
	Debug    bool   `mapstructure:"debug"`
	Verbose  bool   `mapstructure:"verbose"`
}

func Load() (*Config, error) {
	errFactory := errors.New()
	config := &Config{}

	viper.Reset()

	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	debugFlag := fs.Bool("debug", false, "Enable debugging mode")
	verboseFlag := fs.Bool("verbose", false, "Enable verbose logging")
	logLevelFlag := fs.String("log-level", "", "Log level (debug, info, warning, error)")
	sourceFlag := fs.String("source", "", "Path to NMEA fix stream (\"-\" for stdin)")
	tripsFlag := fs.Bool("trips", false, "Enable trip persistence")
	databaseFlag := fs.String("database", "", "Path to the trip database")

	// Unknown flags (e.g. the test harness's own) are not ours to reject;
	// a failed parse just means no flag overrides.
	fs.SetOutput(io.Discard)
	_ = fs.Parse(os.Args[1:])

	setDefaults()

	// Load configuration from file. An explicit TRIPWATCH_CONFIG path wins
	// over the /etc search path; a missing file is not an error.
	if path := os.Getenv("TRIPWATCH_CONFIG"); path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("tripwatch")
		viper.SetConfigType("toml")
		viper.AddConfigPath("/etc")
	}
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, errFactory.WithMessage(errors.ErrReadConfig, "Failed to read config file").WithData(err.Error())
			}
		}
	}

	// Override config file values with command line flags
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "debug":
			viper.Set("debug", *debugFlag)
		case "verbose":
			viper.Set("verbose", *verboseFlag)
		case "log-level":
			viper.Set("log_level", *logLevelFlag)
		case "source":
			viper.Set("source", *sourceFlag)
		case "trips":
			viper.Set("trips", *tripsFlag)
		case "database":
			viper.Set("database", *databaseFlag)
		}
	})

	if err := viper.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	applyLogLevel(config)

	return config, nil
}

func setDefaults() {
	viper.SetDefault("speed_threshold_mph", defaultSpeedThresholdMPH)
	viper.SetDefault("speed_detection_duration", defaultSpeedDetectionDuration)
	viper.SetDefault("auto_stop_duration", defaultAutoStopDuration)
	viper.SetDefault("max_step_meters", defaultMaxStepMeters)
	viper.SetDefault("max_plausible_speed", defaultMaxPlausibleSpeed)
	viper.SetDefault("window_size", defaultWindowSize)
	viper.SetDefault("diag_interval", defaultDiagInterval)
	viper.SetDefault("diag_capacity", defaultDiagCapacity)
	viper.SetDefault("trips", false)
	viper.SetDefault("database", defaultTripsDB)
	viper.SetDefault("source", "-")
	viper.SetDefault("log_level", DefaultLogLevel)
}

// Validate checks that every tunable is inside its legal domain.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if c.SpeedThresholdMPH <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "speed_threshold_mph must be positive")
	}
	if c.SpeedDetectionDuration <= 0 || c.AutoStopDuration <= 0 || c.DiagInterval <= 0 {
		return errFactory.New(errors.ErrInvalidInterval)
	}
	if c.MaxStepMeters <= 0 || c.MaxPlausibleSpeed <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "plausibility caps must be positive")
	}
	if c.WindowSize < 2 {
		return errFactory.WithData(errors.ErrInvalidConfig, "window_size must be at least 2")
	}
	if c.DiagCapacity < 1 {
		return errFactory.WithData(errors.ErrInvalidConfig, "diag_capacity must be at least 1")
	}
	if c.Trips && c.TripsDB == "" {
		return errFactory.WithData(errors.ErrInvalidConfig, "database path required when trips enabled")
	}

	return nil
}

func applyLogLevel(c *Config) {
	switch {
	case c.Debug || c.LogLevel == "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case c.Verbose || c.LogLevel == "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case c.LogLevel == "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
}
