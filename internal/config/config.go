// ABOUTME: Runtime configuration for the cablecast commands
// ABOUTME: Defaults, optional .env file and CABLECAST_* environment overrides
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/Resonate-Protocol/cablecast/pkg/audio"
	"github.com/Resonate-Protocol/cablecast/pkg/audio/output"
	"github.com/Resonate-Protocol/cablecast/pkg/audio/shape"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Environment variable names
const (
	EnvDevice          = "CABLECAST_DEVICE"
	EnvBackend         = "CABLECAST_BACKEND"
	EnvBitDepth        = "CABLECAST_BIT_DEPTH"
	EnvFramesPerBuffer = "CABLECAST_FRAMES_PER_BUFFER"
	EnvAntiGating      = "CABLECAST_ANTI_GATING"
	EnvLogLevel        = "CABLECAST_LOG_LEVEL"
)

// DefaultEnvFile is loaded when present
const DefaultEnvFile = ".env"

// Config holds everything a play run needs
type Config struct {
	Device          string
	Backend         string
	BitDepth        int
	FramesPerBuffer int
	PrimeChunks     int
	TrailChunks     int
	QueueCapacity   int

	AntiGating bool
	Wake       bool
	Boost      float64

	// Normalize is the target peak; zero disables normalization
	Normalize float64
	// MIME describes headerless input, e.g. "audio/L16;rate=24000"
	MIME string

	LogLevel logrus.Level
	LogFile  string
	NoTUI    bool
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Backend:         output.BackendMalgo,
		BitDepth:        16,
		FramesPerBuffer: 1024,
		PrimeChunks:     10,
		TrailChunks:     20,
		QueueCapacity:   512,
		Boost:           1.0,
		LogLevel:        logrus.InfoLevel,
		LogFile:         "cablecast.log",
	}
}

// Load returns defaults overlaid with envFile (if it exists) and the
// process environment. Variables already set win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvDevice); ok {
		c.Device = v
	}
	if v, ok := os.LookupEnv(EnvBackend); ok && v != "" {
		c.Backend = strings.ToLower(v)
	}
	if v, ok := os.LookupEnv(EnvBitDepth); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvBitDepth, err)
		}
		c.BitDepth = n
	}
	if v, ok := os.LookupEnv(EnvFramesPerBuffer); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvFramesPerBuffer, err)
		}
		c.FramesPerBuffer = n
	}
	if v, ok := os.LookupEnv(EnvAntiGating); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAntiGating, err)
		}
		c.AntiGating = b
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		level, err := logrus.ParseLevel(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
		c.LogLevel = level
	}
	return nil
}

// Validate checks value ranges
func (c Config) Validate() error {
	if _, err := c.Target(); err != nil {
		return err
	}
	if c.FramesPerBuffer <= 0 {
		return fmt.Errorf("frames per buffer must be positive, got %d", c.FramesPerBuffer)
	}
	if c.PrimeChunks < 0 || c.TrailChunks < 0 {
		return errors.New("prime and trail chunk counts must not be negative")
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("queue capacity must be positive, got %d", c.QueueCapacity)
	}
	if c.Boost < 0 {
		return fmt.Errorf("boost must not be negative, got %g", c.Boost)
	}
	if c.Normalize < 0 || c.Normalize > 1 {
		return fmt.Errorf("normalize peak must be within [0, 1], got %g", c.Normalize)
	}

	for _, b := range output.Backends() {
		if b == c.Backend {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", output.ErrUnknownBackend, c.Backend)
}

// Target returns the device format for the configured bit depth
func (c Config) Target() (audio.Format, error) {
	switch c.BitDepth {
	case 8, 16, 24, 32:
		return audio.Target(c.BitDepth)
	default:
		return audio.Format{}, fmt.Errorf("%w: bit depth %d", audio.ErrUnsupportedSampleWidth, c.BitDepth)
	}
}

// ShapeOptions returns the anti-gating options, or nil when shaping is off
func (c Config) ShapeOptions() *shape.Options {
	if !c.AntiGating && !c.Wake && c.Boost == 1.0 {
		return nil
	}

	opts := shape.DefaultOptions()
	if !c.AntiGating {
		opts.PilotAmplitude = 0
	}
	if c.Wake {
		opts = opts.WithWake()
	}
	opts.LevelBoost = c.Boost
	return &opts
}
