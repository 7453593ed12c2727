package server

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ironsheep/point-tracker-mcp/internal/imaging"
	"github.com/ironsheep/point-tracker-mcp/internal/lk"
)

// Config holds the tracking defaults applied when a tool call does not
// override them.
type Config struct {
	// WindowSize is the odd window side used by the matcher.
	WindowSize int

	// MinEigenvalue is the caller eigenvalue floor passed to lk.Match.
	MinEigenvalue float64

	// BlurRadius is the Gaussian pre-smoothing radius, 0 to disable.
	BlurRadius float64

	// Luma is "bt601" or "lab".
	Luma string

	// Gradient is "sobel" or "central".
	Gradient string

	// LegacyResidualStride reproduces the half-width residual stride.
	LegacyResidualStride bool

	// Debug logs every incoming request.
	Debug bool
}

// DefaultConfig returns the configuration used when no environment
// overrides are present.
func DefaultConfig() Config {
	return Config{
		WindowSize:    lk.DefaultWindowSize,
		MinEigenvalue: 1e-3,
		Luma:          string(imaging.LumaBT601),
		Gradient:      string(imaging.GradientSobel),
	}
}

// Environment variables read by ConfigFromEnv.
const (
	EnvLogLevel       = "TRACK_MCP_LOG_LEVEL"
	EnvWindowSize     = "TRACK_MCP_WINDOW_SIZE"
	EnvMinEigenvalue  = "TRACK_MCP_MIN_EIGENVALUE"
	EnvBlurRadius     = "TRACK_MCP_BLUR_RADIUS"
	EnvLuma           = "TRACK_MCP_LUMA"
	EnvGradient       = "TRACK_MCP_GRADIENT"
	EnvLegacyResidual = "TRACK_MCP_LEGACY_RESIDUAL"
)

// ConfigFromEnv applies environment overrides to DefaultConfig. getenv is
// normally os.Getenv. Unset or empty variables keep their defaults.
func ConfigFromEnv(getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()

	cfg.Debug = strings.EqualFold(getenv(EnvLogLevel), "debug")

	if v := getenv(EnvWindowSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", EnvWindowSize, err)
		}
		cfg.WindowSize = n
	}
	if v := getenv(EnvMinEigenvalue); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", EnvMinEigenvalue, err)
		}
		cfg.MinEigenvalue = f
	}
	if v := getenv(EnvBlurRadius); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", EnvBlurRadius, err)
		}
		cfg.BlurRadius = f
	}
	if v := getenv(EnvLuma); v != "" {
		cfg.Luma = v
	}
	if v := getenv(EnvGradient); v != "" {
		cfg.Gradient = v
	}
	if v := getenv(EnvLegacyResidual); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", EnvLegacyResidual, err)
		}
		cfg.LegacyResidualStride = b
	}

	return cfg, cfg.Validate()
}

// Validate checks that the configured defaults would produce a working
// matcher and plane builder.
func (c Config) Validate() error {
	if _, err := lk.NewMatcher(lk.WithWindowSize(c.WindowSize)); err != nil {
		return err
	}
	if c.BlurRadius < 0 {
		return fmt.Errorf("blur radius must be >= 0, got %g", c.BlurRadius)
	}
	if _, err := imaging.ParseLumaModel(c.Luma); err != nil {
		return err
	}
	if _, err := imaging.ParseGradientOperator(c.Gradient); err != nil {
		return err
	}
	return nil
}
