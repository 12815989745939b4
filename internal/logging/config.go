// Package logging builds the zerolog loggers of cppgen.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	EnvLogLevel     = "CPPGEN_LOG_LEVEL"
	EnvLogTimestamp = "CPPGEN_LOG_TIMESTAMP"
	EnvLogNoColor   = "CPPGEN_LOG_NOCOLOR"
	EnvLogJSON      = "CPPGEN_LOG_JSON"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Config controls the output of a logger.
type Config struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
	// JSON writes structured lines instead of the console format.
	JSON bool
}

// DefaultConfig returns the config of profile before environment
// overrides.
func DefaultConfig(profile Profile) Config {
	switch profile {
	case ProfileTest:
		return Config{Level: zerolog.DebugLevel, NoColor: true}
	default:
		return Config{Level: zerolog.InfoLevel, Timestamp: true}
	}
}

// New returns a logger writing to w with the config of profile and the
// CPPGEN_LOG_* overrides of the environment.
func New(profile Profile, w io.Writer) zerolog.Logger {
	cfg := DefaultConfig(profile)
	ApplyEnv(&cfg, os.Getenv)
	return cfg.Logger(w)
}

// Logger returns a logger writing to w.
func (c Config) Logger(w io.Writer) zerolog.Logger {
	if !c.JSON {
		w = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    c.NoColor,
			TimeFormat: time.RFC3339,
			PartsExclude: func() []string {
				if c.Timestamp {
					return nil
				}
				return []string{zerolog.TimestampFieldName}
			}(),
		}
	}
	ctx := zerolog.New(w).Level(c.Level).With()
	if c.Timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger()
}

// ApplyEnv overrides cfg with the variables getenv returns. Malformed
// values are ignored.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if lvl, ok := parseLevel(getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
	if v, ok := parseBool(getenv(EnvLogJSON)); ok {
		cfg.JSON = v
	}
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
