package gen

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/syssam/cppgen"
)

// Option configures code generation.
type Option func(*Config) error

// WithHeader sets the file header comment.
// The header is added at the top of each generated file.
func WithHeader(header string) Option {
	return func(c *Config) error {
		c.Header = header
		return nil
	}
}

// WithTarget sets the output directory.
// The directory where generated code will be written.
func WithTarget(dir string) Option {
	return func(c *Config) error {
		if dir == "" {
			return cppgen.NewConfigurationError("config", "target", "target directory cannot be empty")
		}
		c.Target = dir
		return nil
	}
}

// WithFeatures enables specific features.
// Features control optional code generation capabilities.
func WithFeatures(features ...Feature) Option {
	return func(c *Config) error {
		for _, f := range features {
			if !c.HasFeature(f.Name) {
				c.Features = append(c.Features, f)
			}
		}
		return nil
	}
}

// WithFeatureToggles replaces the enabled features by the built-in
// features resolved from explicit on/off toggles and the defaults.
func WithFeatureToggles(toggles map[string]bool) Option {
	return func(c *Config) error {
		features, err := ResolveFeatures(AllFeatures, toggles)
		if err != nil {
			return err
		}
		c.Features = features
		return nil
	}
}

// WithLogger sets the logger of the generator.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Config) error {
		c.Logger = l
		return nil
	}
}

// Apply applies options to the config.
// It returns the first error encountered.
func (c *Config) Apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}
	return nil
}

// ApplyAll applies options and collects all errors.
// Returns a joined error if any options failed.
func (c *Config) ApplyAll(opts ...Option) error {
	var errs []error
	for _, opt := range opts {
		if err := opt(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewConfig creates a new Config from the defaults and the given options.
func NewConfig(opts ...Option) (*Config, error) {
	c := DefaultConfig()
	if err := c.Apply(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

// MustNewConfig creates a new Config with the given options.
// It panics if any option fails.
func MustNewConfig(opts ...Option) *Config {
	c, err := NewConfig(opts...)
	if err != nil {
		panic(err)
	}
	return c
}
