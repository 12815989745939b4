package gen

import (
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/syssam/cppgen"
)

// defaultHeader is the first line of every generated file.
const defaultHeader = "// Code generated by cppgen. DO NOT EDIT."

// Names of the build-wide descriptor set artifacts, relative to the target.
const (
	DescriptorSetHeader = "descriptor_set.h"
	DescriptorSetSource = "descriptor_set.cc"
)

// Config holds the configuration of the C++ generator.
type Config struct {
	// Target is the output directory of the generated files.
	Target string

	// Header is the comment written at the top of each generated file.
	Header string

	// Features holds the enabled feature-flags.
	Features []Feature

	// Logger receives generator diagnostics.
	Logger zerolog.Logger
}

// DefaultConfig returns a config with the default header and the features
// enabled by default.
func DefaultConfig() *Config {
	c := &Config{Header: defaultHeader, Logger: zerolog.Nop()}
	for _, f := range AllFeatures {
		if f.Default {
			c.Features = append(c.Features, f)
		}
	}
	return c
}

// FeatureEnabled reports if the given feature name is enabled.
// It returns an error if the feature is unknown.
func (c *Config) FeatureEnabled(name string) (bool, error) {
	if _, ok := FeatureByName(name); !ok {
		return false, cppgen.NewConfigurationError("features", name, "unknown feature")
	}
	return c.HasFeature(name), nil
}

// HasFeature reports if the feature name is enabled.
func (c *Config) HasFeature(name string) bool {
	return slices.ContainsFunc(c.Features, func(f Feature) bool { return f.Name == name })
}

// Validate checks the dependencies and conflicts of the enabled features.
func (c *Config) Validate() error {
	if c.Target == "" {
		return cppgen.NewConfigurationError("config", "target", "missing target directory")
	}
	for _, f := range c.Features {
		for _, dep := range f.DependsOn {
			if !c.HasFeature(dep) {
				return cppgen.NewConfigurationError("features", f.Name,
					fmt.Sprintf("depends on disabled feature %q", dep))
			}
		}
		for _, other := range f.ConflictsWith {
			if c.HasFeature(other) {
				return cppgen.NewConfigurationError("features", f.Name,
					fmt.Sprintf("conflicts with enabled feature %q", other))
			}
		}
	}
	return nil
}

// Cleanup runs the cleanup of every disabled built-in feature, removing
// files a previous run generated for it.
func (c *Config) Cleanup() error {
	for _, f := range AllFeatures {
		if f.cleanup == nil || c.HasFeature(f.Name) {
			continue
		}
		if err := f.cleanup(c); err != nil {
			return fmt.Errorf("cleanup %s: %w", f.Name, err)
		}
	}
	return nil
}
