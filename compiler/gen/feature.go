package gen

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/syssam/cppgen"
)

var (
	// FeatureReflection provides a feature-flag for lazily built message
	// descriptors and the process-wide descriptor set.
	FeatureReflection = Feature{
		Name:        "reflection",
		Stage:       Stable,
		Default:     true,
		Description: "Reflection generates GetMessageDescriptor for every message and the descriptor set that owns the descriptors",
		cleanup: func(c *Config) error {
			if err := remove(c.Target, DescriptorSetHeader); err != nil {
				return err
			}
			return remove(c.Target, DescriptorSetSource)
		},
	}

	// FeatureSeparateInlines provides a feature-flag for defining accessors
	// as inline functions after all class definitions instead of inside the
	// class bodies.
	FeatureSeparateInlines = Feature{
		Name:        "separate-inlines",
		Stage:       Stable,
		Default:     false,
		Description: "SeparateInlines defines accessors out of class, after all classes of the package",
	}

	// FeatureServices provides a feature-flag for service command tables.
	FeatureServices = Feature{
		Name:        "services",
		Stage:       Beta,
		Default:     true,
		Description: "Services generates a command table per service with a request descriptor lookup",
		DependsOn:   []string{"reflection"},
	}

	// AllFeatures holds a list of all feature-flags.
	AllFeatures = []Feature{
		FeatureReflection,
		FeatureSeparateInlines,
		FeatureServices,
	}
)

// FeatureStage describes the stage of the codegen feature.
type FeatureStage int

const (
	_ FeatureStage = iota

	// Experimental features are in development and may change or go away.
	Experimental

	// Alpha features are complete but their output may still change.
	Alpha

	// Beta features are not expected to change their output.
	Beta

	// Stable features are Beta features that have been in use for a while.
	Stable
)

// A Feature of the generator. Capabilities are optional: a feature may
// require other features (DependsOn) or exclude them (ConflictsWith).
type Feature struct {
	// Name of the feature.
	Name string

	// Stage of the feature.
	Stage FeatureStage

	// Default values indicates if this feature is enabled by default.
	Default bool

	// A Description of this feature.
	Description string

	// DependsOn lists the features that must be enabled with this one.
	DependsOn []string

	// ConflictsWith lists the features that must not be enabled with this one.
	ConflictsWith []string

	// cleanup used to cleanup all changes when a feature-flag is removed.
	// e.g. delete files from previous codegen runs.
	cleanup func(*Config) error
}

// FeatureByName returns the built-in feature with the given name.
func FeatureByName(name string) (Feature, bool) {
	for _, f := range AllFeatures {
		if f.Name == name {
			return f, true
		}
	}
	return Feature{}, false
}

// ResolveFeatures returns the enabled features in the order of available.
// A feature is enabled if toggles says so or, when toggles does not name
// it, if it is enabled by default. A default feature whose dependency is
// disabled is dropped; an explicitly enabled one is an error, as is an
// enabled feature conflicting with another enabled feature.
func ResolveFeatures(available []Feature, toggles map[string]bool) ([]Feature, error) {
	known := make(map[string]Feature, len(available))
	for _, f := range available {
		known[f.Name] = f
	}
	var errs []string
	for _, name := range sortedNames(toggles) {
		if _, ok := known[name]; !ok {
			errs = append(errs, fmt.Sprintf("unknown feature %q", name))
		}
	}
	enabled := make(map[string]bool, len(available))
	for _, f := range available {
		on, explicit := toggles[f.Name]
		if !explicit {
			on = f.Default
		}
		enabled[f.Name] = on
	}
	// Dropping a default feature can break another default's dependency, so
	// iterate until nothing changes.
	for changed := true; changed; {
		changed = false
		for _, f := range available {
			if !enabled[f.Name] {
				continue
			}
			for _, dep := range f.DependsOn {
				if enabled[dep] {
					continue
				}
				if _, explicit := toggles[f.Name]; explicit {
					errs = append(errs, fmt.Sprintf("feature %q depends on disabled feature %q", f.Name, dep))
				}
				enabled[f.Name] = false
				changed = true
				break
			}
		}
	}
	var out []Feature
	for _, f := range available {
		if !enabled[f.Name] {
			continue
		}
		for _, c := range f.ConflictsWith {
			if enabled[c] {
				errs = append(errs, fmt.Sprintf("feature %q conflicts with enabled feature %q", f.Name, c))
			}
		}
		out = append(out, f)
	}
	if len(errs) > 0 {
		return nil, cppgen.NewConfigurationError("features", "", strings.Join(slices.Compact(errs), "; "))
	}
	return out, nil
}

func sortedNames(m map[string]bool) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// remove file (if exists) and its dir if it's empty.
func remove(dir, file string) error {
	if err := os.Remove(filepath.Join(dir, file)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	infos, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		return os.Remove(dir)
	}
	return nil
}
