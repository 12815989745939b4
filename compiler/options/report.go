package options

import (
	"errors"
	"slices"
	"strings"

	"github.com/syssam/cppgen"
	"github.com/syssam/cppgen/schema"
)

// Customization is an element kind and option name pair that carries a
// custom extension somewhere in the build.
type Customization struct {
	Kind schema.Kind
	Name string
}

// String returns "kind.name".
func (c Customization) String() string { return c.Kind.String() + "." + c.Name }

// Report is the outcome of one resolution pass.
type Report struct {
	// Warnings never block generation.
	Warnings []cppgen.Warning
	// Errors are ConfigurationErrors, in resolution order.
	Errors []error

	customized     map[Customization]struct{}
	failedPackages map[string]bool
	failedServices map[string]bool
}

func newReport() *Report {
	return &Report{
		customized:     make(map[Customization]struct{}),
		failedPackages: make(map[string]bool),
		failedServices: make(map[string]bool),
	}
}

func (r *Report) warn(file string, line int, element, msg string) {
	r.Warnings = append(r.Warnings, cppgen.Warning{File: file, Line: line, Element: element, Message: msg})
}

// Err joins every collected error, or returns nil.
func (r *Report) Err() error { return errors.Join(r.Errors...) }

// PackageFailed reports if an element of the package other than a service
// failed to resolve. Such a package produces no artifacts.
func (r *Report) PackageFailed(pkg string) bool { return r.failedPackages[pkg] }

// ServiceFailed reports if the service or one of its commands failed to
// resolve. Such a service is omitted from the generated output.
func (r *Report) ServiceFailed(pkg, service string) bool {
	return r.failedServices[pkg+"."+service]
}

// Customized returns the customized kind and option pairs sorted by kind,
// then name.
func (r *Report) Customized() []Customization {
	out := make([]Customization, 0, len(r.customized))
	for c := range r.customized {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Customization) int {
		if a.Kind != b.Kind {
			return int(a.Kind) - int(b.Kind)
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}
