package cppgen

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel errors for the error taxonomy of the generator.
var (
	// ErrConfiguration indicates a required option is missing or malformed
	// after layered resolution.
	ErrConfiguration = errors.New("cppgen: configuration error")

	// ErrPlanning indicates an unresolvable type/option combination for a field.
	ErrPlanning = errors.New("cppgen: planning error")

	// ErrRender indicates a failure while assembling an artifact's text.
	ErrRender = errors.New("cppgen: render error")

	// ErrCache indicates a corrupt or unreadable cache blob.
	ErrCache = errors.New("cppgen: cache error")
)

// location formats "file:line" omitting the parts that are unknown.
func location(file string, line int) string {
	switch {
	case file == "":
		return ""
	case line > 0:
		return file + ":" + strconv.Itoa(line)
	default:
		return file
	}
}

// ConfigurationError reports a missing or malformed option of one schema
// element. It is fatal for that element only.
type ConfigurationError struct {
	Element string // Dotted element path, e.g. "acme.shop.Checkout".
	Option  string // Option name, if applicable.
	File    string
	Line    int
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("cppgen: configuration error")
	if loc := location(e.File, e.Line); loc != "" {
		b.WriteString(" at ")
		b.WriteString(loc)
	}
	if e.Element != "" {
		b.WriteString(" on ")
		b.WriteString(e.Element)
	}
	if e.Option != "" {
		fmt.Fprintf(&b, " option %q", e.Option)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error { return e.Cause }

// Is reports whether the target matches ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(element, option, message string) *ConfigurationError {
	return &ConfigurationError{Element: element, Option: option, Message: message}
}

// PlanningError reports a field whose storage type, accessors or default
// cannot be planned. It is fatal for the containing message.
type PlanningError struct {
	Message string // Message name.
	Field   string // Field name, if applicable.
	File    string
	Line    int
	Reason  string
	Cause   error
}

// Error implements the error interface.
func (e *PlanningError) Error() string {
	var b strings.Builder
	b.WriteString("cppgen: planning error")
	if loc := location(e.File, e.Line); loc != "" {
		b.WriteString(" at ")
		b.WriteString(loc)
	}
	if e.Message != "" {
		b.WriteString(" in message ")
		b.WriteString(e.Message)
	}
	if e.Field != "" {
		b.WriteString(" field ")
		b.WriteString(e.Field)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *PlanningError) Unwrap() error { return e.Cause }

// Is reports whether the target matches ErrPlanning.
func (e *PlanningError) Is(target error) bool { return target == ErrPlanning }

// RenderError reports a failure while producing one artifact. The build
// manager catches it per artifact.
type RenderError struct {
	Target  string // Artifact path.
	Phase   string // "declaration", "implementation", "descriptor-set", ...
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *RenderError) Error() string {
	var b strings.Builder
	b.WriteString("cppgen: render error")
	if e.Phase != "" {
		b.WriteString(" in phase ")
		b.WriteString(e.Phase)
	}
	if e.Target != "" {
		b.WriteString(" (target: ")
		b.WriteString(e.Target)
		b.WriteString(")")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *RenderError) Unwrap() error { return e.Cause }

// Is reports whether the target matches ErrRender.
func (e *RenderError) Is(target error) bool { return target == ErrRender }

// NewRenderError creates a new RenderError.
func NewRenderError(target, phase, message string, cause error) *RenderError {
	return &RenderError{Target: target, Phase: phase, Message: message, Cause: cause}
}

// CacheError reports an unreadable cache blob. It is never fatal: callers
// fall back to a full reparse or regeneration.
type CacheError struct {
	Path    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *CacheError) Error() string {
	var b strings.Builder
	b.WriteString("cppgen: cache error")
	if e.Path != "" {
		b.WriteString(" (")
		b.WriteString(e.Path)
		b.WriteString(")")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *CacheError) Unwrap() error { return e.Cause }

// Is reports whether the target matches ErrCache.
func (e *CacheError) Is(target error) bool { return target == ErrCache }

// NewCacheError creates a new CacheError.
func NewCacheError(path, message string, cause error) *CacheError {
	return &CacheError{Path: path, Message: message, Cause: cause}
}

// Warning is a non-blocking diagnostic collected during generation.
type Warning struct {
	File    string
	Line    int
	Element string
	Message string
}

// String formats the warning for reporting.
func (w Warning) String() string {
	var b strings.Builder
	if loc := location(w.File, w.Line); loc != "" {
		b.WriteString(loc)
		b.WriteString(": ")
	}
	if w.Element != "" {
		b.WriteString(w.Element)
		b.WriteString(": ")
	}
	b.WriteString(w.Message)
	return b.String()
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var e *ConfigurationError
	return errors.As(err, &e)
}

// IsPlanningError reports whether err is or wraps a PlanningError.
func IsPlanningError(err error) bool {
	var e *PlanningError
	return errors.As(err, &e)
}

// IsRenderError reports whether err is or wraps a RenderError.
func IsRenderError(err error) bool {
	var e *RenderError
	return errors.As(err, &e)
}

// IsCacheError reports whether err is or wraps a CacheError.
func IsCacheError(err error) bool {
	var e *CacheError
	return errors.As(err, &e)
}
