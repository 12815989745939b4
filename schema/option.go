package schema

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// CustomThreshold is the first option id reserved for custom extensions.
// Ids below it are built-in options with fixed semantics.
const CustomThreshold = 50000

// Kind is the element kind an option group belongs to.
type Kind uint8

// Element kinds.
const (
	KindPackage Kind = iota
	KindMessage
	KindField
	KindEnum
	KindEnumValue
	KindService
	KindMethod
)

var kindNames = [...]string{
	KindPackage:   "package",
	KindMessage:   "message",
	KindField:     "field",
	KindEnum:      "enum",
	KindEnumValue: "enum_value",
	KindService:   "service",
	KindMethod:    "method",
}

// String returns the configuration spelling of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// ParseKind parses the configuration spelling of a kind.
func ParseKind(s string) (Kind, bool) {
	for i, n := range kindNames {
		if n == s {
			return Kind(i), true
		}
	}
	return 0, false
}

// Option is an option as declared inline in a schema file.
type Option struct {
	Name  string `msgpack:"n"`
	ID    int    `msgpack:"i,omitempty"`
	Value string `msgpack:"v"`
}

// Custom reports if the option is a custom extension.
func (o Option) Custom() bool { return o.ID >= CustomThreshold }

// OptionID identifies a built-in option.
type OptionID int

// Built-in options.
const (
	_ OptionID = iota
	OptNamespace
	OptIncludePrefix
	OptMessageClassName
	OptDatatype
	OptAccessors
	OptDeprecated
	OptEnumClassName
	OptScoped
	OptValueName
	OptServiceClassName
	OptMethodClassName
)

// ValueType is the type of an option value.
type ValueType uint8

// Option value types.
const (
	ValueString ValueType = iota
	ValueBool
	ValueInt
	ValueList
)

// OptionSpec describes a built-in option.
type OptionSpec struct {
	ID       OptionID
	Kind     Kind
	Name     string
	Type     ValueType
	Required bool
}

var builtinOptions = []OptionSpec{
	{ID: OptNamespace, Kind: KindPackage, Name: "namespace"},
	{ID: OptIncludePrefix, Kind: KindPackage, Name: "include_prefix"},
	{ID: OptMessageClassName, Kind: KindMessage, Name: "class_name"},
	{ID: OptDatatype, Kind: KindField, Name: "datatype"},
	{ID: OptAccessors, Kind: KindField, Name: "accessors", Type: ValueList},
	{ID: OptDeprecated, Kind: KindField, Name: "deprecated", Type: ValueBool},
	{ID: OptEnumClassName, Kind: KindEnum, Name: "class_name"},
	{ID: OptScoped, Kind: KindEnum, Name: "scoped", Type: ValueBool},
	{ID: OptValueName, Kind: KindEnumValue, Name: "name"},
	{ID: OptServiceClassName, Kind: KindService, Name: "class_name", Required: true},
	{ID: OptMethodClassName, Kind: KindMethod, Name: "class_name"},
}

// LookupOption returns the built-in option of the given kind and name.
func LookupOption(kind Kind, name string) (OptionSpec, bool) {
	for _, s := range builtinOptions {
		if s.Kind == kind && s.Name == name {
			return s, true
		}
	}
	return OptionSpec{}, false
}

// OptionSpecs returns the built-in options of the given kind in id order.
func OptionSpecs(kind Kind) []OptionSpec {
	var specs []OptionSpec
	for _, s := range builtinOptions {
		if s.Kind == kind {
			specs = append(specs, s)
		}
	}
	return specs
}

// CheckValue reports if value is well-formed for the option type.
func (s OptionSpec) CheckValue(value string) error {
	switch s.Type {
	case ValueBool:
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("expected a boolean, got %q", value)
		}
	case ValueInt:
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return fmt.Errorf("expected an integer, got %q", value)
		}
	}
	return nil
}

// Extension is a resolved custom option.
type Extension struct {
	Name  string
	ID    int
	Value string
}

// OptionSet is the final option set of one element after layered resolution.
type OptionSet struct {
	values     map[OptionID]string
	extensions map[string]Extension
}

// Set stores a built-in option value.
func (s *OptionSet) Set(id OptionID, value string) {
	if s.values == nil {
		s.values = make(map[OptionID]string)
	}
	s.values[id] = value
}

// SetExtension stores a custom option value.
func (s *OptionSet) SetExtension(e Extension) {
	if s.extensions == nil {
		s.extensions = make(map[string]Extension)
	}
	s.extensions[e.Name] = e
}

// Has reports if the built-in option is set.
func (s OptionSet) Has(id OptionID) bool {
	_, ok := s.values[id]
	return ok
}

// String returns a string option.
func (s OptionSet) String(id OptionID) (string, bool) {
	v, ok := s.values[id]
	return v, ok
}

// Bool returns a boolean option, or def if unset or malformed.
func (s OptionSet) Bool(id OptionID, def bool) bool {
	v, ok := s.values[id]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// List returns a comma separated list option with blanks removed.
func (s OptionSet) List(id OptionID) ([]string, bool) {
	v, ok := s.values[id]
	if !ok {
		return nil, false
	}
	var list []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list, true
}

// Extensions returns the custom options sorted by id, then name.
func (s OptionSet) Extensions() []Extension {
	exts := make([]Extension, 0, len(s.extensions))
	for _, e := range s.extensions {
		exts = append(exts, e)
	}
	slices.SortFunc(exts, func(a, b Extension) int {
		if a.ID != b.ID {
			return a.ID - b.ID
		}
		return strings.Compare(a.Name, b.Name)
	})
	return exts
}

// Len returns the number of options set.
func (s OptionSet) Len() int { return len(s.values) + len(s.extensions) }
