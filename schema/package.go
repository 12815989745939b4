package schema

import "strings"

// The following types are produced by a parser and annotated in place by
// numbering, resolution and option resolution.
type (
	// Package is the root container of one schema file.
	Package struct {
		// Name is the dotted package name, e.g. "acme.shop".
		Name string `msgpack:"name"`
		// Path of the schema file. It keys the schema cache.
		Path string `msgpack:"path"`
		// Imports are the names of packages whose types this package uses.
		Imports  []string   `msgpack:"imports,omitempty"`
		Messages []*Message `msgpack:"messages,omitempty"`
		Enums    []*Enum    `msgpack:"enums,omitempty"`
		Services []*Service `msgpack:"services,omitempty"`
		Options  []Option   `msgpack:"options,omitempty"`
		Pos      Position   `msgpack:"pos"`

		// Resolved holds the options after layered resolution.
		Resolved OptionSet `msgpack:"-"`

		messages []*Message
		enums    []*Enum
	}

	// Message is a value class with ordered fields.
	Message struct {
		Name     string     `msgpack:"name"`
		Fields   []*Field   `msgpack:"fields,omitempty"`
		Enums    []*Enum    `msgpack:"enums,omitempty"`
		Messages []*Message `msgpack:"messages,omitempty"`
		Options  []Option   `msgpack:"options,omitempty"`
		Pos      Position   `msgpack:"pos"`
		// ID is the package-wide internal id assigned by Package.Number.
		ID int `msgpack:"id"`

		Resolved OptionSet `msgpack:"-"`

		parent *Message
	}

	// Field is one member of a message.
	Field struct {
		Name       string     `msgpack:"name"`
		Type       Type       `msgpack:"type"`
		Quantifier Quantifier `msgpack:"quantifier"`
		Number     int        `msgpack:"number"`
		// Default is the schema-declared default, valid if HasDefault.
		Default    string `msgpack:"default,omitempty"`
		HasDefault bool   `msgpack:"has_default,omitempty"`
		// TypeName is the referenced type as written for message and enum
		// fields. Parsers set Type to TypeMessage for every named reference;
		// Set.Resolve switches it to TypeEnum when the name denotes an enum.
		TypeName string   `msgpack:"type_name,omitempty"`
		Ref      *Ref     `msgpack:"ref,omitempty"`
		Options  []Option `msgpack:"options,omitempty"`
		Pos      Position `msgpack:"pos"`

		Resolved OptionSet `msgpack:"-"`
	}

	// Ref addresses a message or enum in the arena of a package.
	Ref struct {
		Package string `msgpack:"p"`
		ID      int    `msgpack:"i"`
	}

	// Enum is an ordered list of named integer values.
	Enum struct {
		Name    string       `msgpack:"name"`
		Values  []*EnumValue `msgpack:"values,omitempty"`
		Options []Option     `msgpack:"options,omitempty"`
		Pos     Position     `msgpack:"pos"`
		ID      int          `msgpack:"id"`

		Resolved OptionSet `msgpack:"-"`

		parent *Message
	}

	// EnumValue is one (name, number) pair of an enum.
	EnumValue struct {
		Name    string   `msgpack:"name"`
		Number  int32    `msgpack:"number"`
		Options []Option `msgpack:"options,omitempty"`
		Pos     Position `msgpack:"pos"`

		Resolved OptionSet `msgpack:"-"`
	}
)

// Number assigns package-wide internal ids to messages and enums in
// pre-order (a parent before its children, declaration order among
// siblings) and links children to their parents. It is idempotent and
// must be called again after a package is decoded from the cache.
func (p *Package) Number() {
	p.messages = p.messages[:0]
	p.enums = p.enums[:0]
	for _, e := range p.Enums {
		e.parent = nil
		e.ID = len(p.enums)
		p.enums = append(p.enums, e)
	}
	for _, m := range p.Messages {
		p.number(m, nil)
	}
}

func (p *Package) number(m, parent *Message) {
	m.parent = parent
	m.ID = len(p.messages)
	p.messages = append(p.messages, m)
	for _, e := range m.Enums {
		e.parent = m
		e.ID = len(p.enums)
		p.enums = append(p.enums, e)
	}
	for _, c := range m.Messages {
		p.number(c, m)
	}
}

// Message returns the message with the given internal id.
func (p *Package) Message(id int) *Message {
	if id < 0 || id >= len(p.messages) {
		return nil
	}
	return p.messages[id]
}

// Enum returns the enum with the given internal id.
func (p *Package) Enum(id int) *Enum {
	if id < 0 || id >= len(p.enums) {
		return nil
	}
	return p.enums[id]
}

// AllMessages returns every message of the package, nested ones included,
// in internal id order.
func (p *Package) AllMessages() []*Message { return p.messages }

// AllEnums returns every enum of the package in internal id order.
func (p *Package) AllEnums() []*Enum { return p.enums }

// Parent returns the enclosing message, or nil for a top-level message.
func (m *Message) Parent() *Message { return m.parent }

// Path returns the dotted path of the message inside its package,
// e.g. "Outer.Inner".
func (m *Message) Path() string {
	if m.parent == nil {
		return m.Name
	}
	return m.parent.Path() + "." + m.Name
}

// Encloses reports if m is other or one of other's ancestors.
func (m *Message) Encloses(other *Message) bool {
	for o := other; o != nil; o = o.parent {
		if o == m {
			return true
		}
	}
	return false
}

// Field returns the field with the given name.
func (m *Message) Field(name string) (*Field, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// Parent returns the enclosing message, or nil for a package-level enum.
func (e *Enum) Parent() *Message { return e.parent }

// Path returns the dotted path of the enum inside its package.
func (e *Enum) Path() string {
	if e.parent == nil {
		return e.Name
	}
	return e.parent.Path() + "." + e.Name
}

// DefaultValue returns the value named name, or the first declared value
// if name is empty. It returns nil if the enum has no such value.
func (e *Enum) DefaultValue(name string) *EnumValue {
	if name == "" {
		if len(e.Values) == 0 {
			return nil
		}
		return e.Values[0]
	}
	for _, v := range e.Values {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// Repeated reports if the field is repeated.
func (f *Field) Repeated() bool { return f.Quantifier == Repeated }

// Required reports if the field is required.
func (f *Field) Required() bool { return f.Quantifier == Required }

// Dir returns the package name as a relative slash-separated path,
// e.g. "acme/shop" for "acme.shop".
func (p *Package) Dir() string { return strings.ReplaceAll(p.Name, ".", "/") }
