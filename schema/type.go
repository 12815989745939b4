package schema

import (
	"fmt"
	"strconv"
)

// Type is the logical type of a field.
type Type uint8

// Logical field types. The set is closed.
const (
	TypeInvalid Type = iota
	TypeInt32
	TypeInt64
	TypeUint32
	TypeUint64
	TypeBool
	TypeFloat
	TypeDouble
	TypeString
	TypeBytes
	TypeMessage
	TypeEnum
	endTypes
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeInt32:   "int32",
	TypeInt64:   "int64",
	TypeUint32:  "uint32",
	TypeUint64:  "uint64",
	TypeBool:    "bool",
	TypeFloat:   "float",
	TypeDouble:  "double",
	TypeString:  "string",
	TypeBytes:   "bytes",
	TypeMessage: "message",
	TypeEnum:    "enum",
}

// String returns the schema spelling of the type.
func (t Type) String() string {
	if t < endTypes {
		return typeNames[t]
	}
	return "type(" + strconv.Itoa(int(t)) + ")"
}

// Valid reports if the type is a known logical type.
func (t Type) Valid() bool { return t > TypeInvalid && t < endTypes }

// Numeric reports if the type is an integer or floating point type.
func (t Type) Numeric() bool { return t >= TypeInt32 && t <= TypeDouble && t != TypeBool }

// Scalar reports if the type is stored and passed by value:
// numbers, booleans and enums.
func (t Type) Scalar() bool { return (t >= TypeInt32 && t <= TypeDouble) || t == TypeEnum }

// Buffer reports if the type is a string or a byte blob.
func (t Type) Buffer() bool { return t == TypeString || t == TypeBytes }

// Named reports if the type refers to another schema element.
func (t Type) Named() bool { return t == TypeMessage || t == TypeEnum }

// ParseType returns the builtin type spelled s. Message and enum
// references are not builtins and return false.
func ParseType(s string) (Type, bool) {
	for t := TypeInt32; t <= TypeBytes; t++ {
		if typeNames[t] == s {
			return t, true
		}
	}
	return TypeInvalid, false
}

// Quantifier is the cardinality of a field.
type Quantifier uint8

// Field quantifiers.
const (
	Required Quantifier = iota
	Optional
	Repeated
)

// String returns the schema label of the quantifier.
func (q Quantifier) String() string {
	switch q {
	case Required:
		return "required"
	case Optional:
		return "optional"
	case Repeated:
		return "repeated"
	default:
		return "quantifier(" + strconv.Itoa(int(q)) + ")"
	}
}

// ParseQuantifier parses a schema label.
func ParseQuantifier(s string) (Quantifier, error) {
	switch s {
	case "required":
		return Required, nil
	case "optional", "":
		return Optional, nil
	case "repeated":
		return Repeated, nil
	default:
		return 0, fmt.Errorf("schema: unknown field label %q", s)
	}
}

// Position is a location in a schema file.
type Position struct {
	File string `msgpack:"f,omitempty"`
	Line int    `msgpack:"l,omitempty"`
}

// String formats the position as "file:line".
func (p Position) String() string {
	if p.Line > 0 {
		return p.File + ":" + strconv.Itoa(p.Line)
	}
	return p.File
}
