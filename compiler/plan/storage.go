package plan

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/syssam/cppgen/schema"
)

// Runtime is the C++ namespace of the support library generated code
// links against.
const Runtime = "::cppgen::rt"

// Concrete representations of string and bytes fields, as named by the
// datatype option.
const (
	RepString      = "string"
	RepCowString   = "cow_string"
	RepTextBuilder = "text_builder"
	RepBlob        = "blob"
	RepCowBlob     = "cow_blob"
)

type rep struct {
	cpp string
	// shared reps are copy-on-write or plain values and live in a value
	// vector when repeated; owned buffers live in a pointer vector.
	shared bool
}

var reps = map[string]rep{
	RepString:      {cpp: "std::string", shared: true},
	RepCowString:   {cpp: Runtime + "::CowString", shared: true},
	RepTextBuilder: {cpp: Runtime + "::TextBuilder"},
	RepBlob:        {cpp: Runtime + "::Blob"},
	RepCowBlob:     {cpp: Runtime + "::CowBlob", shared: true},
}

// repsByType lists the valid datatypes per logical type; the first entry
// is the default.
var repsByType = map[schema.Type][]string{
	schema.TypeString: {RepString, RepCowString, RepTextBuilder},
	schema.TypeBytes:  {RepBlob, RepCowBlob, RepString},
}

var scalarTypes = map[schema.Type]string{
	schema.TypeInt32:  "int32_t",
	schema.TypeInt64:  "int64_t",
	schema.TypeUint32: "uint32_t",
	schema.TypeUint64: "uint64_t",
	schema.TypeBool:   "bool",
	schema.TypeFloat:  "float",
	schema.TypeDouble: "double",
}

// Runtime container templates.
const (
	ValueVector   = Runtime + "::ValueVector"
	OwningVector  = Runtime + "::OwningVector"
	AutoPtrVector = Runtime + "::AutoPtrVector"
)

// chooseRep returns the datatype of a string or bytes field.
func chooseRep(t schema.Type, datatype string) (string, error) {
	valid := repsByType[t]
	if datatype == "" {
		return valid[0], nil
	}
	for _, r := range valid {
		if r == datatype {
			return r, nil
		}
	}
	return "", fmt.Errorf("datatype %q is not valid for %s fields (valid: %s)", datatype, t, strings.Join(valid, ", "))
}

// zeroLiteral returns the C++ zero value literal of a scalar type.
func zeroLiteral(t schema.Type) string {
	switch t {
	case schema.TypeInt64:
		return "INT64_C(0)"
	case schema.TypeUint32:
		return "0u"
	case schema.TypeUint64:
		return "UINT64_C(0)"
	case schema.TypeBool:
		return "false"
	case schema.TypeFloat:
		return "0.0f"
	case schema.TypeDouble:
		return "0.0"
	default:
		return "0"
	}
}

// scalarLiteral returns the C++ literal of a schema default of a scalar
// type, or an error if the default is malformed for the type.
func scalarLiteral(t schema.Type, v string) (string, error) {
	switch t {
	case schema.TypeInt32:
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return "", fmt.Errorf("malformed int32 default %q", v)
		}
		if n == math.MinInt32 {
			return "(-2147483647 - 1)", nil
		}
		return strconv.FormatInt(n, 10), nil
	case schema.TypeInt64:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return "", fmt.Errorf("malformed int64 default %q", v)
		}
		if n == math.MinInt64 {
			return "(INT64_C(-9223372036854775807) - 1)", nil
		}
		return "INT64_C(" + strconv.FormatInt(n, 10) + ")", nil
	case schema.TypeUint32:
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return "", fmt.Errorf("malformed uint32 default %q", v)
		}
		return strconv.FormatUint(n, 10) + "u", nil
	case schema.TypeUint64:
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return "", fmt.Errorf("malformed uint64 default %q", v)
		}
		return "UINT64_C(" + strconv.FormatUint(n, 10) + ")", nil
	case schema.TypeBool:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return "", fmt.Errorf("malformed bool default %q", v)
		}
		return strconv.FormatBool(b), nil
	case schema.TypeFloat, schema.TypeDouble:
		bits := 64
		if t == schema.TypeFloat {
			bits = 32
		}
		f, err := strconv.ParseFloat(v, bits)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return "", fmt.Errorf("malformed %s default %q", t, v)
		}
		s := strconv.FormatFloat(f, 'g', -1, bits)
		if !strings.ContainsAny(s, ".e") {
			s += ".0"
		}
		if t == schema.TypeFloat {
			s += "f"
		}
		return s, nil
	default:
		return "", fmt.Errorf("type %s has no scalar default", t)
	}
}

// cString returns s as a C++ string literal. Bytes outside printable
// ASCII are written as octal escapes.
func cString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '?':
			// Avoid trigraphs.
			b.WriteString(`\?`)
		default:
			if c < 0x20 || c >= 0x7f {
				fmt.Fprintf(&b, `\%03o`, c)
			} else {
				b.WriteByte(c)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}
