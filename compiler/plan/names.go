package plan

import (
	"strings"
	"unicode"

	"github.com/go-openapi/inflect"

	"github.com/syssam/cppgen/schema"
)

var (
	rules    = ruleset()
	acronyms = make(map[string]bool)
)

func ruleset() *inflect.Ruleset {
	rules := inflect.NewDefaultRuleset()
	for _, w := range []string{
		"ACL", "API", "ASCII", "AWS", "CPU", "CSS", "DNS", "EOF", "GB", "GUID",
		"HTML", "HTTP", "HTTPS", "ID", "IP", "JSON", "KB", "LHS", "MAC", "MB",
		"QPS", "RAM", "RHS", "RPC", "SLA", "SMTP", "SQL", "SSH", "SSO", "TCP",
		"TLS", "TTL", "UDP", "UI", "UID", "URI", "URL", "UTF8", "UUID", "VM",
		"XML", "XMPP", "XSRF", "XSS",
	} {
		acronyms[w] = true
		rules.AddAcronym(w)
	}
	return rules
}

// pascal converts a snake or kebab case schema name to PascalCase,
// keeping known acronyms upper-cased: "user_id" becomes "UserID".
func pascal(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' })
	for i, w := range words {
		upper := strings.ToUpper(w)
		if acronyms[upper] {
			words[i] = upper
		} else {
			words[i] = rules.Capitalize(w)
		}
	}
	return strings.Join(words, "")
}

// snake converts a name to snake_case: "UserInfo" becomes "user_info".
func snake(s string) string {
	var (
		j int
		b strings.Builder
	)
	for i := 0; i < len(s); i++ {
		r := rune(s[i])
		// Put '_' if it is not a start or end of a word, current letter is uppercase,
		// and previous is lowercase (cases like: "UserInfo"), or next letter is also
		// a lowercase and previous letter is not "_".
		if i > 0 && i < len(s)-1 && unicode.IsUpper(r) {
			if unicode.IsLower(rune(s[i-1])) ||
				j != i-1 && unicode.IsLower(rune(s[i+1])) && unicode.IsLetter(rune(s[i-1])) {
				j = i
				b.WriteString("_")
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// singular returns the singular PascalCase form of a repeated field name:
// "line_items" becomes "LineItem".
func singular(s string) string {
	return pascal(rules.Singularize(snake(s)))
}

// Namespace returns the C++ namespace of a package without leading "::".
func Namespace(p *schema.Package) string {
	if ns, ok := p.Resolved.String(schema.OptNamespace); ok && ns != "" {
		return strings.TrimPrefix(ns, "::")
	}
	return strings.ReplaceAll(p.Name, ".", "::")
}

// ClassName returns the unqualified C++ class name of a message.
func ClassName(m *schema.Message) string {
	if name, ok := m.Resolved.String(schema.OptMessageClassName); ok && name != "" {
		return name
	}
	return m.Name
}

// ClassPath returns the namespace level class name of m. Nested messages
// are flattened into their enclosing class names, e.g. "Order_Line", and
// aliased by their own name inside the enclosing class.
func ClassPath(m *schema.Message) string {
	if m.Parent() == nil {
		return ClassName(m)
	}
	return ClassPath(m.Parent()) + "_" + ClassName(m)
}

// QualifiedClass returns the fully qualified C++ class name of m,
// e.g. "::acme::shop::Order_Line".
func QualifiedClass(p *schema.Package, m *schema.Message) string {
	return "::" + Namespace(p) + "::" + ClassPath(m)
}

// EnumName returns the unqualified C++ name of an enum.
func EnumName(e *schema.Enum) string {
	if name, ok := e.Resolved.String(schema.OptEnumClassName); ok && name != "" {
		return name
	}
	return e.Name
}

// EnumPath returns the namespace level name of an enum, flattened like
// ClassPath.
func EnumPath(e *schema.Enum) string {
	if e.Parent() == nil {
		return EnumName(e)
	}
	return ClassPath(e.Parent()) + "_" + EnumName(e)
}

// QualifiedEnum returns the fully qualified C++ name of an enum.
func QualifiedEnum(p *schema.Package, e *schema.Enum) string {
	return "::" + Namespace(p) + "::" + EnumPath(e)
}

// EnumScoped reports if the enum renders as an "enum class". Enums are
// scoped unless the scoped option is false.
func EnumScoped(e *schema.Enum) bool { return e.Resolved.Bool(schema.OptScoped, true) }

// EnumValueName returns the C++ enumerator name of v.
func EnumValueName(v *schema.EnumValue) string {
	if name, ok := v.Resolved.String(schema.OptValueName); ok && name != "" {
		return name
	}
	return v.Name
}

// Enumerator returns the declared name of the enumerator v of e. The
// enumerators of unscoped nested enums live in the namespace and are
// prefixed with the enum name: "Order_State_OPEN".
func Enumerator(e *schema.Enum, v *schema.EnumValue) string {
	if EnumScoped(e) || e.Parent() == nil {
		return EnumValueName(v)
	}
	return EnumPath(e) + "_" + EnumValueName(v)
}

// QualifiedEnumValue returns the fully qualified enumerator v of e.
func QualifiedEnumValue(p *schema.Package, e *schema.Enum, v *schema.EnumValue) string {
	if EnumScoped(e) {
		return QualifiedEnum(p, e) + "::" + EnumValueName(v)
	}
	return "::" + Namespace(p) + "::" + Enumerator(e, v)
}

// MemberName returns the C++ data member name of a field: "item_count_".
func MemberName(f *schema.Field) string { return snake(f.Name) + "_" }

// MethodStem returns the PascalCase stem of the accessor names of a field.
func MethodStem(f *schema.Field) string { return pascal(f.Name) }

// Pascal converts a snake case name to PascalCase.
func Pascal(s string) string { return pascal(s) }

// Snake converts a name to snake_case.
func Snake(s string) string { return snake(s) }
