package gen

import (
	"fmt"
	"strings"

	"github.com/syssam/cppgen/compiler/plan"
	"github.com/syssam/cppgen/schema"
)

// cppMethod is one member function of a generated class.
type cppMethod struct {
	Ret        string
	Name       string
	Params     string
	Const      bool
	Deprecated bool
	Body       []string
	// OutOfLine methods touch a message field that needs a complete type.
	// They are defined after every class of the header, or in the source
	// file.
	OutOfLine bool
}

// accessorMethods returns the accessor methods of a planned field in
// emission order.
func accessorMethods(fp *plan.FieldPlan) []cppMethod {
	var (
		f         = fp.Field
		member    = fp.Member
		outOfLine = fp.IsMessage() && !fp.Required()
		methods   = make([]cppMethod, 0, len(fp.Methods))
	)
	mark := func(body ...string) []string {
		if fp.Tracked() {
			body = append(body, fmt.Sprintf("presence_.set(%d);", fp.Presence))
		}
		return body
	}
	for _, m := range fp.Methods {
		cm := cppMethod{Name: m.Name, Deprecated: fp.Deprecated, OutOfLine: outOfLine}
		switch m.Kind {
		case plan.AccHas:
			cm.Ret, cm.Const, cm.OutOfLine = "bool", true, false
			if fp.Tracked() {
				cm.Body = []string{fmt.Sprintf("return presence_.test(%d);", fp.Presence)}
			} else {
				cm.Body = []string{"return true;"}
			}
		case plan.AccGet:
			cm.Const = true
			switch {
			case fp.IsMessage() && !fp.Repeated() && !fp.Required():
				cm.Ret = "const " + fp.Element + "*"
				cm.Body = []string{"return " + member + ".get();"}
			case fp.Passing == plan.ByValue:
				cm.Ret = fp.Storage
				cm.Body = []string{"return " + member + ";"}
			default:
				cm.Ret = "const " + fp.Storage + "&"
				cm.Body = []string{"return " + member + ";"}
			}
		case plan.AccSet:
			cm.Ret = "void"
			switch {
			case fp.IsMessage():
				cm.Params = "std::unique_ptr<" + fp.Element + "> value"
				cm.Body = mark(member + " = std::move(value);")
			case fp.Passing == plan.ByValue:
				cm.Params = fp.Storage + " value"
				cm.Body = mark(member + " = value;")
			default:
				cm.Params = "const " + fp.Storage + "& value"
				cm.Body = mark(member + " = value;")
			}
		case plan.AccSetRaw:
			cm.Ret = "void"
			if f.Type == schema.TypeBytes {
				cm.Params = "const void* data, size_t size"
				if fp.Rep == plan.RepString {
					cm.Body = mark(member + ".assign(static_cast<const char*>(data), size);")
				} else {
					cm.Body = mark(member + ".assign(data, size);")
				}
			} else {
				cm.Params = "const char* data, size_t size"
				cm.Body = mark(member + ".assign(data, size);")
			}
		case plan.AccMutable:
			cm.Ret = fp.Storage + "*"
			cm.Body = mark()
			cm.Body = append(cm.Body, "return &"+member+";")
		case plan.AccAdd:
			cm.Ret = "void"
			if f.Type.Scalar() {
				cm.Params = fp.Element + " value"
			} else {
				cm.Params = "const " + fp.Element + "& value"
			}
			cm.Body = mark(member + ".push_back(value);")
		case plan.AccNew:
			cm.Ret = fp.Element + "*"
			if fp.Repeated() {
				cm.Body = mark()
				cm.Body = append(cm.Body, "return "+member+".AddNew();")
			} else {
				cm.Body = mark(member + ".reset(new " + fp.Element + "());")
				cm.Body = append(cm.Body, "return "+member+".get();")
			}
		default:
			continue
		}
		methods = append(methods, cm)
	}
	return methods
}

func (m cppMethod) signature(name string) string {
	s := m.Ret + " " + name + "(" + m.Params + ")"
	if m.Const {
		s += " const"
	}
	return s
}

// declare writes the in-class declaration of m.
func (m cppMethod) declare(p *printer) {
	p.P(m.attrs(), m.signature(m.Name), ";")
}

// inClass writes the in-class definition of m.
func (m cppMethod) inClass(p *printer) {
	if len(m.Body) == 1 {
		p.P(m.attrs(), m.signature(m.Name), " { ", m.Body[0], " }")
		return
	}
	p.P(m.attrs(), m.signature(m.Name), " {")
	p.In()
	for _, line := range m.Body {
		p.P(line)
	}
	p.Out()
	p.P("}")
}

// define writes the out-of-class definition of m as a member of class.
func (m cppMethod) define(p *printer, class string, inline bool) {
	prefix := ""
	if inline {
		prefix = "inline "
	}
	p.P(prefix, m.signature(class+"::"+m.Name), " {")
	p.In()
	for _, line := range m.Body {
		p.P(line)
	}
	p.Out()
	p.P("}")
}

func (m cppMethod) attrs() string {
	if m.Deprecated {
		return "[[deprecated]] "
	}
	return ""
}

// ctorParams returns the constructor parameter list of a class, with
// default arguments when withDefaults is set.
func ctorParams(mp *plan.MessagePlan, withDefaults bool) string {
	params := make([]string, len(mp.CtorParams))
	for i, fp := range mp.CtorParams {
		params[i] = fp.Storage + " " + paramName(fp)
		if withDefaults {
			params[i] += " = " + fp.Init
		}
	}
	return strings.Join(params, ", ")
}

// initializers returns the member initializer list of the constructor in
// field order. Members without an initializer are default constructed.
func initializers(mp *plan.MessagePlan) []string {
	var inits []string
	for _, fp := range mp.Fields {
		switch {
		case fp.CtorParam:
			inits = append(inits, fp.Member+"("+paramName(fp)+")")
		case fp.Init != "":
			inits = append(inits, fp.Member+"("+fp.Init+")")
		}
	}
	return inits
}

func paramName(fp *plan.FieldPlan) string { return plan.Snake(fp.Name()) }
