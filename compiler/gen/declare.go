package gen

import (
	"fmt"
	"slices"
	"strings"

	"github.com/syssam/cppgen/compiler/plan"
	"github.com/syssam/cppgen/schema"
)

// headerIncludes are the standard headers every generated header needs.
var headerIncludes = []string{"bitset", "cstddef", "cstdint", "memory", "string", "utility"}

// Header renders the declaration artifact of the package.
func (r *Renderer) Header() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.planAll(); err != nil {
		return nil, err
	}
	for _, m := range r.pkg.AllMessages() {
		r.declare(m.ID)
	}
	file := HeaderPath(r.pkg)
	data := &fileData{
		Header:    r.cfg.Header,
		Source:    r.pkg.Path,
		Guard:     guard(file),
		System:    headerIncludes,
		Local:     r.headerLocals(),
		Namespace: plan.Namespace(r.pkg),
	}
	if msgs := r.pkg.AllMessages(); len(msgs) > 0 {
		var p printer
		for _, m := range msgs {
			p.P("class ", plan.ClassPath(m), ";")
		}
		data.add(p.String())
	}
	for _, e := range r.pkg.AllEnums() {
		var p printer
		declareEnum(&p, e)
		data.add(p.String())
	}
	for _, m := range r.order {
		data.add(r.records[m.ID].class)
	}
	if r.reflection() && len(r.pkg.AllEnums()) > 0 {
		var p printer
		for _, e := range r.pkg.AllEnums() {
			p.P("const ", enumDescriptor, "* ", enumDescriptorFunc(e), "();")
		}
		data.add(p.String())
	}
	if r.servicesEnabled() {
		for _, svc := range r.services {
			var p printer
			r.declareService(&p, svc)
			data.add(p.String())
		}
	}
	for _, m := range r.pkg.AllMessages() {
		data.add(r.records[m.ID].inlines)
	}
	return execute("header", data)
}

// headerLocals returns the quoted includes of the header: the runtime,
// the descriptor set and the headers of the packages whose types the
// package uses.
func (r *Renderer) headerLocals() []string {
	locals := []string{runtimeInclude}
	if r.reflection() {
		locals = append(locals, DescriptorSetHeader)
	}
	for _, name := range r.set.Dependencies(r.pkg) {
		dep, ok := r.set.Package(name)
		if !ok {
			continue
		}
		if inc := includePath(dep); !slices.Contains(locals, inc) {
			locals = append(locals, inc)
		}
	}
	return locals
}

// declareClass renders the class definition of a message. Nested
// messages and enums are defined at namespace level and aliased inside
// the class. With separate inlines, the accessor definitions are returned
// apart as inline out-of-class functions.
func (r *Renderer) declareClass(mp *plan.MessagePlan) (class, inlines string) {
	var (
		p, inl printer
		m      = mp.Message
		sep    = r.cfg.HasFeature(FeatureSeparateInlines.Name)
	)
	p.P("class ", mp.Class, " {")
	p.P(" public:")
	p.In()
	for _, c := range m.Messages {
		p.P("using ", plan.ClassName(c), " = ", plan.ClassPath(c), ";")
	}
	for _, e := range m.Enums {
		p.P("using ", plan.EnumName(e), " = ", plan.EnumPath(e), ";")
		if plan.EnumScoped(e) {
			continue
		}
		for _, v := range e.Values {
			p.P("static constexpr ", plan.EnumName(e), " ", plan.EnumValueName(v), " = ", plan.Enumerator(e, v), ";")
		}
	}
	if len(m.Messages)+len(m.Enums) > 0 {
		p.P()
	}
	explicit := ""
	if len(mp.CtorParams) > 0 {
		explicit = "explicit "
	}
	p.P(explicit, mp.Class, "(", ctorParams(mp, true), ");")
	p.P("~", mp.Class, "();")
	for _, fp := range mp.Fields {
		methods := accessorMethods(fp)
		if len(methods) == 0 {
			continue
		}
		p.P()
		for _, cm := range methods {
			switch {
			case sep:
				cm.declare(&p)
				if inl.b.Len() > 0 {
					inl.P()
				}
				cm.define(&inl, mp.Class, true)
			case cm.OutOfLine:
				cm.declare(&p)
			default:
				cm.inClass(&p)
			}
		}
	}
	if r.reflection() {
		p.P()
		p.P("static const ", messageDescriptor, "* GetMessageDescriptor();")
		p.P("static constexpr int kDescriptorOffset = ::", descriptorNamespace, "::",
			BaseConstant(r.pkg.Name), " + ", r.layout.Offset(r.pkg.Name, m.ID), ";")
	}
	p.Out()
	if len(mp.Fields) > 0 {
		p.P()
		p.P(" private:")
		p.In()
		if mp.Tracked > 0 {
			p.P("std::bitset<", mp.BitsetSize, "> presence_;")
		}
		for _, fp := range mp.Fields {
			if len(fp.Custom) > 0 {
				p.P(fp.Storage, " ", fp.Member, ";  // custom: ", customComment(fp.Custom))
			} else {
				p.P(fp.Storage, " ", fp.Member, ";")
			}
		}
		p.Out()
	}
	p.P("};")
	return p.String(), inl.String()
}

// declareEnum renders the definition of an enum.
func declareEnum(p *printer, e *schema.Enum) {
	keyword := "enum class "
	if !plan.EnumScoped(e) {
		keyword = "enum "
	}
	p.P(keyword, plan.EnumPath(e), " : int32_t {")
	p.In()
	for _, v := range e.Values {
		p.P(plan.Enumerator(e, v), " = ", v.Number, ",")
	}
	p.Out()
	p.P("};")
}

// customComment formats custom extension options as "name(id)=value".
func customComment(exts []schema.Extension) string {
	parts := make([]string, len(exts))
	for i, e := range exts {
		parts[i] = fmt.Sprintf("%s(%d)=%s", e.Name, e.ID, e.Value)
	}
	return strings.Join(parts, ", ")
}
