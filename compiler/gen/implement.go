package gen

import (
	"strings"

	"github.com/syssam/cppgen/compiler/plan"
	"github.com/syssam/cppgen/schema"
)

// Source renders the implementation artifact of the package.
func (r *Renderer) Source() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.planAll(); err != nil {
		return nil, err
	}
	for _, m := range r.pkg.Messages {
		r.implement(m.ID)
	}
	data := &fileData{
		Header:    r.cfg.Header,
		Source:    r.pkg.Path,
		System:    []string{"new", "utility"},
		Local:     []string{includePath(r.pkg)},
		Namespace: plan.Namespace(r.pkg),
	}
	if r.reflection() {
		for _, e := range r.pkg.AllEnums() {
			var p printer
			r.enumDescriptor(&p, e)
			data.add(p.String())
		}
	}
	for _, id := range r.walked {
		data.add(r.records[id].impl)
	}
	if r.servicesEnabled() {
		for _, svc := range r.services {
			var p printer
			r.implementService(&p, svc)
			data.add(p.String())
		}
	}
	return execute("source", data)
}

// implementClass renders the out-of-line members of a message class.
func (r *Renderer) implementClass(mp *plan.MessagePlan) string {
	var (
		p     printer
		class = mp.Class
	)
	ctor := class + "::" + class + "(" + ctorParams(mp, false) + ")"
	if inits := initializers(mp); len(inits) > 0 {
		p.P(ctor)
		p.P("    : ", strings.Join(inits, ", "), " {}")
	} else {
		p.P(ctor, " {}")
	}
	p.P()
	p.P(class, "::~", class, "() = default;")
	if !r.cfg.HasFeature(FeatureSeparateInlines.Name) {
		for _, fp := range mp.Fields {
			for _, cm := range accessorMethods(fp) {
				if cm.OutOfLine {
					p.P()
					cm.define(&p, class, false)
				}
			}
		}
	}
	if r.reflection() {
		p.P()
		r.descriptorBuilder(&p, mp)
	}
	return p.String()
}

// descriptorBuilder renders GetMessageDescriptor. The descriptor is stored
// in its slot before the field entries recurse into the descriptors of
// other messages, so cycles end at the stored slot.
func (r *Renderer) descriptorBuilder(p *printer, mp *plan.MessagePlan) {
	p.P("const ", messageDescriptor, "* ", mp.Class, "::GetMessageDescriptor() {")
	p.In()
	p.P(messageDescriptor, "*& slot = ::", descriptorNamespace, "::DescriptorSet::Instance()->Slot(kDescriptorOffset);")
	p.P("if (slot != nullptr) {")
	p.In()
	p.P("return slot;")
	p.Out()
	p.P("}")
	p.P(messageDescriptor, "* desc = new (std::nothrow) ", messageDescriptor,
		`("`, r.pkg.QualifiedName(mp.Message), `", `, len(mp.Fields), ");")
	p.P("if (desc == nullptr) {")
	p.In()
	p.P("return nullptr;")
	p.Out()
	p.P("}")
	p.P("slot = desc;")
	for _, fp := range mp.Fields {
		f := fp.Field
		msg, enum := "nullptr", "nullptr"
		switch f.Type {
		case schema.TypeMessage:
			msg = fp.TargetName + "::GetMessageDescriptor()"
		case schema.TypeEnum:
			tpkg, _ := r.set.Package(fp.Target.Package)
			enum = qualifiedEnumDescriptorFunc(tpkg, r.set.Enum(*fp.Target)) + "()"
		}
		p.P("desc->AddField(", f.Number, `, "`, f.Name, `", `, fieldTypeConstant(f.Type), ", ",
			quantifierConstant(f.Quantifier), ", ", msg, ", ", enum, ");")
	}
	p.P("return desc;")
	p.Out()
	p.P("}")
}

// enumDescriptor renders the function returning the static descriptor of
// an enum.
func (r *Renderer) enumDescriptor(p *printer, e *schema.Enum) {
	name := r.pkg.Name + "." + e.Path()
	p.P("const ", enumDescriptor, "* ", enumDescriptorFunc(e), "() {")
	p.In()
	if len(e.Values) == 0 {
		p.P("static const ", enumDescriptor, ` kDescriptor("`, name, `", nullptr, 0);`)
	} else {
		p.P("static const ", enumValueDescriptor, " kValues[] = {")
		p.In()
		for _, v := range e.Values {
			p.P(`{"`, v.Name, `", `, v.Number, "},")
		}
		p.Out()
		p.P("};")
		p.P("static const ", enumDescriptor, ` kDescriptor("`, name, `", kValues, `, len(e.Values), ");")
	}
	p.P("return &kDescriptor;")
	p.Out()
	p.P("}")
}
