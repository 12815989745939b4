package gen

import (
	"github.com/syssam/cppgen/compiler/plan"
	"github.com/syssam/cppgen/schema"
)

func (r *Renderer) servicesEnabled() bool {
	return r.cfg.HasFeature(FeatureServices.Name) && r.reflection() && len(r.services) > 0
}

// serviceClass returns the class name of a resolved service.
func serviceClass(svc *schema.Service) string {
	name, _ := svc.Resolved.String(schema.OptServiceClassName)
	return name
}

// commandClass returns the struct name of a command.
func commandClass(c *schema.Command) string {
	if name, ok := c.Resolved.String(schema.OptMethodClassName); ok && name != "" {
		return name
	}
	return c.Name
}

func commandEnumerator(c *schema.Command) string { return "k" + plan.Pascal(c.Name) }

// messageClass returns the fully qualified class of a referenced message.
func (r *Renderer) messageClass(ref *schema.Ref) string {
	pkg, _ := r.set.Package(ref.Package)
	return plan.QualifiedClass(pkg, r.set.Message(*ref))
}

// declareService renders the command table of a service: the command id
// enum, one struct per command with its request and response types, and
// the request descriptor lookup.
func (r *Renderer) declareService(p *printer, svc *schema.Service) {
	p.P("struct ", serviceClass(svc), " {")
	p.In()
	p.P("enum class Command : int32_t {")
	p.In()
	for _, c := range svc.Commands {
		p.P(commandEnumerator(c), " = ", c.ID, ",")
	}
	p.Out()
	p.P("};")
	for _, c := range svc.Commands {
		p.P()
		p.P("struct ", commandClass(c), " {")
		p.In()
		p.P("static constexpr Command kId = Command::", commandEnumerator(c), ";")
		p.P("using Request = ", r.messageClass(c.RequestRef), ";")
		if c.Kind == schema.CommandEvent || c.ResponseRef == nil {
			p.P("using Response = void;")
		} else {
			p.P("using Response = ", r.messageClass(c.ResponseRef), ";")
		}
		p.Out()
		p.P("};")
	}
	p.P()
	p.P("static const ", messageDescriptor, "* RequestDescriptor(Command command);")
	p.Out()
	p.P("};")
}

// implementService renders the request descriptor lookup of a service.
func (r *Renderer) implementService(p *printer, svc *schema.Service) {
	class := serviceClass(svc)
	p.P("const ", messageDescriptor, "* ", class, "::RequestDescriptor(Command command) {")
	p.In()
	p.P("switch (command) {")
	for _, c := range svc.Commands {
		p.P("case Command::", commandEnumerator(c), ":")
		p.In()
		p.P("return ", r.messageClass(c.RequestRef), "::GetMessageDescriptor();")
		p.Out()
	}
	p.P("}")
	p.P("return nullptr;")
	p.Out()
	p.P("}")
}
