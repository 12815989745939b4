package gen

import (
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/syssam/cppgen/compiler/plan"
	"github.com/syssam/cppgen/schema"
)

// descriptorNamespace holds the build-wide descriptor set.
const descriptorNamespace = "cppgen_descriptors"

// Runtime types referenced by generated code.
const (
	messageDescriptor   = plan.Runtime + "::MessageDescriptor"
	enumDescriptor      = plan.Runtime + "::EnumDescriptor"
	enumValueDescriptor = plan.Runtime + "::EnumValueDescriptor"
	runtimeInclude      = "cppgen/rt/runtime.h"
)

var upper = cases.Upper(language.Und)

// HeaderPath returns the path of the header of a package relative to the
// target, e.g. "acme/shop.h".
func HeaderPath(p *schema.Package) string { return p.Dir() + ".h" }

// SourcePath returns the path of the implementation file of a package.
func SourcePath(p *schema.Package) string { return p.Dir() + ".cc" }

// includePath returns the path under which generated code includes the
// header of p, honoring its include_prefix option.
func includePath(p *schema.Package) string {
	prefix, _ := p.Resolved.String(schema.OptIncludePrefix)
	return path.Join(prefix, HeaderPath(p))
}

// guard returns the include guard macro of a header path.
func guard(file string) string {
	r := strings.NewReplacer("/", "_", ".", "_", "-", "_")
	return "CPPGEN_" + upper.String(r.Replace(file)) + "_"
}

// enumDescriptorFunc returns the unqualified name of the function that
// returns the descriptor of e, e.g. "Order_Status_Descriptor".
func enumDescriptorFunc(e *schema.Enum) string {
	return strings.ReplaceAll(plan.EnumPath(e), "::", "_") + "_Descriptor"
}

// qualifiedEnumDescriptorFunc returns the fully qualified descriptor
// function of e.
func qualifiedEnumDescriptorFunc(p *schema.Package, e *schema.Enum) string {
	return "::" + plan.Namespace(p) + "::" + enumDescriptorFunc(e)
}

// fieldTypeConstant returns the runtime constant of a logical type,
// e.g. "::cppgen::rt::FieldType::kInt32".
func fieldTypeConstant(t schema.Type) string {
	return plan.Runtime + "::FieldType::k" + plan.Pascal(t.String())
}

// quantifierConstant returns the runtime constant of a quantifier.
func quantifierConstant(q schema.Quantifier) string {
	return plan.Runtime + "::Quantifier::k" + plan.Pascal(q.String())
}
