package plan

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/syssam/cppgen"
	"github.com/syssam/cppgen/schema"
)

// Passing is how accessors exchange a field value.
type Passing uint8

// Passing conventions.
const (
	// ByValue accessors take and return the storage type itself.
	ByValue Passing = iota
	// ByRef accessors take const references and return references or
	// pointers to the storage.
	ByRef
)

// String returns "BY_VALUE" or "BY_REF".
func (p Passing) String() string {
	if p == ByRef {
		return "BY_REF"
	}
	return "BY_VALUE"
}

// Method is one generated accessor method.
type Method struct {
	Kind Accessor
	Name string
}

// FieldPlan is the code generation plan of one field. It is a pure
// function of the field, its resolved options and its target's names.
type FieldPlan struct {
	Field *schema.Field
	// Stem is the PascalCase base of the accessor names.
	Stem string
	// Member is the C++ data member name.
	Member string
	// Storage is the C++ type of the data member.
	Storage string
	// Element is the value type: the element type of a repeated field, the
	// pointee of an optional message, otherwise Storage.
	Element string
	// Rep is the datatype of a string or bytes field.
	Rep       string
	Passing   Passing
	Accessors Accessors
	Methods   []Method
	// Init is the initializer of the member or, for constructor
	// parameters, the default argument. Empty means default construction.
	Init string
	// CtorParam reports if the field is a constructor parameter.
	CtorParam bool
	// Presence is the index of the presence bit, -1 for required fields.
	Presence int
	// Target is the message or enum of a named field type, and TargetName
	// its fully qualified C++ name.
	Target     *schema.Ref
	TargetName string
	Deprecated bool
	// Custom holds the custom extension options of the field.
	Custom []schema.Extension
}

// Name returns the schema name of the field.
func (fp *FieldPlan) Name() string { return fp.Field.Name }

// Repeated reports if the field is repeated.
func (fp *FieldPlan) Repeated() bool { return fp.Field.Repeated() }

// Required reports if the field is required.
func (fp *FieldPlan) Required() bool { return fp.Field.Required() }

// IsMessage reports if the field holds messages.
func (fp *FieldPlan) IsMessage() bool { return fp.Field.Type == schema.TypeMessage }

// Tracked reports if the field has a presence bit.
func (fp *FieldPlan) Tracked() bool { return fp.Presence >= 0 }

// Method returns the name of the accessor method of kind a.
func (fp *FieldPlan) Method(a Accessor) string {
	for _, m := range fp.Methods {
		if m.Kind == a {
			return m.Name
		}
	}
	return ""
}

// SetsPresence reports if accessor a marks the field as present.
func (fp *FieldPlan) SetsPresence(a Accessor) bool {
	return fp.Tracked() && a != AccHas && a != AccGet
}

// MessagePlan is the code generation plan of one message.
type MessagePlan struct {
	Package *schema.Package
	Message *schema.Message
	// Class is the namespace level class name, see ClassPath, and
	// Qualified the fully qualified name.
	Class     string
	Qualified string
	Fields    []*FieldPlan
	// Tracked is the number of fields with a presence bit and BitsetSize
	// the size of the presence bitset, the field count of the message.
	Tracked    int
	BitsetSize int
	CtorParams []*FieldPlan
	// ValueDeps are the ids of the messages of the same package this
	// message contains by value, in field order without duplicates.
	ValueDeps []int
}

// Planner plans the fields of the messages of a resolved schema set.
type Planner struct {
	set *schema.Set
	log zerolog.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithLogger sets the planner logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Planner) { p.log = l }
}

// New returns a planner for a resolved set.
func New(set *schema.Set, opts ...Option) *Planner {
	p := &Planner{set: set, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Message plans every field of m. Any field error fails the message; all
// field errors are returned joined.
func (p *Planner) Message(pkg *schema.Package, m *schema.Message) (*MessagePlan, error) {
	mp := &MessagePlan{
		Package:    pkg,
		Message:    m,
		Class:      ClassPath(m),
		Qualified:  QualifiedClass(pkg, m),
		BitsetSize: len(m.Fields),
	}
	var errs []error
	seen := make(map[int]bool)
	for _, f := range m.Fields {
		fp, err := p.Field(pkg, m, f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !fp.Required() {
			fp.Presence = mp.Tracked
			mp.Tracked++
		}
		if fp.CtorParam {
			mp.CtorParams = append(mp.CtorParams, fp)
		}
		if fp.IsMessage() && fp.Required() && fp.Target.Package == pkg.Name && !seen[fp.Target.ID] {
			seen[fp.Target.ID] = true
			mp.ValueDeps = append(mp.ValueDeps, fp.Target.ID)
		}
		mp.Fields = append(mp.Fields, fp)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	p.log.Debug().
		Str("message", pkg.QualifiedName(m)).
		Int("fields", len(mp.Fields)).
		Int("tracked", mp.Tracked).
		Msg("message planned")
	return mp, nil
}

// Field plans one field of holder. The presence bit is left unassigned
// (-1); Message assigns it.
func (p *Planner) Field(pkg *schema.Package, holder *schema.Message, f *schema.Field) (*FieldPlan, error) {
	fail := func(format string, args ...any) error {
		return &cppgen.PlanningError{
			Message: pkg.QualifiedName(holder),
			Field:   f.Name,
			File:    f.Pos.File,
			Line:    f.Pos.Line,
			Reason:  fmt.Sprintf(format, args...),
		}
	}
	fp := &FieldPlan{
		Field:      f,
		Stem:       MethodStem(f),
		Member:     MemberName(f),
		Presence:   -1,
		Deprecated: f.Resolved.Bool(schema.OptDeprecated, false),
		Custom:     f.Resolved.Extensions(),
	}
	if err := p.storage(pkg, holder, fp); err != nil {
		return nil, fail("%s", err)
	}
	fp.Passing = passing(f)
	if err := p.accessors(fp); err != nil {
		return nil, fail("%s", err)
	}
	if err := p.initializer(fp); err != nil {
		return nil, fail("%s", err)
	}
	return fp, nil
}

// storage resolves the target and computes the storage and element types.
func (p *Planner) storage(pkg *schema.Package, holder *schema.Message, fp *FieldPlan) error {
	f := fp.Field
	datatype, hasDatatype := f.Resolved.String(schema.OptDatatype)
	if hasDatatype && !f.Type.Buffer() {
		return fmt.Errorf("datatype %q is not valid for %s fields", datatype, f.Type)
	}
	switch {
	case f.Type.Buffer():
		rep, err := chooseRep(f.Type, datatype)
		if err != nil {
			return err
		}
		fp.Rep = rep
		fp.Element = reps[rep].cpp
	case f.Type == schema.TypeMessage:
		if f.Ref == nil {
			return fmt.Errorf("unresolved message type %q", f.TypeName)
		}
		target := p.set.Message(*f.Ref)
		tpkg, _ := p.set.Package(f.Ref.Package)
		if target == nil || tpkg == nil {
			return fmt.Errorf("unresolved message type %q", f.TypeName)
		}
		if f.Required() && f.Ref.Package == pkg.Name && target.Encloses(holder) {
			return fmt.Errorf("required field of type %s would contain itself by value", target.Path())
		}
		fp.Target = f.Ref
		fp.TargetName = QualifiedClass(tpkg, target)
		fp.Element = fp.TargetName
	case f.Type == schema.TypeEnum:
		if f.Ref == nil || p.set.Enum(*f.Ref) == nil {
			return fmt.Errorf("unresolved enum type %q", f.TypeName)
		}
		tpkg, _ := p.set.Package(f.Ref.Package)
		fp.Target = f.Ref
		fp.TargetName = QualifiedEnum(tpkg, p.set.Enum(*f.Ref))
		fp.Element = fp.TargetName
	default:
		cpp, ok := scalarTypes[f.Type]
		if !ok {
			return fmt.Errorf("invalid field type %s", f.Type)
		}
		fp.Element = cpp
	}
	switch {
	case f.Repeated() && f.Type == schema.TypeMessage:
		fp.Storage = OwningVector + "<" + fp.Element + ">"
	case f.Repeated() && f.Type.Buffer() && !reps[fp.Rep].shared:
		fp.Storage = AutoPtrVector + "<" + fp.Element + ">"
	case f.Repeated():
		fp.Storage = ValueVector + "<" + fp.Element + ">"
	case f.Type == schema.TypeMessage && !f.Required():
		fp.Storage = "std::unique_ptr<" + fp.Element + ">"
	default:
		fp.Storage = fp.Element
	}
	return nil
}

// passing returns the passing convention of a field: by value for
// scalars, enums and optional messages.
func passing(f *schema.Field) Passing {
	switch {
	case f.Repeated():
		return ByRef
	case f.Type.Scalar():
		return ByValue
	case f.Type == schema.TypeMessage && !f.Required():
		return ByValue
	default:
		return ByRef
	}
}

// defaultAccessors returns the accessor set of a field without an
// accessors option.
func defaultAccessors(f *schema.Field) Accessors {
	switch {
	case f.Repeated() && f.Type == schema.TypeMessage:
		return accessorSet(AccHas, AccGet, AccMutable, AccNew)
	case f.Repeated():
		return accessorSet(AccHas, AccGet, AccMutable, AccAdd)
	case f.Type == schema.TypeMessage && f.Required():
		return accessorSet(AccHas, AccGet, AccMutable)
	case f.Type == schema.TypeMessage:
		return accessorSet(AccHas, AccGet, AccSet, AccNew)
	case f.Type.Buffer():
		return accessorSet(AccHas, AccGet, AccSet, AccSetRaw)
	default:
		return accessorSet(AccHas, AccGet, AccSet)
	}
}

func (p *Planner) accessors(fp *FieldPlan) error {
	f := fp.Field
	def := defaultAccessors(f)
	fp.Accessors = def
	if tokens, ok := f.Resolved.List(schema.OptAccessors); ok {
		set, err := parseAccessors(tokens, def)
		if err != nil {
			return err
		}
		fp.Accessors = set
	}
	isMsg := f.Type == schema.TypeMessage
	switch s := fp.Accessors; {
	case s.Has(AccAdd) && !f.Repeated():
		return errors.New("accessor add requires a repeated field")
	case s.Has(AccNew) && (!isMsg || f.Required()):
		return errors.New("accessor new requires an optional or repeated message field")
	case s.Has(AccSetRaw) && (!f.Type.Buffer() || f.Repeated()):
		return errors.New("accessor set_raw requires a singular string or bytes field")
	case s.Has(AccSet) && f.Repeated():
		return errors.New("accessor set is not supported on repeated fields")
	case s.Has(AccSet) && isMsg && f.Required():
		return errors.New("accessor set is not supported on required message fields; use mutable")
	case s.Has(AccMutable) && !f.Repeated() && f.Type.Scalar():
		return errors.New("accessor mutable is not supported on scalar fields")
	case s.Has(AccMutable) && !f.Repeated() && isMsg && !f.Required():
		return errors.New("accessor mutable is not supported on optional message fields; use new")
	}
	for _, a := range fp.Accessors.List() {
		fp.Methods = append(fp.Methods, Method{Kind: a, Name: methodName(fp, a)})
	}
	return nil
}

func methodName(fp *FieldPlan, a Accessor) string {
	switch a {
	case AccHas:
		return "Has" + fp.Stem
	case AccGet:
		return "Get" + fp.Stem
	case AccSet, AccSetRaw:
		return "Set" + fp.Stem
	case AccMutable:
		return "Mutable" + fp.Stem
	case AccAdd:
		return "Add" + singular(fp.Field.Name)
	case AccNew:
		if fp.Repeated() {
			return "AddNew" + singular(fp.Field.Name)
		}
		return "New" + fp.Stem
	default:
		return ""
	}
}

// initializer computes the member initializer or constructor default.
func (p *Planner) initializer(fp *FieldPlan) error {
	f := fp.Field
	if f.HasDefault && (f.Repeated() || f.Type == schema.TypeMessage) {
		return fmt.Errorf("%s %s fields cannot have a default", f.Quantifier, f.Type)
	}
	switch {
	case f.Repeated() || f.Type == schema.TypeMessage:
		return nil
	case f.Type == schema.TypeEnum:
		e := p.set.Enum(*f.Ref)
		name := ""
		if f.HasDefault {
			name = f.Default
		}
		v := e.DefaultValue(name)
		if v == nil {
			if name == "" {
				return fmt.Errorf("enum %s has no values", e.Path())
			}
			return fmt.Errorf("enum %s has no value %q", e.Path(), name)
		}
		tpkg, _ := p.set.Package(f.Ref.Package)
		fp.Init = QualifiedEnumValue(tpkg, e, v)
	case f.Type.Buffer():
		if f.HasDefault {
			fp.Init = cString(f.Default) + ", " + strconv.Itoa(len(f.Default))
		}
		return nil
	default:
		fp.Init = zeroLiteral(f.Type)
		if f.HasDefault {
			lit, err := scalarLiteral(f.Type, f.Default)
			if err != nil {
				return err
			}
			fp.Init = lit
		}
	}
	fp.CtorParam = f.Required()
	return nil
}
