package schema

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/syssam/cppgen"
)

// Set is the set of packages of one build. Cross-package references are
// resolved against it.
type Set struct {
	pkgs  []*Package
	index map[string]*pkgIndex
}

type pkgIndex struct {
	pkg      *Package
	messages map[string]int
	enums    map[string]int
}

// NewSet returns a set of the given packages sorted by name. Every package
// is numbered.
func NewSet(pkgs ...*Package) (*Set, error) {
	s := &Set{index: make(map[string]*pkgIndex, len(pkgs))}
	for _, p := range pkgs {
		if _, ok := s.index[p.Name]; ok {
			return nil, fmt.Errorf("schema: package %q declared twice (%s)", p.Name, p.Path)
		}
		p.Number()
		idx := &pkgIndex{
			pkg:      p,
			messages: make(map[string]int, len(p.messages)),
			enums:    make(map[string]int, len(p.enums)),
		}
		for _, m := range p.messages {
			idx.messages[m.Path()] = m.ID
		}
		for _, e := range p.enums {
			idx.enums[e.Path()] = e.ID
		}
		s.index[p.Name] = idx
		s.pkgs = append(s.pkgs, p)
	}
	slices.SortFunc(s.pkgs, func(a, b *Package) int { return strings.Compare(a.Name, b.Name) })
	return s, nil
}

// Packages returns the packages sorted by name.
func (s *Set) Packages() []*Package { return s.pkgs }

// Package returns the package with the given name.
func (s *Set) Package(name string) (*Package, bool) {
	idx, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return idx.pkg, true
}

// Message returns the message a reference points to.
func (s *Set) Message(ref Ref) *Message {
	idx, ok := s.index[ref.Package]
	if !ok {
		return nil
	}
	return idx.pkg.Message(ref.ID)
}

// Enum returns the enum a reference points to.
func (s *Set) Enum(ref Ref) *Enum {
	idx, ok := s.index[ref.Package]
	if !ok {
		return nil
	}
	return idx.pkg.Enum(ref.ID)
}

// Dependencies returns the names of the other packages of the set whose
// types p uses: the imported packages in import order, then the packages
// only named by qualified references in order of first use. It is meant
// to be called after Resolve.
func (s *Set) Dependencies(p *Package) []string {
	var deps []string
	add := func(name string) {
		if _, ok := s.index[name]; ok && name != p.Name && !slices.Contains(deps, name) {
			deps = append(deps, name)
		}
	}
	for _, imp := range p.Imports {
		add(imp)
	}
	for _, m := range p.messages {
		for _, f := range m.Fields {
			if f.Ref != nil {
				add(f.Ref.Package)
			}
		}
	}
	for _, svc := range p.Services {
		for _, c := range svc.Commands {
			for _, ref := range []*Ref{c.RequestRef, c.ResponseRef} {
				if ref != nil {
					add(ref.Package)
				}
			}
		}
	}
	return deps
}

// Resolve links every named field type and every service command to the
// message or enum it denotes. Names are looked up from the innermost
// enclosing message outwards, then at package level, then in the imported
// packages in import order. A name may also be qualified with a package
// name. All failures are collected.
func (s *Set) Resolve() error {
	var errs []error
	for _, p := range s.pkgs {
		for _, imp := range p.Imports {
			if _, ok := s.index[imp]; !ok {
				errs = append(errs, &cppgen.PlanningError{
					File:   p.Pos.File,
					Line:   p.Pos.Line,
					Reason: fmt.Sprintf("package %s imports unknown package %q", p.Name, imp),
				})
			}
		}
		for _, m := range p.messages {
			for _, f := range m.Fields {
				if err := s.resolveField(p, m, f); err != nil {
					errs = append(errs, err)
				}
			}
		}
		for _, svc := range p.Services {
			for _, c := range svc.Commands {
				errs = append(errs, s.resolveCommand(p, svc, c)...)
			}
		}
	}
	return errors.Join(errs...)
}

func (s *Set) resolveField(p *Package, m *Message, f *Field) error {
	if !f.Type.Named() {
		f.Ref = nil
		return nil
	}
	ref, enum, ok := s.lookup(p, m, f.TypeName)
	if !ok {
		return &cppgen.PlanningError{
			Message: m.Path(),
			Field:   f.Name,
			File:    f.Pos.File,
			Line:    f.Pos.Line,
			Reason:  fmt.Sprintf("unknown type %q", f.TypeName),
		}
	}
	f.Ref = &ref
	f.Type = TypeMessage
	if enum {
		f.Type = TypeEnum
	}
	return nil
}

func (s *Set) resolveCommand(p *Package, svc *Service, c *Command) []error {
	var errs []error
	resolve := func(name string) *Ref {
		ref, enum, ok := s.lookup(p, nil, name)
		if !ok || enum {
			errs = append(errs, &cppgen.PlanningError{
				Message: svc.Name,
				Field:   c.Name,
				File:    c.Pos.File,
				Line:    c.Pos.Line,
				Reason:  fmt.Sprintf("command message %q is not a message", name),
			})
			return nil
		}
		return &ref
	}
	c.RequestRef = resolve(c.Request)
	c.ResponseRef = nil
	if c.Kind == CommandRequest && c.Response != "" {
		c.ResponseRef = resolve(c.Response)
	}
	return errs
}

// lookup resolves name seen from scope (nil for package level) in p.
func (s *Set) lookup(p *Package, scope *Message, name string) (ref Ref, enum bool, ok bool) {
	if name == "" {
		return Ref{}, false, false
	}
	idx := s.index[p.Name]
	for m := scope; m != nil; m = m.parent {
		if ref, enum, ok = idx.find(m.Path() + "." + name); ok {
			return ref, enum, ok
		}
	}
	if ref, enum, ok = idx.find(name); ok {
		return ref, enum, ok
	}
	for _, imp := range p.Imports {
		if other, found := s.index[imp]; found {
			if ref, enum, ok = other.find(name); ok {
				return ref, enum, ok
			}
		}
	}
	// Qualified with a package name; the longest package name wins.
	best := ""
	for pname := range s.index {
		if strings.HasPrefix(name, pname+".") && len(pname) > len(best) {
			best = pname
		}
	}
	if best != "" {
		return s.index[best].find(strings.TrimPrefix(name, best+"."))
	}
	return Ref{}, false, false
}

func (idx *pkgIndex) find(path string) (Ref, bool, bool) {
	if id, ok := idx.messages[path]; ok {
		return Ref{Package: idx.pkg.Name, ID: id}, false, true
	}
	if id, ok := idx.enums[path]; ok {
		return Ref{Package: idx.pkg.Name, ID: id}, true, true
	}
	return Ref{}, false, false
}

// QualifiedName returns the dotted name of a message including its
// package, e.g. "acme.shop.Order.Line".
func (p *Package) QualifiedName(m *Message) string {
	return p.Name + "." + m.Path()
}
