package gen

import (
	"slices"
	"strings"

	"github.com/syssam/cppgen/compiler/plan"
	"github.com/syssam/cppgen/schema"
)

// Layout assigns every message of the build a slot in the descriptor set.
// Packages are laid out in name order; inside a package the offset of a
// message is its position in the sorted list of qualified names. Offsets
// shift when messages are added or removed and are never persisted.
type Layout struct {
	packages []*schema.Package
	bases    map[string]int
	offsets  map[string][]int
	// order lists, per package, the message ids in offset order.
	order map[string][]int
	total int
}

// NewLayout lays out the messages of pkgs. It must see every package of the
// build that gets a descriptor set slot.
func NewLayout(pkgs []*schema.Package) *Layout {
	l := &Layout{
		packages: slices.Clone(pkgs),
		bases:    make(map[string]int, len(pkgs)),
		offsets:  make(map[string][]int, len(pkgs)),
		order:    make(map[string][]int, len(pkgs)),
	}
	slices.SortFunc(l.packages, func(a, b *schema.Package) int { return strings.Compare(a.Name, b.Name) })
	for _, p := range l.packages {
		msgs := p.AllMessages()
		ids := make([]int, len(msgs))
		for i := range ids {
			ids[i] = i
		}
		slices.SortFunc(ids, func(a, b int) int {
			return strings.Compare(p.QualifiedName(msgs[a]), p.QualifiedName(msgs[b]))
		})
		offsets := make([]int, len(msgs))
		for off, id := range ids {
			offsets[id] = off
		}
		l.bases[p.Name] = l.total
		l.offsets[p.Name] = offsets
		l.order[p.Name] = ids
		l.total += len(msgs)
	}
	return l
}

// Packages returns the laid out packages in name order.
func (l *Layout) Packages() []*schema.Package { return l.packages }

// Contains reports if the package is part of the layout.
func (l *Layout) Contains(pkg string) bool {
	_, ok := l.bases[pkg]
	return ok
}

// Base returns the first slot of a package.
func (l *Layout) Base(pkg string) int { return l.bases[pkg] }

// Offset returns the slot of a message relative to its package base.
func (l *Layout) Offset(pkg string, id int) int { return l.offsets[pkg][id] }

// Order returns the message ids of a package in offset order.
func (l *Layout) Order(pkg string) []int { return l.order[pkg] }

// Total returns the number of slots.
func (l *Layout) Total() int { return l.total }

// BaseConstant returns the C++ constant holding the base of a package,
// e.g. "kAcmeShopBase" for "acme.shop".
func BaseConstant(pkg string) string {
	return "k" + plan.Pascal(strings.ReplaceAll(pkg, ".", "_")) + "Base"
}
