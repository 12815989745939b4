package plan

import (
	"fmt"
	"strings"
)

// Accessor is one generated accessor method kind.
type Accessor uint8

// Accessor kinds, in emission order.
const (
	AccHas Accessor = 1 << iota
	AccGet
	AccSet
	AccMutable
	AccAdd
	AccNew
	AccSetRaw
)

var accessorNames = []struct {
	acc  Accessor
	name string
}{
	{AccHas, "has"},
	{AccGet, "get"},
	{AccSet, "set"},
	{AccMutable, "mutable"},
	{AccAdd, "add"},
	{AccNew, "new"},
	{AccSetRaw, "set_raw"},
}

// String returns the option spelling of the accessor.
func (a Accessor) String() string {
	for _, n := range accessorNames {
		if n.acc == a {
			return n.name
		}
	}
	return fmt.Sprintf("accessor(%d)", uint8(a))
}

// Accessors is a set of accessor kinds.
type Accessors uint8

// Has reports if a is in the set.
func (s Accessors) Has(a Accessor) bool { return s&Accessors(a) != 0 }

// List returns the members of the set in emission order.
func (s Accessors) List() []Accessor {
	var out []Accessor
	for _, n := range accessorNames {
		if s.Has(n.acc) {
			out = append(out, n.acc)
		}
	}
	return out
}

// String returns the set as a comma separated option value.
func (s Accessors) String() string {
	list := s.List()
	names := make([]string, len(list))
	for i, a := range list {
		names[i] = a.String()
	}
	return strings.Join(names, ",")
}

func accessorSet(list ...Accessor) Accessors {
	var s Accessors
	for _, a := range list {
		s |= Accessors(a)
	}
	return s
}

// parseAccessors parses the tokens of the accessors option. The token
// "default" expands to def.
func parseAccessors(tokens []string, def Accessors) (Accessors, error) {
	var s Accessors
next:
	for _, tok := range tokens {
		if tok == "default" {
			s |= def
			continue
		}
		for _, n := range accessorNames {
			if n.name == tok {
				s |= Accessors(n.acc)
				continue next
			}
		}
		return 0, fmt.Errorf("unknown accessor %q", tok)
	}
	return s, nil
}
