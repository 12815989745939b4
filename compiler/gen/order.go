package gen

import (
	"fmt"
	"slices"
	"strings"

	"github.com/syssam/cppgen"
	"github.com/syssam/cppgen/schema"
)

// orderClasses sorts the classes of the package so that a class is defined
// after every class it contains by value. All classes live at namespace
// level and are forward declared, so references through pointers and
// vectors impose no order. Ties keep declaration order. A cycle of value
// containment makes the package unrenderable and is reported as a
// PlanningError. Every message must be planned.
func (r *Renderer) orderClasses() ([]*schema.Message, error) {
	msgs := r.pkg.AllMessages()
	edges := make(map[*schema.Message][]*schema.Message)
	for _, m := range msgs {
		for _, id := range r.records[m.ID].plan.ValueDeps {
			d := r.pkg.Message(id)
			if d != nil && d != m && !slices.Contains(edges[d], m) {
				edges[d] = append(edges[d], m)
			}
		}
	}
	sorted, rest := topoSort(msgs, edges)
	if len(rest) > 0 {
		names := make([]string, len(rest))
		for i, m := range rest {
			names[i] = m.Path()
		}
		return nil, &cppgen.PlanningError{
			Message: r.pkg.Name,
			File:    r.pkg.Pos.File,
			Line:    r.pkg.Pos.Line,
			Reason:  fmt.Sprintf("required-by-value cycle among %s", strings.Join(names, ", ")),
		}
	}
	return sorted, nil
}

// topoSort orders nodes along edges, picking the earliest declared ready
// node first. Nodes left on a cycle are returned as rest.
func topoSort(nodes []*schema.Message, edges map[*schema.Message][]*schema.Message) (sorted, rest []*schema.Message) {
	indeg := make(map[*schema.Message]int, len(nodes))
	for _, n := range nodes {
		for _, to := range edges[n] {
			indeg[to]++
		}
	}
	done := make(map[*schema.Message]bool, len(nodes))
	for len(sorted) < len(nodes) {
		i := slices.IndexFunc(nodes, func(n *schema.Message) bool { return !done[n] && indeg[n] == 0 })
		if i < 0 {
			break
		}
		n := nodes[i]
		done[n] = true
		sorted = append(sorted, n)
		for _, to := range edges[n] {
			indeg[to]--
		}
	}
	for _, n := range nodes {
		if !done[n] {
			rest = append(rest, n)
		}
	}
	return sorted, rest
}
