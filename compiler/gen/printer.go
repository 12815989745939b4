package gen

import (
	"fmt"
	"strings"
)

// printer accumulates indented C++ source lines.
type printer struct {
	b      strings.Builder
	indent int
}

// P writes one line made of the concatenated arguments at the current
// indentation. Without arguments it writes an empty line.
func (p *printer) P(args ...any) {
	if len(args) == 0 {
		p.b.WriteByte('\n')
		return
	}
	p.b.WriteString(strings.Repeat("  ", p.indent))
	for _, a := range args {
		fmt.Fprint(&p.b, a)
	}
	p.b.WriteByte('\n')
}

func (p *printer) In()  { p.indent++ }
func (p *printer) Out() { p.indent-- }

func (p *printer) String() string { return p.b.String() }
