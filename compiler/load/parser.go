package load

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/syssam/cppgen"
	"github.com/syssam/cppgen/schema"
)

// Parser turns the content of a schema file into a package. The returned
// package is numbered but not resolved.
type Parser interface {
	Parse(path string, src []byte) (*schema.Package, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(path string, src []byte) (*schema.Package, error)

// Parse calls f.
func (f ParserFunc) Parse(path string, src []byte) (*schema.Package, error) { return f(path, src) }

// YAMLParser parses the YAML schema description format.
type YAMLParser struct{}

// Parse implements Parser. Syntax and structure errors are
// ConfigurationErrors carrying the file and line.
func (YAMLParser) Parse(path string, src []byte) (*schema.Package, error) {
	var doc yamlPackage
	dec := yaml.NewDecoder(bytes.NewReader(src))
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, syntaxError(path, err)
	}
	p := &parse{path: path}
	pkg := p.pkg(&doc)
	if len(p.errs) > 0 {
		return nil, errors.Join(p.errs...)
	}
	pkg.Number()
	return pkg, nil
}

// syntaxError converts a yaml error, which may carry a line number.
func syntaxError(path string, err error) error {
	e := &cppgen.ConfigurationError{Element: "schema", File: path, Message: "malformed schema", Cause: err}
	var node *nodeError
	if errors.As(err, &node) {
		e.Line, e.Message, e.Cause = node.line, node.msg, nil
	}
	return e
}

// nodeError is an error found while decoding one node.
type nodeError struct {
	line int
	msg  string
}

func (e *nodeError) Error() string { return "line " + strconv.Itoa(e.line) + ": " + e.msg }

type (
	yamlPackage struct {
		Package  string        `yaml:"package"`
		Imports  []string      `yaml:"imports"`
		Options  yamlOptions   `yaml:"options"`
		Messages []yamlMessage `yaml:"messages"`
		Enums    []yamlEnum    `yaml:"enums"`
		Services []yamlService `yaml:"services"`
		line     int
	}
	yamlMessage struct {
		Name     string        `yaml:"name"`
		Fields   []yamlField   `yaml:"fields"`
		Messages []yamlMessage `yaml:"messages"`
		Enums    []yamlEnum    `yaml:"enums"`
		Options  yamlOptions   `yaml:"options"`
		line     int
	}
	yamlField struct {
		Name    string      `yaml:"name"`
		Type    string      `yaml:"type"`
		Label   string      `yaml:"label"`
		Number  int         `yaml:"number"`
		Default *string     `yaml:"default"`
		Options yamlOptions `yaml:"options"`
		line    int
	}
	yamlEnum struct {
		Name    string      `yaml:"name"`
		Values  []yamlValue `yaml:"values"`
		Options yamlOptions `yaml:"options"`
		line    int
	}
	yamlValue struct {
		Name    string      `yaml:"name"`
		Number  int32       `yaml:"number"`
		Options yamlOptions `yaml:"options"`
		line    int
	}
	yamlService struct {
		Name     string        `yaml:"name"`
		Commands []yamlCommand `yaml:"commands"`
		Options  yamlOptions   `yaml:"options"`
		line     int
	}
	yamlCommand struct {
		Name     string      `yaml:"name"`
		ID       int         `yaml:"id"`
		Kind     string      `yaml:"kind"`
		Request  string      `yaml:"request"`
		Response string      `yaml:"response"`
		Options  yamlOptions `yaml:"options"`
		line     int
	}
	// yamlOptions keeps the declaration order of an options mapping.
	yamlOptions []schema.Option
)

// UnmarshalYAML records the line of the package node.
func (p *yamlPackage) UnmarshalYAML(n *yaml.Node) error {
	type plain yamlPackage
	if err := n.Decode((*plain)(p)); err != nil {
		return err
	}
	p.line = n.Line
	return nil
}

// UnmarshalYAML records the line of the message node.
func (m *yamlMessage) UnmarshalYAML(n *yaml.Node) error {
	type plain yamlMessage
	if err := n.Decode((*plain)(m)); err != nil {
		return err
	}
	m.line = n.Line
	return nil
}

// UnmarshalYAML records the line of the field node.
func (f *yamlField) UnmarshalYAML(n *yaml.Node) error {
	type plain yamlField
	if err := n.Decode((*plain)(f)); err != nil {
		return err
	}
	f.line = n.Line
	return nil
}

// UnmarshalYAML records the line of the enum node.
func (e *yamlEnum) UnmarshalYAML(n *yaml.Node) error {
	type plain yamlEnum
	if err := n.Decode((*plain)(e)); err != nil {
		return err
	}
	e.line = n.Line
	return nil
}

// UnmarshalYAML records the line of the value node.
func (v *yamlValue) UnmarshalYAML(n *yaml.Node) error {
	type plain yamlValue
	if err := n.Decode((*plain)(v)); err != nil {
		return err
	}
	v.line = n.Line
	return nil
}

// UnmarshalYAML records the line of the service node.
func (s *yamlService) UnmarshalYAML(n *yaml.Node) error {
	type plain yamlService
	if err := n.Decode((*plain)(s)); err != nil {
		return err
	}
	s.line = n.Line
	return nil
}

// UnmarshalYAML records the line of the command node.
func (c *yamlCommand) UnmarshalYAML(n *yaml.Node) error {
	type plain yamlCommand
	if err := n.Decode((*plain)(c)); err != nil {
		return err
	}
	c.line = n.Line
	return nil
}

// UnmarshalYAML decodes a mapping of option names to values. A value is a
// scalar, a list of scalars (joined with commas) or, for custom options, a
// mapping {id, value}.
func (o *yamlOptions) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return &nodeError{line: n.Line, msg: "options must be a mapping"}
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		opt := schema.Option{Name: key.Value}
		switch val.Kind {
		case yaml.ScalarNode:
			opt.Value = val.Value
		case yaml.SequenceNode:
			var list StringList
			if err := val.Decode(&list); err != nil {
				return err
			}
			opt.Value = list.String()
		case yaml.MappingNode:
			var ext struct {
				ID    int    `yaml:"id"`
				Value string `yaml:"value"`
			}
			if err := val.Decode(&ext); err != nil {
				return err
			}
			if ext.ID < schema.CustomThreshold {
				return &nodeError{line: val.Line, msg: fmt.Sprintf("custom option %q needs an id of at least %d", key.Value, schema.CustomThreshold)}
			}
			opt.ID, opt.Value = ext.ID, ext.Value
		default:
			return &nodeError{line: val.Line, msg: fmt.Sprintf("malformed value of option %q", key.Value)}
		}
		*o = append(*o, opt)
	}
	return nil
}

// StringList is a YAML sequence of scalars.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler for StringList.
func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = []string{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	default:
		return &nodeError{line: node.Line, msg: "expected string or list"}
	}
}

// String joins the list with commas.
func (s StringList) String() string {
	var b bytes.Buffer
	for i, item := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(item)
	}
	return b.String()
}

// parse converts the decoded document, collecting errors.
type parse struct {
	path string
	errs []error
}

func (p *parse) pos(line int) schema.Position { return schema.Position{File: p.path, Line: line} }

func (p *parse) errorf(line int, element, format string, args ...any) {
	p.errs = append(p.errs, &cppgen.ConfigurationError{
		Element: element,
		File:    p.path,
		Line:    line,
		Message: fmt.Sprintf(format, args...),
	})
}

func (p *parse) pkg(doc *yamlPackage) *schema.Package {
	if doc.Package == "" {
		p.errorf(doc.line, "schema", "missing package name")
	}
	pkg := &schema.Package{
		Name:    doc.Package,
		Path:    p.path,
		Imports: doc.Imports,
		Options: doc.Options,
		Pos:     p.pos(doc.line),
	}
	for i := range doc.Messages {
		pkg.Messages = append(pkg.Messages, p.message(doc.Package, &doc.Messages[i]))
	}
	for i := range doc.Enums {
		pkg.Enums = append(pkg.Enums, p.enum(doc.Package, &doc.Enums[i]))
	}
	for i := range doc.Services {
		pkg.Services = append(pkg.Services, p.service(doc.Package, &doc.Services[i]))
	}
	return pkg
}

func (p *parse) message(scope string, y *yamlMessage) *schema.Message {
	path := scope + "." + y.Name
	if y.Name == "" {
		p.errorf(y.line, scope, "message without name")
	}
	m := &schema.Message{Name: y.Name, Options: y.Options, Pos: p.pos(y.line)}
	for i := range y.Fields {
		m.Fields = append(m.Fields, p.field(path, &y.Fields[i]))
	}
	for i := range y.Messages {
		m.Messages = append(m.Messages, p.message(path, &y.Messages[i]))
	}
	for i := range y.Enums {
		m.Enums = append(m.Enums, p.enum(path, &y.Enums[i]))
	}
	return m
}

func (p *parse) field(scope string, y *yamlField) *schema.Field {
	element := scope + "." + y.Name
	f := &schema.Field{Name: y.Name, Number: y.Number, Options: y.Options, Pos: p.pos(y.line)}
	if y.Name == "" {
		p.errorf(y.line, scope, "field without name")
	}
	q, err := schema.ParseQuantifier(y.Label)
	if err != nil {
		p.errorf(y.line, element, "%v", err)
	}
	f.Quantifier = q
	switch t, ok := schema.ParseType(y.Type); {
	case ok:
		f.Type = t
	case y.Type == "":
		p.errorf(y.line, element, "missing field type")
	default:
		f.Type, f.TypeName = schema.TypeMessage, y.Type
	}
	if y.Default != nil {
		f.Default, f.HasDefault = *y.Default, true
	}
	return f
}

func (p *parse) enum(scope string, y *yamlEnum) *schema.Enum {
	if y.Name == "" {
		p.errorf(y.line, scope, "enum without name")
	}
	e := &schema.Enum{Name: y.Name, Options: y.Options, Pos: p.pos(y.line)}
	for _, v := range y.Values {
		e.Values = append(e.Values, &schema.EnumValue{Name: v.Name, Number: v.Number, Options: v.Options, Pos: p.pos(v.line)})
	}
	return e
}

func (p *parse) service(scope string, y *yamlService) *schema.Service {
	element := scope + "." + y.Name
	svc := &schema.Service{Name: y.Name, Options: y.Options, Pos: p.pos(y.line)}
	for _, c := range y.Commands {
		kind, err := schema.ParseCommandKind(c.Kind)
		if err != nil {
			p.errorf(c.line, element+"."+c.Name, "%v", err)
		}
		if c.Request == "" {
			p.errorf(c.line, element+"."+c.Name, "missing request message")
		}
		svc.Commands = append(svc.Commands, &schema.Command{
			Name:     c.Name,
			ID:       c.ID,
			Kind:     kind,
			Request:  c.Request,
			Response: c.Response,
			Options:  c.Options,
			Pos:      p.pos(c.line),
		})
	}
	return svc
}
