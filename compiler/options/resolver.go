package options

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/syssam/cppgen"
	"github.com/syssam/cppgen/schema"
)

// Resolver computes the final option set of every schema element from the
// configuration layers and the inline options. Layers apply in the order
// global defaults, package overrides, service overrides, inline.
type Resolver struct {
	defaults   map[schema.Kind]layer
	packages   map[string]layer
	services   map[string]layer
	extensions map[schema.Kind]map[string]int
	extNames   map[schema.Kind][]string
	log        zerolog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for resolution diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

// NewResolver validates cfg and returns a resolver for it. A nil cfg is
// an empty configuration.
func NewResolver(cfg *Config, opts ...Option) (*Resolver, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	r := &Resolver{
		defaults:   make(map[schema.Kind]layer),
		packages:   make(map[string]layer),
		services:   make(map[string]layer),
		extensions: make(map[schema.Kind]map[string]int),
		extNames:   make(map[schema.Kind][]string),
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	var errs []error
	for _, key := range sortedKeys(cfg.Extensions) {
		if err := r.declareExtension(key, cfg.Extensions[key]); err != nil {
			errs = append(errs, err)
		}
	}
	for _, name := range sortedKeys(cfg.Defaults) {
		element := "defaults." + name
		kind, ok := schema.ParseKind(name)
		if !ok {
			errs = append(errs, cppgen.NewConfigurationError(element, "", "unknown element kind"))
			continue
		}
		l, err := flatten(cfg.Defaults[name])
		if err != nil {
			errs = append(errs, &cppgen.ConfigurationError{Element: element, Message: "malformed table", Cause: err})
			continue
		}
		for _, opt := range sortedKeys(l) {
			if !r.known(kind, opt) {
				errs = append(errs, cppgen.NewConfigurationError(element, opt, "unknown option"))
			}
		}
		r.defaults[kind] = l
	}
	for _, tables := range []struct {
		section string
		in      map[string]map[string]any
		out     map[string]layer
	}{
		{"packages", cfg.Packages, r.packages},
		{"services", cfg.Services, r.services},
	} {
		for _, name := range sortedKeys(tables.in) {
			l, err := flatten(tables.in[name])
			if err != nil {
				errs = append(errs, &cppgen.ConfigurationError{
					Element: tables.section + "." + name,
					Message: "malformed table",
					Cause:   err,
				})
				continue
			}
			tables.out[name] = l
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Resolver) declareExtension(key string, id int) error {
	kindName, name, ok := strings.Cut(key, ".")
	if !ok || name == "" {
		return cppgen.NewConfigurationError("extensions", key, `extension must be declared as "kind.name"`)
	}
	kind, ok := schema.ParseKind(kindName)
	if !ok {
		return cppgen.NewConfigurationError("extensions", key, "unknown element kind")
	}
	if id < schema.CustomThreshold {
		return cppgen.NewConfigurationError("extensions", key,
			fmt.Sprintf("extension id %d is below the custom threshold %d", id, schema.CustomThreshold))
	}
	if _, ok := schema.LookupOption(kind, name); ok {
		return cppgen.NewConfigurationError("extensions", key, "extension shadows a built-in option")
	}
	if r.extensions[kind] == nil {
		r.extensions[kind] = make(map[string]int)
	}
	r.extensions[kind][name] = id
	r.extNames[kind] = append(r.extNames[kind], name)
	slices.Sort(r.extNames[kind])
	return nil
}

func (r *Resolver) known(kind schema.Kind, name string) bool {
	if _, ok := schema.LookupOption(kind, name); ok {
		return true
	}
	_, ok := r.extensions[kind][name]
	return ok
}

// Resolve annotates every element of the set with its resolved options.
// Errors are local to their element; resolution continues and every error
// and warning is collected in the report.
func (r *Resolver) Resolve(set *schema.Set) *Report {
	rep := newReport()
	visitedPkgs := make(map[string]bool)
	visitedSvcs := make(map[string]bool)
	for _, p := range set.Packages() {
		visitedPkgs[p.Name] = true
		w := &walker{r: r, rep: rep, pkg: p, layer: r.packages[p.Name], used: make(map[string]bool), paths: make(map[string]bool)}
		w.walk()
		for _, svc := range p.Services {
			visitedSvcs[p.Name+"."+svc.Name] = true
		}
		r.log.Debug().
			Str("package", p.Name).
			Int("errors", len(rep.Errors)).
			Int("warnings", len(rep.Warnings)).
			Msg("options resolved")
	}
	for _, name := range sortedKeys(r.packages) {
		if !visitedPkgs[name] {
			rep.warn("", 0, "packages."+name, "override table names no package")
		}
	}
	for _, name := range sortedKeys(r.services) {
		if !visitedSvcs[name] {
			rep.warn("", 0, "services."+name, "override table names no service")
		}
	}
	return rep
}

// boundLayer is a layer seen from one element: keys are prefix + option.
type boundLayer struct {
	l      layer
	prefix string
	used   map[string]bool
}

// walker resolves the elements of one package in declaration order.
type walker struct {
	r     *Resolver
	rep   *Report
	pkg   *schema.Package
	layer layer
	used  map[string]bool
	// paths are the element paths a package override key may address.
	paths map[string]bool
}

func (w *walker) walk() {
	p := w.pkg
	w.element(schema.KindPackage, p.Name, "", p.Pos, &p.Resolved, p.Options, nil)
	for _, e := range p.Enums {
		w.enum(e)
	}
	for _, m := range p.Messages {
		w.message(m)
	}
	for _, svc := range p.Services {
		w.service(svc)
	}
	w.unused(w.layer, w.used, "packages."+p.Name, w.paths)
}

func (w *walker) message(m *schema.Message) {
	path := m.Path()
	w.element(schema.KindMessage, w.qualified(path), path+".", m.Pos, &m.Resolved, m.Options, nil)
	for _, f := range m.Fields {
		fpath := path + "." + f.Name
		w.element(schema.KindField, w.qualified(fpath), fpath+".", f.Pos, &f.Resolved, f.Options, nil)
	}
	for _, e := range m.Enums {
		w.enum(e)
	}
	for _, c := range m.Messages {
		w.message(c)
	}
}

func (w *walker) enum(e *schema.Enum) {
	path := e.Path()
	w.element(schema.KindEnum, w.qualified(path), path+".", e.Pos, &e.Resolved, e.Options, nil)
	for _, v := range e.Values {
		vpath := path + "." + v.Name
		w.element(schema.KindEnumValue, w.qualified(vpath), vpath+".", v.Pos, &v.Resolved, v.Options, nil)
	}
}

func (w *walker) service(svc *schema.Service) {
	qualified := w.qualified(svc.Name)
	svcLayer := &boundLayer{l: w.r.services[qualified], used: make(map[string]bool)}
	svcPaths := make(map[string]bool)
	failed := w.element(schema.KindService, qualified, svc.Name+".", svc.Pos, &svc.Resolved, svc.Options, svcLayer)
	for _, c := range svc.Commands {
		cpath := svc.Name + "." + c.Name
		svcPaths[c.Name] = true
		cmdLayer := &boundLayer{l: svcLayer.l, prefix: c.Name + ".", used: svcLayer.used}
		if w.element(schema.KindMethod, w.qualified(cpath), cpath+".", c.Pos, &c.Resolved, c.Options, cmdLayer) {
			failed = true
		}
		if !c.Resolved.Has(schema.OptMethodClassName) {
			w.rep.warn(c.Pos.File, c.Pos.Line, w.qualified(cpath),
				fmt.Sprintf("command has no class_name; using %q", c.Name))
			c.Resolved.Set(schema.OptMethodClassName, c.Name)
		}
	}
	if failed {
		w.rep.failedServices[qualified] = true
	}
	w.unused(svcLayer.l, svcLayer.used, "services."+qualified, svcPaths)
}

func (w *walker) qualified(path string) string { return w.pkg.Name + "." + path }

// element resolves one element. The service layer is nil outside services.
// It reports whether the element failed.
func (w *walker) element(kind schema.Kind, name, prefix string, pos schema.Position, target *schema.OptionSet, inline []schema.Option, svc *boundLayer) bool {
	*target = schema.OptionSet{}
	if kind != schema.KindPackage {
		w.paths[strings.TrimSuffix(prefix, ".")] = true
	}
	layers := []*boundLayer{
		{l: w.r.defaults[kind], used: map[string]bool{}},
		{l: w.layer, prefix: prefix, used: w.used},
	}
	if kind == schema.KindPackage {
		layers[1].prefix = ""
	}
	if svc != nil {
		layers = append(layers, svc)
	}
	var errs []error
	fail := func(option, msg string) {
		errs = append(errs, &cppgen.ConfigurationError{
			Element: name,
			Option:  option,
			File:    pos.File,
			Line:    pos.Line,
			Message: msg,
		})
	}
	set := func(opt, value string, id int) {
		if spec, ok := schema.LookupOption(kind, opt); ok {
			if err := spec.CheckValue(value); err != nil {
				fail(opt, err.Error())
				return
			}
			target.Set(spec.ID, value)
			return
		}
		if id == 0 {
			id = w.r.extensions[kind][opt]
		}
		target.SetExtension(schema.Extension{Name: opt, ID: id, Value: value})
		w.rep.customized[Customization{Kind: kind, Name: opt}] = struct{}{}
	}
	names := w.r.names(kind)
	for _, l := range layers {
		if l.l == nil {
			continue
		}
		for _, opt := range names {
			key := l.prefix + opt
			if v, ok := l.l[key]; ok {
				l.used[key] = true
				set(opt, v, 0)
			}
		}
	}
	for _, o := range inline {
		switch {
		case o.Custom():
			set(o.Name, o.Value, o.ID)
		case w.r.known(kind, o.Name):
			set(o.Name, o.Value, 0)
		default:
			fail(o.Name, "unknown option")
		}
	}
	for _, spec := range schema.OptionSpecs(kind) {
		if spec.Required && !target.Has(spec.ID) {
			fail(spec.Name, "required option is missing")
		}
	}
	if len(errs) == 0 {
		return false
	}
	w.rep.Errors = append(w.rep.Errors, errs...)
	if kind != schema.KindService && kind != schema.KindMethod {
		w.rep.failedPackages[w.pkg.Name] = true
	}
	return true
}

// names returns the built-in option names of kind followed by the
// declared extensions, both in a fixed order.
func (r *Resolver) names(kind schema.Kind) []string {
	specs := schema.OptionSpecs(kind)
	names := make([]string, 0, len(specs)+len(r.extNames[kind]))
	for _, s := range specs {
		names = append(names, s.Name)
	}
	return append(names, r.extNames[kind]...)
}

// unused reports the keys of l no element consumed. A key whose element
// exists names an unknown option; any other key names no element.
func (w *walker) unused(l layer, used map[string]bool, table string, paths map[string]bool) {
	for _, key := range sortedKeys(l) {
		if used[key] {
			continue
		}
		path, opt, found := cutLast(key)
		if !found || paths[path] {
			w.rep.Errors = append(w.rep.Errors, &cppgen.ConfigurationError{
				Element: table,
				Option:  key,
				Message: fmt.Sprintf("unknown option %q", opt),
			})
			if strings.HasPrefix(table, "services.") {
				w.rep.failedServices[strings.TrimPrefix(table, "services.")] = true
			} else {
				w.rep.failedPackages[w.pkg.Name] = true
			}
			continue
		}
		w.rep.warn("", 0, table, fmt.Sprintf("override key %q names no element", key))
	}
}

// cutLast splits key at its last dot. Without a dot the whole key is the
// option name.
func cutLast(key string) (path, opt string, found bool) {
	i := strings.LastIndexByte(key, '.')
	if i < 0 {
		return "", key, false
	}
	return key[:i], key[i+1:], true
}
