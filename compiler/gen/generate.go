package gen

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/syssam/cppgen"
	"github.com/syssam/cppgen/compiler/options"
	"github.com/syssam/cppgen/schema"
)

// Artifact is one generated file.
type Artifact struct {
	// Path is the file path relative to the target directory.
	Path string
	// Package is the schema package of the artifact. It is empty for the
	// descriptor set.
	Package string
	// Deps are the schema files the content of the artifact depends on.
	Deps []string
	// Render produces the content. Failures are RenderErrors.
	Render func() ([]byte, error)
}

// Generator renders the artifacts of a resolved schema set.
type Generator struct {
	cfg       *Config
	set       *schema.Set
	renderers []*Renderer
	layout    *Layout
	errs      []error
	warnings  []cppgen.Warning
}

// New plans every package of set that resolved without errors and lays out
// the descriptor slots of the packages that planned. Planning errors do
// not fail New; they are reported by Err and the failing packages produce
// no artifacts.
func New(cfg *Config, set *schema.Set, rep *options.Report) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Generator{cfg: cfg, set: set}
	var planned []*schema.Package
	for _, pkg := range set.Packages() {
		if rep != nil && rep.PackageFailed(pkg.Name) {
			cfg.Logger.Debug().Str("package", pkg.Name).Msg("skip package with configuration errors")
			continue
		}
		r := NewRenderer(cfg, set, pkg)
		if err := r.Plan(); err != nil {
			g.errs = append(g.errs, err)
			continue
		}
		var svcs []*schema.Service
		for _, svc := range pkg.Services {
			switch {
			case rep != nil && rep.ServiceFailed(pkg.Name, svc.Name):
			case !commandsResolved(svc):
				cfg.Logger.Debug().Str("service", pkg.Name+"."+svc.Name).Msg("skip service with unresolved commands")
			default:
				svcs = append(svcs, svc)
			}
		}
		g.renderers = append(g.renderers, r.WithServices(svcs))
		planned = append(planned, pkg)
	}
	if cfg.HasFeature(FeatureReflection.Name) {
		g.layout = NewLayout(planned)
		for _, r := range g.renderers {
			r.WithLayout(g.layout)
		}
	}
	if rep != nil {
		for _, c := range rep.Customized() {
			g.warnings = append(g.warnings, cppgen.Warning{
				Element: c.String(),
				Message: fmt.Sprintf("custom option %s is not interpreted by the generator", c),
			})
		}
	}
	return g, nil
}

// commandsResolved reports if every request and response of svc names a
// message. Unresolved names are reported by schema.Set.Resolve.
func commandsResolved(svc *schema.Service) bool {
	for _, c := range svc.Commands {
		if c.RequestRef == nil || c.Response != "" && c.Kind == schema.CommandRequest && c.ResponseRef == nil {
			return false
		}
	}
	return true
}

// Err returns the planning errors of the failed packages joined.
func (g *Generator) Err() error { return errors.Join(g.errs...) }

// Warnings returns the generator warnings.
func (g *Generator) Warnings() []cppgen.Warning { return g.warnings }

// Layout returns the descriptor layout, or nil without reflection.
func (g *Generator) Layout() *Layout { return g.layout }

// Renderer returns the renderer of a planned package.
func (g *Generator) Renderer(pkg string) (*Renderer, bool) {
	i := slices.IndexFunc(g.renderers, func(r *Renderer) bool { return r.pkg.Name == pkg })
	if i < 0 {
		return nil, false
	}
	return g.renderers[i], true
}

// Artifacts returns the artifacts of the planned packages and, with
// reflection, the descriptor set, sorted by path.
func (g *Generator) Artifacts() []Artifact {
	var arts []Artifact
	for _, r := range g.renderers {
		pkg := r.pkg
		deps := []string{pkg.Path}
		for _, name := range g.set.Dependencies(pkg) {
			if dep, ok := g.set.Package(name); ok && !slices.Contains(deps, dep.Path) {
				deps = append(deps, dep.Path)
			}
		}
		arts = append(arts,
			Artifact{
				Path:    HeaderPath(pkg),
				Package: pkg.Name,
				Deps:    deps,
				Render:  renderFunc(HeaderPath(pkg), "declaration", r.Header),
			},
			Artifact{
				Path:    SourcePath(pkg),
				Package: pkg.Name,
				Deps:    deps,
				Render:  renderFunc(SourcePath(pkg), "implementation", r.Source),
			},
		)
	}
	if g.layout != nil {
		var deps []string
		for _, p := range g.layout.Packages() {
			deps = append(deps, p.Path)
		}
		arts = append(arts,
			Artifact{
				Path:   DescriptorSetHeader,
				Deps:   deps,
				Render: renderFunc(DescriptorSetHeader, "descriptor-set", func() ([]byte, error) { return DescriptorSetHeaderFile(g.cfg, g.layout) }),
			},
			Artifact{
				Path:   DescriptorSetSource,
				Deps:   deps,
				Render: renderFunc(DescriptorSetSource, "descriptor-set", func() ([]byte, error) { return DescriptorSetSourceFile(g.cfg, g.layout) }),
			},
		)
	}
	slices.SortFunc(arts, func(a, b Artifact) int { return strings.Compare(a.Path, b.Path) })
	return arts
}

// renderFunc wraps the failures of render in RenderErrors of path.
func renderFunc(path, phase string, render func() ([]byte, error)) func() ([]byte, error) {
	return func() ([]byte, error) {
		b, err := render()
		if err != nil {
			if cppgen.IsRenderError(err) {
				return nil, err
			}
			return nil, cppgen.NewRenderError(path, phase, "", err)
		}
		return b, nil
	}
}
