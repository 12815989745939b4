package gen

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/syssam/cppgen/compiler/plan"
	"github.com/syssam/cppgen/schema"
)

// state is the rendering state of one message. It only moves forward.
type state uint8

const (
	stateUnplanned state = iota
	statePlanned
	stateDeclared
	stateImplemented
)

var stateNames = [...]string{"unplanned", "planned", "declared", "implemented"}

func (s state) String() string { return stateNames[s] }

// record memoizes the rendering of one message, addressed by its id.
type record struct {
	state state
	// busy is set while the implementation walk is below the message.
	busy bool
	plan *plan.MessagePlan
	// class is the class definition, inlines the out-of-class inline
	// accessor definitions and impl the implementation text.
	class   string
	inlines string
	impl    string
}

// Stats counts the state transitions of a renderer.
type Stats struct {
	Planned     int
	Declared    int
	Implemented int
	// ShortCircuits counts implementation visits of a message that was
	// already implemented or on the current walk.
	ShortCircuits int
}

// Renderer renders the header and the implementation file of one package.
// Both share the per-message records, guarded by the renderer lock.
type Renderer struct {
	mu       sync.Mutex
	cfg      *Config
	set      *schema.Set
	pkg      *schema.Package
	planner  *plan.Planner
	layout   *Layout
	services []*schema.Service
	records  []*record
	// order lists the classes in definition order.
	order []*schema.Message
	// walked lists the implemented messages in emission order.
	walked  []int
	planned bool
	err     error
	stats   Stats
	log     zerolog.Logger
}

// NewRenderer returns a renderer of pkg. Services are rendered only if
// listed with WithServices.
func NewRenderer(cfg *Config, set *schema.Set, pkg *schema.Package) *Renderer {
	r := &Renderer{
		cfg:     cfg,
		set:     set,
		pkg:     pkg,
		planner: plan.New(set, plan.WithLogger(cfg.Logger)),
		records: make([]*record, len(pkg.AllMessages())),
		log:     cfg.Logger.With().Str("package", pkg.Name).Logger(),
	}
	for i := range r.records {
		r.records[i] = &record{}
	}
	return r
}

// WithServices sets the services the renderer emits command tables for.
func (r *Renderer) WithServices(svcs []*schema.Service) *Renderer {
	r.services = svcs
	return r
}

// WithLayout sets the descriptor layout of the build.
func (r *Renderer) WithLayout(l *Layout) *Renderer {
	r.layout = l
	return r
}

// Package returns the rendered package.
func (r *Renderer) Package() *schema.Package { return r.pkg }

// Stats returns the state transition counts.
func (r *Renderer) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Plan plans every message of the package and orders its classes. All
// planning errors are returned joined; a package that fails planning is
// not rendered.
func (r *Renderer) Plan() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.planAll()
}

func (r *Renderer) planAll() error {
	if r.planned {
		return r.err
	}
	r.planned = true
	var errs []error
	for _, m := range r.pkg.AllMessages() {
		if err := r.planMessage(m); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		order, err := r.orderClasses()
		if err != nil {
			errs = append(errs, err)
		}
		r.order = order
	}
	r.err = errors.Join(errs...)
	return r.err
}

func (r *Renderer) planMessage(m *schema.Message) error {
	rec := r.records[m.ID]
	if rec.state >= statePlanned {
		return nil
	}
	mp, err := r.planner.Message(r.pkg, m)
	if err != nil {
		return err
	}
	rec.plan = mp
	rec.state = statePlanned
	r.stats.Planned++
	return nil
}

// declare renders the class definition of a planned message.
func (r *Renderer) declare(id int) *record {
	rec := r.records[id]
	if rec.state >= stateDeclared {
		return rec
	}
	rec.class, rec.inlines = r.declareClass(rec.plan)
	rec.state = stateDeclared
	r.stats.Declared++
	return rec
}

// implement renders the implementation of a message, then walks its
// nested classes and the messages of the package its fields refer to.
// A message already implemented, or on the current walk, is not entered
// again; every message is emitted exactly once, in pre-order.
func (r *Renderer) implement(id int) {
	rec := r.records[id]
	if rec.state == stateImplemented || rec.busy {
		r.stats.ShortCircuits++
		return
	}
	r.declare(id)
	rec.busy = true
	rec.impl = r.implementClass(rec.plan)
	r.walked = append(r.walked, id)
	for _, c := range rec.plan.Message.Messages {
		r.implement(c.ID)
	}
	for _, fp := range rec.plan.Fields {
		if fp.IsMessage() && fp.Target.Package == r.pkg.Name {
			r.implement(fp.Target.ID)
		}
	}
	rec.busy = false
	rec.state = stateImplemented
	r.stats.Implemented++
	r.log.Trace().Str("message", rec.plan.Message.Path()).Msg("message implemented")
}

// reflection reports if descriptors are rendered.
func (r *Renderer) reflection() bool {
	return r.cfg.HasFeature(FeatureReflection.Name) && r.layout != nil
}
