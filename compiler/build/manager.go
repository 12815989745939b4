package build

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/cppgen"
)

// Exit statuses of a build.
const (
	ExitClean   = 0 // nothing was regenerated
	ExitFailed  = 1 // at least one hard error
	ExitWritten = 2 // at least one artifact was written
)

// Manager runs rules on a bounded pool of workers.
type Manager struct {
	workers     int
	stopOnError bool
	log         zerolog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithWorkers sets the number of rules generated concurrently. Values
// below one are ignored.
func WithWorkers(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithStopOnError cancels the remaining rules after the first failure.
func WithStopOnError(stop bool) ManagerOption {
	return func(m *Manager) { m.stopOnError = stop }
}

// WithManagerLogger sets the logger of the manager.
func WithManagerLogger(l zerolog.Logger) ManagerOption {
	return func(m *Manager) { m.log = l }
}

// NewManager returns a manager with one worker.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{workers: 1, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Outcome is the result of one rule.
type Outcome struct {
	Target string
	Result Result
	Err    error
}

// Summary collects the outcomes of a run in rule order.
type Summary struct {
	Outcomes []Outcome
}

// Count returns the number of outcomes with result r and no error.
func (s *Summary) Count(r Result) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Err == nil && o.Result == r {
			n++
		}
	}
	return n
}

// Failed returns the outcomes that failed.
func (s *Summary) Failed() []Outcome {
	var failed []Outcome
	for _, o := range s.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// Err joins the errors of the failed outcomes.
func (s *Summary) Err() error {
	var errs []error
	for _, o := range s.Failed() {
		errs = append(errs, o.Err)
	}
	return errors.Join(errs...)
}

// ExitCode returns ExitFailed if a rule failed, ExitWritten if a target
// was written and ExitClean otherwise.
func (s *Summary) ExitCode() int {
	switch {
	case len(s.Failed()) > 0:
		return ExitFailed
	case s.Count(Written) > 0:
		return ExitWritten
	default:
		return ExitClean
	}
}

// Run generates every rule. Failures, including panics of Render, are
// recorded per target and never abort the other rules unless the manager
// stops on error. Rules that did not run are Skipped.
func (m *Manager) Run(ctx context.Context, rules []*Rule) *Summary {
	s := &Summary{Outcomes: make([]Outcome, len(rules))}
	for i, r := range rules {
		s.Outcomes[i] = Outcome{Target: r.Target, Result: Skipped}
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(m.workers)
	for i, r := range rules {
		eg.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			start := time.Now()
			res, err := m.generate(ctx, r)
			if res == Skipped && ctx.Err() != nil {
				return nil
			}
			s.Outcomes[i] = Outcome{Target: r.Target, Result: res, Err: err}
			if err != nil {
				m.log.Error().Err(err).Str("target", r.Target).Msg("generate")
				if m.stopOnError {
					return err
				}
				return nil
			}
			m.log.Debug().Str("target", r.Target).Stringer("result", res).Dur("took", time.Since(start)).Msg("generate")
			return nil
		})
	}
	_ = eg.Wait()
	return s
}

// generate runs one rule and turns a panic into a RenderError.
func (m *Manager) generate(ctx context.Context, r *Rule) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res, err = Fresh, cppgen.NewRenderError(r.Target, "render", fmt.Sprintf("panic: %v", p), nil)
		}
	}()
	res, err = r.Generate(ctx)
	if err != nil && !cppgen.IsRenderError(err) {
		err = cppgen.NewRenderError(r.Target, "generate", "", err)
	}
	return res, err
}
