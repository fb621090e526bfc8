// Package generator produces synthetic page events.
package generator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"pageflow/internal/pageflow"
	"pageflow/internal/pageflow/metrics"
	"pageflow/internal/validator"
)

// Default populations and bounds.
var (
	DefaultPages = []string{"P1", "P2"}
	DefaultUsers = []string{"U1", "U2"}

	// PeriodicBounds is used by the timer-driven generator.
	PeriodicBounds = Bounds{Min: 10, Max: 10010}
	// HTTPBounds is used for events created through the HTTP API.
	HTTPBounds = Bounds{Min: 10, Max: 1010}
)

// Bounds is the half-open range [Min, Max) a generated duration falls in.
type Bounds struct {
	Min int64 `env:"MIN"`
	Max int64 `env:"MAX"`
}

func (b Bounds) Validate() error {
	if b.Min < 0 || b.Max <= b.Min {
		return fmt.Errorf("invalid duration bounds [%d, %d)", b.Min, b.Max)
	}
	return nil
}

// Options configure a Generator. Zero values fall back to the defaults.
type Options struct {
	Pages  []string
	Users  []string
	Bounds Bounds
	Rand   *rand.Rand
	Now    func() time.Time
}

// Generator creates page events from an injected random source and clock.
// It is safe for concurrent use.
type Generator struct {
	mu     sync.Mutex
	rnd    *rand.Rand
	now    func() time.Time
	pages  []string
	users  []string
	bounds Bounds
}

func New(opts Options) (*Generator, error) {
	g := Generator{
		rnd:    opts.Rand,
		now:    opts.Now,
		pages:  opts.Pages,
		users:  opts.Users,
		bounds: opts.Bounds,
	}

	if g.rnd == nil {
		g.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if g.now == nil {
		g.now = time.Now
	}
	if len(g.pages) == 0 {
		g.pages = DefaultPages
	}
	if len(g.users) == 0 {
		g.users = DefaultUsers
	}
	if g.bounds == (Bounds{}) {
		g.bounds = PeriodicBounds
	}

	if err := g.bounds.Validate(); err != nil {
		return nil, err
	}

	return &g, nil
}

// Next returns an event for a random page.
func (g *Generator) Next() pageflow.PageEvent {
	g.mu.Lock()
	name := g.pages[g.rnd.IntN(len(g.pages))]
	g.mu.Unlock()

	return g.NewEvent(name)
}

// NewEvent returns an event for the given page with a random user and duration.
// An empty name yields the zero event; callers validate the name first.
func (g *Generator) NewEvent(name string) pageflow.PageEvent {
	g.mu.Lock()
	user := g.users[g.rnd.IntN(len(g.users))]
	duration := g.bounds.Min + g.rnd.Int64N(g.bounds.Max-g.bounds.Min)
	g.mu.Unlock()

	e, err := pageflow.NewPageEvent(name, user, g.now(), duration)
	if err != nil {
		return pageflow.PageEvent{}
	}
	return e
}

// Runner publishes one generated event per tick.
type Runner struct {
	generator *Generator
	publisher pageflow.Publisher
	registry  *metrics.Registry
	logger    *zap.Logger
	topic     string
	interval  time.Duration
}

func NewRunner(
	generator *Generator,
	publisher pageflow.Publisher,
	registry *metrics.Registry,
	logger *zap.Logger,
	topic string,
	interval time.Duration,
) (*Runner, error) {
	r := Runner{
		generator: generator,
		publisher: publisher,
		registry:  registry,
		logger:    logger,
		topic:     topic,
		interval:  interval,
	}

	if err := validator.Validate("generator", r.generator, r.publisher, r.registry, r.logger, r.topic, r.interval); err != nil {
		return nil, fmt.Errorf("failed to validate generator deps: %w", err)
	}
	r.logger = r.logger.Named("generator").With(zap.String("topic", topic))

	return &r, nil
}

// Run emits events until ctx is done. A failed publish is logged and the loop continues.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("generator started", zap.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("generator stopped")
			return nil
		case <-ticker.C:
			e := r.generator.Next()
			err := r.publisher.Publish(ctx, r.topic, e)
			r.registry.RecordGenerated(err)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				r.logger.Error("failed to publish generated event", zap.Stringer("event", e), zap.Error(err))
				continue
			}
			r.logger.Debug("generated event", zap.Stringer("event", e))
		}
	}
}
