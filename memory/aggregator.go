package memory

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/lifemesh/core"
	"github.com/hupe1980/lifemesh/feature"
	"github.com/hupe1980/lifemesh/logging"
)

// AggregatorOptions configures an Aggregator.
type AggregatorOptions struct {
	Logger logging.Logger
	Deps   feature.DepsFactory
}

// Aggregator collects context from the providers of a registry.
type Aggregator struct {
	registry *feature.Registry[*Definition]
	opts     AggregatorOptions
}

// NewAggregator creates an aggregator over reg.
func NewAggregator(reg *feature.Registry[*Definition], optFns ...func(o *AggregatorOptions)) *Aggregator {
	opts := AggregatorOptions{
		Logger: logging.NoOpLogger{},
		Deps:   feature.NoDeps,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.Deps == nil {
		opts.Deps = feature.NoDeps
	}
	return &Aggregator{registry: reg, opts: opts}
}

// Collection is the context assembled for one turn. Blocking providers have
// settled when it is returned; non-blocking providers may still be running.
type Collection struct {
	transcript []core.Message

	mu      sync.Mutex
	entries []entry
	pending int

	done chan struct{}
}

type entry struct {
	position Position
	msgs     []core.Message
	ready    bool
}

// Collect runs the enabled providers against transcript. Blocking providers
// are awaited one after another before Collect returns. A provider error or
// panic is logged and the provider contributes nothing.
func (a *Aggregator) Collect(ctx context.Context, transcript []core.Message) *Collection {
	defs := a.registry.All()
	c := &Collection{
		transcript: append([]core.Message(nil), transcript...),
		entries:    make([]entry, len(defs)),
		done:       make(chan struct{}),
	}

	var g errgroup.Group
	for i, def := range defs {
		c.entries[i].position = def.options.Position
		if def.options.Disabled {
			c.entries[i].ready = true
			continue
		}

		if def.options.Behavior == Blocking {
			c.settle(i, a.produce(ctx, def, c.transcript))
			continue
		}

		c.mu.Lock()
		c.pending++
		c.mu.Unlock()

		g.Go(func() error {
			c.settle(i, a.produce(ctx, def, c.transcript))
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(c.done)
	}()

	return c
}

func (a *Aggregator) produce(ctx context.Context, def *Definition, transcript []core.Message) (msgs []core.Message) {
	defer func() {
		if r := recover(); r != nil {
			a.opts.Logger.Error("memory.panic", "memory", def.name, "recover", r)
			msgs = nil
		}
	}()

	in := Input{
		Messages: transcript,
		Deps:     a.opts.Deps(feature.Scope{Owner: def.name, Declared: def.dependencies}),
		Logger:   a.opts.Logger,
	}
	out, err := def.output(ctx, in)
	if err != nil {
		a.opts.Logger.Warn("memory.failed", "memory", def.name, "error", err)
		return nil
	}
	return out
}

func (c *Collection) settle(i int, msgs []core.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries[i].ready {
		return
	}
	c.entries[i].msgs = msgs
	c.entries[i].ready = true
}

// Messages returns the context assembled from every provider that has
// settled so far. It never waits.
func (c *Collection) Messages() []core.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	var buckets [4][]core.Message
	for _, e := range c.entries {
		if !e.ready {
			continue
		}
		b := e.position.bucket()
		buckets[b] = append(buckets[b], e.msgs...)
	}

	out := make([]core.Message, 0, len(c.transcript)+len(buckets[0])+len(buckets[1])+len(buckets[2])+len(buckets[3]))
	out = append(out, buckets[0]...)
	out = append(out, buckets[1]...)
	out = append(out, c.transcript...)
	out = append(out, buckets[2]...)
	out = append(out, buckets[3]...)
	return out
}

// Done is closed once every provider has settled.
func (c *Collection) Done() <-chan struct{} { return c.done }

// Wait blocks until every provider has settled or ctx is done and returns
// the assembled context. On cancellation it returns what was ready together
// with ctx's error.
func (c *Collection) Wait(ctx context.Context) ([]core.Message, error) {
	select {
	case <-c.done:
		return c.Messages(), nil
	case <-ctx.Done():
		return c.Messages(), ctx.Err()
	}
}

// Pending returns the number of non-blocking providers that were launched.
func (c *Collection) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}
