package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/lifemesh/agent"
	"github.com/hupe1980/lifemesh/config"
	"github.com/hupe1980/lifemesh/core"
	"github.com/hupe1980/lifemesh/effect"
	"github.com/hupe1980/lifemesh/feature"
	"github.com/hupe1980/lifemesh/logging"
	"github.com/hupe1980/lifemesh/session"
)

// Options configures an Engine instance using the functional options pattern.
//
// Every field has a working default, so New() alone yields an engine backed
// by in-memory sessions that logs nothing.
//
// Example:
//
//	eng := engine.New(func(o *engine.Options) {
//	    o.Project = prepared.Server
//	    o.Sessions = redisStore
//	    o.Logger = logger
//	})
type Options struct {
	// Logger provides structured logging for debugging and monitoring.
	// Defaults to NoOp logger if nil.
	Logger logging.Logger

	// Project is the prepared project configuration. The section
	// agents.<name> is the global configuration of the agent <name>.
	Project map[string]any

	// Sessions persists transcripts. Each agent uses its name as session ID.
	// Defaults to an in-memory store shared by all agents.
	Sessions core.SessionStore

	// MaxParallel bounds parallel action batches of every agent.
	MaxParallel int

	// Callbacks receives the turn lifecycle hooks of every agent.
	Callbacks *agent.CallbackManager

	// Gateway connects effect trackers to an agent's effect host. Defaults
	// to an in-process gateway.
	Gateway func(h *effect.Host) effect.Gateway
}

// Engine hosts several isolated agent loops by name.
//
// Agents are registered before Start; each one gets its own queue, feature
// registries and effect host. Once started, percepts are routed by agent
// name. Stop closes every queue and waits for the loops to drain, which
// makes the engine usable as a shutdown step.
//
// All methods are safe for concurrent use.
type Engine struct {
	opts   Options
	logger logging.Logger

	mu      sync.RWMutex
	loops   map[string]*agent.Loop
	order   []string
	started bool

	wg   sync.WaitGroup
	done chan struct{}
}

// New creates an engine with sensible defaults.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.Sessions == nil {
		opts.Sessions = session.NewInMemoryStore()
	}
	if opts.Callbacks == nil {
		opts.Callbacks = agent.NewCallbackManager()
	}

	logger := opts.Logger
	if sl, ok := logger.(*logging.StructuredLogger); ok {
		logger = sl.WithComponent("engine")
	}

	return &Engine{
		opts:   opts,
		logger: logger,
		loops:  make(map[string]*agent.Loop),
		done:   make(chan struct{}),
	}
}

// Register resolves def into an agent loop. The agent's configuration is its
// local configuration over the project section agents.<name>. Registering
// after Start or registering a name twice fails with a KindValidation error.
func (e *Engine) Register(def *agent.Definition) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	op := "engine.register"
	if e.started {
		return core.NewError(core.KindValidation, op, "agent %q: engine already started", def.Name())
	}
	if _, ok := e.loops[def.Name()]; ok {
		return core.WrapError(core.KindValidation, op, feature.ErrDuplicate)
	}

	loop, err := agent.NewLoop(def, func(o *agent.Options) {
		o.Logger = e.opts.Logger
		o.GlobalConfig = config.Section(e.opts.Project, "agents", def.Name())
		o.Sessions = e.opts.Sessions
		o.SessionID = def.Name()
		o.MaxParallel = e.opts.MaxParallel
		o.Callbacks = e.opts.Callbacks
		o.Gateway = e.opts.Gateway
	})
	if err != nil {
		return err
	}

	e.loops[def.Name()] = loop
	e.order = append(e.order, def.Name())
	e.logger.Debug("engine.register", "agent", def.Name())
	return nil
}

// Names returns the registered agent names in registration order.
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.order...)
}

// Loop returns the loop of the named agent.
func (e *Engine) Loop(name string) (*agent.Loop, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	l, ok := e.loops[name]
	if !ok {
		return nil, core.NewError(core.KindNotFound, "engine.agent", "agent %q is not registered", name)
	}
	return l, nil
}

// Start runs every registered loop in its own goroutine. The loops end when
// Stop is called or ctx is done. Start may be called once.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return core.NewError(core.KindValidation, "engine.start", "engine already started")
	}
	e.started = true
	loops := make([]*agent.Loop, 0, len(e.order))
	for _, name := range e.order {
		loops = append(loops, e.loops[name])
	}
	e.mu.Unlock()

	e.logger.Info("engine.start", "agents", len(loops))

	for _, l := range loops {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := l.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				e.logger.Error("engine.loop_failed", "agent", l.Name(), "error", err)
			}
		}()
	}

	go func() {
		e.wg.Wait()
		close(e.done)
	}()
	return nil
}

// Push routes p to the named agent.
func (e *Engine) Push(name string, p core.Percept) error {
	l, err := e.Loop(name)
	if err != nil {
		return err
	}
	l.Push(p)
	return nil
}

// PushFirst routes p to the head of the named agent's queue.
func (e *Engine) PushFirst(name string, p core.Percept) error {
	l, err := e.Loop(name)
	if err != nil {
		return err
	}
	l.PushFirst(p)
	return nil
}

// ClientConfig returns the client-visible configuration of the named agent.
func (e *Engine) ClientConfig(name string) (map[string]any, error) {
	l, err := e.Loop(name)
	if err != nil {
		return nil, err
	}
	return l.Config().Client, nil
}

// Host returns the effect host of the named agent.
func (e *Engine) Host(name string) (*effect.Host, error) {
	l, err := e.Loop(name)
	if err != nil {
		return nil, err
	}
	return l.Host(), nil
}

// Transcript returns the transcript of the named agent.
func (e *Engine) Transcript(name string) ([]core.Message, error) {
	l, err := e.Loop(name)
	if err != nil {
		return nil, err
	}
	return l.Transcript()
}

// Done is closed once every started loop has returned.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Stop stops every queue and waits until the loops have drained their
// pending percepts and unmounted their effects. If ctx ends first a
// KindTimeout error is returned; the loops keep draining in the background.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	started := e.started
	loops := make([]*agent.Loop, 0, len(e.loops))
	for _, name := range e.order {
		loops = append(loops, e.loops[name])
	}
	e.mu.Unlock()

	for _, l := range loops {
		l.Stop()
	}
	if !started {
		return nil
	}

	done := logging.StartTimer(e.logger, "engine.stop")
	select {
	case <-e.done:
		done()
		return nil
	case <-ctx.Done():
		return core.WrapError(core.KindTimeout, "engine.stop", ctx.Err())
	}
}
