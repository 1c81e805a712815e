package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/lifemesh/action"
	"github.com/hupe1980/lifemesh/config"
	"github.com/hupe1980/lifemesh/core"
	"github.com/hupe1980/lifemesh/effect"
	"github.com/hupe1980/lifemesh/feature"
	"github.com/hupe1980/lifemesh/gate"
	"github.com/hupe1980/lifemesh/logging"
	"github.com/hupe1980/lifemesh/memory"
	"github.com/hupe1980/lifemesh/model"
	"github.com/hupe1980/lifemesh/queue"
	"github.com/hupe1980/lifemesh/session"
)

// ErrRunning is returned by Run when the loop is already running or has run.
var ErrRunning = errors.New("agent: loop already started")

// Options configures a Loop.
type Options struct {
	Logger logging.Logger
	// GlobalConfig is the project configuration of this agent. The
	// definition's local configuration takes precedence over it.
	GlobalConfig map[string]any
	// Sessions persists the transcript. Defaults to an in-memory store.
	Sessions core.SessionStore
	// SessionID selects the transcript. Defaults to the agent name.
	SessionID string
	// MaxParallel bounds parallel action batches.
	MaxParallel int
	// Callbacks receives turn lifecycle hooks.
	Callbacks *CallbackManager
	// Gateway connects effect trackers handed to features to the loop's
	// effect host. Defaults to effect.LocalGateway.
	Gateway func(h *effect.Host) effect.Gateway
	// UnmountTimeout bounds unmounting effects when Run ends.
	UnmountTimeout time.Duration
}

// Loop consumes percepts for one agent: it assembles memory context, asks
// the decision gate, generates replies and dispatches the requested actions.
// A Loop owns its queue and feature registries.
type Loop struct {
	def  *Definition
	opts Options

	cfg       *config.Prepared
	window    int
	maxRounds int
	reactive  bool
	hint      string

	logger    logging.Logger
	queue     *queue.Queue[core.Percept]
	actions   *action.Dispatcher
	memories  *memory.Aggregator
	gate      *gate.Gate
	host      *effect.Host
	callbacks *CallbackManager

	started    atomic.Bool
	background sync.WaitGroup
}

// NewLoop resolves def into a runnable loop. Configuration is prepared from the
// definition's local configuration over opts.GlobalConfig; a configuration
// that fails validation is returned as a KindValidation error.
func NewLoop(def *Definition, optFns ...func(o *Options)) (*Loop, error) {
	opts := Options{
		Logger:         logging.NoOpLogger{},
		UnmountTimeout: 10 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.Sessions == nil {
		opts.Sessions = session.NewInMemoryStore()
	}
	if opts.SessionID == "" {
		opts.SessionID = def.name
	}
	if opts.Callbacks == nil {
		opts.Callbacks = NewCallbackManager()
	}
	if opts.Gateway == nil {
		opts.Gateway = effect.LocalGateway
	}

	cfg, err := config.Prepare(def.config, opts.GlobalConfig, def.fullSchema, def.clientSchema)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", def.name, err)
	}

	logger := opts.Logger
	if sl, ok := logger.(*logging.StructuredLogger); ok {
		logger = sl.WithAgent(def.name)
	}

	l := &Loop{
		def:       def,
		opts:      opts,
		cfg:       cfg,
		window:    intSetting(cfg.Server, 20, "transcript", "window"),
		maxRounds: intSetting(cfg.Server, 4, "generation", "maxRounds"),
		reactive:  boolSetting(cfg.Server, true, "reactivity", "enabled"),
		hint:      def.hint,
		logger:    logger,
		queue:     queue.New[core.Percept](),
		callbacks: opts.Callbacks,
	}
	if h, ok := config.Lookup(cfg.Server, "reactivity", "hint"); ok {
		if s, _ := h.(string); s != "" {
			l.hint = s
		}
	}

	deps := func(scope feature.Scope) core.Dependencies {
		return feature.NewDeps(scope, l.actions.Runner, l.host.Resolver(opts.Gateway(l.host)), cfg.Server)
	}

	l.host = effect.NewHost(def.effects, func(o *effect.HostOptions) {
		o.Logger = logger
		o.Deps = deps
	})
	l.actions = action.NewDispatcher(def.actions, func(o *action.DispatcherOptions) {
		o.Logger = logger
		o.Deps = deps
		o.MaxParallel = opts.MaxParallel
	})
	l.memories = memory.NewAggregator(def.memories, func(o *memory.AggregatorOptions) {
		o.Logger = logger
		o.Deps = deps
	})
	l.gate = gate.New(def.gateModel, func(o *gate.Options) {
		o.Agent = def.name
		o.Window = l.window
		o.Logger = logger
	})

	return l, nil
}

// Name returns the agent name.
func (l *Loop) Name() string { return l.def.name }

// Config returns the prepared configuration.
func (l *Loop) Config() *config.Prepared { return l.cfg }

// Host returns the effect host.
func (l *Loop) Host() *effect.Host { return l.host }

// Actions returns the action dispatcher.
func (l *Loop) Actions() *action.Dispatcher { return l.actions }

// Callbacks returns the callback manager.
func (l *Loop) Callbacks() *CallbackManager { return l.callbacks }

// Pending returns the number of queued percepts.
func (l *Loop) Pending() int { return l.queue.Len() }

// Transcript returns the persisted transcript.
func (l *Loop) Transcript() ([]core.Message, error) {
	sess, err := l.opts.Sessions.Get(l.opts.SessionID)
	if err != nil {
		return nil, err
	}
	return sess.Transcript(), nil
}

// Push enqueues p. Interrupts go to the head of the queue.
func (l *Loop) Push(p core.Percept) {
	if p.Kind == core.PerceptInterrupt {
		l.queue.PushFirst(p)
		return
	}
	l.queue.Push(p)
}

// PushFirst enqueues p at the head of the queue.
func (l *Loop) PushFirst(p core.Percept) { l.queue.PushFirst(p) }

// Stop stops the queue. Run handles the percepts already queued and
// returns.
func (l *Loop) Stop() { l.queue.Stop() }

// Run mounts the agent's effects and handles percepts until the loop is
// stopped or ctx is done. Effects are unmounted and background actions are
// awaited before it returns. A loop runs once.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrRunning
	}

	l.logger.Info("agent.start", "agent", l.def.name, "actions", l.def.actions.Len(), "memories", l.def.memories.Len(), "effects", l.def.effects.Len())

	unsubscribe := l.host.Bus().Subscribe(func(ev effect.Event) {
		l.queue.Push(core.EffectPercept(ev.Effect, string(ev.Kind), ev.Data))
	})
	defer unsubscribe()

	if err := l.host.MountAll(ctx); err != nil {
		l.logger.Warn("agent.mount_failed", "agent", l.def.name, "error", err)
	}

	var runErr error
	for {
		p, ok, err := l.queue.Next(ctx)
		if err != nil {
			runErr = err
			break
		}
		if !ok {
			break
		}
		l.turn(ctx, p)
	}

	l.background.Wait()

	uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.opts.UnmountTimeout)
	defer cancel()
	if err := l.host.UnmountAll(uctx); err != nil {
		l.logger.Warn("agent.unmount_failed", "agent", l.def.name, "error", err)
	}

	l.logger.Info("agent.stop", "agent", l.def.name)
	return runErr
}

// turn handles one percept. Failures are logged and reported to OnError
// callbacks; they never end the loop.
func (l *Loop) turn(ctx context.Context, p core.Percept) {
	turn := core.NewTurn(ctx, l.def.name, p, l.maxRounds, l.logger)
	cc := &CallbackContext{Turn: turn, Agent: l.def.name, Percept: p}

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = core.PanicError("agent."+l.def.name, r)
			}
		}()
		if err := l.callbacks.ExecuteCallbacks(ctx, CallbackBeforeTurn, cc); err != nil {
			turn.LogDebug("agent.turn_skipped", "reason", err)
			return nil
		}
		return l.handle(turn, cc)
	}()

	if err != nil {
		turn.LogError("agent.turn_failed", "percept", p.Kind, "error", err)
		cc.Err = err
		_ = l.callbacks.ExecuteCallbacks(ctx, CallbackOnError, cc)
	}
	if err := l.callbacks.ExecuteCallbacks(ctx, CallbackAfterTurn, cc); err != nil {
		turn.LogWarn("agent.callback_failed", "type", CallbackAfterTurn, "error", err)
	}
}

func (l *Loop) handle(turn *core.Turn, cc *CallbackContext) error {
	ctx := turn.Context
	p := turn.Percept

	switch p.Kind {
	case core.PerceptEffect:
		turn.LogInfo("agent.effect", "effect", p.Data["effect"], "event", p.Data["event"])
		return l.callbacks.ExecuteCallbacks(ctx, CallbackOnEffect, cc)
	case core.PerceptMessage, core.PerceptInterrupt:
	default:
		return core.NewError(core.KindValidation, "agent."+l.def.name, "unknown percept kind %q", p.Kind)
	}

	if err := l.opts.Sessions.Append(l.opts.SessionID, p.Message()); err != nil {
		return err
	}
	transcript, err := l.Transcript()
	if err != nil {
		return err
	}

	collection := l.memories.Collect(ctx, core.Window(transcript, l.window))

	react := true
	if p.Kind == core.PerceptMessage && l.reactive {
		react, err = l.gate.Decide(ctx, collection.Messages(), l.hint)
		if err != nil {
			return err
		}
	}

	cc.React = react
	if err := l.callbacks.ExecuteCallbacks(ctx, CallbackAfterDecision, cc); err != nil {
		turn.LogWarn("agent.callback_failed", "type", CallbackAfterDecision, "error", err)
	}
	if !react {
		turn.LogDebug("agent.no_reaction")
		return nil
	}

	msgs, err := collection.Wait(ctx)
	if err != nil {
		return err
	}
	return l.respond(turn, msgs)
}

// respond generates and acts until the reply requests no further inline
// work or the round limit is reached.
func (l *Loop) respond(turn *core.Turn, msgs []core.Message) error {
	ctx := turn.Context

	instructions, err := l.def.instructions.Resolve(turn, map[string]any{
		"agent":  l.def.name,
		"config": l.cfg.Server,
	})
	if err != nil {
		return core.WrapError(core.KindValidation, "agent."+l.def.name+".instructions", err)
	}
	tools := l.tools()

	for {
		if err := turn.Limiter.Increment(); err != nil {
			turn.LogWarn("agent.round_limit", "error", err)
			return nil
		}

		start := time.Now()
		reply, err := model.Complete(ctx, l.def.model, model.Request{
			Instructions: instructions,
			Messages:     msgs,
			Tools:        tools,
		})
		logging.Generation(l.logger, l.def.model.Info().Name, turn.Limiter.Count(), time.Since(start), err)
		if err != nil {
			return err
		}

		if err := l.opts.Sessions.Append(l.opts.SessionID, reply); err != nil {
			return err
		}
		msgs = append(msgs, reply)

		if !reply.HasCalls() {
			return nil
		}

		responses, awaited := l.act(turn, reply.Calls)
		if err := l.opts.Sessions.Append(l.opts.SessionID, responses...); err != nil {
			return err
		}
		msgs = append(msgs, responses...)

		if !awaited {
			return nil
		}
	}
}

func (l *Loop) tools() []model.ToolDefinition {
	var tools []model.ToolDefinition
	for _, def := range l.def.actions.All() {
		if def.Options().Disabled {
			continue
		}
		tools = append(tools, model.NewTool(def.Name(), def.Description(), def.Parameters()))
	}
	return tools
}

// act dispatches calls and returns one tool message per call, in call
// order. awaited reports whether any call ran inline or in parallel, so
// that the model should see its result.
func (l *Loop) act(turn *core.Turn, calls []core.FunctionCall) (responses []core.Message, awaited bool) {
	ctx := turn.Context
	responses = make([]core.Message, len(calls))

	var (
		inline, parallel           []int
		inlineCalls, parallelCalls []action.Call
	)

	for i, fc := range calls {
		if fc.ID == "" {
			fc.ID = core.NewID()
		}
		call := action.Call{ID: fc.ID, Name: fc.Name, Mode: l.mode(fc.Name, len(calls))}

		args, err := action.ParseArguments(fc.Arguments)
		if err != nil {
			responses[i] = l.settle(turn, action.Outcome{Call: call, Err: err})
			awaited = true
			continue
		}
		call.Args = args

		cc := &CallbackContext{Turn: turn, Agent: l.def.name, Percept: turn.Percept, Call: &call}
		if err := l.callbacks.ExecuteCallbacks(ctx, CallbackBeforeAction, cc); err != nil {
			responses[i] = l.settle(turn, action.Outcome{Call: call, Err: err})
			awaited = true
			continue
		}

		switch call.Mode {
		case action.ModeBackground:
			responses[i] = l.detach(turn, call)
		case action.ModeParallel:
			parallel = append(parallel, i)
			parallelCalls = append(parallelCalls, call)
		default:
			inline = append(inline, i)
			inlineCalls = append(inlineCalls, call)
		}
	}

	for j, i := range inline {
		responses[i] = l.settle(turn, l.actions.Execute(ctx, inlineCalls[j]))
		awaited = true
	}

	if len(parallel) > 0 {
		outcomes := l.actions.ExecuteBatch(ctx, parallelCalls)
		for j, i := range parallel {
			responses[i] = l.settle(turn, outcomes[j])
		}
		awaited = true
	}

	return responses, awaited
}

// mode picks how a requested action runs: in parallel when several calls
// arrive together and the action allows it, otherwise inline, falling back
// to whatever the action permits.
func (l *Loop) mode(name string, calls int) action.Mode {
	def, ok := l.def.actions.Get(name)
	if !ok {
		return action.ModeInline
	}
	can := def.Options().CanRun
	switch {
	case calls > 1 && can.Parallel:
		return action.ModeParallel
	case can.Inline:
		return action.ModeInline
	case can.Parallel:
		return action.ModeParallel
	case can.Background:
		return action.ModeBackground
	default:
		return action.ModeInline
	}
}

// settle reports an outcome to callbacks and converts it into a tool message.
func (l *Loop) settle(turn *core.Turn, out action.Outcome) core.Message {
	if out.Failed() {
		turn.LogWarn("agent.action_failed", "action", out.Call.Name, "error", out.Err, "result_error", out.Result.Error)
	}
	cc := &CallbackContext{Turn: turn, Agent: l.def.name, Percept: turn.Percept, Call: &out.Call, Outcome: &out}
	if err := l.callbacks.ExecuteCallbacks(turn.Context, CallbackAfterAction, cc); err != nil {
		turn.LogWarn("agent.callback_failed", "type", CallbackAfterAction, "error", err)
	}
	return core.ToolMessage(out.Response())
}

// detach starts a background action. The returned message acknowledges the
// call; the outcome is appended to the transcript once it settles.
func (l *Loop) detach(turn *core.Turn, call action.Call) core.Message {
	ch, err := l.actions.Dispatch(turn.Context, call)
	if err != nil {
		return l.settle(turn, action.Outcome{Call: call, Err: err})
	}

	l.background.Add(1)
	go func() {
		defer l.background.Done()
		out := <-ch
		msg := l.settle(turn, out)
		note := core.SystemMessage(fmt.Sprintf("Background action %s finished: %s", call.Name, model.ToolResultText(msg.Response)))
		if err := l.opts.Sessions.Append(l.opts.SessionID, note); err != nil {
			l.logger.Error("agent.append_failed", "agent", l.def.name, "error", err)
		}
	}()

	return core.ToolMessage(core.FunctionResponse{
		ID:       call.ID,
		Name:     call.Name,
		Response: map[string]any{"status": "running"},
	})
}

func intSetting(m map[string]any, def int, path ...string) int {
	v, ok := config.Lookup(m, path...)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return def
}

func boolSetting(m map[string]any, def bool, path ...string) bool {
	v, ok := config.Lookup(m, path...)
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}
