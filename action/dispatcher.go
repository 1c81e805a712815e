package action

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hupe1980/lifemesh/core"
	"github.com/hupe1980/lifemesh/feature"
	"github.com/hupe1980/lifemesh/logging"
)

// Call is a request to run an action.
type Call struct {
	ID   string
	Name string
	Args map[string]any
	// Mode defaults to ModeInline.
	Mode Mode
}

// Outcome is the settled result of a call.
type Outcome struct {
	Call   Call
	Result core.ActionResult
	// Err is set for precondition, validation, timeout and unexpected failures.
	Err      error
	Attempts int
	Duration time.Duration
}

// Failed reports whether the call failed in any way, business failures included.
func (o Outcome) Failed() bool { return o.Err != nil || o.Result.Failed() }

// Response converts the outcome into a function response for the transcript.
// Unexpected failures are narrated through the Error field.
func (o Outcome) Response() core.FunctionResponse {
	fr := core.FunctionResponse{
		ID:       o.Call.ID,
		Name:     o.Call.Name,
		Response: o.Result.Output,
		Error:    o.Result.Error,
		Hint:     o.Result.Hint,
	}
	if o.Err != nil {
		fr.Response = nil
		fr.Error = o.Err.Error()
	}
	return fr
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	Logger logging.Logger
	// Deps creates the dependency accessors handed to each execution.
	Deps feature.DepsFactory
	// MaxParallel bounds ExecuteBatch. Values < 1 mean no explicit limit.
	MaxParallel int
}

// Dispatcher runs actions from a registry. It is safe for concurrent use.
type Dispatcher struct {
	registry *feature.Registry[*Definition]
	opts     DispatcherOptions
}

// NewDispatcher creates a dispatcher over reg.
func NewDispatcher(reg *feature.Registry[*Definition], optFns ...func(o *DispatcherOptions)) *Dispatcher {
	opts := DispatcherOptions{
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
	return &Dispatcher{registry: reg, opts: opts}
}

// Registry returns the underlying registry.
func (d *Dispatcher) Registry() *feature.Registry[*Definition] { return d.registry }

// Check validates the preconditions of call without running it.
func (d *Dispatcher) Check(call Call) (*Definition, error) {
	op := "action." + call.Name
	def, ok := d.registry.Get(call.Name)
	if !ok {
		return nil, core.NewError(core.KindNotFound, op, "action %q is not registered", call.Name)
	}
	if def.options.Disabled {
		return nil, core.NewError(core.KindDisabled, op, "action %q is disabled", call.Name)
	}
	mode := call.Mode
	if mode == "" {
		mode = ModeInline
	}
	if !def.options.CanRun.Allows(mode) {
		return nil, core.NewError(core.KindModeNotAllowed, op, "action %q cannot run %s", call.Name, mode)
	}
	return def, nil
}

// Execute runs call and waits for its outcome.
func (d *Dispatcher) Execute(ctx context.Context, call Call) Outcome {
	if call.Mode == "" {
		call.Mode = ModeInline
	}
	def, err := d.Check(call)
	if err != nil {
		return Outcome{Call: call, Err: err}
	}
	return d.run(ctx, def, call)
}

// Dispatch checks the preconditions synchronously and then runs call in its
// own goroutine. The returned channel receives exactly one Outcome. The
// caller may ignore the channel; it is buffered.
func (d *Dispatcher) Dispatch(ctx context.Context, call Call) (<-chan Outcome, error) {
	if call.Mode == "" {
		call.Mode = ModeInline
	}
	def, err := d.Check(call)
	if err != nil {
		return nil, err
	}

	ch := make(chan Outcome, 1)
	go func() {
		ch <- d.run(ctx, def, call)
	}()
	return ch, nil
}

// Runner returns an inline runner for the named action, used to expose
// actions to other features through their dependencies.
func (d *Dispatcher) Runner(name string) (core.ActionRunner, error) {
	if _, ok := d.registry.Get(name); !ok {
		return nil, core.NewError(core.KindNotFound, "action."+name, "action %q is not registered", name)
	}
	return runner{d: d, name: name}, nil
}

type runner struct {
	d    *Dispatcher
	name string
}

func (r runner) Run(ctx context.Context, args map[string]any) (core.ActionResult, error) {
	out := r.d.Execute(ctx, Call{ID: core.NewID(), Name: r.name, Args: args, Mode: ModeInline})
	return out.Result, out.Err
}

func (d *Dispatcher) run(ctx context.Context, def *Definition, call Call) (out Outcome) {
	out.Call = call
	start := time.Now()
	defer func() {
		out.Duration = time.Since(start)
		logging.ActionCall(d.opts.Logger, call.Name, string(call.Mode), out.Attempts, out.Duration, out.Err)
	}()

	op := "action." + def.name
	args, err := def.input.ParseMap(call.Args)
	if err != nil {
		out.Err = core.WrapError(core.KindValidation, op, err)
		return out
	}

	in := Input{
		Args:   args,
		Deps:   d.opts.Deps(feature.Scope{Owner: def.name, Declared: def.dependencies}),
		Logger: d.opts.Logger,
		CallID: call.ID,
	}

	var lastErr error
	for attempt := 1; attempt <= def.options.Retries+1; attempt++ {
		out.Attempts = attempt
		in.Attempt = attempt

		res, err := d.attempt(ctx, def, in)
		if err == nil {
			if def.output != nil && !res.Failed() {
				parsed, perr := def.output.Parse(res.Output)
				if perr != nil {
					out.Err = core.WrapError(core.KindValidation, op+".output", perr)
					return out
				}
				res.Output = parsed
			}
			out.Result = res
			return out
		}

		if core.KindOf(err) == core.KindTimeout {
			out.Err = err
			return out
		}
		if ctx.Err() != nil {
			out.Err = core.WrapError(core.KindUnknown, op, ctx.Err())
			return out
		}

		lastErr = err
		if attempt <= def.options.Retries {
			d.opts.Logger.Warn("action.retry", "action", def.name, "attempt", attempt, "error", err)
		}
	}

	out.Err = &core.Error{
		Kind:    core.KindUnknown,
		Op:      op,
		Message: fmt.Sprintf("failed after %d attempt(s): %v", out.Attempts, lastErr),
		Cause:   lastErr,
	}
	return out
}

type attemptResult struct {
	res core.ActionResult
	err error
}

// attempt races one execution against the action timeout. On timeout the
// execution keeps running detached with a cancelled context; its result is
// discarded.
func (d *Dispatcher) attempt(ctx context.Context, def *Definition, in Input) (core.ActionResult, error) {
	actx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan attemptResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.opts.Logger.Error("action.panic", "action", def.name, "recover", r)
				done <- attemptResult{err: core.PanicError("action."+def.name, r)}
			}
		}()
		res, err := def.execute(actx, in)
		done <- attemptResult{res: res, err: err}
	}()

	var timeout <-chan time.Time
	if def.options.Timeout > 0 {
		timer := time.NewTimer(def.options.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case r := <-done:
		return r.res, r.err
	case <-timeout:
		return core.ActionResult{}, core.NewError(core.KindTimeout, "action."+def.name, "timed out after %s", def.options.Timeout)
	case <-ctx.Done():
		return core.ActionResult{}, ctx.Err()
	}
}

// ParseArguments decodes a JSON argument object as produced by a
// generation provider. An empty string yields an empty map.
func ParseArguments(s string) (map[string]any, error) {
	args := map[string]any{}
	if s == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(s), &args); err != nil {
		return nil, core.WrapError(core.KindValidation, "action.arguments", err)
	}
	return args, nil
}
