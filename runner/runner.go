package runner

import (
	"context"
	"time"

	"github.com/hupe1980/lifemesh/engine"
	"github.com/hupe1980/lifemesh/logging"
	"github.com/hupe1980/lifemesh/shutdown"
)

// Compiler rebuilds agent bundles while the runtime is up.
type Compiler interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Server is the ingress started by the runner.
type Server interface {
	ListenAndServe() error
	Stop(ctx context.Context) error
}

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	Logger logging.Logger
	// Server is optional.
	Server Server
	// Compiler is optional.
	Compiler Compiler
	// Bridge is the optional media bridge process.
	Bridge *Process
	// StepTimeout bounds every shutdown step.
	StepTimeout time.Duration
	// OnProgress receives shutdown progress in percent.
	OnProgress func(percent int)
	// OnStatus receives shutdown status changes.
	OnStatus func(status string)
	// Exit terminates the process after shutdown. Defaults to os.Exit.
	Exit func(code int)
}

// Runner brings the process up and, once its context ends, tears it down
// through the shutdown orchestrator.
type Runner struct {
	eng    *engine.Engine
	opts   Options
	logger logging.Logger
}

// New constructs a Runner with optional overrides.
func New(eng *engine.Engine, optFns ...func(o *Options)) *Runner {
	opts := Options{
		Logger:      logging.NoOpLogger{},
		StepTimeout: 10 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	logger := opts.Logger
	if sl, ok := logger.(*logging.StructuredLogger); ok {
		logger = sl.WithComponent("runner")
	}
	return &Runner{eng: eng, opts: opts, logger: logger}
}

// Run starts the engine, compiler, bridge and server, blocks until ctx is
// done or the server fails, and then runs the shutdown steps "server",
// "compiler", "bridge" and "agents" concurrently. The orchestrator exits the
// process; Run returns only when Options.Exit returns.
func (r *Runner) Run(ctx context.Context) (shutdown.Report, error) {
	// Components outlive ctx; the orchestrator stops them.
	bg := context.WithoutCancel(ctx)

	if err := r.eng.Start(bg); err != nil {
		return shutdown.Report{}, err
	}
	if r.opts.Compiler != nil {
		if err := r.opts.Compiler.Start(bg); err != nil {
			r.logger.Error("runner.compiler_failed", "error", err)
		}
	}
	if r.opts.Bridge != nil {
		if err := r.opts.Bridge.Start(bg); err != nil {
			r.logger.Error("runner.bridge_failed", "error", err)
		}
	}

	serverErr := make(chan error, 1)
	if r.opts.Server != nil {
		go func() { serverErr <- r.opts.Server.ListenAndServe() }()
	}

	r.logger.Info("runner.ready", "agents", r.eng.Names())

	select {
	case <-ctx.Done():
		r.logger.Info("runner.shutdown", "reason", ctx.Err())
	case err := <-serverErr:
		r.logger.Error("runner.server_failed", "error", err)
	}

	return r.shutdown(bg)
}

func (r *Runner) shutdown(ctx context.Context) (shutdown.Report, error) {
	orch := shutdown.New(func(o *shutdown.Options) {
		o.Logger = r.opts.Logger
		o.StepTimeout = r.opts.StepTimeout
		if r.opts.OnProgress != nil {
			o.OnProgress = r.opts.OnProgress
		}
		if r.opts.OnStatus != nil {
			o.OnStatus = r.opts.OnStatus
		}
		if r.opts.Exit != nil {
			o.Exit = r.opts.Exit
		}
	})

	// Absent collaborators must reach the step constructors as nil interfaces.
	var (
		srv      shutdown.Stopper
		compiler shutdown.Stopper
		bridge   shutdown.Killer
	)
	if r.opts.Server != nil {
		srv = r.opts.Server
	}
	if r.opts.Compiler != nil {
		compiler = r.opts.Compiler
	}
	if r.opts.Bridge != nil {
		bridge = r.opts.Bridge
	}

	if err := orch.Register(
		shutdown.StopStep("server", srv, 0),
		shutdown.StopStep("compiler", compiler, 0),
		shutdown.KillStep("bridge", bridge, 0),
		shutdown.StopStep("agents", r.eng, 0),
	); err != nil {
		return shutdown.Report{}, err
	}
	return orch.Run(ctx)
}
