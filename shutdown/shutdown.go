// Package shutdown runs the process's stop steps concurrently and exits.
//
// Each registered Step is raced against its own timeout. A failing step
// (error, panic or timeout) is logged and reported to its OnError callback
// without affecting the others. Progress is reported as a percentage after
// every settled step; once all steps settled the orchestrator reports the
// status "Done" and exits the process with code 0.
package shutdown

import (
	"context"
	"errors"
	"math"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/lifemesh/core"
	"github.com/hupe1980/lifemesh/logging"
)

var (
	// ErrClosed is returned by Register once Run has started.
	ErrClosed = errors.New("shutdown: orchestrator is running")
	// ErrAlreadyRun is returned by every Run after the first.
	ErrAlreadyRun = errors.New("shutdown: already run")
)

// Status values reported through Options.OnStatus.
const (
	StatusStopping = "Stopping"
	StatusDone     = "Done"
)

// Step is one named unit of shutdown work.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
	// Timeout bounds Run. Zero uses Options.StepTimeout.
	Timeout time.Duration
	// OnError is called with the step's failure, if any.
	OnError func(err error)
}

// Result is the settled outcome of one step.
type Result struct {
	Name     string
	Err      error
	Duration time.Duration
}

// Report lists the step results in registration order.
type Report struct {
	Results []Result
}

// Failed returns the results carrying an error.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Options configures an Orchestrator.
type Options struct {
	Logger logging.Logger
	// StepTimeout applies to steps without their own timeout.
	StepTimeout time.Duration
	// OnProgress receives the completion percentage after each settled step.
	OnProgress func(percent int)
	// OnStatus receives coarse status changes.
	OnStatus func(status string)
	// Exit terminates the process. Defaults to os.Exit.
	Exit func(code int)
}

// Orchestrator collects steps and runs them once.
type Orchestrator struct {
	opts Options

	mu      sync.Mutex
	steps   []Step
	started bool
}

// New creates an orchestrator.
func New(optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Logger:      logging.NoOpLogger{},
		StepTimeout: 10 * time.Second,
		OnProgress:  func(int) {},
		OnStatus:    func(string) {},
		Exit:        os.Exit,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Orchestrator{opts: opts}
}

// Register appends steps. It fails with ErrClosed once Run has started.
func (o *Orchestrator) Register(steps ...Step) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started {
		return ErrClosed
	}
	for _, s := range steps {
		if s.Name == "" || s.Run == nil {
			return core.NewError(core.KindValidation, "shutdown.register", "step needs a name and a run function")
		}
	}
	o.steps = append(o.steps, steps...)
	return nil
}

// Run executes all steps concurrently, reports progress and exits with code
// 0. Only the first call runs; later calls return ErrAlreadyRun without
// running steps or exiting.
func (o *Orchestrator) Run(ctx context.Context) (Report, error) {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return Report{}, ErrAlreadyRun
	}
	o.started = true
	steps := append([]Step(nil), o.steps...)
	o.mu.Unlock()

	o.opts.OnStatus(StatusStopping)
	o.opts.Logger.Info("shutdown.start", "steps", len(steps))

	report := Report{Results: make([]Result, len(steps))}

	var (
		progressMu sync.Mutex
		settled    int
	)
	if len(steps) == 0 {
		o.opts.OnProgress(100)
	}

	// Steps never return errors to the group, so one failure cannot cancel
	// the others.
	var g errgroup.Group
	for i, step := range steps {
		g.Go(func() error {
			res := o.runStep(ctx, step)
			report.Results[i] = res

			progressMu.Lock()
			settled++
			o.opts.OnProgress(int(math.Round(float64(settled) / float64(len(steps)) * 100)))
			progressMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	o.opts.Logger.Info("shutdown.done", "failed", len(report.Failed()))
	o.opts.OnStatus(StatusDone)
	o.opts.Exit(0)
	return report, nil
}

type stepResult struct {
	err error
}

func (o *Orchestrator) runStep(ctx context.Context, step Step) (res Result) {
	res.Name = step.Name
	op := "shutdown." + step.Name
	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		logging.ExitStep(o.opts.Logger, step.Name, res.Duration, res.Err)
		if res.Err != nil && step.OnError != nil {
			step.OnError(res.Err)
		}
	}()

	timeout := step.Timeout
	if timeout <= 0 {
		timeout = o.opts.StepTimeout
	}

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan stepResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- stepResult{err: core.PanicError(op, r)}
			}
		}()
		done <- stepResult{err: step.Run(sctx)}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		res.Err = core.AsUnknown(op, r.err)
	case <-timer.C:
		res.Err = core.NewError(core.KindTimeout, op, "did not finish within %s", timeout)
	}
	return res
}

// Stopper stops a component gracefully.
type Stopper interface {
	Stop(ctx context.Context) error
}

// Killer terminates a component immediately.
type Killer interface {
	Kill() error
}

// StopStep builds a step stopping s. A nil s yields a step that succeeds
// without doing anything.
func StopStep(name string, s Stopper, timeout time.Duration) Step {
	run := func(context.Context) error { return nil }
	if s != nil {
		run = s.Stop
	}
	return Step{Name: name, Run: run, Timeout: timeout}
}

// KillStep builds a step killing k. A nil k yields a step that succeeds
// without doing anything.
func KillStep(name string, k Killer, timeout time.Duration) Step {
	run := func(context.Context) error { return nil }
	if k != nil {
		run = func(context.Context) error { return k.Kill() }
	}
	return Step{Name: name, Run: run, Timeout: timeout}
}
