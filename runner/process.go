package runner

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/hupe1980/lifemesh/core"
	"github.com/hupe1980/lifemesh/logging"
)

// ProcessOptions configures a Process.
type ProcessOptions struct {
	Logger logging.Logger
	Dir    string
	// Env is appended to the parent environment.
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// Process supervises an external helper, such as the media bridge. It is
// started once and terminated with Kill.
type Process struct {
	command []string
	opts    ProcessOptions

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

// NewProcess prepares command; command[0] is the executable.
func NewProcess(command []string, optFns ...func(o *ProcessOptions)) *Process {
	opts := ProcessOptions{
		Logger: logging.NoOpLogger{},
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Process{command: append([]string(nil), command...), opts: opts}
}

// Start launches the process. The process is not bound to ctx; it runs until
// it exits or Kill is called.
func (p *Process) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	op := "runner.process"
	if len(p.command) == 0 {
		return core.NewError(core.KindValidation, op, "empty command")
	}
	if p.cmd != nil {
		return core.NewError(core.KindValidation, op, "%s already started", p.command[0])
	}

	cmd := exec.Command(p.command[0], p.command[1:]...)
	cmd.Dir = p.opts.Dir
	cmd.Env = append(os.Environ(), p.opts.Env...)
	cmd.Stdout = p.opts.Stdout
	cmd.Stderr = p.opts.Stderr
	if err := cmd.Start(); err != nil {
		return core.WrapError(core.KindUnknown, op, err)
	}

	p.cmd = cmd
	p.done = make(chan struct{})
	p.opts.Logger.Info("process.start", "command", p.command[0], "pid", cmd.Process.Pid)

	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		p.opts.Logger.Info("process.exit", "command", p.command[0], "error", err)
		close(p.done)
	}()
	return nil
}

// Done is closed when the process has exited. It is nil before Start.
func (p *Process) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Err returns the exit error once Done is closed.
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Kill terminates the process and waits for it to exit. Killing a process
// that never started or already exited succeeds.
func (p *Process) Kill() error {
	p.mu.Lock()
	cmd, done := p.cmd, p.done
	p.mu.Unlock()
	if cmd == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	default:
	}

	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return core.WrapError(core.KindUnknown, "runner.process", err)
	}
	<-done
	return nil
}
