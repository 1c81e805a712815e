package runner

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lifemesh/agent"
	"github.com/hupe1980/lifemesh/engine"
	"github.com/hupe1980/lifemesh/model"
	"github.com/hupe1980/lifemesh/shutdown"
)

type fakeServer struct {
	fail    error
	stopped chan struct{}
	once    sync.Once
}

func newFakeServer(fail error) *fakeServer {
	return &fakeServer{fail: fail, stopped: make(chan struct{})}
}

func (s *fakeServer) ListenAndServe() error {
	if s.fail != nil {
		return s.fail
	}
	<-s.stopped
	return nil
}

func (s *fakeServer) Stop(context.Context) error {
	s.once.Do(func() { close(s.stopped) })
	return nil
}

type fakeCompiler struct {
	mu      sync.Mutex
	started bool
	stopped bool
}

func (c *fakeCompiler) Start(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = true
	return nil
}

func (c *fakeCompiler) Stop(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	return nil
}

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng := engine.New()
	def, err := agent.New("ada").Model(model.NewMockModel("m")).Build()
	require.NoError(t, err)
	require.NoError(t, eng.Register(def))
	return eng
}

func names(r shutdown.Report) []string {
	out := make([]string, len(r.Results))
	for i, res := range r.Results {
		out[i] = res.Name
	}
	return out
}

func TestRun_ShutdownOnCancel(t *testing.T) {
	eng := newEngine(t)
	srv := newFakeServer(nil)
	compiler := &fakeCompiler{}

	var (
		exitCode = -1
		progress []int
		statuses []string
	)
	r := New(eng, func(o *Options) {
		o.Server = srv
		o.Compiler = compiler
		o.StepTimeout = 5 * time.Second
		o.Exit = func(code int) { exitCode = code }
		o.OnProgress = func(p int) { progress = append(progress, p) }
		o.OnStatus = func(s string) { statuses = append(statuses, s) }
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := r.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"server", "compiler", "bridge", "agents"}, names(report))
	assert.Empty(t, report.Failed())
	assert.Equal(t, 0, exitCode)
	assert.Equal(t, 100, progress[len(progress)-1])
	assert.Equal(t, []string{shutdown.StatusStopping, shutdown.StatusDone}, statuses)
	assert.True(t, compiler.started)
	assert.True(t, compiler.stopped)

	select {
	case <-eng.Done():
	default:
		t.Fatal("engine still running")
	}
}

func TestRun_ServerFailureTriggersShutdown(t *testing.T) {
	exited := false
	r := New(newEngine(t), func(o *Options) {
		o.Server = newFakeServer(errors.New("address in use"))
		o.Exit = func(int) { exited = true }
	})

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Results, 4)
	assert.True(t, exited)
}

func TestRun_KillsBridge(t *testing.T) {
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}

	bridge := NewProcess([]string{sleep, "30"})
	r := New(newEngine(t), func(o *Options) {
		o.Bridge = bridge
		o.Exit = func(int) {}
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		assert.Eventually(t, func() bool { return bridge.Done() != nil }, 5*time.Second, 10*time.Millisecond)
		cancel()
	}()

	report, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Failed())

	select {
	case <-bridge.Done():
	default:
		t.Fatal("bridge still running")
	}
}

func TestProcess(t *testing.T) {
	assert.NoError(t, NewProcess([]string{"unused"}).Kill())
	assert.Error(t, NewProcess(nil).Start(context.Background()))

	truePath, err := exec.LookPath("true")
	if err != nil {
		t.Skip("true not available")
	}
	p := NewProcess([]string{truePath})
	require.NoError(t, p.Start(context.Background()))
	assert.Error(t, p.Start(context.Background()))

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
	assert.NoError(t, p.Err())
	assert.NoError(t, p.Kill())
}
