package shutdown

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hupe1980/lifemesh/core"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type probe struct {
	mu       sync.Mutex
	progress []int
	statuses []string
	exits    []int
}

func (p *probe) options(o *Options) {
	o.OnProgress = func(v int) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.progress = append(p.progress, v)
	}
	o.OnStatus = func(s string) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.statuses = append(p.statuses, s)
	}
	o.Exit = func(code int) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.exits = append(p.exits, code)
	}
}

func TestRun_IsolatesFailures(t *testing.T) {
	p := &probe{}
	o := New(p.options)

	var (
		errMu     sync.Mutex
		reported  = map[string]error{}
		onErrorOf = func(name string) func(error) {
			return func(err error) {
				errMu.Lock()
				defer errMu.Unlock()
				reported[name] = err
			}
		}
	)

	require.NoError(t, o.Register(
		Step{Name: "a", Run: func(context.Context) error { return nil }, Timeout: time.Second, OnError: onErrorOf("a")},
		Step{Name: "b", Run: func(context.Context) error { panic("boom") }, Timeout: time.Second, OnError: onErrorOf("b")},
		Step{Name: "c", Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}, Timeout: 10 * time.Millisecond, OnError: onErrorOf("c")},
	))

	report, err := o.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Results, 3)
	assert.NoError(t, report.Results[0].Err)
	assert.ErrorIs(t, report.Results[1].Err, core.ErrUnknown)
	assert.ErrorIs(t, report.Results[2].Err, core.ErrTimeout)
	assert.Len(t, report.Failed(), 2)

	errMu.Lock()
	assert.NotContains(t, reported, "a")
	assert.ErrorIs(t, reported["b"], core.ErrUnknown)
	assert.ErrorIs(t, reported["c"], core.ErrTimeout)
	errMu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Equal(t, []int{33, 67, 100}, p.progress)
	assert.Equal(t, []string{StatusStopping, StatusDone}, p.statuses)
	assert.Equal(t, []int{0}, p.exits)
}

func TestRun_ReturnedErrorIsUnknown(t *testing.T) {
	o := New(func(o *Options) { o.Exit = func(int) {} })
	cause := errors.New("port still bound")
	require.NoError(t, o.Register(Step{Name: "server", Run: func(context.Context) error { return cause }}))

	report, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, report.Results[0].Err, core.ErrUnknown)
	assert.ErrorIs(t, report.Results[0].Err, cause)
}

func TestRun_OnlyOnce(t *testing.T) {
	p := &probe{}
	o := New(p.options)

	calls := 0
	require.NoError(t, o.Register(Step{Name: "a", Run: func(context.Context) error { calls++; return nil }}))

	_, err := o.Run(context.Background())
	require.NoError(t, err)

	_, err = o.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRun)
	assert.ErrorIs(t, o.Register(Step{Name: "late", Run: func(context.Context) error { return nil }}), ErrClosed)

	assert.Equal(t, 1, calls)
	assert.Equal(t, []int{0}, p.exits)
}

func TestRun_NoSteps(t *testing.T) {
	p := &probe{}
	_, err := New(p.options).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{100}, p.progress)
	assert.Equal(t, []int{0}, p.exits)
}

func TestRegister_Validates(t *testing.T) {
	o := New()
	assert.ErrorIs(t, o.Register(Step{Name: "x"}), core.ErrValidation)
}

type fakeStopper struct{ stopped bool }

func (f *fakeStopper) Stop(context.Context) error { f.stopped = true; return nil }

type fakeKiller struct{ err error }

func (f fakeKiller) Kill() error { return f.err }

func TestStopAndKillSteps(t *testing.T) {
	s := &fakeStopper{}
	require.NoError(t, StopStep("server", s, time.Second).Run(context.Background()))
	assert.True(t, s.stopped)

	assert.NoError(t, StopStep("compiler", nil, time.Second).Run(context.Background()))
	assert.NoError(t, KillStep("bridge", nil, time.Second).Run(context.Background()))

	boom := errors.New("no such process")
	assert.ErrorIs(t, KillStep("bridge", fakeKiller{err: boom}, time.Second).Run(context.Background()), boom)
}
