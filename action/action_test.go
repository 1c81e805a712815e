package action

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lifemesh/core"
	"github.com/hupe1980/lifemesh/feature"
	"github.com/hupe1980/lifemesh/internal/schema"
)

func newDispatcher(t *testing.T, defs ...*Definition) *Dispatcher {
	t.Helper()
	reg, err := feature.NewRegistry(defs...)
	require.NoError(t, err)
	return NewDispatcher(reg)
}

func TestBuilder_AspectOnce(t *testing.T) {
	base := New("x").Input(schema.Object(nil))

	_, err := base.Input(schema.Object(nil)).Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, feature.ErrAspectAlreadySet)
	assert.ErrorIs(t, err, core.ErrValidation)

	// The earlier builder value is unaffected.
	def, err := base.Build()
	require.NoError(t, err)
	assert.Equal(t, "x", def.Name())
}

func TestBuilder_Defaults(t *testing.T) {
	def, err := New("noop").Build()
	require.NoError(t, err)

	assert.Equal(t, DefaultOptions(), def.Options())
	assert.Equal(t, "noop", def.Label())

	out := newDispatcher(t, def).Execute(context.Background(), Call{Name: "noop"})
	require.NoError(t, out.Err)
	assert.Nil(t, out.Result.Output)
	assert.Equal(t, 1, out.Attempts)
}

func TestBuilder_RejectsNoMode(t *testing.T) {
	_, err := New("x").Options(func(o *Options) { o.CanRun = CanRun{} }).Build()
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestBuilder_BranchesDoNotShareDependencies(t *testing.T) {
	base := New("x").Label("X")
	a := base.Dependencies("a").MustBuild()
	b := base.Dependencies("b").MustBuild()

	assert.Equal(t, []string{"a"}, a.Dependencies())
	assert.Equal(t, []string{"b"}, b.Dependencies())
}

func TestDispatcher_Preconditions(t *testing.T) {
	d := newDispatcher(t,
		New("off").Options(func(o *Options) { o.Disabled = true }).MustBuild(),
		New("inline_only").Options(func(o *Options) { o.CanRun = CanRun{Inline: true} }).MustBuild(),
	)
	ctx := context.Background()

	_, err := d.Dispatch(ctx, Call{Name: "missing"})
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = d.Dispatch(ctx, Call{Name: "off"})
	assert.ErrorIs(t, err, core.ErrDisabled)

	_, err = d.Dispatch(ctx, Call{Name: "inline_only", Mode: ModeBackground})
	assert.ErrorIs(t, err, core.ErrModeNotAllowed)

	out := d.Execute(ctx, Call{Name: "inline_only", Mode: ModeParallel})
	assert.ErrorIs(t, out.Err, core.ErrModeNotAllowed)
	assert.Equal(t, 0, out.Attempts)
}

func TestDispatcher_RetriesUnexpectedErrors(t *testing.T) {
	var calls atomic.Int32
	def := New("flaky").
		Options(func(o *Options) { o.Retries = 2 }).
		Execute(func(context.Context, Input) (core.ActionResult, error) {
			calls.Add(1)
			return core.ActionResult{}, errors.New("boom")
		}).
		MustBuild()

	out := newDispatcher(t, def).Execute(context.Background(), Call{Name: "flaky"})

	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, 3, out.Attempts)
	assert.ErrorIs(t, out.Err, core.ErrUnknown)
	assert.Contains(t, out.Err.Error(), "boom")
}

func TestDispatcher_RetriesPanics(t *testing.T) {
	var calls atomic.Int32
	def := New("panicky").
		Options(func(o *Options) { o.Retries = 1 }).
		Execute(func(context.Context, Input) (core.ActionResult, error) {
			if calls.Add(1) == 1 {
				panic("first attempt")
			}
			return core.ActionResult{Output: "ok"}, nil
		}).
		MustBuild()

	out := newDispatcher(t, def).Execute(context.Background(), Call{Name: "panicky"})

	require.NoError(t, out.Err)
	assert.Equal(t, "ok", out.Result.Output)
	assert.Equal(t, 2, out.Attempts)
}

func TestDispatcher_BusinessFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	def := New("refuse").
		Options(func(o *Options) { o.Retries = 3 }).
		Execute(func(context.Context, Input) (core.ActionResult, error) {
			calls.Add(1)
			return core.ActionResult{Error: "out of stock", Hint: "offer an alternative"}, nil
		}).
		MustBuild()

	out := newDispatcher(t, def).Execute(context.Background(), Call{ID: "c1", Name: "refuse"})

	assert.EqualValues(t, 1, calls.Load())
	assert.NoError(t, out.Err)
	assert.True(t, out.Failed())

	resp := out.Response()
	assert.Equal(t, "c1", resp.ID)
	assert.Equal(t, "out of stock", resp.Error)
	assert.Equal(t, "offer an alternative", resp.Hint)
}

func TestDispatcher_Timeout(t *testing.T) {
	var calls atomic.Int32
	def := New("slow").
		Options(func(o *Options) {
			o.Timeout = 50 * time.Millisecond
			o.Retries = 2
		}).
		Execute(func(ctx context.Context, _ Input) (core.ActionResult, error) {
			calls.Add(1)
			<-ctx.Done()
			return core.ActionResult{}, ctx.Err()
		}).
		MustBuild()

	start := time.Now()
	out := newDispatcher(t, def).Execute(context.Background(), Call{Name: "slow"})
	elapsed := time.Since(start)

	assert.ErrorIs(t, out.Err, core.ErrTimeout)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	// Timeouts are not retried.
	assert.EqualValues(t, 1, calls.Load())
}

func TestDispatcher_InputValidation(t *testing.T) {
	var got map[string]any
	def := New("greet").
		Input(schema.Object(map[string]*schema.Schema{
			"name":     schema.String(),
			"greeting": schema.String().WithDefault("hello"),
		}, "name")).
		Execute(func(_ context.Context, in Input) (core.ActionResult, error) {
			got = in.Args
			return core.ActionResult{Output: in.Args["greeting"].(string) + " " + in.Args["name"].(string)}, nil
		}).
		MustBuild()
	d := newDispatcher(t, def)

	out := d.Execute(context.Background(), Call{Name: "greet", Args: map[string]any{}})
	assert.ErrorIs(t, out.Err, core.ErrValidation)
	assert.Nil(t, got)

	out = d.Execute(context.Background(), Call{Name: "greet", Args: map[string]any{"name": "ada"}})
	require.NoError(t, out.Err)
	assert.Equal(t, "hello ada", out.Result.Output)
}

func TestDispatcher_OutputValidation(t *testing.T) {
	def := New("count").
		Output(schema.Integer()).
		Execute(func(context.Context, Input) (core.ActionResult, error) {
			return core.ActionResult{Output: "three"}, nil
		}).
		MustBuild()

	out := newDispatcher(t, def).Execute(context.Background(), Call{Name: "count"})
	assert.ErrorIs(t, out.Err, core.ErrValidation)
}

func TestDispatcher_DispatchBackground(t *testing.T) {
	release := make(chan struct{})
	def := New("later").
		Execute(func(context.Context, Input) (core.ActionResult, error) {
			<-release
			return core.ActionResult{Output: 42}, nil
		}).
		MustBuild()

	ch, err := newDispatcher(t, def).Dispatch(context.Background(), Call{Name: "later", Mode: ModeBackground})
	require.NoError(t, err)

	select {
	case <-ch:
		t.Fatal("background call completed before release")
	default:
	}

	close(release)
	out := <-ch
	require.NoError(t, out.Err)
	assert.Equal(t, 42, out.Result.Output)
	assert.Equal(t, ModeBackground, out.Call.Mode)
}

func TestDispatcher_DepsAndRunner(t *testing.T) {
	lookup := New("lookup").
		Execute(func(context.Context, Input) (core.ActionResult, error) {
			return core.ActionResult{Output: "found"}, nil
		}).
		MustBuild()
	wrapper := New("wrapper").
		Dependencies("lookup").
		Execute(func(ctx context.Context, in Input) (core.ActionResult, error) {
			r, err := in.Deps.Action("lookup")
			if err != nil {
				return core.ActionResult{}, err
			}
			return r.Run(ctx, nil)
		}).
		MustBuild()

	reg, err := feature.NewRegistry(lookup, wrapper)
	require.NoError(t, err)

	var d *Dispatcher
	d = NewDispatcher(reg, func(o *DispatcherOptions) {
		o.Deps = func(s feature.Scope) core.Dependencies {
			return feature.NewDeps(s, func(name string) (core.ActionRunner, error) { return d.Runner(name) }, nil, nil)
		}
	})

	out := d.Execute(context.Background(), Call{Name: "wrapper"})
	require.NoError(t, out.Err)
	assert.Equal(t, "found", out.Result.Output)
}

func TestExecuteBatch_PreservesOrder(t *testing.T) {
	mk := func(name string, delay time.Duration) *Definition {
		return New(name).Execute(func(context.Context, Input) (core.ActionResult, error) {
			time.Sleep(delay)
			return core.ActionResult{Output: name}, nil
		}).MustBuild()
	}

	reg, err := feature.NewRegistry(mk("slow", 40*time.Millisecond), mk("fast", 0), mk("mid", 20*time.Millisecond))
	require.NoError(t, err)
	d := NewDispatcher(reg, func(o *DispatcherOptions) { o.MaxParallel = 2 })

	calls := []Call{{Name: "slow"}, {Name: "fast"}, {Name: "mid"}, {Name: "missing"}}
	outs := d.ExecuteBatch(context.Background(), calls)
	require.Len(t, outs, 4)

	assert.Equal(t, "slow", outs[0].Result.Output)
	assert.Equal(t, "fast", outs[1].Result.Output)
	assert.Equal(t, "mid", outs[2].Result.Output)
	assert.ErrorIs(t, outs[3].Err, core.ErrNotFound)
	assert.Equal(t, ModeParallel, outs[0].Call.Mode)
	for _, c := range calls {
		assert.Empty(t, c.Mode)
	}
}

func TestExecuteBatch_Concurrent(t *testing.T) {
	var running, peak atomic.Int32
	def := New("work").Execute(func(context.Context, Input) (core.ActionResult, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		running.Add(-1)
		return core.ActionResult{}, nil
	}).MustBuild()

	outs := newDispatcher(t, def).ExecuteBatch(context.Background(), []Call{{Name: "work"}, {Name: "work"}, {Name: "work"}})
	require.Len(t, outs, 3)
	assert.EqualValues(t, 3, peak.Load())
}

func TestParseArguments(t *testing.T) {
	args, err := ParseArguments(`{"a":1}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, args["a"])

	args, err = ParseArguments("")
	require.NoError(t, err)
	assert.Empty(t, args)

	_, err = ParseArguments("{")
	assert.ErrorIs(t, err, core.ErrValidation)
}
