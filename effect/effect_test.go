package effect

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lifemesh/core"
	"github.com/hupe1980/lifemesh/feature"
	"github.com/hupe1980/lifemesh/internal/schema"
)

func newHost(t *testing.T, defs ...*Definition) *Host {
	t.Helper()
	reg, err := feature.NewRegistry(defs...)
	require.NoError(t, err)
	return NewHost(reg)
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func TestBuilder_RejectsRepeatedAspect(t *testing.T) {
	b := New("camera").Mount(func(context.Context, Input) error { return nil })
	_, err := b.Mount(func(context.Context, Input) error { return nil }).Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, feature.ErrAspectAlreadySet)

	_, err = b.Build()
	assert.NoError(t, err)
}

func TestHost_MountErrorThenMount(t *testing.T) {
	fail := true
	h := newHost(t, New("camera").Mount(func(context.Context, Input) error {
		if fail {
			return errors.New("device busy")
		}
		return nil
	}).MustBuild())

	rec := &recorder{}
	h.Bus().Subscribe(rec.handle)

	err := h.Mount(context.Background(), "camera")
	require.Error(t, err)

	st, err := h.State("camera")
	require.NoError(t, err)
	assert.Equal(t, PhaseMountErrored, st.Phase)
	assert.Equal(t, "device busy", st.MountError)
	assert.False(t, st.Mounted)

	fail = false
	require.NoError(t, h.Mount(context.Background(), "camera"))

	st, err = h.State("camera")
	require.NoError(t, err)
	assert.Equal(t, PhaseMounted, st.Phase)
	assert.True(t, st.Mounted)
	assert.Empty(t, st.MountError)
	require.NotNil(t, st.MountedInMs)

	require.NoError(t, h.Unmount(context.Background(), "camera"))
	st, _ = h.State("camera")
	assert.Equal(t, PhaseUnmounted, st.Phase)
	assert.True(t, st.Unmounted)
	assert.NotNil(t, st.UnmountedInMs)

	assert.Equal(t, []Kind{KindMountError, KindMounted, KindUnmounted}, rec.kinds())
}

func TestHost_MountIsIdempotentAndUnmountNoop(t *testing.T) {
	calls := 0
	h := newHost(t, New("mic").Mount(func(context.Context, Input) error { calls++; return nil }).MustBuild())

	require.NoError(t, h.Unmount(context.Background(), "mic"))
	require.NoError(t, h.Mount(context.Background(), "mic"))
	require.NoError(t, h.Mount(context.Background(), "mic"))
	assert.Equal(t, 1, calls)
}

func TestHost_UnmountError(t *testing.T) {
	h := newHost(t, New("screen").Unmount(func(context.Context, Input) error { panic("stuck") }).MustBuild())

	require.NoError(t, h.Mount(context.Background(), "screen"))
	err := h.Unmount(context.Background(), "screen")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUnknown)

	st, _ := h.State("screen")
	assert.Equal(t, PhaseUnmountErrored, st.Phase)
	assert.Contains(t, st.UnmountError, "stuck")
	assert.True(t, st.Mounted)

	// Error phases allow another attempt.
	require.NoError(t, h.Mount(context.Background(), "screen"))
}

func TestHost_Timeout(t *testing.T) {
	h := newHost(t, New("slow").
		Mount(func(ctx context.Context, _ Input) error {
			<-ctx.Done()
			return ctx.Err()
		}).
		Options(func(o *Options) { o.Timeout = 20 * time.Millisecond }).
		MustBuild())

	err := h.Mount(context.Background(), "slow")
	assert.ErrorIs(t, err, core.ErrTimeout)
}

func TestHost_DisabledAndUnknown(t *testing.T) {
	h := newHost(t, New("off").Options(func(o *Options) { o.Disabled = true }).MustBuild())

	assert.ErrorIs(t, h.Mount(context.Background(), "off"), core.ErrDisabled)
	assert.ErrorIs(t, h.Mount(context.Background(), "nope"), core.ErrNotFound)
	assert.NoError(t, h.MountAll(context.Background()))
}

func TestHost_Query(t *testing.T) {
	h := newHost(t, New("camera").MustBuild())

	v, err := h.Query(context.Background(), Method("camera", QueryMountedInMs))
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = h.Query(context.Background(), "effects.camera.colour")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = h.Query(context.Background(), "camera.hasMounted")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestTracker_LocalGateway(t *testing.T) {
	fail := true
	h := newHost(t, New("camera").Mount(func(context.Context, Input) error {
		if fail {
			return errors.New("no permission")
		}
		return nil
	}).MustBuild())

	tr := NewTracker(LocalGateway(h), "camera")
	defer tr.Close()

	rec := &recorder{}
	_, err := tr.On("", rec.handle)
	require.NoError(t, err)

	var mounted []Event
	_, err = tr.On(KindMounted, func(ev Event) { mounted = append(mounted, ev) })
	require.NoError(t, err)

	ctx := context.Background()
	_ = h.Mount(ctx, "camera")

	msg, err := tr.MountError(ctx)
	require.NoError(t, err)
	assert.Equal(t, "no permission", msg)

	ok, err := tr.HasMounted(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	fail = false
	require.NoError(t, h.Mount(ctx, "camera"))

	ok, err = tr.HasMounted(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ms, err := tr.MountedInMs(ctx)
	require.NoError(t, err)
	require.NotNil(t, ms)

	msg, err = tr.MountError(ctx)
	require.NoError(t, err)
	assert.Empty(t, msg)

	assert.Equal(t, []Kind{KindMountError, KindMounted}, rec.kinds())
	require.Len(t, mounted, 1)
	assert.Equal(t, "camera", mounted[0].Effect)
}

type stubGateway struct {
	result any
	err    error
}

func (g stubGateway) Call(_ context.Context, method string, expect *schema.Schema) (any, error) {
	if g.err != nil {
		return nil, g.err
	}
	return CheckResult(method, expect, g.result)
}

func (g stubGateway) Subscribe(string, []string, EventHandler) (func(), error) {
	return func() {}, nil
}

func TestTracker_ValidatesAndPropagates(t *testing.T) {
	ctx := context.Background()

	_, err := NewTracker(stubGateway{result: "yes"}, "camera").HasMounted(ctx)
	assert.ErrorIs(t, err, core.ErrValidation)

	remote := &RemoteError{Method: "effects.camera.hasMounted", Message: "gone"}
	_, err = NewTracker(stubGateway{err: remote}, "camera").HasMounted(ctx)
	assert.Same(t, remote, err)

	ms, err := NewTracker(stubGateway{result: 12.0}, "camera").UnmountedInMs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12), *ms)
}

func TestBus_UnsubscribeAndOrder(t *testing.T) {
	b := NewBus()
	var got []string
	off := b.Subscribe(func(ev Event) { got = append(got, "a:"+string(ev.Kind)) })
	b.On(KindUnmounted, func(ev Event) { got = append(got, "b:"+string(ev.Kind)) })

	b.Publish(Event{Kind: KindMounted})
	b.Publish(Event{Kind: KindUnmounted})
	off()
	off()
	b.Publish(Event{Kind: KindUnmounted})

	assert.Equal(t, []string{"a:mounted", "a:unmounted", "b:unmounted", "b:unmounted"}, got)
}

func TestMatchEvent(t *testing.T) {
	assert.True(t, MatchEvent("effects.cam.", []string{"mounted"}, "effects.cam.mounted"))
	assert.False(t, MatchEvent("effects.cam.", []string{"mounted"}, "effects.cam.unmounted"))
	assert.False(t, MatchEvent("effects.cam.", nil, "effects.mic.mounted"))
	assert.True(t, MatchEvent("effects.cam.", nil, "effects.cam.anything"))
}
