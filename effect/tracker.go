package effect

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/lifemesh/core"
	"github.com/hupe1980/lifemesh/feature"
	"github.com/hupe1980/lifemesh/internal/schema"
	"github.com/hupe1980/lifemesh/logging"
)

// TrackerOptions configures a Tracker.
type TrackerOptions struct {
	Logger logging.Logger
}

// Tracker observes one effect through a Gateway. Queries are remote reads;
// lifecycle events are forwarded to handlers registered with On.
type Tracker struct {
	gw     Gateway
	name   string
	bus    *Bus
	logger logging.Logger

	mu          sync.Mutex
	unsubscribe func()
}

var _ core.EffectStatus = (*Tracker)(nil)

// NewTracker creates a tracker for the named effect.
func NewTracker(gw Gateway, name string, optFns ...func(o *TrackerOptions)) *Tracker {
	opts := TrackerOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Tracker{gw: gw, name: name, bus: NewBus(), logger: logging.OrNoOp(opts.Logger)}
}

// Name returns the tracked effect name.
func (t *Tracker) Name() string { return t.name }

// HasMounted implements core.EffectStatus.
func (t *Tracker) HasMounted(ctx context.Context) (bool, error) {
	return t.callBool(ctx, QueryHasMounted)
}

// HasUnmounted implements core.EffectStatus.
func (t *Tracker) HasUnmounted(ctx context.Context) (bool, error) {
	return t.callBool(ctx, QueryHasUnmounted)
}

// MountedInMs implements core.EffectStatus.
func (t *Tracker) MountedInMs(ctx context.Context) (*int64, error) {
	return t.callMillis(ctx, QueryMountedInMs)
}

// UnmountedInMs implements core.EffectStatus.
func (t *Tracker) UnmountedInMs(ctx context.Context) (*int64, error) {
	return t.callMillis(ctx, QueryUnmountedInMs)
}

// MountError implements core.EffectStatus.
func (t *Tracker) MountError(ctx context.Context) (string, error) {
	return t.callString(ctx, QueryMountError)
}

// UnmountError implements core.EffectStatus.
func (t *Tracker) UnmountError(ctx context.Context) (string, error) {
	return t.callString(ctx, QueryUnmountError)
}

// On registers h for events of kind. The first registration subscribes to
// the gateway. The returned function removes h.
func (t *Tracker) On(kind Kind, h Handler) (func(), error) {
	if err := t.subscribe(); err != nil {
		return nil, err
	}
	return t.bus.On(kind, h), nil
}

// Close ends the gateway subscription, if any.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.unsubscribe != nil {
		t.unsubscribe()
		t.unsubscribe = nil
	}
}

func (t *Tracker) subscribe() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.unsubscribe != nil {
		return nil
	}

	prefix := "effects." + t.name + "."
	events := make([]string, len(Kinds))
	for i, k := range Kinds {
		events[i] = string(k)
	}

	unsubscribe, err := t.gw.Subscribe(prefix, events, func(event string, data map[string]any) {
		kind := Kind(strings.TrimPrefix(event, prefix))
		t.logger.Debug("effect.event", "effect", t.name, "kind", kind)
		t.bus.Publish(Event{Effect: t.name, Kind: kind, Data: data, At: time.Now().UTC()})
	})
	if err != nil {
		return err
	}
	t.unsubscribe = unsubscribe
	return nil
}

func (t *Tracker) callBool(ctx context.Context, query string) (bool, error) {
	v, err := t.gw.Call(ctx, Method(t.name, query), schema.Boolean())
	if err != nil {
		return false, err
	}
	b, _ := v.(bool)
	return b, nil
}

func (t *Tracker) callMillis(ctx context.Context, query string) (*int64, error) {
	v, err := t.gw.Call(ctx, Method(t.name, query), schema.Integer().WithRange(0, math.MaxInt64))
	if err != nil || v == nil {
		return nil, err
	}
	var ms int64
	switch n := v.(type) {
	case int64:
		ms = n
	case int:
		ms = int64(n)
	case float64:
		ms = int64(n)
	}
	return &ms, nil
}

func (t *Tracker) callString(ctx context.Context, query string) (string, error) {
	v, err := t.gw.Call(ctx, Method(t.name, query), schema.String())
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

// Resolver returns an effect resolver backed by trackers over gw. Names
// not registered on h fail with KindNotFound.
func (h *Host) Resolver(gw Gateway) feature.EffectResolver {
	return func(name string) (core.EffectStatus, error) {
		if _, err := h.entry(name); err != nil {
			return nil, err
		}
		return NewTracker(gw, name, func(o *TrackerOptions) { o.Logger = h.opts.Logger }), nil
	}
}
