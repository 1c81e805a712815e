package effect

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/lifemesh/core"
	"github.com/hupe1980/lifemesh/feature"
	"github.com/hupe1980/lifemesh/logging"
)

// Query names served by a Host.
const (
	QueryHasMounted    = "hasMounted"
	QueryHasUnmounted  = "hasUnmounted"
	QueryMountedInMs   = "mountedInMs"
	QueryUnmountedInMs = "unmountedInMs"
	QueryMountError    = "mountError"
	QueryUnmountError  = "unmountError"
)

// Method returns the remote method name for query on effect.
func Method(effect, query string) string { return "effects." + effect + "." + query }

// EventName returns the remote event name for kind on effect.
func EventName(effect string, kind Kind) string { return "effects." + effect + "." + string(kind) }

// HostOptions configures a Host.
type HostOptions struct {
	Logger logging.Logger
	Deps   feature.DepsFactory
}

type entry struct {
	def *Definition
	// op serializes lifecycle transitions of this effect.
	op    sync.Mutex
	state State
}

// Host owns effect state and runs mount and unmount behavior. Its methods
// are safe for concurrent use; transitions of one effect are serialized.
type Host struct {
	registry *feature.Registry[*Definition]
	opts     HostOptions
	bus      *Bus

	mu      sync.RWMutex
	entries map[string]*entry
}

// NewHost creates a host for the effects in reg. Every effect starts unmounted.
func NewHost(reg *feature.Registry[*Definition], optFns ...func(o *HostOptions)) *Host {
	opts := HostOptions{
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

	h := &Host{
		registry: reg,
		opts:     opts,
		bus:      NewBus(),
		entries:  make(map[string]*entry, reg.Len()),
	}
	for _, def := range reg.All() {
		h.entries[def.name] = &entry{def: def, state: State{Phase: PhaseUnmounted}}
	}
	return h
}

// Bus returns the bus lifecycle events are published on.
func (h *Host) Bus() *Bus { return h.bus }

// Names returns the effect names in registration order.
func (h *Host) Names() []string { return h.registry.Names() }

// State returns a snapshot of the named effect's state.
func (h *Host) State(name string) (State, error) {
	e, err := h.entry(name)
	if err != nil {
		return State{}, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return e.state.clone(), nil
}

func (h *Host) entry(name string) (*entry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.entries[name]
	if !ok {
		return nil, core.NewError(core.KindNotFound, "effect."+name, "effect %q is not registered", name)
	}
	return e, nil
}

func (h *Host) update(e *entry, fn func(s *State)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(&e.state)
}

// Mount mounts the named effect. Mounting a mounted effect is a no-op.
func (h *Host) Mount(ctx context.Context, name string) error {
	e, err := h.entry(name)
	if err != nil {
		return err
	}
	op := "effect." + name
	if e.def.options.Disabled {
		return core.NewError(core.KindDisabled, op, "effect %q is disabled", name)
	}

	e.op.Lock()
	defer e.op.Unlock()

	h.mu.RLock()
	phase := e.state.Phase
	h.mu.RUnlock()
	if phase == PhaseMounted {
		return nil
	}
	if !phase.canMount() {
		return core.NewError(core.KindValidation, op, "cannot mount effect %q while %s", name, phase)
	}

	h.update(e, func(s *State) { s.Phase = PhaseMounting })

	start := time.Now()
	err = h.run(ctx, e.def, e.def.mount, "mount")
	ms := time.Since(start).Milliseconds()

	if err != nil {
		h.update(e, func(s *State) {
			s.Phase = PhaseMountErrored
			s.MountError = err.Error()
		})
		h.opts.Logger.Warn("effect.mount_failed", "effect", name, "error", err)
		h.publish(name, KindMountError, map[string]any{"error": err.Error()})
		return err
	}

	h.update(e, func(s *State) {
		s.Phase = PhaseMounted
		s.Mounted = true
		s.Unmounted = false
		s.MountedInMs = &ms
		s.UnmountedInMs = nil
		s.MountError = ""
		s.UnmountError = ""
	})
	h.opts.Logger.Info("effect.mounted", "effect", name, "duration_ms", ms)
	h.publish(name, KindMounted, map[string]any{"mountedInMs": ms})
	return nil
}

// Unmount unmounts the named effect. Unmounting an effect that is not
// mounted is a no-op.
func (h *Host) Unmount(ctx context.Context, name string) error {
	e, err := h.entry(name)
	if err != nil {
		return err
	}

	e.op.Lock()
	defer e.op.Unlock()

	h.mu.RLock()
	phase := e.state.Phase
	h.mu.RUnlock()
	if !phase.canUnmount() {
		return nil
	}

	h.update(e, func(s *State) { s.Phase = PhaseUnmounting })

	start := time.Now()
	err = h.run(ctx, e.def, e.def.unmount, "unmount")
	ms := time.Since(start).Milliseconds()

	if err != nil {
		h.update(e, func(s *State) {
			s.Phase = PhaseUnmountErrored
			s.UnmountError = err.Error()
		})
		h.opts.Logger.Warn("effect.unmount_failed", "effect", name, "error", err)
		h.publish(name, KindUnmountError, map[string]any{"error": err.Error()})
		return err
	}

	h.update(e, func(s *State) {
		s.Phase = PhaseUnmounted
		s.Mounted = false
		s.Unmounted = true
		s.UnmountedInMs = &ms
		s.UnmountError = ""
	})
	h.opts.Logger.Info("effect.unmounted", "effect", name, "duration_ms", ms)
	h.publish(name, KindUnmounted, map[string]any{"unmountedInMs": ms})
	return nil
}

// MountAll mounts every enabled effect in registration order and joins the
// errors.
func (h *Host) MountAll(ctx context.Context) error {
	var errs []error
	for _, def := range h.registry.All() {
		if def.options.Disabled {
			continue
		}
		if err := h.Mount(ctx, def.name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// UnmountAll unmounts every effect in reverse registration order and joins
// the errors.
func (h *Host) UnmountAll(ctx context.Context) error {
	var errs []error
	defs := h.registry.All()
	slices.Reverse(defs)
	for _, def := range defs {
		if err := h.Unmount(ctx, def.name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Query answers a remote method of the form "effects.<name>.<query>".
// Missing durations and errors are reported as nil.
func (h *Host) Query(_ context.Context, method string) (any, error) {
	name, query, ok := splitMethod(method)
	if !ok {
		return nil, core.NewError(core.KindNotFound, method, "unknown method %q", method)
	}
	st, err := h.State(name)
	if err != nil {
		return nil, err
	}

	switch query {
	case QueryHasMounted:
		return st.Mounted, nil
	case QueryHasUnmounted:
		return st.Unmounted, nil
	case QueryMountedInMs:
		if st.MountedInMs == nil {
			return nil, nil
		}
		return *st.MountedInMs, nil
	case QueryUnmountedInMs:
		if st.UnmountedInMs == nil {
			return nil, nil
		}
		return *st.UnmountedInMs, nil
	case QueryMountError:
		return nilIfEmpty(st.MountError), nil
	case QueryUnmountError:
		return nilIfEmpty(st.UnmountError), nil
	default:
		return nil, core.NewError(core.KindNotFound, method, "unknown query %q", query)
	}
}

func (h *Host) run(ctx context.Context, def *Definition, fn LifecycleFunc, stage string) error {
	op := "effect." + def.name + "." + stage
	rctx, cancel := context.WithCancel(ctx)
	defer cancel()

	in := Input{
		Deps:   h.opts.Deps(feature.Scope{Owner: def.name, Declared: def.dependencies}),
		Logger: h.opts.Logger,
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				h.opts.Logger.Error("effect.panic", "effect", def.name, "stage", stage, "recover", r)
				done <- core.PanicError(op, r)
			}
		}()
		done <- fn(rctx, in)
	}()

	var timeout <-chan time.Time
	if def.options.Timeout > 0 {
		timer := time.NewTimer(def.options.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case err := <-done:
		return err
	case <-timeout:
		return core.NewError(core.KindTimeout, op, "timed out after %s", def.options.Timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Host) publish(name string, kind Kind, data map[string]any) {
	h.bus.Publish(Event{Effect: name, Kind: kind, Data: data, At: time.Now().UTC()})
}

// splitMethod parses "effects.<name>.<query>". Effect names may contain dots.
func splitMethod(method string) (name, query string, ok bool) {
	rest, found := strings.CutPrefix(method, "effects.")
	if !found {
		return "", "", false
	}
	i := strings.LastIndex(rest, ".")
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
