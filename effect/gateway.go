package effect

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/lifemesh/core"
	"github.com/hupe1980/lifemesh/internal/schema"
)

// EventHandler receives a remote event by name.
type EventHandler func(event string, data map[string]any)

// Gateway is the transport between a Tracker and a Host.
type Gateway interface {
	// Call invokes method and returns its result validated against expect.
	// Transport and remote failures are returned unchanged.
	Call(ctx context.Context, method string, expect *schema.Schema) (any, error)
	// Subscribe forwards events whose name starts with prefix and whose
	// remainder is one of events (all when empty) to handler, in delivery
	// order. The returned function ends the subscription.
	Subscribe(prefix string, events []string, handler EventHandler) (func(), error)
}

// RemoteError is a failure reported by the remote side of a call.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %s", e.Method, e.Message)
}

// CheckResult validates a call result against expect.
func CheckResult(method string, expect *schema.Schema, v any) (any, error) {
	out, err := expect.Parse(v)
	if err != nil {
		return nil, core.WrapError(core.KindValidation, method, err)
	}
	return out, nil
}

// MatchEvent reports whether the event name is selected by prefix and events.
func MatchEvent(prefix string, events []string, name string) bool {
	rest, ok := strings.CutPrefix(name, prefix)
	if !ok {
		return false
	}
	return len(events) == 0 || slices.Contains(events, rest)
}

type localGateway struct {
	host *Host
}

// LocalGateway connects trackers to an in-process host.
func LocalGateway(h *Host) Gateway { return &localGateway{host: h} }

func (g *localGateway) Call(ctx context.Context, method string, expect *schema.Schema) (any, error) {
	v, err := g.host.Query(ctx, method)
	if err != nil {
		return nil, err
	}
	return CheckResult(method, expect, v)
}

func (g *localGateway) Subscribe(prefix string, events []string, handler EventHandler) (func(), error) {
	return g.host.Bus().Subscribe(func(ev Event) {
		if name := ev.Name(); MatchEvent(prefix, events, name) {
			handler(name, ev.Data)
		}
	}), nil
}
