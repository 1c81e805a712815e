package core

import "context"

// ActionResult is the structured outcome of an action. A non-empty Error
// marks an expected business failure: it is returned to the caller as-is and
// never retried.
type ActionResult struct {
	Output any    `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
	Hint   string `json:"hint,omitempty"`
}

// Failed reports whether the result carries a business failure.
func (r ActionResult) Failed() bool { return r.Error != "" }

// ActionRunner runs an action on behalf of another feature. It always runs
// inline from the caller's point of view.
type ActionRunner interface {
	Run(ctx context.Context, args map[string]any) (ActionResult, error)
}

// EffectStatus queries the lifecycle state of one effect. Every method is a
// remote read; failures of the transport propagate unchanged.
type EffectStatus interface {
	HasMounted(ctx context.Context) (bool, error)
	HasUnmounted(ctx context.Context) (bool, error)
	MountedInMs(ctx context.Context) (*int64, error)
	UnmountedInMs(ctx context.Context) (*int64, error)
	MountError(ctx context.Context) (string, error)
	UnmountError(ctx context.Context) (string, error)
}

// Dependencies gives a feature access to the other features it declared.
// Lookups of undeclared or unknown names fail with KindNotFound.
type Dependencies interface {
	Action(name string) (ActionRunner, error)
	Effect(name string) (EffectStatus, error)
	// Config returns the agent's prepared (server-side) configuration.
	Config() map[string]any
}

// NoDependencies is a Dependencies implementation that resolves nothing.
type NoDependencies struct{}

// Action implements Dependencies.
func (NoDependencies) Action(name string) (ActionRunner, error) {
	return nil, NewError(KindNotFound, "deps.action", "action %q not declared", name)
}

// Effect implements Dependencies.
func (NoDependencies) Effect(name string) (EffectStatus, error) {
	return nil, NewError(KindNotFound, "deps.effect", "effect %q not declared", name)
}

// Config implements Dependencies.
func (NoDependencies) Config() map[string]any { return map[string]any{} }
