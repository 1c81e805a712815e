package feature

import (
	"slices"

	"github.com/hupe1980/lifemesh/core"
)

// ActionResolver resolves a runnable action by name.
type ActionResolver func(name string) (core.ActionRunner, error)

// EffectResolver resolves an effect status accessor by name.
type EffectResolver func(name string) (core.EffectStatus, error)

// Scope is the set of dependencies a feature declared.
type Scope struct {
	Owner    string
	Declared []string
}

// Allows reports whether name was declared.
func (s Scope) Allows(name string) bool {
	return slices.Contains(s.Declared, name)
}

// Deps implements core.Dependencies restricted to a Scope.
type Deps struct {
	scope   Scope
	actions ActionResolver
	effects EffectResolver
	config  map[string]any
}

var _ core.Dependencies = (*Deps)(nil)

// NewDeps builds dependency accessors for one feature. Nil resolvers
// resolve nothing.
func NewDeps(scope Scope, actions ActionResolver, effects EffectResolver, cfg map[string]any) *Deps {
	if cfg == nil {
		cfg = map[string]any{}
	}
	return &Deps{scope: scope, actions: actions, effects: effects, config: cfg}
}

// Action implements core.Dependencies.
func (d *Deps) Action(name string) (core.ActionRunner, error) {
	if !d.scope.Allows(name) || d.actions == nil {
		return nil, core.NewError(core.KindNotFound, "deps.action", "%s did not declare action %q", d.scope.Owner, name)
	}
	return d.actions(name)
}

// Effect implements core.Dependencies.
func (d *Deps) Effect(name string) (core.EffectStatus, error) {
	if !d.scope.Allows(name) || d.effects == nil {
		return nil, core.NewError(core.KindNotFound, "deps.effect", "%s did not declare effect %q", d.scope.Owner, name)
	}
	return d.effects(name)
}

// Config implements core.Dependencies.
func (d *Deps) Config() map[string]any { return d.config }

// DepsFactory creates dependency accessors for a feature.
type DepsFactory func(scope Scope) core.Dependencies

// NoDeps is a DepsFactory resolving nothing.
func NoDeps(Scope) core.Dependencies { return core.NoDependencies{} }
