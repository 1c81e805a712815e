package agent

import (
	"maps"
	"slices"

	"github.com/hupe1980/lifemesh/action"
	"github.com/hupe1980/lifemesh/core"
	"github.com/hupe1980/lifemesh/effect"
	"github.com/hupe1980/lifemesh/feature"
	"github.com/hupe1980/lifemesh/internal/schema"
	"github.com/hupe1980/lifemesh/memory"
	"github.com/hupe1980/lifemesh/model"
)

const (
	aspectInstructions = "instructions"
	aspectModel        = "model"
	aspectGateModel    = "gateModel"
	aspectHint         = "hint"
	aspectConfig       = "config"
	aspectSchema       = "schema"
	aspectActions      = "actions"
	aspectMemories     = "memories"
	aspectEffects      = "effects"
)

// ConfigSchema is the default server-side agent configuration schema.
//
//	reactivity.enabled   run the decision gate (default true)
//	reactivity.hint      guidance for the gate, overriding the definition hint
//	generation.maxRounds generate/act rounds per turn (default 4)
//	transcript.window    trailing messages sent to the model (default 20)
//	label                display name
func ConfigSchema() *schema.Schema {
	return schema.Object(map[string]*schema.Schema{
		"reactivity": schema.Object(map[string]*schema.Schema{
			"enabled": schema.Boolean().WithDefault(true),
			"hint":    schema.String(),
		}),
		"generation": schema.Object(map[string]*schema.Schema{
			"maxRounds": schema.Integer().WithDefault(4).WithRange(1, 32),
		}),
		"transcript": schema.Object(map[string]*schema.Schema{
			"window": schema.Integer().WithDefault(20).WithRange(1, 200),
		}),
		"label": schema.String(),
	})
}

// ClientConfigSchema is the default client-visible projection of
// ConfigSchema.
func ClientConfigSchema() *schema.Schema {
	return schema.Object(map[string]*schema.Schema{
		"reactivity": schema.Object(map[string]*schema.Schema{
			"enabled": schema.Boolean().WithDefault(true),
		}),
		"transcript": schema.Object(map[string]*schema.Schema{
			"window": schema.Integer().WithDefault(20).WithRange(1, 50),
		}),
		"label": schema.String(),
	})
}

// Definition describes an agent. It is immutable.
type Definition struct {
	name         string
	description  string
	instructions Instruction
	model        model.Model
	gateModel    model.Model
	hint         string
	config       map[string]any
	fullSchema   *schema.Schema
	clientSchema *schema.Schema

	actions  *feature.Registry[*action.Definition]
	memories *feature.Registry[*memory.Definition]
	effects  *feature.Registry[*effect.Definition]
}

// FeatureName implements feature.Named.
func (d *Definition) FeatureName() string { return d.name }

// Name returns the agent name.
func (d *Definition) Name() string { return d.name }

// Description returns the agent description.
func (d *Definition) Description() string { return d.description }

// Model returns the generation provider.
func (d *Definition) Model() model.Model { return d.model }

// Actions returns the action registry.
func (d *Definition) Actions() *feature.Registry[*action.Definition] { return d.actions }

// Memories returns the memory registry.
func (d *Definition) Memories() *feature.Registry[*memory.Definition] { return d.memories }

// Effects returns the effect registry.
func (d *Definition) Effects() *feature.Registry[*effect.Definition] { return d.effects }

// Builder assembles a Definition. Every method returns a new Builder; each
// aspect may be set once.
type Builder struct {
	def      Definition
	actions  []*action.Definition
	memories []*memory.Definition
	effects  []*effect.Definition
	aspects  feature.Aspects
}

// New starts a builder for the named agent.
func New(name string) Builder {
	return Builder{def: Definition{name: name}}
}

func (b Builder) with(aspect string, fn func(b *Builder)) Builder {
	next := Builder{
		def:      b.def,
		actions:  slices.Clone(b.actions),
		memories: slices.Clone(b.memories),
		effects:  slices.Clone(b.effects),
		aspects:  b.aspects.Mark(aspect),
	}
	fn(&next)
	return next
}

// Description sets the description.
func (b Builder) Description(s string) Builder {
	return b.with(feature.AspectDescription, func(n *Builder) { n.def.description = s })
}

// Instructions sets the system instructions, a template over "agent" and
// "config".
func (b Builder) Instructions(text string) Builder {
	return b.with(aspectInstructions, func(n *Builder) { n.def.instructions = NewInstructionFromText(text) })
}

// InstructionsFunc sets dynamic system instructions. It sets the same
// aspect as Instructions.
func (b Builder) InstructionsFunc(fn func(turn *core.Turn) (string, error)) Builder {
	return b.with(aspectInstructions, func(n *Builder) { n.def.instructions = NewInstructionFromFunc(fn) })
}

// Model sets the generation provider.
func (b Builder) Model(m model.Model) Builder {
	return b.with(aspectModel, func(n *Builder) { n.def.model = m })
}

// GateModel sets a separate provider for the decision gate. It defaults to
// the generation provider.
func (b Builder) GateModel(m model.Model) Builder {
	return b.with(aspectGateModel, func(n *Builder) { n.def.gateModel = m })
}

// Hint sets the default guidance for the decision gate.
func (b Builder) Hint(s string) Builder {
	return b.with(aspectHint, func(n *Builder) { n.def.hint = s })
}

// Config sets the agent's local configuration. It takes precedence over
// the project configuration of the agent.
func (b Builder) Config(local map[string]any) Builder {
	return b.with(aspectConfig, func(n *Builder) { n.def.config = maps.Clone(local) })
}

// Schema replaces the default configuration schemas. The client schema
// must describe a subset of the full schema.
func (b Builder) Schema(full, client *schema.Schema) Builder {
	return b.with(aspectSchema, func(n *Builder) {
		n.def.fullSchema = full
		n.def.clientSchema = client
	})
}

// Actions sets the agent's actions.
func (b Builder) Actions(defs ...*action.Definition) Builder {
	return b.with(aspectActions, func(n *Builder) { n.actions = slices.Clone(defs) })
}

// Memories sets the agent's memory providers, in context order.
func (b Builder) Memories(defs ...*memory.Definition) Builder {
	return b.with(aspectMemories, func(n *Builder) { n.memories = slices.Clone(defs) })
}

// Effects sets the agent's effects.
func (b Builder) Effects(defs ...*effect.Definition) Builder {
	return b.with(aspectEffects, func(n *Builder) { n.effects = slices.Clone(defs) })
}

// Build finalizes the definition. Duplicate feature names are rejected
// with feature.ErrDuplicate.
func (b Builder) Build() (*Definition, error) {
	if err := b.aspects.Err("agent", b.def.name); err != nil {
		return nil, err
	}
	op := "agent.build"
	if b.def.name == "" {
		return nil, core.NewError(core.KindValidation, op, "name must not be empty")
	}
	if b.def.model == nil {
		return nil, core.NewError(core.KindValidation, op, "agent %q: model is required", b.def.name)
	}

	def := b.def
	def.config = maps.Clone(b.def.config)
	if def.config == nil {
		def.config = map[string]any{}
	}
	if def.fullSchema == nil {
		def.fullSchema = ConfigSchema()
	}
	if def.clientSchema == nil {
		def.clientSchema = ClientConfigSchema()
	}
	if def.gateModel == nil {
		def.gateModel = def.model
	}

	var err error
	if def.actions, err = feature.NewRegistry(b.actions...); err != nil {
		return nil, err
	}
	if def.memories, err = feature.NewRegistry(b.memories...); err != nil {
		return nil, err
	}
	if def.effects, err = feature.NewRegistry(b.effects...); err != nil {
		return nil, err
	}
	return &def, nil
}

// MustBuild is like Build but panics on error.
func (b Builder) MustBuild() *Definition {
	d, err := b.Build()
	if err != nil {
		panic(err)
	}
	return d
}
