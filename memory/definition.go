package memory

import (
	"context"
	"slices"

	"github.com/hupe1980/lifemesh/core"
	"github.com/hupe1980/lifemesh/feature"
	"github.com/hupe1980/lifemesh/logging"
)

// Behavior selects whether a provider delays the turn.
type Behavior string

const (
	Blocking    Behavior = "blocking"
	NonBlocking Behavior = "non-blocking"
)

// Section is the part of the context window a provider targets.
type Section string

const (
	Top    Section = "top"
	Bottom Section = "bottom"
)

// Align places output at the start or end of its section.
type Align string

const (
	Start Align = "start"
	End   Align = "end"
)

// Position is one of the four context buckets.
type Position struct {
	Section Section
	Align   Align
}

// bucket returns the assembly slot of p: 0,1 before the transcript, 2,3 after.
func (p Position) bucket() int {
	b := 0
	if p.Section == Bottom {
		b = 2
	}
	if p.Align == End {
		b++
	}
	return b
}

// Options controls provider behavior.
type Options struct {
	Behavior Behavior
	Position Position
	Disabled bool
}

// DefaultOptions returns blocking output at the end of the top section.
func DefaultOptions() Options {
	return Options{Behavior: Blocking, Position: Position{Section: Top, Align: End}}
}

// Input is handed to a provider's output function.
type Input struct {
	// Messages is the transcript the context is being assembled for.
	Messages []core.Message
	Deps     core.Dependencies
	Logger   logging.Logger
}

// OutputFunc computes a provider's messages. Returning nil contributes nothing.
type OutputFunc func(ctx context.Context, in Input) ([]core.Message, error)

// Definition is a finalized memory provider. It is immutable.
type Definition struct {
	name         string
	description  string
	label        string
	dependencies []string
	output       OutputFunc
	options      Options
}

// FeatureName implements feature.Named.
func (d *Definition) FeatureName() string { return d.name }

// Name returns the provider name.
func (d *Definition) Name() string { return d.name }

// Description returns the provider description.
func (d *Definition) Description() string { return d.description }

// Label returns a human-readable label, defaulting to the name.
func (d *Definition) Label() string {
	if d.label == "" {
		return d.name
	}
	return d.label
}

// Dependencies returns the declared dependency names.
func (d *Definition) Dependencies() []string { return slices.Clone(d.dependencies) }

// Options returns the provider options.
func (d *Definition) Options() Options { return d.options }

// Builder assembles a Definition. Every method returns a new Builder; each
// aspect may be set once.
type Builder struct {
	def     Definition
	aspects feature.Aspects
}

// New starts a builder for the named provider.
func New(name string) Builder {
	return Builder{def: Definition{name: name, options: DefaultOptions()}}
}

func (b Builder) with(aspect string, fn func(d *Definition)) Builder {
	next := Builder{def: b.def, aspects: b.aspects.Mark(aspect)}
	next.def.dependencies = slices.Clone(b.def.dependencies)
	fn(&next.def)
	return next
}

// Dependencies declares the features the provider may access.
func (b Builder) Dependencies(names ...string) Builder {
	return b.with(feature.AspectDependencies, func(d *Definition) { d.dependencies = slices.Clone(names) })
}

// Description sets the description.
func (b Builder) Description(s string) Builder {
	return b.with(feature.AspectDescription, func(d *Definition) { d.description = s })
}

// Label sets a human-readable label.
func (b Builder) Label(s string) Builder {
	return b.with(feature.AspectLabel, func(d *Definition) { d.label = s })
}

// Output sets the function computing the provider's messages.
func (b Builder) Output(fn OutputFunc) Builder {
	return b.with(feature.AspectOutput, func(d *Definition) { d.output = fn })
}

// Messages makes the provider return a fixed message list. It sets the same
// aspect as Output.
func (b Builder) Messages(msgs ...core.Message) Builder {
	static := slices.Clone(msgs)
	return b.Output(func(context.Context, Input) ([]core.Message, error) {
		return slices.Clone(static), nil
	})
}

// Options adjusts the provider options, starting from DefaultOptions.
func (b Builder) Options(optFns ...func(o *Options)) Builder {
	return b.with(feature.AspectOptions, func(d *Definition) {
		opts := DefaultOptions()
		for _, fn := range optFns {
			fn(&opts)
		}
		d.options = opts
	})
}

// Build finalizes the definition.
func (b Builder) Build() (*Definition, error) {
	if err := b.aspects.Err("memory", b.def.name); err != nil {
		return nil, err
	}
	if b.def.name == "" {
		return nil, core.NewError(core.KindValidation, "memory.build", "name must not be empty")
	}

	o := b.def.options
	if o.Behavior != Blocking && o.Behavior != NonBlocking {
		return nil, core.NewError(core.KindValidation, "memory.build", "memory %q: unknown behavior %q", b.def.name, o.Behavior)
	}
	if (o.Position.Section != Top && o.Position.Section != Bottom) || (o.Position.Align != Start && o.Position.Align != End) {
		return nil, core.NewError(core.KindValidation, "memory.build", "memory %q: invalid position %v", b.def.name, o.Position)
	}

	def := b.def
	def.dependencies = slices.Clone(b.def.dependencies)
	if def.output == nil {
		def.output = func(context.Context, Input) ([]core.Message, error) { return []core.Message{}, nil }
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
