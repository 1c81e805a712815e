package action

import (
	"slices"

	"github.com/hupe1980/lifemesh/core"
	"github.com/hupe1980/lifemesh/feature"
	"github.com/hupe1980/lifemesh/internal/schema"
)

// Builder assembles a Definition. Every method returns a new Builder; the
// receiver is never modified. Each aspect may be set once.
type Builder struct {
	def     Definition
	aspects feature.Aspects
}

// New starts a builder for the named action.
func New(name string) Builder {
	return Builder{def: Definition{name: name, options: DefaultOptions()}}
}

func (b Builder) with(aspect string, fn func(d *Definition)) Builder {
	next := Builder{def: b.def, aspects: b.aspects.Mark(aspect)}
	next.def.dependencies = slices.Clone(b.def.dependencies)
	fn(&next.def)
	return next
}

// Dependencies declares the features the action may access through its Deps.
func (b Builder) Dependencies(names ...string) Builder {
	return b.with(feature.AspectDependencies, func(d *Definition) { d.dependencies = slices.Clone(names) })
}

// Description sets the description shown to the generation provider.
func (b Builder) Description(s string) Builder {
	return b.with(feature.AspectDescription, func(d *Definition) { d.description = s })
}

// Label sets a human-readable label.
func (b Builder) Label(s string) Builder {
	return b.with(feature.AspectLabel, func(d *Definition) { d.label = s })
}

// Input sets the schema arguments are parsed against.
func (b Builder) Input(s *schema.Schema) Builder {
	return b.with(feature.AspectInput, func(d *Definition) { d.input = s })
}

// InputFromStruct derives the input schema from a struct.
func (b Builder) InputFromStruct(v any) Builder {
	return b.Input(schema.FromStruct(v))
}

// Output sets the schema successful outputs are parsed against.
func (b Builder) Output(s *schema.Schema) Builder {
	return b.with(feature.AspectOutput, func(d *Definition) { d.output = s })
}

// Execute sets the action behavior.
func (b Builder) Execute(fn ExecuteFunc) Builder {
	return b.with(feature.AspectExecute, func(d *Definition) { d.execute = fn })
}

// Options adjusts the dispatch options, starting from DefaultOptions.
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
	if err := b.aspects.Err("action", b.def.name); err != nil {
		return nil, err
	}
	if b.def.name == "" {
		return nil, core.NewError(core.KindValidation, "action.build", "name must not be empty")
	}

	o := b.def.options
	if !o.CanRun.Any() {
		return nil, core.NewError(core.KindValidation, "action.build", "action %q permits no execution mode", b.def.name)
	}
	if o.Retries < 0 || o.Timeout < 0 {
		return nil, core.NewError(core.KindValidation, "action.build", "action %q: retries and timeout must not be negative", b.def.name)
	}

	def := b.def
	def.dependencies = slices.Clone(b.def.dependencies)
	if def.execute == nil {
		def.execute = emptyResult
	}
	return &def, nil
}

// MustBuild is like Build but panics on error. Intended for package-level definitions.
func (b Builder) MustBuild() *Definition {
	d, err := b.Build()
	if err != nil {
		panic(err)
	}
	return d
}
