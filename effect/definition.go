package effect

import (
	"context"
	"slices"
	"time"

	"github.com/hupe1980/lifemesh/core"
	"github.com/hupe1980/lifemesh/feature"
	"github.com/hupe1980/lifemesh/logging"
)

const (
	aspectMount   = "mount"
	aspectUnmount = "unmount"
)

// Options controls an effect.
type Options struct {
	Disabled bool
	// Timeout bounds a single mount or unmount. Zero means no limit.
	Timeout time.Duration
}

// Input is handed to mount and unmount functions.
type Input struct {
	Deps   core.Dependencies
	Logger logging.Logger
}

// LifecycleFunc mounts or unmounts an effect.
type LifecycleFunc func(ctx context.Context, in Input) error

// Definition is a finalized effect. It is immutable.
type Definition struct {
	name         string
	description  string
	label        string
	dependencies []string
	mount        LifecycleFunc
	unmount      LifecycleFunc
	options      Options
}

// FeatureName implements feature.Named.
func (d *Definition) FeatureName() string { return d.name }

// Name returns the effect name.
func (d *Definition) Name() string { return d.name }

// Description returns the effect description.
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

// Options returns the effect options.
func (d *Definition) Options() Options { return d.options }

// Builder assembles a Definition. Every method returns a new Builder; each
// aspect may be set once.
type Builder struct {
	def     Definition
	aspects feature.Aspects
}

// New starts a builder for the named effect.
func New(name string) Builder {
	return Builder{def: Definition{name: name}}
}

func (b Builder) with(aspect string, fn func(d *Definition)) Builder {
	next := Builder{def: b.def, aspects: b.aspects.Mark(aspect)}
	next.def.dependencies = slices.Clone(b.def.dependencies)
	fn(&next.def)
	return next
}

// Dependencies declares the features the effect may access.
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

// Mount sets the function run when the effect is mounted.
func (b Builder) Mount(fn LifecycleFunc) Builder {
	return b.with(aspectMount, func(d *Definition) { d.mount = fn })
}

// Unmount sets the function run when the effect is unmounted.
func (b Builder) Unmount(fn LifecycleFunc) Builder {
	return b.with(aspectUnmount, func(d *Definition) { d.unmount = fn })
}

// Options adjusts the effect options.
func (b Builder) Options(optFns ...func(o *Options)) Builder {
	return b.with(feature.AspectOptions, func(d *Definition) {
		var opts Options
		for _, fn := range optFns {
			fn(&opts)
		}
		d.options = opts
	})
}

// Build finalizes the definition. Missing lifecycle functions do nothing.
func (b Builder) Build() (*Definition, error) {
	if err := b.aspects.Err("effect", b.def.name); err != nil {
		return nil, err
	}
	if b.def.name == "" {
		return nil, core.NewError(core.KindValidation, "effect.build", "name must not be empty")
	}
	if b.def.options.Timeout < 0 {
		return nil, core.NewError(core.KindValidation, "effect.build", "effect %q: timeout must not be negative", b.def.name)
	}

	def := b.def
	def.dependencies = slices.Clone(b.def.dependencies)
	noop := func(context.Context, Input) error { return nil }
	if def.mount == nil {
		def.mount = noop
	}
	if def.unmount == nil {
		def.unmount = noop
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
