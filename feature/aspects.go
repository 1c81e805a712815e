package feature

import (
	"errors"
	"fmt"
	"slices"

	"github.com/hupe1980/lifemesh/core"
)

// Builder aspect names.
const (
	AspectDependencies = "dependencies"
	AspectDescription  = "description"
	AspectInput        = "input"
	AspectOutput       = "output"
	AspectLabel        = "label"
	AspectExecute      = "execute"
	AspectOptions      = "options"
)

// ErrAspectAlreadySet is reported by Build when a builder aspect was set more than once.
var ErrAspectAlreadySet = errors.New("aspect already set")

// Aspects records which builder aspects have been set. The zero value is
// ready to use; Mark never mutates its receiver.
type Aspects struct {
	set      []string
	repeated []string
}

// Mark returns a copy of a with aspect recorded. Marking an aspect a second
// time records a violation instead.
func (a Aspects) Mark(aspect string) Aspects {
	next := Aspects{
		set:      slices.Clone(a.set),
		repeated: slices.Clone(a.repeated),
	}
	if slices.Contains(a.set, aspect) {
		next.repeated = append(next.repeated, aspect)
		return next
	}
	next.set = append(next.set, aspect)
	return next
}

// Has reports whether aspect has been set.
func (a Aspects) Has(aspect string) bool {
	return slices.Contains(a.set, aspect)
}

// Err returns a Validation error if any aspect was set twice.
func (a Aspects) Err(kind, name string) error {
	if len(a.repeated) == 0 {
		return nil
	}
	return core.WrapError(core.KindValidation, kind+".build",
		fmt.Errorf("%s %q: %w: %v", kind, name, ErrAspectAlreadySet, a.repeated))
}
