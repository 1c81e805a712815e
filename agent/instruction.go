package agent

import (
	"github.com/hupe1980/lifemesh/core"
	"github.com/hupe1980/lifemesh/internal/util"
)

// Provider supplies dynamic instruction text at runtime.
type Provider interface {
	Instruction(turn *core.Turn) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(turn *core.Turn) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(turn *core.Turn) (string, error) { return f(turn) }

// Instruction is either a text/template rendered against the agent's
// configuration or a dynamic provider.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a template string.
// The template sees the keys "agent" and "config".
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(turn *core.Turn) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a template string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text, invoking the provider or rendering
// the template with vars.
func (i Instruction) Resolve(turn *core.Turn, vars map[string]any) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(turn)
	}
	if i.text == "" {
		return "", nil
	}
	return util.RenderTemplate(i.text, vars)
}
