package action

import (
	"context"
	"time"

	"github.com/hupe1980/lifemesh/core"
	"github.com/hupe1980/lifemesh/internal/schema"
	"github.com/hupe1980/lifemesh/logging"
)

// Mode selects how the caller wants an action to run.
type Mode string

const (
	// ModeInline blocks the calling turn; the result feeds the response.
	ModeInline Mode = "inline"
	// ModeBackground runs without the turn awaiting completion.
	ModeBackground Mode = "background"
	// ModeParallel may run concurrently with other actions of the same turn.
	ModeParallel Mode = "parallel"
)

// CanRun lists the modes an action permits.
type CanRun struct {
	Inline     bool
	Background bool
	Parallel   bool
}

// Allows reports whether m is permitted.
func (c CanRun) Allows(m Mode) bool {
	switch m {
	case ModeInline:
		return c.Inline
	case ModeBackground:
		return c.Background
	case ModeParallel:
		return c.Parallel
	default:
		return false
	}
}

// Any reports whether at least one mode is permitted.
func (c CanRun) Any() bool { return c.Inline || c.Background || c.Parallel }

// Options controls dispatch policy.
type Options struct {
	Disabled bool
	// Timeout bounds each attempt. Zero disables the timer.
	Timeout time.Duration
	// Retries is the number of additional attempts after an unexpected failure.
	Retries int
	CanRun  CanRun
}

// DefaultOptions returns the options used when none are set.
func DefaultOptions() Options {
	return Options{
		Timeout: 30 * time.Second,
		CanRun:  CanRun{Inline: true, Background: true, Parallel: true},
	}
}

// Input is handed to an action's execute function.
type Input struct {
	// Args are the arguments after parsing against the input schema.
	Args   map[string]any
	Deps   core.Dependencies
	Logger logging.Logger
	// CallID correlates the execution with the originating function call.
	CallID string
	// Attempt is 1 for the first attempt.
	Attempt int
}

// ExecuteFunc implements an action.
type ExecuteFunc func(ctx context.Context, in Input) (core.ActionResult, error)

// Definition is a finalized action. It is immutable.
type Definition struct {
	name         string
	description  string
	label        string
	dependencies []string
	input        *schema.Schema
	output       *schema.Schema
	execute      ExecuteFunc
	options      Options
}

// FeatureName implements feature.Named.
func (d *Definition) FeatureName() string { return d.name }

// Name returns the action name.
func (d *Definition) Name() string { return d.name }

// Description returns the description shown to the generation provider.
func (d *Definition) Description() string { return d.description }

// Label returns a human-readable label, defaulting to the name.
func (d *Definition) Label() string {
	if d.label == "" {
		return d.name
	}
	return d.label
}

// Dependencies returns the declared dependency names.
func (d *Definition) Dependencies() []string { return append([]string(nil), d.dependencies...) }

// InputSchema returns the input schema (may be nil).
func (d *Definition) InputSchema() *schema.Schema { return d.input }

// OutputSchema returns the output schema (may be nil).
func (d *Definition) OutputSchema() *schema.Schema { return d.output }

// Options returns the dispatch options.
func (d *Definition) Options() Options { return d.options }

// Parameters returns the input schema rendered as a JSON-Schema map.
func (d *Definition) Parameters() map[string]any { return d.input.JSON() }

func emptyResult(context.Context, Input) (core.ActionResult, error) {
	return core.ActionResult{}, nil
}
