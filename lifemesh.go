// Package lifemesh provides a high-level façade over the engine, enabling
// rapid construction of agent processes. Most applications interact with
// this package by:
//  1. Creating a Mesh via New() (optionally overriding the in-memory session store)
//  2. Registering one or more agent definitions
//  3. Starting the mesh and sending percepts by agent name
//
// The façade delegates orchestration to engine.Engine while keeping setup
// concise. Processes that also need HTTP ingress and graceful shutdown use
// the runner package.
package lifemesh

import (
	"context"

	"github.com/hupe1980/lifemesh/agent"
	"github.com/hupe1980/lifemesh/config"
	"github.com/hupe1980/lifemesh/core"
	"github.com/hupe1980/lifemesh/engine"
	"github.com/hupe1980/lifemesh/logging"
	"github.com/hupe1980/lifemesh/session"
)

// Options configures the Mesh instance.
type Options struct {
	// Project is the prepared project configuration. Agents read their
	// global configuration from its agents section.
	Project *config.Prepared

	// SessionStore defaults to an in-memory implementation.
	SessionStore core.SessionStore

	// MaxParallel bounds parallel action batches.
	MaxParallel int

	// Callbacks receives turn lifecycle hooks of every agent.
	Callbacks *agent.CallbackManager

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Mesh is the high-level façade aggregating the engine and its services.
type Mesh struct {
	opts   Options
	engine *engine.Engine
}

// New creates a Mesh with optional overrides.
func New(optFns ...func(o *Options)) *Mesh {
	opts := Options{
		SessionStore: session.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var project map[string]any
	if opts.Project != nil {
		project = opts.Project.Server
	}

	e := engine.New(func(o *engine.Options) {
		o.Project = project
		o.Sessions = opts.SessionStore
		o.MaxParallel = opts.MaxParallel
		o.Callbacks = opts.Callbacks
		o.Logger = opts.Logger
	})
	return &Mesh{opts: opts, engine: e}
}

// Engine exposes the underlying engine.
func (m *Mesh) Engine() *engine.Engine { return m.engine }

// Register adds agent definitions. It stops at the first failure.
func (m *Mesh) Register(defs ...*agent.Definition) error {
	for _, def := range defs {
		if err := m.engine.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// Start runs every registered agent until Stop is called or ctx is done.
func (m *Mesh) Start(ctx context.Context) error { return m.engine.Start(ctx) }

// Send delivers a message percept; it passes the agent's decision gate.
func (m *Mesh) Send(agentName, text string) error {
	return m.engine.Push(agentName, core.MessagePercept(text))
}

// Interrupt delivers a priority percept that bypasses the decision gate.
func (m *Mesh) Interrupt(agentName, text string) error {
	return m.engine.PushFirst(agentName, core.InterruptPercept(text))
}

// Transcript returns the persisted transcript of an agent.
func (m *Mesh) Transcript(agentName string) ([]core.Message, error) {
	return m.engine.Transcript(agentName)
}

// Stop drains every agent and waits for them to finish.
func (m *Mesh) Stop(ctx context.Context) error { return m.engine.Stop(ctx) }
