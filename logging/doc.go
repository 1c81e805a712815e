// Package logging provides a minimal logging interface and adapters for lifemesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the agent loop, dispatcher and shutdown orchestrator use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - StructuredLogger with agent/component scoping and domain helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.New("info", "json", os.Stderr)
//	loop, err := agent.NewLoop(def, func(o *agent.Options) { o.Logger = logger.WithAgent(def.Name) })
//
// The interface is deliberately minimal so callers can plug any structured logger.
package logging
