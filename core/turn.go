package core

import (
	"context"

	"github.com/hupe1980/lifemesh/logging"
)

// Turn carries the execution scope of one percept being handled by an agent
// loop. It aggregates:
//   - The ambient cancellation Context
//   - Identifiers (turn ID, agent name)
//   - The triggering Percept
//   - A GenerationLimiter bounding generate/act rounds
//
// A Turn is owned by the loop goroutine. Background work spawned from a turn
// must not retain it beyond the turn's lifetime except for logging. Log
// records written through the Turn carry its ID and agent name.
type Turn struct {
	Context context.Context
	ID      string
	Agent   string
	Percept Percept
	Limiter *GenerationLimiter

	*turnLogger
}

// NewTurn constructs a Turn with a fresh generation limiter.
func NewTurn(ctx context.Context, agent string, p Percept, maxRounds int, logger logging.Logger) *Turn {
	id := NewID()
	return &Turn{
		Context:    ctx,
		ID:         id,
		Agent:      agent,
		Percept:    p,
		Limiter:    NewGenerationLimiter(maxRounds),
		turnLogger: newTurnLogger(logger, id, agent),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (t *Turn) Done() <-chan struct{} { return t.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (t *Turn) Err() error { return t.Context.Err() }
