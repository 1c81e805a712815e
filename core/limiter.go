package core

import (
	"errors"
	"fmt"
	"sync"
)

// ErrRoundLimit matches every RoundLimitError.
var ErrRoundLimit = errors.New("generation round limit reached")

// RoundLimitError reports the generate/act round a turn was refused.
type RoundLimitError struct {
	Round int
	Max   int
}

func (e *RoundLimitError) Error() string {
	return fmt.Sprintf("round %d refused: a turn allows %d generation rounds", e.Round, e.Max)
}

// Is makes errors.Is(err, ErrRoundLimit) true.
func (e *RoundLimitError) Is(target error) bool { return target == ErrRoundLimit }

// GenerationLimiter bounds the generate/act rounds of one turn. Refused
// rounds are not counted.
type GenerationLimiter struct {
	mu    sync.Mutex
	max   int
	count int
}

// NewGenerationLimiter returns a limiter allowing max rounds; 0 is unlimited.
func NewGenerationLimiter(max int) *GenerationLimiter {
	return &GenerationLimiter{max: max}
}

// Increment claims the next round or returns a *RoundLimitError.
func (gl *GenerationLimiter) Increment() error {
	gl.mu.Lock()
	defer gl.mu.Unlock()

	if gl.max > 0 && gl.count >= gl.max {
		return &RoundLimitError{Round: gl.count + 1, Max: gl.max}
	}
	gl.count++
	return nil
}

// Count returns the number of rounds claimed.
func (gl *GenerationLimiter) Count() int {
	gl.mu.Lock()
	defer gl.mu.Unlock()
	return gl.count
}

// Remaining returns the rounds left, or -1 when unlimited.
func (gl *GenerationLimiter) Remaining() int {
	gl.mu.Lock()
	defer gl.mu.Unlock()
	if gl.max == 0 {
		return -1
	}
	return gl.max - gl.count
}
