package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/lifemesh/action"
	"github.com/hupe1980/lifemesh/core"
)

// CallbackType names a point in the turn lifecycle where callbacks run.
//
// Available callback types:
//   - BeforeTurn/AfterTurn: around the handling of one percept
//   - AfterDecision: once the decision gate answered
//   - BeforeAction/AfterAction: around each requested action
//   - OnEffect: for effect lifecycle percepts
//   - OnError: when a turn fails
type CallbackType string

const (
	// CallbackBeforeTurn runs before a percept is handled. An error skips
	// the turn.
	CallbackBeforeTurn CallbackType = "before_turn"

	// CallbackAfterTurn runs after a percept was handled, failed turns
	// included.
	CallbackAfterTurn CallbackType = "after_turn"

	// CallbackAfterDecision runs after the decision gate answered, or after
	// the gate was bypassed.
	CallbackAfterDecision CallbackType = "after_decision"

	// CallbackBeforeAction runs before an action is dispatched. An error
	// blocks the call; the error is narrated to the model as the call's
	// failure.
	CallbackBeforeAction CallbackType = "before_action"

	// CallbackAfterAction runs when an action outcome is available. For
	// background actions this happens after the turn ended.
	CallbackAfterAction CallbackType = "after_action"

	// CallbackOnEffect runs for effect lifecycle percepts.
	CallbackOnEffect CallbackType = "on_effect"

	// CallbackOnError runs when a turn fails.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext carries what a callback may inspect. Fields not relevant
// to the callback type are zero.
type CallbackContext struct {
	// Turn is the turn being handled.
	Turn *core.Turn

	// Agent names the agent running the turn.
	Agent string

	// CallbackType indicates which callback type triggered this execution.
	CallbackType CallbackType

	// Percept is the percept being handled.
	Percept core.Percept

	// React is the decision gate verdict (AfterDecision).
	React bool

	// Call is the requested action (BeforeAction, AfterAction).
	Call *action.Call

	// Outcome is the settled action outcome (AfterAction).
	Outcome *action.Outcome

	// Err is the turn failure (OnError).
	Err error

	// Metadata provides extensible storage for custom callback data.
	Metadata map[string]any
}

// Callback is a turn lifecycle hook. Callbacks run synchronously on the loop
// goroutine, except AfterAction for background actions.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	cb := NewFunctionCallback(
//	    CallbackAfterDecision,
//	    func(ctx context.Context, cc *CallbackContext) error {
//	        log.Printf("%s reacts: %v", cc.Agent, cc.React)
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager holds callbacks by type and runs them in registration
// order. It is safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks runs the callbacks registered for callbackType. The first
// error stops execution and is returned; a panicking callback is reported as
// an error.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) (err error) {
	cm.mu.RLock()
	callbacks := append([]Callback(nil), cm.callbacks[callbackType]...)
	cm.mu.RUnlock()

	if len(callbacks) == 0 {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = core.PanicError("callback."+string(callbackType), r)
		}
	}()

	callbackCtx.CallbackType = callbackType
	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}

	return nil
}

// LoggingCallback forwards lifecycle points to a logging function.
type LoggingCallback struct {
	callbackType CallbackType
	logger       func(message string)
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(callbackType CallbackType, logger func(message string)) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the lifecycle point with the agent and percept involved.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.logger == nil {
		return nil
	}
	message := fmt.Sprintf("[%s] Agent: %s, Percept: %s", c.callbackType, callbackCtx.Agent, callbackCtx.Percept.Kind)
	if callbackCtx.Call != nil {
		message += ", Action: " + callbackCtx.Call.Name
	}
	c.logger(message)
	return nil
}
