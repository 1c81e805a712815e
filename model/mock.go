package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/lifemesh/core"
)

// Step produces one scripted reply.
type Step func(req Request) (core.Message, error)

// MockModel is a lightweight in-memory Model useful for tests and examples.
// Queued steps are consumed in order; once exhausted it answers canned
// responses keyed by the last user text, or echoes it.
type MockModel struct {
	info Info

	mu        sync.Mutex
	responses map[string]string
	steps     []Step
	requests  []Request
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock", SupportsTools: true},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Enqueue appends scripted steps.
func (m *MockModel) Enqueue(steps ...Step) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, steps...)
	return m
}

// EnqueueText appends a step replying with text.
func (m *MockModel) EnqueueText(text string) *MockModel {
	return m.Enqueue(func(Request) (core.Message, error) { return core.AssistantMessage(text), nil })
}

// EnqueueCalls appends a step requesting the given function calls.
func (m *MockModel) EnqueueCalls(calls ...core.FunctionCall) *MockModel {
	return m.Enqueue(func(Request) (core.Message, error) {
		msg := core.AssistantMessage("")
		msg.Calls = make([]core.FunctionCall, len(calls))
		for i, c := range calls {
			if c.ID == "" {
				c.ID = core.NewID()
			}
			msg.Calls[i] = c
		}
		return msg, nil
	})
}

// EnqueueError appends a step failing with err.
func (m *MockModel) EnqueueError(err error) *MockModel {
	return m.Enqueue(func(Request) (core.Message, error) { return core.Message{}, err })
}

// Requests returns the requests received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

func (m *MockModel) next(req Request) (core.Message, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	var step Step
	if len(m.steps) > 0 {
		step = m.steps[0]
		m.steps = m.steps[1:]
	}
	input := core.LastUserText(req.Messages)
	canned := m.responses[input]
	m.mu.Unlock()

	if step != nil {
		return step(req)
	}
	if canned == "" {
		canned = fmt.Sprintf("Mock response to: %s", input)
	}
	return core.AssistantMessage(canned), nil
}

// Generate implements Model; emits optional per-rune chunks then the final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		msg, err := m.next(req)
		if err != nil {
			errCh <- err
			return
		}

		if req.Stream {
			for _, r := range msg.Text {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Message: core.Message{Role: core.RoleAssistant, Text: string(r)}}:
				}
			}
		}

		finish := "stop"
		if msg.HasCalls() {
			finish = "tool_calls"
		}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{ID: msg.ID, Message: msg, FinishReason: finish}:
		}
	}()
	return respCh, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
