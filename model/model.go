package model

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/lifemesh/core"
)

// Tool choice values for Request.ToolChoice. Any other non-empty value names
// the single function the model must call.
const (
	ToolChoiceAuto     = ""
	ToolChoiceNone     = "none"
	ToolChoiceRequired = "required"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function exposed to the model.
// Parameters is a JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// NewTool builds a function ToolDefinition.
func NewTool(name, description string, parameters map[string]any) ToolDefinition {
	return ToolDefinition{Type: "function", Function: FunctionDefinition{Name: name, Description: description, Parameters: parameters}}
}

// Request captures the normalized model input.
type Request struct {
	Instructions string           `json:"instructions"`
	Messages     []core.Message   `json:"messages"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	ToolChoice   string           `json:"tool_choice,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Message      core.Message `json:"message"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required to drive generation. Both
// channels are closed when generation ends; at most one error is sent.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Complete drains a generation and returns the final message. Partial
// responses are skipped.
func Complete(ctx context.Context, m Model, req Request) (core.Message, error) {
	respCh, errCh := m.Generate(ctx, req)

	var (
		final core.Message
		got   bool
	)
	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return core.Message{}, ctx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if !r.Partial {
				final, got = r.Message, true
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return core.Message{}, err
			}
		}
	}

	if !got {
		return core.Message{}, fmt.Errorf("model %s returned no final response", m.Info().Name)
	}
	if final.ID == "" {
		final.ID = core.NewID()
	}
	if final.Role == "" {
		final.Role = core.RoleAssistant
	}
	return final, nil
}

// ToolResultText renders a function response as the JSON text sent back to
// providers.
func ToolResultText(fr *core.FunctionResponse) string {
	if fr == nil {
		return "{}"
	}
	payload := map[string]any{}
	if fr.Response != nil {
		payload["output"] = fr.Response
	}
	if fr.Error != "" {
		payload["error"] = fr.Error
	}
	if fr.Hint != "" {
		payload["hint"] = fr.Hint
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%v", fr.Response)
	}
	return string(b)
}
