package core

import (
	"time"

	"github.com/google/uuid"
)

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// FunctionCall describes an action invocation requested by the generation provider.
type FunctionCall struct {
	ID        string `json:"id,omitempty"`        // Correlates the call with its response
	Name      string `json:"name"`                // Action name
	Arguments string `json:"arguments,omitempty"` // Serialized JSON argument object
}

// FunctionResponse describes the outcome of a function call.
type FunctionResponse struct {
	ID       string `json:"id,omitempty"`       // Matches originating FunctionCall ID
	Name     string `json:"name"`               // Action name
	Response any    `json:"response,omitempty"` // Successful output (any JSON shape)
	Error    string `json:"error,omitempty"`    // Populated on failure
	Hint     string `json:"hint,omitempty"`     // Optional guidance narrated to the user
}

// Message is one entry of conversation context. Assistant messages may carry
// function calls; tool messages carry exactly one function response.
type Message struct {
	ID        string            `json:"id"`
	Role      string            `json:"role"`
	Text      string            `json:"text,omitempty"`
	Calls     []FunctionCall    `json:"calls,omitempty"`
	Response  *FunctionResponse `json:"response,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// NewID generates a new unique identifier for percepts, messages and calls.
func NewID() string { return uuid.NewString() }

// NewMessage creates a text message for the given role.
func NewMessage(role, text string) Message {
	return Message{ID: NewID(), Role: role, Text: text, CreatedAt: time.Now().UTC()}
}

// UserMessage is shorthand for NewMessage(RoleUser, text).
func UserMessage(text string) Message { return NewMessage(RoleUser, text) }

// AssistantMessage is shorthand for NewMessage(RoleAssistant, text).
func AssistantMessage(text string) Message { return NewMessage(RoleAssistant, text) }

// SystemMessage is shorthand for NewMessage(RoleSystem, text).
func SystemMessage(text string) Message { return NewMessage(RoleSystem, text) }

// ToolMessage wraps a function response in a tool-role message.
func ToolMessage(resp FunctionResponse) Message {
	m := NewMessage(RoleTool, "")
	m.Response = &resp
	return m
}

// HasCalls reports whether the message requests any function calls.
func (m Message) HasCalls() bool { return len(m.Calls) > 0 }

// LastUserText returns the text of the most recent user message, or "".
func LastUserText(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return msgs[i].Text
		}
	}
	return ""
}

// Window returns at most the last n messages. n <= 0 returns all messages.
func Window(msgs []Message, n int) []Message {
	if n <= 0 || len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
