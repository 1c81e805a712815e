package testutil

import (
	"github.com/hupe1980/lifemesh/core"
)

// TranscriptBuilder provides a fluent helper for constructing transcripts in tests.
// Example:
//
//	msgs := NewTranscriptBuilder().User("hi").Assistant("hello").Build()
//
// Chain only the parts you need; IDs and timestamps are generated.
type TranscriptBuilder struct {
	msgs []core.Message
}

// NewTranscriptBuilder creates an empty builder.
func NewTranscriptBuilder() *TranscriptBuilder { return &TranscriptBuilder{} }

// User appends a user message (chainable).
func (b *TranscriptBuilder) User(text string) *TranscriptBuilder {
	b.msgs = append(b.msgs, core.UserMessage(text))
	return b
}

// Assistant appends an assistant message (chainable).
func (b *TranscriptBuilder) Assistant(text string) *TranscriptBuilder {
	b.msgs = append(b.msgs, core.AssistantMessage(text))
	return b
}

// System appends a system message (chainable).
func (b *TranscriptBuilder) System(text string) *TranscriptBuilder {
	b.msgs = append(b.msgs, core.SystemMessage(text))
	return b
}

// Call appends an assistant message requesting a single function call (chainable).
func (b *TranscriptBuilder) Call(id, name, args string) *TranscriptBuilder {
	m := core.AssistantMessage("")
	m.Calls = []core.FunctionCall{{ID: id, Name: name, Arguments: args}}
	b.msgs = append(b.msgs, m)
	return b
}

// Response appends a tool message with the outcome of a function call (chainable).
func (b *TranscriptBuilder) Response(id, name string, result any, err error) *TranscriptBuilder {
	fr := core.FunctionResponse{ID: id, Name: name, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}
	b.msgs = append(b.msgs, core.ToolMessage(fr))
	return b
}

// Build returns a copy of the accumulated messages.
func (b *TranscriptBuilder) Build() []core.Message {
	return append([]core.Message(nil), b.msgs...)
}

// Texts extracts the text of each message, useful for order assertions.
func Texts(msgs []core.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text
	}
	return out
}
