package core

import "time"

// PerceptKind classifies inbound events.
type PerceptKind string

const (
	// PerceptMessage carries a conversational utterance (e.g. a transcribed
	// user turn) that goes through the decision gate.
	PerceptMessage PerceptKind = "message"
	// PerceptInterrupt is a priority event. It is pushed at the head of the
	// queue and bypasses the decision gate.
	PerceptInterrupt PerceptKind = "interrupt"
	// PerceptEffect notifies the loop about an effect lifecycle transition.
	PerceptEffect PerceptKind = "effect"
)

// Percept is the unit of input consumed by an agent loop. After creation it
// should be treated as immutable.
type Percept struct {
	ID        string         `json:"id"`
	Kind      PerceptKind    `json:"kind"`
	Role      string         `json:"role,omitempty"`
	Text      string         `json:"text,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// NewPercept creates a percept of the given kind.
func NewPercept(kind PerceptKind, text string) Percept {
	return Percept{ID: NewID(), Kind: kind, Role: RoleUser, Text: text, CreatedAt: time.Now().UTC()}
}

// MessagePercept is shorthand for a user message percept.
func MessagePercept(text string) Percept { return NewPercept(PerceptMessage, text) }

// InterruptPercept is shorthand for an interrupt percept.
func InterruptPercept(text string) Percept { return NewPercept(PerceptInterrupt, text) }

// EffectPercept builds a percept describing an effect lifecycle event.
func EffectPercept(effect, event string, data map[string]any) Percept {
	p := NewPercept(PerceptEffect, "")
	p.Role = RoleSystem
	p.Data = map[string]any{"effect": effect, "event": event}
	for k, v := range data {
		p.Data[k] = v
	}
	return p
}

// Message converts a conversational percept to a transcript message.
func (p Percept) Message() Message {
	role := p.Role
	if role == "" {
		role = RoleUser
	}
	return Message{ID: p.ID, Role: role, Text: p.Text, CreatedAt: p.CreatedAt}
}
