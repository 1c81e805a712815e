package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/lifemesh/core"
	"github.com/hupe1980/lifemesh/logging"
)

type mockProvider struct {
	text string
	err  error
}

func (m mockProvider) Instruction(*core.Turn) (string, error) { return m.text, m.err }

func newTestTurn() *core.Turn {
	return core.NewTurn(context.Background(), "TestAgent", core.MessagePercept("hello"), 4, logging.NoOpLogger{})
}

func TestInstruction_Static(t *testing.T) {
	inst := NewInstructionFromText("You are {{.agent}}. Speak {{.config.language}}.")
	if !inst.IsStatic() {
		t.Fatalf("expected static instruction")
	}
	got, err := inst.Resolve(newTestTurn(), map[string]any{
		"agent":  "ada",
		"config": map[string]any{"language": "French"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "You are ada. Speak French." {
		t.Fatalf("unexpected instruction %q", got)
	}
}

func TestInstruction_Empty(t *testing.T) {
	got, err := Instruction{}.Resolve(newTestTurn(), nil)
	if err != nil || got != "" {
		t.Fatalf("expected empty instruction, got %q, %v", got, err)
	}
}

func TestInstruction_NewInstructionFromFunc(t *testing.T) {
	inst := NewInstructionFromFunc(func(turn *core.Turn) (string, error) { return "dynamic for " + turn.Agent, nil })
	if inst.IsStatic() {
		t.Fatalf("expected dynamic instruction")
	}
	got, err := inst.Resolve(newTestTurn(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "dynamic for TestAgent" {
		t.Fatalf("expected 'dynamic for TestAgent', got %q", got)
	}
}

func TestInstruction_NewInstructionFromProvider(t *testing.T) {
	inst := NewInstructionFromProvider(mockProvider{text: "provider text"})
	if inst.IsStatic() {
		t.Fatalf("expected dynamic instruction")
	}
	got, err := inst.Resolve(newTestTurn(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "provider text" {
		t.Fatalf("expected 'provider text', got %q", got)
	}
}

func TestInstruction_ErrorPropagation(t *testing.T) {
	expectedErr := errors.New("boom")
	inst := NewInstructionFromProvider(mockProvider{err: expectedErr})
	_, err := inst.Resolve(newTestTurn(), nil)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !errors.Is(err, expectedErr) {
		t.Fatalf("expected error %v, got %v", expectedErr, err)
	}
}
