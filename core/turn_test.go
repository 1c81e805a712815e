package core

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lifemesh/logging"
)

func TestTurn_LogsCarryTurnFields(t *testing.T) {
	var buf bytes.Buffer
	turn := NewTurn(context.Background(), "ada", MessagePercept("hi"), 3, logging.New("debug", "json", &buf))

	turn.LogInfo("agent.effect", "effect", "camera")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "agent.effect", rec["msg"])
	assert.Equal(t, turn.ID, rec["turn"])
	assert.Equal(t, "ada", rec["agent"])
	assert.Equal(t, "camera", rec["effect"])
}

func TestTurn_NilLogger(t *testing.T) {
	turn := NewTurn(context.Background(), "ada", InterruptPercept("hi"), 1, nil)
	assert.NotPanics(t, func() { turn.LogError("agent.turn_failed") })
	assert.Equal(t, logging.NoOpLogger{}, turn.Logger())
	assert.NoError(t, turn.Err())
}
