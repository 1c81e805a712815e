package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lifemesh/core"
	"github.com/hupe1980/lifemesh/model"
)

func TestBuildMessages(t *testing.T) {
	call := core.AssistantMessage("checking")
	call.Calls = []core.FunctionCall{{ID: "c1", Name: "lookup", Arguments: `{"q":"x"}`}}

	msgs := buildMessages([]core.Message{
		core.SystemMessage("sys"),
		core.UserMessage("hi"),
		call,
		core.ToolMessage(core.FunctionResponse{ID: "c1", Name: "lookup", Error: "nope"}),
	})

	require.Len(t, msgs, 3)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "assistant", string(msgs[1].Role))
	assert.Len(t, msgs[1].Content, 2)
	assert.Equal(t, "user", string(msgs[2].Role))
	require.Len(t, msgs[2].Content, 1)
	require.NotNil(t, msgs[2].Content[0].OfToolResult)
	assert.Equal(t, "c1", msgs[2].Content[0].OfToolResult.ToolUseID)
}

func TestBuildParams(t *testing.T) {
	m := NewModelFromClient(nil)
	req := model.Request{
		Instructions: "be brief",
		Messages:     []core.Message{core.SystemMessage("ctx"), core.UserMessage("hi")},
		Tools: []model.ToolDefinition{model.NewTool("decide", "Decide", map[string]any{
			"type":       "object",
			"properties": map[string]any{"shouldReact": map[string]any{"type": "boolean"}},
			"required":   []string{"shouldReact"},
		})},
		ToolChoice: "decide",
	}

	p := m.buildParams(req)
	assert.Len(t, p.System, 2)
	require.Len(t, p.Tools, 1)
	require.NotNil(t, p.Tools[0].OfTool)
	assert.Equal(t, []string{"shouldReact"}, p.Tools[0].OfTool.InputSchema.Required)
	require.NotNil(t, p.ToolChoice.OfTool)
	assert.Equal(t, "decide", p.ToolChoice.OfTool.Name)
}
