// Package anthropic provides a model wrapper for the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/lifemesh/core"
	"github.com/hupe1980/lifemesh/model"
)

// Options configures the Anthropic model adapter (temperature, model id,
// max tokens, API key).
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates a new Anthropic model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements model.Model. Streaming requests are served by a
// single final response.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		resp, err := m.client.Messages.New(ctx, m.buildParams(req))
		if err != nil {
			errCh <- fmt.Errorf("anthropic api error: %w", err)
			return
		}

		msg := core.AssistantMessage("")
		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				msg.Text += block.AsText().Text
			case "tool_use":
				toolBlock := block.AsToolUse()
				args := "{}"
				if toolBlock.Input != nil {
					if b, err := json.Marshal(toolBlock.Input); err == nil && string(b) != "null" {
						args = string(b)
					}
				}
				msg.Calls = append(msg.Calls, core.FunctionCall{ID: toolBlock.ID, Name: toolBlock.Name, Arguments: args})
			}
		}

		finishReason := "stop"
		if resp.StopReason != "" {
			finishReason = string(resp.StopReason)
		}

		out <- model.Response{
			ID:           resp.ID,
			Message:      msg,
			FinishReason: finishReason,
			Usage: &model.TokenUsage{
				PromptTokens:     int(resp.Usage.InputTokens),
				CompletionTokens: int(resp.Usage.OutputTokens),
				TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
			},
		}
	}()

	return out, errCh
}

func (m *Model) buildParams(req model.Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:       m.opts.Model,
		Messages:    buildMessages(req.Messages),
		MaxTokens:   m.opts.MaxTokens,
		Temperature: anthropic.Float(m.opts.Temperature),
	}

	if systemBlocks := extractSystem(req); len(systemBlocks) > 0 {
		params.System = systemBlocks
	}

	// Declining tools is expressed by not declaring them.
	if len(req.Tools) > 0 && req.ToolChoice != model.ToolChoiceNone {
		params.Tools = buildTools(req.Tools)
		switch req.ToolChoice {
		case model.ToolChoiceAuto:
		case model.ToolChoiceRequired:
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}
		default:
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfTool: &anthropic.ToolChoiceToolParam{Name: req.ToolChoice}}
		}
	}
	return params
}

// buildMessages converts the transcript to Anthropic messages. Tool results
// are sent as user turns; system messages are lifted into the system prompt.
func buildMessages(msgs []core.Message) []anthropic.MessageParam {
	var messages []anthropic.MessageParam

	for _, msg := range msgs {
		switch msg.Role {
		case core.RoleSystem:
			continue
		case core.RoleAssistant:
			content := buildAssistantContent(msg)
			if len(content) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(content...))
			}
		case core.RoleTool:
			if msg.Response == nil {
				continue
			}
			isError := msg.Response.Error != ""
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.Response.ID, model.ToolResultText(msg.Response), isError),
			))
		default:
			if msg.Text != "" {
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Text)))
			}
		}
	}

	return messages
}

// extractSystem collects the instructions and system messages.
func extractSystem(req model.Request) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	if req.Instructions != "" {
		blocks = append(blocks, anthropic.TextBlockParam{Text: req.Instructions})
	}
	for _, msg := range req.Messages {
		if msg.Role == core.RoleSystem && msg.Text != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: msg.Text})
		}
	}
	return blocks
}

func buildAssistantContent(msg core.Message) []anthropic.ContentBlockParamUnion {
	var content []anthropic.ContentBlockParamUnion
	if msg.Text != "" {
		content = append(content, anthropic.NewTextBlock(msg.Text))
	}
	for _, fc := range msg.Calls {
		var input any = map[string]any{}
		if fc.Arguments != "" {
			if err := json.Unmarshal([]byte(fc.Arguments), &input); err != nil {
				input = fc.Arguments
			}
		}
		content = append(content, anthropic.NewToolUseBlock(fc.ID, input, fc.Name))
	}
	return content
}

// buildTools converts tool definitions to the Anthropic tool format.
func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))

	for i, tool := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if params := tool.Function.Parameters; params != nil {
			if properties, exists := params["properties"]; exists {
				inputSchema.Properties = properties
			}
			switch required := params["required"].(type) {
			case []string:
				inputSchema.Required = required
			case []any:
				for _, r := range required {
					if s, ok := r.(string); ok {
						inputSchema.Required = append(inputSchema.Required, s)
					}
				}
			}
		}

		out[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Function.Name)
		if out[i].OfTool != nil && tool.Function.Description != "" {
			out[i].OfTool.Description = anthropic.String(tool.Function.Description)
		}
	}

	return out
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}
