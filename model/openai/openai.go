// Package openai provides an implementation of model.Model using the OpenAI
// Chat Completions API (including streaming and function/tool calling). It
// adapts lifemesh's normalized Request/Response structures into the SDK's
// message format and back.
package openai

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/openai/openai-go"

	"github.com/hupe1980/lifemesh/core"
	"github.com/hupe1980/lifemesh/model"
)

// aggCall aggregates partial tool call streaming deltas (id, name, arguments).
type aggCall struct{ id, name, args string }

// Options configure the OpenAI model adapter.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Model wraps the OpenAI Chat Completions API behind the generic model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a new OpenAI model using the official client. The API
// key is read from OPENAI_API_KEY.
func NewModel(optFns ...func(o *Options)) *Model {
	client := openai.NewClient()
	return NewModelFromClient(&client, optFns...)
}

// NewModelFromClient creates a new OpenAI model from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements unified streaming / non-streaming generation.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		params := m.buildParams(req, buildMessages(req))
		if req.Stream {
			m.handleStreaming(ctx, params, out, errCh)
			return
		}
		m.handleNonStreaming(ctx, params, out, errCh)
	}()
	return out, errCh
}

// buildMessages converts the transcript into OpenAI chat messages. The
// instructions become the leading system message.
func buildMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case core.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Text))
		case core.RoleUser:
			messages = append(messages, openai.UserMessage(msg.Text))
		case core.RoleAssistant:
			if !msg.HasCalls() {
				messages = append(messages, openai.AssistantMessage(msg.Text))
				continue
			}
			assistant := &openai.ChatCompletionAssistantMessageParam{ToolCalls: extractToolCalls(msg)}
			if msg.Text != "" {
				assistant.Content.OfString = openai.String(msg.Text)
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
		case core.RoleTool:
			if msg.Response == nil {
				continue
			}
			messages = append(messages, openai.ToolMessage(model.ToolResultText(msg.Response), msg.Response.ID))
		default:
			if msg.Text != "" {
				messages = append(messages, openai.UserMessage(msg.Text))
			}
		}
	}
	return messages
}

// extractToolCalls returns the message's calls in OpenAI format.
func extractToolCalls(msg core.Message) []openai.ChatCompletionMessageToolCallParam {
	toolCalls := make([]openai.ChatCompletionMessageToolCallParam, len(msg.Calls))
	for i, fc := range msg.Calls {
		args := fc.Arguments
		if args == "" {
			args = "{}"
		}
		toolCalls[i] = openai.ChatCompletionMessageToolCallParam{
			ID: fc.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      fc.Name,
				Arguments: args,
			},
		}
	}
	return toolCalls
}

// buildParams assembles the OpenAI request parameters including tool definitions.
func (m *Model) buildParams(
	req model.Request,
	messages []openai.ChatCompletionMessageParamUnion,
) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}
	if len(req.Tools) == 0 {
		return params
	}
	tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
	for i, tdef := range req.Tools {
		tools[i] = openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        tdef.Function.Name,
				Description: openai.String(tdef.Function.Description),
				Parameters:  tdef.Function.Parameters,
			},
		}
	}
	params.Tools = tools

	switch req.ToolChoice {
	case model.ToolChoiceAuto:
	case model.ToolChoiceNone, model.ToolChoiceRequired:
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String(req.ToolChoice)}
	default:
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: req.ToolChoice},
			},
		}
	}
	return params
}

// handleStreaming processes streaming responses and forwards partial / final events.
func (m *Model) handleStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var textBuilder strings.Builder
	toolAgg := map[int64]*aggCall{}
	for stream.Next() {
		ck := stream.Current()
		for _, ch := range ck.Choices {
			if ch.Delta.Content != "" {
				textBuilder.WriteString(ch.Delta.Content)
				out <- model.Response{
					ID:      ck.ID,
					Partial: true,
					Message: core.Message{Role: core.RoleAssistant, Text: ch.Delta.Content},
				}
			}
			aggregateToolCallDeltas(ch, toolAgg)
			if ch.FinishReason != "" {
				out <- model.Response{
					ID:           ck.ID,
					Message:      finalMessage(textBuilder.String(), toolAgg),
					FinishReason: ch.FinishReason,
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("openai streaming error: %w", err)
	}
}

func aggregateToolCallDeltas(ch openai.ChatCompletionChunkChoice, agg map[int64]*aggCall) {
	for _, tc := range ch.Delta.ToolCalls {
		ac, ok := agg[tc.Index]
		if !ok {
			ac = &aggCall{}
			agg[tc.Index] = ac
		}
		if tc.ID != "" {
			ac.id = tc.ID
		}
		if tc.Function.Name != "" {
			ac.name = tc.Function.Name
		}
		ac.args += tc.Function.Arguments
	}
}

func finalMessage(text string, toolAgg map[int64]*aggCall) core.Message {
	msg := core.AssistantMessage(text)
	indexes := make([]int64, 0, len(toolAgg))
	for idx := range toolAgg {
		indexes = append(indexes, idx)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })
	for _, idx := range indexes {
		ac := toolAgg[idx]
		msg.Calls = append(msg.Calls, core.FunctionCall{ID: ac.id, Name: ac.name, Arguments: ac.args})
	}
	return msg
}

// handleNonStreaming processes a normal (non-streaming) completion.
func (m *Model) handleNonStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		errCh <- fmt.Errorf("openai api error: %w", err)
		return
	}
	if len(resp.Choices) == 0 {
		errCh <- fmt.Errorf("no choices returned")
		return
	}
	ch0 := resp.Choices[0]
	msg := core.AssistantMessage(ch0.Message.Content)
	for _, tc := range ch0.Message.ToolCalls {
		msg.Calls = append(msg.Calls, core.FunctionCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	out <- model.Response{
		ID:           resp.ID,
		Message:      msg,
		FinishReason: ch0.FinishReason,
		Usage: &model.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}
