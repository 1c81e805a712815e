// Package gate implements the decision gate: a stateless yes/no check, run
// before generating a reply, of whether the agent should react to the
// latest conversation state.
//
// The verdict is delegated to a generation provider that is forced to call a
// single "decide" function carrying one boolean field, shouldReact. A reply
// that answers in text with a JSON object of the same shape is accepted as a
// fallback. The gate has no retry or timeout logic of its own; it inherits
// the caller's cancellation.
package gate

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/hupe1980/lifemesh/core"
	"github.com/hupe1980/lifemesh/internal/schema"
	"github.com/hupe1980/lifemesh/internal/util"
	"github.com/hupe1980/lifemesh/logging"
	"github.com/hupe1980/lifemesh/model"
)

// FunctionName is the function the provider is forced to call.
const FunctionName = "decide"

// DefaultInstructions is the default gate prompt. It is rendered with the
// keys "agent" and "hint".
const DefaultInstructions = `You are the reactivity gate of the agent {{.agent}}.
Read the conversation and decide whether the agent should react to the latest message right now.
Call the decide function with shouldReact set to true or false.
{{- if .hint}}
Guidance from the developer: {{.hint}}
{{- end}}`

var verdictSchema = schema.Object(map[string]*schema.Schema{
	"shouldReact": schema.Boolean().WithDescription("Whether the agent should react now"),
}, "shouldReact")

// Options configures a Gate.
type Options struct {
	// Agent is the agent name rendered into the instructions.
	Agent string
	// Instructions is a text/template for the gate prompt.
	Instructions string
	// Window limits how many trailing messages are sent. Zero sends all.
	Window int
	Logger logging.Logger
}

// Gate decides whether to react.
type Gate struct {
	model model.Model
	opts  Options
}

// New creates a gate backed by m.
func New(m model.Model, optFns ...func(o *Options)) *Gate {
	opts := Options{
		Instructions: DefaultInstructions,
		Window:       20,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Gate{model: m, opts: opts}
}

// Decide returns the provider's verdict for msgs. hint is optional
// developer guidance included in the prompt.
func (g *Gate) Decide(ctx context.Context, msgs []core.Message, hint string) (bool, error) {
	instructions, err := util.RenderTemplate(g.opts.Instructions, map[string]any{
		"agent": g.opts.Agent,
		"hint":  hint,
	})
	if err != nil {
		return false, core.WrapError(core.KindValidation, "gate.instructions", err)
	}

	req := model.Request{
		Instructions: instructions,
		Messages:     core.Window(msgs, g.opts.Window),
		Tools: []model.ToolDefinition{
			model.NewTool(FunctionName, "Report whether the agent should react", verdictSchema.JSON()),
		},
		ToolChoice: FunctionName,
	}

	reply, err := model.Complete(ctx, g.model, req)
	if err != nil {
		return false, err
	}

	verdict, err := parseVerdict(reply)
	if err != nil {
		return false, err
	}

	g.opts.Logger.Debug("gate.decided", "agent", g.opts.Agent, "should_react", verdict)
	return verdict, nil
}

func parseVerdict(reply core.Message) (bool, error) {
	for _, c := range reply.Calls {
		if c.Name != FunctionName {
			continue
		}
		var args map[string]any
		if err := json.Unmarshal([]byte(c.Arguments), &args); err != nil {
			return false, core.WrapError(core.KindValidation, "gate.decide", err)
		}
		return readVerdict(args)
	}

	// Fallback: a JSON object somewhere in the text.
	text := reply.Text
	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		var args map[string]any
		if err := json.Unmarshal([]byte(text[start:end+1]), &args); err == nil {
			return readVerdict(args)
		}
	}

	return false, core.NewError(core.KindValidation, "gate.decide", "provider returned no verdict")
}

func readVerdict(args map[string]any) (bool, error) {
	parsed, err := verdictSchema.ParseMap(args)
	if err != nil {
		return false, core.WrapError(core.KindValidation, "gate.decide", err)
	}
	return parsed["shouldReact"].(bool), nil
}
