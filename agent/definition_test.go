package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lifemesh/action"
	"github.com/hupe1980/lifemesh/core"
	"github.com/hupe1980/lifemesh/feature"
	"github.com/hupe1980/lifemesh/model"
)

func TestBuilder_RequiresModel(t *testing.T) {
	_, err := New("ada").Build()
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = New("").Model(model.NewMockModel("m")).Build()
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestBuilder_AspectOnce(t *testing.T) {
	m := model.NewMockModel("m")
	_, err := New("ada").Model(m).Hint("a").Hint("b").Build()
	assert.ErrorIs(t, err, feature.ErrAspectAlreadySet)

	_, err = New("ada").Model(m).Instructions("x").InstructionsFunc(func(*core.Turn) (string, error) { return "", nil }).Build()
	assert.ErrorIs(t, err, feature.ErrAspectAlreadySet)
}

func TestBuilder_DuplicateActions(t *testing.T) {
	_, err := New("ada").
		Model(model.NewMockModel("m")).
		Actions(action.New("x").MustBuild(), action.New("x").MustBuild()).
		Build()
	assert.ErrorIs(t, err, feature.ErrDuplicate)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestBuilder_Defaults(t *testing.T) {
	m := model.NewMockModel("m")
	def, err := New("ada").Model(m).Build()
	require.NoError(t, err)

	assert.Same(t, m, def.gateModel)
	assert.Equal(t, 0, def.Actions().Len())
	assert.NotNil(t, def.fullSchema)
	assert.NotNil(t, def.clientSchema)
}

func TestBuilder_ConfigIsCopied(t *testing.T) {
	local := map[string]any{"label": "Ada"}
	def := New("ada").Model(model.NewMockModel("m")).Config(local).MustBuild()
	local["label"] = "changed"

	l, err := NewLoop(def)
	require.NoError(t, err)
	assert.Equal(t, "Ada", l.Config().Server["label"])
	assert.Equal(t, "Ada", l.Config().Client["label"])
}

func TestCallbackManager_OrderAndStop(t *testing.T) {
	cm := NewCallbackManager()
	var calls []string
	cm.RegisterCallback(NewFunctionCallback(CallbackBeforeTurn, func(context.Context, *CallbackContext) error {
		calls = append(calls, "first")
		return nil
	}))
	cm.RegisterCallback(NewFunctionCallback(CallbackBeforeTurn, func(context.Context, *CallbackContext) error {
		calls = append(calls, "second")
		return errors.New("stop")
	}))
	cm.RegisterCallback(NewFunctionCallback(CallbackBeforeTurn, func(context.Context, *CallbackContext) error {
		calls = append(calls, "third")
		return nil
	}))

	cc := &CallbackContext{}
	err := cm.ExecuteCallbacks(context.Background(), CallbackBeforeTurn, cc)
	assert.EqualError(t, err, "stop")
	assert.Equal(t, []string{"first", "second"}, calls)
	assert.Equal(t, CallbackBeforeTurn, cc.CallbackType)
}

func TestCallbackManager_Panic(t *testing.T) {
	cm := NewCallbackManager()
	cm.RegisterCallback(NewFunctionCallback(CallbackOnError, func(context.Context, *CallbackContext) error {
		panic("boom")
	}))

	err := cm.ExecuteCallbacks(context.Background(), CallbackOnError, &CallbackContext{})
	assert.ErrorIs(t, err, core.ErrUnknown)
}

func TestBeforeTurnSkipsTurn(t *testing.T) {
	main := model.NewMockModel("main")
	cbs := NewCallbackManager()
	cbs.RegisterCallback(NewFunctionCallback(CallbackBeforeTurn, func(context.Context, *CallbackContext) error {
		return errors.New("muted")
	}))

	var after int
	cbs.RegisterCallback(NewFunctionCallback(CallbackAfterTurn, func(context.Context, *CallbackContext) error {
		after++
		return nil
	}))

	l := newLoop(t, New("ada").Model(main), func(o *Options) { o.Callbacks = cbs })
	transcript := drain(t, l, core.InterruptPercept("hi"))

	assert.Empty(t, transcript)
	assert.Empty(t, main.Requests())
	assert.Equal(t, 1, after)
}

func TestLoggingCallback(t *testing.T) {
	var got string
	cb := NewLoggingCallback(CallbackBeforeAction, func(m string) { got = m })
	require.NoError(t, cb.Execute(context.Background(), &CallbackContext{
		Agent:   "ada",
		Percept: core.MessagePercept("x"),
		Call:    &action.Call{Name: "lookup"},
	}))
	assert.Equal(t, "[before_action] Agent: ada, Percept: message, Action: lookup", got)
}
