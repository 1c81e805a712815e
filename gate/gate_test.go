package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lifemesh/core"
	"github.com/hupe1980/lifemesh/internal/testutil"
	"github.com/hupe1980/lifemesh/model"
)

func TestDecide_FunctionCall(t *testing.T) {
	for _, want := range []bool{true, false} {
		args := `{"shouldReact":false}`
		if want {
			args = `{"shouldReact":true}`
		}
		m := model.NewMockModel("gate").EnqueueCalls(core.FunctionCall{Name: FunctionName, Arguments: args})

		got, err := New(m).Decide(context.Background(), testutil.NewTranscriptBuilder().User("hi").Build(), "")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestDecide_RequestShape(t *testing.T) {
	m := model.NewMockModel("gate").EnqueueCalls(core.FunctionCall{Name: FunctionName, Arguments: `{"shouldReact":true}`})
	g := New(m, func(o *Options) {
		o.Agent = "ada"
		o.Window = 2
	})

	msgs := testutil.NewTranscriptBuilder().User("one").Assistant("two").User("three").Build()
	_, err := g.Decide(context.Background(), msgs, "only answer questions")
	require.NoError(t, err)

	reqs := m.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, FunctionName, reqs[0].ToolChoice)
	assert.Equal(t, []string{"two", "three"}, testutil.Texts(reqs[0].Messages))
	assert.Contains(t, reqs[0].Instructions, "ada")
	assert.Contains(t, reqs[0].Instructions, "only answer questions")
	require.Len(t, reqs[0].Tools, 1)
	assert.Equal(t, []string{"shouldReact"}, reqs[0].Tools[0].Function.Parameters["required"])
}

func TestDecide_TextFallback(t *testing.T) {
	m := model.NewMockModel("gate").EnqueueText(`Sure: {"shouldReact": true}`)
	got, err := New(m).Decide(context.Background(), nil, "")
	require.NoError(t, err)
	assert.True(t, got)
}

func TestDecide_NoVerdict(t *testing.T) {
	m := model.NewMockModel("gate").EnqueueText("maybe")
	_, err := New(m).Decide(context.Background(), nil, "")
	assert.ErrorIs(t, err, core.ErrValidation)

	m = model.NewMockModel("gate").EnqueueCalls(core.FunctionCall{Name: FunctionName, Arguments: `{"shouldReact":"yes"}`})
	_, err = New(m).Decide(context.Background(), nil, "")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestDecide_ProviderError(t *testing.T) {
	boom := errors.New("provider down")
	m := model.NewMockModel("gate").EnqueueError(boom)
	_, err := New(m).Decide(context.Background(), nil, "")
	assert.ErrorIs(t, err, boom)
}

func TestDecide_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := model.NewMockModel("gate").EnqueueText(`{"shouldReact":true}`)
	_, err := New(m).Decide(ctx, nil, "")
	assert.ErrorIs(t, err, context.Canceled)
}
