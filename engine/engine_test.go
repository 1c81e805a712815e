package engine

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hupe1980/lifemesh/agent"
	"github.com/hupe1980/lifemesh/core"
	"github.com/hupe1980/lifemesh/effect"
	"github.com/hupe1980/lifemesh/feature"
	"github.com/hupe1980/lifemesh/logging"
	"github.com/hupe1980/lifemesh/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietAgent(t *testing.T, name string, m model.Model, effects ...*effect.Definition) *agent.Definition {
	t.Helper()
	def, err := agent.New(name).
		Model(m).
		Config(map[string]any{"reactivity": map[string]any{"enabled": false}}).
		Effects(effects...).
		Build()
	require.NoError(t, err)
	return def
}

func TestRegister_Duplicate(t *testing.T) {
	eng := New()
	require.NoError(t, eng.Register(quietAgent(t, "ada", model.NewMockModel("m"))))

	err := eng.Register(quietAgent(t, "ada", model.NewMockModel("m")))
	assert.ErrorIs(t, err, feature.ErrDuplicate)
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.Equal(t, []string{"ada"}, eng.Names())
}

func TestRegister_InvalidProjectConfig(t *testing.T) {
	eng := New(func(o *Options) {
		o.Project = map[string]any{"agents": map[string]any{
			"ada": map[string]any{"transcript": map[string]any{"window": "wide"}},
		}}
	})
	def, err := agent.New("ada").Model(model.NewMockModel("m")).Build()
	require.NoError(t, err)

	assert.ErrorIs(t, eng.Register(def), core.ErrValidation)
}

func TestUnknownAgent(t *testing.T) {
	eng := New()

	assert.ErrorIs(t, eng.Push("nobody", core.MessagePercept("hi")), core.ErrNotFound)
	assert.ErrorIs(t, eng.PushFirst("nobody", core.MessagePercept("hi")), core.ErrNotFound)
	_, err := eng.ClientConfig("nobody")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = eng.Host("nobody")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestClientConfig_UsesProjectSection(t *testing.T) {
	eng := New(func(o *Options) {
		o.Project = map[string]any{"agents": map[string]any{
			"ada": map[string]any{"label": "Ada", "generation": map[string]any{"maxRounds": 2}},
		}}
	})
	require.NoError(t, eng.Register(quietAgent(t, "ada", model.NewMockModel("m"))))

	cfg, err := eng.ClientConfig("ada")
	require.NoError(t, err)
	assert.Equal(t, "Ada", cfg["label"])
	assert.NotContains(t, cfg, "generation")
}

func TestEngine_RoutesPerceptsByName(t *testing.T) {
	ada := model.NewMockModel("ada").EnqueueText("hi from ada")
	bob := model.NewMockModel("bob").EnqueueText("hi from bob")

	eng := New()
	require.NoError(t, eng.Register(quietAgent(t, "ada", ada)))
	require.NoError(t, eng.Register(quietAgent(t, "bob", bob)))
	require.NoError(t, eng.Start(context.Background()))

	require.NoError(t, eng.Push("ada", core.MessagePercept("hello ada")))
	require.NoError(t, eng.PushFirst("bob", core.MessagePercept("hello bob")))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, eng.Stop(ctx))

	a, err := eng.Transcript("ada")
	require.NoError(t, err)
	require.Len(t, a, 2)
	assert.Equal(t, "hi from ada", a[1].Text)

	b, err := eng.Transcript("bob")
	require.NoError(t, err)
	require.Len(t, b, 2)
	assert.Equal(t, "hi from bob", b[1].Text)
}

func TestEngine_StopUnmountsEffects(t *testing.T) {
	unmounted := make(chan struct{})
	fx := effect.New("camera").
		Unmount(func(context.Context, effect.Input) error {
			close(unmounted)
			return nil
		}).
		MustBuild()

	eng := New()
	require.NoError(t, eng.Register(quietAgent(t, "ada", model.NewMockModel("m"), fx)))
	require.NoError(t, eng.Start(context.Background()))

	host, err := eng.Host("ada")
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		st, err := host.State("camera")
		return err == nil && st.Mounted
	}, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, eng.Stop(ctx))

	select {
	case <-unmounted:
	default:
		t.Fatal("effect was not unmounted")
	}
	<-eng.Done()
}

func TestEngine_StopLogsDuration(t *testing.T) {
	var buf bytes.Buffer
	eng := New(func(o *Options) { o.Logger = logging.New("info", "json", &buf) })
	require.NoError(t, eng.Register(quietAgent(t, "ada", model.NewMockModel("m"))))
	require.NoError(t, eng.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, eng.Stop(ctx))

	assert.Contains(t, buf.String(), `"operation":"engine.stop"`)
}

func TestEngine_StartOnce(t *testing.T) {
	eng := New()
	require.NoError(t, eng.Start(context.Background()))
	assert.ErrorIs(t, eng.Start(context.Background()), core.ErrValidation)
	assert.ErrorIs(t, eng.Register(quietAgent(t, "late", model.NewMockModel("m"))), core.ErrValidation)
	require.NoError(t, eng.Stop(context.Background()))
}
