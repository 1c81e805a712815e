package lifemesh

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lifemesh/agent"
	"github.com/hupe1980/lifemesh/config"
	"github.com/hupe1980/lifemesh/core"
	"github.com/hupe1980/lifemesh/model"
)

func TestMesh_SendAndInterrupt(t *testing.T) {
	project, err := config.PrepareProject(map[string]any{
		"server": map[string]any{"token": "t"},
		"agents": map[string]any{"ada": map[string]any{"reactivity": map[string]any{"enabled": false}}},
	}, nil)
	require.NoError(t, err)

	m := model.NewMockModel("m")
	m.AddResponse("hello", "hi there")
	m.AddResponse("stop", "stopping")

	mesh := New(func(o *Options) { o.Project = project })
	require.NoError(t, mesh.Register(agent.New("ada").Model(m).MustBuild()))

	require.NoError(t, mesh.Send("ada", "hello"))
	require.NoError(t, mesh.Interrupt("ada", "stop"))
	assert.ErrorIs(t, mesh.Send("bob", "hello"), core.ErrNotFound)

	require.NoError(t, mesh.Start(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, mesh.Stop(ctx))

	transcript, err := mesh.Transcript("ada")
	require.NoError(t, err)
	require.Len(t, transcript, 4)
	assert.Equal(t, "stop", transcript[0].Text)
	assert.Equal(t, "stopping", transcript[1].Text)
	assert.Equal(t, "hello", transcript[2].Text)
	assert.Equal(t, "hi there", transcript[3].Text)
}
