package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/lifemesh/agent"
	"github.com/hupe1980/lifemesh/config"
	"github.com/hupe1980/lifemesh/effect"
	"github.com/hupe1980/lifemesh/engine"
	"github.com/hupe1980/lifemesh/model"
	"github.com/hupe1980/lifemesh/server"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeProject(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lifemesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestConfigCmd_FlagsOverrideFile(t *testing.T) {
	t.Setenv(config.EnvServerToken, "")
	path := writeProject(t, "server:\n  port: 4000\n  host: example.org\nagents:\n  companion:\n    label: Ada\n")

	out, err := execute(t, "config", "--config", path, "--host", "0.0.0.0")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, 4000, config.Section(got, "server")["port"])
	assert.Equal(t, "0.0.0.0", config.Section(got, "server")["host"])
	assert.Equal(t, "Ada", config.Section(got, "agents", "companion")["label"])
	assert.Equal(t, "info", config.Section(got, "logging")["level"])
}

func TestConfigCmd_Client(t *testing.T) {
	path := writeProject(t, "server:\n  port: 4000\n  token: secret\n")

	out, err := execute(t, "config", "--config", path, "--client")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, 4000, config.Section(got, "server")["port"])
	assert.NotContains(t, config.Section(got, "server"), "token")
	assert.NotContains(t, got, "logging")
}

func TestConfigCmd_Invalid(t *testing.T) {
	path := writeProject(t, "server:\n  port: 70000\n")

	_, err := execute(t, "config", "--config", path)
	assert.Error(t, err)

	_, err = execute(t, "config", "--config", path, "--port", "8080", "--session", "disk")
	assert.Error(t, err)
}

func TestConfigCmd_MissingFile(t *testing.T) {
	out, err := execute(t, "config", "--config", filepath.Join(t.TempDir(), "absent.yaml"), "--port", "8080")
	require.NoError(t, err)
	assert.Contains(t, out, "port: 8080")
}

func TestSelectModel(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	m, err := selectModel("auto")
	require.NoError(t, err)
	assert.Equal(t, "mock", m.Info().Provider)

	_, err = selectModel("llama")
	assert.Error(t, err)
}

func TestEffectCmd(t *testing.T) {
	eng := engine.New()
	def, err := agent.New("ada").
		Model(model.NewMockModel("m")).
		Effects(effect.New("camera").MustBuild()).
		Build()
	require.NoError(t, err)
	require.NoError(t, eng.Register(def))
	require.NoError(t, eng.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = eng.Stop(ctx)
	})

	host, err := eng.Host("ada")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		st, err := host.State("camera")
		return err == nil && st.Mounted
	}, 5*time.Second, 10*time.Millisecond)

	srv := httptestServer(t, server.New(eng, func(o *server.Options) { o.Token = "secret" }))
	url := "ws" + strings.TrimPrefix(srv, "http") + "/agents/ada/rpc"

	out, err := execute(t, "effect", url, "camera", "--token", "secret")
	require.NoError(t, err)

	var got effectStatus
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, "camera", got.Effect)
	assert.True(t, got.HasMounted)
	assert.False(t, got.HasUnmounted)
	assert.NotNil(t, got.MountedInMs)
	assert.Nil(t, got.UnmountedInMs)

	_, err = execute(t, "effect", url, "camera", "--token", "wrong")
	assert.Error(t, err)
}
