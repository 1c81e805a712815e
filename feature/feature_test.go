package feature

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lifemesh/core"
)

type def struct{ name string }

func (d def) FeatureName() string { return d.name }

func TestAspects_MarkIsImmutable(t *testing.T) {
	var a Aspects
	b := a.Mark(AspectInput)

	assert.False(t, a.Has(AspectInput))
	assert.True(t, b.Has(AspectInput))
	assert.NoError(t, b.Err("action", "x"))

	c := b.Mark(AspectInput)
	assert.NoError(t, b.Err("action", "x"))

	err := c.Err("action", "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAspectAlreadySet)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestRegistry_Order(t *testing.T) {
	r, err := NewRegistry(def{"b"}, def{"a"})
	require.NoError(t, err)
	require.NoError(t, r.Register(def{"c"}))

	assert.Equal(t, []string{"b", "a", "c"}, r.Names())
	assert.Equal(t, 3, r.Len())

	d, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", d.name)
}

func TestRegistry_Duplicate(t *testing.T) {
	r, err := NewRegistry(def{"a"})
	require.NoError(t, err)

	err = r.Register(def{"b"}, def{"a"})
	assert.ErrorIs(t, err, ErrDuplicate)
	// Nothing from the failed batch is registered.
	assert.Equal(t, []string{"a"}, r.Names())

	_, err = NewRegistry(def{"x"}, def{"x"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

type runner struct{}

func (runner) Run(context.Context, map[string]any) (core.ActionResult, error) {
	return core.ActionResult{Output: "ok"}, nil
}

func TestDeps_Scope(t *testing.T) {
	actions := func(name string) (core.ActionRunner, error) { return runner{}, nil }
	d := NewDeps(Scope{Owner: "greet", Declared: []string{"lookup"}}, actions, nil, nil)

	r, err := d.Action("lookup")
	require.NoError(t, err)
	res, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Output)

	_, err = d.Action("other")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = d.Effect("lookup")
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.NotNil(t, d.Config())
}
