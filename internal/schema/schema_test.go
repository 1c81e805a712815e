package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_DefaultsAndStripping(t *testing.T) {
	s := Object(map[string]*Schema{
		"server": Object(map[string]*Schema{
			"port": Integer().WithDefault(3003),
			"host": String().WithDefault("localhost"),
		}),
	})

	out, err := s.Parse(map[string]any{
		"server": map[string]any{"port": 4000.0, "extra": true},
		"other":  "dropped",
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"server": map[string]any{"port": 4000.0, "host": "localhost"},
	}, out)
}

func TestParse_Passthrough(t *testing.T) {
	s := Object(map[string]*Schema{"a": String()}).AllowUnknown()

	out, err := s.ParseMap(map[string]any{"a": "x", "b": map[string]any{"c": 1}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "x", "b": map[string]any{"c": 1}}, out)
}

func TestParse_CollectsAllErrors(t *testing.T) {
	s := Object(map[string]*Schema{
		"name":  String(),
		"port":  Integer().WithRange(1, 65535),
		"level": String().WithEnum("debug", "info"),
	}, "name")

	_, err := s.Parse(map[string]any{"port": 70000, "level": "trace"})
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 3)

	fields := []string{verrs[0].Field, verrs[1].Field, verrs[2].Field}
	assert.ElementsMatch(t, []string{"name", "port", "level"}, fields)
}

func TestParse_TypeMismatch(t *testing.T) {
	_, err := Integer().Parse(1.5)
	assert.Error(t, err)

	_, err = Boolean().Parse("true")
	assert.Error(t, err)

	v, err := Number().Parse(3)
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestParse_ArrayItems(t *testing.T) {
	s := Array(Integer())

	out, err := s.Parse([]any{1.0, 2.0})
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0}, out)

	_, err = s.Parse([]any{1.0, "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[1]")
}

func TestParse_DefaultFuncIsEvaluatedPerParse(t *testing.T) {
	n := 0
	s := Object(map[string]*Schema{
		"token": String().WithDefaultFunc(func() any { n++; return "t" }),
	})

	_, err := s.Parse(nil)
	require.NoError(t, err)
	_, err = s.Parse(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestParse_NilSchemaAcceptsAnything(t *testing.T) {
	var s *Schema
	v, err := s.Parse(42)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestModifiersDoNotMutateReceiver(t *testing.T) {
	base := Integer()
	_ = base.WithDefault(1)
	assert.Nil(t, base.Default)
}

func TestFromStruct(t *testing.T) {
	type args struct {
		City  string  `json:"city" description:"City name"`
		Units *string `json:"units,omitempty"`
		Days  int     `json:"days"`
		skip  bool
	}

	s := FromStruct(args{})
	require.Equal(t, TypeObject, s.Type)
	assert.Len(t, s.Properties, 3)
	assert.Equal(t, "City name", s.Properties["city"].Description)
	assert.Equal(t, TypeInteger, s.Properties["days"].Type)
	assert.ElementsMatch(t, []string{"city", "days"}, s.Required)

	js := s.JSON()
	assert.Equal(t, "object", js["type"])
	assert.Contains(t, js["properties"], "units")
}

func TestClone(t *testing.T) {
	orig := map[string]any{"a": map[string]any{"b": []any{1}}}
	c := Clone(orig).(map[string]any)
	c["a"].(map[string]any)["b"].([]any)[0] = 2

	assert.Equal(t, 1, orig["a"].(map[string]any)["b"].([]any)[0])
}
