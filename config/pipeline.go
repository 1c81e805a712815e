package config

import (
	"github.com/hupe1980/lifemesh/core"
	"github.com/hupe1980/lifemesh/internal/schema"
)

// Prepared holds the result of a successful preparation.
type Prepared struct {
	// Server is the merged configuration parsed by the full schema.
	Server map[string]any
	// Client is the subset exposed to clients, parsed by the client schema.
	Client map[string]any
}

// Prepare merges local over global and validates the result against the
// full schema and then against the client schema. Nothing is returned
// unless both passes succeed.
func Prepare(local, global map[string]any, full, client *schema.Schema) (*Prepared, error) {
	merged := Merge(local, global)

	server, err := full.ParseMap(merged)
	if err != nil {
		return nil, core.WrapError(core.KindValidation, "config.full", err)
	}

	sub, err := client.ParseMap(merged)
	if err != nil {
		return nil, core.WrapError(core.KindValidation, "config.client", err)
	}

	return &Prepared{Server: server, Client: sub}, nil
}

// Lookup walks a dotted path through nested maps.
func Lookup(m map[string]any, path ...string) (any, bool) {
	var cur any = m
	for _, p := range path {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = mm[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Section returns the nested map at path, or an empty map.
func Section(m map[string]any, path ...string) map[string]any {
	v, ok := Lookup(m, path...)
	if !ok {
		return map[string]any{}
	}
	sm, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return sm
}
