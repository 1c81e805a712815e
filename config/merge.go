package config

import "github.com/hupe1980/lifemesh/internal/schema"

// Merge deep-merges local over a deep clone of global. Neither input is
// modified. Nested maps merge recursively; every other value in local,
// slices included, replaces the global value.
func Merge(local, global map[string]any) map[string]any {
	out, _ := schema.Clone(global).(map[string]any)
	if out == nil {
		out = map[string]any{}
	}
	mergeInto(out, local)
	return out
}

func mergeInto(dst, src map[string]any) {
	for k, sv := range src {
		sm, srcIsMap := sv.(map[string]any)
		dm, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			mergeInto(dm, sm)
			continue
		}
		dst[k] = schema.Clone(sv)
	}
}
