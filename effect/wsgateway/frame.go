// Package wsgateway carries the effect call and event contract over a
// WebSocket.
//
// Requests are {"id","method"} frames, answered by {"id","result"} or
// {"id","error"}. Lifecycle events are pushed as {"event","data"} frames in
// the order the host publishes them.
package wsgateway

import "encoding/json"

type frame struct {
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Event  string          `json:"event,omitempty"`
	Data   map[string]any  `json:"data,omitempty"`
}
