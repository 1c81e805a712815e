// Package effect tracks the lifecycle of long-running side-channel behaviors.
//
// An effect is mounted and unmounted by a Host, which owns the effect State
// and publishes lifecycle events (mounted, unmounted, mountError,
// unmountError) on a Bus. Agents observe effects through a Tracker that
// queries the host over a Gateway with remote calls named
// "effects.<name>.<query>" and forwards the host's events to local
// handlers in delivery order.
//
// LocalGateway connects a Tracker to an in-process Host. Package wsgateway
// carries the same contract over a WebSocket.
package effect
