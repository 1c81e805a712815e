// Package core provides the foundational domain types and interfaces shared by
// the lifemesh runtime packages. It defines:
//
//   - Percepts (inbound events delivered to an agent's queue)
//   - Messages (conversation context entries, including function calls and responses)
//   - Sessions (ordered transcript containers) and the SessionStore contract
//   - Dependencies (scoped accessors handed to actions and memories)
//   - Turn (per-percept execution scope with cancellation and generation limits)
//   - Error (the typed failure taxonomy used across the runtime)
//
// The package keeps implementation concerns (queueing, dispatching, effect
// hosting) out of scope and exposes small interfaces so the higher level
// packages can be composed and tested in isolation.
package core
