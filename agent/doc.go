// Package agent defines agents and the loop that runs them.
//
// A Definition bundles a generation provider, instructions, configuration
// and the agent's actions, memories and effects. A Loop consumes percepts
// for one definition:
//
//   - message percepts are appended to the transcript, memory context is
//     assembled and the decision gate decides whether to reply
//   - interrupt percepts skip the gate and always get a reply
//   - effect percepts are handed to OnEffect callbacks
//
// A reply may request actions. Inline and parallel results are fed back to
// the provider for another round until no further work is requested or
// generation.maxRounds is reached. Background actions are acknowledged
// immediately and their outcome is appended to the transcript as a system
// note once it settles.
package agent
