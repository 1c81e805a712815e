// Package config prepares agent and project configuration.
//
// Preparation is a two-pass pipeline over one merged object:
//
//  1. Merge a local configuration over a deep clone of a global one. Local
//     scalars win, nested objects merge recursively, slices are replaced.
//  2. Parse the merged object against the full (server-side) schema.
//  3. Parse the same merged object against the restricted client schema to
//     obtain the client-visible subset.
//
// A failure in either pass aborts preparation with a Validation error; the
// two failures are distinguishable by their Op ("config.full" and
// "config.client"). Prepared values are never mutated. Reconfiguration
// replaces them wholesale through a Store, optionally driven by a Watcher
// that re-runs the pipeline when configuration files change.
package config
