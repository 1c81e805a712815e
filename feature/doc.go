// Package feature holds the pieces shared by the action, memory and effect
// definitions: the set-once aspect tracker used by their immutable builders,
// the ordered name-keyed Registry and the dependency Scope handed to
// feature behavior.
//
// Builders are values. Every setter returns a new builder with one more
// aspect recorded and never modifies the receiver, so a partially
// configured builder can be shared and extended in several directions.
// Setting an aspect twice does not panic; the violation is recorded and
// Build reports it as a Validation error wrapping ErrAspectAlreadySet.
package feature
