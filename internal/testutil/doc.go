// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing transcripts, sessions and percepts. They are
// not intended for production usage.
package testutil
