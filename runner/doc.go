// Package runner wires a lifemesh process together.
//
// A Runner starts the engine, the optional bundle compiler, the optional
// media bridge process and the HTTP server. When its context ends (usually
// on SIGINT or SIGTERM) it hands the four of them to a shutdown
// orchestrator, which stops them concurrently, reports progress and exits
// with code 0.
package runner
