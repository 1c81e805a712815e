// Package model defines the provider-agnostic generation interface the
// agent loop and decision gate drive.
//
// Core goals:
//   - Unify streaming and non-streaming generation behind a single interface
//   - Normalize tool / function declarations (ToolDefinition) and calls
//     (core.FunctionCall on the returned message)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate deterministic mocking for tests (MockModel)
//
// Providers (OpenAI, Anthropic) implement Model in sub-packages so higher
// layers stay decoupled from vendor SDKs.
package model
