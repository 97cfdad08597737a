// Package mock provides a scriptable gateway.Provider for tests.
//
// Completions and errors are queued with fluent builders and replayed in
// order; every request is recorded for assertions. When nothing is queued
// the client echoes the last user message, so tests that only care about
// side effects need no scripting at all.
//
//	provider := mock.NewClient("test-model").
//	    WithResponse("first turn").
//	    WithToolCall("search", map[string]interface{}{"q": "go"})
//
// For a test double of the whole Gateway contract (cost ledger included),
// see the gatewaytest package instead.
package mock
