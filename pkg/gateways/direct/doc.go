// Package direct implements the development gateway variant: a provider
// adapter and its credential live in the agent process, completions go
// straight to the vendor SDK, and costs are computed locally from token
// usage via the pricing table.
//
// Unlike the control-plane variant, a direct gateway owns the conversation:
// an optional system prompt is pinned first, every invoked turn and
// assistant reply is appended in order, and History/Reset expose the state
// for development loops. Messages persist to an in-memory store by default
// or any gateway.MessageStore (see pkg/store/sqlite). File URLs are file://
// grants scoped to a workspace root.
package direct
