// Package gateway defines the contract agents use to invoke LLM providers
// without holding provider credentials, along with the session cost
// accounting and failure semantics every implementation must honor.
//
// The main components include:
//
// - Gateway interface: invoke, persist, file-URL issuance, session cost
// - Message types: conversation turns with stable identities
// - Tool system: function declarations and surfaced tool calls
// - CostLedger: monotonic session spend against an optional cap
// - Retry: opt-in rate-limit retries via WithRetry
// - Error taxonomy: typed failures callers can act on programmatically
// - Configuration: environment bootstrap for sessions and providers
//
// Gateway implementations live under /pkg/gateways/ (the production
// control-plane client and the in-process direct variant) and the test
// double under /pkg/gatewaytest. Provider adapters used by the direct
// variant live under /pkg/providers/.
package gateway
