// Gateway contract and collaborator interfaces
package gateway

import (
	"context"
)

// Gateway is the contract every variant satisfies: the production
// control-plane client, the in-process direct variant, and the test double.
// A Gateway instance is scoped to exactly one session and owns that
// session's cost ledger; instances are safe for concurrent use.
type Gateway interface {
	// InvokeLLM performs one model invocation with the caller's new
	// conversation turns. On success the session ledger has been charged the
	// authoritative cost of the call; on error the ledger is unchanged
	// except for control-plane reconciliation of spend that already
	// happened.
	InvokeLLM(ctx context.Context, req InvokeRequest) (*LLMResponse, error)

	// PersistMessages durably stores conversation turns. Idempotent at
	// message-identity level: re-persisting a message with an already-stored
	// ID is a no-op, not a duplicate.
	PersistMessages(ctx context.Context, messages []Message) error

	// RequestFileURL issues a presigned URL for reading or writing a file in
	// the session's workspace. Pure capability issuance: no file content
	// moves through the gateway.
	RequestFileURL(ctx context.Context, filePath string, method URLMethod) (*PresignedURL, error)

	// SessionCost returns cumulative session spend in USD, reflecting
	// completed calls only. Control-plane gateways return the broker's
	// authoritative figure and reconcile the local ledger with it.
	SessionCost(ctx context.Context) (float64, error)

	// Close releases any resources held by the gateway.
	Close() error
}

// Provider is the collaborator a direct gateway dispatches completions to.
// Implementations adapt one vendor SDK each and normalize messages, finish
// reasons, token usage, and errors to the gateway types.
type Provider interface {
	// Complete performs one non-streaming completion over the full
	// conversation.
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)

	// Name returns the provider identifier, e.g. "openai".
	Name() string

	// Model returns the model the adapter was configured with.
	Model() string

	// Close cleans up any resources used by the adapter.
	Close() error
}

// MessageStore is the storage collaborator behind PersistMessages for
// gateways that persist locally. Implementations deduplicate on Message.ID
// so that double persistence never duplicates history.
type MessageStore interface {
	// SaveMessages stores the given turns for a session, skipping IDs that
	// are already present.
	SaveMessages(ctx context.Context, sessionID string, messages []Message) error

	// Messages returns a session's stored turns in first-persisted order.
	Messages(ctx context.Context, sessionID string) ([]Message, error)

	// Close releases the underlying storage.
	Close() error
}
