package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreIdempotentSave(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	batch := []Message{
		NewUserMessage("first"),
		NewAssistantMessage("second"),
	}

	require.NoError(t, store.SaveMessages(ctx, "sess-1", batch))
	// Persisting the identical list again must not duplicate history
	require.NoError(t, store.SaveMessages(ctx, "sess-1", batch))

	stored, err := store.Messages(ctx, "sess-1")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	assert.Equal(t, 2, store.Count("sess-1"))

	// Same text, fresh identity: a genuinely new turn
	require.NoError(t, store.SaveMessages(ctx, "sess-1", []Message{NewUserMessage("first")}))
	assert.Equal(t, 3, store.Count("sess-1"))
}

func TestMemoryStoreOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	m1 := NewSystemMessage("a")
	m2 := NewUserMessage("b")
	m3 := NewAssistantMessage("c")

	require.NoError(t, store.SaveMessages(ctx, "sess-1", []Message{m1, m2}))
	require.NoError(t, store.SaveMessages(ctx, "sess-1", []Message{m2, m3}))

	stored, err := store.Messages(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, []string{m1.ID, m2.ID, m3.ID}, []string{stored[0].ID, stored[1].ID, stored[2].ID})
}

func TestMemoryStoreSessionIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.SaveMessages(ctx, "sess-a", []Message{NewUserMessage("for a")}))
	require.NoError(t, store.SaveMessages(ctx, "sess-b", []Message{NewUserMessage("for b")}))

	a, err := store.Messages(ctx, "sess-a")
	require.NoError(t, err)
	require.Len(t, a, 1)
	assert.Equal(t, "for a", a[0].Content)

	unknown, err := store.Messages(ctx, "sess-missing")
	require.NoError(t, err)
	assert.Empty(t, unknown)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.SaveMessages(ctx, "sess-1", []Message{NewUserMessage("original")}))

	stored, err := store.Messages(ctx, "sess-1")
	require.NoError(t, err)
	stored[0].Content = "mutated"

	again, err := store.Messages(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "original", again[0].Content)
}

func TestMemoryStoreAssignsMissingIDs(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	raw := Message{Role: RoleUser, Content: "no id yet"}
	require.NoError(t, store.SaveMessages(ctx, "sess-1", []Message{raw}))

	stored, err := store.Messages(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.NotEmpty(t, stored[0].ID)
}
