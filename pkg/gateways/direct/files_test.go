package direct

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-ai/go-gateway/pkg/gateway"
	"github.com/halcyon-ai/go-gateway/pkg/providers/mock"
)

func newFileGateway(t *testing.T) (*Gateway, string) {
	t.Helper()
	root := t.TempDir()
	g, err := New(mock.NewClient(""), Options{WorkspaceRoot: root})
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g, root
}

func TestRequestFileURLPutCreatesParents(t *testing.T) {
	g, root := newFileGateway(t)
	target := filepath.Join(root, "out", "nested", "report.md")

	grant, err := g.RequestFileURL(context.Background(), target, gateway.URLMethodPut)
	require.NoError(t, err)

	assert.Equal(t, "file://"+filepath.ToSlash(target), grant.URL)
	assert.Equal(t, gateway.URLMethodPut, grant.Method)
	assert.Equal(t, target, grant.FilePath)

	info, err := os.Stat(filepath.Dir(target))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRequestFileURLGetRequiresExistingFile(t *testing.T) {
	g, root := newFileGateway(t)
	target := filepath.Join(root, "data.txt")

	_, err := g.RequestFileURL(context.Background(), target, gateway.URLMethodGet)
	require.Error(t, err)

	var gwErr *gateway.Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, "file_not_found", gwErr.Code)
	assert.Equal(t, 404, gwErr.StatusCode)

	require.NoError(t, os.WriteFile(target, []byte("payload"), 0o644))

	grant, err := g.RequestFileURL(context.Background(), target, gateway.URLMethodGet)
	require.NoError(t, err)
	assert.Equal(t, gateway.URLMethodGet, grant.Method)
	assert.Equal(t, target, grant.FilePath)
}

func TestRequestFileURLRejectsOutsidePaths(t *testing.T) {
	g, root := newFileGateway(t)

	cases := map[string]string{
		"absolute elsewhere": "/etc/passwd",
		"traversal upward":   root + "/subdir/../../escape.txt",
		"relative":           "workspace/notes.txt",
	}
	for name, path := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := g.RequestFileURL(context.Background(), path, gateway.URLMethodPut)
			require.Error(t, err)

			var pathErr *gateway.PathNotAllowedError
			require.True(t, errors.As(err, &pathErr), "want PathNotAllowedError, got %v", err)
			assert.Equal(t, path, pathErr.Path)
			assert.Equal(t, root+string(filepath.Separator), pathErr.AllowedPrefix)
		})
	}
}

func TestRequestFileURLValidation(t *testing.T) {
	g, root := newFileGateway(t)

	_, err := g.RequestFileURL(context.Background(), "", gateway.URLMethodPut)
	require.Error(t, err)
	var gwErr *gateway.Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, gateway.KindValidation, gwErr.Kind)

	_, err = g.RequestFileURL(context.Background(), filepath.Join(root, "f.txt"), gateway.URLMethod("DELETE"))
	require.Error(t, err)
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, "invalid_url_method", gwErr.Code)
}

func TestRequestFileURLExpiry(t *testing.T) {
	g, root := newFileGateway(t)

	before := time.Now().UTC()
	grant, err := g.RequestFileURL(context.Background(), filepath.Join(root, "f.txt"), gateway.URLMethodPut)
	require.NoError(t, err)

	assert.Equal(t, time.UTC, grant.ExpiresAt.Location())
	assert.Equal(t, 23, grant.ExpiresAt.Hour())
	assert.Equal(t, 59, grant.ExpiresAt.Minute())
	assert.Equal(t, 59, grant.ExpiresAt.Second())

	assert.False(t, grant.Expired(before))
	assert.True(t, grant.Expired(grant.ExpiresAt.Add(time.Second)))
}

func TestEndOfDayUTC(t *testing.T) {
	// Zone conversion happens before the day is picked.
	cet := time.FixedZone("CET", 3600)
	got := endOfDayUTC(time.Date(2025, 3, 9, 14, 30, 5, 0, cet))
	assert.Equal(t, time.Date(2025, 3, 9, 23, 59, 59, 0, time.UTC), got)

	eet := time.FixedZone("EET", 2*3600)
	got = endOfDayUTC(time.Date(2025, 3, 9, 0, 30, 0, 0, eet))
	assert.Equal(t, time.Date(2025, 3, 8, 23, 59, 59, 0, time.UTC), got)
}

func TestNormalizeWorkspaceRoot(t *testing.T) {
	assert.Equal(t, DefaultWorkspaceRoot, normalizeWorkspaceRoot(""))
	assert.Equal(t, "/workspace", normalizeWorkspaceRoot("/workspace/"))
	assert.Equal(t, "/data/ws", normalizeWorkspaceRoot("/data//ws/"))
}
