package direct

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/halcyon-ai/go-gateway/pkg/gateway"
)

// DefaultWorkspaceRoot is the directory file URLs are scoped to when the
// caller does not configure one.
const DefaultWorkspaceRoot = "/workspace"

// RequestFileURL issues a file:// capability for a path inside the workspace
// root. PUT grants create the parent directories so the caller can write
// immediately; GET grants require the file to exist. Grants expire at the end
// of the current day UTC.
//
// Paths are cleaned before validation, so traversal out of the workspace
// ("/workspace/../etc/passwd") fails with *gateway.PathNotAllowedError just
// like a plainly outside path does.
func (g *Gateway) RequestFileURL(_ context.Context, filePath string, method gateway.URLMethod) (*gateway.PresignedURL, error) {
	if filePath == "" {
		return nil, &gateway.Error{
			Code:    "empty_file_path",
			Message: "file path is required",
			Kind:    gateway.KindValidation,
		}
	}
	if method != gateway.URLMethodPut && method != gateway.URLMethodGet {
		return nil, &gateway.Error{
			Code:    "invalid_url_method",
			Message: "method must be PUT or GET, got " + string(method),
			Kind:    gateway.KindValidation,
		}
	}

	cleaned := filepath.Clean(filePath)
	if !g.insideWorkspace(cleaned) {
		return nil, &gateway.PathNotAllowedError{
			Path:          filePath,
			AllowedPrefix: g.workspaceRoot + string(filepath.Separator),
		}
	}

	switch method {
	case gateway.URLMethodPut:
		if err := os.MkdirAll(filepath.Dir(cleaned), 0o755); err != nil {
			return nil, fmt.Errorf("create workspace directories: %w", err)
		}
	case gateway.URLMethodGet:
		info, err := os.Stat(cleaned)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, &gateway.Error{
					Code:       "file_not_found",
					Message:    "no such workspace file: " + cleaned,
					Kind:       gateway.KindValidation,
					StatusCode: 404,
				}
			}
			return nil, fmt.Errorf("stat workspace file: %w", err)
		}
		if info.IsDir() {
			return nil, &gateway.Error{
				Code:    "not_a_file",
				Message: cleaned + " is a directory",
				Kind:    gateway.KindValidation,
			}
		}
	}

	return &gateway.PresignedURL{
		URL:       "file://" + filepath.ToSlash(cleaned),
		Method:    method,
		ExpiresAt: endOfDayUTC(time.Now()),
		FilePath:  cleaned,
	}, nil
}

// insideWorkspace reports whether the cleaned path is the workspace root or
// below it.
func (g *Gateway) insideWorkspace(cleaned string) bool {
	if cleaned == g.workspaceRoot {
		return true
	}
	return strings.HasPrefix(cleaned, g.workspaceRoot+string(filepath.Separator))
}

// normalizeWorkspaceRoot cleans the configured root and strips the trailing
// separator so prefix checks are uniform.
func normalizeWorkspaceRoot(root string) string {
	if root == "" {
		return DefaultWorkspaceRoot
	}
	return filepath.Clean(root)
}

// endOfDayUTC returns the last second of the given instant's day in UTC,
// the expiry on every grant this gateway issues.
func endOfDayUTC(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 23, 59, 59, 0, time.UTC)
}
