package state

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/visualix/visualix/internal/core"
)

// Supported backends.
const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"
)

// NewJobStore creates a core.JobStore for backend at path. The extension of
// path is normalized to match the backend.
func NewJobStore(backend, path string) (core.JobStore, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendSQLite:
		return NewSQLiteJobStore(withExt(path, ".db"))
	case BackendJSON:
		return NewJSONJobStore(withExt(path, ".json"))
	default:
		return nil, core.ErrValidation(core.CodeInvalidConfig,
			fmt.Sprintf("unknown job store backend %q (want sqlite or json)", backend))
	}
}

func withExt(path, ext string) string {
	if strings.HasSuffix(path, ext) {
		return path
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
