package api

import (
	"net/http"
	"sort"

	"github.com/visualix/visualix/internal/core"
)

// ToolInfo describes one registered tool.
type ToolInfo struct {
	Name        string                    `json:"name"`
	Category    string                    `json:"category"`
	Description string                    `json:"description"`
	Parameters  map[string]core.ParamSpec `json:"parameters"`
}

func (s *Server) handleTools(w http.ResponseWriter, _ *http.Request) {
	descs := s.deps.Tools.DescribeAll()
	list := make([]ToolInfo, 0, len(descs))
	for name, d := range descs {
		list = append(list, ToolInfo{
			Name:        name,
			Category:    d.Category,
			Description: d.Description,
			Parameters:  d.Parameters,
		})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tools":      list,
		"categories": s.deps.Tools.ByCategory(),
		"total":      len(list),
	})
}

func (s *Server) handleFormats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"supported_formats": s.deps.Files.AllowedFormats(),
		"max_file_size":     s.deps.Files.MaxFileSize(),
		"max_file_size_mb":  s.deps.Files.MaxFileSize() / (1024 * 1024),
	})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	if s.deps.Cleaner == nil {
		respondError(w, http.StatusServiceUnavailable, "cleanup is not configured")
		return
	}
	res := s.deps.Cleaner.RunOnce(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"result": res,
		"stats":  s.deps.Cleaner.Stats(),
	})
}

func (s *Server) handleSystem(w http.ResponseWriter, _ *http.Request) {
	if s.deps.System == nil {
		respondError(w, http.StatusServiceUnavailable, "system diagnostics are not configured")
		return
	}
	respondJSON(w, http.StatusOK, s.deps.System.Collect(s.deps.Files.Dirs()...))
}
