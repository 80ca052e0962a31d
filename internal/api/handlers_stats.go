package api

import (
	"net/http"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	gen := s.orchestrator.Generator()
	if s.stats == nil || gen == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"model": gen.Model(),
		"stats": s.stats.Snapshot(),
	})
}
