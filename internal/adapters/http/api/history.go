package api

import (
	"net/http"

	"github.com/okian/oralscan/internal/domain/types"
)

// HandleHistory handles GET /history requests.
func (s *Server) HandleHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.history"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	identity, err := s.identity(r)
	if err != nil {
		s.fail(r.Context(), w, WrapKind(op, ErrUnauthorized, err))
		return
	}

	recs, err := s.deps.History(r.Context(), identity)
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewHistoryResponse(recs, s.loc))
}
