package api

import (
	"net/http"

	"github.com/nerrad567/gray-logic-fieldio/internal/history"
)

// handleListEvents pages the trigger event log, newest first.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "event log is not configured")
		return
	}

	filter := history.EventFilter{
		Moniker: r.URL.Query().Get("moniker"),
		Field:   r.URL.Query().Get("field"),
	}
	var err error
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if filter.Offset, err = queryInt(r, "offset"); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	page, err := s.events.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing field events failed", "error", err)
		writeInternalError(w, "failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, page)
}
