package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/nerrad567/gray-logic-fieldio/internal/fieldio"
)

// handleTopology serves discovery. The binary form is the default; a client
// that accepts only JSON gets the same topology as JSON.
func (s *Server) handleTopology(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, s.fieldio.Topology())
		return
	}
	data, err := s.fieldio.HandleTopology(r.Context())
	if err != nil {
		s.logger.Error("encoding topology failed", "error", err)
		writeInternalError(w, "failed to encode topology")
		return
	}
	writeBinary(w, fieldio.ContentType, data)
}

// handlePoll answers a binary poll packet with the changed fields.
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != fieldio.ContentType {
		writeError(w, http.StatusUnsupportedMediaType, ErrCodeMediaType,
			"poll body must be "+fieldio.ContentType)
		return
	}

	req, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "reading poll body: "+err.Error())
		return
	}

	data, err := s.fieldio.HandlePoll(r.Context(), req)
	switch {
	case err == nil:
		writeBinary(w, fieldio.ContentType, data)
	case errors.Is(err, fieldio.ErrDriverListStale):
		writeError(w, http.StatusConflict, ErrCodeResync, err.Error())
	case errors.Is(err, fieldio.ErrPollTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, err.Error())
	case errors.Is(err, fieldio.ErrDecodingFailed):
		writeBadRequest(w, err.Error())
	default:
		s.logger.Error("poll failed", "error", err)
		writeInternalError(w, "poll failed")
	}
}

// wantsJSON reports whether the client asked for JSON and not the binary
// field I/O encoding.
func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, fieldio.ContentType)
}
