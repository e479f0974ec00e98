package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// maxFrameBytes bounds a frame request body.
const maxFrameBytes = 64 << 10

// FramesHandler handles frame submissions.
type FramesHandler struct {
	deps FrameDependencies
}

// NewFramesHandler creates a new frames handler.
func NewFramesHandler(deps FrameDependencies) *FramesHandler {
	return &FramesHandler{deps: deps}
}

// HandlePostFrame handles POST /sessions/{id}/frames. Frames are applied
// inline unless ?async=true, in which case they are queued and 202 is
// returned.
func (h *FramesHandler) HandlePostFrame(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	async := false
	if v := r.URL.Query().Get("async"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: async: %v", ErrBadRequest, err))
			return
		}
		async = b
	}

	var req frameRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFrameBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	if err := validateFrame(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	f := req.Frame(id)

	if !async {
		res, err := h.deps.Submit(r.Context(), f)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	duplicate, err := h.deps.Enqueue(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", SessionID: id, FrameID: f.FrameID, Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", SessionID: id, FrameID: f.FrameID})
}
