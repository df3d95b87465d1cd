package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/chis/pathdesigner/internal/cam"
)

// maxUploadBytes bounds STEP file uploads (STEP assemblies are text
// and can get large, but not unbounded).
const maxUploadBytes = 256 << 20

// handleUpload feeds a STEP file into an import node. The file comes
// as multipart form data under the "file" field.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		RespondBadRequest(w, fmt.Errorf("missing file field: %w", err))
		return
	}
	defer file.Close()

	if err := s.runtime.Upload(r.PathValue("id"), header.Filename, file); err != nil {
		RespondRuntimeError(w, err)
		return
	}
	// The analysis runs in the background; poll the graph or listen on
	// the event stream for the result.
	w.WriteHeader(http.StatusAccepted)
}

// handleRelease commits a dam node's held value downstream.
func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	if err := s.runtime.Release(r.PathValue("id")); err != nil {
		RespondRuntimeError(w, err)
		return
	}
	RespondNoContent(w)
}

// handleAutoNest starts automatic part nesting on a placement node.
func (s *Server) handleAutoNest(w http.ResponseWriter, r *http.Request) {
	if err := s.runtime.AutoNest(r.PathValue("id")); err != nil {
		RespondRuntimeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// contourPreviewRequest selects the object and tool for a preview
// slice. Tool fields may be omitted to use the node defaults.
type contourPreviewRequest struct {
	ObjectID     string  `json:"object_id"`
	ToolDiameter float64 `json:"tool_diameter"`
	OffsetSide   string  `json:"offset_side"`
}

// handleContourPreview extracts the 2D loops of one object so a client
// can render a cut preview without waiting for operation detection.
func (s *Server) handleContourPreview(w http.ResponseWriter, r *http.Request) {
	var req contourPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondBadRequest(w, fmt.Errorf("invalid request body: %w", err))
		return
	}
	result, err := s.runtime.ContourPreview(r.Context(), r.PathValue("id"), req.ObjectID, req.ToolDiameter, req.OffsetSide)
	if err != nil {
		RespondRuntimeError(w, err)
		return
	}
	RespondSuccess(w, result)
}

// handleValidateSettings checks a machining settings block and returns
// the verdict with any warnings.
func (s *Server) handleValidateSettings(w http.ResponseWriter, r *http.Request) {
	var settings cam.MachiningSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		RespondBadRequest(w, fmt.Errorf("invalid request body: %w", err))
		return
	}
	result, err := s.runtime.ValidateSettings(r.Context(), settings)
	if err != nil {
		RespondRuntimeError(w, err)
		return
	}
	RespondSuccess(w, result)
}

// handleValidatePlacements runs a synchronous placement check and
// returns the verdict without touching the graph.
func (s *Server) handleValidatePlacements(w http.ResponseWriter, r *http.Request) {
	result, err := s.runtime.ValidatePlacements(r.Context(), r.PathValue("id"))
	if err != nil {
		RespondRuntimeError(w, err)
		return
	}
	RespondSuccess(w, result)
}
