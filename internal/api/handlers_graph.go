package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/chis/pathdesigner/internal/flow"
	"github.com/chis/pathdesigner/internal/layout"
)

// handleGraph returns the full graph with expanded ports.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	RespondSuccess(w, s.runtime.Graph())
}

type addNodeRequest struct {
	Type     flow.NodeType `json:"type"`
	Position flow.Position `json:"position"`
}

// handleAddNode creates a node and returns its initial view.
func (s *Server) handleAddNode(w http.ResponseWriter, r *http.Request) {
	var req addNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondBadRequest(w, fmt.Errorf("invalid request body: %w", err))
		return
	}

	node, err := s.runtime.AddNode(req.Type, req.Position)
	if err != nil {
		RespondRuntimeError(w, err)
		return
	}
	RespondSuccess(w, node)
}

// handleRemoveNode deletes a node and its incident edges.
func (s *Server) handleRemoveNode(w http.ResponseWriter, r *http.Request) {
	if err := s.runtime.RemoveNode(r.PathValue("id")); err != nil {
		RespondRuntimeError(w, err)
		return
	}
	RespondNoContent(w)
}

// handleUpdateSettings patches a node's editable fields.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		RespondBadRequest(w, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if len(fields) == 0 {
		RespondBadRequest(w, fmt.Errorf("no fields to update"))
		return
	}

	if err := s.runtime.UpdateSettings(r.PathValue("id"), fields); err != nil {
		RespondRuntimeError(w, err)
		return
	}
	RespondNoContent(w)
}

// handleMoveNode stores a node position after a drag.
func (s *Server) handleMoveNode(w http.ResponseWriter, r *http.Request) {
	var pos flow.Position
	if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
		RespondBadRequest(w, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if err := s.runtime.MoveNode(r.PathValue("id"), pos); err != nil {
		RespondRuntimeError(w, err)
		return
	}
	RespondNoContent(w)
}

type connectRequest struct {
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle"`
}

// handleConnect creates an edge, superseding edges on occupied fixed
// ports.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondBadRequest(w, fmt.Errorf("invalid request body: %w", err))
		return
	}

	edge, err := s.runtime.Connect(req.Source, req.SourceHandle, req.Target, req.TargetHandle)
	if err != nil {
		RespondRuntimeError(w, err)
		return
	}
	RespondSuccess(w, edge)
}

// handleDisconnect removes an edge by id.
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.runtime.Disconnect(r.PathValue("id")); err != nil {
		RespondRuntimeError(w, err)
		return
	}
	RespondNoContent(w)
}

type layoutRequest struct {
	Direction string `json:"direction"`
}

// handleAutoLayout recomputes every node position and returns the
// refreshed graph.
func (s *Server) handleAutoLayout(w http.ResponseWriter, r *http.Request) {
	var req layoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondBadRequest(w, fmt.Errorf("invalid request body: %w", err))
		return
	}
	dir, err := layout.ParseDirection(req.Direction)
	if err != nil {
		RespondBadRequest(w, err)
		return
	}

	if err := s.runtime.AutoLayout(dir); err != nil {
		RespondRuntimeError(w, err)
		return
	}
	RespondSuccess(w, s.runtime.Graph())
}
