package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/chis/pathdesigner/internal/storage"
)

type saveProjectRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type renameProjectRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.storage.ListProjects(r.Context())
	if err != nil {
		RespondInternalError(w, err)
		return
	}
	RespondSuccess(w, summaries)
}

// handleSaveProject snapshots the current graph under the given name.
// Passing an existing id overwrites that project; omitting it creates
// a new one.
func (s *Server) handleSaveProject(w http.ResponseWriter, r *http.Request) {
	var req saveProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondBadRequest(w, fmt.Errorf("invalid request body: %w", err))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		RespondBadRequest(w, fmt.Errorf("project name is required"))
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	nodes, edges := s.runtime.SettingsSnapshot()
	project := storage.Project{
		ID:    req.ID,
		Name:  req.Name,
		Nodes: nodes,
		Edges: edges,
	}
	if err := s.storage.SaveProject(r.Context(), project); err != nil {
		RespondInternalError(w, err)
		return
	}

	s.log.WithFields(map[string]any{
		"project_id": project.ID,
		"nodes":      len(nodes),
	}).Info("project saved")
	RespondSuccess(w, map[string]string{"id": project.ID, "name": project.Name})
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	project, found, err := s.storage.GetProject(r.Context(), id)
	if err != nil {
		RespondInternalError(w, err)
		return
	}
	if !found {
		RespondNotFound(w, fmt.Errorf("project %s not found", id))
		return
	}
	RespondSuccess(w, project)
}

// handleLoadProject replaces the live graph with a stored project and
// recomputes every derived value from the saved settings.
func (s *Server) handleLoadProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	project, found, err := s.storage.GetProject(r.Context(), id)
	if err != nil {
		RespondInternalError(w, err)
		return
	}
	if !found {
		RespondNotFound(w, fmt.Errorf("project %s not found", id))
		return
	}

	if err := s.runtime.Restore(project.Nodes, project.Edges); err != nil {
		RespondRuntimeError(w, err)
		return
	}

	s.log.WithField("project_id", id).Info("project loaded")
	RespondSuccess(w, s.runtime.Graph())
}

func (s *Server) handleRenameProject(w http.ResponseWriter, r *http.Request) {
	var req renameProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondBadRequest(w, fmt.Errorf("invalid request body: %w", err))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		RespondBadRequest(w, fmt.Errorf("project name is required"))
		return
	}

	id := r.PathValue("id")
	found, err := s.storage.RenameProject(r.Context(), id, req.Name)
	if err != nil {
		RespondInternalError(w, err)
		return
	}
	if !found {
		RespondNotFound(w, fmt.Errorf("project %s not found", id))
		return
	}
	RespondSuccess(w, map[string]string{"id": id, "name": req.Name})
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	found, err := s.storage.DeleteProject(r.Context(), id)
	if err != nil {
		RespondInternalError(w, err)
		return
	}
	if !found {
		RespondNotFound(w, fmt.Errorf("project %s not found", id))
		return
	}
	RespondNoContent(w)
}
