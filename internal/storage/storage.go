package storage

import (
	"context"
	"time"

	"github.com/chis/pathdesigner/internal/flow"
)

// Storage defines the interface for project persistence.
// Only graph topology and per-node editable settings are stored;
// computed values are rebuilt by the runtime on load.
type Storage interface {
	// SaveProject stores or replaces a project by id.
	SaveProject(ctx context.Context, project Project) error

	// GetProject retrieves a project by id.
	// Returns found=false if no project with that id exists.
	GetProject(ctx context.Context, id string) (project Project, found bool, err error)

	// ListProjects returns summaries of all projects, most recently
	// updated first.
	ListProjects(ctx context.Context) ([]ProjectSummary, error)

	// RenameProject changes a project's display name.
	// Returns found=false if no project with that id exists.
	RenameProject(ctx context.Context, id, name string) (found bool, err error)

	// DeleteProject removes a project by id.
	// Returns found=false if no project with that id exists.
	DeleteProject(ctx context.Context, id string) (found bool, err error)

	// Close releases the underlying database resources.
	Close() error
}

// Project is a persisted graph: node topology plus the settings the
// user can edit, captured with Runtime.SettingsSnapshot.
type Project struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Nodes     []flow.Node `json:"nodes"`
	Edges     []flow.Edge `json:"edges"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ProjectSummary is the listing view of a project, without the graph
// payload.
type ProjectSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	NodeCount int       `json:"node_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
