package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SaveProject implements Storage.SaveProject.
// Inserts or replaces the project, preserving created_at on replace.
func (s *SQLiteStorage) SaveProject(ctx context.Context, project Project) error {
	nodesJSON, err := json.Marshal(project.Nodes)
	if err != nil {
		return fmt.Errorf("failed to serialize nodes: %w", err)
	}
	edgesJSON, err := json.Marshal(project.Edges)
	if err != nil {
		return fmt.Errorf("failed to serialize edges: %w", err)
	}

	return s.retryWithBackoff(ctx, func() error {
		query := `
			INSERT INTO projects (id, name, nodes, edges, node_count, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				nodes = excluded.nodes,
				edges = excluded.edges,
				node_count = excluded.node_count,
				updated_at = CURRENT_TIMESTAMP
		`
		_, err := s.db.ExecContext(ctx, query,
			project.ID, project.Name, string(nodesJSON), string(edgesJSON), len(project.Nodes))
		if err != nil {
			return fmt.Errorf("failed to save project: %w", err)
		}
		return nil
	})
}

// GetProject implements Storage.GetProject.
func (s *SQLiteStorage) GetProject(ctx context.Context, id string) (Project, bool, error) {
	query := `
		SELECT id, name, nodes, edges, created_at, updated_at
		FROM projects
		WHERE id = ?
	`

	var (
		project   Project
		nodesJSON string
		edgesJSON string
		createdAt time.Time
		updatedAt time.Time
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&project.ID, &project.Name, &nodesJSON, &edgesJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Project{}, false, nil
	}
	if err != nil {
		return Project{}, false, fmt.Errorf("failed to query project: %w", err)
	}

	if err := json.Unmarshal([]byte(nodesJSON), &project.Nodes); err != nil {
		return Project{}, false, fmt.Errorf("failed to parse project nodes: %w", err)
	}
	if err := json.Unmarshal([]byte(edgesJSON), &project.Edges); err != nil {
		return Project{}, false, fmt.Errorf("failed to parse project edges: %w", err)
	}
	project.CreatedAt = createdAt
	project.UpdatedAt = updatedAt
	return project, true, nil
}

// ListProjects implements Storage.ListProjects.
// Returns summaries ordered by updated_at DESC (most recent first).
func (s *SQLiteStorage) ListProjects(ctx context.Context) ([]ProjectSummary, error) {
	query := `
		SELECT id, name, node_count, created_at, updated_at
		FROM projects
		ORDER BY updated_at DESC, id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var summaries []ProjectSummary
	for rows.Next() {
		var s ProjectSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.NodeCount, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate project rows: %w", err)
	}
	return summaries, nil
}

// RenameProject implements Storage.RenameProject.
func (s *SQLiteStorage) RenameProject(ctx context.Context, id, name string) (bool, error) {
	var found bool
	err := s.retryWithBackoff(ctx, func() error {
		result, err := s.db.ExecContext(ctx,
			"UPDATE projects SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", name, id)
		if err != nil {
			return fmt.Errorf("failed to rename project: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		found = affected > 0
		return nil
	})
	return found, err
}

// DeleteProject implements Storage.DeleteProject.
func (s *SQLiteStorage) DeleteProject(ctx context.Context, id string) (bool, error) {
	var found bool
	err := s.retryWithBackoff(ctx, func() error {
		result, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		found = affected > 0
		return nil
	})
	return found, err
}

// compile-time interface check
var _ Storage = (*SQLiteStorage)(nil)
