package runlog

import (
	"context"
	"fmt"
)

// Run is one message sent to an agent.
type Run struct {
	RunID      string `json:"runId"`
	ProjectID  string `json:"projectId"`
	TileID     string `json:"tileId"`
	AgentID    string `json:"agentId"`
	SessionKey string `json:"sessionKey"`
	Message    string `json:"message"`
	Status     string `json:"status"`
	CreatedAt  int64  `json:"createdAt"` // unix millis
}

// Record stores a run. Recording the same run id twice keeps the first.
func (db *DB) Record(ctx context.Context, r Run) error {
	_, err := db.sql.ExecContext(ctx,
		`INSERT OR IGNORE INTO runs (run_id, project_id, tile_id, agent_id, session_key, message, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.ProjectID, r.TileID, r.AgentID, r.SessionKey, r.Message, r.Status, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", r.RunID, err)
	}
	return nil
}

// SetStatus updates the status of a recorded run. Unknown run ids are ignored.
func (db *DB) SetStatus(ctx context.Context, runID, status string) error {
	if _, err := db.sql.ExecContext(ctx, "UPDATE runs SET status = ? WHERE run_id = ?", status, runID); err != nil {
		return fmt.Errorf("updating run %s: %w", runID, err)
	}
	return nil
}

// List returns a tile's most recent runs, newest first.
func (db *DB) List(ctx context.Context, projectID, tileID string, limit int) ([]Run, error) {
	rows, err := db.sql.QueryContext(ctx,
		`SELECT run_id, project_id, tile_id, agent_id, session_key, message, status, created_at
		 FROM runs WHERE project_id = ? AND tile_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		projectID, tileID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.RunID, &r.ProjectID, &r.TileID, &r.AgentID, &r.SessionKey, &r.Message, &r.Status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteTile drops every run of a tile and returns how many were removed.
func (db *DB) DeleteTile(ctx context.Context, projectID, tileID string) (int64, error) {
	res, err := db.sql.ExecContext(ctx, "DELETE FROM runs WHERE project_id = ? AND tile_id = ?", projectID, tileID)
	if err != nil {
		return 0, fmt.Errorf("deleting runs: %w", err)
	}
	return res.RowsAffected()
}

// DeleteProject drops every run of a project.
func (db *DB) DeleteProject(ctx context.Context, projectID string) (int64, error) {
	res, err := db.sql.ExecContext(ctx, "DELETE FROM runs WHERE project_id = ?", projectID)
	if err != nil {
		return 0, fmt.Errorf("deleting runs: %w", err)
	}
	return res.RowsAffected()
}
