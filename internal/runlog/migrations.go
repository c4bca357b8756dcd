package runlog

type migration struct {
	Version int
	Name    string
	SQL     string
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "create runs",
		SQL: `
			CREATE TABLE runs (
				run_id       TEXT PRIMARY KEY,
				project_id   TEXT NOT NULL,
				tile_id      TEXT NOT NULL,
				agent_id     TEXT NOT NULL,
				session_key  TEXT NOT NULL,
				message      TEXT NOT NULL,
				status       TEXT NOT NULL DEFAULT '',
				created_at   INTEGER NOT NULL
			);

			CREATE INDEX idx_runs_tile ON runs (project_id, tile_id, created_at);
		`,
	},
}
