package runlog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/agentcanvas/internal/logging"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:", logging.New(nil, "silent"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrationsApplied(t *testing.T) {
	db := testDB(t)

	var count int
	require.NoError(t, db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(migrations), count)
}

func TestMigrationsIdempotent(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.migrate())

	var count int
	require.NoError(t, db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(migrations), count)
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.db")
	db, err := Open(path, logging.New(nil, "silent"))
	require.NoError(t, err)
	require.NoError(t, db.Record(context.Background(), Run{RunID: "r1", ProjectID: "p", TileID: "t", CreatedAt: 1}))
	require.NoError(t, db.Close())

	db, err = Open(path, logging.New(nil, "silent"))
	require.NoError(t, err)
	defer db.Close()
	runs, err := db.List(context.Background(), "p", "t", 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRecordAndList(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, db.Record(ctx, Run{
			RunID:      id,
			ProjectID:  "p1",
			TileID:     "t1",
			AgentID:    "app-bot",
			SessionKey: "agent:app-bot:main",
			Message:    "msg " + id,
			Status:     "started",
			CreatedAt:  int64(1000 + i),
		}))
	}
	require.NoError(t, db.Record(ctx, Run{RunID: "other", ProjectID: "p1", TileID: "t2", CreatedAt: 5000}))

	runs, err := db.List(ctx, "p1", "t1", 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r3", runs[0].RunID)
	assert.Equal(t, "r2", runs[1].RunID)
	assert.Equal(t, "msg r3", runs[0].Message)
	assert.Equal(t, "agent:app-bot:main", runs[0].SessionKey)
}

func TestRecordDuplicateKeepsFirst(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	require.NoError(t, db.Record(ctx, Run{RunID: "r1", ProjectID: "p", TileID: "t", Message: "first", CreatedAt: 1}))
	require.NoError(t, db.Record(ctx, Run{RunID: "r1", ProjectID: "p", TileID: "t", Message: "second", CreatedAt: 2}))

	runs, err := db.List(ctx, "p", "t", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "first", runs[0].Message)
}

func TestSetStatus(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	require.NoError(t, db.Record(ctx, Run{RunID: "r1", ProjectID: "p", TileID: "t", Status: "started", CreatedAt: 1}))
	require.NoError(t, db.SetStatus(ctx, "r1", "final"))
	require.NoError(t, db.SetStatus(ctx, "missing", "final"))

	runs, err := db.List(ctx, "p", "t", 10)
	require.NoError(t, err)
	assert.Equal(t, "final", runs[0].Status)
}

func TestListEmpty(t *testing.T) {
	runs, err := testDB(t).List(context.Background(), "p", "t", 10)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestDelete(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	for _, r := range []Run{
		{RunID: "a", ProjectID: "p1", TileID: "t1", CreatedAt: 1},
		{RunID: "b", ProjectID: "p1", TileID: "t2", CreatedAt: 2},
		{RunID: "c", ProjectID: "p2", TileID: "t1", CreatedAt: 3},
	} {
		require.NoError(t, db.Record(ctx, r))
	}

	n, err := db.DeleteTile(ctx, "p1", "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = db.DeleteProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	runs, err := db.List(ctx, "p2", "t1", 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
