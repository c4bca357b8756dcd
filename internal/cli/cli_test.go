package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/agentcanvas/internal/config"
	"github.com/soyeahso/agentcanvas/internal/domain"
	"github.com/soyeahso/agentcanvas/internal/gateway"
	"github.com/soyeahso/agentcanvas/internal/logging"
	"github.com/soyeahso/agentcanvas/internal/runlog"
	"github.com/soyeahso/agentcanvas/internal/server"
	"github.com/soyeahso/agentcanvas/internal/store"
)

type fakeChat struct {
	sent []gateway.ChatSendParams
}

func (f *fakeChat) ChatSend(_ context.Context, p gateway.ChatSendParams) (gateway.ChatSendResult, error) {
	f.sent = append(f.sent, p)
	return gateway.ChatSendResult{RunID: "run-1"}, nil
}

func (f *fakeChat) ChatHistory(context.Context, string, int) (gateway.ChatHistoryResult, error) {
	return gateway.ChatHistoryResult{Messages: []map[string]any{
		{"role": "user", "content": "status?"},
		{"role": "assistant", "content": "all green"},
	}}, nil
}

func (f *fakeChat) SessionsPatch(context.Context, gateway.SessionsPatchParams) error { return nil }

func (f *fakeChat) Subscribe(func(gateway.Event)) func() { return func() {} }

func (f *fakeChat) Done() <-chan struct{} { return nil }

// isolate points every state and config lookup at temp directories.
func isolate(t *testing.T) string {
	t.Helper()
	state := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENCLAW_STATE_DIR", state)
	for _, name := range []string{
		"MOLTBOT_STATE_DIR", "CLAWDBOT_STATE_DIR",
		"OPENCLAW_CONFIG_PATH", "MOLTBOT_CONFIG_PATH", "CLAWDBOT_CONFIG_PATH",
		"AGENTCANVAS_CONFIG", "AGENTCANVAS_PORT", "AGENTCANVAS_BIND", "AGENTCANVAS_LOG_LEVEL",
		"AGENTCANVAS_GATEWAY_URL", "AGENTCANVAS_GATEWAY_TOKEN",
	} {
		t.Setenv(name, "")
	}
	return state
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--log-level", "silent"}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// startAPI serves the canvas API over the isolated state dir.
func startAPI(t *testing.T, state string) (string, *fakeChat) {
	t.Helper()
	paths := config.PathsFor(state)
	require.NoError(t, paths.EnsureDirs())
	require.NoError(t, os.WriteFile(filepath.Join(state, "moltbot.json"), []byte(`{"gateway":{"port":18789}}`), 0o600))

	chat := &fakeChat{}
	log := logging.New(nil, "silent")
	runs, err := runlog.Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { runs.Close() })
	srv := server.New(server.Options{
		Config: config.Config{Workspaces: config.WorkspacesConfig{Root: t.TempDir(), DefaultAgentID: "main"}},
		Store:  store.NewFileStore(paths, log),
		Log:    log,
		Runs:   runs,
		Git: func(_ context.Context, dir string, _ ...string) (string, error) {
			return "", os.Mkdir(filepath.Join(dir, ".git"), 0o755)
		},
		Gateway: func(context.Context) (server.ChatGateway, error) { return chat, nil },
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL, chat
}

func TestVersionCmd(t *testing.T) {
	isolate(t)
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "agentcanvas")
}

func TestConfigCmds(t *testing.T) {
	isolate(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")

	out, _, err := run(t, "--config", cfgPath, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, cfgPath+"\n", out)

	out, _, err = run(t, "--config", cfgPath, "config", "set", "server.port", "4100")
	require.NoError(t, err)
	assert.Equal(t, "Set server.port = 4100\n", out)

	out, _, err = run(t, "--config", cfgPath, "config", "get", "server.port")
	require.NoError(t, err)
	assert.Equal(t, "4100\n", out)

	out, _, err = run(t, "--config", cfgPath, "config", "get", "server")
	require.NoError(t, err)
	assert.Equal(t, "port: 4100\n", out)

	_, stderr, err := run(t, "--config", cfgPath, "config", "set", "server.bind", "everywhere")
	require.NoError(t, err)
	assert.Contains(t, stderr, "warning: server.bind")

	_, _, err = run(t, "--config", cfgPath, "config", "unset", "server.port")
	require.NoError(t, err)
	_, _, err = run(t, "--config", cfgPath, "config", "get", "server.port")
	assert.EqualError(t, err, `key "server.port" not found`)

	_, _, err = run(t, "--config", cfgPath, "config", "get", "a..b")
	assert.Error(t, err)
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"FALSE", false},
		{"42", 42},
		{"-3", -3},
		{"1.5", 1.5},
		{"ws://host:1", "ws://host:1"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseValue(tt.in))
		})
	}
}

func TestWorkspaceAndTileCmds(t *testing.T) {
	state := isolate(t)
	url, chat := startAPI(t, state)
	api := func(args ...string) (string, string) {
		t.Helper()
		out, stderr, err := run(t, append([]string{"--api-url", url}, args...)...)
		require.NoError(t, err, stderr)
		return out, stderr
	}

	out, _ := api("workspace", "list")
	assert.Equal(t, "No workspaces.\n", out)

	out, _ = api("workspace", "create", "Demo App")
	assert.Contains(t, out, "Created workspace Demo App")

	out, _ = api("workspace", "list")
	assert.Contains(t, out, "Demo App")
	assert.Contains(t, out, "*")

	out, stderr := api("tile", "create", "Demo App", "Planner", "--role", "research")
	assert.Contains(t, out, "(agent demo-app-planner)")
	assert.Contains(t, stderr, "warning: No auth profiles found")

	out, _ = api("tile", "list", "Demo App")
	assert.Contains(t, out, "demo-app-planner")
	assert.Contains(t, out, "research")

	src := filepath.Join(t.TempDir(), "soul.md")
	require.NoError(t, os.WriteFile(src, []byte("calm and precise"), 0o600))
	out, _ = api("tile", "files", "Demo App", "Planner", "--write", "SOUL.md", "--from", src)
	assert.Equal(t, "Wrote SOUL.md (16 bytes)\n", out)
	out, _ = api("tile", "files", "Demo App", "demo-app-planner", "--show", "SOUL.md")
	assert.Equal(t, "calm and precise", out)
	out, _ = api("tile", "files", "Demo App", "Planner")
	assert.Contains(t, out, "SOUL.md")

	out, _ = api("tile", "send", "Demo App", "Planner", "draft", "the", "plan")
	assert.Equal(t, "Sent to demo-app-planner (run run-1)\n", out)
	require.Len(t, chat.sent, 1)
	assert.True(t, strings.HasSuffix(chat.sent[0].Message, "draft the plan"))

	out, _ = api("tile", "history", "Demo App", "Planner", "--limit", "10")
	assert.Equal(t, "> status?\nall green\n", out)

	out, _ = api("tile", "runs", "Demo App", "Planner")
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "draft the plan")

	out, _ = api("tile", "rename", "Demo App", "Planner", "Architect")
	assert.Contains(t, out, "(agent demo-app-architect)")

	out, _ = api("tile", "delete", "Demo App", "Architect")
	assert.Equal(t, "Deleted tile Architect\n", out)

	out, _ = api("workspace", "delete", "Demo App")
	assert.Equal(t, "Deleted workspace Demo App\n", out)

	_, _, err := run(t, "--api-url", url, "tile", "list", "Demo App")
	assert.EqualError(t, err, "workspace not found: Demo App")
}

func TestWorkspaceOpenAndActivate(t *testing.T) {
	state := isolate(t)
	url, _ := startAPI(t, state)
	dir := filepath.Join(t.TempDir(), "checkout")
	require.NoError(t, os.Mkdir(dir, 0o755))

	out, stderr, err := run(t, "--api-url", url, "workspace", "open", dir)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Opened workspace checkout ("), out)
	assert.Contains(t, stderr, "No .git directory found")

	_, _, err = run(t, "--api-url", url, "workspace", "create", "Second")
	require.NoError(t, err)

	out, _, err = run(t, "--api-url", url, "workspace", "activate", "checkout")
	require.NoError(t, err)
	assert.Equal(t, "Active workspace: checkout\n", out)

	_, _, err = run(t, "--api-url", url, "workspace", "open", dir)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 409, apiErr.Status)
	assert.Equal(t, "Workspace already exists for this path.", apiErr.Message)
}

func TestFindTile(t *testing.T) {
	p := domain.Project{Name: "App", Tiles: []domain.Tile{
		{ID: "t1", Name: "Writer", AgentID: "app-writer"},
		{ID: "t2", Name: "Critic", AgentID: "app-critic"},
	}}
	for _, ref := range []string{"t2", "Critic", "app-critic"} {
		tile, err := findTile(p, ref)
		require.NoError(t, err)
		assert.Equal(t, "t2", tile.ID)
	}
	_, err := findTile(p, "nobody")
	assert.EqualError(t, err, "tile not found in App: nobody")
}

func TestFindProjectAmbiguous(t *testing.T) {
	doc := domain.Document{Projects: []domain.Project{{ID: "a", Name: "Dup"}, {ID: "b", Name: "Dup"}}}
	_, err := findProject(doc, "Dup")
	assert.ErrorContains(t, err, "ambiguous")

	p, err := findProject(doc, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", p.ID)
}

func TestGatewayInfoCmd(t *testing.T) {
	state := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(state, "moltbot.json"),
		[]byte(`{"gateway":{"port":19999,"auth":{"token":"abcdefgh"}}}`), 0o600))

	out, _, err := run(t, "gateway", "info")
	require.NoError(t, err)
	assert.Contains(t, out, "ws://127.0.0.1:19999")
	assert.Contains(t, out, "abcd****")

	out, _, err = run(t, "gateway", "info", "--show-token")
	require.NoError(t, err)
	assert.Contains(t, out, "abcdefgh")
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "(none)", maskToken(""))
	assert.Equal(t, "****", maskToken("abc"))
	assert.Equal(t, "tok-***", maskToken("tok-123"))
}

func TestStatusCmd(t *testing.T) {
	state := isolate(t)
	url, _ := startAPI(t, state)

	out, _, err := run(t, "--api-url", url, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "State:   "+state)
	assert.Contains(t, out, "0 workspace(s), 0 tile(s)")
	assert.Contains(t, out, "API:     ok at "+url)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a b c", truncate("a\n b\tc", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
