package hooks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/agentcanvas/internal/config"
	"github.com/soyeahso/agentcanvas/internal/logging"
)

func testManager() *Manager {
	return NewManager(logging.New(nil, "silent"))
}

func TestManager_On_And_Emit(t *testing.T) {
	m := testManager()

	var called bool
	m.On(EventServerStart, "test", func(_ context.Context, p Payload) error {
		called = true
		assert.Equal(t, EventServerStart, p.Event)
		return nil
	})

	m.Emit(context.Background(), EventServerStart, nil)
	assert.True(t, called)
}

func TestManager_Emit_OrderAndData(t *testing.T) {
	m := testManager()

	var order []string
	var gotData map[string]any
	m.On(EventTileCreated, "first", func(_ context.Context, p Payload) error {
		order = append(order, "first")
		gotData = p.Data
		return nil
	})
	m.On(EventTileCreated, "second", func(_ context.Context, _ Payload) error {
		order = append(order, "second")
		return nil
	})

	m.Emit(context.Background(), EventTileCreated, map[string]any{"agentId": "demo-alpha"})
	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, "demo-alpha", gotData["agentId"])
}

func TestManager_Emit_HandlerError(t *testing.T) {
	m := testManager()

	var secondCalled bool
	m.On(EventWorkspaceDeleted, "failing", func(_ context.Context, _ Payload) error {
		return errors.New("handler broke")
	})
	m.On(EventWorkspaceDeleted, "second", func(_ context.Context, _ Payload) error {
		secondCalled = true
		return nil
	})

	m.Emit(context.Background(), EventWorkspaceDeleted, nil)
	assert.True(t, secondCalled)
}

func TestManager_Emit_NoHandlers(t *testing.T) {
	m := testManager()
	m.Emit(context.Background(), EventServerStop, nil)
}

func TestManager_Off(t *testing.T) {
	m := testManager()

	var removed, kept int
	m.On(EventTileRenamed, "remove-me", func(_ context.Context, _ Payload) error {
		removed++
		return nil
	})
	m.On(EventTileRenamed, "keep-me", func(_ context.Context, _ Payload) error {
		kept++
		return nil
	})

	m.Off(EventTileRenamed, "remove-me")
	m.Emit(context.Background(), EventTileRenamed, nil)
	assert.Equal(t, 0, removed)
	assert.Equal(t, 1, kept)
}

func TestManager_EmitAsyncAndWait(t *testing.T) {
	m := testManager()

	var count atomic.Int32
	for _, name := range []string{"async1", "async2"} {
		m.On(EventWorkspaceCreated, name, func(_ context.Context, _ Payload) error {
			count.Add(1)
			return nil
		})
	}

	m.EmitAsync(context.Background(), EventWorkspaceCreated, nil)
	m.Wait()
	assert.Equal(t, int32(2), count.Load())
}

func TestManager_CountAndEvents(t *testing.T) {
	m := testManager()
	assert.Equal(t, 0, m.Count(EventTileDeleted))

	m.On(EventTileDeleted, "h1", func(_ context.Context, _ Payload) error { return nil })
	m.On(EventWorkspaceOpened, "h2", func(_ context.Context, _ Payload) error { return nil })
	assert.Equal(t, 1, m.Count(EventTileDeleted))

	events := m.Events()
	assert.Len(t, events, 2)
	assert.Contains(t, events, EventTileDeleted)
	assert.Contains(t, events, EventWorkspaceOpened)
}

func TestAllEventsMatchConfigKeys(t *testing.T) {
	byEvent := config.HooksConfig{}.ByEvent()
	require.Len(t, byEvent, len(AllEvents))
	for _, event := range AllEvents {
		assert.Contains(t, byEvent, event)
	}
}

func TestCommandHandler(t *testing.T) {
	out := filepath.Join(t.TempDir(), "payload.json")
	h := CommandHandler(config.HookEntry{Command: `cat > "` + out + `"; echo "$AGENTCANVAS_HOOK_EVENT" >> "` + out + `"`})

	err := h(context.Background(), Payload{Event: EventTileCreated, Data: map[string]any{"tileId": "t-1"}})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tileId":"t-1"`)
	assert.Contains(t, string(data), EventTileCreated)
}

func TestCommandHandlerFailure(t *testing.T) {
	h := CommandHandler(config.HookEntry{Command: "echo nope >&2; exit 3"})
	err := h(context.Background(), Payload{Event: EventServerStart})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestCommandHandlerTimeout(t *testing.T) {
	h := CommandHandler(config.HookEntry{Command: "sleep 5", Timeout: 50})
	err := h(context.Background(), Payload{Event: EventServerStart})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestRegisterCommands(t *testing.T) {
	m := testManager()
	n := RegisterCommands(m, config.HooksConfig{
		TileCreated: []config.HookEntry{{Command: "true"}, {Command: "  "}},
		ServerStop:  []config.HookEntry{{Command: "true"}},
	})
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, m.Count(EventTileCreated))
	assert.Equal(t, 1, m.Count(EventServerStop))
}
