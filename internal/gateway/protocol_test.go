package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameTypeConstants(t *testing.T) {
	assert.Equal(t, "req", FrameTypeRequest)
	assert.Equal(t, "res", FrameTypeResponse)
	assert.Equal(t, "event", FrameTypeEvent)
}

func TestNewRequest(t *testing.T) {
	frame, err := NewRequest("req-1", "chat.history", map[string]any{"sessionKey": "agent:a:main"})
	require.NoError(t, err)

	assert.Equal(t, FrameTypeRequest, frame.Type)
	assert.Equal(t, "req-1", frame.ID)
	assert.Equal(t, "chat.history", frame.Method)
	assert.JSONEq(t, `{"sessionKey":"agent:a:main"}`, string(frame.Params))
}

func TestNewErrorResponse(t *testing.T) {
	frame := NewErrorResponse("req-2", ErrorShape{Code: "not_found", Message: "no session"})
	require.NotNil(t, frame.OK)
	assert.False(t, *frame.OK)
	assert.Equal(t, "not_found", frame.Error.Code)

	data, err := json.Marshal(frame)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "retryable")
}

func TestNewEvent(t *testing.T) {
	frame, err := NewEvent("chat", map[string]string{"runId": "r"}, 7)
	require.NoError(t, err)
	assert.Equal(t, FrameTypeEvent, frame.Type)
	assert.Equal(t, "chat", frame.Event)
	assert.Equal(t, int64(7), frame.Seq)
}

func TestConnectParamsOmitsNilAuth(t *testing.T) {
	data, err := json.Marshal(ConnectParams{MinProtocol: MinProtocol, MaxProtocol: MaxProtocol, Client: ClientInfo{ID: "x"}})
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"auth"`)
}
