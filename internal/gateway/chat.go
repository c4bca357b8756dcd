package gateway

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Event names pushed by the gateway.
const (
	EventChat  = "chat"
	EventAgent = "agent"
)

// Chat event states.
const (
	ChatStateDelta   = "delta"
	ChatStateFinal   = "final"
	ChatStateAborted = "aborted"
	ChatStateError   = "error"
)

// ChatSendParams are the chat.send request parameters.
type ChatSendParams struct {
	SessionKey     string `json:"sessionKey"`
	Message        string `json:"message"`
	Deliver        bool   `json:"deliver"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// ChatSendResult is the chat.send response.
type ChatSendResult struct {
	RunID  string `json:"runId"`
	Status string `json:"status,omitempty"`
}

// ChatHistoryResult is the chat.history response.
type ChatHistoryResult struct {
	SessionKey    string           `json:"sessionKey"`
	SessionID     string           `json:"sessionId,omitempty"`
	Messages      []map[string]any `json:"messages"`
	ThinkingLevel string           `json:"thinkingLevel,omitempty"`
}

// SessionsPatchParams are the sessions.patch request parameters. Nil
// fields are sent as null, clearing the session override.
type SessionsPatchParams struct {
	Key           string  `json:"key"`
	Model         *string `json:"model"`
	ThinkingLevel *string `json:"thinkingLevel"`
}

// ChatEvent is the payload of a "chat" event.
type ChatEvent struct {
	RunID        string `json:"runId"`
	SessionKey   string `json:"sessionKey"`
	State        string `json:"state"`
	Message      any    `json:"message,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// AgentEvent is the payload of an "agent" event.
type AgentEvent struct {
	RunID      string         `json:"runId"`
	Seq        int64          `json:"seq,omitempty"`
	Stream     string         `json:"stream,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	SessionKey string         `json:"sessionKey,omitempty"`
}

// ChatSend starts an agent run. A blank idempotency key is generated and
// doubles as the run id when the gateway does not return one.
func (c *Client) ChatSend(ctx context.Context, params ChatSendParams) (ChatSendResult, error) {
	if params.IdempotencyKey == "" {
		params.IdempotencyKey = uuid.NewString()
	}
	var res ChatSendResult
	if err := c.Call(ctx, "chat.send", params, &res); err != nil {
		return ChatSendResult{}, err
	}
	if res.RunID == "" {
		res.RunID = params.IdempotencyKey
	}
	return res, nil
}

// ChatHistory fetches up to limit messages of a session transcript.
func (c *Client) ChatHistory(ctx context.Context, sessionKey string, limit int) (ChatHistoryResult, error) {
	params := map[string]any{"sessionKey": sessionKey}
	if limit > 0 {
		params["limit"] = limit
	}
	var res ChatHistoryResult
	if err := c.Call(ctx, "chat.history", params, &res); err != nil {
		return ChatHistoryResult{}, err
	}
	return res, nil
}

// SessionsPatch applies model and thinking level settings to a session.
func (c *Client) SessionsPatch(ctx context.Context, params SessionsPatchParams) error {
	return c.Call(ctx, "sessions.patch", params, nil)
}

// DecodeChatEvent parses a "chat" event. ok is false for other events.
func DecodeChatEvent(ev Event) (ChatEvent, bool) {
	if ev.Name != EventChat {
		return ChatEvent{}, false
	}
	var ce ChatEvent
	if err := json.Unmarshal(ev.Payload, &ce); err != nil {
		return ChatEvent{}, false
	}
	return ce, true
}

// DecodeAgentEvent parses an "agent" event. ok is false for other events.
func DecodeAgentEvent(ev Event) (AgentEvent, bool) {
	if ev.Name != EventAgent {
		return AgentEvent{}, false
	}
	var ae AgentEvent
	if err := json.Unmarshal(ev.Payload, &ae); err != nil || ae.RunID == "" {
		return AgentEvent{}, false
	}
	return ae, true
}

// ExtractText returns the readable text of a chat message. It accepts a
// plain string, a {text} object, or a {content} object whose content is a
// string or a list of typed parts; only "text" parts are kept.
func ExtractText(message any) string {
	switch m := message.(type) {
	case string:
		return m
	case map[string]any:
		if content, ok := m["content"]; ok {
			return extractContent(content)
		}
		if text, ok := m["text"].(string); ok {
			return text
		}
	case []any:
		return extractContent(m)
	}
	return ""
}

func extractContent(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		var parts []string
		for _, item := range v {
			part, ok := item.(map[string]any)
			if !ok {
				if s, ok := item.(string); ok {
					parts = append(parts, s)
				}
				continue
			}
			if t, _ := part["type"].(string); t != "" && t != "text" {
				continue
			}
			if text, ok := part["text"].(string); ok {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

var (
	promptBlockRE  = regexp.MustCompile(`(?i)^(?:Project|Workspace) path:[\s\S]*?\n\s*\n`)
	promptInlineRE = regexp.MustCompile(`(?i)^(?:Project|Workspace) path:[\s\S]*?memory_search\.\s*`)
	resetPromptRE  = regexp.MustCompile(`(?i)^A new session was started via /new or /reset[\s\S]*?reasoning\.\s*`)
	messageIDRE    = regexp.MustCompile(`(?i)\s*\[message_id:[^\]]+\]\s*`)
)

// StripUIMetadata removes the workspace preamble added to outgoing
// messages, the session reset banner and message id markers.
func StripUIMetadata(text string) string {
	if text == "" {
		return text
	}
	cleaned := resetPromptRE.ReplaceAllString(text, "")
	before := cleaned
	cleaned = promptInlineRE.ReplaceAllString(cleaned, "")
	if cleaned == before {
		cleaned = promptBlockRE.ReplaceAllString(cleaned, "")
	}
	cleaned = messageIDRE.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// History is a transcript rendered as output lines. User lines are
// prefixed with "> "; consecutive duplicates are collapsed.
type History struct {
	Lines         []string `json:"lines"`
	LastAssistant *string  `json:"lastAssistant"`
	LastRole      *string  `json:"lastRole"`
}

// HistoryLines renders transcript messages for display.
func HistoryLines(messages []map[string]any) History {
	var lines []string
	var h History
	for _, msg := range messages {
		role, _ := msg["role"].(string)
		text := StripUIMetadata(strings.TrimSpace(ExtractText(msg)))
		if text == "" {
			continue
		}
		switch role {
		case "user":
			lines = append(lines, "> "+text)
			h.LastRole = ptr("user")
		case "assistant":
			lines = append(lines, text)
			h.LastAssistant = ptr(text)
			h.LastRole = ptr("assistant")
		}
	}

	h.Lines = make([]string, 0, len(lines))
	for _, line := range lines {
		if n := len(h.Lines); n > 0 && h.Lines[n-1] == line {
			continue
		}
		h.Lines = append(h.Lines, line)
	}
	return h
}

func ptr(s string) *string { return &s }
