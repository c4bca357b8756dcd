package botconfig

import (
	"math"
	"strings"

	"github.com/soyeahso/agentcanvas/internal/domain"
)

const (
	DefaultHeartbeatEvery       = "30m"
	DefaultHeartbeatTarget      = "last"
	DefaultHeartbeatAckMaxChars = 300
)

// ActiveHours limits heartbeats to a daily window, e.g. "09:00" to "18:00".
type ActiveHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Heartbeat is the effective periodic wake-up policy of an agent.
type Heartbeat struct {
	Every            string       `json:"every"`
	Target           string       `json:"target"`
	IncludeReasoning bool         `json:"includeReasoning"`
	AckMaxChars      float64      `json:"ackMaxChars"`
	ActiveHours      *ActiveHours `json:"activeHours"`
}

// HeartbeatState is a resolved heartbeat plus whether the agent overrides
// the defaults.
type HeartbeatState struct {
	Heartbeat   Heartbeat `json:"heartbeat"`
	HasOverride bool      `json:"hasOverride"`
}

// HeartbeatUpdate is a validated request to change an agent's heartbeat.
type HeartbeatUpdate struct {
	Override         bool
	Every            string
	Target           string
	IncludeReasoning bool
	AckMaxChars      *float64
	ActiveHours      *ActiveHours
}

func (f *File) heartbeatDefaults() map[string]any {
	agents, _ := asMap(f.Data["agents"])
	defaults, _ := asMap(agents["defaults"])
	hb, _ := asMap(defaults["heartbeat"])
	return hb
}

// ResolveHeartbeat merges agents.defaults.heartbeat with the agent's own
// heartbeat block and fills in built-in defaults.
func (f *File) ResolveHeartbeat(agentID string) HeartbeatState {
	var override map[string]any
	if entry, ok := f.FindAgent(agentID); ok {
		override, _ = asMap(entry["heartbeat"])
	}
	return normalizeHeartbeat(f.heartbeatDefaults(), override)
}

// SetHeartbeat applies u to the agent's entry, creating the entry if needed,
// and returns the resulting state.
func (f *File) SetHeartbeat(agentID string, u HeartbeatUpdate) HeartbeatState {
	list := f.AgentList()
	var entry map[string]any
	for _, e := range list {
		if stringField(e, "id") == agentID {
			entry = e
			break
		}
	}
	if entry == nil {
		entry = map[string]any{"id": agentID}
		list = append(list, entry)
	}

	if !u.Override {
		delete(entry, "heartbeat")
	} else {
		next := map[string]any{
			"every":            u.Every,
			"target":           u.Target,
			"includeReasoning": u.IncludeReasoning,
		}
		if u.AckMaxChars != nil {
			next["ackMaxChars"] = *u.AckMaxChars
		}
		if u.ActiveHours != nil {
			next["activeHours"] = map[string]any{"start": u.ActiveHours.Start, "end": u.ActiveHours.End}
		}
		entry["heartbeat"] = next
	}
	f.SetAgentList(list)

	var override map[string]any
	if u.Override {
		override, _ = asMap(entry["heartbeat"])
	}
	return normalizeHeartbeat(f.heartbeatDefaults(), override)
}

// ParseHeartbeatUpdate validates a decoded JSON request body of the form
// {"override": bool, "heartbeat": {...}}.
func ParseHeartbeatUpdate(body map[string]any) (HeartbeatUpdate, error) {
	override, ok := body["override"].(bool)
	hb, hbOK := asMap(body["heartbeat"])
	if !ok || !hbOK {
		return HeartbeatUpdate{}, invalid("Heartbeat payload is invalid.")
	}

	every := strings.TrimSpace(stringField(hb, "every"))
	target := strings.TrimSpace(stringField(hb, "target"))
	if every == "" {
		return HeartbeatUpdate{}, invalid("Heartbeat interval is required.")
	}
	if target == "" {
		return HeartbeatUpdate{}, invalid("Heartbeat target is required.")
	}
	includeReasoning, ok := hb["includeReasoning"].(bool)
	if !ok {
		return HeartbeatUpdate{}, invalid("includeReasoning must be true or false.")
	}

	u := HeartbeatUpdate{
		Override:         override,
		Every:            every,
		Target:           target,
		IncludeReasoning: includeReasoning,
	}

	if raw, present := hb["ackMaxChars"]; present && raw != nil {
		n, ok := finiteNumber(raw)
		if !ok {
			return HeartbeatUpdate{}, invalid("ackMaxChars must be a number.")
		}
		u.AckMaxChars = &n
	}

	if raw, present := hb["activeHours"]; present && raw != nil {
		hours, ok := coerceActiveHours(raw)
		if !ok {
			return HeartbeatUpdate{}, invalid("Active hours must include start and end.")
		}
		u.ActiveHours = hours
	}
	return u, nil
}

func invalid(msg string) error {
	return domain.Errorf(domain.ErrInvalid, "%s", msg)
}

// mergeHeartbeat overlays override on defaults key by key.
func mergeHeartbeat(defaults, override map[string]any) map[string]any {
	merged := make(map[string]any, len(defaults)+len(override))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

func normalizeHeartbeat(defaults, override map[string]any) HeartbeatState {
	resolved := mergeHeartbeat(defaults, override)

	hb := Heartbeat{
		Every:       DefaultHeartbeatEvery,
		Target:      DefaultHeartbeatTarget,
		AckMaxChars: DefaultHeartbeatAckMaxChars,
	}
	if s, ok := resolved["every"].(string); ok {
		hb.Every = s
	}
	if s, ok := resolved["target"].(string); ok {
		hb.Target = s
	}
	if b, ok := resolved["includeReasoning"].(bool); ok {
		hb.IncludeReasoning = b
	}
	if n, ok := finiteNumber(resolved["ackMaxChars"]); ok {
		hb.AckMaxChars = n
	}
	if hours, ok := coerceActiveHours(resolved["activeHours"]); ok {
		hb.ActiveHours = hours
	}
	return HeartbeatState{Heartbeat: hb, HasOverride: override != nil}
}

func finiteNumber(v any) (float64, bool) {
	n, ok := v.(float64)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func coerceActiveHours(v any) (*ActiveHours, bool) {
	m, ok := asMap(v)
	if !ok {
		return nil, false
	}
	start := stringField(m, "start")
	end := stringField(m, "end")
	if start == "" || end == "" {
		return nil, false
	}
	return &ActiveHours{Start: start, End: end}, true
}
