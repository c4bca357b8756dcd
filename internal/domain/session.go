package domain

import "strings"

// DefaultAgentID is assumed when a session key does not name an agent.
const DefaultAgentID = "main"

// BuildSessionKey returns the gateway session key of an agent's main session.
func BuildSessionKey(agentID string) string {
	return "agent:" + agentID + ":main"
}

// ParseAgentIDFromSessionKey extracts the agent id from "agent:<id>:<rest>".
// Keys in any other shape resolve to DefaultAgentID.
func ParseAgentIDFromSessionKey(key string) string {
	parts := strings.SplitN(strings.TrimSpace(key), ":", 3)
	if len(parts) < 3 || parts[0] != "agent" || parts[1] == "" {
		return DefaultAgentID
	}
	return parts[1]
}
