package botconfig

// Bindings route inbound channel traffic to an agent:
//
//	{"agentId": "...", "match": {"channel": "discord", "guildId": "...", "peer": {"kind": "channel", "id": "..."}}}

func (f *File) bindings() []any {
	raw, _ := f.Data["bindings"].([]any)
	return raw
}

// BindDiscordChannel routes a Discord guild channel to agentID. Reports
// whether the binding was added.
func (f *File) BindDiscordChannel(agentID, guildID, channelID string) bool {
	for _, item := range f.bindings() {
		b, ok := asMap(item)
		if !ok || stringField(b, "agentId") != agentID {
			continue
		}
		match, _ := asMap(b["match"])
		peer, _ := asMap(match["peer"])
		if stringField(match, "channel") == "discord" && stringField(peer, "id") == channelID {
			return false
		}
	}
	binding := map[string]any{
		"agentId": agentID,
		"match": map[string]any{
			"channel": "discord",
			"guildId": guildID,
			"peer": map[string]any{
				"kind": "channel",
				"id":   channelID,
			},
		},
	}
	f.Data["bindings"] = append(f.bindings(), binding)
	return true
}

// AgentBindings returns the bindings routed to agentID.
func (f *File) AgentBindings(agentID string) []map[string]any {
	var out []map[string]any
	for _, item := range f.bindings() {
		if b, ok := asMap(item); ok && stringField(b, "agentId") == agentID {
			out = append(out, b)
		}
	}
	return out
}

func (f *File) rebind(fromID, toID string) bool {
	changed := false
	for _, item := range f.bindings() {
		if b, ok := asMap(item); ok && stringField(b, "agentId") == fromID {
			b["agentId"] = toID
			changed = true
		}
	}
	return changed
}

func (f *File) unbind(agentID string) bool {
	raw := f.bindings()
	if raw == nil {
		return false
	}
	kept := make([]any, 0, len(raw))
	for _, item := range raw {
		if b, ok := asMap(item); ok && stringField(b, "agentId") == agentID {
			continue
		}
		kept = append(kept, item)
	}
	if len(kept) == len(raw) {
		return false
	}
	f.Data["bindings"] = kept
	return true
}
