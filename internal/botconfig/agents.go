package botconfig

// AgentList returns agents.list, skipping entries that are not objects.
// The returned maps alias the config data.
func (f *File) AgentList() []map[string]any {
	agents, ok := asMap(f.Data["agents"])
	if !ok {
		return nil
	}
	raw, ok := agents["list"].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := asMap(item); ok {
			out = append(out, m)
		}
	}
	return out
}

// SetAgentList replaces agents.list.
func (f *File) SetAgentList(list []map[string]any) {
	agents, ok := asMap(f.Data["agents"])
	if !ok {
		agents = map[string]any{}
		f.Data["agents"] = agents
	}
	raw := make([]any, len(list))
	for i, m := range list {
		raw[i] = m
	}
	agents["list"] = raw
}

// FindAgent returns the agents.list entry with the given id.
func (f *File) FindAgent(agentID string) (map[string]any, bool) {
	for _, entry := range f.AgentList() {
		if stringField(entry, "id") == agentID {
			return entry, true
		}
	}
	return nil, false
}

// UpsertAgent ensures an entry for agentID carries name and workspace.
// Reports whether the config changed.
func (f *File) UpsertAgent(agentID, name, workspaceDir string) bool {
	list := f.AgentList()
	for _, entry := range list {
		if stringField(entry, "id") != agentID {
			continue
		}
		changed := false
		if stringField(entry, "name") != name {
			entry["name"] = name
			changed = true
		}
		if stringField(entry, "workspace") != workspaceDir {
			entry["workspace"] = workspaceDir
			changed = true
		}
		return changed
	}
	list = append(list, map[string]any{
		"id":        agentID,
		"name":      name,
		"workspace": workspaceDir,
	})
	f.SetAgentList(list)
	return true
}

// RenameAgent moves the entry for fromID to toID, updating name and
// workspace. Settings on the old entry, such as heartbeat overrides, carry
// over. Bindings that target fromID are repointed. If no entry exists for
// fromID the target is upserted.
func (f *File) RenameAgent(fromID, toID, name, workspaceDir string) bool {
	list := f.AgentList()
	idx := -1
	for i, entry := range list {
		if stringField(entry, "id") == fromID {
			idx = i
			break
		}
	}
	rebound := f.rebind(fromID, toID)
	if idx < 0 {
		return f.UpsertAgent(toID, name, workspaceDir) || rebound
	}

	entry := list[idx]
	entry["id"] = toID
	entry["name"] = name
	entry["workspace"] = workspaceDir

	kept := make([]map[string]any, 0, len(list))
	for i, e := range list {
		if i != idx && stringField(e, "id") == toID {
			continue
		}
		kept = append(kept, e)
	}
	f.SetAgentList(kept)
	return true
}

// RemoveAgent drops the entry for agentID and any bindings routed to it.
func (f *File) RemoveAgent(agentID string) bool {
	list := f.AgentList()
	kept := make([]map[string]any, 0, len(list))
	for _, entry := range list {
		if stringField(entry, "id") != agentID {
			kept = append(kept, entry)
		}
	}
	changed := len(kept) != len(list)
	if changed {
		f.SetAgentList(kept)
	}
	return f.unbind(agentID) || changed
}
