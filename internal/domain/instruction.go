package domain

import (
	"fmt"
	"slices"
	"strings"
)

// WorkspaceFileNames is the fixed set of editable agent documents.
var WorkspaceFileNames = []string{
	"AGENTS.md",
	"SOUL.md",
	"IDENTITY.md",
	"USER.md",
	"HEARTBEAT.md",
	"TOOLS.md",
	"MEMORY.md",
}

// IsWorkspaceFileName reports whether name is one of WorkspaceFileNames.
func IsWorkspaceFileName(name string) bool {
	return slices.Contains(WorkspaceFileNames, name)
}

// BuildAgentInstruction prefixes a chat message with the agent's working
// directory context. Empty messages, slash commands and tiles without a
// worktree are passed through trimmed.
func BuildAgentInstruction(worktreePath, repoPath, message string) string {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" || strings.HasPrefix(trimmed, "/") {
		return trimmed
	}
	worktree := strings.TrimSpace(worktreePath)
	if worktree == "" {
		return trimmed
	}
	repoNote := ""
	if repo := strings.TrimSpace(repoPath); repo != "" {
		repoNote = fmt.Sprintf(" This is a git worktree of %s.", repo)
	}
	return fmt.Sprintf(
		"Workspace path: %s.%s Operate within this repository. You may also read/write your agent workspace files (%s). "+
			"Use MEMORY.md or memory/*.md directly for durable memory; do not rely on memory_search.\n\n%s",
		worktree, repoNote, strings.Join(WorkspaceFileNames, ", "), trimmed)
}
