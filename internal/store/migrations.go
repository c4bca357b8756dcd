package store

import (
	"github.com/soyeahso/agentcanvas/internal/domain"
)

// migration upgrades a document from Version-1 to Version.
type migration struct {
	Version int
	Name    string
	Apply   func(doc domain.Document, worktree WorktreeFunc) domain.Document
}

// migrations is the ordered list of all document migrations.
var migrations = []migration{
	{
		Version: 2,
		Name:    "derive agent id, role and workspace path for tiles",
		Apply:   migrateV1,
	},
}

// migrateV1 upgrades tiles that predate agent ids. The agent is recovered
// from the session key and every tile becomes a coding agent.
func migrateV1(doc domain.Document, worktree WorktreeFunc) domain.Document {
	next := doc.Clone()
	for i := range next.Projects {
		p := &next.Projects[i]
		for j := range p.Tiles {
			t := &p.Tiles[j]
			t.AgentID = domain.ParseAgentIDFromSessionKey(t.SessionKey)
			t.Role = domain.RoleCoding
			t.WorkspacePath = worktree(p.ID, t.AgentID)
		}
	}
	return next
}

// migrate applies every migration newer than the document's version and
// returns the names of those applied. Documents without a version are v1.
func migrate(doc domain.Document, worktree WorktreeFunc) (domain.Document, []string) {
	from := doc.Version
	if from < 1 {
		from = 1
	}
	var applied []string
	for _, m := range migrations {
		if m.Version <= from {
			continue
		}
		doc = m.Apply(doc, worktree)
		doc.Version = m.Version
		applied = append(applied, m.Name)
	}
	return doc, applied
}
