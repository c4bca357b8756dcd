package workspace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/soyeahso/agentcanvas/internal/config"
	"github.com/soyeahso/agentcanvas/internal/domain"
)

const (
	bootstrapFileName = "BOOTSTRAP.md"
	memoryDirName     = "memory"
)

func bootstrapContent(repoPath, workspaceDir string, role domain.Role) string {
	return strings.Join([]string{
		"# BOOTSTRAP.md",
		"",
		"Workspace dir: " + workspaceDir,
		"Workspace repo: " + repoPath,
		"Role: " + string(role),
		"",
		"You are operating inside this workspace.",
		"Operate directly in: " + repoPath,
		"",
		`First action: run "ls" in the repo to confirm access.`,
		"",
	}, "\n")
}

// ProvisionAgentWorkspace creates an agent's working directory with a
// BOOTSTRAP.md briefing, empty workspace documents and a memory/ folder.
// Existing files are left untouched.
func ProvisionAgentWorkspace(workspaceDir, repoPath string, role domain.Role) error {
	if err := ensureDir(workspaceDir); err != nil {
		return err
	}
	if err := ensureFile(filepath.Join(workspaceDir, bootstrapFileName), bootstrapContent(repoPath, workspaceDir, role)); err != nil {
		return err
	}
	for _, name := range domain.WorkspaceFileNames {
		if err := ensureFile(filepath.Join(workspaceDir, name), ""); err != nil {
			return err
		}
	}
	return ensureDir(filepath.Join(workspaceDir, memoryDirName))
}

// CopyAuthProfiles seeds a new agent with the provider credentials of
// sourceAgentID. An agent that already has credentials is left alone.
func CopyAuthProfiles(paths config.Paths, sourceAgentID, agentID string) (Warnings, error) {
	var warnings Warnings
	src := paths.AuthProfilesPath(sourceAgentID)
	dst := paths.AuthProfilesPath(agentID)

	if exists(dst) {
		return warnings, nil
	}
	if !exists(src) {
		warnings.Addf("No auth profiles found at %s; agent may need login.", src)
		return warnings, nil
	}
	if err := ensureDir(filepath.Dir(dst)); err != nil {
		return warnings, err
	}
	return warnings, copyFile(src, dst)
}

// DeleteDirIfExists removes a directory tree. A missing directory is a
// warning; a non-directory is an error.
func DeleteDirIfExists(path, label string, warnings *Warnings) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		warnings.Addf("%s not found at %s.", label, path)
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s path is not a directory: %s", label, path)
	}
	return os.RemoveAll(path)
}

// RenameDirIfExists moves src to dst. A missing src is skipped, with a
// warning when warnIfMissing is set.
func RenameDirIfExists(src, dst, label string, warnings *Warnings, warnIfMissing bool) error {
	info, err := os.Stat(src)
	if errors.Is(err, os.ErrNotExist) {
		if warnIfMissing {
			warnings.Addf("%s not found at %s.", label, src)
		}
		return nil
	}
	if err != nil {
		return err
	}
	if exists(dst) {
		return fmt.Errorf("%s already exists at %s.", label, dst)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s path is not a directory: %s", label, src)
	}
	if err := ensureDir(filepath.Dir(dst)); err != nil {
		return err
	}
	return os.Rename(src, dst)
}

// DeleteAgentArtifacts removes an agent's workspace and runtime state.
func DeleteAgentArtifacts(paths config.Paths, projectID, agentID string, warnings *Warnings) error {
	if err := DeleteDirIfExists(paths.AgentWorkspaceDir(projectID, agentID), "Agent workspace", warnings); err != nil {
		return err
	}
	return DeleteDirIfExists(paths.AgentStateDir(agentID), "Agent state", warnings)
}

// DeleteTileArtifacts cleans up after every tile of a project and returns
// the agent ids that were cleaned. Tiles without an agent id are skipped.
func DeleteTileArtifacts(paths config.Paths, projectID string, tiles []domain.Tile, warnings *Warnings) ([]string, error) {
	var agentIDs []string
	for _, tile := range tiles {
		if strings.TrimSpace(tile.AgentID) == "" {
			warnings.Addf("Missing agentId for tile %s; skipped agent cleanup.", tile.ID)
			continue
		}
		if err := DeleteAgentArtifacts(paths, projectID, tile.AgentID, warnings); err != nil {
			return agentIDs, err
		}
		agentIDs = append(agentIDs, tile.AgentID)
	}
	return agentIDs, nil
}

// RenameAgentArtifacts moves an agent's workspace and state directories to
// a new agent id. Existing targets are conflicts.
func RenameAgentArtifacts(paths config.Paths, projectID, fromID, toID string, warnings *Warnings) error {
	workspaceSrc := paths.AgentWorkspaceDir(projectID, fromID)
	workspaceDst := paths.AgentWorkspaceDir(projectID, toID)
	stateSrc := paths.AgentStateDir(fromID)
	stateDst := paths.AgentStateDir(toID)

	if exists(workspaceDst) {
		return domain.Errorf(domain.ErrConflict, "Agent workspace already exists at %s", workspaceDst)
	}
	if exists(stateDst) {
		return domain.Errorf(domain.ErrConflict, "Agent state already exists at %s", stateDst)
	}
	if err := RenameDirIfExists(workspaceSrc, workspaceDst, "Agent workspace", warnings, true); err != nil {
		return err
	}
	return RenameDirIfExists(stateSrc, stateDst, "Agent state", warnings, false)
}

func ensureFile(path, contents string) error {
	if exists(path) {
		return nil
	}
	return os.WriteFile(path, []byte(contents), 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
