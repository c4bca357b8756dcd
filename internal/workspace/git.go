package workspace

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitRunner runs a git subcommand in dir and returns its trimmed stdout.
type GitRunner func(ctx context.Context, dir string, args ...string) (string, error)

// RunGit is the GitRunner backed by the git binary on PATH.
func RunGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	stdout, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if stderr := strings.TrimSpace(string(exitErr.Stderr)); stderr != "" {
				return "", errors.New(stderr)
			}
		}
		return "", err
	}
	return strings.TrimSpace(string(stdout)), nil
}

// HasGitDir reports whether path contains a .git entry.
func HasGitDir(path string) bool {
	_, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil
}

// EnsureGitRepo creates path if needed and initializes a repository in it
// when none exists. Failures to initialize are reported as warnings so the
// workspace can still be registered.
func EnsureGitRepo(ctx context.Context, git GitRunner, path string) (Warnings, error) {
	var warnings Warnings
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	if HasGitDir(path) {
		return warnings, nil
	}
	if _, err := git(ctx, path, "init"); err != nil {
		warnings.Addf("git init failed in %s: %s", path, err)
	}
	return warnings, nil
}
