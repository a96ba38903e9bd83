package adapter

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// DiffRange is the revision range passed to git diff.
type DiffRange []string

var (
	// PreviousCommitRange compares the previous revision with the current one.
	PreviousCommitRange = DiffRange{"HEAD~1", "HEAD"}

	// WorkingTreeRange compares the working tree with the current revision.
	// It is used when there is no previous revision.
	WorkingTreeRange = DiffRange{"HEAD"}
)

// VCSAdapter abstracts the version control queries used by change detection.
type VCSAdapter interface {
	// ChangedFiles lists files changed in the most recent change, relative to
	// workDir, together with the range the listing was computed for.
	ChangedFiles(ctx context.Context, workDir string) ([]string, DiffRange, error)

	// FileDiff returns the zero-context diff of one file over the range.
	// A nil diff means the file has no textual change.
	FileDiff(ctx context.Context, workDir string, rng DiffRange, file string) (*diff.FileDiff, error)

	// HooksDir returns the absolute path of the repository hook directory.
	HooksDir(ctx context.Context, workDir string) (string, error)
}

// GitAdapter implements VCSAdapter with the git binary.
type GitAdapter struct {
	runner CommandRunner
}

// NewGitAdapter constructs a GitAdapter.
func NewGitAdapter(runner CommandRunner) *GitAdapter {
	return &GitAdapter{runner: runner}
}

// ChangedFiles runs 'git diff --name-only' against the previous revision and
// falls back to the working tree when the repository has a single commit.
func (g *GitAdapter) ChangedFiles(ctx context.Context, workDir string) ([]string, DiffRange, error) {
	files, err := g.nameOnly(ctx, workDir, PreviousCommitRange)
	if err == nil {
		return files, PreviousCommitRange, nil
	}

	if !errors.Is(err, ErrToolFailed) {
		return nil, nil, err
	}

	files, err = g.nameOnly(ctx, workDir, WorkingTreeRange)
	if err != nil {
		return nil, nil, err
	}

	return files, WorkingTreeRange, nil
}

func (g *GitAdapter) nameOnly(ctx context.Context, workDir string, rng DiffRange) ([]string, error) {
	args := append([]string{"diff", "--name-only", "--relative"}, rng...)

	result, err := g.runner.Run(ctx, workDir, "git", args...)
	if err != nil {
		return nil, fmt.Errorf("git diff --name-only %s: %w", strings.Join(rng, " "), err)
	}

	var files []string

	for _, line := range strings.Split(result.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		files = append(files, filepath.ToSlash(line))
	}

	return files, nil
}

// FileDiff runs 'git diff -U0' for a single file and parses the result.
func (g *GitAdapter) FileDiff(ctx context.Context, workDir string, rng DiffRange, file string) (*diff.FileDiff, error) {
	args := append([]string{"diff", "-U0", "--relative"}, rng...)
	args = append(args, "--", file)

	result, err := g.runner.Run(ctx, workDir, "git", args...)
	if err != nil {
		return nil, fmt.Errorf("git diff -U0 %s: %w", file, err)
	}

	if strings.TrimSpace(result.Stdout) == "" {
		return nil, nil
	}

	fileDiff, err := diff.ParseFileDiff([]byte(result.Stdout))
	if err != nil {
		return nil, fmt.Errorf("failed to parse diff for %s: %w", file, err)
	}

	return fileDiff, nil
}

// HooksDir resolves the hook directory with 'git rev-parse --git-path hooks'.
func (g *GitAdapter) HooksDir(ctx context.Context, workDir string) (string, error) {
	result, err := g.runner.Run(ctx, workDir, "git", "rev-parse", "--git-path", "hooks")
	if err != nil {
		return "", fmt.Errorf("git rev-parse --git-path hooks: %w", err)
	}

	dir := strings.TrimSpace(result.Stdout)
	if dir == "" {
		return "", fmt.Errorf("git returned an empty hooks path")
	}

	if !filepath.IsAbs(dir) {
		dir = filepath.Join(workDir, dir)
	}

	return dir, nil
}

// AddedLines returns the added lines of a diff without their '+' prefix.
func AddedLines(fileDiff *diff.FileDiff) []string {
	if fileDiff == nil {
		return nil
	}

	var lines []string

	for _, hunk := range fileDiff.Hunks {
		for _, line := range strings.Split(string(hunk.Body), "\n") {
			if !strings.HasPrefix(line, "+") || strings.HasPrefix(line, "+++") {
				continue
			}

			lines = append(lines, strings.TrimPrefix(line, "+"))
		}
	}

	return lines
}
