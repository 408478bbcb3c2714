package github

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"go.uber.org/zap"

	"github.com/clintrovert/praxis/pkg/types"
)

// LocalHost serves the repository-host contract from a workspace of local
// clones laid out as workspaceDir/owner/repo. It lets the engine run
// against already-cloned repositories with no API token
type LocalHost struct {
	workspaceDir string
	logger       *zap.Logger
}

// NewLocalHost creates a repository host backed by a local workspace
func NewLocalHost(workspaceDir string, logger *zap.Logger) *LocalHost {
	return &LocalHost{
		workspaceDir: workspaceDir,
		logger:       logger,
	}
}

// repositoryPath returns the clone path for a repository
func (h *LocalHost) repositoryPath(owner, name string) string {
	return filepath.Join(h.workspaceDir, owner, name)
}

// ListRepositories walks the workspace and returns every repository found,
// most recently updated first
func (h *LocalHost) ListRepositories(ctx context.Context) ([]types.RepositoryCandidate, error) {
	owners, err := os.ReadDir(h.workspaceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace: %w", err)
	}

	var candidates []types.RepositoryCandidate
	for _, owner := range owners {
		if !owner.IsDir() || strings.HasPrefix(owner.Name(), ".") {
			continue
		}
		repos, err := os.ReadDir(filepath.Join(h.workspaceDir, owner.Name()))
		if err != nil {
			continue
		}
		for _, repo := range repos {
			if !repo.IsDir() || strings.HasPrefix(repo.Name(), ".") {
				continue
			}
			candidate, err := h.describeRepository(owner.Name(), repo.Name())
			if err != nil {
				continue
			}
			candidates = append(candidates, candidate)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].UpdatedAt.After(candidates[j].UpdatedAt)
	})

	h.logger.Info("listed workspace repositories",
		zap.String("workspace", h.workspaceDir),
		zap.Int("count", len(candidates)),
	)

	return candidates, nil
}

// describeRepository opens one clone and summarizes it as a candidate
func (h *LocalHost) describeRepository(owner, name string) (types.RepositoryCandidate, error) {
	repo, err := git.PlainOpen(h.repositoryPath(owner, name))
	if err != nil {
		return types.RepositoryCandidate{}, fmt.Errorf("failed to open repository: %w", err)
	}

	candidate := types.RepositoryCandidate{
		Owner:    owner,
		Name:     name,
		FullName: owner + "/" + name,
	}

	head, err := repo.Head()
	if err != nil {
		return candidate, nil
	}
	if head.Name().IsBranch() {
		candidate.DefaultBranch = head.Name().Short()
	}
	if commit, err := repo.CommitObject(head.Hash()); err == nil {
		candidate.UpdatedAt = commit.Committer.When
	}

	return candidate, nil
}

// ListBranches returns the branch names of a local clone
func (h *LocalHost) ListBranches(ctx context.Context, owner, name string) ([]string, error) {
	repo, err := git.PlainOpen(h.repositoryPath(owner, name))
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	iter, err := repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}

	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate branches: %w", err)
	}

	return names, nil
}

// ListCommits returns the commits on a branch of a local clone, newest
// first, capped at one API-equivalent page
func (h *LocalHost) ListCommits(ctx context.Context, owner, name, branch string, since time.Time) ([]types.Commit, error) {
	repo, err := git.PlainOpen(h.repositoryPath(owner, name))
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	from, err := h.resolveBranch(repo, branch)
	if err != nil {
		return nil, err
	}

	opts := &git.LogOptions{From: from}
	if !since.IsZero() {
		opts.Since = &since
	}

	iter, err := repo.Log(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}

	var commits []types.Commit
	err = iter.ForEach(func(c *object.Commit) error {
		commits = append(commits, types.Commit{
			SHA:         c.Hash.String(),
			AuthorName:  c.Author.Name,
			AuthorEmail: c.Author.Email,
			Message:     strings.TrimSpace(c.Message),
			AuthoredAt:  c.Author.When,
		})
		if len(commits) >= listPageSize {
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate commits: %w", err)
	}

	sort.Slice(commits, func(i, j int) bool {
		return commits[i].AuthoredAt.After(commits[j].AuthoredAt)
	})

	return commits, nil
}

// resolveBranch resolves a branch name to a commit hash; an empty branch
// resolves to HEAD
func (h *LocalHost) resolveBranch(repo *git.Repository, branch string) (plumbing.Hash, error) {
	if branch == "" {
		head, err := repo.Head()
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("failed to resolve HEAD: %w", err)
		}
		return head.Hash(), nil
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to resolve branch %s: %w", branch, err)
	}
	return ref.Hash(), nil
}
