package github

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/clintrovert/praxis/pkg/types"
)

const listPageSize = 100

// Client wraps GitHub API access for the correlation engine
type Client struct {
	apiClient *github.Client
	logger    *zap.Logger
}

// NewClient creates a new GitHub API client
func NewClient(accessToken string, logger *zap.Logger) *Client {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: accessToken},
	)
	tc := oauth2.NewClient(ctx, ts)

	return &Client{
		apiClient: github.NewClient(tc),
		logger:    logger,
	}
}

// ListRepositories returns the repositories visible to the authenticated
// user, most recently updated first
func (c *Client) ListRepositories(ctx context.Context) ([]types.RepositoryCandidate, error) {
	repos, _, err := c.apiClient.Repositories.List(ctx, "", &github.RepositoryListOptions{
		Sort: "updated",
		ListOptions: github.ListOptions{
			PerPage: listPageSize,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}

	candidates := make([]types.RepositoryCandidate, 0, len(repos))
	for _, repo := range repos {
		candidates = append(candidates, types.RepositoryCandidate{
			Owner:         repo.GetOwner().GetLogin(),
			Name:          repo.GetName(),
			FullName:      repo.GetFullName(),
			DefaultBranch: repo.GetDefaultBranch(),
			UpdatedAt:     repo.GetUpdatedAt().Time,
		})
	}

	c.logger.Info("listed repositories", zap.Int("count", len(candidates)))

	return candidates, nil
}

// ListBranches returns the branch names of a repository in host listing order
func (c *Client) ListBranches(ctx context.Context, owner, name string) ([]string, error) {
	branches, _, err := c.apiClient.Repositories.ListBranches(ctx, owner, name, &github.BranchListOptions{
		ListOptions: github.ListOptions{
			PerPage: listPageSize,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}

	names := make([]string, 0, len(branches))
	for _, branch := range branches {
		names = append(names, branch.GetName())
	}

	return names, nil
}

// ListCommits returns the commits on a branch, newest first. An empty
// branch means the repository's default branch; a zero since fetches the
// most recent page without a time filter
func (c *Client) ListCommits(ctx context.Context, owner, name, branch string, since time.Time) ([]types.Commit, error) {
	opts := &github.CommitsListOptions{
		SHA:   branch,
		Since: since,
		ListOptions: github.ListOptions{
			PerPage: listPageSize,
		},
	}

	repoCommits, _, err := c.apiClient.Repositories.ListCommits(ctx, owner, name, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list commits: %w", err)
	}

	commits := make([]types.Commit, 0, len(repoCommits))
	for _, rc := range repoCommits {
		commit := types.Commit{SHA: rc.GetSHA()}
		if gc := rc.GetCommit(); gc != nil {
			commit.Message = gc.GetMessage()
			if author := gc.GetAuthor(); author != nil {
				commit.AuthorName = author.GetName()
				commit.AuthorEmail = author.GetEmail()
				commit.AuthoredAt = author.GetDate().Time
			}
		}
		if user := rc.GetAuthor(); user != nil {
			commit.AuthorLogin = user.GetLogin()
		}
		commits = append(commits, commit)
	}

	c.logger.Info("listed commits",
		zap.String("repository", owner+"/"+name),
		zap.String("branch", branch),
		zap.Int("count", len(commits)),
	)

	return commits, nil
}

// AuthenticatedLogin returns the username the API token belongs to
func (c *Client) AuthenticatedLogin(ctx context.Context) (string, error) {
	user, _, err := c.apiClient.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("failed to get authenticated user: %w", err)
	}

	return user.GetLogin(), nil
}
