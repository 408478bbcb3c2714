package tracker

import (
	"context"
	"time"

	"github.com/clintrovert/praxis/pkg/types"
)

// IssueService is the issue tracker surface the engine consumes
type IssueService interface {
	GetStory(ctx context.Context, key string) (*types.Story, error)
	GetComments(ctx context.Context, key string) ([]types.Comment, error)
	SearchStories(ctx context.Context, projectKey, assigneeEmail string) ([]*types.Story, error)
}

// RepoHost is the repository host surface the engine consumes. Reads are
// idempotent; implementations may be called concurrently
type RepoHost interface {
	ListRepositories(ctx context.Context) ([]types.RepositoryCandidate, error)
	ListBranches(ctx context.Context, owner, name string) ([]string, error)
	ListCommits(ctx context.Context, owner, name, branch string, since time.Time) ([]types.Commit, error)
}

// LoginSource reveals the username behind the host credentials
type LoginSource interface {
	AuthenticatedLogin(ctx context.Context) (string, error)
}

// MappingStore persists learned project-to-repository associations
type MappingStore interface {
	Get(projectKey string) (string, bool, error)
	Save(projectKey, repository string) error
}
