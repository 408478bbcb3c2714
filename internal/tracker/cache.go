package tracker

import (
	"context"
	"sync"

	"github.com/clintrovert/praxis/pkg/types"
)

// candidateCache memoizes the host's repository listing so one fetch
// serves every run in the session. Fetch failures are not cached; the
// next run retries
type candidateCache struct {
	host RepoHost

	mu     sync.RWMutex
	cached []types.RepositoryCandidate
	valid  bool
}

func newCandidateCache(host RepoHost) *candidateCache {
	return &candidateCache{host: host}
}

// candidates returns the cached listing, fetching it on first use
func (c *candidateCache) candidates(ctx context.Context) ([]types.RepositoryCandidate, error) {
	c.mu.RLock()
	if c.valid {
		cached := c.cached
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid {
		return c.cached, nil
	}

	listing, err := c.host.ListRepositories(ctx)
	if err != nil {
		return nil, err
	}
	c.cached = listing
	c.valid = true
	return listing, nil
}

// invalidate drops the cached listing so the next run re-fetches it
func (c *candidateCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = nil
	c.valid = false
}
