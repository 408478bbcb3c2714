package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/clintrovert/praxis/pkg/types"
)

func TestCandidateCacheSingleFetch(t *testing.T) {
	t.Parallel()

	host := &fakeHost{repos: []types.RepositoryCandidate{
		candidateFixture("acme", "app", time.Now()),
	}}
	cache := newCandidateCache(host)

	for i := 0; i < 3; i++ {
		candidates, err := cache.candidates(context.Background())
		if err != nil {
			t.Fatalf("candidates: %v", err)
		}
		if len(candidates) != 1 {
			t.Fatalf("got %d candidates, want 1", len(candidates))
		}
	}
	if host.repoCalls != 1 {
		t.Errorf("host fetches = %d, want 1", host.repoCalls)
	}
}

func TestCandidateCacheDoesNotCacheFailure(t *testing.T) {
	t.Parallel()

	host := &fakeHost{reposErr: errors.New("boom")}
	cache := newCandidateCache(host)

	if _, err := cache.candidates(context.Background()); err == nil {
		t.Fatal("candidates succeeded, want error")
	}

	host.mu.Lock()
	host.reposErr = nil
	host.repos = []types.RepositoryCandidate{candidateFixture("acme", "app", time.Now())}
	host.mu.Unlock()

	candidates, err := cache.candidates(context.Background())
	if err != nil {
		t.Fatalf("candidates after recovery: %v", err)
	}
	if len(candidates) != 1 {
		t.Errorf("got %d candidates, want 1", len(candidates))
	}
}

func TestCandidateCacheInvalidate(t *testing.T) {
	t.Parallel()

	host := &fakeHost{}
	cache := newCandidateCache(host)

	if _, err := cache.candidates(context.Background()); err != nil {
		t.Fatalf("candidates: %v", err)
	}
	cache.invalidate()
	if _, err := cache.candidates(context.Background()); err != nil {
		t.Fatalf("candidates: %v", err)
	}

	if host.repoCalls != 2 {
		t.Errorf("host fetches = %d, want 2 after invalidate", host.repoCalls)
	}
}

func TestCandidateCacheConcurrent(t *testing.T) {
	t.Parallel()

	host := &fakeHost{}
	cache := newCandidateCache(host)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.candidates(context.Background()); err != nil {
				t.Errorf("candidates: %v", err)
			}
		}()
	}
	wg.Wait()

	if host.repoCalls != 1 {
		t.Errorf("host fetches = %d, want 1", host.repoCalls)
	}
}
