package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/clintrovert/praxis/internal/validate"
	"github.com/clintrovert/praxis/pkg/types"
)

type fakeIssues struct {
	mu sync.Mutex

	stories       map[string]*types.Story
	comments      map[string][]types.Comment
	searchResults []*types.Story

	getErr     error
	commentErr error
	searchErr  error

	getCalls     int
	commentCalls int

	maxConcurrent int
	inFlight      int

	lastSearchProject string
	lastSearchEmail   string
}

func (f *fakeIssues) GetStory(_ context.Context, key string) (*types.Story, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	story, ok := f.stories[key]
	if !ok {
		return nil, fmt.Errorf("failed to fetch story %s: not found", key)
	}
	return story, nil
}

func (f *fakeIssues) GetComments(_ context.Context, key string) ([]types.Comment, error) {
	f.mu.Lock()
	f.commentCalls++
	f.inFlight++
	if f.inFlight > f.maxConcurrent {
		f.maxConcurrent = f.inFlight
	}
	f.mu.Unlock()

	// Hold the slot briefly so overlapping fan-out workers overlap here
	time.Sleep(2 * time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	if f.commentErr != nil {
		return nil, f.commentErr
	}
	return f.comments[key], nil
}

func (f *fakeIssues) SearchStories(_ context.Context, projectKey, assigneeEmail string) ([]*types.Story, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSearchProject = projectKey
	f.lastSearchEmail = assigneeEmail
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchResults, nil
}

type fakeHost struct {
	mu sync.Mutex

	repos    []types.RepositoryCandidate
	branches map[string][]string
	// commits is keyed "owner/name"; "owner/name@branch" overrides for
	// one branch
	commits map[string][]types.Commit

	reposErr    error
	branchesErr error
	commitsErr  error

	repoCalls   int
	branchCalls int
	commitCalls int

	lastBranch string
	lastSince  time.Time
}

func (f *fakeHost) ListRepositories(_ context.Context) ([]types.RepositoryCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repoCalls++
	if f.reposErr != nil {
		return nil, f.reposErr
	}
	return f.repos, nil
}

func (f *fakeHost) ListBranches(_ context.Context, owner, name string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.branchCalls++
	if f.branchesErr != nil {
		return nil, f.branchesErr
	}
	return f.branches[owner+"/"+name], nil
}

func (f *fakeHost) ListCommits(_ context.Context, owner, name, branch string, since time.Time) ([]types.Commit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commitCalls++
	f.lastBranch = branch
	f.lastSince = since
	if f.commitsErr != nil {
		return nil, f.commitsErr
	}
	key := owner + "/" + name
	if branch != "" {
		if commits, ok := f.commits[key+"@"+branch]; ok {
			return commits, nil
		}
	}
	return f.commits[key], nil
}

func (f *fakeHost) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.repoCalls + f.branchCalls + f.commitCalls
}

type fakeStore struct {
	mu sync.Mutex

	mappings map[string]string
	getErr   error
	saveErr  error
	saves    int
}

func (f *fakeStore) Get(projectKey string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", false, f.getErr
	}
	repository, ok := f.mappings[projectKey]
	return repository, ok, nil
}

func (f *fakeStore) Save(projectKey, repository string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.mappings == nil {
		f.mappings = make(map[string]string)
	}
	f.mappings[projectKey] = repository
	return nil
}

type fakeLogins struct {
	mu    sync.Mutex
	login string
	err   error
	calls int
}

func (f *fakeLogins) AuthenticatedLogin(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.login, f.err
}

type fakeValidator struct {
	mu sync.Mutex

	report *types.ValidationReport
	err    error

	calls       int
	gotSummary  string
	gotMessages []string
}

func (f *fakeValidator) Summarize(_ context.Context, storySummary, _ string, commitMessages []string) (*types.ValidationReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotSummary = storySummary
	f.gotMessages = commitMessages
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

// trackerParts assembles a Tracker around fakes, filling in the pieces a
// test does not care about
type trackerParts struct {
	issues    *fakeIssues
	host      *fakeHost
	store     *fakeStore
	logins    *fakeLogins
	validator *fakeValidator
	mapping   map[string]string
	locCfg    LocatorConfig
	cfg       Config
}

func (p trackerParts) build() *Tracker {
	logger := zap.NewNop()
	if p.issues == nil {
		p.issues = &fakeIssues{}
	}
	if p.host == nil {
		p.host = &fakeHost{}
	}
	if p.store == nil {
		p.store = &fakeStore{}
	}
	if p.locCfg.DefaultBranch == "" {
		p.locCfg.DefaultBranch = "main"
	}

	var logins LoginSource
	if p.logins != nil {
		logins = p.logins
	}
	var validator validate.Validator
	if p.validator != nil {
		validator = p.validator
	}
	resolver := NewResolver(p.mapping, logins, logger)
	locator := NewLocator(p.store, p.host, p.locCfg, logger)
	matcher := NewMatcher(p.host, 0, logger)

	return NewTracker(p.issues, p.host, resolver, locator, matcher, validator, p.cfg, logger)
}

func storyFixture(key string) *types.Story {
	return &types.Story{
		Key:         key,
		ProjectKey:  types.ProjectKeyOf(key),
		ProjectName: "Kanban Board",
		Summary:     "Implement login flow",
		Status:      "In Progress",
		Assignee:    &types.Assignee{DisplayName: "Jane Doe", Email: "jane.doe@co.com"},
		Created:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}
