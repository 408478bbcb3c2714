package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clintrovert/praxis/internal/validate"
	"github.com/clintrovert/praxis/pkg/types"
)

const defaultWorkers = 4

// Config holds the orchestration knobs
type Config struct {
	// Workers bounds how many stories are tracked concurrently during
	// project and assignee fan-out
	Workers int
	// RequestTimeout caps each external step of a run; zero disables the
	// per-step deadline
	RequestTimeout time.Duration
}

// Tracker sequences one story's run from tracker fetch to work-status
// classification, and fans the pipeline out across a project's or an
// assignee's stories
type Tracker struct {
	issues    IssueService
	resolver  *Resolver
	locator   *Locator
	matcher   *Matcher
	validator validate.Validator
	cache     *candidateCache
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
}

// TrackOptions carries the manual inputs of one run
type TrackOptions struct {
	// Identity overrides identity resolution entirely
	Identity string
	// Repository is an explicit "owner/name" confirmation; it wins over
	// every location strategy and is persisted for the project
	Repository string
	// Validate asks the external validation collaborator for a verdict
	// when at least one commit matched
	Validate bool
}

// NewTracker assembles the tracking engine. validator may be nil, which
// disables validation regardless of TrackOptions
func NewTracker(
	issues IssueService,
	host RepoHost,
	resolver *Resolver,
	locator *Locator,
	matcher *Matcher,
	validator validate.Validator,
	cfg Config,
	logger *zap.Logger,
) *Tracker {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	return &Tracker{
		issues:    issues,
		resolver:  resolver,
		locator:   locator,
		matcher:   matcher,
		validator: validator,
		cache:     newCandidateCache(host),
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// InvalidateCandidates drops the session's cached repository listing so
// the next run sees newly created repositories
func (t *Tracker) InvalidateCandidates() {
	t.cache.invalidate()
}

// TrackStory runs the full pipeline for one story key. Failures never
// panic and never abort siblings; they land in the result's Error field
func (t *Tracker) TrackStory(ctx context.Context, key string, opts TrackOptions) *types.TrackingResult {
	result := t.newResult(key)

	story, err := t.getStory(ctx, key)
	if err != nil {
		t.fail(result, types.ErrorItemNotFound, err)
		return result
	}

	return t.trackFetched(ctx, story, opts, result)
}

// trackFetched runs the pipeline for a story that is already in hand,
// which lets fan-out skip a second tracker fetch
func (t *Tracker) trackFetched(ctx context.Context, story *types.Story, opts TrackOptions, result *types.TrackingResult) *types.TrackingResult {
	result.StoryKey = story.Key
	result.Summary = story.Summary
	result.TrackerStatus = story.Status
	result.Assignee = story.Assignee

	identity, err := t.resolver.Resolve(ctx, story.Assignee, opts.Identity)
	if err != nil {
		result.WorkStatus = StatusNoIdentity
		t.fail(result, types.ErrorNoIdentity, err)
		return result
	}
	result.Identity = &identity

	// Comments are context for the reader, never a reason to stop
	if comments, err := t.getComments(ctx, story.Key); err != nil {
		result.CommentsError = err.Error()
		t.logger.Warn("failed to fetch comments", zap.String("story", story.Key), zap.Error(err))
	} else {
		result.Comments = comments
	}

	candidates, err := t.getCandidates(ctx)
	if err != nil {
		// Mapping, manual, and default strategies can still resolve
		t.logger.Warn("failed to list candidate repositories", zap.Error(err))
	}

	location, err := t.locate(ctx, story, identity.Value, candidates, opts.Repository)
	if err != nil {
		result.WorkStatus = StatusRepoUnknown
		t.fail(result, types.ErrorRepoUnresolved, err)
		return result
	}

	branch := location.Branch
	if branch == "" {
		branch = t.detectBranch(ctx, location, story.Key, defaultBranchOf(candidates, location.Owner, location.Name))
	}
	result.Repository = &types.RepositoryRef{
		Owner:      location.Owner,
		Name:       location.Name,
		Branch:     branch,
		Confidence: location.Confidence,
	}

	matched, err := t.match(ctx, location, branch, identity.Value, story)
	if err != nil {
		t.fail(result, types.ErrorCommitFetchFailed, err)
		return result
	}
	result.Commits = matched
	result.CommitCount = len(matched)
	result.WorkStatus = Classify(matched, t.now())

	if opts.Validate && t.validator != nil && len(matched) > 0 {
		t.validate(ctx, story, result)
	}

	t.logger.Info("tracked story",
		zap.String("story", story.Key),
		zap.String("repository", result.Repository.FullName()),
		zap.String("branch", branch),
		zap.Int("commits", result.CommitCount),
		zap.String("work_status", result.WorkStatus),
	)
	return result
}

// TrackProject tracks every story in a project and aggregates the results
// into a report. Individual failures stay inside their results
func (t *Tracker) TrackProject(ctx context.Context, projectKey string, opts TrackOptions) (*types.ProjectReport, error) {
	stories, err := t.searchStories(ctx, projectKey, "")
	if err != nil {
		return nil, err
	}

	results := t.trackAll(ctx, stories, opts)

	return &types.ProjectReport{
		ProjectKey:  projectKey,
		GeneratedAt: t.now(),
		Results:     results,
		Summary:     summarize(results),
		ByStatus:    groupByStatus(results),
		ByAssignee:  groupByAssignee(results),
	}, nil
}

// TrackAssignee tracks the stories assigned to one person, optionally
// narrowed to a project
func (t *Tracker) TrackAssignee(ctx context.Context, assigneeEmail, projectKey string, opts TrackOptions) (*types.AssigneeReport, error) {
	stories, err := t.searchStories(ctx, projectKey, assigneeEmail)
	if err != nil {
		return nil, err
	}

	results := t.trackAll(ctx, stories, opts)

	return &types.AssigneeReport{
		AssigneeEmail: assigneeEmail,
		ProjectKey:    projectKey,
		GeneratedAt:   t.now(),
		Results:       results,
		Summary:       summarize(results),
	}, nil
}

// trackAll fans the pipeline out across stories under a bounded worker
// pool. Results keep the input order regardless of completion order
func (t *Tracker) trackAll(ctx context.Context, stories []*types.Story, opts TrackOptions) []*types.TrackingResult {
	results := make([]*types.TrackingResult, len(stories))
	sem := make(chan struct{}, t.cfg.Workers)
	var wg sync.WaitGroup

	for i, story := range stories {
		wg.Add(1)
		go func(i int, story *types.Story) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = t.trackFetched(ctx, story, opts, t.newResult(story.Key))
		}(i, story)
	}

	wg.Wait()
	return results
}

func (t *Tracker) newResult(key string) *types.TrackingResult {
	return &types.TrackingResult{
		RunID:     uuid.NewString(),
		StoryKey:  key,
		Commits:   []types.MatchedCommit{},
		TrackedAt: t.now(),
	}
}

// fail records a structured error on the result, reclassifying deadline
// expiry from either collaborator as an external timeout
func (t *Tracker) fail(result *types.TrackingResult, kind types.ErrorKind, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		kind = types.ErrorExternalTimeout
	}
	result.Error = &types.TrackError{Kind: kind, Message: err.Error()}
	t.logger.Warn("tracking run failed",
		zap.String("story", result.StoryKey),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
}

func (t *Tracker) validate(ctx context.Context, story *types.Story, result *types.TrackingResult) {
	messages := make([]string, 0, len(result.Commits))
	for _, commit := range result.Commits {
		messages = append(messages, commit.Message)
	}

	ctx, cancel := t.stepContext(ctx)
	defer cancel()
	report, err := t.validator.Summarize(ctx, story.Summary, story.Description, messages)
	if err != nil {
		// Validation is advisory; the classification already stands
		t.logger.Warn("validation failed", zap.String("story", story.Key), zap.Error(err))
		return
	}
	result.Validation = report
}

// Per-step deadline wrappers around the collaborators

func (t *Tracker) getStory(ctx context.Context, key string) (*types.Story, error) {
	ctx, cancel := t.stepContext(ctx)
	defer cancel()
	return t.issues.GetStory(ctx, key)
}

func (t *Tracker) getComments(ctx context.Context, key string) ([]types.Comment, error) {
	ctx, cancel := t.stepContext(ctx)
	defer cancel()
	return t.issues.GetComments(ctx, key)
}

func (t *Tracker) searchStories(ctx context.Context, projectKey, assigneeEmail string) ([]*types.Story, error) {
	ctx, cancel := t.stepContext(ctx)
	defer cancel()
	return t.issues.SearchStories(ctx, projectKey, assigneeEmail)
}

func (t *Tracker) getCandidates(ctx context.Context) ([]types.RepositoryCandidate, error) {
	ctx, cancel := t.stepContext(ctx)
	defer cancel()
	return t.cache.candidates(ctx)
}

func (t *Tracker) locate(ctx context.Context, story *types.Story, identity string, candidates []types.RepositoryCandidate, manualRepo string) (Location, error) {
	ctx, cancel := t.stepContext(ctx)
	defer cancel()
	return t.locator.Locate(ctx, LocateInput{
		ProjectKey:  story.ProjectKey,
		ProjectName: story.ProjectName,
		ItemKey:     story.Key,
		Identity:    identity,
		Candidates:  candidates,
		ManualRepo:  manualRepo,
	})
}

func (t *Tracker) detectBranch(ctx context.Context, location Location, itemKey, primary string) string {
	ctx, cancel := t.stepContext(ctx)
	defer cancel()
	return t.locator.DetectBranch(ctx, location.Owner, location.Name, itemKey, primary)
}

func (t *Tracker) match(ctx context.Context, location Location, branch, identity string, story *types.Story) ([]types.MatchedCommit, error) {
	ctx, cancel := t.stepContext(ctx)
	defer cancel()
	return t.matcher.Match(ctx, MatchInput{
		Owner:    location.Owner,
		Name:     location.Name,
		Branch:   branch,
		Identity: identity,
		ItemKey:  story.Key,
		Since:    story.Created,
	})
}

func (t *Tracker) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.cfg.RequestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, t.cfg.RequestTimeout)
}

func defaultBranchOf(candidates []types.RepositoryCandidate, owner, name string) string {
	for _, candidate := range candidates {
		if candidate.Owner == owner && candidate.Name == name {
			return candidate.DefaultBranch
		}
	}
	return ""
}

// summarize rolls activity counters up across one fan-out's results
func summarize(results []*types.TrackingResult) types.ReportSummary {
	summary := types.ReportSummary{TotalStories: len(results)}
	for _, result := range results {
		summary.TotalCommits += result.CommitCount
		if result.CommitCount > 0 {
			summary.WithActivity++
		} else {
			summary.WithoutActivity++
		}
	}
	if summary.TotalStories > 0 {
		summary.ActivityRate = float64(summary.WithActivity) / float64(summary.TotalStories)
	}
	return summary
}

func groupByStatus(results []*types.TrackingResult) map[string][]string {
	groups := make(map[string][]string)
	for _, result := range results {
		bucket := types.StatusBucket(result.WorkStatus)
		groups[bucket] = append(groups[bucket], result.StoryKey)
	}
	return groups
}

func groupByAssignee(results []*types.TrackingResult) map[string]*types.AssigneeActivity {
	groups := make(map[string]*types.AssigneeActivity)
	for _, result := range results {
		name := "Unassigned"
		if result.Assignee != nil && result.Assignee.DisplayName != "" {
			name = result.Assignee.DisplayName
		}
		activity := groups[name]
		if activity == nil {
			activity = &types.AssigneeActivity{}
			groups[name] = activity
		}
		activity.Total++
		switch types.StatusBucket(result.WorkStatus) {
		case "Active":
			activity.Active++
		case "Stale":
			activity.Stale++
		default:
			activity.NotStarted++
		}
	}
	return groups
}
