package tracker

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/clintrovert/praxis/pkg/types"
)

// ErrRepoUnresolved reports that every location strategy came up empty
var ErrRepoUnresolved = errors.New("could not auto-detect repository")

const (
	defaultScanRepoLimit   = 5
	defaultScanCommitLimit = 10
)

// LocatorConfig holds the knobs for repository resolution
type LocatorConfig struct {
	// DefaultRepository is the operator-configured "owner/name" fallback
	// used when no other strategy succeeds. Optional
	DefaultRepository string
	// DefaultBranch is the branch assumed primary when the host does not
	// say otherwise, e.g. "main"
	DefaultBranch string
	// ScanRepoLimit caps how many recently updated candidates the
	// activity scan inspects
	ScanRepoLimit int
	// ScanCommitLimit caps how many commits the scan reads per candidate
	ScanCommitLimit int
}

// LocateInput carries everything one resolution attempt needs
type LocateInput struct {
	ProjectKey  string
	ProjectName string
	ItemKey     string
	Identity    string
	Candidates  []types.RepositoryCandidate
	// ManualRepo is an explicit "owner/name" confirmation from the
	// caller; when set it wins and is persisted for the project
	ManualRepo string
}

// Location is a successful repository resolution. Branch is set only when
// the activity scan already fixed the branch it matched on
type Location struct {
	Owner      string
	Name       string
	Branch     string
	Confidence string
}

// Locator resolves which repository, and if possible which branch, a
// story's work lives in
type Locator struct {
	store  MappingStore
	host   RepoHost
	cfg    LocatorConfig
	logger *zap.Logger
}

// NewLocator creates a repository locator backed by the mapping store and
// the repository host
func NewLocator(store MappingStore, host RepoHost, cfg LocatorConfig, logger *zap.Logger) *Locator {
	if cfg.ScanRepoLimit <= 0 {
		cfg.ScanRepoLimit = defaultScanRepoLimit
	}
	if cfg.ScanCommitLimit <= 0 {
		cfg.ScanCommitLimit = defaultScanCommitLimit
	}
	return &Locator{
		store:  store,
		host:   host,
		cfg:    cfg,
		logger: logger,
	}
}

type locateStrategy struct {
	name string
	fn   func(ctx context.Context, in LocateInput) (Location, bool, error)
}

// Locate tries each strategy in order and returns the first hit: manual
// confirmation, learned mapping, name heuristics, recent-activity scan,
// configured default. ErrRepoUnresolved when all of them miss
func (l *Locator) Locate(ctx context.Context, in LocateInput) (Location, error) {
	strategies := []locateStrategy{
		{"manual", l.fromManual},
		{"learned", l.fromMapping},
		{"name-match", l.fromNameHeuristics},
		{"scanned", l.fromActivityScan},
		{"default", l.fromDefault},
	}

	for _, strategy := range strategies {
		location, ok, err := strategy.fn(ctx, in)
		if err != nil {
			return Location{}, err
		}
		if !ok {
			continue
		}
		l.logger.Info("located repository",
			zap.String("item", in.ItemKey),
			zap.String("repository", location.Owner+"/"+location.Name),
			zap.String("confidence", location.Confidence),
		)
		return location, nil
	}

	return Location{}, ErrRepoUnresolved
}

// fromManual honors an explicit confirmation and persists it as the
// project's learned mapping. A malformed value is a caller error
func (l *Locator) fromManual(_ context.Context, in LocateInput) (Location, bool, error) {
	if in.ManualRepo == "" {
		return Location{}, false, nil
	}
	ref, err := types.ParseRepository(in.ManualRepo)
	if err != nil {
		return Location{}, false, err
	}
	if err := l.store.Save(in.ProjectKey, ref.FullName()); err != nil {
		l.logger.Error("failed to persist manual repository",
			zap.String("project", in.ProjectKey),
			zap.Error(err),
		)
	}
	return Location{Owner: ref.Owner, Name: ref.Name, Confidence: types.ConfidenceManual}, true, nil
}

func (l *Locator) fromMapping(_ context.Context, in LocateInput) (Location, bool, error) {
	repository, ok, err := l.store.Get(in.ProjectKey)
	if err != nil {
		l.logger.Warn("failed to read repository mapping", zap.Error(err))
		return Location{}, false, nil
	}
	if !ok {
		return Location{}, false, nil
	}
	ref, err := types.ParseRepository(repository)
	if err != nil {
		l.logger.Warn("ignoring malformed learned mapping",
			zap.String("project", in.ProjectKey),
			zap.String("repository", repository),
		)
		return Location{}, false, nil
	}
	return Location{Owner: ref.Owner, Name: ref.Name, Confidence: types.ConfidenceLearned}, true, nil
}

// fromNameHeuristics scores candidate names against the project key and
// the normalized project name. Rules run strictly in priority order, so a
// weaker rule never beats a stronger one on an earlier candidate
func (l *Locator) fromNameHeuristics(_ context.Context, in LocateInput) (Location, bool, error) {
	key := strings.ToLower(in.ProjectKey)
	projectName := normalizeProjectName(in.ProjectName)

	rules := []func(name string) bool{
		func(name string) bool { return name == key },
		func(name string) bool { return name == key+"-app" || name == "jira-"+key },
		func(name string) bool { return len(key) > 2 && strings.Contains(name, key) },
		func(name string) bool { return len(projectName) > 3 && strings.Contains(name, projectName) },
	}

	for _, rule := range rules {
		for _, candidate := range in.Candidates {
			if rule(strings.ToLower(candidate.Name)) {
				return Location{
					Owner:      candidate.Owner,
					Name:       candidate.Name,
					Confidence: types.ConfidenceNameMatch,
				}, true, nil
			}
		}
	}
	return Location{}, false, nil
}

// fromActivityScan reads a few recent commits from the most recently
// updated candidates and looks for mentions of the item key or the
// project's key prefix. A hit fixes the branch to the branch that was
// scanned. Unreachable candidates are skipped, not fatal
func (l *Locator) fromActivityScan(ctx context.Context, in LocateInput) (Location, bool, error) {
	candidates := make([]types.RepositoryCandidate, len(in.Candidates))
	copy(candidates, in.Candidates)
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].UpdatedAt.After(candidates[j].UpdatedAt)
	})
	if len(candidates) > l.cfg.ScanRepoLimit {
		candidates = candidates[:l.cfg.ScanRepoLimit]
	}

	itemPattern := strings.ToLower(in.ItemKey)
	projectPattern := strings.ToLower(in.ProjectKey) + "-"

	for _, candidate := range candidates {
		commits, err := l.host.ListCommits(ctx, candidate.Owner, candidate.Name, "", time.Time{})
		if err != nil {
			l.logger.Warn("activity scan skipping repository",
				zap.String("repository", candidate.FullName),
				zap.Error(err),
			)
			continue
		}
		if len(commits) > l.cfg.ScanCommitLimit {
			commits = commits[:l.cfg.ScanCommitLimit]
		}
		for _, commit := range commits {
			message := strings.ToLower(commit.Message)
			if strings.Contains(message, itemPattern) || strings.Contains(message, projectPattern) {
				return Location{
					Owner:      candidate.Owner,
					Name:       candidate.Name,
					Branch:     candidate.DefaultBranch,
					Confidence: types.ConfidenceScanned,
				}, true, nil
			}
		}
	}
	return Location{}, false, nil
}

func (l *Locator) fromDefault(_ context.Context, in LocateInput) (Location, bool, error) {
	if l.cfg.DefaultRepository == "" {
		return Location{}, false, nil
	}
	ref, err := types.ParseRepository(l.cfg.DefaultRepository)
	if err != nil {
		l.logger.Warn("ignoring malformed default repository",
			zap.String("repository", l.cfg.DefaultRepository),
		)
		return Location{}, false, nil
	}
	return Location{Owner: ref.Owner, Name: ref.Name, Confidence: types.ConfidenceDefault}, true, nil
}

// DetectBranch picks the branch a story's work most likely lives on: an
// exact case-insensitive match on the item key, then the first branch
// containing it, then the primary branch. Listing failures fall back to
// the primary branch rather than aborting the run
func (l *Locator) DetectBranch(ctx context.Context, owner, name, itemKey, primary string) string {
	if primary == "" {
		primary = l.cfg.DefaultBranch
	}

	branches, err := l.host.ListBranches(ctx, owner, name)
	if err != nil {
		l.logger.Warn("failed to list branches",
			zap.String("repository", owner+"/"+name),
			zap.Error(err),
		)
		return primary
	}

	for _, branch := range branches {
		if strings.EqualFold(branch, itemKey) {
			return branch
		}
	}
	key := strings.ToLower(itemKey)
	for _, branch := range branches {
		if strings.Contains(strings.ToLower(branch), key) {
			return branch
		}
	}
	return primary
}

// normalizeProjectName lowercases a project name and joins words with
// hyphens, the shape repository names usually take
func normalizeProjectName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}
