package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/clintrovert/praxis/pkg/types"
)

func newTestLocator(store MappingStore, host RepoHost, cfg LocatorConfig) *Locator {
	if cfg.DefaultBranch == "" {
		cfg.DefaultBranch = "main"
	}
	return NewLocator(store, host, cfg, zap.NewNop())
}

func candidateFixture(owner, name string, updated time.Time) types.RepositoryCandidate {
	return types.RepositoryCandidate{
		Owner:         owner,
		Name:          name,
		FullName:      owner + "/" + name,
		DefaultBranch: "main",
		UpdatedAt:     updated,
	}
}

func TestLocateManualWinsAndPersists(t *testing.T) {
	t.Parallel()

	store := &fakeStore{mappings: map[string]string{"KAN": "acme/learned"}}
	locator := newTestLocator(store, &fakeHost{}, LocatorConfig{})

	location, err := locator.Locate(context.Background(), LocateInput{
		ProjectKey: "KAN",
		ItemKey:    "KAN-25",
		ManualRepo: "acme/manual",
	})
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if location.Confidence != types.ConfidenceManual {
		t.Errorf("confidence = %q, want %q", location.Confidence, types.ConfidenceManual)
	}
	if location.Owner != "acme" || location.Name != "manual" {
		t.Errorf("located %s/%s, want acme/manual", location.Owner, location.Name)
	}
	if got := store.mappings["KAN"]; got != "acme/manual" {
		t.Errorf("persisted mapping = %q, want %q", got, "acme/manual")
	}

	// A follow-up locate without the manual input round-trips the
	// persisted value even when heuristics would prefer another name
	again, err := locator.Locate(context.Background(), LocateInput{
		ProjectKey: "KAN",
		ItemKey:    "KAN-26",
		Candidates: []types.RepositoryCandidate{candidateFixture("acme", "kan-app", time.Now())},
	})
	if err != nil {
		t.Fatalf("Locate after save: %v", err)
	}
	if again.Owner != "acme" || again.Name != "manual" {
		t.Errorf("located %s/%s after save, want acme/manual", again.Owner, again.Name)
	}
	if again.Confidence != types.ConfidenceLearned {
		t.Errorf("confidence = %q, want %q", again.Confidence, types.ConfidenceLearned)
	}
}

func TestLocateManualMalformed(t *testing.T) {
	t.Parallel()

	locator := newTestLocator(&fakeStore{}, &fakeHost{}, LocatorConfig{})

	_, err := locator.Locate(context.Background(), LocateInput{
		ProjectKey: "KAN",
		ItemKey:    "KAN-25",
		ManualRepo: "not-a-repo",
	})
	if err == nil {
		t.Fatal("Locate accepted a malformed manual repository")
	}
}

func TestLocateLearnedMapping(t *testing.T) {
	t.Parallel()

	// The candidate list holds a repository the name heuristics would
	// pick; the learned mapping still wins
	store := &fakeStore{mappings: map[string]string{"KAN": "acme/learned"}}
	host := &fakeHost{}
	locator := newTestLocator(store, host, LocatorConfig{})

	location, err := locator.Locate(context.Background(), LocateInput{
		ProjectKey: "KAN",
		ItemKey:    "KAN-25",
		Candidates: []types.RepositoryCandidate{candidateFixture("acme", "kan-app", time.Now())},
	})
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if location.Confidence != types.ConfidenceLearned {
		t.Errorf("confidence = %q, want %q", location.Confidence, types.ConfidenceLearned)
	}
	if location.Name != "learned" {
		t.Errorf("located %q, want the learned mapping, not the heuristic match", location.Name)
	}
	if host.totalCalls() != 0 {
		t.Errorf("host calls = %d, want 0 for a learned mapping", host.totalCalls())
	}
}

func TestLocateNameHeuristicPriority(t *testing.T) {
	t.Parallel()

	// The exact-name rule outranks the suffix rule even when the suffix
	// candidate comes first in the listing
	candidates := []types.RepositoryCandidate{
		candidateFixture("acme", "kan-app", time.Now()),
		candidateFixture("acme", "kan", time.Now()),
	}
	locator := newTestLocator(&fakeStore{}, &fakeHost{}, LocatorConfig{})

	location, err := locator.Locate(context.Background(), LocateInput{
		ProjectKey: "KAN",
		ItemKey:    "KAN-25",
		Candidates: candidates,
	})
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if location.Name != "kan" {
		t.Errorf("located %q, want exact match %q", location.Name, "kan")
	}
	if location.Confidence != types.ConfidenceNameMatch {
		t.Errorf("confidence = %q, want %q", location.Confidence, types.ConfidenceNameMatch)
	}
}

func TestLocateConventionalNames(t *testing.T) {
	t.Parallel()

	cases := []string{"kan-app", "jira-kan"}
	for _, name := range cases {
		locator := newTestLocator(&fakeStore{}, &fakeHost{}, LocatorConfig{})
		location, err := locator.Locate(context.Background(), LocateInput{
			ProjectKey: "KAN",
			ItemKey:    "KAN-25",
			Candidates: []types.RepositoryCandidate{candidateFixture("acme", name, time.Now())},
		})
		if err != nil {
			t.Fatalf("Locate(%s): %v", name, err)
		}
		if location.Name != name {
			t.Errorf("located %q, want %q", location.Name, name)
		}
	}
}

func TestLocateShortKeyNeverSubstringMatches(t *testing.T) {
	t.Parallel()

	// A two-letter key inside an unrelated name must not match
	locator := newTestLocator(&fakeStore{}, &fakeHost{}, LocatorConfig{})

	_, err := locator.Locate(context.Background(), LocateInput{
		ProjectKey: "AB",
		ItemKey:    "AB-1",
		Candidates: []types.RepositoryCandidate{candidateFixture("acme", "lab-service", time.Now())},
	})
	if !errors.Is(err, ErrRepoUnresolved) {
		t.Fatalf("error = %v, want ErrRepoUnresolved", err)
	}
}

func TestLocateProjectNameMatch(t *testing.T) {
	t.Parallel()

	locator := newTestLocator(&fakeStore{}, &fakeHost{}, LocatorConfig{})

	location, err := locator.Locate(context.Background(), LocateInput{
		ProjectKey:  "ZZZ",
		ProjectName: "Payment Platform",
		ItemKey:     "ZZZ-9",
		Candidates:  []types.RepositoryCandidate{candidateFixture("acme", "payment-platform-api", time.Now())},
	})
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if location.Name != "payment-platform-api" {
		t.Errorf("located %q, want payment-platform-api", location.Name)
	}
}

func TestLocateActivityScan(t *testing.T) {
	t.Parallel()

	now := time.Now()
	host := &fakeHost{
		commits: map[string][]types.Commit{
			"acme/misc":    {{SHA: "1", Message: "chore: bump deps"}},
			"acme/backend": {{SHA: "2", Message: "fixed kan-25 login redirect"}},
		},
	}
	candidates := []types.RepositoryCandidate{
		candidateFixture("acme", "misc", now),
		candidateFixture("acme", "backend", now.Add(-time.Hour)),
	}
	store := &fakeStore{}
	locator := newTestLocator(store, host, LocatorConfig{})

	location, err := locator.Locate(context.Background(), LocateInput{
		ProjectKey: "KAN",
		ItemKey:    "KAN-25",
		Candidates: candidates,
	})
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if location.Confidence != types.ConfidenceScanned {
		t.Errorf("confidence = %q, want %q", location.Confidence, types.ConfidenceScanned)
	}
	if location.Name != "backend" {
		t.Errorf("located %q, want backend", location.Name)
	}
	if location.Branch != "main" {
		t.Errorf("scan fixed branch %q, want main", location.Branch)
	}
	if store.saves != 0 {
		t.Errorf("scan persisted a mapping; saves = %d, want 0", store.saves)
	}
}

func TestLocateActivityScanRepoLimit(t *testing.T) {
	t.Parallel()

	// The mention lives in the sixth most recently updated candidate,
	// one past the scan window
	now := time.Now()
	host := &fakeHost{commits: map[string][]types.Commit{}}
	var candidates []types.RepositoryCandidate
	for i := 0; i < 6; i++ {
		name := string(rune('a' + i))
		candidates = append(candidates, candidateFixture("acme", name, now.Add(-time.Duration(i)*time.Hour)))
		host.commits["acme/"+name] = []types.Commit{{SHA: name, Message: "routine maintenance"}}
	}
	host.commits["acme/f"] = []types.Commit{{SHA: "f", Message: "KAN-25 hidden too deep"}}

	locator := newTestLocator(&fakeStore{}, host, LocatorConfig{ScanRepoLimit: 5, ScanCommitLimit: 10})

	_, err := locator.Locate(context.Background(), LocateInput{
		ProjectKey: "KAN",
		ItemKey:    "KAN-25",
		Candidates: candidates,
	})
	if !errors.Is(err, ErrRepoUnresolved) {
		t.Fatalf("error = %v, want ErrRepoUnresolved", err)
	}
	if host.commitCalls != 5 {
		t.Errorf("scanned %d repositories, want 5", host.commitCalls)
	}
}

func TestLocateActivityScanCommitLimit(t *testing.T) {
	t.Parallel()

	commits := make([]types.Commit, 12)
	for i := range commits {
		commits[i] = types.Commit{SHA: "x", Message: "routine"}
	}
	commits[11].Message = "KAN-25 buried below the commit window"

	host := &fakeHost{commits: map[string][]types.Commit{"acme/app": commits}}
	locator := newTestLocator(&fakeStore{}, host, LocatorConfig{ScanCommitLimit: 10})

	_, err := locator.Locate(context.Background(), LocateInput{
		ProjectKey: "KAN",
		ItemKey:    "KAN-25",
		Candidates: []types.RepositoryCandidate{candidateFixture("acme", "app", time.Now())},
	})
	if !errors.Is(err, ErrRepoUnresolved) {
		t.Fatalf("error = %v, want ErrRepoUnresolved", err)
	}
}

func TestLocateActivityScanSkipsUnreachable(t *testing.T) {
	t.Parallel()

	// First candidate errors, the hit in the second is still found
	host := &fakeHost{
		commits: map[string][]types.Commit{
			"acme/good": {{SHA: "1", Message: "KAN-7 work"}},
		},
	}
	broken := &brokenFirstHost{inner: host, failFor: "acme/bad"}
	candidates := []types.RepositoryCandidate{
		candidateFixture("acme", "bad", time.Now()),
		candidateFixture("acme", "good", time.Now().Add(-time.Hour)),
	}
	locator := newTestLocator(&fakeStore{}, broken, LocatorConfig{})

	location, err := locator.Locate(context.Background(), LocateInput{
		ProjectKey: "KAN",
		ItemKey:    "KAN-7",
		Candidates: candidates,
	})
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if location.Name != "good" {
		t.Errorf("located %q, want good", location.Name)
	}
}

// brokenFirstHost fails ListCommits for one repository and delegates the
// rest
type brokenFirstHost struct {
	inner   *fakeHost
	failFor string
}

func (b *brokenFirstHost) ListRepositories(ctx context.Context) ([]types.RepositoryCandidate, error) {
	return b.inner.ListRepositories(ctx)
}

func (b *brokenFirstHost) ListBranches(ctx context.Context, owner, name string) ([]string, error) {
	return b.inner.ListBranches(ctx, owner, name)
}

func (b *brokenFirstHost) ListCommits(ctx context.Context, owner, name, branch string, since time.Time) ([]types.Commit, error) {
	if owner+"/"+name == b.failFor {
		return nil, errors.New("unreachable")
	}
	return b.inner.ListCommits(ctx, owner, name, branch, since)
}

func TestLocateConfiguredDefault(t *testing.T) {
	t.Parallel()

	locator := newTestLocator(&fakeStore{}, &fakeHost{}, LocatorConfig{DefaultRepository: "acme/base"})

	location, err := locator.Locate(context.Background(), LocateInput{ProjectKey: "KAN", ItemKey: "KAN-25"})
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if location.Confidence != types.ConfidenceDefault {
		t.Errorf("confidence = %q, want %q", location.Confidence, types.ConfidenceDefault)
	}
	if location.Owner != "acme" || location.Name != "base" {
		t.Errorf("located %s/%s, want acme/base", location.Owner, location.Name)
	}
}

func TestLocateUnresolved(t *testing.T) {
	t.Parallel()

	locator := newTestLocator(&fakeStore{}, &fakeHost{}, LocatorConfig{})

	_, err := locator.Locate(context.Background(), LocateInput{ProjectKey: "KAN", ItemKey: "KAN-25"})
	if !errors.Is(err, ErrRepoUnresolved) {
		t.Fatalf("error = %v, want ErrRepoUnresolved", err)
	}
}

func TestDetectBranchExactBeatsSubstring(t *testing.T) {
	t.Parallel()

	host := &fakeHost{branches: map[string][]string{
		"acme/app": {"main", "feature/KAN-25-login", "kan-25"},
	}}
	locator := newTestLocator(&fakeStore{}, host, LocatorConfig{})

	got := locator.DetectBranch(context.Background(), "acme", "app", "KAN-25", "main")
	if got != "kan-25" {
		t.Errorf("DetectBranch = %q, want %q", got, "kan-25")
	}
}

func TestDetectBranchSubstring(t *testing.T) {
	t.Parallel()

	host := &fakeHost{branches: map[string][]string{
		"acme/app": {"main", "KAN-25-login"},
	}}
	locator := newTestLocator(&fakeStore{}, host, LocatorConfig{})

	got := locator.DetectBranch(context.Background(), "acme", "app", "kan-25", "main")
	if got != "KAN-25-login" {
		t.Errorf("DetectBranch = %q, want %q", got, "KAN-25-login")
	}
}

func TestDetectBranchFallsBackToPrimary(t *testing.T) {
	t.Parallel()

	host := &fakeHost{branches: map[string][]string{
		"acme/app": {"main", "develop"},
	}}
	locator := newTestLocator(&fakeStore{}, host, LocatorConfig{})

	if got := locator.DetectBranch(context.Background(), "acme", "app", "KAN-25", "develop"); got != "develop" {
		t.Errorf("DetectBranch = %q, want %q", got, "develop")
	}
	// Empty primary falls back to the configured default
	if got := locator.DetectBranch(context.Background(), "acme", "app", "KAN-25", ""); got != "main" {
		t.Errorf("DetectBranch = %q, want %q", got, "main")
	}
}

func TestDetectBranchListingFailure(t *testing.T) {
	t.Parallel()

	host := &fakeHost{branchesErr: errors.New("boom")}
	locator := newTestLocator(&fakeStore{}, host, LocatorConfig{})

	if got := locator.DetectBranch(context.Background(), "acme", "app", "KAN-25", "main"); got != "main" {
		t.Errorf("DetectBranch = %q, want %q", got, "main")
	}
}
