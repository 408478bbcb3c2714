package tracker

import (
	"testing"
	"time"

	"github.com/clintrovert/praxis/pkg/types"
)

func commitAt(when time.Time) types.MatchedCommit {
	return types.MatchedCommit{
		Commit:         types.Commit{SHA: "abc", AuthoredAt: when},
		AuthorMatched:  true,
		ItemReferenced: true,
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		commits []types.MatchedCommit
		want    string
	}{
		{"no commits", nil, "Not Started (no commits)"},
		{"just now", []types.MatchedCommit{commitAt(now)}, "Active (worked today)"},
		{"same day", []types.MatchedCommit{commitAt(now.Add(-6 * time.Hour))}, "Active (worked today)"},
		{"one day", []types.MatchedCommit{commitAt(now.Add(-24 * time.Hour))}, "Active (worked today)"},
		{"just under two days", []types.MatchedCommit{commitAt(now.Add(-48*time.Hour + time.Minute))}, "Active (worked today)"},
		{"two days", []types.MatchedCommit{commitAt(now.Add(-48 * time.Hour))}, "Active (2 days ago)"},
		{"three days", []types.MatchedCommit{commitAt(now.Add(-72 * time.Hour))}, "Active (3 days ago)"},
		{"just under four days", []types.MatchedCommit{commitAt(now.Add(-96*time.Hour + time.Minute))}, "Active (3 days ago)"},
		{"four days", []types.MatchedCommit{commitAt(now.Add(-96 * time.Hour))}, "Stale (last commit 4 days ago)"},
		{"thirty days", []types.MatchedCommit{commitAt(now.Add(-30 * 24 * time.Hour))}, "Stale (last commit 30 days ago)"},
		{"future commit", []types.MatchedCommit{commitAt(now.Add(2 * time.Hour))}, "Active (worked today)"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tc.commits, now); got != tc.want {
				t.Errorf("Classify = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestClassifyUsesNewestCommit(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	commits := []types.MatchedCommit{
		commitAt(now.Add(-10 * 24 * time.Hour)),
		commitAt(now.Add(-2 * time.Hour)),
		commitAt(now.Add(-5 * 24 * time.Hour)),
	}

	if got := Classify(commits, now); got != "Active (worked today)" {
		t.Errorf("Classify = %q, want %q", got, "Active (worked today)")
	}
}

func TestStatusBucket(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status string
		want   string
	}{
		{"Active (worked today)", "Active"},
		{"Active (3 days ago)", "Active"},
		{"Stale (last commit 12 days ago)", "Stale"},
		{"Not Started (no commits)", "Not Started"},
		{"Not Started (no identifiable author)", "Not Started"},
		{"Unknown (could not auto-detect repository)", "Unknown"},
		{"", "Unknown"},
	}
	for _, tc := range cases {
		if got := types.StatusBucket(tc.status); got != tc.want {
			t.Errorf("StatusBucket(%q) = %q, want %q", tc.status, got, tc.want)
		}
	}
}
