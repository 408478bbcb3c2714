package tracker

import (
	"fmt"
	"time"

	"github.com/clintrovert/praxis/pkg/types"
)

// Work-status labels for the terminal states that carry no commit age
const (
	StatusNoCommits   = "Not Started (no commits)"
	StatusNoIdentity  = "Not Started (no identifiable author)"
	StatusRepoUnknown = "Unknown (could not auto-detect repository)"
)

// Classify derives the work-status label from the age of the newest
// matched commit at the given instant. Age counts whole elapsed days,
// partial days truncated. Pure and total: every input yields a label
func Classify(commits []types.MatchedCommit, now time.Time) string {
	if len(commits) == 0 {
		return StatusNoCommits
	}

	newest := commits[0].AuthoredAt
	for _, commit := range commits[1:] {
		if commit.AuthoredAt.After(newest) {
			newest = commit.AuthoredAt
		}
	}

	days := int(now.Sub(newest) / (24 * time.Hour))
	switch {
	case days <= 1:
		return "Active (worked today)"
	case days <= 3:
		return fmt.Sprintf("Active (%d days ago)", days)
	default:
		return fmt.Sprintf("Stale (last commit %d days ago)", days)
	}
}
