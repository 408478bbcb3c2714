package tracker

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/clintrovert/praxis/pkg/types"
)

// DefaultSinceMargin widens the commit-history window behind the story's
// creation time to tolerate clock skew and backdated commits
const DefaultSinceMargin = 365 * 24 * time.Hour

// Matcher fetches a branch's history and keeps the commits attributable
// to one story
type Matcher struct {
	host   RepoHost
	margin time.Duration
	logger *zap.Logger
}

// NewMatcher creates a commit matcher. A non-positive margin falls back
// to DefaultSinceMargin
func NewMatcher(host RepoHost, margin time.Duration, logger *zap.Logger) *Matcher {
	if margin <= 0 {
		margin = DefaultSinceMargin
	}
	return &Matcher{
		host:   host,
		margin: margin,
		logger: logger,
	}
}

// MatchInput identifies the branch to read and the story to attribute
type MatchInput struct {
	Owner    string
	Name     string
	Branch   string
	Identity string
	ItemKey  string
	// Since is the story's creation time; the fetch window opens one
	// margin earlier. Zero means unbounded history
	Since time.Time
}

// Match returns the story's attributable commits, newest first and free
// of duplicates. A commit is kept when its author matches the identity
// and it references the item, either through its message or through the
// branch name
func (m *Matcher) Match(ctx context.Context, in MatchInput) ([]types.MatchedCommit, error) {
	since := in.Since
	if !since.IsZero() {
		since = since.Add(-m.margin)
	}

	commits, err := m.host.ListCommits(ctx, in.Owner, in.Name, in.Branch, since)
	if err != nil {
		return nil, err
	}

	// A branch named after the item vouches for every author-matched
	// commit on it, whatever the messages say
	branchVouches := branchReferencesItem(in.Branch, in.ItemKey)
	pattern := itemKeyPattern(types.ProjectKeyOf(in.ItemKey))
	wantKey := strings.ToUpper(in.ItemKey)

	matched := make([]types.MatchedCommit, 0)
	for _, commit := range commits {
		if !authorMatches(commit, in.Identity) {
			continue
		}
		if !branchVouches && !messageReferencesItem(pattern, commit.Message, wantKey) {
			continue
		}
		matched = append(matched, types.MatchedCommit{
			Commit:         commit,
			AuthorMatched:  true,
			ItemReferenced: true,
		})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].AuthoredAt.After(matched[j].AuthoredAt)
	})

	m.logger.Info("matched commits",
		zap.String("item", in.ItemKey),
		zap.String("identity", in.Identity),
		zap.String("branch", in.Branch),
		zap.Int("count", len(matched)),
	)

	return matched, nil
}

// authorMatches reports whether a commit is attributable to the identity:
// a case-insensitive substring of the author email, an exact match on the
// author login, or a substring of the author display name
func authorMatches(commit types.Commit, identity string) bool {
	id := strings.ToLower(strings.TrimSpace(identity))
	if id == "" {
		return false
	}
	if strings.Contains(strings.ToLower(commit.AuthorEmail), id) {
		return true
	}
	if strings.ToLower(commit.AuthorLogin) == id {
		return true
	}
	return strings.Contains(strings.ToLower(commit.AuthorName), id)
}

// branchReferencesItem reports whether the branch name contains the item
// key, case-insensitively
func branchReferencesItem(branch, itemKey string) bool {
	if branch == "" || itemKey == "" {
		return false
	}
	return strings.Contains(strings.ToLower(branch), strings.ToLower(itemKey))
}

// itemKeyPattern matches whole work-item tokens of one project, so a
// search for KAN-25 can never hit inside KAN-255
func itemKeyPattern(projectKey string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(` + regexp.QuoteMeta(projectKey) + `-\d+)\b`)
}

func messageReferencesItem(pattern *regexp.Regexp, message, wantKey string) bool {
	for _, token := range pattern.FindAllString(message, -1) {
		if strings.ToUpper(token) == wantKey {
			return true
		}
	}
	return false
}

// ExtractItemKeys returns every whole-token work-item key of one project
// mentioned in a message, uppercased, deduplicated, in order of first
// appearance
func ExtractItemKeys(message, projectKey string) []string {
	if projectKey == "" {
		return nil
	}
	tokens := itemKeyPattern(projectKey).FindAllString(message, -1)
	seen := make(map[string]struct{}, len(tokens))
	keys := make([]string, 0, len(tokens))
	for _, token := range tokens {
		key := strings.ToUpper(token)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}
