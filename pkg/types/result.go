package types

import (
	"strings"
	"time"
)

// ErrorKind classifies the terminal failure of a tracking run
type ErrorKind string

const (
	ErrorItemNotFound       ErrorKind = "item_not_found"
	ErrorNoIdentity         ErrorKind = "no_identity"
	ErrorRepoUnresolved     ErrorKind = "repo_unresolved"
	ErrorCommentFetchFailed ErrorKind = "comment_fetch_failed"
	ErrorCommitFetchFailed  ErrorKind = "commit_fetch_failed"
	ErrorExternalTimeout    ErrorKind = "external_timeout"
)

// TrackError is the structured error carried on a failed run's result.
// A fatal kind terminates that item's run only, never the whole batch
type TrackError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// ValidationReport is the verdict returned by the validation collaborator.
// Fields are opaque text attached to a result, never parsed for control flow
type ValidationReport struct {
	Matching    string `json:"matching"`
	WorkSummary string `json:"work_summary"`
	Confidence  string `json:"confidence"`
	Notes       string `json:"notes,omitempty"`
	Raw         string `json:"raw,omitempty"`
}

// TrackingResult is the engine's output for one tracking run. A failed run
// still carries whatever fields were populated before the failure
type TrackingResult struct {
	RunID         string            `json:"run_id"`
	StoryKey      string            `json:"story_key"`
	Summary       string            `json:"summary,omitempty"`
	TrackerStatus string            `json:"tracker_status,omitempty"`
	Assignee      *Assignee         `json:"assignee,omitempty"`
	Identity      *Identity         `json:"identity,omitempty"`
	Repository    *RepositoryRef    `json:"repository,omitempty"`
	Commits       []MatchedCommit   `json:"commits"`
	CommitCount   int               `json:"commit_count"`
	WorkStatus    string            `json:"work_status,omitempty"`
	Validation    *ValidationReport `json:"validation,omitempty"`
	Comments      []Comment         `json:"comments,omitempty"`
	CommentsError string            `json:"comments_error,omitempty"`
	TrackedAt     time.Time         `json:"tracked_at"`
	Error         *TrackError       `json:"error,omitempty"`
}

// ReportSummary aggregates activity across one fan-out run
type ReportSummary struct {
	TotalStories    int     `json:"total_stories"`
	WithActivity    int     `json:"with_activity"`
	WithoutActivity int     `json:"without_activity"`
	TotalCommits    int     `json:"total_commits"`
	ActivityRate    float64 `json:"activity_rate"`
}

// AssigneeActivity counts one assignee's stories per freshness bucket
type AssigneeActivity struct {
	Total      int `json:"total"`
	Active     int `json:"active"`
	Stale      int `json:"stale"`
	NotStarted int `json:"not_started"`
}

// ProjectReport is the aggregate result of tracking every story in a project
type ProjectReport struct {
	ProjectKey  string                       `json:"project_key"`
	GeneratedAt time.Time                    `json:"generated_at"`
	Results     []*TrackingResult            `json:"results"`
	Summary     ReportSummary                `json:"summary"`
	ByStatus    map[string][]string          `json:"by_status"`
	ByAssignee  map[string]*AssigneeActivity `json:"by_assignee"`
}

// AssigneeReport is the aggregate result of tracking one assignee's stories
type AssigneeReport struct {
	AssigneeEmail string            `json:"assignee_email"`
	ProjectKey    string            `json:"project_key,omitempty"`
	GeneratedAt   time.Time         `json:"generated_at"`
	Results       []*TrackingResult `json:"results"`
	Summary       ReportSummary     `json:"summary"`
}

// StatusBucket reduces a work-status label to its freshness bucket
func StatusBucket(workStatus string) string {
	switch {
	case strings.HasPrefix(workStatus, "Active"):
		return "Active"
	case strings.HasPrefix(workStatus, "Stale"):
		return "Stale"
	case strings.HasPrefix(workStatus, "Not Started"):
		return "Not Started"
	default:
		return "Unknown"
	}
}
