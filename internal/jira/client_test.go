package jira

import (
	"testing"
	"time"

	jira "github.com/andygrunwald/go-jira"
)

func TestIssueToStory(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	issue := &jira.Issue{
		Key: "KAN-25",
		Fields: &jira.IssueFields{
			Summary:     "Implement login",
			Description: "Add the login form",
			Created:     jira.Time(created),
			Project:     jira.Project{Key: "KAN", Name: "Kanban Project"},
			Status:      &jira.Status{Name: "In Progress"},
			Assignee: &jira.User{
				DisplayName:  "Jane Doe",
				EmailAddress: "jane.doe@co.com",
			},
		},
	}

	story := issueToStory(issue)

	if story.Key != "KAN-25" {
		t.Errorf("Key = %q, want %q", story.Key, "KAN-25")
	}
	if story.ProjectKey != "KAN" {
		t.Errorf("ProjectKey = %q, want %q", story.ProjectKey, "KAN")
	}
	if story.ProjectName != "Kanban Project" {
		t.Errorf("ProjectName = %q, want %q", story.ProjectName, "Kanban Project")
	}
	if !story.Created.Equal(created) {
		t.Errorf("Created = %v, want %v", story.Created, created)
	}
	if story.Status != "In Progress" {
		t.Errorf("Status = %q, want %q", story.Status, "In Progress")
	}
	if story.Assignee == nil || story.Assignee.Email != "jane.doe@co.com" {
		t.Errorf("Assignee = %+v, want jane.doe@co.com", story.Assignee)
	}
}

func TestIssueToStoryMinimal(t *testing.T) {
	t.Parallel()

	story := issueToStory(&jira.Issue{Key: "OPS-7"})

	if story.Key != "OPS-7" {
		t.Errorf("Key = %q, want %q", story.Key, "OPS-7")
	}
	if story.ProjectKey != "OPS" {
		t.Errorf("ProjectKey = %q, want %q (derived from key)", story.ProjectKey, "OPS")
	}
	if story.Assignee != nil {
		t.Errorf("Assignee = %+v, want nil", story.Assignee)
	}
}

func TestIssueToStoryProjectKeyFallback(t *testing.T) {
	t.Parallel()

	issue := &jira.Issue{
		Key:    "KAN-25",
		Fields: &jira.IssueFields{Summary: "No project populated"},
	}

	story := issueToStory(issue)

	if story.ProjectKey != "KAN" {
		t.Errorf("ProjectKey = %q, want %q (derived from key)", story.ProjectKey, "KAN")
	}
}
