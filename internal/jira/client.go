package jira

import (
	"context"
	"fmt"
	"time"

	jira "github.com/andygrunwald/go-jira"
	"go.uber.org/zap"

	"github.com/clintrovert/praxis/pkg/types"
)

const maxSearchResults = 50

// Client wraps Jira API access for the correlation engine
type Client struct {
	client *jira.Client
	logger *zap.Logger
}

// NewClient creates a new Jira client
func NewClient(baseURL, username, apiToken string, logger *zap.Logger) (*Client, error) {
	tp := jira.BasicAuthTransport{
		Username: username,
		Password: apiToken,
	}

	client, err := jira.NewClient(tp.Client(), baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create jira client: %w", err)
	}

	return &Client{
		client: client,
		logger: logger,
	}, nil
}

// GetStory retrieves a single story by key
func (c *Client) GetStory(ctx context.Context, key string) (*types.Story, error) {
	issue, _, err := c.client.Issue.GetWithContext(ctx, key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get issue: %w", err)
	}

	return issueToStory(issue), nil
}

// GetComments retrieves the comments posted on a story
func (c *Client) GetComments(ctx context.Context, key string) ([]types.Comment, error) {
	issue, _, err := c.client.Issue.GetWithContext(ctx, key, &jira.GetQueryOptions{
		Fields: "comment",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get comments: %w", err)
	}

	if issue.Fields == nil || issue.Fields.Comments == nil {
		return nil, nil
	}

	comments := make([]types.Comment, 0, len(issue.Fields.Comments.Comments))
	for _, comment := range issue.Fields.Comments.Comments {
		comments = append(comments, types.Comment{
			ID:      comment.ID,
			Author:  comment.Author.DisplayName,
			Body:    comment.Body,
			Created: comment.Created,
		})
	}

	return comments, nil
}

// SearchStories retrieves the stories in a project, newest first. An
// assignee email narrows the search to that person's stories
func (c *Client) SearchStories(ctx context.Context, projectKey, assigneeEmail string) ([]*types.Story, error) {
	jql := fmt.Sprintf("project = \"%s\" AND issuetype = Story", projectKey)
	if assigneeEmail != "" {
		jql = fmt.Sprintf("%s AND assignee = \"%s\"", jql, assigneeEmail)
	}
	jql += " ORDER BY created DESC"

	issues, _, err := c.client.Issue.SearchWithContext(ctx, jql, &jira.SearchOptions{
		MaxResults: maxSearchResults,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search issues: %w", err)
	}

	stories := make([]*types.Story, 0, len(issues))
	for i := range issues {
		stories = append(stories, issueToStory(&issues[i]))
	}

	c.logger.Info("searched stories",
		zap.String("project", projectKey),
		zap.Int("count", len(stories)),
	)

	return stories, nil
}

// AddComment posts a comment on a story
func (c *Client) AddComment(ctx context.Context, key, body string) error {
	_, _, err := c.client.Issue.AddCommentWithContext(ctx, key, &jira.Comment{
		Body: body,
	})
	if err != nil {
		return fmt.Errorf("failed to add comment: %w", err)
	}

	c.logger.Info("added comment", zap.String("story", key))

	return nil
}

// issueToStory converts a Jira issue to a Story
func issueToStory(issue *jira.Issue) *types.Story {
	story := &types.Story{
		Key:        issue.Key,
		ProjectKey: types.ProjectKeyOf(issue.Key),
	}

	if issue.Fields == nil {
		return story
	}

	story.Summary = issue.Fields.Summary
	story.Description = issue.Fields.Description
	story.Created = time.Time(issue.Fields.Created)
	story.ProjectName = issue.Fields.Project.Name
	if issue.Fields.Project.Key != "" {
		story.ProjectKey = issue.Fields.Project.Key
	}
	if issue.Fields.Status != nil {
		story.Status = issue.Fields.Status.Name
	}
	if issue.Fields.Assignee != nil {
		story.Assignee = &types.Assignee{
			DisplayName: issue.Fields.Assignee.DisplayName,
			Email:       issue.Fields.Assignee.EmailAddress,
		}
	}

	return story
}
