package tracker

import (
	"fmt"
	"sort"
	"strings"

	"github.com/clintrovert/praxis/pkg/types"
)

// commentCommitLimit caps how many commits a posted comment lists
const commentCommitLimit = 5

// FormatReportComment renders a tracking result as a Jira-markup comment
// body suitable for posting back onto the story
func FormatReportComment(result *types.TrackingResult) string {
	var sb strings.Builder

	sb.WriteString("h3. Commit Tracking Report\n\n")
	sb.WriteString("*Story:* " + result.StoryKey + "\n")
	if result.Assignee != nil {
		sb.WriteString("*Assignee:* " + result.Assignee.DisplayName + "\n")
	}
	if result.Identity != nil {
		sb.WriteString(fmt.Sprintf("*Identity:* %s (%s)\n", result.Identity.Value, result.Identity.Source))
	}
	if result.Repository != nil {
		sb.WriteString(fmt.Sprintf("*Repository:* %s (branch: %s)\n", result.Repository.FullName(), result.Repository.Branch))
	}
	sb.WriteString(fmt.Sprintf("*Matched commits:* %d\n", result.CommitCount))
	sb.WriteString("*Work status:* " + result.WorkStatus + "\n")

	if result.Validation != nil {
		sb.WriteString("\n{panel:title=Validation}\n")
		sb.WriteString("*Matching:* " + result.Validation.Matching + "\n")
		sb.WriteString("*Confidence:* " + result.Validation.Confidence + "\n")
		if result.Validation.WorkSummary != "" {
			sb.WriteString(result.Validation.WorkSummary + "\n")
		}
		if result.Validation.Notes != "" {
			sb.WriteString(result.Validation.Notes + "\n")
		}
		sb.WriteString("{panel}\n")
	}

	if len(result.Commits) > 0 {
		sb.WriteString("\nRecent commits:\n")
		commits := result.Commits
		if len(commits) > commentCommitLimit {
			commits = commits[:commentCommitLimit]
		}
		for _, commit := range commits {
			sb.WriteString("* " + shortSHA(commit.SHA) + " " + firstLine(commit.Message) + "\n")
		}
	}

	sb.WriteString("\n_Run " + result.RunID + "_\n")
	return sb.String()
}

// FormatStoryReport renders a tracking result as plain text for terminals
func FormatStoryReport(result *types.TrackingResult) string {
	var sb strings.Builder

	sb.WriteString("Story:       " + result.StoryKey)
	if result.Summary != "" {
		sb.WriteString("  " + result.Summary)
	}
	sb.WriteString("\n")
	if result.TrackerStatus != "" {
		sb.WriteString("Tracker:     " + result.TrackerStatus + "\n")
	}
	if result.Assignee != nil {
		sb.WriteString("Assignee:    " + result.Assignee.DisplayName)
		if result.Assignee.Email != "" {
			sb.WriteString(" <" + result.Assignee.Email + ">")
		}
		sb.WriteString("\n")
	}
	if result.Identity != nil {
		sb.WriteString(fmt.Sprintf("Identity:    %s (%s)\n", result.Identity.Value, result.Identity.Source))
	}
	if result.Repository != nil {
		sb.WriteString(fmt.Sprintf("Repository:  %s @ %s (%s)\n",
			result.Repository.FullName(), result.Repository.Branch, result.Repository.Confidence))
	}
	sb.WriteString("Work:        " + result.WorkStatus + "\n")

	if len(result.Commits) > 0 {
		sb.WriteString(fmt.Sprintf("Commits:     %d\n", result.CommitCount))
		for _, commit := range result.Commits {
			sb.WriteString(fmt.Sprintf("  %s  %s  %s\n",
				shortSHA(commit.SHA), commit.AuthoredAt.Format("2006-01-02"), firstLine(commit.Message)))
		}
	}

	if result.Validation != nil {
		sb.WriteString(fmt.Sprintf("Validation:  %s (%s)\n", result.Validation.Matching, result.Validation.Confidence))
		if result.Validation.WorkSummary != "" {
			sb.WriteString("  " + result.Validation.WorkSummary + "\n")
		}
	}
	if result.CommentsError != "" {
		sb.WriteString("Comments:    unavailable: " + result.CommentsError + "\n")
	}
	if result.Error != nil {
		sb.WriteString(fmt.Sprintf("Error:       %s: %s\n", result.Error.Kind, result.Error.Message))
	}

	return sb.String()
}

// FormatProjectReport renders a project fan-out report as plain text
func FormatProjectReport(report *types.ProjectReport) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Project %s: %d stories, %d with activity (%.1f%%), %d commits\n",
		report.ProjectKey,
		report.Summary.TotalStories,
		report.Summary.WithActivity,
		report.Summary.ActivityRate*100,
		report.Summary.TotalCommits,
	))

	if len(report.ByStatus) > 0 {
		sb.WriteString("\nBy status:\n")
		for _, bucket := range []string{"Active", "Stale", "Not Started", "Unknown"} {
			keys := report.ByStatus[bucket]
			if len(keys) == 0 {
				continue
			}
			sb.WriteString(fmt.Sprintf("  %-12s %s\n", bucket+":", strings.Join(keys, ", ")))
		}
	}

	if len(report.ByAssignee) > 0 {
		sb.WriteString("\nBy assignee:\n")
		names := make([]string, 0, len(report.ByAssignee))
		for name := range report.ByAssignee {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			activity := report.ByAssignee[name]
			sb.WriteString(fmt.Sprintf("  %-20s total %d, active %d, stale %d, not started %d\n",
				name, activity.Total, activity.Active, activity.Stale, activity.NotStarted))
		}
	}

	if len(report.Results) > 0 {
		sb.WriteString("\n")
		for _, result := range report.Results {
			sb.WriteString(formatResultLine(result))
		}
	}

	return sb.String()
}

// FormatAssigneeReport renders an assignee fan-out report as plain text
func FormatAssigneeReport(report *types.AssigneeReport) string {
	var sb strings.Builder

	scope := report.AssigneeEmail
	if report.ProjectKey != "" {
		scope += " in " + report.ProjectKey
	}
	sb.WriteString(fmt.Sprintf("Assignee %s: %d stories, %d with activity, %d commits\n",
		scope,
		report.Summary.TotalStories,
		report.Summary.WithActivity,
		report.Summary.TotalCommits,
	))

	if len(report.Results) > 0 {
		sb.WriteString("\n")
		for _, result := range report.Results {
			sb.WriteString(formatResultLine(result))
		}
	}

	return sb.String()
}

func formatResultLine(result *types.TrackingResult) string {
	repository := "-"
	if result.Repository != nil {
		repository = result.Repository.FullName()
	}
	return fmt.Sprintf("  %-10s %-42s %3d commits  %s\n",
		result.StoryKey, result.WorkStatus, result.CommitCount, repository)
}

func shortSHA(sha string) string {
	if len(sha) <= 7 {
		return sha
	}
	return sha[:7]
}

func firstLine(message string) string {
	line, _, _ := strings.Cut(message, "\n")
	return strings.TrimSpace(line)
}
