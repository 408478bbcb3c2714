package types

import (
	"strings"
	"time"
)

// Assignee identifies the person a story is assigned to
type Assignee struct {
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Story represents a tracked work item fetched from the issue tracker
type Story struct {
	Key         string    `json:"key"`
	ProjectKey  string    `json:"project_key"`
	ProjectName string    `json:"project_name,omitempty"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status,omitempty"`
	Assignee    *Assignee `json:"assignee,omitempty"`
	Created     time.Time `json:"created"`
}

// Comment is a single issue comment
type Comment struct {
	ID      string `json:"id"`
	Author  string `json:"author,omitempty"`
	Body    string `json:"body"`
	Created string `json:"created,omitempty"`
}

// ProjectKeyOf extracts the project prefix from an item key such as "KAN-25"
func ProjectKeyOf(itemKey string) string {
	if i := strings.Index(itemKey, "-"); i > 0 {
		return itemKey[:i]
	}
	return itemKey
}
