package types

import "time"

// Commit is a single repository commit as reported by the host
type Commit struct {
	SHA         string    `json:"sha"`
	AuthorName  string    `json:"author_name,omitempty"`
	AuthorEmail string    `json:"author_email,omitempty"`
	AuthorLogin string    `json:"author_login,omitempty"`
	Message     string    `json:"message"`
	AuthoredAt  time.Time `json:"authored_at"`
}

// MatchedCommit is a commit attributed to a story by the matching rules
type MatchedCommit struct {
	Commit
	AuthorMatched  bool `json:"author_matched"`
	ItemReferenced bool `json:"item_referenced"`
}
