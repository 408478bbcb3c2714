package types

import (
	"fmt"
	"strings"
	"time"
)

// Repository resolution confidence tags, highest-trust first
const (
	ConfidenceManual    = "manual"
	ConfidenceLearned   = "learned"
	ConfidenceNameMatch = "name-match"
	ConfidenceScanned   = "scanned"
	ConfidenceDefault   = "default"
)

// RepositoryCandidate is one repository visible to the tracked account
type RepositoryCandidate struct {
	Owner         string    `json:"owner"`
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	DefaultBranch string    `json:"default_branch,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RepositoryRef points at the repository and branch a run resolved to
type RepositoryRef struct {
	Owner      string `json:"owner"`
	Name       string `json:"name"`
	Branch     string `json:"branch,omitempty"`
	Confidence string `json:"confidence,omitempty"`
}

// FullName returns the "owner/name" form of the reference
func (r RepositoryRef) FullName() string {
	return r.Owner + "/" + r.Name
}

// ParseRepository splits an "owner/name" string into a RepositoryRef
func ParseRepository(fullName string) (RepositoryRef, error) {
	parts := strings.Split(strings.TrimSpace(fullName), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return RepositoryRef{}, fmt.Errorf("invalid repository %q: want \"owner/name\"", fullName)
	}
	return RepositoryRef{Owner: parts[0], Name: parts[1]}, nil
}
