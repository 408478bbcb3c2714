package validate

import (
	"context"

	"github.com/clintrovert/praxis/pkg/types"
)

// Validator judges whether a story's matched commits plausibly implement
// it. The verdict is opaque text attached to a result, never an input to
// the matching rules
type Validator interface {
	Summarize(ctx context.Context, storySummary, storyDescription string, commitMessages []string) (*types.ValidationReport, error)
}
