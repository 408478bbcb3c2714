package validate

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/clintrovert/praxis/pkg/types"
)

// maxValidationCommits caps how many commit messages go into the prompt
const maxValidationCommits = 10

// AIValidator uses OpenAI to produce validation verdicts
type AIValidator struct {
	client *openai.Client
	logger *zap.Logger
	model  string
}

// NewAIValidator creates a new AI validator
func NewAIValidator(apiKey, model string, logger *zap.Logger) *AIValidator {
	client := openai.NewClient(apiKey)

	if model == "" {
		model = openai.GPT4oMini
	}

	return &AIValidator{
		client: client,
		logger: logger,
		model:  model,
	}
}

// Summarize asks the model whether the commits implement the story
func (v *AIValidator) Summarize(ctx context.Context, storySummary, storyDescription string, commitMessages []string) (*types.ValidationReport, error) {
	prompt := buildPrompt(storySummary, storyDescription, commitMessages)

	resp, err := v.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: v.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: "You are a software delivery auditor that judges whether a set of commits plausibly implements a tracked story.",
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Temperature: 0.3,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from AI")
	}

	report := parseReport(resp.Choices[0].Message.Content)

	v.logger.Info("generated validation report",
		zap.String("matching", report.Matching),
		zap.String("confidence", report.Confidence),
	)

	return report, nil
}

func buildPrompt(storySummary, storyDescription string, commitMessages []string) string {
	if len(commitMessages) > maxValidationCommits {
		commitMessages = commitMessages[:maxValidationCommits]
	}

	var sb strings.Builder

	sb.WriteString("Assess whether the following commits plausibly implement the story:\n\n")
	sb.WriteString("**Story:** " + storySummary + "\n")
	sb.WriteString("**Description:** " + storyDescription + "\n\n")
	sb.WriteString("**Commits (newest first):**\n")
	for _, message := range commitMessages {
		sb.WriteString("- " + message + "\n")
	}

	sb.WriteString("\nFormat your response as:\n")
	sb.WriteString("MATCHING: <yes|no|partial>\n")
	sb.WriteString("SUMMARY: <one paragraph describing the work done>\n")
	sb.WriteString("CONFIDENCE: <high|medium|low>\n")
	sb.WriteString("NOTES: <caveats or ambiguities, if any>\n")

	return sb.String()
}

// parseReport extracts the labeled verdict fields from a model response.
// Unlabeled lines continue the section they follow
func parseReport(response string) *types.ValidationReport {
	report := &types.ValidationReport{Raw: response}

	var currentSection *string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "MATCHING:"):
			report.Matching = strings.TrimSpace(strings.TrimPrefix(line, "MATCHING:"))
			currentSection = nil
		case strings.HasPrefix(line, "SUMMARY:"):
			report.WorkSummary = strings.TrimSpace(strings.TrimPrefix(line, "SUMMARY:"))
			currentSection = &report.WorkSummary
		case strings.HasPrefix(line, "CONFIDENCE:"):
			report.Confidence = strings.TrimSpace(strings.TrimPrefix(line, "CONFIDENCE:"))
			currentSection = nil
		case strings.HasPrefix(line, "NOTES:"):
			report.Notes = strings.TrimSpace(strings.TrimPrefix(line, "NOTES:"))
			currentSection = &report.Notes
		default:
			if currentSection != nil {
				if *currentSection != "" {
					*currentSection += " "
				}
				*currentSection += line
			}
		}
	}

	return report
}
