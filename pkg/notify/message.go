package notify

import (
	"fmt"

	goslack "github.com/slack-go/slack"
)

const maxBlockTextLength = 2900

var statusEmoji = map[string]string{
	"ok":      ":white_check_mark:",
	"partial": ":warning:",
	"fail":    ":x:",
}

// BuildRunCompletedMessage creates Block Kit blocks for a finished run.
// auditStatus may be empty when the plan carried no audit step.
func BuildRunCompletedMessage(input RunCompletedInput) []goslack.Block {
	emoji := statusEmoji[input.AuditStatus]
	if emoji == "" {
		emoji = ":gear:"
	}

	header := fmt.Sprintf("%s *Run completed* — %d steps, %.2f waterdrops", emoji, input.Steps, input.WaterdropsUsed)
	if input.AuditStatus != "" {
		header += fmt.Sprintf("\nAudit: *%s*", input.AuditStatus)
	}

	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, header, false, false),
			nil, nil,
		),
	}

	if input.Goal != "" {
		goalText := fmt.Sprintf("*Goal:*\n%s", truncateForSlack(input.Goal))
		blocks = append(blocks, goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, goalText, false, false),
			nil, nil,
		))
	}
	if input.AuditSummary != "" {
		summaryText := fmt.Sprintf("*Audit summary:*\n%s", truncateForSlack(input.AuditSummary))
		blocks = append(blocks, goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, summaryText, false, false),
			nil, nil,
		))
	}
	return blocks
}

func truncateForSlack(text string) string {
	if len(text) <= maxBlockTextLength {
		return text
	}
	return text[:maxBlockTextLength] + "\n\n_... (truncated)_"
}
