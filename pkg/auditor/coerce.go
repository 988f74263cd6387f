package auditor

import (
	"fmt"
	"strings"

	"github.com/clearcoreai/clearcore/pkg/models"
)

// CoerceAudit forces an LLM verdict into the audit schema. The model's
// judgment is never overridden, only repaired: unknown statuses normalize
// to warning, scores clamp to [0, 1], and missing fields get defaults.
func CoerceAudit(parsed map[string]any) *models.AuditResult {
	result := &models.AuditResult{
		Status:  strings.ToLower(stringOr(parsed["status"], "")),
		Summary: stringOr(parsed["summary"], ""),
		Details: []models.AuditFeedback{},
	}

	if details, ok := parsed["details"].([]any); ok {
		for _, item := range details {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			result.Details = append(result.Details, coerceFeedback(obj))
		}
	}

	if len(result.Details) == 0 {
		result.Details = []models.AuditFeedback{{
			Agent:   "unknown",
			Status:  models.FeedbackStatusWarning,
			Comment: "LLM returned no details.",
			Score:   0.2,
		}}
	}

	if !validGlobalStatus(result.Status) {
		result.Status = deriveGlobalStatus(result.Details)
	}
	if result.Summary == "" {
		valid := 0
		for _, d := range result.Details {
			if d.Status == models.FeedbackStatusValid {
				valid++
			}
		}
		result.Summary = fmt.Sprintf("%d/%d agents validated", valid, len(result.Details))
	}
	return result
}

func coerceFeedback(obj map[string]any) models.AuditFeedback {
	status := strings.ToLower(stringOr(obj["status"], models.FeedbackStatusWarning))
	switch status {
	case models.FeedbackStatusValid, models.FeedbackStatusWarning, models.FeedbackStatusFail:
	default:
		status = models.FeedbackStatusWarning
	}

	comment := strings.TrimSpace(stringOr(obj["comment"], ""))
	if comment == "" {
		comment = "No comment."
	}

	return models.AuditFeedback{
		Agent:   stringOr(obj["agent"], "unknown"),
		Status:  status,
		Comment: comment,
		Score:   clampScore(obj["score"]),
	}
}

func deriveGlobalStatus(details []models.AuditFeedback) string {
	hasWarning := false
	for _, d := range details {
		switch d.Status {
		case models.FeedbackStatusFail:
			return models.AuditStatusFail
		case models.FeedbackStatusWarning:
			hasWarning = true
		}
	}
	if hasWarning {
		return models.AuditStatusPartial
	}
	return models.AuditStatusOK
}

func validGlobalStatus(s string) bool {
	switch s {
	case models.AuditStatusOK, models.AuditStatusPartial, models.AuditStatusFail:
		return true
	}
	return false
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}

func clampScore(v any) float64 {
	score := 0.5
	if f, ok := v.(float64); ok {
		score = f
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
