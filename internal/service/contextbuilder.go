package service

import (
	"fmt"
	"strings"

	"github.com/convoflow-ai/convoflow/internal/domain"
)

// DefaultContextBudget caps the assembled context block's character length.
const DefaultContextBudget = 4000

// ContextBuilder formats retrieval results into the bounded text block that
// precedes the user's question in the chat prompt.
type ContextBuilder struct {
	budget int
}

// NewContextBuilder creates a ContextBuilder with the given character budget.
// Non-positive budgets fall back to the default.
func NewContextBuilder(budget int) *ContextBuilder {
	if budget <= 0 {
		budget = DefaultContextBudget
	}
	return &ContextBuilder{budget: budget}
}

// BuildContext renders results as a numbered list of source titles and their
// excerpts, capped at the budget. Entries are consumed highest-ranked first,
// so running out of budget drops low-ranked entries; a partially fitting
// entry is cut at a sentence boundary when one fits. Returns "" when results
// is empty so callers can feed the block straight into a prompt.
func (b *ContextBuilder) BuildContext(results []*domain.SearchResult) string {
	if len(results) == 0 {
		return ""
	}

	var sb strings.Builder
	entryNum := 0
	for _, result := range results {
		if result == nil || strings.TrimSpace(result.Content) == "" {
			continue
		}

		header := fmt.Sprintf("%d. [%s]\n", entryNum+1, result.Title)
		remaining := b.budget - sb.Len() - len(header)
		if remaining <= 0 {
			break
		}

		content := strings.TrimSpace(result.Content)
		if len(content)+2 > remaining {
			content = truncateAtSentence(content, remaining-2)
			if content == "" {
				break
			}
		}

		sb.WriteString(header)
		sb.WriteString(content)
		sb.WriteString("\n\n")
		entryNum++
	}

	return strings.TrimRight(sb.String(), "\n")
}

// BuildConversationContext renders recalled conversation turns as a compact
// transcript block, or "" when there is nothing to recall.
func (b *ContextBuilder) BuildConversationContext(hits []*domain.ConversationHit) string {
	if len(hits) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, hit := range hits {
		if hit == nil || strings.TrimSpace(hit.Content) == "" {
			continue
		}
		role := hit.Role
		if role == "" {
			role = "user"
		}
		line := fmt.Sprintf("%s: %s\n", role, strings.TrimSpace(hit.Content))
		if sb.Len()+len(line) > b.budget {
			break
		}
		sb.WriteString(line)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// truncateAtSentence cuts s to at most max bytes, preferring the last
// complete sentence that fits. Returns "" when not even a sentence fragment
// of reasonable size fits.
func truncateAtSentence(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}

	cut := s[:max]
	for i := len(cut) - 1; i >= 0; i-- {
		c := cut[i]
		if c == '.' || c == '!' || c == '?' {
			candidate := strings.TrimSpace(cut[:i+1])
			if candidate != "" {
				return candidate
			}
		}
	}

	// No sentence boundary fits; fall back to a word boundary.
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		return strings.TrimSpace(cut[:idx])
	}
	return ""
}
