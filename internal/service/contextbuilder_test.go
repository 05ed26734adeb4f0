package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convoflow-ai/convoflow/internal/domain"
)

func TestContextBuilder_BuildContext(t *testing.T) {
	builder := NewContextBuilder(0)

	t.Run("empty results produce an empty string", func(t *testing.T) {
		assert.Equal(t, "", builder.BuildContext(nil))
		assert.Equal(t, "", builder.BuildContext([]*domain.SearchResult{}))
	})

	t.Run("formats a numbered list with titles and excerpts", func(t *testing.T) {
		results := []*domain.SearchResult{
			{Title: "Handbook", Content: "Vacation accrues monthly."},
			{Title: "Benefits", Content: "Dental is covered."},
		}

		block := builder.BuildContext(results)

		assert.Contains(t, block, "1. [Handbook]\nVacation accrues monthly.")
		assert.Contains(t, block, "2. [Benefits]\nDental is covered.")
	})

	t.Run("skips entries with blank content without breaking numbering", func(t *testing.T) {
		results := []*domain.SearchResult{
			{Title: "Empty", Content: "   "},
			{Title: "Real", Content: "Something useful."},
		}

		block := builder.BuildContext(results)

		assert.NotContains(t, block, "Empty")
		assert.Contains(t, block, "1. [Real]")
	})

	t.Run("drops low-ranked entries when the budget runs out", func(t *testing.T) {
		small := NewContextBuilder(80)
		results := []*domain.SearchResult{
			{Title: "Top", Content: "The highest ranked excerpt fits."},
			{Title: "Bottom", Content: strings.Repeat("x", 200)},
		}

		block := small.BuildContext(results)

		assert.Contains(t, block, "Top")
		assert.NotContains(t, block, "Bottom")
		assert.LessOrEqual(t, len(block), 80)
	})

	t.Run("truncates a partially fitting entry at a sentence boundary", func(t *testing.T) {
		small := NewContextBuilder(70)
		results := []*domain.SearchResult{
			{Title: "Doc", Content: "First sentence fits fine. Second sentence is far too long to fit in here."},
		}

		block := small.BuildContext(results)

		require.Contains(t, block, "First sentence fits fine.")
		assert.NotContains(t, block, "Second sentence")
	})
}

func TestContextBuilder_BuildConversationContext(t *testing.T) {
	builder := NewContextBuilder(0)

	t.Run("empty hits produce an empty string", func(t *testing.T) {
		assert.Equal(t, "", builder.BuildConversationContext(nil))
	})

	t.Run("renders role-prefixed transcript lines", func(t *testing.T) {
		hits := []*domain.ConversationHit{
			{Role: "user", Content: "What is the vacation policy?"},
			{Role: "assistant", Content: "Twenty days per year."},
		}

		block := builder.BuildConversationContext(hits)

		assert.Contains(t, block, "user: What is the vacation policy?")
		assert.Contains(t, block, "assistant: Twenty days per year.")
	})

	t.Run("missing role defaults to user", func(t *testing.T) {
		block := builder.BuildConversationContext([]*domain.ConversationHit{{Content: "hello"}})
		assert.Equal(t, "user: hello", block)
	})
}

func TestTruncateAtSentence(t *testing.T) {
	t.Run("returns input when it fits", func(t *testing.T) {
		assert.Equal(t, "Short.", truncateAtSentence("Short.", 100))
	})

	t.Run("cuts at the last sentence end that fits", func(t *testing.T) {
		got := truncateAtSentence("One. Two. Three is much longer than the rest.", 12)
		assert.Equal(t, "One. Two.", got)
	})

	t.Run("falls back to a word boundary without sentence ends", func(t *testing.T) {
		got := truncateAtSentence("just words without any terminal punctuation at all", 20)
		assert.Equal(t, "just words without", got)
	})

	t.Run("returns empty when nothing fits", func(t *testing.T) {
		assert.Equal(t, "", truncateAtSentence("unbreakable", 3))
	})
}
