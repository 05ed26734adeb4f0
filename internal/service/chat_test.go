package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/convoflow-ai/convoflow/internal/domain"
)

// MockChatCompleter is a mock implementation of ChatCompleter
type MockChatCompleter struct {
	mock.Mock
}

func (m *MockChatCompleter) Complete(ctx context.Context, model string, messages []openai.ChatCompletionMessage, temperature float32) (string, error) {
	args := m.Called(ctx, model, messages, temperature)
	return args.String(0), args.Error(1)
}

// MockConversationMemoryWriter is a mock implementation of ConversationMemoryWriter
type MockConversationMemoryWriter struct {
	mock.Mock
}

func (m *MockConversationMemoryWriter) InsertConversationTurn(ctx context.Context, turn *domain.ConversationTurn, embedding []float32) error {
	args := m.Called(ctx, turn, embedding)
	return args.Error(0)
}

// MockChatBotRepository is a mock implementation of ChatBotRepository
type MockChatBotRepository struct {
	mock.Mock
}

func (m *MockChatBotRepository) GetByID(ctx context.Context, id int64) (*domain.Bot, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Bot), args.Error(1)
}

func supportBot() *domain.Bot {
	return &domain.Bot{
		ID:           1,
		Name:         "support",
		Model:        "gpt-4o-mini",
		SystemPrompt: "You are a helpful HR assistant.",
		Temperature:  0.2,
	}
}

func TestChatService_Chat(t *testing.T) {
	ctx := context.Background()

	t.Run("answers with retrieved knowledge in the system prompt", func(t *testing.T) {
		mockBots := new(MockChatBotRepository)
		mockDocs := new(MockLexicalDocumentSource)
		mockCompleter := new(MockChatCompleter)

		mockBots.On("GetByID", mock.Anything, int64(1)).Return(supportBot(), nil)
		mockDocs.On("ListIndexedByBot", mock.Anything, int64(1)).Return([]*domain.Document{
			indexedDoc(5, "Training", "Zoho Corporation provides employee training programs."),
		}, nil)
		mockCompleter.On("Complete", mock.Anything, "gpt-4o-mini", mock.MatchedBy(func(msgs []openai.ChatCompletionMessage) bool {
			if len(msgs) != 2 {
				return false
			}
			system := msgs[0]
			user := msgs[1]
			return system.Role == openai.ChatMessageRoleSystem &&
				strings.Contains(system.Content, "You are a helpful HR assistant.") &&
				strings.Contains(system.Content, "Use the following knowledge to answer:") &&
				strings.Contains(system.Content, "training programs") &&
				user.Role == openai.ChatMessageRoleUser &&
				user.Content == "what training programs exist?"
		}), float32(0.2)).Return("We offer training programs.", nil)

		retriever := NewRetrieverService(nil, nil, mockDocs)
		svc := NewChatService(mockBots, retriever, NewContextBuilder(0), mockCompleter, nil, nil)

		out, err := svc.Chat(ctx, ChatInput{BotID: 1, Message: "what training programs exist?"})

		require.NoError(t, err)
		assert.Equal(t, "We offer training programs.", out.Reply)
		assert.Equal(t, domain.SearchMethodLexical, out.SearchMethod)
		require.Len(t, out.Sources, 1)
		assert.NotEmpty(t, out.ConversationID)
	})

	t.Run("keeps the caller's conversation id", func(t *testing.T) {
		mockBots := new(MockChatBotRepository)
		mockDocs := new(MockLexicalDocumentSource)
		mockCompleter := new(MockChatCompleter)

		mockBots.On("GetByID", mock.Anything, int64(1)).Return(supportBot(), nil)
		mockDocs.On("ListIndexedByBot", mock.Anything, int64(1)).Return([]*domain.Document{}, nil)
		mockCompleter.On("Complete", mock.Anything, "gpt-4o-mini", mock.Anything, float32(0.2)).Return("hi", nil)

		retriever := NewRetrieverService(nil, nil, mockDocs)
		svc := NewChatService(mockBots, retriever, NewContextBuilder(0), mockCompleter, nil, nil)

		out, err := svc.Chat(ctx, ChatInput{BotID: 1, ConversationID: "conv-7", Message: "hello there"})

		require.NoError(t, err)
		assert.Equal(t, "conv-7", out.ConversationID)
	})

	t.Run("rejects an empty message", func(t *testing.T) {
		svc := NewChatService(new(MockChatBotRepository), NewRetrieverService(nil, nil, nil), NewContextBuilder(0), new(MockChatCompleter), nil, nil)
		_, err := svc.Chat(ctx, ChatInput{BotID: 1, Message: "   "})

		require.Error(t, err)
		var domainErr *domain.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
	})

	t.Run("propagates unknown bot", func(t *testing.T) {
		mockBots := new(MockChatBotRepository)
		mockBots.On("GetByID", mock.Anything, int64(9)).Return(nil, domain.ErrBotNotFound)

		svc := NewChatService(mockBots, NewRetrieverService(nil, nil, nil), NewContextBuilder(0), new(MockChatCompleter), nil, nil)
		_, err := svc.Chat(ctx, ChatInput{BotID: 9, Message: "hi"})

		assert.ErrorIs(t, err, domain.ErrBotNotFound)
	})

	t.Run("wraps completion failure as internal", func(t *testing.T) {
		mockBots := new(MockChatBotRepository)
		mockDocs := new(MockLexicalDocumentSource)
		mockCompleter := new(MockChatCompleter)

		mockBots.On("GetByID", mock.Anything, int64(1)).Return(supportBot(), nil)
		mockDocs.On("ListIndexedByBot", mock.Anything, int64(1)).Return([]*domain.Document{}, nil)
		mockCompleter.On("Complete", mock.Anything, "gpt-4o-mini", mock.Anything, float32(0.2)).
			Return("", errors.New("model overloaded"))

		retriever := NewRetrieverService(nil, nil, mockDocs)
		svc := NewChatService(mockBots, retriever, NewContextBuilder(0), mockCompleter, nil, nil)

		_, err := svc.Chat(ctx, ChatInput{BotID: 1, Message: "hello"})

		require.Error(t, err)
		var domainErr *domain.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.ErrCodeInternalError, domainErr.Code)
	})

	t.Run("writes both turns into conversation memory", func(t *testing.T) {
		mockBots := new(MockChatBotRepository)
		mockDocs := new(MockLexicalDocumentSource)
		mockCompleter := new(MockChatCompleter)
		mockMemory := new(MockConversationMemoryWriter)
		mockEmbed := new(MockEmbeddingClient)
		mockVectors := new(MockVectorSearcher)

		embedding := []float32{0.1}
		mockBots.On("GetByID", mock.Anything, int64(1)).Return(supportBot(), nil)
		mockEmbed.On("GenerateEmbedding", mock.Anything, mock.AnythingOfType("string")).Return(embedding, nil)
		mockVectors.On("SearchDocumentChunks", mock.Anything, embedding, int64(1), 5).
			Return([]*domain.SearchResult{{ID: "v1", Title: "Doc", Content: "chunk"}}, nil)
		mockVectors.On("SearchConversationTurns", mock.Anything, embedding, int64(1), 5).
			Return([]*domain.ConversationHit{}, nil)
		mockCompleter.On("Complete", mock.Anything, "gpt-4o-mini", mock.Anything, float32(0.2)).Return("the reply", nil)
		mockMemory.On("InsertConversationTurn", mock.Anything, mock.MatchedBy(func(turn *domain.ConversationTurn) bool {
			return turn.Role == "user" && turn.Content == "remember this" && turn.ConversationID == "conv-1"
		}), embedding).Return(nil)
		mockMemory.On("InsertConversationTurn", mock.Anything, mock.MatchedBy(func(turn *domain.ConversationTurn) bool {
			return turn.Role == "assistant" && turn.Content == "the reply" && turn.ConversationID == "conv-1"
		}), embedding).Return(nil)

		retriever := NewRetrieverService(mockEmbed, mockVectors, mockDocs)
		svc := NewChatService(mockBots, retriever, NewContextBuilder(0), mockCompleter, mockMemory, mockEmbed)

		out, err := svc.Chat(ctx, ChatInput{BotID: 1, ConversationID: "conv-1", Message: "remember this"})

		require.NoError(t, err)
		assert.Equal(t, "the reply", out.Reply)
		mockMemory.AssertExpectations(t)
	})

	t.Run("memory write failure does not fail the turn", func(t *testing.T) {
		mockBots := new(MockChatBotRepository)
		mockDocs := new(MockLexicalDocumentSource)
		mockCompleter := new(MockChatCompleter)
		mockMemory := new(MockConversationMemoryWriter)
		mockEmbed := new(MockEmbeddingClient)
		mockVectors := new(MockVectorSearcher)

		embedding := []float32{0.1}
		mockBots.On("GetByID", mock.Anything, int64(1)).Return(supportBot(), nil)
		mockEmbed.On("GenerateEmbedding", mock.Anything, mock.AnythingOfType("string")).Return(embedding, nil)
		mockVectors.On("SearchDocumentChunks", mock.Anything, embedding, int64(1), 5).
			Return([]*domain.SearchResult{}, nil)
		mockVectors.On("SearchConversationTurns", mock.Anything, embedding, int64(1), 5).
			Return([]*domain.ConversationHit{}, nil)
		mockDocs.On("ListIndexedByBot", mock.Anything, int64(1)).Return([]*domain.Document{}, nil)
		mockCompleter.On("Complete", mock.Anything, "gpt-4o-mini", mock.Anything, float32(0.2)).Return("ok", nil)
		mockMemory.On("InsertConversationTurn", mock.Anything, mock.Anything, embedding).Return(errors.New("store down"))

		retriever := NewRetrieverService(mockEmbed, mockVectors, mockDocs)
		svc := NewChatService(mockBots, retriever, NewContextBuilder(0), mockCompleter, mockMemory, mockEmbed)

		out, err := svc.Chat(ctx, ChatInput{BotID: 1, ConversationID: "conv-2", Message: "still works"})

		require.NoError(t, err)
		assert.Equal(t, "ok", out.Reply)
	})

	t.Run("recalled conversation shows up in the system prompt", func(t *testing.T) {
		mockBots := new(MockChatBotRepository)
		mockCompleter := new(MockChatCompleter)
		mockEmbed := new(MockEmbeddingClient)
		mockVectors := new(MockVectorSearcher)

		embedding := []float32{0.1}
		mockBots.On("GetByID", mock.Anything, int64(1)).Return(supportBot(), nil)
		mockEmbed.On("GenerateEmbedding", mock.Anything, mock.AnythingOfType("string")).Return(embedding, nil)
		mockVectors.On("SearchDocumentChunks", mock.Anything, embedding, int64(1), 5).
			Return([]*domain.SearchResult{{ID: "v1", Title: "Doc", Content: "chunk"}}, nil)
		mockVectors.On("SearchConversationTurns", mock.Anything, embedding, int64(1), 5).
			Return([]*domain.ConversationHit{{Role: "user", Content: "my name is Sam"}}, nil)
		mockCompleter.On("Complete", mock.Anything, "gpt-4o-mini", mock.MatchedBy(func(msgs []openai.ChatCompletionMessage) bool {
			return len(msgs) == 2 &&
				strings.Contains(msgs[0].Content, "Relevant earlier conversation:") &&
				strings.Contains(msgs[0].Content, "user: my name is Sam")
		}), float32(0.2)).Return("Hi Sam", nil)

		retriever := NewRetrieverService(mockEmbed, mockVectors, nil)
		svc := NewChatService(mockBots, retriever, NewContextBuilder(0), mockCompleter, nil, nil)

		out, err := svc.Chat(ctx, ChatInput{BotID: 1, Message: "what is my name?"})

		require.NoError(t, err)
		assert.Equal(t, "Hi Sam", out.Reply)
	})
}
